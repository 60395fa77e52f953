// Package pipeline runs the extractors of a task in dependency ordered stages.
//
//	stage 0: robots, domain status
//	stage 1: metadata, screenshot, contact info, addresses, SEO (needs robots and a browser)
//	stage 2: industry, logo, images, sentiment (needs metadata)
//	stage 3: browser release, elapsed time
//
// Every extractor of a stage settles before the next stage starts. A robots failure ends the
// job after stage 0 and a metadata failure ends it after stage 1. Any other failure only
// degrades its own slot of the result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
	"github.com/CaitMS/Web-Exploration-Engine/internal/extractor"
	"github.com/CaitMS/Web-Exploration-Engine/internal/metrics"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
)

type Orchestrator struct {
	extractors *extractor.Set
	browsers   browser.Manager
	log        *slog.Logger
}

func NewOrchestrator(extractors *extractor.Set, browsers browser.Manager, log *slog.Logger) *Orchestrator {
	return &Orchestrator{extractors: extractors, browsers: browsers, log: log}
}

// Run executes the plan of the task type and returns the assembled result. Robots, metadata
// and session failures end the job early with a partial result and no error. An error is
// returned only for an unknown task type or when ctx is done.
func (o *Orchestrator) Run(ctx context.Context, task model.Task) (*model.ScrapeResult, error) {
	p, ok := plans[task.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownTaskType, task.Type)
	}
	log := o.log.With(slog.String("url", task.URL), slog.String("type", string(task.Type)))
	start := time.Now()
	result := &model.ScrapeResult{URL: task.URL}
	var session browser.Session
	defer func() {
		if session != nil {
			if err := session.Close(); err != nil {
				log.Warn("failed to close browser session.", slog.String("err", err.Error()))
			}
		}
		result.ElapsedSeconds = model.ElapsedSeconds(time.Since(start))
	}()

	var wg sync.WaitGroup
	if p.robots {
		spawn(&wg, log, "robots", &result.Robots, func() model.Outcome[model.Robots] {
			return o.extractors.Robots.ReadRobots(ctx, task.URL)
		})
	}
	if p.status {
		spawn(&wg, log, "status", &result.DomainStatus, func() model.Outcome[model.DomainStatus] {
			return o.extractors.Status.ProbeStatus(ctx, task.URL)
		})
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if p.robots && !result.Robots.Succeeded() {
		log.Info("robots check failed, stopping.", slog.String("err", result.Robots.Err().Error()))
		return result, nil
	}
	if !p.hasStage1() {
		return result, nil
	}
	robots, _ := result.Robots.Value()

	s, err := o.browsers.Acquire(ctx)
	if err != nil {
		log.Error("failed to acquire browser session.", slog.String("err", err.Error()))
		failStage1(result, p, model.InternalMarker("Failed to acquire browser session: "+err.Error()))
		return result, nil
	}
	session = s

	if p.metadata {
		spawn(&wg, log, "metadata", &result.Metadata, func() model.Outcome[model.Metadata] {
			return withPage(ctx, session, func(page browser.Page) model.Outcome[model.Metadata] {
				return o.extractors.Metadata.ScrapeMetadata(ctx, page, task.URL, robots)
			})
		})
	}
	if p.screenshot {
		spawn(&wg, log, "screenshot", &result.Screenshot, func() model.Outcome[string] {
			return withPage(ctx, session, func(page browser.Page) model.Outcome[string] {
				return o.extractors.Screenshot.CaptureScreenshot(ctx, page, task.URL, robots)
			})
		})
	}
	if p.contact {
		spawn(&wg, log, "contact", &result.ContactInfo, func() model.Outcome[model.ContactInfo] {
			return withPage(ctx, session, func(page browser.Page) model.Outcome[model.ContactInfo] {
				return o.extractors.Contact.ScrapeContactInfo(ctx, page, task.URL, robots)
			})
		})
	}
	if p.addresses {
		spawn(&wg, log, "addresses", &result.Addresses, func() model.Outcome[[]string] {
			return withPage(ctx, session, func(page browser.Page) model.Outcome[[]string] {
				return o.extractors.Addresses.ScrapeAddresses(ctx, page, task.URL, robots)
			})
		})
	}
	if p.seo {
		spawn(&wg, log, "seo", &result.SeoAnalysis, func() model.Outcome[model.SeoAnalysis] {
			return withPage(ctx, session, func(page browser.Page) model.Outcome[model.SeoAnalysis] {
				return o.extractors.SEO.AnalyzeSEO(ctx, page, task.URL, robots)
			})
		})
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if p.metadata && !result.Metadata.Succeeded() {
		log.Info("metadata extraction failed, stopping.", slog.String("err", result.Metadata.Err().Error()))
		return result, nil
	}
	if !p.hasStage2() {
		return result, nil
	}
	metadata, _ := result.Metadata.Value()

	if p.industry {
		spawn(&wg, log, "industry", &result.IndustryClassification, func() model.Outcome[model.IndustryClassification] {
			return o.extractors.Industry.ClassifyIndustry(ctx, task.URL, metadata)
		})
	}
	if p.logo {
		spawn(&wg, log, "logo", &result.Logo, func() model.Outcome[string] {
			return withPage(ctx, session, func(page browser.Page) model.Outcome[string] {
				return o.extractors.Logo.ScrapeLogo(ctx, page, task.URL, robots, metadata)
			})
		})
	}
	if p.images {
		spawn(&wg, log, "images", &result.Images, func() model.Outcome[[]string] {
			return withPage(ctx, session, func(page browser.Page) model.Outcome[[]string] {
				return o.extractors.Images.ScrapeImages(ctx, page, task.URL, robots)
			})
		})
	}
	if p.sentiment {
		spawn(&wg, log, "sentiment", &result.Sentiment, func() model.Outcome[model.Sentiment] {
			return o.extractors.Sentiment.ClassifySentiment(ctx, metadata)
		})
	}
	wg.Wait()

	return result, ctx.Err()
}

// spawn runs one extractor in its own goroutine and stores its outcome in slot. A panic or an
// unsettled outcome becomes a 500 marker.
func spawn[T any](wg *sync.WaitGroup, log *slog.Logger, name string, slot *model.Outcome[T],
	fn func() model.Outcome[T]) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("extractor panicked.", slog.String("extractor", name), slog.Any("err", r))
				*slot = model.Fail[T](model.InternalMarker(fmt.Sprintf("%s extractor failed: %v", name, r)))
			}
			metrics.ObserveExtractor(name, outcomeCode(*slot))
		}()
		out := fn()
		if !out.Settled() {
			out = model.Fail[T](model.InternalMarker(name + " extractor returned no result"))
		}
		*slot = out
	}()
}

// withPage gives fn a fresh page and closes it when fn returns or panics.
func withPage[T any](ctx context.Context, session browser.Session, fn func(browser.Page) model.Outcome[T]) model.Outcome[T] {
	page, err := session.NewPage(ctx)
	if err != nil {
		return model.Fail[T](model.InternalMarker("Failed to open page: " + err.Error()))
	}
	defer page.Close()

	return fn(page)
}

func failStage1(result *model.ScrapeResult, p plan, marker *model.ErrorMarker) {
	if p.metadata {
		result.Metadata = model.Fail[model.Metadata](marker)
	}
	if p.screenshot {
		result.Screenshot = model.Fail[string](marker)
	}
	if p.contact {
		result.ContactInfo = model.Fail[model.ContactInfo](marker)
	}
	if p.addresses {
		result.Addresses = model.Fail[[]string](marker)
	}
	if p.seo {
		result.SeoAnalysis = model.Fail[model.SeoAnalysis](marker)
	}
}

func outcomeCode[T any](o model.Outcome[T]) string {
	if m := o.Err(); m != nil {
		return strconv.Itoa(m.ErrorStatus)
	}
	return "ok"
}
