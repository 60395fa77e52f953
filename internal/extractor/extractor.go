// Package extractor holds the sub-task executors of a scrape. Every extractor settles into a
// model.Outcome: a payload, or an error marker whose status tells a robots restriction (403)
// apart from an extraction failure (500). Page based extractors navigate the page they are
// given but never close it.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	netUrl "net/url"
	"strings"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/PuerkitoBio/goquery"
)

type RobotsReader interface {
	ReadRobots(ctx context.Context, url string) model.Outcome[model.Robots]
}

type StatusProber interface {
	ProbeStatus(ctx context.Context, url string) model.Outcome[model.DomainStatus]
}

type MetadataScraper interface {
	ScrapeMetadata(ctx context.Context, page browser.Page, url string, robots model.Robots) model.Outcome[model.Metadata]
}

type ScreenshotCapturer interface {
	CaptureScreenshot(ctx context.Context, page browser.Page, url string, robots model.Robots) model.Outcome[string]
}

type ContactScraper interface {
	ScrapeContactInfo(ctx context.Context, page browser.Page, url string, robots model.Robots) model.Outcome[model.ContactInfo]
}

type AddressScraper interface {
	ScrapeAddresses(ctx context.Context, page browser.Page, url string, robots model.Robots) model.Outcome[[]string]
}

type SEOAnalyzer interface {
	AnalyzeSEO(ctx context.Context, page browser.Page, url string, robots model.Robots) model.Outcome[model.SeoAnalysis]
}

type IndustryClassifier interface {
	ClassifyIndustry(ctx context.Context, url string, metadata model.Metadata) model.Outcome[model.IndustryClassification]
}

type LogoScraper interface {
	ScrapeLogo(ctx context.Context, page browser.Page, url string, robots model.Robots, metadata model.Metadata) model.Outcome[string]
}

type ImageScraper interface {
	ScrapeImages(ctx context.Context, page browser.Page, url string, robots model.Robots) model.Outcome[[]string]
}

type SentimentClassifier interface {
	ClassifySentiment(ctx context.Context, metadata model.Metadata) model.Outcome[model.Sentiment]
}

// Set is the collection of extractors a pipeline draws from.
type Set struct {
	Robots     RobotsReader
	Status     StatusProber
	Metadata   MetadataScraper
	Screenshot ScreenshotCapturer
	Contact    ContactScraper
	Addresses  AddressScraper
	SEO        SEOAnalyzer
	Industry   IndustryClassifier
	Logo       LogoScraper
	Images     ImageScraper
	Sentiment  SentimentClassifier
}

// NewSet wires the default extractors.
func NewSet(cfg *config.ExtractorConfig, log *slog.Logger) *Set {
	maxImages := cfg.MaxImages
	if maxImages <= 0 {
		maxImages = defaultMaxImages
	}
	return &Set{
		Robots:     NewRobotsService(cfg, log),
		Status:     NewStatusService(cfg, log),
		Metadata:   &MetadataService{},
		Screenshot: &ScreenshotService{Quality: 90},
		Contact:    &ContactService{},
		Addresses:  &AddressService{},
		SEO:        NewSEOService(cfg, log),
		Industry:   &IndustryService{},
		Logo:       &LogoService{},
		Images:     &ImageService{MaxImages: maxImages},
		Sentiment:  &SentimentService{},
	}
}

const defaultMaxImages = 50

// loadDocument navigates the page and parses the rendered DOM.
func loadDocument(page browser.Page, url, waitFor string) (*goquery.Document, error) {
	if err := page.Navigate(url, waitFor); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	return doc, nil
}

// resolve turns a possibly relative reference into an absolute http(s) URL.
func resolve(base *netUrl.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return "", false
	}
	u, err := netUrl.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != nil && !u.IsAbs() {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// appendUnique appends values not already present, keeping first-seen order.
func appendUnique(dst []string, seen map[string]struct{}, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
