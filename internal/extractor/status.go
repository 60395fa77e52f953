package extractor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/gocolly/colly"
)

var parkedMarkers = []string{
	"this domain is parked",
	"domain is for sale",
	"buy this domain",
	"this domain may be for sale",
	"domain parking",
	"parked free",
	"sedoparking",
	"parkingcrew",
}

var underConstructionMarkers = []string{
	"under construction",
	"coming soon",
	"launching soon",
	"site is being built",
	"website is being built",
	"check back soon",
}

// StatusService probes whether a domain is live, parked or still under construction.
type StatusService struct {
	cfg *config.ExtractorConfig
	log *slog.Logger
}

func NewStatusService(cfg *config.ExtractorConfig, log *slog.Logger) *StatusService {
	return &StatusService{cfg: cfg, log: log}
}

func (s *StatusService) ProbeStatus(ctx context.Context, url string) model.Outcome[model.DomainStatus] {
	if err := ctx.Err(); err != nil {
		return model.Fail[model.DomainStatus](model.InternalMarker(err.Error()))
	}

	c := colly.NewCollector()
	if s.cfg.RequestTimeout > 0 {
		c.SetRequestTimeout(s.cfg.RequestTimeout)
	}
	if s.cfg.UserAgent != "" {
		c.UserAgent = s.cfg.UserAgent
	}

	var body string
	var visitErr error
	c.OnResponse(func(resp *colly.Response) {
		body = string(resp.Body)
	})
	c.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	err := c.Visit(url)
	if visitErr == nil {
		visitErr = err
	}
	if visitErr != nil {
		s.log.Debug("domain unreachable.", slog.String("url", url), slog.String("err", visitErr.Error()))
		return model.Fail[model.DomainStatus](model.InternalMarker("Domain unreachable: " + visitErr.Error()))
	}

	return model.Ok(classifyDomain(body))
}

func classifyDomain(body string) model.DomainStatus {
	lower := strings.ToLower(body)
	for _, m := range parkedMarkers {
		if strings.Contains(lower, m) {
			return model.DomainParked
		}
	}
	for _, m := range underConstructionMarkers {
		if strings.Contains(lower, m) {
			return model.DomainUnderConstruction
		}
	}
	return model.DomainLive
}
