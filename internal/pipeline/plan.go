package pipeline

import "github.com/CaitMS/Web-Exploration-Engine/internal/model"

// plan selects the extractors a task type runs. Single extractor task types keep the
// prerequisites of their extractor, so a logo task still reads robots and metadata first.
type plan struct {
	robots, status                                bool
	metadata, screenshot, contact, addresses, seo bool
	industry, logo, images, sentiment             bool
}

var plans = map[model.TaskType]plan{
	model.FullScrape: {
		robots: true, status: true,
		metadata: true, screenshot: true, contact: true, addresses: true, seo: true,
		industry: true, logo: true, images: true, sentiment: true,
	},
	model.ReadRobots:       {robots: true},
	model.ScrapeStatus:     {status: true},
	model.ScrapeMetadata:   {robots: true, metadata: true},
	model.ClassifyIndustry: {robots: true, metadata: true, industry: true},
	model.ScrapeLogo:       {robots: true, metadata: true, logo: true},
	model.ScrapeImages:     {robots: true, metadata: true, images: true},
	model.Screenshot:       {robots: true, screenshot: true},
	model.ScrapeContact:    {robots: true, contact: true},
	model.ScrapeAddresses:  {robots: true, addresses: true},
	model.SeoAnalysisTask:  {robots: true, seo: true},
}

func (p plan) hasStage1() bool {
	return p.metadata || p.screenshot || p.contact || p.addresses || p.seo
}

func (p plan) hasStage2() bool {
	return p.industry || p.logo || p.images || p.sentiment
}
