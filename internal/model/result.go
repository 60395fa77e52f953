package model

// ScrapeResult is the result of every task type. Slots outside a task's plan, or behind an
// earlier fatal failure, stay unset and encode as null.
type ScrapeResult struct {
	URL                    string                          `json:"url"`
	DomainStatus           Outcome[DomainStatus]           `json:"domainStatus"`
	Robots                 Outcome[Robots]                 `json:"robots"`
	Metadata               Outcome[Metadata]               `json:"metadata"`
	IndustryClassification Outcome[IndustryClassification] `json:"industryClassification"`
	Logo                   Outcome[string]                 `json:"logo"`
	Images                 Outcome[[]string]               `json:"images"`
	ContactInfo            Outcome[ContactInfo]            `json:"contactInfo"`
	Addresses              Outcome[[]string]               `json:"addresses"`
	Screenshot             Outcome[string]                 `json:"screenshot"`
	SeoAnalysis            Outcome[SeoAnalysis]            `json:"seoAnalysis"`
	Sentiment              Outcome[Sentiment]              `json:"sentiment"`
	ElapsedSeconds         float64                         `json:"elapsedSeconds"`
}

type DomainStatus string

const (
	DomainLive              DomainStatus = "live"
	DomainParked            DomainStatus = "parked"
	DomainUnderConstruction DomainStatus = "under-construction"
)

type Robots struct {
	BaseURL          string   `json:"baseUrl"`
	IsBaseURLAllowed bool     `json:"isBaseUrlAllowed"`
	IsURLScrapable   bool     `json:"isUrlScrapable"`
	AllowedPaths     []string `json:"allowedPaths"`
	DisallowedPaths  []string `json:"disallowedPaths"`
}

type Metadata struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Keywords      string `json:"keywords"`
	OgTitle       string `json:"ogTitle"`
	OgDescription string `json:"ogDescription"`
	OgImage       string `json:"ogImage"`
}

type Classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type IndustryClassification struct {
	MetadataClass Classification `json:"metadataClass"`
	DomainClass   Classification `json:"domainClass"`
}

type ContactInfo struct {
	Emails      []string `json:"emails"`
	Phones      []string `json:"phones"`
	SocialLinks []string `json:"socialLinks"`
}

type SeoAnalysis struct {
	TitleTagsAnalysis       TitleTagAnalysis        `json:"titleTagsAnalysis"`
	MetaDescriptionAnalysis MetaDescriptionAnalysis `json:"metaDescriptionAnalysis"`
	HeadingAnalysis         HeadingAnalysis         `json:"headingAnalysis"`
	ImageAnalysis           ImageAnalysis           `json:"imageAnalysis"`
}

type TitleTagAnalysis struct {
	TitleTag        string `json:"titleTag"`
	Length          int    `json:"length"`
	IsOptimized     bool   `json:"isOptimized"`
	Recommendations string `json:"recommendations"`
}

type MetaDescriptionAnalysis struct {
	MetaDescription         string `json:"metaDescription"`
	Length                  int    `json:"length"`
	IsOptimized             bool   `json:"isOptimized"`
	IsURLWordsInDescription bool   `json:"isUrlWordsInDescription"`
	Recommendations         string `json:"recommendations"`
}

type HeadingAnalysis struct {
	Headings        []string `json:"headings"`
	Count           int      `json:"count"`
	Recommendations string   `json:"recommendations"`
}

type ImageAnalysis struct {
	TotalImages         int      `json:"totalImages"`
	MissingAltTextCount int      `json:"missingAltTextCount"`
	NonOptimizedCount   int      `json:"nonOptimizedCount"`
	Recommendations     string   `json:"recommendations"`
	ErrorUrls           []string `json:"errorUrls"`
}

type Sentiment struct {
	Label    string  `json:"label"`
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}
