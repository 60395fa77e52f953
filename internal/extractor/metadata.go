package extractor

import (
	"context"
	"strings"

	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/PuerkitoBio/goquery"
)

// MetadataService reads the title and meta tags of the site root.
type MetadataService struct{}

func (m *MetadataService) ScrapeMetadata(_ context.Context, page browser.Page, url string,
	robots model.Robots) model.Outcome[model.Metadata] {
	if !robots.IsBaseURLAllowed {
		return model.Fail[model.Metadata](model.ForbiddenMarker("Not allowed to scrape root URL for metadata"))
	}
	target := robots.BaseURL
	if target == "" {
		target = url
	}

	doc, err := loadDocument(page, target, browser.DOMContentLoaded)
	if err != nil {
		return model.Fail[model.Metadata](model.InternalMarker("Error scraping metadata: " + err.Error()))
	}

	return model.Ok(model.Metadata{
		Title:         strings.TrimSpace(doc.Find("title").First().Text()),
		Description:   metaContent(doc, "name", "description", "og:description"),
		Keywords:      metaContent(doc, "name", "keywords", "og:keywords"),
		OgTitle:       metaContent(doc, "property", "og:title", "title"),
		OgDescription: metaContent(doc, "property", "og:description", "description"),
		OgImage:       metaContent(doc, "property", "og:image", "image"),
	})
}

// metaContent returns the content of meta[attr=primary], falling back to a meta tag whose
// name or property is fallback.
func metaContent(doc *goquery.Document, attr, primary, fallback string) string {
	if v, ok := doc.Find("meta[" + attr + "='" + primary + "']").First().Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	for _, a := range []string{"name", "property"} {
		if v, ok := doc.Find("meta[" + a + "='" + fallback + "']").First().Attr("content"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
