package extractor

import (
	"context"
	netUrl "net/url"
	"strings"

	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/PuerkitoBio/goquery"
)

// LogoService prefers the og:image of the metadata and otherwise looks for an image whose
// source or alt text mentions a logo. No logo found is an empty string, not a failure.
type LogoService struct{}

func (l *LogoService) ScrapeLogo(_ context.Context, page browser.Page, url string, robots model.Robots,
	metadata model.Metadata) model.Outcome[string] {
	if og := strings.TrimSpace(metadata.OgImage); og != "" {
		return model.Ok(og)
	}
	if !robots.IsURLScrapable {
		return model.Fail[string](model.ForbiddenMarker("Not allowed to scrape this URL for a logo"))
	}
	doc, err := loadDocument(page, url, browser.DOMContentLoaded)
	if err != nil {
		return model.Fail[string](model.InternalMarker("Failed to scrape logo: " + err.Error()))
	}
	base, _ := netUrl.Parse(url)

	logo := ""
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := img.AttrOr("src", "")
		alt := img.AttrOr("alt", "")
		if !strings.Contains(strings.ToLower(src), "logo") && !strings.Contains(strings.ToLower(alt), "logo") {
			return true
		}
		if abs, ok := resolve(base, src); ok {
			logo = abs
			return false
		}
		return true
	})

	return model.Ok(logo)
}
