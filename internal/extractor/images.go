package extractor

import (
	"context"
	netUrl "net/url"

	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/PuerkitoBio/goquery"
)

// ImageService lists absolute image URLs of the page, at most MaxImages of them.
type ImageService struct {
	MaxImages int
}

func (s *ImageService) ScrapeImages(_ context.Context, page browser.Page, url string,
	robots model.Robots) model.Outcome[[]string] {
	if !robots.IsURLScrapable {
		return model.Fail[[]string](model.ForbiddenMarker("Not allowed to scrape this URL for images"))
	}
	doc, err := loadDocument(page, url, browser.DOMContentLoaded)
	if err != nil {
		return model.Fail[[]string](model.InternalMarker("Failed to scrape images: " + err.Error()))
	}
	base, _ := netUrl.Parse(url)

	images := []string{}
	seen := map[string]struct{}{}
	doc.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if abs, ok := resolve(base, img.AttrOr("src", "")); ok {
			images = appendUnique(images, seen, abs)
		}
		return len(images) < s.MaxImages
	})

	return model.Ok(images)
}
