package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/PuerkitoBio/goquery"
)

var (
	streetPattern = regexp.MustCompile(`\b\d{1,5}\s+(?:[A-Z][a-zA-Z]*\s+){1,4}` +
		`(?:Street|St|Road|Rd|Avenue|Ave|Drive|Dr|Lane|Ln|Boulevard|Blvd|Way|Court|Ct|Place|Pl|Crescent|Highway)\b\.?` +
		`(?:,\s*[A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)*)*(?:,?\s*\d{4,5})?`)
	spaces = regexp.MustCompile(`\s+`)
)

// AddressService finds postal addresses in the rendered page text.
type AddressService struct{}

func (a *AddressService) ScrapeAddresses(_ context.Context, page browser.Page, url string,
	robots model.Robots) model.Outcome[[]string] {
	if !robots.IsURLScrapable {
		return model.Fail[[]string](model.ForbiddenMarker("Not allowed to scrape this URL for addresses"))
	}
	doc, err := loadDocument(page, url, browser.DOMContentLoaded)
	if err != nil {
		return model.Fail[[]string](model.InternalMarker("Failed to scrape addresses: " + err.Error()))
	}

	return model.Ok(addressesFrom(doc))
}

func addressesFrom(doc *goquery.Document) []string {
	addresses := []string{}
	seen := map[string]struct{}{}
	doc.Find("address").Each(func(_ int, sel *goquery.Selection) {
		addresses = appendUnique(addresses, seen, normalizeSpace(sel.Text()))
	})
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		// Block elements run together in Text(), so separate them first.
		sel.Find("p, div, li, span, td, br, address").AppendHtml(" \n")
		for _, line := range strings.Split(sel.Text(), "\n") {
			for _, m := range streetPattern.FindAllString(normalizeSpace(line), -1) {
				if !containedIn(addresses, m) {
					addresses = appendUnique(addresses, seen, m)
				}
			}
		}
	})
	return addresses
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func containedIn(list []string, s string) bool {
	for _, v := range list {
		if strings.Contains(v, s) {
			return true
		}
	}
	return false
}
