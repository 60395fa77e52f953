package extractor

import (
	"context"
	netUrl "net/url"
	"regexp"
	"strings"

	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/PuerkitoBio/goquery"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\(?\d{1,4}\)?[\s.\-]?\(?\d{2,4}\)?[\s.\-]\d{3,4}[\s.\-]\d{3,4}`)
	assetSuffix  = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|webp|css|js)$`)
)

var socialHosts = []string{
	"facebook.com", "twitter.com", "x.com", "linkedin.com", "instagram.com",
	"youtube.com", "tiktok.com", "pinterest.com", "github.com",
}

// ContactService collects email addresses, phone numbers and social media links.
type ContactService struct{}

func (c *ContactService) ScrapeContactInfo(_ context.Context, page browser.Page, url string,
	robots model.Robots) model.Outcome[model.ContactInfo] {
	if !robots.IsURLScrapable {
		return model.Fail[model.ContactInfo](model.ForbiddenMarker("Not allowed to scrape this URL for contact info"))
	}
	doc, err := loadDocument(page, url, browser.DOMContentLoaded)
	if err != nil {
		return model.Fail[model.ContactInfo](model.InternalMarker("Failed to scrape contact info: " + err.Error()))
	}
	base, _ := netUrl.Parse(url)

	return model.Ok(contactInfoFrom(doc, base))
}

func contactInfoFrom(doc *goquery.Document, base *netUrl.URL) model.ContactInfo {
	info := model.ContactInfo{Emails: []string{}, Phones: []string{}, SocialLinks: []string{}}
	seenEmails, seenPhones, seenLinks := map[string]struct{}{}, map[string]struct{}{}, map[string]struct{}{}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "mailto:"):
			addr, _, _ := strings.Cut(href[len("mailto:"):], "?")
			info.Emails = appendUnique(info.Emails, seenEmails, strings.ToLower(addr))
		case strings.HasPrefix(lower, "tel:"):
			info.Phones = appendUnique(info.Phones, seenPhones, href[len("tel:"):])
		default:
			if link, ok := resolve(base, href); ok && isSocialLink(link) {
				info.SocialLinks = appendUnique(info.SocialLinks, seenLinks, link)
			}
		}
	})

	text := doc.Find("body").Text()
	for _, e := range emailPattern.FindAllString(text, -1) {
		if assetSuffix.MatchString(e) {
			continue
		}
		info.Emails = appendUnique(info.Emails, seenEmails, strings.ToLower(e))
	}
	info.Phones = appendUnique(info.Phones, seenPhones, phonePattern.FindAllString(text, -1)...)

	return info
}

func isSocialLink(link string) bool {
	u, err := netUrl.Parse(link)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, h := range socialHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
