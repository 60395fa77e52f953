package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	netUrl "net/url"
	"regexp"
	"strings"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/PuerkitoBio/goquery"
)

const (
	titleMinLength       = 50
	titleMaxLength       = 60
	descriptionMinLength = 120
	descriptionMaxLength = 160
	maxImageBytes        = 200 * 1024
)

var (
	checkedImageFormats = regexp.MustCompile(`(?i)\.(png|jpe?g|webp|svg)$`)
	urlSchemePrefix     = regexp.MustCompile(`^(https?://)?(www\.)?`)
	nonWord             = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// SEOService grades the title, meta description, headings and images of a page.
type SEOService struct {
	client    *http.Client
	userAgent string
	maxChecks int
	log       *slog.Logger
}

func NewSEOService(cfg *config.ExtractorConfig, log *slog.Logger) *SEOService {
	maxChecks := cfg.MaxImages
	if maxChecks <= 0 {
		maxChecks = defaultMaxImages
	}
	return &SEOService{
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		userAgent: cfg.UserAgent,
		maxChecks: maxChecks,
		log:       log,
	}
}

func (s *SEOService) AnalyzeSEO(ctx context.Context, page browser.Page, url string,
	robots model.Robots) model.Outcome[model.SeoAnalysis] {
	if !robots.IsURLScrapable {
		return model.Fail[model.SeoAnalysis](model.ForbiddenMarker("Not allowed to scrape this URL for SEO analysis"))
	}
	doc, err := loadDocument(page, url, browser.DOMContentLoaded)
	if err != nil {
		return model.Fail[model.SeoAnalysis](model.InternalMarker("Failed to run SEO analysis: " + err.Error()))
	}

	return model.Ok(model.SeoAnalysis{
		TitleTagsAnalysis:       analyzeTitle(doc),
		MetaDescriptionAnalysis: analyzeMetaDescription(doc, url),
		HeadingAnalysis:         analyzeHeadings(doc),
		ImageAnalysis:           s.analyzeImages(ctx, doc, url),
	})
}

func analyzeTitle(doc *goquery.Document) model.TitleTagAnalysis {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	length := len([]rune(title))
	a := model.TitleTagAnalysis{
		TitleTag:    title,
		Length:      length,
		IsOptimized: length >= titleMinLength && length <= titleMaxLength,
	}
	if !a.IsOptimized {
		a.Recommendations = fmt.Sprintf("Title tag length should be between %d and %d characters.",
			titleMinLength, titleMaxLength)
	}
	return a
}

func analyzeMetaDescription(doc *goquery.Document, url string) model.MetaDescriptionAnalysis {
	description := strings.TrimSpace(doc.Find("meta[name='description']").First().AttrOr("content", ""))
	length := len([]rune(description))
	words := urlWords(url)
	a := model.MetaDescriptionAnalysis{
		MetaDescription:         description,
		Length:                  length,
		IsOptimized:             length >= descriptionMinLength && length <= descriptionMaxLength,
		IsURLWordsInDescription: containsAllWords(description, words),
	}
	var rec []string
	if !a.IsOptimized {
		rec = append(rec, fmt.Sprintf("Meta description length should be between %d and %d characters.",
			descriptionMinLength, descriptionMaxLength))
	}
	if !a.IsURLWordsInDescription {
		rec = append(rec, "Consider including words from the URL in the meta description: "+
			strings.Join(words, " ")+".")
	}
	a.Recommendations = strings.Join(rec, " ")
	return a
}

// urlWords splits the first label of the host into words, so https://www.my-shop.com gives
// [my shop].
func urlWords(url string) []string {
	main := urlSchemePrefix.ReplaceAllString(url, "")
	main, _, _ = strings.Cut(main, ".")
	var words []string
	for _, w := range nonWord.Split(main, -1) {
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

func containsAllWords(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if !strings.Contains(lower, strings.ToLower(w)) {
			return false
		}
	}
	return true
}

func analyzeHeadings(doc *goquery.Document) model.HeadingAnalysis {
	headings := []string{}
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		headings = append(headings, strings.TrimSpace(sel.Text()))
	})
	a := model.HeadingAnalysis{Headings: headings, Count: len(headings)}
	if a.Count == 0 {
		a.Recommendations = "No headings (H1-H6) found. Add headings to improve structure."
	}
	return a
}

func (s *SEOService) analyzeImages(ctx context.Context, doc *goquery.Document, pageURL string) model.ImageAnalysis {
	base, _ := netUrl.Parse(pageURL)
	images := doc.Find("img")
	a := model.ImageAnalysis{TotalImages: images.Length(), ErrorUrls: []string{}}

	checks := 0
	images.Each(func(_ int, img *goquery.Selection) {
		if strings.TrimSpace(img.AttrOr("alt", "")) == "" {
			a.MissingAltTextCount++
		}
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			return
		}
		imageURL, ok := resolve(base, src)
		if !ok || !checkedImageFormats.MatchString(strings.SplitN(imageURL, "?", 2)[0]) {
			return
		}
		if checks >= s.maxChecks {
			return
		}
		checks++
		if reasons, err := s.imageProblems(ctx, imageURL); err != nil {
			a.NonOptimizedCount++
			a.ErrorUrls = append(a.ErrorUrls, fmt.Sprintf("Error checking optimization for image: %s. Error: %s", src, err))
		} else if len(reasons) > 0 {
			a.NonOptimizedCount++
			a.ErrorUrls = append(a.ErrorUrls, fmt.Sprintf("Error optimizing image: %s. %s", src, strings.Join(reasons, ", ")))
		}
	})

	var rec []string
	if a.MissingAltTextCount > 0 {
		rec = append(rec, "Some images are missing alt text.")
	}
	if a.NonOptimizedCount > 0 {
		rec = append(rec, "Some images are not optimized.")
	}
	a.Recommendations = strings.Join(rec, " ")
	return a
}

// imageProblems reports "format" when the image is not served as an image and "size" when it
// is larger than maxImageBytes.
func (s *SEOService) imageProblems(ctx context.Context, imageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var reasons []string
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		reasons = append(reasons, "format")
	}
	if resp.ContentLength > maxImageBytes {
		reasons = append(reasons, "size")
	}
	return reasons, nil
}
