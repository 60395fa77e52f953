package extractor

import (
	"context"
	"math"
	netUrl "net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
)

const unknownIndustry = "Unknown"

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

var industryKeywords = map[string][]string{
	"E-Commerce":               {"shop", "store", "buy", "cart", "checkout", "sale", "deals", "shipping", "retail", "order"},
	"Finance and Banking":      {"bank", "finance", "loan", "invest", "insurance", "credit", "mortgage", "wealth", "trading", "fund"},
	"Information Technology":   {"software", "cloud", "tech", "data", "developer", "digital", "app", "it", "cyber", "platform"},
	"Healthcare":               {"health", "medical", "clinic", "doctor", "hospital", "pharmacy", "care", "wellness", "dental", "patient"},
	"Education":                {"school", "university", "college", "learn", "course", "education", "academy", "student", "training", "tutor"},
	"Travel and Tourism":       {"travel", "hotel", "tour", "flight", "holiday", "booking", "resort", "vacation", "trip", "safari"},
	"Real Estate":              {"property", "estate", "realty", "homes", "rent", "apartment", "housing", "realtor", "listing", "broker"},
	"Food and Beverage":        {"food", "restaurant", "recipe", "coffee", "wine", "bakery", "cafe", "menu", "drink", "kitchen"},
	"Automotive":               {"car", "auto", "motor", "vehicle", "dealer", "tyre", "tire", "garage", "parts", "drive"},
	"Media and Entertainment":  {"news", "music", "movie", "film", "game", "media", "entertainment", "stream", "tv", "radio"},
	"Legal Services":           {"law", "legal", "attorney", "lawyer", "firm", "court", "litigation", "counsel", "notary", "advocate"},
	"Telecommunications":       {"mobile", "telecom", "network", "broadband", "fibre", "fiber", "internet", "wireless", "sim", "data"},
	"Agriculture":              {"farm", "agri", "crop", "seed", "livestock", "harvest", "organic", "fertilizer", "tractor", "grain"},
	"Construction and Mining":  {"construction", "building", "mining", "engineering", "contractor", "cement", "steel", "civil", "mine", "architect"},
	"Non-Profit Organisations": {"charity", "donate", "foundation", "nonprofit", "volunteer", "ngo", "community", "trust", "relief", "cause"},
}

// IndustryService classifies a site by keyword hits in its metadata text and in its domain name.
type IndustryService struct{}

func (s *IndustryService) ClassifyIndustry(_ context.Context, url string,
	metadata model.Metadata) model.Outcome[model.IndustryClassification] {
	text := strings.Join([]string{metadata.Title, metadata.Description, metadata.Keywords,
		metadata.OgTitle, metadata.OgDescription}, " ")

	return model.Ok(model.IndustryClassification{
		MetadataClass: classifyText(wordPattern.FindAllString(strings.ToLower(text), -1), false),
		DomainClass:   classifyText([]string{domainLabel(url)}, true),
	})
}

// classifyText scores every industry by keyword hits. Whole word matching is used for page
// text; domain names are matched by substring since they run words together.
func classifyText(tokens []string, substring bool) model.Classification {
	scores := make(map[string]int, len(industryKeywords))
	total := 0
	for industry, keywords := range industryKeywords {
		for _, token := range tokens {
			for _, kw := range keywords {
				if token == kw || (substring && len(kw) > 2 && strings.Contains(token, kw)) {
					scores[industry]++
					total++
				}
			}
		}
	}
	if total == 0 {
		return model.Classification{Label: unknownIndustry, Score: 0}
	}

	industries := make([]string, 0, len(scores))
	for industry := range scores {
		industries = append(industries, industry)
	}
	sort.Slice(industries, func(i, j int) bool {
		if scores[industries[i]] != scores[industries[j]] {
			return scores[industries[i]] > scores[industries[j]]
		}
		return industries[i] < industries[j]
	})
	best := industries[0]
	return model.Classification{
		Label: best,
		Score: math.Round(float64(scores[best])/float64(total)*1e4) / 1e4,
	}
}

// domainLabel returns the registrable part of the host without "www.", e.g. "myshop" for
// https://www.myshop.co.za.
func domainLabel(url string) string {
	u, err := netUrl.Parse(url)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	label, _, _ := strings.Cut(host, ".")
	return label
}
