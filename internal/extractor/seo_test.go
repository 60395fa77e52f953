package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/browser/browsertest"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeSEO(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/small.png":
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Content-Length", "1024")
		case "/large.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Content-Length", "512000")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	html := `<html><head><title>` + strings.Repeat("t", 55) + `</title>
<meta name="description" content="short"></head>
<body><h1>One</h1><h3>Two</h3>
<img src="/small.png" alt="small"><img src="/large.jpg"><img src="/missing.webp" alt="gone">
<img src="https://elsewhere.example.com/remote.png" alt="remote"></body></html>`

	s := NewSEOService(&config.ExtractorConfig{RequestTimeout: 5 * time.Second, MaxImages: 50}, discardLogger())
	page := newPage(t, &browsertest.Manager{HTML: html})
	seo, ok := s.AnalyzeSEO(context.Background(), page, srv.URL+"/", allowAll).Value()
	require.True(t, ok)

	require.True(t, seo.TitleTagsAnalysis.IsOptimized)
	require.Equal(t, 55, seo.TitleTagsAnalysis.Length)
	require.Empty(t, seo.TitleTagsAnalysis.Recommendations)

	require.False(t, seo.MetaDescriptionAnalysis.IsOptimized)
	require.Equal(t, 5, seo.MetaDescriptionAnalysis.Length)
	require.Contains(t, seo.MetaDescriptionAnalysis.Recommendations, "between 120 and 160")

	require.Equal(t, []string{"One", "Two"}, seo.HeadingAnalysis.Headings)
	require.Equal(t, 2, seo.HeadingAnalysis.Count)

	require.Equal(t, 4, seo.ImageAnalysis.TotalImages)
	require.Equal(t, 1, seo.ImageAnalysis.MissingAltTextCount)
	require.Equal(t, 2, seo.ImageAnalysis.NonOptimizedCount)
	require.Len(t, seo.ImageAnalysis.ErrorUrls, 2)
	require.Contains(t, seo.ImageAnalysis.ErrorUrls[0], "/large.jpg. size")
	require.Contains(t, seo.ImageAnalysis.ErrorUrls[1], "/missing.webp")
	require.Equal(t, "Some images are missing alt text. Some images are not optimized.", seo.ImageAnalysis.Recommendations)
}

func TestURLWords(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"my", "shop"}, urlWords("https://www.my-shop.co.za/about"))
	require.True(t, containsAllWords("Welcome to My Shop online", urlWords("https://my-shop.com")))
	require.False(t, containsAllWords("Welcome", urlWords("https://my-shop.com")))
}

func TestAnalyzeHeadingsNone(t *testing.T) {
	t.Parallel()

	s := NewSEOService(&config.ExtractorConfig{}, discardLogger())
	page := newPage(t, &browsertest.Manager{HTML: "<html><body><p>text</p></body></html>"})
	seo, ok := s.AnalyzeSEO(context.Background(), page, "https://example.com", allowAll).Value()

	require.True(t, ok)
	require.Zero(t, seo.HeadingAnalysis.Count)
	require.NotEmpty(t, seo.HeadingAnalysis.Recommendations)
}
