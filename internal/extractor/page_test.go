package extractor

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"github.com/CaitMS/Web-Exploration-Engine/internal/browser/browsertest"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!doctype html>
<html>
<head>
  <title>Example Bakery | Fresh bread daily</title>
  <meta name="description" content="The best fresh bread and coffee in town.">
  <meta name="keywords" content="bakery, bread, coffee">
  <meta property="og:title" content="Example Bakery">
  <meta property="og:image" content="https://example.com/og.png">
</head>
<body>
  <h1>Welcome</h1>
  <h2>Our menu</h2>
  <img src="/img/logo.png" alt="Example Bakery logo">
  <img src="https://cdn.example.com/bread.jpg" alt="">
  <img src="/img/bread.jpg" alt="Bread">
  <p>Email us at hello@example.com or call +27 21 555 1234.</p>
  <a href="mailto:Orders@Example.com?subject=hi">Order</a>
  <a href="tel:+27215550000">Call</a>
  <a href="https://www.facebook.com/examplebakery">Facebook</a>
  <a href="https://example.com/about">About</a>
  <address>12 Long Street, Cape Town</address>
  <div>Visit our second shop at 45 Church Road, Stellenbosch</div>
</body>
</html>`

func TestScrapeMetadata(t *testing.T) {
	t.Parallel()

	m := &browsertest.Manager{HTML: samplePage}
	o := (&MetadataService{}).ScrapeMetadata(context.Background(), newPage(t, m), "https://example.com/about", allowAll)

	md, ok := o.Value()
	require.True(t, ok)
	require.Equal(t, "Example Bakery | Fresh bread daily", md.Title)
	require.Equal(t, "The best fresh bread and coffee in town.", md.Description)
	require.Equal(t, "bakery, bread, coffee", md.Keywords)
	require.Equal(t, "Example Bakery", md.OgTitle)
	require.Equal(t, "The best fresh bread and coffee in town.", md.OgDescription)
	require.Equal(t, "https://example.com/og.png", md.OgImage)
	require.Equal(t, []string{"https://example.com"}, m.Navigated())
}

func TestScrapeMetadataRootDisallowed(t *testing.T) {
	t.Parallel()

	m := &browsertest.Manager{HTML: samplePage}
	robots := allowAll
	robots.IsBaseURLAllowed = false
	o := (&MetadataService{}).ScrapeMetadata(context.Background(), newPage(t, m), "https://example.com", robots)

	requireMarker(t, o, http.StatusForbidden)
	require.Empty(t, m.Navigated())
}

func TestScrapeMetadataNavigationFailure(t *testing.T) {
	t.Parallel()

	m := &browsertest.Manager{HTML: samplePage, NavigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	o := (&MetadataService{}).ScrapeMetadata(context.Background(), newPage(t, m), "https://example.com", allowAll)

	requireMarker(t, o, http.StatusInternalServerError)
	require.Contains(t, o.Err().ErrorMessage, "ERR_NAME_NOT_RESOLVED")
}

func TestCaptureScreenshot(t *testing.T) {
	t.Parallel()

	m := &browsertest.Manager{Shot: []byte("png-bytes")}
	shot, ok := (&ScreenshotService{Quality: 90}).CaptureScreenshot(context.Background(), newPage(t, m),
		"https://example.com", allowAll).Value()

	require.True(t, ok)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("png-bytes")), shot)
}

func TestCaptureScreenshotNotScrapable(t *testing.T) {
	t.Parallel()

	robots := allowAll
	robots.IsURLScrapable = false
	o := (&ScreenshotService{}).CaptureScreenshot(context.Background(), newPage(t, &browsertest.Manager{}),
		"https://example.com", robots)
	requireMarker(t, o, http.StatusForbidden)
}

func TestScrapeContactInfo(t *testing.T) {
	t.Parallel()

	m := &browsertest.Manager{HTML: samplePage}
	info, ok := (&ContactService{}).ScrapeContactInfo(context.Background(), newPage(t, m),
		"https://example.com", allowAll).Value()

	require.True(t, ok)
	require.ElementsMatch(t, []string{"orders@example.com", "hello@example.com"}, info.Emails)
	require.Contains(t, info.Phones, "+27215550000")
	require.Contains(t, info.Phones, "+27 21 555 1234")
	require.Equal(t, []string{"https://www.facebook.com/examplebakery"}, info.SocialLinks)
}

func TestScrapeAddresses(t *testing.T) {
	t.Parallel()

	m := &browsertest.Manager{HTML: samplePage}
	addresses, ok := (&AddressService{}).ScrapeAddresses(context.Background(), newPage(t, m),
		"https://example.com", allowAll).Value()

	require.True(t, ok)
	require.Contains(t, addresses, "12 Long Street, Cape Town")
	require.Contains(t, addresses, "45 Church Road, Stellenbosch")
	require.Len(t, addresses, 2)
}

func TestScrapeLogoPrefersOgImage(t *testing.T) {
	t.Parallel()

	m := &browsertest.Manager{HTML: samplePage}
	logo, ok := (&LogoService{}).ScrapeLogo(context.Background(), newPage(t, m), "https://example.com", allowAll,
		model.Metadata{OgImage: "https://example.com/og.png"}).Value()

	require.True(t, ok)
	require.Equal(t, "https://example.com/og.png", logo)
	require.Empty(t, m.Navigated())
}

func TestScrapeLogoFromImages(t *testing.T) {
	t.Parallel()

	m := &browsertest.Manager{HTML: samplePage}
	logo, ok := (&LogoService{}).ScrapeLogo(context.Background(), newPage(t, m), "https://example.com/shop",
		allowAll, model.Metadata{}).Value()

	require.True(t, ok)
	require.Equal(t, "https://example.com/img/logo.png", logo)
}

func TestScrapeImages(t *testing.T) {
	t.Parallel()

	m := &browsertest.Manager{HTML: samplePage}
	images, ok := (&ImageService{MaxImages: 2}).ScrapeImages(context.Background(), newPage(t, m),
		"https://example.com", allowAll).Value()

	require.True(t, ok)
	require.Equal(t, []string{"https://example.com/img/logo.png", "https://cdn.example.com/bread.jpg"}, images)
}

func TestScrapeImagesNotScrapable(t *testing.T) {
	t.Parallel()

	robots := allowAll
	robots.IsURLScrapable = false
	o := (&ImageService{MaxImages: 50}).ScrapeImages(context.Background(), newPage(t, &browsertest.Manager{}),
		"https://example.com", robots)
	requireMarker(t, o, http.StatusForbidden)
}
