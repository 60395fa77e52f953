package extractor

import (
	"context"
	"encoding/base64"

	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
)

// ScreenshotService captures a full page PNG, returned base64 encoded.
type ScreenshotService struct {
	Quality int
}

func (s *ScreenshotService) CaptureScreenshot(_ context.Context, page browser.Page, url string,
	robots model.Robots) model.Outcome[string] {
	if !robots.IsURLScrapable {
		return model.Fail[string](model.ForbiddenMarker("Not allowed to scrape this URL for a screenshot"))
	}
	if err := page.Navigate(url, browser.NetworkIdle); err != nil {
		return model.Fail[string](model.InternalMarker("Failed to capture screenshot: " + err.Error()))
	}
	shot, err := page.Screenshot(s.Quality)
	if err != nil {
		return model.Fail[string](model.InternalMarker("Failed to capture screenshot: " + err.Error()))
	}

	return model.Ok(base64.StdEncoding.EncodeToString(shot))
}
