// Package browser manages the headless browser owned by a job and the pages its
// extractors work on.
package browser

import (
	"context"
	"errors"
)

// Lifecycle events a navigation can wait for.
const (
	DOMContentLoaded = "DOMContentLoaded"
	Load             = "load"
	NetworkIdle      = "networkIdle"
)

var ErrSessionClosed = errors.New("browser session is closed")

// Manager launches one browser session per job.
type Manager interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session is a browser process exclusively owned by one job.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a browser tab exclusively owned by one extractor call.
type Page interface {
	Navigate(url string, waitFor string) error
	HTML() (string, error)
	Screenshot(quality int) ([]byte, error)
	Close() error
}
