package extractor

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
	"github.com/CaitMS/Web-Exploration-Engine/internal/browser/browsertest"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/stretchr/testify/require"
)

var allowAll = model.Robots{BaseURL: "https://example.com", IsBaseURLAllowed: true, IsURLScrapable: true}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPage(t *testing.T, m *browsertest.Manager) browser.Page {
	t.Helper()
	session, err := m.Acquire(context.Background())
	require.NoError(t, err)
	page, err := session.NewPage(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = page.Close()
		_ = session.Close()
	})
	return page
}

func requireMarker[T any](t *testing.T, o model.Outcome[T], status int) {
	t.Helper()
	require.True(t, o.Failed(), "expected a failure marker")
	require.Equal(t, status, o.Err().ErrorStatus)
}
