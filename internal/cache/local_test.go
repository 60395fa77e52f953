package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/stretchr/testify/require"
)

func newLocal(ttl time.Duration) *LocalStore {
	return NewLocalStore(&config.CacheConfig{Driver: "local", TTL: ttl}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLocalStoreAbsentKey(t *testing.T) {
	t.Parallel()

	record, err := newLocal(0).Get(context.Background(), "https://example.com-scrape")
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestLocalStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := newLocal(time.Minute)
	ctx := context.Background()
	task := model.Task{URL: "https://example.com", Type: model.ReadRobots}
	in := &model.JobRecord{
		Status:      model.StatusCompleted,
		PollingPath: task.PollingPath(),
		Result: &model.ScrapeResult{
			URL:    task.URL,
			Robots: model.Ok(model.Robots{BaseURL: "https://example.com", IsBaseURLAllowed: true}),
		},
	}
	require.NoError(t, store.Set(ctx, task.Key(), in))

	out, err := store.Get(ctx, task.Key())
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, out.Status)
	robots, ok := out.Result.Robots.Value()
	require.True(t, ok)
	require.True(t, robots.IsBaseURLAllowed)
	require.False(t, out.Result.Metadata.Settled())
}

func TestLocalStoreDoesNotShareRecords(t *testing.T) {
	t.Parallel()

	store := newLocal(0)
	ctx := context.Background()
	in := &model.JobRecord{Status: model.StatusProcessing, Owner: "a"}
	require.NoError(t, store.Set(ctx, "k", in))
	in.Owner = "b"

	out, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "a", out.Owner)
}

func TestLocalStoreLastWriteWins(t *testing.T) {
	t.Parallel()

	store := newLocal(0)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", &model.JobRecord{Status: model.StatusProcessing}))
	require.NoError(t, store.Set(ctx, "k", &model.JobRecord{Status: model.StatusError}))

	out, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, model.StatusError, out.Status)
}

func TestHashKey(t *testing.T) {
	t.Parallel()

	require.Len(t, hashKey("https://example.com-scrape"), 64)
	require.Equal(t, hashKey("a"), hashKey("a"))
	require.NotEqual(t, hashKey("a"), hashKey("b"))
}
