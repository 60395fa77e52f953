package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/stretchr/testify/require"
)

func robotsServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newRobotsService() *RobotsService {
	return NewRobotsService(&config.ExtractorConfig{
		UserAgent:      "wee-bot",
		RequestTimeout: 5 * time.Second,
		RobotsCacheTTL: time.Minute,
	}, discardLogger())
}

func TestReadRobotsAllowsAndListsPaths(t *testing.T) {
	t.Parallel()

	srv, _ := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private\nAllow: /private/public\n")
	o := newRobotsService().ReadRobots(context.Background(), srv.URL+"/about")

	robots, ok := o.Value()
	require.True(t, ok)
	require.Equal(t, srv.URL, robots.BaseURL)
	require.True(t, robots.IsBaseURLAllowed)
	require.True(t, robots.IsURLScrapable)
	require.Equal(t, []string{"/private/public"}, robots.AllowedPaths)
	require.Equal(t, []string{"/private"}, robots.DisallowedPaths)
}

func TestReadRobotsPathNotScrapable(t *testing.T) {
	t.Parallel()

	srv, _ := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private\n")
	o := newRobotsService().ReadRobots(context.Background(), srv.URL+"/private/page")

	robots, ok := o.Value()
	require.True(t, ok)
	require.True(t, robots.IsBaseURLAllowed)
	require.False(t, robots.IsURLScrapable)
}

func TestReadRobotsRootDisallowedIsForbidden(t *testing.T) {
	t.Parallel()

	srv, _ := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /\n")
	o := newRobotsService().ReadRobots(context.Background(), srv.URL)

	requireMarker(t, o, http.StatusForbidden)
	require.Equal(t, "403 Forbidden", o.Err().ErrorCode)
}

func TestReadRobotsMissingFileAllowsEverything(t *testing.T) {
	t.Parallel()

	srv, _ := robotsServer(t, http.StatusNotFound, "")
	robots, ok := newRobotsService().ReadRobots(context.Background(), srv.URL+"/x").Value()

	require.True(t, ok)
	require.True(t, robots.IsURLScrapable)
	require.Empty(t, robots.DisallowedPaths)
}

func TestReadRobotsUnreachableIsInternalError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	o := newRobotsService().ReadRobots(context.Background(), url)
	requireMarker(t, o, http.StatusInternalServerError)
}

func TestReadRobotsCachesPerHost(t *testing.T) {
	t.Parallel()

	srv, hits := robotsServer(t, http.StatusOK, "User-agent: *\nAllow: /\n")
	r := newRobotsService()
	for _, path := range []string{"/a", "/b", "/c"} {
		require.True(t, r.ReadRobots(context.Background(), srv.URL+path).Succeeded())
	}
	require.EqualValues(t, 1, hits.Load())
}

func TestListPathsPrefersSpecificGroup(t *testing.T) {
	t.Parallel()

	body := []byte("User-agent: *\nDisallow: /all\n\nUser-agent: wee-bot\nUser-agent: other\nDisallow: /bots # note\n")
	allowed, disallowed := listPaths(body, "wee-bot/1.0")

	require.Empty(t, allowed)
	require.Equal(t, []string{"/bots"}, disallowed)

	_, disallowed = listPaths(body, "*")
	require.Equal(t, []string{"/all"}, disallowed)
}
