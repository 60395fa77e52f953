package extractor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	netUrl "net/url"
	"strings"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

type robotsEntry struct {
	data       *robotstxt.RobotsData
	status     int
	allowed    []string
	disallowed []string
}

// test reports whether agent may fetch path. Server errors disallow everything and a file
// without a group for the agent allows everything.
func (e *robotsEntry) test(agent, path string) bool {
	if e.status >= http.StatusInternalServerError {
		return false
	}
	group := e.data.FindGroup(agent)
	if group == nil {
		return true
	}
	return group.Test(path)
}

// RobotsService reads robots.txt for the host of a URL. Parsed files are kept per host.
type RobotsService struct {
	client     *http.Client
	userAgent  string
	log        *slog.Logger
	localCache *cache.Cache
}

func NewRobotsService(cfg *config.ExtractorConfig, log *slog.Logger) *RobotsService {
	ttl := cfg.RobotsCacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RobotsService{
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		userAgent:  cfg.UserAgent,
		log:        log,
		localCache: cache.New(ttl, 2*ttl),
	}
}

func (r *RobotsService) ReadRobots(ctx context.Context, rawURL string) model.Outcome[model.Robots] {
	parsed, err := netUrl.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.Fail[model.Robots](model.InternalMarker("Invalid URL: " + rawURL))
	}
	entry, err := r.load(ctx, parsed)
	if err != nil {
		r.log.Error("failed to read robots.txt.", slog.String("url", rawURL), slog.String("err", err.Error()))
		return model.Fail[model.Robots](model.InternalMarker("Failed to read robots.txt: " + err.Error()))
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	robots := model.Robots{
		BaseURL:          parsed.Scheme + "://" + parsed.Host,
		IsBaseURLAllowed: entry.test(r.agent(), "/"),
		IsURLScrapable:   entry.test(r.agent(), path),
		AllowedPaths:     entry.allowed,
		DisallowedPaths:  entry.disallowed,
	}
	if !robots.IsBaseURLAllowed {
		return model.Fail[model.Robots](model.ForbiddenMarker("Not allowed to scrape root URL per robots.txt"))
	}

	return model.Ok(robots)
}

func (r *RobotsService) agent() string {
	if r.userAgent == "" {
		return "*"
	}
	return r.userAgent
}

func (r *RobotsService) load(ctx context.Context, parsed *netUrl.URL) (*robotsEntry, error) {
	hostKey := strings.ToLower(parsed.Scheme + "://" + parsed.Host)
	if e, ok := r.localCache.Get(hostKey); ok {
		return e.(*robotsEntry), nil
	}

	robotsURL := netUrl.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	entry := &robotsEntry{data: data, status: resp.StatusCode, allowed: []string{}, disallowed: []string{}}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		entry.allowed, entry.disallowed = listPaths(body, r.agent())
	}
	r.localCache.Set(hostKey, entry, cache.DefaultExpiration)

	return entry, nil
}

// listPaths collects the Allow and Disallow paths of the groups that apply to agent.
// Groups naming the agent take precedence over the wildcard group.
func listPaths(body []byte, agent string) (allowed, disallowed []string) {
	type group struct {
		agents     []string
		allowed    []string
		disallowed []string
	}
	var groups []*group
	var current *group
	lastWasRule := true

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "user-agent":
			if lastWasRule || current == nil {
				current = &group{}
				groups = append(groups, current)
			}
			current.agents = append(current.agents, strings.ToLower(value))
			lastWasRule = false
		case "allow", "disallow":
			lastWasRule = true
			if current == nil || value == "" {
				continue
			}
			if key == "allow" {
				current.allowed = append(current.allowed, value)
			} else {
				current.disallowed = append(current.disallowed, value)
			}
		}
	}

	agent = strings.ToLower(agent)
	var specific, wildcard []*group
	for _, g := range groups {
		isSpecific, isWildcard := false, false
		for _, a := range g.agents {
			if a == "*" {
				isWildcard = true
			} else if agent != "*" && a != "" && strings.Contains(agent, a) {
				isSpecific = true
			}
		}
		switch {
		case isSpecific:
			specific = append(specific, g)
		case isWildcard:
			wildcard = append(wildcard, g)
		}
	}
	selected := wildcard
	if len(specific) > 0 {
		selected = specific
	}

	seenAllowed, seenDisallowed := map[string]struct{}{}, map[string]struct{}{}
	allowed, disallowed = []string{}, []string{}
	for _, g := range selected {
		allowed = appendUnique(allowed, seenAllowed, g.allowed...)
		disallowed = appendUnique(disallowed, seenDisallowed, g.disallowed...)
	}
	return allowed, disallowed
}
