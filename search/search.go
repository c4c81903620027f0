// Package search executes the metered search capability. Two strategies
// exist: live retrieval of an HTML search page, and a deterministic
// static generator. Live failures fall back to static internally, so
// callers never see an execution error.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provenance tags reported alongside a result set.
const (
	ModeLive           = "live"
	ModeStaticFallback = "static fallback"
	ModeForcedStatic   = "forced static"
)

// Provider executes a search query, returning a bounded result list and
// the provenance tag of the strategy that produced it.
type Provider interface {
	Execute(ctx context.Context, query string) ([]Result, string)
}

// Defaults for the live strategy.
const (
	DefaultEndpoint   = "https://html.duckduckgo.com/html/"
	DefaultMaxResults = 5
	DefaultTimeout    = 5 * time.Second
)

const maxSearchResponseBytes = 2 << 20

const userAgent = "MicroSearch/1.0 (+https://github.com/derek2403/MicroSearch)"

// Config selects and tunes the strategy.
type Config struct {
	Mode       string // "live" or "static"
	MaxResults int
	Endpoint   string
	Timeout    time.Duration
}

// NewProvider selects the strategy once from configuration. Everything
// unset falls back to defaults.
func NewProvider(cfg Config) Provider {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Mode == "static" {
		return &StaticProvider{Max: cfg.MaxResults}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &LiveProvider{
		endpoint: cfg.Endpoint,
		max:      cfg.MaxResults,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// StaticProvider derives deterministic results from the query string
// alone. No network, cannot fail.
type StaticProvider struct {
	Max int
}

// Execute implements Provider.
func (s *StaticProvider) Execute(_ context.Context, query string) ([]Result, string) {
	max := s.Max
	if max <= 0 {
		max = DefaultMaxResults
	}
	return syntheticResults(query, max), ModeForcedStatic
}

// LiveProvider retrieves an HTML search page and parses a bounded number
// of results out of it. Transport errors, non-200 statuses, and pages
// that parse to zero results all fall back to the static generator.
type LiveProvider struct {
	endpoint string
	max      int
	client   *http.Client
}

// Execute implements Provider.
func (l *LiveProvider) Execute(ctx context.Context, query string) ([]Result, string) {
	results, err := l.fetch(ctx, query)
	if err != nil || len(results) == 0 {
		if err == nil {
			err = errors.New("no results parsed")
		}
		log.Printf("live search falling back to static (query=%q reason=%v)", query, err)
		return syntheticResults(query, l.max), ModeStaticFallback
	}
	return results, ModeLive
}

func (l *LiveProvider) fetch(ctx context.Context, query string) ([]Result, error) {
	u, err := url.Parse(l.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %d", resp.StatusCode)
	}
	return parseResults(io.LimitReader(resp.Body, maxSearchResponseBytes), l.max)
}

// syntheticResults is the deterministic generator shared by the static
// strategy and the live fallback.
func syntheticResults(query string, max int) []Result {
	slug := querySlug(query)
	wiki := url.PathEscape(strings.ReplaceAll(query, " ", "_"))
	all := []Result{
		{
			Title:   fmt.Sprintf("%s: overview and key facts", query),
			URL:     fmt.Sprintf("https://en.wikipedia.org/wiki/%s", wiki),
			Snippet: fmt.Sprintf("A concise summary of %s with background, terminology, and pointers to primary sources.", query),
		},
		{
			Title:   fmt.Sprintf("Latest news about %s", query),
			URL:     fmt.Sprintf("https://news.example.com/topics/%s", slug),
			Snippet: fmt.Sprintf("Recent coverage and developments related to %s.", query),
		},
		{
			Title:   fmt.Sprintf("%s explained", query),
			URL:     fmt.Sprintf("https://explained.example.com/%s", slug),
			Snippet: fmt.Sprintf("A beginner-friendly explanation of %s and why it matters.", query),
		},
		{
			Title:   fmt.Sprintf("Community discussion: %s", query),
			URL:     fmt.Sprintf("https://forum.example.com/t/%s", slug),
			Snippet: fmt.Sprintf("Questions, answers, and practical experience reports about %s.", query),
		},
		{
			Title:   fmt.Sprintf("%s: analysis and trends", query),
			URL:     fmt.Sprintf("https://research.example.com/reports/%s", slug),
			Snippet: fmt.Sprintf("Long-form analysis of adoption, trends, and open problems around %s.", query),
		},
	}
	if max < len(all) {
		all = all[:max]
	}
	return all
}

func querySlug(query string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(query)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "search"
	}
	return s
}
