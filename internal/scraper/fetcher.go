package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// maxPageBytes caps how much of a page is read before parsing.
const maxPageBytes = 8 << 20

type FetcherConfig struct {
	RequestsPerSecond float64
	Timeout           time.Duration
	UserAgent         string
}

// Fetcher is the HTTP client shared by all scrapers. Requests wait on a
// single token bucket so every platform sees the configured rate.
type Fetcher struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	UserAgent  string
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Fetcher{
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Limiter:    rate.NewLimiter(limit, 1),
		UserAgent:  cfg.UserAgent,
	}
}

// Do handles the headers and rate limiting.
func (f *Fetcher) Do(req *http.Request) (*http.Response, error) {
	if err := f.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	return f.HTTPClient.Do(req)
}

// Page fetches url and parses the body as HTML.
func (f *Fetcher) Page(ctx context.Context, url string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}
