// Package scraper pulls raw track metadata out of music store pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"djutils-srv/internal/extract"
	"djutils-srv/internal/metrics"
	"djutils-srv/internal/models"
)

var ErrNoScraper = errors.New("no scraper for platform")

// Scraper returns the raw field mapping of one track page.
type Scraper interface {
	Scrape(ctx context.Context, url string) (map[string]any, error)
}

type Registry struct {
	scrapers map[models.PlatformName]Scraper
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRegistry wires the Beatport and Traxsource scrapers onto one fetcher.
func NewRegistry(f *Fetcher, m *metrics.Metrics, logger *slog.Logger) *Registry {
	r := &Registry{
		scrapers: map[models.PlatformName]Scraper{},
		metrics:  m,
		logger:   logger,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.Register(models.PlatformBeatport, NewBeatport(f))
	r.Register(models.PlatformTraxsource, NewTraxsource(f))
	return r
}

func (r *Registry) Register(p models.PlatformName, s Scraper) {
	r.scrapers[p] = s
}

// Scrape dispatches url to the scraper of its platform.
func (r *Registry) Scrape(ctx context.Context, url string) (map[string]any, error) {
	platform, _ := extract.ClassifyPlatform(url)
	s, ok := r.scrapers[platform]
	if !ok {
		return nil, fmt.Errorf("%s (%s): %w", url, platform, ErrNoScraper)
	}

	start := time.Now()
	data, err := s.Scrape(ctx, url)
	r.metrics.ObserveScrape(string(platform), start, err)
	if err != nil {
		r.logger.Warn("scrape failed", "platform", platform, "url", url, "error", err)
		return nil, err
	}
	r.logger.Debug("scraped page", "platform", platform, "url", url, "fields", len(data))
	return data, nil
}

// Track scrapes url and normalizes the result. The track URL is always the
// requested one.
func (r *Registry) Track(ctx context.Context, url string) (models.TrackRecord, error) {
	raw, err := r.Scrape(ctx, url)
	if err != nil {
		return models.TrackRecord{}, err
	}
	t, err := extract.Normalize(raw)
	if err != nil {
		return models.TrackRecord{}, fmt.Errorf("normalize %s: %w", url, err)
	}
	t.URL = url
	return t, nil
}
