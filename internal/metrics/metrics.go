// Package metrics holds the Prometheus collectors for the library service,
// the scrapers and the matcher.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "djutils"

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	Upserts        *prometheus.CounterVec
	Scrapes        *prometheus.CounterVec
	ScrapeDuration *prometheus.HistogramVec
	MatchRequests  prometheus.Counter
	MatchPoolSize  prometheus.Histogram
	MatchScores    prometheus.Histogram
	CacheLookups   *prometheus.CounterVec
}

func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Upserts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upserts_total",
		Help:      "Upserts by record kind and result.",
	}, []string{"kind", "result"})

	m.Scrapes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scrapes_total",
		Help:      "Page scrapes by platform and result.",
	}, []string{"platform", "result"})

	m.ScrapeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scrape_duration_seconds",
		Help:      "Duration of page scrapes in seconds, rate limiter wait included.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"platform"})

	m.MatchRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "match_requests_total",
		Help:      "Similar-track searches served.",
	})

	m.MatchPoolSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "match_pool_size",
		Help:      "Number of stored tracks scored per search.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	m.MatchScores = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "match_score",
		Help:      "Aggregate similarity scores returned.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	m.CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "platform_cache_lookups_total",
		Help:      "Platform id cache lookups by result.",
	}, []string{"result"})

	for _, c := range []prometheus.Collector{
		m.Upserts, m.Scrapes, m.ScrapeDuration,
		m.MatchRequests, m.MatchPoolSize, m.MatchScores, m.CacheLookups,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveUpsert(kind string, err error) {
	if m == nil {
		return
	}
	m.Upserts.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) ObserveScrape(platform string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.Scrapes.WithLabelValues(platform, result(err)).Inc()
	m.ScrapeDuration.WithLabelValues(platform).Observe(time.Since(start).Seconds())
}

// ObserveMatch records one search: the scored pool size and every returned score.
func (m *Metrics) ObserveMatch(poolSize int, scores []float64) {
	if m == nil {
		return
	}
	m.MatchRequests.Inc()
	m.MatchPoolSize.Observe(float64(poolSize))
	for _, s := range scores {
		m.MatchScores.Observe(s)
	}
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}
