// Package metrics holds the Prometheus instruments for fetch sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all archive-scout metrics.
	Namespace = "archive_scout"
)

// Metrics holds all Prometheus metrics for the fetch pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	SessionsTotal     *prometheus.CounterVec
	PagesTotal        *prometheus.CounterVec
	ScrapesTotal      *prometheus.CounterVec
	EntriesTotal      prometheus.Counter
	CacheLookupsTotal *prometheus.CounterVec
	PageDuration      prometheus.Histogram
}

// New creates and registers the metrics on reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_total",
			Help:      "Fetch sessions by terminal outcome",
		}, []string{"outcome"}),
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pages_total",
			Help:      "Search result pages requested",
		}, []string{"result"}),
		ScrapesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "scrapes_total",
			Help:      "Item detail pages scraped",
		}, []string{"result"}),
		EntriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "entries_total",
			Help:      "Unique entries absorbed into sessions",
		}),
		CacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result",
		}, []string{"result"}),
		PageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "page_duration_seconds",
			Help:      "Latency of search page requests",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) SessionFinished(outcome string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PageFetched(started time.Time, err error) {
	if m == nil {
		return
	}
	m.PageDuration.Observe(time.Since(started).Seconds())
	m.PagesTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ItemScraped(err error) {
	if m == nil {
		return
	}
	m.ScrapesTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) EntryAbsorbed() {
	if m == nil {
		return
	}
	m.EntriesTotal.Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(label).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
