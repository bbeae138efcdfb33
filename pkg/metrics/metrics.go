// Package metrics defines the Prometheus collectors for the index, the query
// engine and its collaborators, and exposes an HTTP handler for scraping.
// Every recording method is safe to call on a nil *Metrics, so library users
// that do not want metrics pass nil.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	DocsIndexedTotal   prometheus.Counter
	DocsRemovedTotal   prometheus.Counter
	DocumentCount      prometheus.Gauge
	VocabularySize     prometheus.Gauge
	IndexSizeBytes     prometheus.Gauge
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount prometheus.Histogram
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	SnapshotsTotal     *prometheus.CounterVec
	EventsTotal        *prometheus.CounterVec

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry, so
// several indexes (and tests) can live in one process.
func New() *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "textindex_docs_indexed_total",
				Help: "Total documents added or replaced.",
			},
		),
		DocsRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "textindex_docs_removed_total",
				Help: "Total documents removed.",
			},
		),
		DocumentCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "textindex_documents",
				Help: "Documents currently stored in the index.",
			},
		),
		VocabularySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "textindex_vocabulary_terms",
				Help: "Distinct terms in the inverted index.",
			},
		),
		IndexSizeBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "textindex_size_bytes",
				Help: "Approximate memory used by postings.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textindex_search_queries_total",
				Help: "Total search queries by result type (hit, zero_result).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "textindex_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "textindex_search_results_count",
				Help:    "Number of results returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "textindex_cache_hits_total",
				Help: "Total query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "textindex_cache_misses_total",
				Help: "Total query cache misses.",
			},
		),
		SnapshotsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textindex_snapshots_total",
				Help: "Snapshot save and load operations by operation and status.",
			},
			[]string{"op", "status"},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textindex_document_events_total",
				Help: "Document events consumed by operation and status.",
			},
			[]string{"op", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textindex_http_requests_total",
				Help: "HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "textindex_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "textindex_http_requests_in_flight",
				Help: "HTTP requests currently being served.",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.DocsIndexedTotal,
		m.DocsRemovedTotal,
		m.DocumentCount,
		m.VocabularySize,
		m.IndexSizeBytes,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.SnapshotsTotal,
		m.EventsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Registry exposes the underlying registry, e.g. for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveIndex records n adds or replaces and the resulting index shape.
func (m *Metrics) ObserveIndex(n, docs, terms int, size int64) {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Add(float64(n))
	m.observeShape(docs, terms, size)
}

// ObserveRemove records a removal and the resulting index shape.
func (m *Metrics) ObserveRemove(docs, terms int, size int64) {
	if m == nil {
		return
	}
	m.DocsRemovedTotal.Inc()
	m.observeShape(docs, terms, size)
}

// ObserveShape updates the gauges without counting a mutation, e.g. after
// a snapshot import.
func (m *Metrics) ObserveShape(docs, terms int, size int64) {
	if m == nil {
		return
	}
	m.observeShape(docs, terms, size)
}

func (m *Metrics) observeShape(docs, terms int, size int64) {
	m.DocumentCount.Set(float64(docs))
	m.VocabularySize.Set(float64(terms))
	m.IndexSizeBytes.Set(float64(size))
}

// ObserveSearch records one query. cacheStatus is "computed" for an
// executed query and "hit" for one served from the cache.
func (m *Metrics) ObserveSearch(cacheStatus string, results int, elapsed time.Duration) {
	if m == nil {
		return
	}
	resultType := "hit"
	if results == 0 {
		resultType = "zero_result"
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	m.SearchResultsCount.Observe(float64(results))
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
		return
	}
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) ObserveSnapshot(op string, err error) {
	if m == nil {
		return
	}
	m.SnapshotsTotal.WithLabelValues(op, statusOf(err)).Inc()
}

func (m *Metrics) ObserveEvent(op string, err error) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(op, statusOf(err)).Inc()
}

// HTTPStarted and HTTPFinished bracket one served request.
func (m *Metrics) HTTPStarted() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

func (m *Metrics) HTTPFinished(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
