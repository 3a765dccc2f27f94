// Package metrics defines the Prometheus collectors used by the engine and
// its services and exposes an HTTP handler for scraping. All recording
// methods are safe on a nil *Metrics so library users can opt out.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsIndexedTotal     prometheus.Counter
	DocsDeletedTotal     prometheus.Counter
	IndexFlushesTotal    *prometheus.CounterVec
	IndexCommitsTotal    *prometheus.CounterVec
	CommitDuration       prometheus.Histogram
	MergesTotal          prometheus.Counter
	SegmentCount         prometheus.Gauge
	LiveDocs             prometheus.Gauge
	IngestEventsTotal    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg means
// the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of hits returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents added to the writer.",
			},
		),
		DocsDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_deleted_total",
				Help: "Total previously-live documents marked deleted.",
			},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_flushes_total",
				Help: "Total buffer flushes into pending segments by status.",
			},
			[]string{"status"},
		),
		IndexCommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_commits_total",
				Help: "Total commits by status.",
			},
			[]string{"status"},
		),
		CommitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_commit_duration_seconds",
				Help:    "Commit latency in seconds, storage writes included.",
				Buckets: prometheus.DefBuckets,
			},
		),
		MergesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_merges_total",
				Help: "Total segment merges.",
			},
		),
		SegmentCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_segments",
				Help: "Number of segments in the published snapshot.",
			},
		),
		LiveDocs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_live_docs",
				Help: "Number of live documents in the published snapshot.",
			},
		),
		IngestEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_events_total",
				Help: "Ingest events consumed by operation and status.",
			},
			[]string{"op", "status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.DocsDeletedTotal,
		m.IndexFlushesTotal,
		m.IndexCommitsTotal,
		m.CommitDuration,
		m.MergesTotal,
		m.SegmentCount,
		m.LiveDocs,
		m.IngestEventsTotal,
	)

	return m
}

func (m *Metrics) DocIndexed() {
	if m != nil {
		m.DocsIndexedTotal.Inc()
	}
}

func (m *Metrics) DocsDeleted(n int) {
	if m != nil && n > 0 {
		m.DocsDeletedTotal.Add(float64(n))
	}
}

func (m *Metrics) Flush(status string) {
	if m != nil {
		m.IndexFlushesTotal.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) Commit(status string, d time.Duration) {
	if m != nil {
		m.IndexCommitsTotal.WithLabelValues(status).Inc()
		m.CommitDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) Merge() {
	if m != nil {
		m.MergesTotal.Inc()
	}
}

// Snapshot records the shape of a newly published snapshot.
func (m *Metrics) Snapshot(segments, liveDocs int) {
	if m != nil {
		m.SegmentCount.Set(float64(segments))
		m.LiveDocs.Set(float64(liveDocs))
	}
}

func (m *Metrics) Search(resultType, cacheStatus string, hits int, d time.Duration) {
	if m != nil {
		m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		m.SearchLatency.WithLabelValues(cacheStatus).Observe(d.Seconds())
		m.SearchResultsCount.Observe(float64(hits))
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) IngestEvent(op, status string) {
	if m != nil {
		m.IngestEventsTotal.WithLabelValues(op, status).Inc()
	}
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
