package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "air_quality_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion runs,
// correlation queries and the live proxy endpoints.
type Metrics struct {
	// Ingestion runs, labelled by source={aqi,fires,weather}.
	RunsTotal        *prometheus.CounterVec // labels: source, outcome={success,error}
	RecordsFetched   *prometheus.CounterVec
	RecordsWritten   *prometheus.CounterVec
	RecordsSkipped   *prometheus.CounterVec
	RecordsDropped   *prometheus.CounterVec // labels: source, reason
	RunDuration      *prometheus.HistogramVec
	RecordsPublished prometheus.Counter

	// Correlation queries.
	CorrelationDuration prometheus.Histogram
	CorrelationPoints   prometheus.Histogram

	// Live proxy.
	UpstreamRequests *prometheus.CounterVec   // labels: provider, outcome={success,error}
	UpstreamDuration *prometheus.HistogramVec // labels: provider
	LiveCache        *prometheus.CounterVec   // labels: result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RecordsFetched,
		m.RecordsWritten,
		m.RecordsSkipped,
		m.RecordsDropped,
		m.RunDuration,
		m.RecordsPublished,
		m.CorrelationDuration,
		m.CorrelationPoints,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.LiveCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by source and outcome.",
		}, []string{"source", "outcome"}),
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Raw records received from upstream providers.",
		}, []string{"source"}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Canonical records committed to the store.",
		}, []string{"source"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Records already present in the store.",
		}, []string{"source"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records discarded during normalization, by reason.",
		}, []string{"source", "reason"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-write run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Committed records published to Kafka.",
		}),
		CorrelationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "correlation_duration_seconds",
			Help:      "Duration of a correlation query including both series fetches.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		CorrelationPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "correlation_points",
			Help:      "Number of points returned per correlation query.",
			Buckets:   []float64{0, 1, 7, 14, 30, 60, 90, 180, 365},
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		LiveCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_cache_total",
			Help:      "Live proxy cache lookups by result.",
		}, []string{"result"}),
	}
}
