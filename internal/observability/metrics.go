package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flood_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the flood-risk pipeline.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec // labels: outcome (ok, error)
	RunDuration    prometheus.Histogram
	LastRunSuccess prometheus.Gauge
	PipelineUp     prometheus.Gauge

	// Ingestion metrics.
	SamplesIngested    prometheus.Counter
	RowsDropped        *prometheus.CounterVec // labels: source (rainfall, tide, archive)
	CemadenRequests    *prometheus.CounterVec // labels: operation, outcome
	CemadenAPIDuration *prometheus.HistogramVec

	// Output metrics.
	RecordsComputed  prometheus.Counter
	RecordsPublished prometheus.Counter
	RiskByBand       *prometheus.GaugeVec // labels: band

	// Dashboard cache.
	CacheLookups *prometheus.CounterVec // labels: view, result (hit, miss)
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.LastRunSuccess,
		m.PipelineUp,
		m.SamplesIngested,
		m.RowsDropped,
		m.CemadenRequests,
		m.CemadenAPIDuration,
		m.RecordsComputed,
		m.RecordsPublished,
		m.RiskByBand,
		m.CacheLookups,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics that are not exposed on any registry.
// One-shot commands such as backfill use it: they serve no /metrics endpoint
// but share pipeline code that records metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics(true)
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      help("Pipeline runs by outcome."),
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      help("Wall-clock duration of a full pipeline run."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_timestamp_seconds",
			Help:      help("Unix time of the last successful run."),
		}),
		PipelineUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 while the scheduled run loop is active."),
		}),
		SamplesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rainfall_samples_ingested_total",
			Help:      help("Rainfall samples fetched from the telemetry feed."),
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      help("Input rows dropped with a diagnostic, by source."),
		}, []string{"source"}),
		CemadenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cemaden_requests_total",
			Help:      help("CEMADEN API requests by operation and outcome."),
		}, []string{"operation", "outcome"}),
		CemadenAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cemaden_api_duration_seconds",
			Help:      help("CEMADEN API request duration in seconds."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}, []string{"operation"}),
		RecordsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_records_computed_total",
			Help:      help("Risk records produced by the compositor."),
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_records_published_total",
			Help:      help("Risk records published to Kafka."),
		}),
		RiskByBand: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_records_by_band",
			Help:      help("Records per risk band in the most recent run."),
		}, []string{"band"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_cache_total",
			Help:      help("Dashboard cache lookups by view and result."),
		}, []string{"view", "result"}),
	}
}
