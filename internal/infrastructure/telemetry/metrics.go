package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopsync/backend/internal/domain/integration"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Namespace is the prefix for all metrics.
	// Default: "shopsync"
	Namespace string

	// DurationBuckets are the histogram buckets for run duration in seconds.
	// Default: one minute to two hours
	DurationBuckets []float64
}

// SyncMetrics records reconciliation runs in a dedicated Prometheus registry.
// A nil *SyncMetrics is valid and records nothing.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type SyncMetrics struct {
	registry *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	runDurationSeconds *prometheus.HistogramVec
	itemsTotal         *prometheus.CounterVec
	updateFailures     prometheus.Counter
	lastSuccess        *prometheus.GaugeVec
}

// NewSyncMetrics creates the sync metrics and registers them with Go and process collectors
func NewSyncMetrics(cfg MetricsConfig) *SyncMetrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "shopsync"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = []float64{60, 300, 600, 1200, 1800, 3600, 7200}
	}

	m := &SyncMetrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "sync_runs_total",
				Help:      "Total number of finished sync runs by status.",
			},
			[]string{"status"},
		),
		runDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "sync_run_duration_seconds",
				Help:      "Duration of sync runs in seconds.",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"status"},
		),
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "sync_items_total",
				Help:      "Supplier items processed, by outcome (matched, updated, skipped).",
			},
			[]string{"outcome"},
		),
		updateFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "sync_update_failures_total",
				Help:      "Variant updates where at least one write failed.",
			},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "sync_last_success_timestamp_seconds",
				Help:      "Unix time of the last run per shop that finished without aborting.",
			},
			[]string{"shop"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runsTotal,
		m.runDurationSeconds,
		m.itemsTotal,
		m.updateFailures,
		m.lastSuccess,
	)
	return m
}

// ObserveRun records a finished run
func (m *SyncMetrics) ObserveRun(outcome *integration.SyncOutcome) {
	if m == nil || outcome == nil {
		return
	}

	status := outcome.Status.String()
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDurationSeconds.WithLabelValues(status).Observe(outcome.Duration().Seconds())
	m.itemsTotal.WithLabelValues("matched").Add(float64(outcome.ItemsMatched))
	m.itemsTotal.WithLabelValues("updated").Add(float64(outcome.ItemsUpdated))
	m.itemsTotal.WithLabelValues("skipped").Add(float64(outcome.ItemsSkipped))
	m.updateFailures.Add(float64(outcome.UpdateFailures))

	if outcome.Status == integration.SyncStatusSuccess || outcome.Status == integration.SyncStatusPartial {
		m.lastSuccess.WithLabelValues(outcome.Tenant).Set(float64(outcome.FinishedAt.Unix()))
	}
}

// Registry returns the underlying registry
func (m *SyncMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the registry in the Prometheus text format
func (m *SyncMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
