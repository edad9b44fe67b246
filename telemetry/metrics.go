// Package telemetry holds the Prometheus collectors and the tracer used by
// the storage layer, the importer and the reconciler.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/boa-portal/membership-sync/db"
	"github.com/boa-portal/membership-sync/importer"
	"github.com/boa-portal/membership-sync/reconciler"
)

const namespace = "membership_sync"

// Metrics implements db.MetricsCollector, importer.Recorder and
// reconciler.Recorder on top of one Prometheus registry.
type Metrics struct {
	queryTotal   *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec

	importBatches  prometheus.Counter
	importRows     *prometheus.CounterVec
	importDuration prometheus.Histogram

	reconcilePasses   *prometheus.CounterVec
	reconcileRows     *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queryTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "queries_total",
			Help:      "Total number of SQL statements by leading verb and result.",
		}, []string{"operation", "result"}),
		queryLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Latency distribution of SQL statements.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5,
			},
		}, []string{"operation"}),
		importBatches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "batches_total",
			Help:      "Total number of completed bulk imports.",
		}),
		importRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Total number of imported spreadsheet rows by result.",
		}, []string{"result"}),
		importDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Wall time of bulk imports.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		reconcilePasses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "passes_total",
			Help:      "Total number of reconciliation passes by result (ok, error, skipped).",
		}, []string{"result"}),
		reconcileRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "rows_total",
			Help:      "Total number of users whose membership flag was changed.",
		}, []string{"direction"}),
		reconcileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Wall time of reconciliation passes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) RecordQuery(operation string, d time.Duration, success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	m.queryTotal.WithLabelValues(operation, result).Inc()
	m.queryLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) ObserveImport(res *importer.ImportResult, elapsed time.Duration) {
	m.importBatches.Inc()
	m.importRows.WithLabelValues("success").Add(float64(res.Success))
	m.importRows.WithLabelValues("failed").Add(float64(res.Failed))
	m.importDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveReconcile(s reconciler.Stats, elapsed time.Duration) {
	result := "ok"
	if s.Err != nil {
		result = "error"
	}
	m.reconcilePasses.WithLabelValues(result).Inc()
	m.reconcileRows.WithLabelValues("activated").Add(float64(s.Activated))
	m.reconcileRows.WithLabelValues("deactivated").Add(float64(s.Deactivated))
	m.reconcileDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveReconcileSkipped() {
	m.reconcilePasses.WithLabelValues("skipped").Inc()
}

var (
	_ db.MetricsCollector = (*Metrics)(nil)
	_ importer.Recorder   = (*Metrics)(nil)
	_ reconciler.Recorder = (*Metrics)(nil)
)
