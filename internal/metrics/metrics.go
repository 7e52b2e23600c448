// Package metrics provides Prometheus metrics for the document store.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus instruments for the store.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	HeadConflictsTotal   prometheus.Counter
	MergeConflictsTotal  prometheus.Counter
	MergesCompletedTotal prometheus.Counter

	VersionsCreatedTotal prometheus.Counter
	DiffChangesTotal     prometheus.Counter

	LocksActiveGauge prometheus.Gauge
}

// New creates the metric set and registers it on reg. Passing a fresh
// registry keeps tests independent; production wires
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verso_operations_total",
				Help: "Total store operations by name and status",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verso_operation_duration_seconds",
				Help:    "Duration of store operations in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
		HeadConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verso_head_conflicts_total",
				Help: "Version commits lost to a concurrent head move",
			},
		),
		MergeConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verso_merge_conflicts_total",
				Help: "Conflicts reported by merge attempts",
			},
		),
		MergesCompletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verso_merges_completed_total",
				Help: "Merges that produced a merged version",
			},
		),
		VersionsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verso_versions_created_total",
				Help: "Versions committed to the graph",
			},
		),
		DiffChangesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verso_diff_changes_total",
				Help: "Individual changes produced by diff computations",
			},
		),
		LocksActiveGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "verso_locks_active",
				Help: "Currently active version locks",
			},
		),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.HeadConflictsTotal,
		m.MergeConflictsTotal,
		m.MergesCompletedTotal,
		m.VersionsCreatedTotal,
		m.DiffChangesTotal,
		m.LocksActiveGauge,
	)
	return m
}

// Nop returns a metric set on a throwaway registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// RecordOperation records one completed operation.
func (m *Metrics) RecordOperation(operation, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
