// Package metrics holds the Prometheus instruments for imports and star
// calculations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the import service and API.
type Metrics struct {
	// Import outcomes by action: "created", "updated", "failed"
	ImportOutcome *prometheus.CounterVec

	// Version conflicts that forced a reload and re-merge
	VersionConflicts prometheus.Counter

	// End-to-end import latency including retries
	ImportLatency prometheus.Histogram

	// Documents parked in the dead letter queue, by error type
	DeadLettered *prometheus.CounterVec

	// Star bundles computed
	StarCalculations prometheus.Counter
}

// New registers all metrics with reg. Pass prometheus.NewRegistry() in tests
// to avoid clashing with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ImportOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_import_outcomes_total",
			Help: "Total company document imports by outcome",
		}, []string{"action"}),

		VersionConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "directory_import_version_conflicts_total",
			Help: "Conditional writes rejected because the stored version moved",
		}),

		ImportLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "directory_import_duration_seconds",
			Help:    "Duration of a single document import including conflict retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		DeadLettered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_import_dead_lettered_total",
			Help: "Failed imports parked in the dead letter queue",
		}, []string{"error_type"}),

		StarCalculations: f.NewCounter(prometheus.CounterOpts{
			Name: "directory_star_calculations_total",
			Help: "Star bundles computed",
		}),
	}
}

// IncrementOutcome records an import outcome.
func (m *Metrics) IncrementOutcome(action string) {
	if m != nil {
		m.ImportOutcome.WithLabelValues(action).Inc()
	}
}

// IncrementConflict records a lost conditional write.
func (m *Metrics) IncrementConflict() {
	if m != nil {
		m.VersionConflicts.Inc()
	}
}

// ObserveImportLatency records how long an import took.
func (m *Metrics) ObserveImportLatency(d time.Duration) {
	if m != nil {
		m.ImportLatency.Observe(d.Seconds())
	}
}

// IncrementDeadLettered records a document sent to the dead letter queue.
func (m *Metrics) IncrementDeadLettered(errorType string) {
	if m != nil {
		m.DeadLettered.WithLabelValues(errorType).Inc()
	}
}

// IncrementStarCalculations records a computed star bundle.
func (m *Metrics) IncrementStarCalculations() {
	if m != nil {
		m.StarCalculations.Inc()
	}
}
