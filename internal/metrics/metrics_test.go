package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementOutcome("created")
	m.IncrementOutcome("updated")
	m.IncrementOutcome("updated")
	m.IncrementConflict()
	m.ObserveImportLatency(20 * time.Millisecond)
	m.IncrementDeadLettered("transient")
	m.IncrementStarCalculations()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportOutcome.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImportOutcome.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VersionConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeadLettered.WithLabelValues("transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StarCalculations))

	n, err := testutil.GatherAndCount(reg, "directory_import_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementOutcome("created")
		m.IncrementConflict()
		m.ObserveImportLatency(time.Second)
		m.IncrementDeadLettered("permanent")
		m.IncrementStarCalculations()
	})
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
