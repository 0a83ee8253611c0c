package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/company-directory/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1}
	checker := NewChecker(NewCollector(&fakeSource{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(&fakeSource{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	assert.Equal(t, 5*time.Minute, checker.interval)
}

func TestChecker_CheckTracksPreviousSnapshot(t *testing.T) {
	src := &fakeSource{dlqCount: 1}
	cfg := config.MonitoringConfig{DLQGrowthThreshold: 3}
	checker := NewChecker(NewCollector(src), NewAlerter(cfg), cfg)
	ctx := context.Background()

	assert.Empty(t, checker.Check(ctx))

	src.dlqCount = 4
	alerts := checker.Check(ctx)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDLQGrowth, alerts[0].Type)

	// Growth is measured against the last check, not the first.
	assert.Empty(t, checker.Check(ctx))
}
