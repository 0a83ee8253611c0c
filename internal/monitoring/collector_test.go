package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource implements Source for testing.
type fakeSource struct {
	pingErr   error
	companies int
	dlqCount  int
	countErr  error
	dlqErr    error
}

func (f *fakeSource) Ping(context.Context) error { return f.pingErr }

func (f *fakeSource) CountCompanies(context.Context) (int, error) {
	return f.companies, f.countErr
}

func (f *fakeSource) CountDLQ(context.Context) (int, error) {
	return f.dlqCount, f.dlqErr
}

func TestCollector_Collect(t *testing.T) {
	c := NewCollector(&fakeSource{companies: 42, dlqCount: 3})
	c.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.StoreHealthy)
	assert.Empty(t, snap.StoreError)
	assert.Equal(t, 42, snap.Companies)
	assert.Equal(t, 3, snap.DLQDepth)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), snap.CollectedAt)
}

func TestCollector_StoreDown(t *testing.T) {
	c := NewCollector(&fakeSource{pingErr: errors.New("connection refused"), companies: 42})

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.StoreHealthy)
	assert.Equal(t, "connection refused", snap.StoreError)
	assert.Zero(t, snap.Companies)
}

func TestCollector_CountErrors(t *testing.T) {
	_, err := NewCollector(&fakeSource{countErr: errors.New("boom")}).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count companies")

	_, err = NewCollector(&fakeSource{dlqErr: errors.New("boom")}).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count dlq")
}
