// Package monitoring watches directory health: store reachability, row
// counts and dead letter backlog. It raises webhook alerts when thresholds
// are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Snapshot holds a point-in-time view of directory health.
type Snapshot struct {
	StoreHealthy bool      `json:"store_healthy"`
	StoreError   string    `json:"store_error,omitempty"`
	Companies    int       `json:"companies"`
	DLQDepth     int       `json:"dlq_depth"`
	CollectedAt  time.Time `json:"collected_at"`
}

// Source is the part of store.Store the collector reads.
type Source interface {
	Ping(ctx context.Context) error
	CountCompanies(ctx context.Context) (int, error)
	CountDLQ(ctx context.Context) (int, error)
}

// Collector gathers snapshots from a store.
type Collector struct {
	source Source
	now    func() time.Time
}

// NewCollector creates a new snapshot collector.
func NewCollector(src Source) *Collector {
	return &Collector{source: src, now: time.Now}
}

// Collect gathers a snapshot. An unreachable store is reported in the
// snapshot rather than as an error so it can raise an alert.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{CollectedAt: c.now().UTC()}

	if err := c.source.Ping(ctx); err != nil {
		snap.StoreError = err.Error()
		return snap, nil
	}
	snap.StoreHealthy = true

	n, err := c.source.CountCompanies(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count companies")
	}
	snap.Companies = n

	depth, err := c.source.CountDLQ(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dlq")
	}
	snap.DLQDepth = depth

	return snap, nil
}
