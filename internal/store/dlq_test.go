package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-directory/internal/resilience"
)

func newDLQEntry(t *testing.T, id, domain string, nextRetry time.Time) resilience.DLQEntry {
	t.Helper()
	now := time.Now().UTC()
	return resilience.DLQEntry{
		ID:           id,
		Domain:       domain,
		Record:       testRecord(t, `{"normalized_domain": "`+domain+`", "tagline": "queued"}`),
		Error:        "database is locked",
		ErrorType:    "transient",
		MaxRetries:   3,
		NextRetryAt:  nextRetry,
		CreatedAt:    now,
		LastFailedAt: now,
	}
}

func TestSQLite_DLQ_EnqueueAndDequeue(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	require.NoError(t, st.EnqueueDLQ(ctx, newDLQEntry(t, "d1", "acme.com", past)))
	require.NoError(t, st.EnqueueDLQ(ctx, newDLQEntry(t, "d2", "globex.com", time.Now().Add(time.Hour))))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "d1", entries[0].ID)
	assert.Equal(t, "acme.com", entries[0].Domain)
	require.NotNil(t, entries[0].Record)
	assert.Equal(t, "queued", string(entries[0].Record.Tagline))

	n, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_DLQ_GeneratesID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnqueueDLQ(ctx, newDLQEntry(t, "", "acme.com", time.Now().Add(-time.Second))))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
}

func TestSQLite_DLQ_FilterByErrorType(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	transient := newDLQEntry(t, "d1", "acme.com", past)
	permanent := newDLQEntry(t, "d2", "globex.com", past)
	permanent.ErrorType = "permanent"
	require.NoError(t, st.EnqueueDLQ(ctx, transient))
	require.NoError(t, st.EnqueueDLQ(ctx, permanent))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{ErrorType: "permanent"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "d2", entries[0].ID)

	limited, err := st.DequeueDLQ(ctx, resilience.DLQFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_DLQ_IncrementRetryExhausts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := newDLQEntry(t, "d1", "acme.com", time.Now().Add(-time.Minute))
	entry.MaxRetries = 1
	require.NoError(t, st.EnqueueDLQ(ctx, entry))

	require.NoError(t, st.IncrementDLQRetry(ctx, "d1", time.Now().Add(-time.Second), "still locked"))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = st.IncrementDLQRetry(ctx, "missing", time.Now(), "x")
	assert.ErrorContains(t, err, "dlq entry not found")
}

func TestSQLite_DLQ_Remove(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnqueueDLQ(ctx, newDLQEntry(t, "d1", "acme.com", time.Now())))
	require.NoError(t, st.RemoveDLQ(ctx, "d1"))

	n, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
