package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/resilience"
	"github.com/sells-group/company-directory/internal/store"
)

func TestReplayDeadLetters(t *testing.T) {
	st := new(mockStore)
	svc, _ := newTestService(st)

	entries := []resilience.DLQEntry{
		{ID: "dlq-1", Domain: "acme.com", Record: record(t, `{"normalized_domain": "acme.com"}`)},
		{ID: "dlq-2", Domain: "", Record: record(t, `{"company_name": "No Domain"}`), RetryCount: 1},
	}
	filter := resilience.DLQFilter{Limit: 10}

	st.On("DequeueDLQ", mock.Anything, filter).Return(entries, nil)
	st.On("GetCompany", mock.Anything, "acme.com").Return(nil, store.ErrNotFound)
	st.On("CreateCompany", mock.Anything, mock.Anything).
		Return(func(_ context.Context, rec *model.Record) *store.Company {
			return &store.Company{Record: rec, Version: 1}
		}, nil)
	st.On("RemoveDLQ", mock.Anything, "dlq-1").Return(nil).Once()
	st.On("IncrementDLQRetry", mock.Anything, "dlq-2", fixedNow.Add(4*time.Minute), mock.AnythingOfType("string")).
		Return(nil).Once()

	sum, err := svc.ReplayDeadLetters(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, ReplaySummary{Attempted: 2, Succeeded: 1, Failed: 1}, sum)
	st.AssertExpectations(t)
	st.AssertNotCalled(t, "EnqueueDLQ", mock.Anything, mock.Anything)
}

func TestReplayDeadLetters_DequeueError(t *testing.T) {
	st := new(mockStore)
	svc, _ := newTestService(st)

	st.On("DequeueDLQ", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	_, err := svc.ReplayDeadLetters(context.Background(), resilience.DLQFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dequeue dead letters")
}

func TestReplayDeadLetters_RemoveError(t *testing.T) {
	st := new(mockStore)
	svc, _ := newTestService(st)

	st.On("DequeueDLQ", mock.Anything, mock.Anything).Return([]resilience.DLQEntry{
		{ID: "dlq-1", Record: record(t, `{"normalized_domain": "acme.com"}`)},
	}, nil)
	st.On("GetCompany", mock.Anything, "acme.com").Return(nil, store.ErrNotFound)
	st.On("CreateCompany", mock.Anything, mock.Anything).
		Return(func(_ context.Context, rec *model.Record) *store.Company {
			return &store.Company{Record: rec, Version: 1}
		}, nil)
	st.On("RemoveDLQ", mock.Anything, "dlq-1").Return(errors.New("locked"))

	sum, err := svc.ReplayDeadLetters(context.Background(), resilience.DLQFilter{})
	require.Error(t, err)
	assert.Equal(t, 1, sum.Attempted)
	assert.Equal(t, 0, sum.Succeeded)
}

func TestImport_DeadLetterEnqueueFailureIsLogged(t *testing.T) {
	st := new(mockStore)
	svc, m := newTestService(st, WithDeadLetter(true))

	st.On("GetCompany", mock.Anything, "acme.com").Return(nil, errors.New("permission denied"))
	st.On("EnqueueDLQ", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := svc.Import(context.Background(), record(t, `{"normalized_domain": "acme.com"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DeadLettered.WithLabelValues("permanent")))
}
