package importer

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/resilience"
	"github.com/sells-group/company-directory/internal/store"
)

type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) GetCompany(ctx context.Context, domain string) (*store.Company, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Company), args.Error(1)
}

func (m *mockStore) CreateCompany(ctx context.Context, rec *model.Record) (*store.Company, error) {
	args := m.Called(ctx, rec)
	if f, ok := args.Get(0).(func(context.Context, *model.Record) *store.Company); ok {
		return f(ctx, rec), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Company), args.Error(1)
}

func (m *mockStore) UpdateCompany(ctx context.Context, rec *model.Record, version int64) (*store.Company, error) {
	args := m.Called(ctx, rec, version)
	if f, ok := args.Get(0).(func(context.Context, *model.Record, int64) *store.Company); ok {
		return f(ctx, rec, version), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Company), args.Error(1)
}

func (m *mockStore) DeleteCompany(ctx context.Context, domain string) error {
	return m.Called(ctx, domain).Error(0)
}

func (m *mockStore) ListCompanies(ctx context.Context, filter store.CompanyFilter) ([]store.Company, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Company), args.Error(1)
}

func (m *mockStore) CountCompanies(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) RestoreCompanies(ctx context.Context, recs []*model.Record) (int64, error) {
	args := m.Called(ctx, recs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]resilience.DLQEntry), args.Error(1)
}

func (m *mockStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	return m.Called(ctx, id, nextRetryAt, lastErr).Error(0)
}

func (m *mockStore) RemoveDLQ(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) CountDLQ(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
