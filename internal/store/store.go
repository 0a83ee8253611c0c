// Package store persists company documents keyed by normalized domain. Every
// row carries an integer version and updates are conditional on it, so
// concurrent importers never overwrite each other's merges.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/resilience"
)

var (
	// ErrNotFound is returned when no company exists for a domain.
	ErrNotFound = eris.New("store: company not found")
	// ErrVersionConflict is returned when a conditional write lost a race.
	ErrVersionConflict = eris.New("store: version conflict")
)

// Company is a stored document plus its row metadata.
type Company struct {
	Record    *model.Record `json:"company"`
	Version   int64         `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CompanyFilter specifies criteria for listing companies.
type CompanyFilter struct {
	DomainPrefix string `json:"domain_prefix,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for company documents.
type Store interface {
	// Companies
	GetCompany(ctx context.Context, domain string) (*Company, error)
	CreateCompany(ctx context.Context, rec *model.Record) (*Company, error)
	UpdateCompany(ctx context.Context, rec *model.Record, version int64) (*Company, error)
	DeleteCompany(ctx context.Context, domain string) error
	ListCompanies(ctx context.Context, filter CompanyFilter) ([]Company, error)
	CountCompanies(ctx context.Context) (int, error)
	RestoreCompanies(ctx context.Context, recs []*model.Record) (int64, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// NormalizeDomain lowercases and trims a domain for use as a lookup key.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// rowKey returns the id and domain a record is stored under.
func rowKey(rec *model.Record) (id, domain string, err error) {
	if rec == nil {
		return "", "", eris.New("store: nil record")
	}
	id = rec.ID.Trim()
	domain = NormalizeDomain(string(rec.NormalizedDomain))
	if id == "" || domain == "" {
		return "", "", eris.New("store: id and normalized_domain are required")
	}
	return id, domain, nil
}

const defaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
