package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps the pragmas below in effect for every statement
	// and serializes writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	domain     TEXT NOT NULL UNIQUE,
	doc        TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	domain         TEXT NOT NULL,
	record         TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	last_failed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteCompanyCols = `doc, version, created_at, updated_at`

func (s *SQLiteStore) GetCompany(ctx context.Context, domain string) (*Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyCols+` FROM companies WHERE domain = ?`,
		NormalizeDomain(domain),
	)
	return scanCompany(row)
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, rec *model.Record) (*Company, error) {
	id, domain, err := rowKey(rec)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal company")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO companies (id, domain, doc, version, created_at, updated_at) VALUES (?, ?, ?, 1, ?, ?)`,
		id, domain, string(doc), now, now,
	)
	if isSQLiteUnique(err) {
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert company %s", domain)
	}
	return &Company{Record: rec.Clone(), Version: 1, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *SQLiteStore) UpdateCompany(ctx context.Context, rec *model.Record, version int64) (*Company, error) {
	id, domain, err := rowKey(rec)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal company")
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET domain = ?, doc = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		domain, string(doc), now, id, version,
	)
	if isSQLiteUnique(err) {
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update company %s", domain)
	}
	if err := checkRowsAffected(res, ErrVersionConflict); err != nil {
		return nil, err
	}
	return &Company{Record: rec.Clone(), Version: version + 1, UpdatedAt: now}, nil
}

func (s *SQLiteStore) DeleteCompany(ctx context.Context, domain string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM companies WHERE domain = ?`, NormalizeDomain(domain))
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete company %s", domain)
	}
	return checkRowsAffected(res, ErrNotFound)
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]Company, error) {
	query := `SELECT ` + sqliteCompanyCols + ` FROM companies WHERE 1=1`
	args := []any{}

	if prefix := NormalizeDomain(filter.DomainPrefix); prefix != "" {
		query += ` AND substr(domain, 1, ?) = ?`
		args = append(args, len(prefix), prefix)
	}
	query += ` ORDER BY domain ASC LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) CountCompanies(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count companies")
}

// RestoreCompanies writes documents unconditionally, replacing any row with
// the same domain and bumping its version so in-flight imports re-merge.
func (s *SQLiteStore) RestoreCompanies(ctx context.Context, recs []*model.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: restore begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO companies (id, domain, doc, version, created_at, updated_at) VALUES (?, ?, ?, 1, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET id = excluded.id, doc = excluded.doc,
		   version = companies.version + 1, updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: restore prepare")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, rec := range recs {
		id, domain, err := rowKey(rec)
		if err != nil {
			return 0, err
		}
		doc, err := json.Marshal(rec)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal company %s", domain)
		}
		if _, err := stmt.ExecContext(ctx, id, domain, string(doc), now, now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: restore company %s", domain)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: restore commit")
	}
	return n, nil
}

// Dead letter queue methods

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	recJSON, err := json.Marshal(entry.Record)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dlq record")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, domain, record, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type, retry_count = excluded.retry_count,
		   next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.Domain, string(recJSON), entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt.UTC(), entry.CreatedAt.UTC(), entry.LastFailedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, domain, record, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{time.Now().UTC()}

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	query += ` ORDER BY next_retry_at ASC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var recJSON string
		if err := rows.Scan(&e.ID, &e.Domain, &recJSON, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		if err := json.Unmarshal([]byte(recJSON), &e.Record); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal dlq record")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt.UTC(), lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, eris.Errorf("dlq entry not found: %s", id))
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

// checkRowsAffected returns missing when an exec touched no rows.
func checkRowsAffected(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return missing
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCompany(row scannable) (*Company, error) {
	var c Company
	var doc string
	err := row.Scan(&doc, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan company")
	}

	c.Record = &model.Record{}
	if err := json.Unmarshal([]byte(doc), c.Record); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal company")
	}
	return &c, nil
}
