package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/company-directory/internal/db"
	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/resilience"
)

// PostgresStore implements Store on a pgx pool. Documents live in a JSONB
// column; the headquarters point is mirrored into a PostGIS column.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres and returns a store over the pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	domain     TEXT NOT NULL UNIQUE,
	doc        JSONB NOT NULL,
	hq_geom    geometry(Point, 4326),
	version    BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_hq_geom ON companies USING GIST (hq_geom);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	domain         TEXT NOT NULL,
	record         JSONB NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, domain string) (*Company, error) {
	var c Company
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc, version, created_at, updated_at FROM companies WHERE domain = $1`,
		NormalizeDomain(domain),
	).Scan(&doc, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %s", domain)
	}

	c.Record = &model.Record{}
	if err := json.Unmarshal(doc, c.Record); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal company")
	}
	return &c, nil
}

func (s *PostgresStore) CreateCompany(ctx context.Context, rec *model.Record) (*Company, error) {
	id, domain, doc, geomBytes, err := encodeRow(rec)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO companies (id, domain, doc, hq_geom, version, created_at, updated_at) VALUES ($1, $2, $3, ST_GeomFromEWKB($4), 1, $5, $6)`,
		id, domain, doc, geomBytes, now, now,
	)
	if isUniqueViolation(err) {
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert company %s", domain)
	}
	return &Company{Record: rec.Clone(), Version: 1, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *PostgresStore) UpdateCompany(ctx context.Context, rec *model.Record, version int64) (*Company, error) {
	id, domain, doc, geomBytes, err := encodeRow(rec)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET domain = $1, doc = $2, hq_geom = ST_GeomFromEWKB($3), version = version + 1, updated_at = $4
		 WHERE id = $5 AND version = $6`,
		domain, doc, geomBytes, now, id, version,
	)
	if isUniqueViolation(err) {
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update company %s", domain)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}
	return &Company{Record: rec.Clone(), Version: version + 1, UpdatedAt: now}, nil
}

func (s *PostgresStore) DeleteCompany(ctx context.Context, domain string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM companies WHERE domain = $1`, NormalizeDomain(domain))
	if err != nil {
		return eris.Wrapf(err, "postgres: delete company %s", domain)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]Company, error) {
	query := `SELECT doc, version, created_at, updated_at FROM companies WHERE true`
	args := []any{}
	argIdx := 1

	if prefix := NormalizeDomain(filter.DomainPrefix); prefix != "" {
		query += fmt.Sprintf(` AND starts_with(domain, $%d)`, argIdx)
		args = append(args, prefix)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY domain ASC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		var doc []byte
		if err := rows.Scan(&doc, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		c.Record = &model.Record{}
		if err := json.Unmarshal(doc, c.Record); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) CountCompanies(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count companies")
}

// RestoreCompanies bulk-loads documents with COPY and upserts them by domain.
// Existing rows keep their created_at and get their version bumped.
func (s *PostgresStore) RestoreCompanies(ctx context.Context, recs []*model.Record) (int64, error) {
	now := time.Now().UTC()
	byDomain := make(map[string]int, len(recs))
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		id, domain, doc, geomBytes, err := encodeRow(rec)
		if err != nil {
			return 0, err
		}
		row := []any{id, domain, doc, geomBytes, int64(1), now, now}
		// A batch may not touch the same conflict key twice; the last document wins.
		if i, dup := byDomain[domain]; dup {
			rows[i] = row
			continue
		}
		byDomain[domain] = len(rows)
		rows = append(rows, row)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "companies",
		Columns:      []string{"id", "domain", "doc", "hq_geom", "version", "created_at", "updated_at"},
		ConflictKeys: []string{"domain"},
		UpdateCols:   []string{"id", "doc", "hq_geom", "updated_at"},
		IncrementCol: "version",
	}, rows)
	return n, eris.Wrap(err, "postgres: restore companies")
}

// Dead letter queue methods

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	recJSON, err := json.Marshal(entry.Record)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dlq record")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, domain, record, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $4, error_type = $5, retry_count = $6, next_retry_at = $8, last_failed_at = $10`,
		entry.ID, entry.Domain, recJSON, entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, domain, record, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= now() AND retry_count < max_retries`
	args := []any{}
	argIdx := 1

	if filter.ErrorType != "" {
		query += fmt.Sprintf(` AND error_type = $%d`, argIdx)
		args = append(args, filter.ErrorType)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY next_retry_at ASC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var recJSON []byte
		if err := rows.Scan(&e.ID, &e.Domain, &recJSON, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if err := json.Unmarshal(recJSON, &e.Record); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal dlq record")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: dequeue dlq iterate")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dlq entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}

func encodeRow(rec *model.Record) (id, domain string, doc, geomBytes []byte, err error) {
	id, domain, err = rowKey(rec)
	if err != nil {
		return "", "", nil, nil, err
	}
	doc, err = json.Marshal(rec)
	if err != nil {
		return "", "", nil, nil, eris.Wrapf(err, "postgres: marshal company %s", domain)
	}
	geomBytes, err = EncodeHQPoint(rec)
	if err != nil {
		return "", "", nil, nil, err
	}
	return id, domain, doc, geomBytes, nil
}

// EncodeHQPoint returns the headquarters coordinates as an EWKB point with
// SRID 4326, or nil when the record has no usable hq_lat/hq_lng.
func EncodeHQPoint(rec *model.Record) ([]byte, error) {
	lat, okLat := rec.HQLat.Float()
	lng, okLng := rec.HQLng.Float()
	if !okLat || !okLng || !validCoord(lat, 90) || !validCoord(lng, 180) {
		return nil, nil
	}

	pt := geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(4326)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode hq point")
	}
	return data, nil
}

func validCoord(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= limit
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
