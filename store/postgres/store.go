// Package postgres provides a PostgreSQL-backed record store using pgx.
// Documents live in a JSONB column; the identifier is mirrored into an
// indexed BIGINT column for first-match lookups.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unkn0wn-root/reccache/record"
	"github.com/unkn0wn-root/reccache/store"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		seq       BIGSERIAL PRIMARY KEY,
		record_id BIGINT NULL,
		doc       JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS records_record_id_seq ON records (record_id, seq)`,
}

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) BulkInsert(ctx context.Context, records []record.Record) error {
	if s == nil || s.pool == nil {
		return store.ErrNotConfigured
	}
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, r := range records {
		doc, err := json.Marshal(record.Normalize(r.Clone()))
		if err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		batch.Queue(`INSERT INTO records (record_id, doc) VALUES ($1, $2::jsonb)`, idParam(r), string(doc))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bulk insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("bulk insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bulk insert: %w", err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, id int64) (record.Record, error) {
	if s == nil || s.pool == nil {
		return nil, store.ErrNotConfigured
	}
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM records WHERE record_id = $1 ORDER BY seq LIMIT 1`, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup record %d: %w", id, err)
	}
	var r record.Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode stored record: %w", err)
	}
	return r, nil
}

// Update applies fields with jsonb concatenation, which replaces existing
// top-level keys and keeps explicit JSON nulls.
func (s *Store) Update(ctx context.Context, id int64, fields record.Record) (store.MatchResult, error) {
	if s == nil || s.pool == nil {
		return store.MatchResult{}, store.ErrNotConfigured
	}
	patch, err := json.Marshal(record.Normalize(fields.Clone()))
	if err != nil {
		return store.MatchResult{}, fmt.Errorf("encode update: %w", err)
	}
	_, movesID := fields[record.IDField]

	tag, err := s.pool.Exec(ctx, `
UPDATE records
SET doc = doc || $2::jsonb,
    record_id = CASE WHEN $3 THEN $4 ELSE record_id END
WHERE seq = (
	SELECT seq FROM records WHERE record_id = $1 ORDER BY seq LIMIT 1 FOR UPDATE
)`, id, string(patch), movesID, idParam(fields))
	if err != nil {
		return store.MatchResult{}, fmt.Errorf("update record %d: %w", id, err)
	}
	return store.MatchResult{Matched: tag.RowsAffected() > 0}, nil
}

func (s *Store) Count(ctx context.Context, f store.Filter) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, store.ErrNotConfigured
	}
	var n int64
	err := s.pool.QueryRow(ctx, `
SELECT count(*) FROM records
WHERE jsonb_typeof(doc->'Sex') = 'string'
  AND doc->>'Sex' = $1
  AND CASE WHEN jsonb_typeof(doc->'Survived') = 'number'
           THEN (doc->>'Survived')::float8 = $2::float8 ELSE false END
  AND CASE WHEN jsonb_typeof(doc->'Age') = 'number'
           THEN (doc->>'Age')::float8 < $3::float8 ELSE false END`,
		f.Sex, float64(f.Survived), f.AgeBelow,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func idParam(r record.Record) *int64 {
	id, ok := r.ID()
	if !ok {
		return nil
	}
	return &id
}
