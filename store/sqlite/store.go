// Package sqlite provides a SQLite-backed record store.
//
// Documents are kept as JSON text next to an indexed copy of their
// identifier. The pool is capped at one connection, so every write is
// serialized within the process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/reccache/record"
	"github.com/unkn0wn-root/reccache/store"
	"github.com/unkn0wn-root/reccache/store/sqlite/migrations"
)

// Store persists records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens a SQLite record store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// BulkInsert inserts all records in one transaction.
func (s *Store) BulkInsert(ctx context.Context, records []record.Record) error {
	if s == nil || s.sqlDB == nil {
		return store.ErrNotConfigured
	}
	if len(records) == 0 {
		return nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (record_id, doc) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		doc, err := marshalDoc(r)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, nullableID(r), doc); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk insert: %w", err)
	}
	return nil
}

// Lookup returns the first document stored under id.
func (s *Store) Lookup(ctx context.Context, id int64) (record.Record, error) {
	if s == nil || s.sqlDB == nil {
		return nil, store.ErrNotConfigured
	}
	var doc string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT doc FROM records WHERE record_id = ? ORDER BY seq LIMIT 1`, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup record %d: %w", id, err)
	}
	return unmarshalDoc(doc)
}

// Update merges fields into the first document stored under id.
func (s *Store) Update(ctx context.Context, id int64, fields record.Record) (store.MatchResult, error) {
	if s == nil || s.sqlDB == nil {
		return store.MatchResult{}, store.ErrNotConfigured
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return store.MatchResult{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		seq int64
		raw string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT seq, doc FROM records WHERE record_id = ? ORDER BY seq LIMIT 1`, id,
	).Scan(&seq, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return store.MatchResult{}, nil
	}
	if err != nil {
		return store.MatchResult{}, fmt.Errorf("select record %d: %w", id, err)
	}

	doc, err := unmarshalDoc(raw)
	if err != nil {
		return store.MatchResult{}, err
	}
	for k, v := range fields {
		doc[k] = v
	}
	encoded, err := marshalDoc(doc)
	if err != nil {
		return store.MatchResult{}, fmt.Errorf("encode record %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET record_id = ?, doc = ? WHERE seq = ?`,
		nullableID(doc), encoded, seq,
	); err != nil {
		return store.MatchResult{}, fmt.Errorf("update record %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return store.MatchResult{}, fmt.Errorf("commit update: %w", err)
	}
	return store.MatchResult{Matched: true}, nil
}

// Count mirrors store.Filter.Matches in SQL.
func (s *Store) Count(ctx context.Context, f store.Filter) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, store.ErrNotConfigured
	}
	var n int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1) FROM records
WHERE json_type(doc, '$.Sex') = 'text'
  AND json_extract(doc, '$.Sex') = ?
  AND json_type(doc, '$.Survived') IN ('integer', 'real')
  AND json_extract(doc, '$.Survived') = ?
  AND json_type(doc, '$.Age') IN ('integer', 'real')
  AND json_extract(doc, '$.Age') < ?`,
		f.Sex, f.Survived, f.AgeBelow,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func marshalDoc(r record.Record) (string, error) {
	b, err := json.Marshal(record.Normalize(r.Clone()))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalDoc(raw string) (record.Record, error) {
	var r record.Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode stored record: %w", err)
	}
	if r == nil {
		r = record.Record{}
	}
	return r, nil
}

func nullableID(r record.Record) sql.NullInt64 {
	id, ok := r.ID()
	return sql.NullInt64{Int64: id, Valid: ok}
}
