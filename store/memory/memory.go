// Package memory is an in-process Store. It keeps documents in insertion
// order and counts calls per operation, which makes it the store of choice
// for tests.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/reccache/record"
	"github.com/unkn0wn-root/reccache/store"
)

type Store struct {
	mu   sync.RWMutex
	docs []record.Record

	inserts atomic.Int64
	lookups atomic.Int64
	updates atomic.Int64
	counts  atomic.Int64
}

var _ store.Store = (*Store)(nil)

func New() *Store { return &Store{} }

// Calls is a snapshot of per-operation call counters.
type Calls struct {
	BulkInsert, Lookup, Update, Count int64
}

func (s *Store) Calls() Calls {
	return Calls{
		BulkInsert: s.inserts.Load(),
		Lookup:     s.lookups.Load(),
		Update:     s.updates.Load(),
		Count:      s.counts.Load(),
	}
}

func (s *Store) BulkInsert(ctx context.Context, records []record.Record) error {
	s.inserts.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]record.Record, len(records))
	for i, r := range records {
		cp[i] = r.Clone()
	}
	s.mu.Lock()
	s.docs = append(s.docs, cp...)
	s.mu.Unlock()
	return nil
}

func (s *Store) Lookup(ctx context.Context, id int64) (record.Record, error) {
	s.lookups.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.first(id); i >= 0 {
		return s.docs[i].Clone(), nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) Update(ctx context.Context, id int64, fields record.Record) (store.MatchResult, error) {
	s.updates.Add(1)
	if err := ctx.Err(); err != nil {
		return store.MatchResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.first(id)
	if i < 0 {
		return store.MatchResult{}, nil
	}
	doc := s.docs[i].Clone()
	for k, v := range fields {
		doc[k] = v
	}
	s.docs[i] = doc
	return store.MatchResult{Matched: true}, nil
}

func (s *Store) Count(ctx context.Context, f store.Filter) (int64, error) {
	s.counts.Add(1)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, d := range s.docs {
		if f.Matches(d) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Close() error { return nil }

// Len returns the number of stored documents, duplicates included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// first returns the index of the first document carrying id, or -1.
// Callers hold s.mu.
func (s *Store) first(id int64) int {
	for i, d := range s.docs {
		if got, ok := d.ID(); ok && got == id {
			return i
		}
	}
	return -1
}
