// Package store defines the authoritative record storage contract.
//
// Identifiers are not unique at this layer: bulk inserts accept duplicates
// and Lookup/Update act on the first stored document (insertion order) that
// carries the identifier.
package store

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/reccache/record"
)

var (
	ErrNotFound      = errors.New("store: record not found")
	ErrNotConfigured = errors.New("store: storage is not configured")
)

// MatchResult reports whether an update found a document.
type MatchResult struct {
	Matched bool
}

// Filter is a conjunction: Sex == Sex, Survived == Survived, Age < AgeBelow.
// Documents without a numeric Age never match.
type Filter struct {
	Sex      string
	Survived int
	AgeBelow float64
}

type Store interface {
	BulkInsert(ctx context.Context, records []record.Record) error
	// Lookup returns ErrNotFound when no document carries id.
	Lookup(ctx context.Context, id int64) (record.Record, error)
	// Update merges fields into the first document carrying id. Zero matches
	// is a normal outcome, reported as MatchResult{Matched: false}.
	Update(ctx context.Context, id int64, fields record.Record) (MatchResult, error)
	Count(ctx context.Context, f Filter) (int64, error)
	Close() error
}

// Matches evaluates f against one document in Go. Backends that cannot
// push the filter down use it directly; the others mirror its rules.
func (f Filter) Matches(r record.Record) bool {
	sex, ok := r["Sex"].(string)
	if !ok || sex != f.Sex {
		return false
	}
	survived, ok := record.Float(r["Survived"])
	if !ok || survived != float64(f.Survived) {
		return false
	}
	age, ok := record.Float(r["Age"])
	return ok && age < f.AgeBelow
}
