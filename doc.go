// Package reccache implements a record service over an authoritative store
// and a read-through cache.
//
// Components:
//   - store.Store: source of truth (SQLite, PostgreSQL or in-memory).
//   - RecordCache: record snapshots framed with a per-key generation over a
//     byte Provider (Redis, BigCache, Ristretto).
//   - runner.Runner: bounded worker pool for store mutations.
//   - Service: read-through lookups, invalidate-on-write updates,
//     fire-and-forget bulk inserts and the survivor count.
//
// Keys:
//
//	record:<ns>:<id>  - cached record snapshot
//	gen:<ns>:<key>    - generation (Redis GenStore only)
//
// Fill protocol:
//
//	obs := cache.SnapshotGen(id) // before the store read
//	rec := store.Lookup(id)
//	_   = cache.SetWithGen(ctx, id, rec, obs) // skipped if gen moved
//
// Updates bump the generation and delete the entry, so a fill that raced an
// update is either skipped or rejected on its first read.
package reccache
