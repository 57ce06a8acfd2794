package reccache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/reccache/codec"
	gen "github.com/unkn0wn-root/reccache/genstore"
	pr "github.com/unkn0wn-root/reccache/provider"
	"github.com/unkn0wn-root/reccache/record"
)

type SetCostFunc func(key string, raw []byte) int64

// RecordCache is the cache layer the Service depends on.
// Absence is always a valid answer; the store stays authoritative.
type RecordCache interface {
	Enabled() bool
	Close(context.Context) error

	Get(ctx context.Context, id int64) (rec record.Record, ok bool, err error)
	// SnapshotGen must be taken before the store read whose result is
	// later passed to SetWithGen.
	SnapshotGen(ctx context.Context, id int64) (uint64, error)
	SetWithGen(ctx context.Context, id int64, rec record.Record, observedGen uint64) error
	Invalidate(ctx context.Context, id int64) error
}

// CacheOptions tune the record cache.
// Namespace, Provider and Codec are required; others have defaults.
type CacheOptions struct {
	Namespace string // e.g. "passengers"
	Provider  pr.Provider
	Codec     c.Codec[record.Record] // wrap in codec.Sentinel to keep nulls

	Logger          Logger        // nil => NopLogger
	Hooks           Hooks         // nil => NopHooks
	TTL             time.Duration // 0 => no expiry
	GenStore        gen.GenStore  // nil => LocalGenStore
	CleanupInterval time.Duration // local gens; 0 => 1h
	GenRetention    time.Duration // local gens; 0 => 30d
	ComputeSetCost  SetCostFunc   // default: len(raw)
	Disabled        bool
}

func NewCache(opts CacheOptions) (RecordCache, error) {
	return newCache(opts)
}
