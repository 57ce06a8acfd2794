package reccache

import (
	"context"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/reccache/codec"
	gen "github.com/unkn0wn-root/reccache/genstore"
	"github.com/unkn0wn-root/reccache/internal/wire"
	pr "github.com/unkn0wn-root/reccache/provider"
	"github.com/unkn0wn-root/reccache/record"
)

const (
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

type cache struct {
	ns             string
	provider       pr.Provider
	codec          c.Codec[record.Record]
	log            Logger
	hooks          Hooks
	enabled        bool
	ttl            time.Duration
	computeSetCost SetCostFunc
	gen            gen.GenStore
}

func newCache(opts CacheOptions) (*cache, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("reccache: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("reccache: codec is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("reccache: namespace is required")
	}

	cc := &cache{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		enabled:  !opts.Disabled,
		ttl:      opts.TTL,
	}
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	if opts.ComputeSetCost != nil {
		cc.computeSetCost = opts.ComputeSetCost
	} else {
		cc.computeSetCost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}

	if opts.GenStore != nil {
		cc.gen = opts.GenStore
	} else {
		cc.gen = gen.NewLocalGenStore(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
	}
	return cc, nil
}

func (cc *cache) Enabled() bool { return cc.enabled }

func (cc *cache) Close(ctx context.Context) error {
	// gen store first (best effort)
	if cc.gen != nil {
		_ = cc.gen.Close(ctx)
	}
	return cc.provider.Close(ctx)
}

func (cc *cache) Get(ctx context.Context, id int64) (record.Record, bool, error) {
	if !cc.enabled {
		return nil, false, nil
	}
	k := cc.key(id)
	raw, ok, err := cc.provider.Get(ctx, k)
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", k, err)
	}
	if !ok {
		return nil, false, nil
	}
	frameGen, payload, err := wire.Decode(raw)
	if err != nil {
		cc.selfHeal(ctx, k, "corrupt")
		return nil, false, nil
	}
	current, err := cc.gen.Snapshot(ctx, k)
	if err != nil {
		cc.hooks.GenSnapshotError(k, err)
		return nil, false, fmt.Errorf("cache generation %s: %w", k, err)
	}
	if frameGen != current {
		cc.selfHeal(ctx, k, "gen_mismatch")
		return nil, false, nil
	}
	rec, err := cc.codec.Decode(payload)
	if err != nil {
		cc.selfHeal(ctx, k, "value_decode")
		return nil, false, nil
	}
	return rec, true, nil
}

func (cc *cache) SnapshotGen(ctx context.Context, id int64) (uint64, error) {
	k := cc.key(id)
	g, err := cc.gen.Snapshot(ctx, k)
	if err != nil {
		cc.hooks.GenSnapshotError(k, err)
		return 0, fmt.Errorf("cache generation %s: %w", k, err)
	}
	return g, nil
}

func (cc *cache) SetWithGen(ctx context.Context, id int64, rec record.Record, observedGen uint64) error {
	if !cc.enabled {
		return nil
	}
	k := cc.key(id)
	current, err := cc.gen.Snapshot(ctx, k)
	if err != nil {
		cc.hooks.GenSnapshotError(k, err)
		return fmt.Errorf("cache generation %s: %w", k, err)
	}
	if current != observedGen {
		cc.hooks.FillSkipped(k)
		cc.log.Debug("fill skipped (gen moved)", Fields{"key": k, "obs": observedGen, "gen": current})
		return nil
	}
	payload, err := cc.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", k, err)
	}
	frame := wire.Encode(observedGen, payload)
	ok, err := cc.provider.Set(ctx, k, frame, cc.computeSetCost(k, frame), cc.ttl)
	if err != nil {
		return fmt.Errorf("cache set %s: %w", k, err)
	}
	if !ok {
		cc.hooks.ProviderSetRejected(k)
		cc.log.Debug("fill rejected by provider (pressure)", Fields{"key": k})
	}
	return nil
}

// Invalidate bumps the key's generation, then deletes the entry. Either
// half alone keeps readers from seeing the old snapshot for long, so an
// error is returned only when both fail.
func (cc *cache) Invalidate(ctx context.Context, id int64) error {
	if !cc.enabled {
		return nil
	}
	k := cc.key(id)
	newGen, bumpErr := cc.gen.Bump(ctx, k)
	if bumpErr != nil {
		cc.hooks.GenBumpError(k, bumpErr)
	}
	delErr := cc.provider.Del(ctx, k)

	switch {
	case bumpErr != nil && delErr != nil:
		cc.hooks.InvalidateOutage(k, bumpErr, delErr)
		return &InvalidateError{Key: k, BumpErr: bumpErr, DelErr: delErr}
	case bumpErr != nil:
		cc.log.Warn("invalidate: gen bump failed, entry deleted", Fields{"key": k, "err": bumpErr})
	case delErr != nil:
		cc.log.Warn("invalidate: delete failed, gen bumped", Fields{"key": k, "err": delErr, "newGen": newGen})
	default:
		cc.log.Debug("invalidated key", Fields{"key": k, "newGen": newGen})
	}
	return nil
}

func (cc *cache) selfHeal(ctx context.Context, storageKey, reason string) {
	_ = cc.provider.Del(ctx, storageKey)
	cc.hooks.SelfHeal(storageKey, reason)
	cc.log.Debug("self-healed cache entry", Fields{"key": storageKey, "reason": reason})
}

func (cc *cache) key(id int64) string {
	return "record:" + cc.ns + ":" + record.Key(id)
}
