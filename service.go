package reccache

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/reccache/record"
	"github.com/unkn0wn-root/reccache/runner"
	"github.com/unkn0wn-root/reccache/store"
)

// Count policy.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	SurvivedFlag = 1
	AgeBound     = 45
)

const (
	taskBulkInsert = "bulk_insert"
	taskUpdate     = "update_record"
)

type ServiceOptions struct {
	Store  store.Store
	Cache  RecordCache
	Runner *runner.Runner
	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks
}

// Service answers reads through the cache and routes every store mutation
// through the runner. It is safe for concurrent use.
type Service struct {
	store  store.Store
	cache  RecordCache
	runner *runner.Runner
	log    Logger
	hooks  Hooks
}

func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("reccache: store is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("reccache: cache is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("reccache: runner is required")
	}
	return &Service{
		store:  opts.Store,
		cache:  opts.Cache,
		runner: opts.Runner,
		log:    coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:  coalesce[Hooks](opts.Hooks, NopHooks{}),
	}, nil
}

// GetRecord returns the record stored under id, from the cache when possible.
func (s *Service) GetRecord(ctx context.Context, id int64) (record.Record, error) {
	if id < 0 {
		return nil, fmt.Errorf("%w: negative id %d", ErrInvalidArgument, id)
	}
	rec, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		s.hooks.RecordLookup("cache")
		return rec, nil
	}

	obs, err := s.cache.SnapshotGen(ctx, id)
	if err != nil {
		return nil, err
	}
	rec, err = s.store.Lookup(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		s.hooks.RecordLookup("not_found")
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup record %d: %w", id, err)
	}
	s.hooks.RecordLookup("store")

	if err := s.cache.SetWithGen(ctx, id, rec, obs); err != nil {
		s.log.Warn("cache fill failed", Fields{"id": id, "err": err})
	}
	return rec, nil
}

// UpdateRecord merges fields into the record stored under id and blocks until
// the store has applied it. A matched update invalidates the cached copy
// before returning; a non-match leaves the cache alone.
func (s *Service) UpdateRecord(ctx context.Context, id int64, fields record.Record) (store.MatchResult, error) {
	if id < 0 {
		return store.MatchResult{}, fmt.Errorf("%w: negative id %d", ErrInvalidArgument, id)
	}
	if len(fields) == 0 {
		return store.MatchResult{}, fmt.Errorf("%w: update_data is empty", ErrInvalidArgument)
	}
	patch := record.Normalize(fields.Clone())

	res, err := runner.Await(s.runner, taskUpdate, func(ctx context.Context) (store.MatchResult, error) {
		return s.store.Update(ctx, id, patch)
	})
	if err != nil {
		return store.MatchResult{}, fmt.Errorf("update record %d: %w", id, err)
	}
	if !res.Matched {
		return res, nil
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		return res, fmt.Errorf("update record %d: %w", id, err)
	}
	// The document moved to another identifier, whose first match may now differ.
	if moved, ok := patch.ID(); ok && moved != id {
		if err := s.cache.Invalidate(ctx, moved); err != nil {
			return res, fmt.Errorf("update record %d: %w", id, err)
		}
	}
	return res, nil
}

// BulkInsert hands records to a detached insert task and returns at once.
// The only error is runner.ErrClosed; insert failures go to the runner's
// OnError (see DetachedFailureReporter).
func (s *Service) BulkInsert(_ context.Context, records []record.Record) error {
	batch := make([]record.Record, len(records))
	for i, r := range records {
		batch[i] = record.Normalize(r.Clone())
	}
	if err := s.runner.Go(taskBulkInsert, func(ctx context.Context) error {
		return s.store.BulkInsert(ctx, batch)
	}); err != nil {
		return err
	}
	s.log.Debug("bulk insert submitted", Fields{"records": len(batch)})
	return nil
}

// CountSurvivors counts survivors of the given gender younger than AgeBound.
func (s *Service) CountSurvivors(ctx context.Context, gender string) (int64, error) {
	if gender != GenderMale && gender != GenderFemale {
		return 0, ErrInvalidGender
	}
	n, err := s.store.Count(ctx, store.Filter{Sex: gender, Survived: SurvivedFlag, AgeBelow: AgeBound})
	if err != nil {
		return 0, fmt.Errorf("count survivors: %w", err)
	}
	return n, nil
}

// DetachedFailureReporter builds a runner.Options.OnError that logs and hooks
// failures of fire-and-forget tasks.
func DetachedFailureReporter(log Logger, hooks Hooks) func(task string, err error) {
	log = coalesce[Logger](log, NopLogger{})
	hooks = coalesce[Hooks](hooks, NopHooks{})
	return func(task string, err error) {
		f := Fields{"task": task, "err": err}
		var pe *runner.PanicError
		if errors.As(err, &pe) {
			f["stack"] = string(pe.Stack)
		}
		log.Error("detached task failed", f)
		hooks.DetachedTaskFailed(task, err)
	}
}
