package reccache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on request paths.
type Hooks interface {
	// Where a GetRecord was answered from: "cache", "store" or "not_found".
	RecordLookup(source string)

	// A cached entry was deleted on read.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)

	// A read-through fill was dropped because the key was invalidated
	// after the fill's store read began.
	FillSkipped(storageKey string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	GenSnapshotError(storageKey string, err error)
	GenBumpError(storageKey string, err error)

	// Both gen bump and delete failed during Invalidate (likely backend outage).
	InvalidateOutage(key string, bumpErr, delErr error)

	// A fire-and-forget task failed. Nobody else will ever see err.
	DetachedTaskFailed(task string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) RecordLookup(string)                   {}
func (NopHooks) SelfHeal(string, string)               {}
func (NopHooks) FillSkipped(string)                    {}
func (NopHooks) ProviderSetRejected(string)            {}
func (NopHooks) GenSnapshotError(string, error)        {}
func (NopHooks) GenBumpError(string, error)            {}
func (NopHooks) InvalidateOutage(string, error, error) {}
func (NopHooks) DetachedTaskFailed(string, error)      {}
