package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/reccache"
	"github.com/unkn0wn-root/reccache/runner"
)

func TestHooksCountEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := New(reg)

	h.RecordLookup("cache")
	h.RecordLookup("cache")
	h.RecordLookup("store")
	h.SelfHeal("k", "corrupt")
	h.FillSkipped("k")
	h.GenBumpError("k", errors.New("x"))
	h.InvalidateOutage("k", errors.New("a"), errors.New("b"))
	h.DetachedTaskFailed("bulk_insert", errors.New("x"))
	h.ObserveRequest("/get_record", "200", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.lookups.WithLabelValues("cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.lookups.WithLabelValues("store")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.selfHeals.WithLabelValues("corrupt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.fillSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.genErrors.WithLabelValues("bump")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.outages))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.detached.WithLabelValues("bulk_insert")))
	assert.Equal(t, 1, testutil.CollectAndCount(h.requests))
}

func TestRegisterRunnerGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := runner.New(runner.Options{Workers: 3})
	defer r.Close(context.Background())
	RegisterRunner(reg, r)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, mf := range mfs {
		got[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
	}
	assert.Equal(t, 3.0, got["reccache_runner_workers"])
	assert.Equal(t, 0.0, got["reccache_runner_running_tasks"])
	assert.Contains(t, got, "reccache_runner_queued_tasks")
}

func TestFanoutDeliversToAll(t *testing.T) {
	a, b := New(prometheus.NewRegistry()), New(prometheus.NewRegistry())
	var f reccache.Hooks = Fanout{a, b, reccache.NopHooks{}}

	f.FillSkipped("k")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.fillSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.fillSkipped))
}

func TestRegisterProviderStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterProviderStats(reg, "ristretto", func() uint64 { return 5 }, func() uint64 { return 2 })

	mfs, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, mf := range mfs {
		got[mf.GetName()] = mf.GetMetric()[0].GetCounter().GetValue()
	}
	assert.Equal(t, 5.0, got["reccache_provider_hits_total"])
	assert.Equal(t, 2.0, got["reccache_provider_misses_total"])
}
