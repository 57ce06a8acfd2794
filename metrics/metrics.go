// Package metrics exports reccache events and runner load to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/reccache"
	"github.com/unkn0wn-root/reccache/runner"
)

const namespace = "reccache"

// Hooks counts reccache events. It also implements reccache.Hooks.
type Hooks struct {
	lookups     *prometheus.CounterVec
	selfHeals   *prometheus.CounterVec
	fillSkipped prometheus.Counter
	setRejected prometheus.Counter
	genErrors   *prometheus.CounterVec
	outages     prometheus.Counter
	detached    *prometheus.CounterVec

	requests *prometheus.HistogramVec
}

var _ reccache.Hooks = (*Hooks)(nil)

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Hooks {
	h := &Hooks{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_lookups_total",
			Help:      "GetRecord answers by source (cache, store, not_found).",
		}, []string{"source"}),
		selfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_self_heals_total",
			Help:      "Cache entries deleted on read, by reason.",
		}, []string{"reason"}),
		fillSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_fills_skipped_total",
			Help:      "Read-through fills dropped because the generation moved.",
		}),
		setRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_sets_rejected_total",
			Help:      "Cache writes refused by the provider.",
		}),
		genErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_generation_errors_total",
			Help:      "Generation store failures, by operation.",
		}, []string{"op"}),
		outages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidate_outages_total",
			Help:      "Invalidations where both the generation bump and the delete failed.",
		}),
		detached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detached_task_failures_total",
			Help:      "Fire-and-forget task failures, by task.",
		}, []string{"task"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		h.lookups, h.selfHeals, h.fillSkipped, h.setRejected,
		h.genErrors, h.outages, h.detached, h.requests,
	)
	return h
}

// RegisterRunner exports the pool's queue depth and busy workers.
func RegisterRunner(reg prometheus.Registerer, r *runner.Runner) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "queued_tasks",
			Help:      "Tasks accepted and waiting for a worker.",
		}, func() float64 { return float64(r.Stats().Queued) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "running_tasks",
			Help:      "Tasks currently executing.",
		}, func() float64 { return float64(r.Stats().Running) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "workers",
			Help:      "Configured worker count.",
		}, func() float64 { return float64(r.Workers()) }),
	)
}

// ObserveRequest records one served HTTP request.
func (h *Hooks) ObserveRequest(route, code string, seconds float64) {
	h.requests.WithLabelValues(route, code).Observe(seconds)
}

func (h *Hooks) RecordLookup(source string)            { h.lookups.WithLabelValues(source).Inc() }
func (h *Hooks) SelfHeal(_, reason string)             { h.selfHeals.WithLabelValues(reason).Inc() }
func (h *Hooks) FillSkipped(string)                    { h.fillSkipped.Inc() }
func (h *Hooks) ProviderSetRejected(string)            { h.setRejected.Inc() }
func (h *Hooks) GenSnapshotError(string, error)        { h.genErrors.WithLabelValues("snapshot").Inc() }
func (h *Hooks) GenBumpError(string, error)            { h.genErrors.WithLabelValues("bump").Inc() }
func (h *Hooks) InvalidateOutage(string, error, error) { h.outages.Inc() }
func (h *Hooks) DetachedTaskFailed(task string, _ error) {
	h.detached.WithLabelValues(task).Inc()
}

// Fanout delivers every event to each member in order.
type Fanout []reccache.Hooks

var _ reccache.Hooks = Fanout(nil)

func (f Fanout) RecordLookup(s string) {
	for _, h := range f {
		h.RecordLookup(s)
	}
}
func (f Fanout) SelfHeal(k, r string) {
	for _, h := range f {
		h.SelfHeal(k, r)
	}
}
func (f Fanout) FillSkipped(k string) {
	for _, h := range f {
		h.FillSkipped(k)
	}
}
func (f Fanout) ProviderSetRejected(k string) {
	for _, h := range f {
		h.ProviderSetRejected(k)
	}
}
func (f Fanout) GenSnapshotError(k string, err error) {
	for _, h := range f {
		h.GenSnapshotError(k, err)
	}
}
func (f Fanout) GenBumpError(k string, err error) {
	for _, h := range f {
		h.GenBumpError(k, err)
	}
}
func (f Fanout) InvalidateOutage(k string, be, de error) {
	for _, h := range f {
		h.InvalidateOutage(k, be, de)
	}
}
func (f Fanout) DetachedTaskFailed(task string, err error) {
	for _, h := range f {
		h.DetachedTaskFailed(task, err)
	}
}

// RegisterProviderStats exports hit and miss counters kept by an in-process
// cache provider.
func RegisterProviderStats(reg prometheus.Registerer, provider string, hits, misses func() uint64) {
	labels := prometheus.Labels{"provider": provider}
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "provider",
			Name:        "hits_total",
			Help:        "Provider-level cache hits.",
			ConstLabels: labels,
		}, func() float64 { return float64(hits()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "provider",
			Name:        "misses_total",
			Help:        "Provider-level cache misses.",
			ConstLabels: labels,
		}, func() float64 { return float64(misses()) }),
	)
}
