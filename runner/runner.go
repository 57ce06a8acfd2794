// Package runner executes store mutations on a fixed number of workers.
//
// Work is submitted in one of two modes: Go (fire-and-forget, failures go to
// Options.OnError and nowhere else) and Await (the caller blocks until the
// task finishes and receives its result). Submissions beyond the worker count
// queue without bound and start roughly in submission order.
//
// Tasks run on the runner's own context, not the submitter's: a request that
// goes away never cancels a store mutation that has been accepted.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const DefaultWorkers = 8

var ErrClosed = errors.New("runner: closed")

// PanicError is returned (Await) or reported (Go) when a task panics.
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("runner: task %q panicked: %v", e.Task, e.Value)
}

type Options struct {
	Workers int // <= 0 => DefaultWorkers
	// OnError receives failures of Go tasks. It runs on the worker goroutine.
	OnError func(task string, err error)
}

type Runner struct {
	sem     *semaphore.Weighted
	workers int
	onError func(string, error)

	base   context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	queued  atomic.Int64
	running atomic.Int64
}

func New(opts Options) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	base, cancel := context.WithCancel(context.Background())
	return &Runner{
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
		onError: opts.OnError,
		base:    base,
		cancel:  cancel,
	}
}

func (r *Runner) Workers() int { return r.workers }

// Stats is a point-in-time view of the pool.
type Stats struct {
	Queued  int64 // accepted, waiting for a worker
	Running int64
}

func (r *Runner) Stats() Stats {
	return Stats{Queued: r.queued.Load(), Running: r.running.Load()}
}

// Go submits fn and returns without waiting. The only error is ErrClosed.
func (r *Runner) Go(name string, fn func(context.Context) error) error {
	return r.dispatch(name, fn, func(err error) {
		if err != nil && r.onError != nil {
			r.onError(name, err)
		}
	})
}

// Await submits fn and blocks until it has run, returning its result.
// A panic inside fn is returned as *PanicError.
func Await[T any](r *Runner, name string, fn func(context.Context) (T, error)) (T, error) {
	var v T
	done := make(chan error, 1)
	err := r.dispatch(name, func(ctx context.Context) error {
		var err error
		v, err = fn(ctx)
		return err
	}, func(err error) { done <- err })
	if err != nil {
		var zero T
		return zero, err
	}
	if err := <-done; err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Close stops accepting work and waits for queued and running tasks.
// If ctx ends first, the tasks' context is cancelled and ctx.Err() returned;
// tasks still waiting for a worker then finish with ErrClosed.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-idle
		return ctx.Err()
	}
}

func (r *Runner) dispatch(name string, fn func(context.Context) error, done func(error)) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrClosed
	}
	r.wg.Add(1)
	r.mu.RUnlock()

	r.queued.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.sem.Acquire(r.base, 1); err != nil {
			r.queued.Add(-1)
			done(fmt.Errorf("%w: %s not started: %v", ErrClosed, name, err))
			return
		}
		r.queued.Add(-1)
		r.running.Add(1)
		err := r.run(name, fn)
		r.running.Add(-1)
		r.sem.Release(1)
		done(err)
	}()
	return nil
}

func (r *Runner) run(name string, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Task: name, Value: p, Stack: debug.Stack()}
		}
	}()
	return fn(r.base)
}
