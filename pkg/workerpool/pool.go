// Package workerpool provides bounded pools that run submitted work on
// background goroutines and report completion through futures.
//
// Pool runs typed closures that share memory with the submitter. ProcessPool
// runs named handlers over byte payloads only, so no state crosses the pool
// boundary except what the caller explicitly serializes.
package workerpool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrPanic wraps a panic recovered from submitted work.
	ErrPanic = errors.New("worker panicked")
)

// Task is a unit of work submitted to a Pool.
type Task[R any] func() (R, error)

// Stats reports pool activity.
type Stats struct {
	Size      int    `json:"size"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

// Pool is a bounded goroutine pool. At most Size tasks run at once; Submit
// blocks while the pool is saturated.
type Pool[R any] struct {
	mu     sync.RWMutex
	group  errgroup.Group
	size   int
	closed bool

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

// New creates a pool running at most size tasks concurrently.
// A non-positive size defaults to GOMAXPROCS.
func New[R any](size int) *Pool[R] {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	p := &Pool[R]{size: size}
	p.group.SetLimit(size)
	return p
}

// Submit schedules task and returns its future. It blocks until a worker slot
// is free.
func (p *Pool[R]) Submit(task Task[R]) (*Future[R], error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	fut := newFuture[R]()
	p.submitted.Add(1)
	p.group.Go(func() error {
		result, err := run(task)
		if err != nil {
			p.failed.Add(1)
		}
		p.completed.Add(1)
		fut.complete(result, err)
		return nil
	})
	return fut, nil
}

// Shutdown stops accepting work. With wait set it blocks until every
// submitted task and its completion callbacks have finished. Calling it more
// than once is safe.
func (p *Pool[R]) Shutdown(wait bool) {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	if wait {
		_ = p.group.Wait()
	}
}

// Size returns the maximum number of concurrently running tasks.
func (p *Pool[R]) Size() int {
	return p.size
}

// Stats returns a snapshot of pool counters.
func (p *Pool[R]) Stats() Stats {
	return Stats{
		Size:      p.size,
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

func run[R any](task Task[R]) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			result, err = zero, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return task()
}
