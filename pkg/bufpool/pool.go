// Package bufpool provides a bounded free-list of reusable buffers.
//
// Buffers are released from whichever goroutine finished with them (the
// producer when a payload was copied out, a worker when a buffer handle was
// dispatched), so the free-list is safe for concurrent use.
package bufpool

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync"
)

// DefaultCapacity is the number of spare buffers kept when none is configured.
const DefaultCapacity = 4

// Pool is a bounded free-list of buffers of type B.
type Pool[B any] struct {
	spares    *xsync.MPMCQueue
	capacity  int
	newFunc   func() B
	resetFunc func(B)

	hits    atomic.Uint64
	misses  atomic.Uint64
	dropped atomic.Uint64
}

// Stats reports free-list activity.
type Stats struct {
	Capacity int    `json:"capacity"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Dropped  uint64 `json:"dropped"`
}

// New creates a pool holding at most capacity spares.
// newFunc allocates a fresh buffer; resetFunc empties a buffer before it is
// stored and may be nil.
func New[B any](capacity int, newFunc func() B, resetFunc func(B)) *Pool[B] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool[B]{
		spares:    xsync.NewMPMCQueue(capacity),
		capacity:  capacity,
		newFunc:   newFunc,
		resetFunc: resetFunc,
	}
}

// Acquire returns an empty buffer, preferring a pooled spare over a fresh
// allocation.
func (p *Pool[B]) Acquire() B {
	if item, ok := p.spares.TryDequeue(); ok {
		p.hits.Add(1)
		return item.(B)
	}
	p.misses.Add(1)
	return p.newFunc()
}

// Release resets b and keeps it as a spare if there is room.
// The caller must not read or write b afterwards.
func (p *Pool[B]) Release(b B) {
	if p.resetFunc != nil {
		p.resetFunc(b)
	}
	if !p.spares.TryEnqueue(b) {
		p.dropped.Add(1)
	}
}

// Stats returns a snapshot of pool counters.
func (p *Pool[B]) Stats() Stats {
	return Stats{
		Capacity: p.capacity,
		Hits:     p.hits.Load(),
		Misses:   p.misses.Load(),
		Dropped:  p.dropped.Load(),
	}
}
