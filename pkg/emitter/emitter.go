// Package emitter implements a buffered batch emitter.
//
// An Emitter accumulates writes in a buffer backend. When the buffer reaches
// the configured size it is handed to a processing function, inline or on a
// worker pool, and a fresh buffer takes its place so writing can continue.
// Optional clipping carries overflow into the next buffer, and an optional
// cooldown drops writes for a sampled interval after every cycle.
//
// An Emitter has a single producer: Write, WriteAt and Clip must not be
// called concurrently. Close may be called from any goroutine.
package emitter

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jittakal/bufemit/pkg/backend"
	"github.com/jittakal/bufemit/pkg/bufpool"
	"github.com/jittakal/bufemit/pkg/workerpool"
)

// Emitter buffers writes of type T and emits cycles producing results of
// type R. The zero value behaves as a closed emitter.
type Emitter[T, R any] struct {
	fn      ProcessFunc[T, R]
	factory backend.Factory[T]
	opts    Options[T, R]
	logger  *slog.Logger
	metrics MetricsCollector

	spares  *bufpool.Pool[backend.Backend[T]]
	current backend.Backend[T]

	cycleStart time.Time
	pauseUntil time.Time
	seq        uint64

	mu      sync.Mutex
	threads *workerpool.Pool[R]
	procs   *workerpool.ProcessPool
	closed  atomic.Bool

	cycles         atomic.Uint64
	droppedWrites  atomic.Uint64
	dispatchErrors atomic.Uint64
}

// Stats is a snapshot of emitter state.
type Stats struct {
	Mode           Mode          `json:"mode"`
	Size           int           `json:"size"`
	Len            int           `json:"len"`
	Cycles         uint64        `json:"cycles"`
	DroppedWrites  uint64        `json:"dropped_writes"`
	DispatchErrors uint64        `json:"dispatch_errors"`
	CycleStart     time.Time     `json:"cycle_start"`
	PauseUntil     time.Time     `json:"pause_until"`
	Spares         bufpool.Stats `json:"spares"`
	Closed         bool          `json:"closed"`
}

// New builds an emitter. In ModeProcess fn must be nil and the processing
// function is looked up by opts.ProcessName instead.
func New[T, R any](fn ProcessFunc[T, R], factory backend.Factory[T], opts Options[T, R]) (*Emitter[T, R], error) {
	if opts.Size <= 0 {
		return nil, configError("Size", "must be positive")
	}
	if factory == nil {
		return nil, configError("Factory", "is required")
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, &ConfigurationError{Field: "Mode", Reason: "unsupported", Err: err}
	}
	opts.Mode = mode
	if opts.PoolSize < 0 {
		return nil, configError("PoolSize", "must not be negative")
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = DefaultPoolSize
	}

	switch mode {
	case ModeProcess:
		if fn != nil {
			return nil, configError("ProcessFunc", "closures cannot cross the process boundary; register the function and set ProcessName")
		}
		if opts.ProcessName == "" {
			return nil, configError("ProcessName", "required in process mode")
		}
		if fn, err = lookup[T, R](opts.ProcessName); err != nil {
			return nil, err
		}
	default:
		if fn == nil {
			return nil, configError("ProcessFunc", "is required")
		}
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Emitter[T, R]{
		fn:      fn,
		factory: factory,
		opts:    opts,
		logger:  logger.With("component", "emitter", "mode", string(mode)),
		metrics: opts.Metrics,
		spares: bufpool.New(opts.SpareBuffers,
			func() backend.Backend[T] { return factory() },
			func(b backend.Backend[T]) { b.Reset() },
		),
	}

	switch mode {
	case ModeThread:
		e.threads = workerpool.New[R](opts.PoolSize)
	case ModeProcess:
		e.procs = workerpool.NewProcessPool(opts.PoolSize)
		e.procs.Handle(opts.ProcessName, processHandler(fn, factory, opts.SendValue))
	}

	e.current = e.spares.Acquire()
	e.cycleStart = opts.Now()
	e.pauseUntil = e.cycleStart
	return e, nil
}

// Write appends data stamped with the current time.
func (e *Emitter[T, R]) Write(data T) error {
	if e == nil || e.current == nil {
		return ErrClosed
	}
	return e.WriteAt(data, e.opts.Now())
}

// WriteAt appends data stamped with ts. Writes stamped before the end of the
// current cooldown are dropped and return nil. If the buffer reaches the
// threshold, exactly one cycle runs before WriteAt returns.
//
// In ModeInline the processing function's failure is returned as a
// *DispatchError; the buffer swap and cooldown have already happened.
func (e *Emitter[T, R]) WriteAt(data T, ts time.Time) error {
	if e == nil || e.current == nil || e.closed.Load() {
		return ErrClosed
	}
	if ts.Before(e.pauseUntil) {
		e.droppedWrites.Add(1)
		if e.metrics != nil {
			e.metrics.IncDroppedWrites()
		}
		return nil
	}

	if err := e.current.Write(data); err != nil {
		return fmt.Errorf("write buffer: %w", err)
	}
	if e.current.Len() < e.opts.Size {
		return nil
	}
	return e.cycle(ts)
}

// Clip truncates the current buffer to the threshold and returns what was
// removed. It returns an empty value when the buffer is within the threshold.
func (e *Emitter[T, R]) Clip() (T, error) {
	var zero T
	if e == nil || e.current == nil {
		return zero, ErrClosed
	}
	rest, _, err := clip(e.current, e.opts.Size)
	return rest, err
}

// Len returns the length of the current buffer.
func (e *Emitter[T, R]) Len() int {
	if e == nil || e.current == nil {
		return 0
	}
	return e.current.Len()
}

// Stats returns a snapshot of counters and pacing state. Like Write, it must
// be called from the producer goroutine.
func (e *Emitter[T, R]) Stats() Stats {
	if e == nil || e.spares == nil {
		return Stats{Closed: true}
	}
	return Stats{
		Mode:           e.opts.Mode,
		Size:           e.opts.Size,
		Len:            e.Len(),
		Cycles:         e.cycles.Load(),
		DroppedWrites:  e.droppedWrites.Load(),
		DispatchErrors: e.dispatchErrors.Load(),
		CycleStart:     e.cycleStart,
		PauseUntil:     e.pauseUntil,
		Spares:         e.spares.Stats(),
		Closed:         e.closed.Load(),
	}
}

func (e *Emitter[T, R]) String() string {
	if e == nil {
		return "Emitter(nil)"
	}
	return fmt.Sprintf("Emitter(mode=%s size=%d len=%d send_value=%t clip=%t cycles=%d)",
		e.opts.Mode, e.opts.Size, e.Len(), e.opts.SendValue, e.opts.Clip, e.cycles.Load())
}

// Close shuts down the worker pool, waiting for in-flight cycles unless
// AbandonOnClose is set. Further writes return ErrClosed. Close is
// idempotent and safe on a nil or zero Emitter.
func (e *Emitter[T, R]) Close() error {
	if e == nil {
		return nil
	}
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.mu.Lock()
	threads, procs := e.threads, e.procs
	e.threads, e.procs = nil, nil
	e.mu.Unlock()

	wait := !e.opts.AbandonOnClose
	if threads != nil {
		threads.Shutdown(wait)
	}
	if procs != nil {
		procs.Shutdown(wait)
	}
	if e.logger != nil {
		e.logger.Debug("emitter closed", "cycles", e.cycles.Load(), "waited", wait)
	}
	return nil
}

// cycle hands the filled buffer off and installs the next one. The swap and
// cooldown are complete before dispatch so a failed dispatch never blocks
// further writes.
func (e *Emitter[T, R]) cycle(ts time.Time) error {
	filled := e.current

	var leftover T
	carry := false
	if e.opts.Clip {
		rest, over, err := clip(filled, e.opts.Size)
		if err != nil {
			return fmt.Errorf("clip buffer: %w", err)
		}
		leftover, carry = rest, over > 0 && e.opts.Sampler == nil
	}

	e.seq++
	var (
		payload Payload[T]
		handed  backend.Backend[T]
	)
	if e.opts.SendValue {
		payload = valuePayload(filled.Value(), filled.Len(), e.seq)
		e.spares.Release(filled)
	} else {
		payload = bufferPayload(filled, e.seq)
		handed = filled
	}

	next := e.spares.Acquire()
	if carry {
		if err := next.Write(leftover); err != nil {
			e.logger.Warn("dropping overflow", "seq", e.seq, "error", err)
		}
	}
	e.current = next

	start := e.cycleStart
	e.cycleStart = ts
	if until := ts.Add(e.cooldown()); until.After(e.pauseUntil) {
		e.pauseUntil = until
	}

	e.cycles.Add(1)
	if e.metrics != nil {
		e.metrics.IncCycles(string(e.opts.Mode))
		e.metrics.ObservePayloadSize(payload.Len())
	}
	e.logger.Debug("cycle emitted",
		"seq", payload.Seq(),
		"size", payload.Len(),
		"carried", carry,
		"pause_until", e.pauseUntil,
	)

	return e.dispatch(payload, start, handed)
}

func (e *Emitter[T, R]) cooldown() time.Duration {
	if e.opts.Sampler == nil {
		return 0
	}
	if d := e.opts.Sampler.Sample(); d > 0 {
		return d
	}
	return 0
}

// clip truncates b to size and returns the removed remainder and its length.
func clip[T any](b backend.Backend[T], size int) (T, int, error) {
	n := b.Len()
	if n <= size {
		return b.ReadFrom(n), 0, nil
	}
	rest := b.ReadFrom(size)
	if err := b.Truncate(size); err != nil {
		var zero T
		return zero, 0, err
	}
	return rest, n - size, nil
}
