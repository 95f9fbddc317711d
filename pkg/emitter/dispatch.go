package emitter

import (
	"time"

	"github.com/jittakal/bufemit/pkg/backend"
)

// dispatch runs payload according to the emitter mode. handed is the filled
// buffer when it was sent by handle; it goes back to the free-list once the
// cycle is finished with it.
func (e *Emitter[T, R]) dispatch(payload Payload[T], start time.Time, handed backend.Backend[T]) error {
	seq := payload.Seq()
	began := time.Now()

	switch e.opts.Mode {
	case ModeThread:
		e.mu.Lock()
		pool := e.threads
		e.mu.Unlock()
		if pool == nil {
			return e.rejected(seq, ErrClosed, handed)
		}
		fut, err := pool.Submit(func() (R, error) {
			return e.fn(payload, start)
		})
		if err != nil {
			return e.rejected(seq, err, handed)
		}
		fut.OnComplete(func(result R, err error) {
			e.finish(seq, began, result, err, handed)
		})
		return nil

	case ModeProcess:
		e.mu.Lock()
		pool := e.procs
		e.mu.Unlock()
		if pool == nil {
			return e.rejected(seq, ErrClosed, handed)
		}
		args, err := encodeRequest(payload, start)
		if err != nil {
			return e.rejected(seq, err, handed)
		}
		// The worker only sees the encoded copy.
		e.release(handed)
		fut, err := pool.Submit(e.opts.ProcessName, args)
		if err != nil {
			return e.rejected(seq, err, nil)
		}
		fut.OnComplete(func(b []byte, err error) {
			var result R
			if err == nil {
				result, err = decodeResult[R](b)
			}
			e.finish(seq, began, result, err, nil)
		})
		return nil

	default:
		result, err := e.fn(payload, start)
		return e.finish(seq, began, result, err, handed)
	}
}

// finish records the outcome of one cycle, invokes OnDone and releases the
// handed buffer. It returns the *DispatchError passed to OnDone, if any.
func (e *Emitter[T, R]) finish(seq uint64, began time.Time, result R, err error, handed backend.Backend[T]) error {
	mode := string(e.opts.Mode)
	if e.metrics != nil {
		e.metrics.ObserveDispatchDuration(mode, time.Since(began).Seconds())
	}

	var derr error
	if err != nil {
		derr = &DispatchError{Mode: e.opts.Mode, Seq: seq, Err: err}
		e.dispatchErrors.Add(1)
		if e.metrics != nil {
			e.metrics.IncDispatchErrors(mode)
		}
		e.logger.Warn("cycle failed", "seq", seq, "error", err)
	}

	if e.opts.OnDone != nil {
		e.opts.OnDone(result, derr)
	}
	e.release(handed)
	return derr
}

// rejected handles a cycle that never reached a worker.
func (e *Emitter[T, R]) rejected(seq uint64, err error, handed backend.Backend[T]) error {
	e.dispatchErrors.Add(1)
	if e.metrics != nil {
		e.metrics.IncDispatchErrors(string(e.opts.Mode))
	}
	e.release(handed)
	e.logger.Warn("cycle not dispatched", "seq", seq, "error", err)
	return &DispatchError{Mode: e.opts.Mode, Seq: seq, Err: err}
}

func (e *Emitter[T, R]) release(b backend.Backend[T]) {
	if b != nil {
		e.spares.Release(b)
	}
}
