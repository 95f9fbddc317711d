package workerpool

import "sync"

// CompletionFunc is invoked once a unit of work has finished.
type CompletionFunc[R any] func(result R, err error)

// Future is the handle of one submitted unit of work.
type Future[R any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	result    R
	err       error
	callbacks []CompletionFunc[R]
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

// OnComplete registers fn to run when the work finishes. Callbacks run on the
// goroutine that completed the work, in registration order. If the work has
// already finished, fn runs immediately on the calling goroutine.
func (f *Future[R]) OnComplete(fn CompletionFunc[R]) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	result, err := f.result, f.err
	f.mu.Unlock()
	fn(result, err)
}

// Wait blocks until the work finishes and returns its outcome.
func (f *Future[R]) Wait() (R, error) {
	<-f.done
	return f.result, f.err
}

// Done is closed once the work has finished.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// complete records the outcome and runs the callbacks registered so far.
func (f *Future[R]) complete(result R, err error) {
	f.mu.Lock()
	f.result, f.err = result, err
	f.completed = true
	pending := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range pending {
		cb(result, err)
	}
}
