package workerpool

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownHandler is returned when submitting to a handler name that was
// never registered with the pool.
var ErrUnknownHandler = errors.New("unknown handler")

// Handler processes a serialized request and returns a serialized response.
type Handler func(args []byte) ([]byte, error)

// ProcessPool runs named handlers over byte payloads. Handlers receive a
// private copy of their arguments and the caller receives a private copy of
// the response, so a handler never observes memory owned by the submitter.
type ProcessPool struct {
	pool *Pool[[]byte]

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewProcessPool creates a pool running at most size handlers concurrently.
func NewProcessPool(size int) *ProcessPool {
	return &ProcessPool{
		pool:     New[[]byte](size),
		handlers: make(map[string]Handler),
	}
}

// Handle registers h under name, replacing any previous handler.
func (p *ProcessPool) Handle(name string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[name] = h
}

// Submit runs the handler registered under name with a copy of args.
func (p *ProcessPool) Submit(name string, args []byte) (*Future[[]byte], error) {
	p.mu.RLock()
	h, ok := p.handlers[name]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, name)
	}

	request := clone(args)
	return p.pool.Submit(func() ([]byte, error) {
		response, err := h(request)
		if err != nil {
			return nil, err
		}
		return clone(response), nil
	})
}

// Shutdown stops accepting work, optionally waiting for in-flight handlers.
func (p *ProcessPool) Shutdown(wait bool) {
	p.pool.Shutdown(wait)
}

// Size returns the maximum number of concurrently running handlers.
func (p *ProcessPool) Size() int {
	return p.pool.Size()
}

// Stats returns a snapshot of pool counters.
func (p *ProcessPool) Stats() Stats {
	return p.pool.Stats()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
