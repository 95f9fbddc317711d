package emitter

import (
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v4"

	"github.com/jittakal/bufemit/pkg/backend"
	"github.com/jittakal/bufemit/pkg/workerpool"
)

var registry = struct {
	sync.RWMutex
	funcs map[string]any
}{funcs: make(map[string]any)}

// Register makes fn available to process-mode emitters under name. It panics
// if name is empty, fn is nil, or name is already registered.
func Register[T, R any](name string, fn ProcessFunc[T, R]) {
	if name == "" {
		panic("emitter: Register with empty name")
	}
	if fn == nil {
		panic("emitter: Register fn is nil")
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.funcs[name]; dup {
		panic("emitter: Register called twice for " + name)
	}
	registry.funcs[name] = fn
}

func lookup[T, R any](name string) (ProcessFunc[T, R], error) {
	registry.RLock()
	v, ok := registry.funcs[name]
	registry.RUnlock()
	if !ok {
		return nil, &ConfigurationError{Field: "ProcessName", Reason: name, Err: ErrNotRegistered}
	}
	fn, ok := v.(ProcessFunc[T, R])
	if !ok {
		return nil, &ConfigurationError{
			Field:  "ProcessName",
			Reason: fmt.Sprintf("%s is registered as %T, not %T", name, v, fn),
		}
	}
	return fn, nil
}

// request is the msgpack envelope sent to a process-mode worker.
type request[T any] struct {
	Seq   uint64    `msgpack:"seq"`
	Start time.Time `msgpack:"start"`
	Size  int       `msgpack:"size"`
	Value T         `msgpack:"value"`
}

func encodeRequest[T any](payload Payload[T], start time.Time) ([]byte, error) {
	b, err := msgpack.Marshal(&request[T]{
		Seq:   payload.Seq(),
		Start: start,
		Size:  payload.Len(),
		Value: payload.Value(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

func decodeResult[R any](b []byte) (R, error) {
	var result R
	if err := msgpack.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}

// processHandler adapts fn to the byte-level worker contract. When the
// emitter sends buffers, the worker rebuilds one from factory so the
// function still sees a Buffer.
func processHandler[T, R any](fn ProcessFunc[T, R], factory backend.Factory[T], sendValue bool) workerpool.Handler {
	return func(args []byte) ([]byte, error) {
		var req request[T]
		if err := msgpack.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}

		payload := valuePayload(req.Value, req.Size, req.Seq)
		if !sendValue {
			buf := factory()
			if err := buf.Write(req.Value); err != nil {
				return nil, fmt.Errorf("rebuild buffer: %w", err)
			}
			payload = bufferPayload(buf, req.Seq)
		}

		result, err := fn(payload, req.Start)
		if err != nil {
			return nil, err
		}
		b, err := msgpack.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		return b, nil
	}
}
