package emitter

import "github.com/jittakal/bufemit/pkg/backend"

// Payload is what a processing function receives for one cycle: either a
// copied value or the filled buffer itself.
type Payload[T any] struct {
	value T
	buf   backend.Backend[T]
	size  int
	seq   uint64
}

func valuePayload[T any](value T, size int, seq uint64) Payload[T] {
	return Payload[T]{value: value, size: size, seq: seq}
}

func bufferPayload[T any](buf backend.Backend[T], seq uint64) Payload[T] {
	return Payload[T]{buf: buf, size: buf.Len(), seq: seq}
}

// Value returns the cycle's content. For buffer payloads this copies the
// buffer contents.
func (p Payload[T]) Value() T {
	if p.buf != nil {
		return p.buf.Value()
	}
	return p.value
}

// Buffer returns the filled buffer, or nil when the payload was sent by
// value. The buffer must not be written to and must not be retained after
// the processing function returns.
func (p Payload[T]) Buffer() backend.Backend[T] {
	return p.buf
}

// Len returns the payload length in the backend's unit.
func (p Payload[T]) Len() int {
	return p.size
}

// Seq returns the cycle sequence number, starting at 1.
func (p Payload[T]) Seq() uint64 {
	return p.seq
}
