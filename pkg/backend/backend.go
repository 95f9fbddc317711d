// Package backend defines the buffer backend capability consumed by the emitter
// and the concrete byte, text, list and numeric-array backends.
//
// A backend is a sequential, append-only container. Length is counted in the
// backend's natural unit: bytes for Bytes, runes for Text, elements for List
// and rows for Array.
package backend

import "errors"

// Sentinel errors returned by backends.
var (
	ErrOutOfRange    = errors.New("offset out of range")
	ErrShapeMismatch = errors.New("data shape does not match buffer")
)

// Backend is a mutable sequential container the emitter writes into.
// Implementations are NOT safe for concurrent use.
type Backend[T any] interface {
	// Write appends data to the end of the buffer.
	Write(data T) error

	// Len returns the current length in the backend's unit.
	Len() int

	// Truncate shrinks the buffer to its first n units.
	Truncate(n int) error

	// Reset empties the buffer, keeping allocated memory for reuse.
	Reset()

	// Value returns a copy of the full contents.
	Value() T

	// ReadFrom returns a copy of everything from offset to the end.
	ReadFrom(offset int) T
}

// Factory creates empty backends.
type Factory[T any] func() Backend[T]

func checkTruncate(n, length int) error {
	if n < 0 || n > length {
		return ErrOutOfRange
	}
	return nil
}

func clampOffset(offset, length int) int {
	if offset < 0 {
		return 0
	}
	if offset > length {
		return length
	}
	return offset
}
