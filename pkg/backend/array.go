package backend

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Number is the element constraint for numeric array backends.
type Number interface {
	constraints.Integer | constraints.Float
}

// Array is a numeric array backend holding rows of a fixed width, stored
// row-major in one flat slice. Len counts rows, so the emission threshold is
// expressed in rows as well.
type Array[N Number] struct {
	width int
	data  []N
}

// NewArray creates an array backend whose rows have the given width.
// A width below 1 is treated as 1 (a flat vector).
func NewArray[N Number](width int) *Array[N] {
	if width < 1 {
		width = 1
	}
	return &Array[N]{width: width}
}

// ArrayFactory returns a Factory producing array backends.
func ArrayFactory[N Number](width int) Factory[[]N] {
	return func() Backend[[]N] {
		return NewArray[N](width)
	}
}

// Width returns the row width.
func (a *Array[N]) Width() int {
	return a.width
}

// Write appends one or more whole rows.
func (a *Array[N]) Write(rows []N) error {
	if len(rows)%a.width != 0 {
		return fmt.Errorf("%w: %d values is not a multiple of row width %d", ErrShapeMismatch, len(rows), a.width)
	}
	a.data = append(a.data, rows...)
	return nil
}

// Len returns the number of rows.
func (a *Array[N]) Len() int {
	return len(a.data) / a.width
}

// Truncate keeps the first n rows.
func (a *Array[N]) Truncate(n int) error {
	if err := checkTruncate(n, a.Len()); err != nil {
		return err
	}
	a.data = a.data[:n*a.width]
	return nil
}

// Reset empties the array.
func (a *Array[N]) Reset() {
	a.data = a.data[:0]
}

// Value returns a copy of all rows, flattened.
func (a *Array[N]) Value() []N {
	out := make([]N, len(a.data))
	copy(out, a.data)
	return out
}

// ReadFrom returns a copy of the rows from offset to the end, flattened.
func (a *Array[N]) ReadFrom(offset int) []N {
	offset = clampOffset(offset, a.Len())
	start := offset * a.width
	out := make([]N, len(a.data)-start)
	copy(out, a.data[start:])
	return out
}

// Row returns a copy of row i.
func (a *Array[N]) Row(i int) ([]N, error) {
	if i < 0 || i >= a.Len() {
		return nil, ErrOutOfRange
	}
	out := make([]N, a.width)
	copy(out, a.data[i*a.width:(i+1)*a.width])
	return out, nil
}
