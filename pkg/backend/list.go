package backend

// List is a homogeneous list backend. Each Write appends all elements of the
// given slice.
type List[E any] struct {
	items []E
}

// NewList creates a list backend with the given initial capacity.
func NewList[E any](capacity int) *List[E] {
	if capacity < 0 {
		capacity = 0
	}
	return &List[E]{items: make([]E, 0, capacity)}
}

// ListFactory returns a Factory producing list backends.
func ListFactory[E any](capacity int) Factory[[]E] {
	return func() Backend[[]E] {
		return NewList[E](capacity)
	}
}

// Write appends items.
func (l *List[E]) Write(items []E) error {
	l.items = append(l.items, items...)
	return nil
}

// Len returns the number of elements.
func (l *List[E]) Len() int {
	return len(l.items)
}

// Truncate keeps the first n elements.
func (l *List[E]) Truncate(n int) error {
	if err := checkTruncate(n, len(l.items)); err != nil {
		return err
	}
	clear(l.items[n:])
	l.items = l.items[:n]
	return nil
}

// Reset empties the list. Dropped elements are zeroed so the backing array
// does not keep them reachable.
func (l *List[E]) Reset() {
	clear(l.items)
	l.items = l.items[:0]
}

// Value returns a shallow copy of the elements.
func (l *List[E]) Value() []E {
	out := make([]E, len(l.items))
	copy(out, l.items)
	return out
}

// ReadFrom returns a shallow copy of the elements from offset to the end.
func (l *List[E]) ReadFrom(offset int) []E {
	offset = clampOffset(offset, len(l.items))
	out := make([]E, len(l.items)-offset)
	copy(out, l.items[offset:])
	return out
}
