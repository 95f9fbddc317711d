package backend

// Ensure implementation satisfies interface at compile time.
var _ Backend[[]byte] = (*Bytes)(nil)

// Bytes is a byte-oriented backend.
type Bytes struct {
	data []byte
}

// NewBytes creates a byte backend with the given initial capacity.
func NewBytes(capacity int) *Bytes {
	if capacity < 0 {
		capacity = 0
	}
	return &Bytes{data: make([]byte, 0, capacity)}
}

// BytesFactory returns a Factory producing byte backends.
func BytesFactory(capacity int) Factory[[]byte] {
	return func() Backend[[]byte] {
		return NewBytes(capacity)
	}
}

// Write appends p.
func (b *Bytes) Write(p []byte) error {
	b.data = append(b.data, p...)
	return nil
}

// Len returns the number of bytes written.
func (b *Bytes) Len() int {
	return len(b.data)
}

// Truncate keeps the first n bytes.
func (b *Bytes) Truncate(n int) error {
	if err := checkTruncate(n, len(b.data)); err != nil {
		return err
	}
	b.data = b.data[:n]
	return nil
}

// Reset empties the buffer.
func (b *Bytes) Reset() {
	b.data = b.data[:0]
}

// Value returns a copy of the contents.
func (b *Bytes) Value() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// ReadFrom returns a copy of the bytes from offset to the end.
func (b *Bytes) ReadFrom(offset int) []byte {
	offset = clampOffset(offset, len(b.data))
	out := make([]byte, len(b.data)-offset)
	copy(out, b.data[offset:])
	return out
}
