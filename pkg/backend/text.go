package backend

import "unicode/utf8"

// Ensure implementation satisfies interface at compile time.
var _ Backend[string] = (*Text)(nil)

// Text is a text-oriented backend. Length and offsets are counted in runes,
// so truncation never splits a multi-byte character.
type Text struct {
	data  []byte
	runes int
}

// NewText creates an empty text backend.
func NewText() *Text {
	return &Text{}
}

// TextFactory returns a Factory producing text backends.
func TextFactory() Factory[string] {
	return func() Backend[string] {
		return NewText()
	}
}

// Write appends s.
func (t *Text) Write(s string) error {
	t.data = append(t.data, s...)
	t.runes += utf8.RuneCountInString(s)
	return nil
}

// Len returns the number of runes written.
func (t *Text) Len() int {
	return t.runes
}

// Truncate keeps the first n runes.
func (t *Text) Truncate(n int) error {
	if err := checkTruncate(n, t.runes); err != nil {
		return err
	}
	t.data = t.data[:t.byteOffset(n)]
	t.runes = n
	return nil
}

// Reset empties the buffer.
func (t *Text) Reset() {
	t.data = t.data[:0]
	t.runes = 0
}

// Value returns the contents as a string.
func (t *Text) Value() string {
	return string(t.data)
}

// ReadFrom returns the text from rune offset to the end.
func (t *Text) ReadFrom(offset int) string {
	offset = clampOffset(offset, t.runes)
	return string(t.data[t.byteOffset(offset):])
}

// byteOffset converts a rune offset into a byte offset.
func (t *Text) byteOffset(runes int) int {
	if runes == t.runes {
		return len(t.data)
	}
	pos := 0
	for i := 0; i < runes; i++ {
		_, size := utf8.DecodeRune(t.data[pos:])
		pos += size
	}
	return pos
}
