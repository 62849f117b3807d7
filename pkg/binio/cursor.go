// Package binio provides the bounds-checked byte cursor and the record writer
// shared by the model and motion codecs.
package binio

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Codec error taxonomy.
var (
	// ErrTruncatedInput means a claimed size exceeds the remaining bytes.
	ErrTruncatedInput = errors.New("truncated input")
	// ErrMalformedRecord means a record carries an unknown tag or a bad header.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrIndexOutOfRange means a positional lookup missed.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Cursor is a sequential reader over a byte buffer. Every read validates the
// claimed size against the remaining bytes before touching the data; a failed
// read returns false and never reads past the end of the buffer.
type Cursor struct {
	data []byte
	off  int
}

// NewCursor returns a cursor positioned at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int {
	return c.off
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.off
}

// Len returns the size of the underlying buffer.
func (c *Cursor) Len() int {
	return len(c.data)
}

// Seek moves the cursor to an absolute offset.
// Returns false if the offset lies outside the buffer.
func (c *Cursor) Seek(offset int) bool {
	if offset < 0 || offset > len(c.data) {
		return false
	}
	c.off = offset
	return true
}

// ValidateSize advances the cursor by n bytes if that many remain.
// The cursor is left untouched on failure.
func (c *Cursor) ValidateSize(n int) bool {
	if n < 0 || n > c.Remaining() {
		return false
	}
	c.off += n
	return true
}

// take returns the next n bytes and advances past them.
func (c *Cursor) take(n int) ([]byte, bool) {
	start := c.off
	if !c.ValidateSize(n) {
		return nil, false
	}
	return c.data[start:c.off], true
}

// Bytes returns the next n bytes without copying.
func (c *Cursor) Bytes(n int) ([]byte, bool) {
	return c.take(n)
}

// Size8 reads a one-byte count and checks it fits in the remaining bytes.
func (c *Cursor) Size8() (int, bool) {
	v, ok := c.Uint8()
	if !ok {
		return 0, false
	}
	return c.checkSize(int(v))
}

// Size16 reads a two-byte count and checks it fits in the remaining bytes.
func (c *Cursor) Size16() (int, bool) {
	v, ok := c.Uint16()
	if !ok {
		return 0, false
	}
	return c.checkSize(int(v))
}

// Size32 reads a four-byte count and checks it fits in the remaining bytes.
// Counts are stored signed on disk; negative values are rejected.
func (c *Cursor) Size32() (int, bool) {
	v, ok := c.Int32()
	if !ok || v < 0 {
		return 0, false
	}
	return c.checkSize(int(v))
}

func (c *Cursor) checkSize(n int) (int, bool) {
	if n > c.Remaining() {
		return n, false
	}
	return n, true
}

// Uint8 reads one byte.
func (c *Cursor) Uint8() (uint8, bool) {
	b, ok := c.take(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

// Int8 reads one signed byte.
func (c *Cursor) Int8() (int8, bool) {
	v, ok := c.Uint8()
	return int8(v), ok
}

// Uint16 reads a little-endian uint16.
func (c *Cursor) Uint16() (uint16, bool) {
	b, ok := c.take(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

// Int16 reads a little-endian int16.
func (c *Cursor) Int16() (int16, bool) {
	v, ok := c.Uint16()
	return int16(v), ok
}

// Uint32 reads a little-endian uint32.
func (c *Cursor) Uint32() (uint32, bool) {
	b, ok := c.take(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

// Int32 reads a little-endian int32.
func (c *Cursor) Int32() (int32, bool) {
	v, ok := c.Uint32()
	return int32(v), ok
}

// Uint64 reads a little-endian uint64.
func (c *Cursor) Uint64() (uint64, bool) {
	b, ok := c.take(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

// Float32 reads a little-endian IEEE-754 binary32.
func (c *Cursor) Float32() (float32, bool) {
	v, ok := c.Uint32()
	return math.Float32frombits(v), ok
}

// Float32s fills dst with consecutive floats.
func (c *Cursor) Float32s(dst []float32) bool {
	b, ok := c.take(4 * len(dst))
	if !ok {
		return false
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return true
}

// Vec2 reads two floats.
func (c *Cursor) Vec2() (mgl32.Vec2, bool) {
	var v mgl32.Vec2
	ok := c.Float32s(v[:])
	return v, ok
}

// Vec3 reads three floats.
func (c *Cursor) Vec3() (mgl32.Vec3, bool) {
	var v mgl32.Vec3
	ok := c.Float32s(v[:])
	return v, ok
}

// Vec4 reads four floats.
func (c *Cursor) Vec4() (mgl32.Vec4, bool) {
	var v mgl32.Vec4
	ok := c.Float32s(v[:])
	return v, ok
}

// VariantIndex reads a signed index stored in width bytes (1, 2 or 4) and
// sign-extends it, so -1 keeps meaning "none" at every width.
func (c *Cursor) VariantIndex(width int) (int32, bool) {
	switch width {
	case 1:
		v, ok := c.Int8()
		return int32(v), ok
	case 2:
		v, ok := c.Int16()
		return int32(v), ok
	case 4:
		return c.Int32()
	default:
		return 0, false
	}
}

// UnsignedIndex reads an index stored in width bytes. One and two byte
// indices are unsigned; four byte indices are signed.
func (c *Cursor) UnsignedIndex(width int) (int32, bool) {
	switch width {
	case 1:
		v, ok := c.Uint8()
		return int32(v), ok
	case 2:
		v, ok := c.Uint16()
		return int32(v), ok
	case 4:
		return c.Int32()
	default:
		return 0, false
	}
}

// ValidIndexWidth reports whether width is a legal index width.
func ValidIndexWidth(width int) bool {
	return width == 1 || width == 2 || width == 4
}
