package binio

import (
	"fmt"
	"io"
	"math"

	"github.com/anaminus/parse"
	"github.com/go-gl/mathgl/mgl32"
)

// Writer emits little-endian records. The first failure sticks: every later
// call is a no-op and End reports the error.
type Writer struct {
	fw *parse.BinaryWriter
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{fw: parse.NewBinaryWriter(w)}
}

// Err returns the first error encountered.
func (w *Writer) Err() error {
	return w.fw.Err()
}

// End returns the number of bytes written and the first error.
func (w *Writer) End() (int64, error) {
	return w.fw.End()
}

// Fail records err unless an earlier error is already held.
func (w *Writer) Fail(err error) {
	if err == nil || w.fw.Err() != nil {
		return
	}
	w.fw.Add(0, err)
}

// Bytes writes b verbatim.
func (w *Writer) Bytes(b []byte) {
	if len(b) == 0 {
		return
	}
	w.fw.Bytes(b)
}

// Zeros writes n zero bytes.
func (w *Writer) Zeros(n int) {
	if n <= 0 {
		return
	}
	w.fw.Bytes(make([]byte, n))
}

// Uint8 writes one byte.
func (w *Writer) Uint8(v uint8) { w.fw.Number(v) }

// Int8 writes one signed byte.
func (w *Writer) Int8(v int8) { w.fw.Number(v) }

// Uint16 writes a uint16.
func (w *Writer) Uint16(v uint16) { w.fw.Number(v) }

// Int16 writes an int16.
func (w *Writer) Int16(v int16) { w.fw.Number(v) }

// Uint32 writes a uint32.
func (w *Writer) Uint32(v uint32) { w.fw.Number(v) }

// Int32 writes an int32.
func (w *Writer) Int32(v int32) { w.fw.Number(v) }

// Uint64 writes a uint64.
func (w *Writer) Uint64(v uint64) { w.fw.Number(v) }

// Float32 writes a binary32.
func (w *Writer) Float32(v float32) { w.fw.Number(v) }

// Float32s writes each float in order.
func (w *Writer) Float32s(vs ...float32) {
	for _, v := range vs {
		w.fw.Number(v)
	}
}

// Vec2 writes two floats.
func (w *Writer) Vec2(v mgl32.Vec2) { w.Float32s(v[:]...) }

// Vec3 writes three floats.
func (w *Writer) Vec3(v mgl32.Vec3) { w.Float32s(v[:]...) }

// Vec4 writes four floats.
func (w *Writer) Vec4(v mgl32.Vec4) { w.Float32s(v[:]...) }

// VariantIndex writes a signed index in width bytes. A value that does not
// fit the width fails the writer with ErrIndexOutOfRange.
func (w *Writer) VariantIndex(v int32, width int) {
	switch width {
	case 1:
		if v < math.MinInt8 || v > math.MaxInt8 {
			w.indexOverflow(v, width)
			return
		}
		w.Int8(int8(v))
	case 2:
		if v < math.MinInt16 || v > math.MaxInt16 {
			w.indexOverflow(v, width)
			return
		}
		w.Int16(int16(v))
	case 4:
		w.Int32(v)
	default:
		w.Fail(fmt.Errorf("%w: index width %d", ErrMalformedRecord, width))
	}
}

// UnsignedIndex writes an index with the unsigned 1/2 byte convention.
// Values outside [0, 255] or [0, 65535] fail the writer with
// ErrIndexOutOfRange.
func (w *Writer) UnsignedIndex(v int32, width int) {
	switch width {
	case 1:
		if v < 0 || v > math.MaxUint8 {
			w.indexOverflow(v, width)
			return
		}
		w.Uint8(uint8(v))
	case 2:
		if v < 0 || v > math.MaxUint16 {
			w.indexOverflow(v, width)
			return
		}
		w.Uint16(uint16(v))
	case 4:
		w.Int32(v)
	default:
		w.Fail(fmt.Errorf("%w: index width %d", ErrMalformedRecord, width))
	}
}

func (w *Writer) indexOverflow(v int32, width int) {
	w.Fail(fmt.Errorf("%w: %d does not fit in %d bytes", ErrIndexOutOfRange, v, width))
}
