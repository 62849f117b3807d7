package binio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestCursor_ValidateSize(t *testing.T) {
	c := NewCursor(make([]byte, 8))

	if !c.ValidateSize(4) {
		t.Fatal("expected 4 bytes to validate")
	}
	if c.Offset() != 4 {
		t.Errorf("expected offset 4, got %d", c.Offset())
	}
	if c.ValidateSize(5) {
		t.Error("expected 5 bytes to fail with 4 remaining")
	}
	if c.Offset() != 4 {
		t.Errorf("failed validation must not advance, offset %d", c.Offset())
	}
	if c.ValidateSize(-1) {
		t.Error("negative size must fail")
	}
	if !c.ValidateSize(4) || c.Remaining() != 0 {
		t.Error("expected to consume the rest")
	}
}

func TestCursor_Size32(t *testing.T) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, int32(3))
	buf.Write([]byte{1, 2, 3})

	c := NewCursor(buf.Bytes())
	n, ok := c.Size32()
	if !ok || n != 3 {
		t.Fatalf("expected count 3, got %d (ok=%v)", n, ok)
	}

	buf.Reset()
	binary.Write(buf, binary.LittleEndian, int32(10))
	buf.Write([]byte{1, 2})
	if _, ok := NewCursor(buf.Bytes()).Size32(); ok {
		t.Error("count larger than remaining bytes must fail")
	}

	buf.Reset()
	binary.Write(buf, binary.LittleEndian, int32(-1))
	if _, ok := NewCursor(buf.Bytes()).Size32(); ok {
		t.Error("negative count must fail")
	}
}

func TestCursor_Size8And16(t *testing.T) {
	c := NewCursor([]byte{2, 0xAA, 0xBB})
	if n, ok := c.Size8(); !ok || n != 2 {
		t.Errorf("Size8: got %d ok=%v", n, ok)
	}

	c = NewCursor([]byte{0x05, 0x00, 1})
	if _, ok := c.Size16(); ok {
		t.Error("Size16 with 5 claimed and 1 remaining must fail")
	}
}

func TestCursor_VariantIndex(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		width int
		want  int32
	}{
		{"width1 -1", []byte{0xFF}, 1, -1},
		{"width1 127", []byte{0x7F}, 1, 127},
		{"width2 -1", []byte{0xFF, 0xFF}, 2, -1},
		{"width2 300", []byte{0x2C, 0x01}, 2, 300},
		{"width4 -1", []byte{0xFF, 0xFF, 0xFF, 0xFF}, 4, -1},
		{"width4 70000", []byte{0x70, 0x11, 0x01, 0x00}, 4, 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewCursor(tt.data).VariantIndex(tt.width)
			if !ok {
				t.Fatal("read failed")
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}

	if _, ok := NewCursor([]byte{1, 2, 3}).VariantIndex(3); ok {
		t.Error("width 3 must fail")
	}
}

func TestCursor_UnsignedIndex(t *testing.T) {
	if v, _ := NewCursor([]byte{0xFF}).UnsignedIndex(1); v != 255 {
		t.Errorf("expected 255, got %d", v)
	}
	if v, _ := NewCursor([]byte{0xFF, 0xFF}).UnsignedIndex(2); v != 65535 {
		t.Errorf("expected 65535, got %d", v)
	}
}

func TestCursor_ShortReads(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	if _, ok := c.Float32(); ok {
		t.Error("float from 3 bytes must fail")
	}
	if _, ok := c.Uint64(); ok {
		t.Error("uint64 from 3 bytes must fail")
	}
	if _, ok := c.Vec3(); ok {
		t.Error("vec3 from 3 bytes must fail")
	}
	if c.Offset() != 0 {
		t.Errorf("failed reads must not advance, offset %d", c.Offset())
	}
}
