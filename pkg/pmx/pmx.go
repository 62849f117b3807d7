// Package pmx reads and writes PMX character models.
//
// Parsing runs in two passes. Preparse walks every block, validating each
// claimed size against the remaining bytes and recording block offsets in a
// DataInfo, without allocating entities. Parse then allocates and decodes
// from the recorded offsets. A model is only returned when both passes succeed.
package pmx

import (
	"errors"
	"fmt"

	"github.com/Faultbox/mmd-studio/pkg/binio"
	"github.com/Faultbox/mmd-studio/pkg/encoding"
)

// PMX format errors.
var (
	ErrInvalidPMXMagic       = errors.New("invalid PMX magic: expected 'PMX '")
	ErrUnsupportedPMXVersion = errors.New("unsupported PMX version")
)

const (
	pmxMagic = "PMX "

	// minGlobals is the number of header globals every PMX file carries.
	minGlobals = 8

	// MaxAdditionalUVs is the largest additional UV channel count.
	MaxAdditionalUVs = 4
)

// Supported format versions.
const (
	Version20 float32 = 2.0
	Version21 float32 = 2.1
)

// Header holds the model-wide settings that shape every record.
type Header struct {
	Version            float32
	Encoding           encoding.Codec
	AdditionalUVSize   int
	VertexIndexSize    int
	TextureIndexSize   int
	MaterialIndexSize  int
	BoneIndexSize      int
	MorphIndexSize     int
	RigidBodyIndexSize int
	ExtraGlobals       []byte // globals past the eighth, kept verbatim
}

// DefaultHeader returns the header used for new models.
func DefaultHeader() Header {
	return Header{
		Version:            Version20,
		Encoding:           encoding.UTF16LE,
		VertexIndexSize:    4,
		TextureIndexSize:   1,
		MaterialIndexSize:  1,
		BoneIndexSize:      2,
		MorphIndexSize:     2,
		RigidBodyIndexSize: 1,
	}
}

// Validate checks that every width and count in h is legal.
func (h *Header) Validate() error {
	if h.Version < Version20 || h.Version > Version21 {
		return fmt.Errorf("%w: %.1f", ErrUnsupportedPMXVersion, h.Version)
	}
	if h.Encoding != encoding.UTF16LE && h.Encoding != encoding.UTF8 {
		return fmt.Errorf("%w: text encoding %d", binio.ErrMalformedRecord, h.Encoding)
	}
	if h.AdditionalUVSize < 0 || h.AdditionalUVSize > MaxAdditionalUVs {
		return fmt.Errorf("%w: additional UV count %d", binio.ErrMalformedRecord, h.AdditionalUVSize)
	}
	widths := []struct {
		name  string
		value int
	}{
		{"vertex", h.VertexIndexSize},
		{"texture", h.TextureIndexSize},
		{"material", h.MaterialIndexSize},
		{"bone", h.BoneIndexSize},
		{"morph", h.MorphIndexSize},
		{"rigid body", h.RigidBodyIndexSize},
	}
	for _, w := range widths {
		if !binio.ValidIndexWidth(w.value) {
			return fmt.Errorf("%w: %s index size %d", binio.ErrMalformedRecord, w.name, w.value)
		}
	}
	return nil
}

// DataInfo is the result of Preparse: the header plus the offset and count
// of every block.
type DataInfo struct {
	Header

	VerticesOffset int
	VerticesCount  int
	VerticesLength int

	IndicesOffset int
	IndicesCount  int

	TexturesOffset int
	TexturesCount  int

	MaterialsOffset int
	MaterialsCount  int

	BonesOffset int
	BonesCount  int

	TrailerOffset int
}

// truncated wraps ErrTruncatedInput with what was being read.
func truncated(what string, args ...any) error {
	return fmt.Errorf("%w: %s", binio.ErrTruncatedInput, fmt.Sprintf(what, args...))
}

// readHeader decodes the magic, version and globals.
func readHeader(c *binio.Cursor) (Header, error) {
	var h Header

	magic, ok := c.Bytes(4)
	if !ok {
		return h, truncated("reading magic")
	}
	if string(magic) != pmxMagic {
		return h, ErrInvalidPMXMagic
	}
	if h.Version, ok = c.Float32(); !ok {
		return h, truncated("reading version")
	}

	count, ok := c.Size8()
	if !ok {
		return h, truncated("reading globals")
	}
	if count < minGlobals {
		return h, fmt.Errorf("%w: %d globals", binio.ErrMalformedRecord, count)
	}
	globals, _ := c.Bytes(count)

	h.Encoding = encoding.Codec(globals[0])
	h.AdditionalUVSize = int(globals[1])
	h.VertexIndexSize = int(globals[2])
	h.TextureIndexSize = int(globals[3])
	h.MaterialIndexSize = int(globals[4])
	h.BoneIndexSize = int(globals[5])
	h.MorphIndexSize = int(globals[6])
	h.RigidBodyIndexSize = int(globals[7])
	if count > minGlobals {
		h.ExtraGlobals = append([]byte(nil), globals[minGlobals:]...)
	}

	if err := h.Validate(); err != nil {
		return h, err
	}
	return h, nil
}

func writeHeader(w *binio.Writer, h *Header) {
	w.Bytes([]byte(pmxMagic))
	w.Float32(h.Version)
	w.Uint8(uint8(minGlobals + len(h.ExtraGlobals)))
	w.Bytes([]byte{
		uint8(h.Encoding),
		uint8(h.AdditionalUVSize),
		uint8(h.VertexIndexSize),
		uint8(h.TextureIndexSize),
		uint8(h.MaterialIndexSize),
		uint8(h.BoneIndexSize),
		uint8(h.MorphIndexSize),
		uint8(h.RigidBodyIndexSize),
	})
	w.Bytes(h.ExtraGlobals)
}

func headerSize(h *Header) int {
	return 4 + 4 + 1 + minGlobals + len(h.ExtraGlobals)
}

// skipText validates a length-prefixed text field.
func skipText(c *binio.Cursor) bool {
	n, ok := c.Size32()
	if !ok {
		return false
	}
	return c.ValidateSize(n)
}

// readText decodes a length-prefixed text field.
func readText(c *binio.Cursor, codec encoding.Codec) (string, error) {
	n, ok := c.Size32()
	if !ok {
		return "", truncated("reading text length")
	}
	b, ok := c.Bytes(n)
	if !ok {
		return "", truncated("reading text")
	}
	return codec.Decode(b)
}

func writeText(w *binio.Writer, codec encoding.Codec, s string) {
	b, err := codec.Encode(s)
	if err != nil {
		w.Fail(err)
		return
	}
	w.Int32(int32(len(b)))
	w.Bytes(b)
}

func textSize(codec encoding.Codec, s string) int {
	b, err := codec.Encode(s)
	if err != nil {
		return 4
	}
	return 4 + len(b)
}
