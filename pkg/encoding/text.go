// Package encoding provides the text codecs used by the model and motion formats.
package encoding

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Codec identifies an on-disk text encoding.
type Codec uint8

// Codec values match the PMX/MVD encoding byte.
const (
	UTF16LE  Codec = 0
	UTF8     Codec = 1
	ShiftJIS Codec = 2 // VMD names; never written into a PMX/MVD header
)

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case UTF16LE:
		return "utf-16le"
	case UTF8:
		return "utf-8"
	case ShiftJIS:
		return "shift_jis"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// ParseCodec converts a codec name (as used in configuration) to a Codec.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "utf-16le", "utf16", "utf-16":
		return UTF16LE, nil
	case "utf-8", "utf8":
		return UTF8, nil
	case "shift_jis", "sjis", "shift-jis":
		return ShiftJIS, nil
	default:
		return 0, fmt.Errorf("unknown text encoding %q", name)
	}
}

// Valid reports whether c is one of the known codecs.
func (c Codec) Valid() bool {
	return c <= ShiftJIS
}

func (c Codec) encoding() encoding.Encoding {
	switch c {
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case ShiftJIS:
		return japanese.ShiftJIS
	default:
		return nil
	}
}

// Decode converts encoded bytes to a UTF-8 string.
func (c Codec) Decode(data []byte) (string, error) {
	if c == UTF8 {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("invalid utf-8 text")
		}
		return string(data), nil
	}
	enc := c.encoding()
	if enc == nil {
		return "", fmt.Errorf("unknown text encoding %d", c)
	}
	result, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decoding %s text: %w", c, err)
	}
	return string(result), nil
}

// Encode converts a UTF-8 string to the codec's byte form.
func (c Codec) Encode(s string) ([]byte, error) {
	if c == UTF8 {
		return []byte(s), nil
	}
	enc := c.encoding()
	if enc == nil {
		return nil, fmt.Errorf("unknown text encoding %d", c)
	}
	result, _, err := transform.Bytes(enc.NewEncoder(), []byte(s))
	if err != nil {
		return nil, fmt.Errorf("encoding %s text: %w", c, err)
	}
	return result, nil
}

// DecodeFixed decodes a NUL-terminated string stored in a fixed-size field.
// Undecodable bytes are returned as-is.
func (c Codec) DecodeFixed(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	s, err := c.Decode(data)
	if err != nil {
		return string(data)
	}
	return s
}

// EncodeFixed encodes s into a NUL-padded field of size bytes. Text that does
// not fit is cut at a character boundary.
func (c Codec) EncodeFixed(s string, size int) ([]byte, error) {
	encoded, err := c.Encode(s)
	if err != nil {
		return nil, err
	}
	for len(encoded) > size {
		r := []rune(s)
		s = string(r[:len(r)-1])
		if encoded, err = c.Encode(s); err != nil {
			return nil, err
		}
	}
	result := make([]byte, size)
	copy(result, encoded)
	return result, nil
}
