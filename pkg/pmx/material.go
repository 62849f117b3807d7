package pmx

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmd-studio/pkg/binio"
)

// MaterialFlags are the per-material draw flags.
type MaterialFlags uint8

// Material draw flags.
const (
	MaterialDisableCulling MaterialFlags = 1 << iota
	MaterialCastGroundShadow
	MaterialCastSelfShadowMap
	MaterialRenderSelfShadow
	MaterialEdge
	MaterialVertexColor
	MaterialPointDraw
	MaterialLineDraw
)

// SphereMode selects how the sphere texture is blended.
type SphereMode uint8

// Sphere texture modes.
const (
	SphereNone SphereMode = iota
	SphereMultiply
	SphereAdd
	SphereSubTexture
)

// Material describes how a contiguous run of face indices is drawn.
type Material struct {
	Name      string
	NameEn    string
	Diffuse   mgl32.Vec4
	Specular  mgl32.Vec3
	Shininess float32
	Ambient   mgl32.Vec3
	Flags     MaterialFlags
	EdgeColor mgl32.Vec4
	EdgeSize  float32

	TextureIndex       int32
	SphereTextureIndex int32
	SphereMode         SphereMode

	// SharedToon selects a built-in toon texture by ToonIndex instead of a
	// model texture.
	SharedToon bool
	ToonIndex  int32

	Memo       string
	IndexCount int32
}

// NewMaterial returns a material with no textures bound.
func NewMaterial() *Material {
	return &Material{
		Diffuse:            mgl32.Vec4{1, 1, 1, 1},
		EdgeColor:          mgl32.Vec4{0, 0, 0, 1},
		EdgeSize:           1,
		TextureIndex:       -1,
		SphereTextureIndex: -1,
		ToonIndex:          -1,
	}
}

// fixed part after the names: diffuse, specular, shininess, ambient, flags,
// edge color, edge size.
const materialColorSize = 16 + 12 + 4 + 12 + 1 + 16 + 4

func preparseMaterial(c *binio.Cursor, info *DataInfo) bool {
	if !skipText(c) || !skipText(c) {
		return false
	}
	if !c.ValidateSize(materialColorSize + info.TextureIndexSize*2 + 1) {
		return false
	}
	shared, ok := c.Uint8()
	if !ok {
		return false
	}
	toonSize := info.TextureIndexSize
	if shared != 0 {
		toonSize = 1
	}
	if !c.ValidateSize(toonSize) || !skipText(c) {
		return false
	}
	return c.ValidateSize(4)
}

// Read decodes one material from the start of data and returns the number of
// bytes consumed.
func (m *Material) Read(data []byte, info *DataInfo) (int, error) {
	c := binio.NewCursor(data)
	codec := info.Encoding

	var err error
	if m.Name, err = readText(c, codec); err != nil {
		return 0, fmt.Errorf("material name: %w", err)
	}
	if m.NameEn, err = readText(c, codec); err != nil {
		return 0, fmt.Errorf("material english name: %w", err)
	}

	var ok bool
	if m.Diffuse, ok = c.Vec4(); !ok {
		return 0, truncated("material diffuse")
	}
	if m.Specular, ok = c.Vec3(); !ok {
		return 0, truncated("material specular")
	}
	if m.Shininess, ok = c.Float32(); !ok {
		return 0, truncated("material shininess")
	}
	if m.Ambient, ok = c.Vec3(); !ok {
		return 0, truncated("material ambient")
	}
	flags, ok := c.Uint8()
	if !ok {
		return 0, truncated("material flags")
	}
	m.Flags = MaterialFlags(flags)
	if m.EdgeColor, ok = c.Vec4(); !ok {
		return 0, truncated("material edge color")
	}
	if m.EdgeSize, ok = c.Float32(); !ok {
		return 0, truncated("material edge size")
	}
	if m.TextureIndex, ok = c.VariantIndex(info.TextureIndexSize); !ok {
		return 0, truncated("material texture index")
	}
	if m.SphereTextureIndex, ok = c.VariantIndex(info.TextureIndexSize); !ok {
		return 0, truncated("material sphere texture index")
	}
	mode, ok := c.Uint8()
	if !ok {
		return 0, truncated("material sphere mode")
	}
	m.SphereMode = SphereMode(mode)
	shared, ok := c.Uint8()
	if !ok {
		return 0, truncated("material toon mode")
	}
	m.SharedToon = shared != 0
	if m.SharedToon {
		toon, ok := c.Uint8()
		if !ok {
			return 0, truncated("material shared toon")
		}
		m.ToonIndex = int32(toon)
	} else if m.ToonIndex, ok = c.VariantIndex(info.TextureIndexSize); !ok {
		return 0, truncated("material toon texture index")
	}
	if m.Memo, err = readText(c, codec); err != nil {
		return 0, fmt.Errorf("material memo: %w", err)
	}
	if m.IndexCount, ok = c.Int32(); !ok {
		return 0, truncated("material index count")
	}
	return c.Offset(), nil
}

// Write encodes m.
func (m *Material) Write(w *binio.Writer, info *DataInfo) {
	writeText(w, info.Encoding, m.Name)
	writeText(w, info.Encoding, m.NameEn)
	w.Vec4(m.Diffuse)
	w.Vec3(m.Specular)
	w.Float32(m.Shininess)
	w.Vec3(m.Ambient)
	w.Uint8(uint8(m.Flags))
	w.Vec4(m.EdgeColor)
	w.Float32(m.EdgeSize)
	w.VariantIndex(m.TextureIndex, info.TextureIndexSize)
	w.VariantIndex(m.SphereTextureIndex, info.TextureIndexSize)
	w.Uint8(uint8(m.SphereMode))
	if m.SharedToon {
		w.Uint8(1)
		w.Uint8(uint8(m.ToonIndex))
	} else {
		w.Uint8(0)
		w.VariantIndex(m.ToonIndex, info.TextureIndexSize)
	}
	writeText(w, info.Encoding, m.Memo)
	w.Int32(m.IndexCount)
}

// EstimateSize returns the encoded size of m.
func (m *Material) EstimateSize(info *DataInfo) int {
	size := textSize(info.Encoding, m.Name) + textSize(info.Encoding, m.NameEn)
	size += materialColorSize + info.TextureIndexSize*2 + 2
	if m.SharedToon {
		size++
	} else {
		size += info.TextureIndexSize
	}
	return size + textSize(info.Encoding, m.Memo) + 4
}
