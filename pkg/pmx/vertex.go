package pmx

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmd-studio/pkg/binio"
)

// SkinningType selects how a vertex is bound to bones.
type SkinningType uint8

// Skinning types as stored in the vertex type tag.
const (
	BDEF1 SkinningType = 0 // single bone
	BDEF2 SkinningType = 1 // two bones, linear blend
	BDEF4 SkinningType = 2 // four bones, linear blend
	SDEF  SkinningType = 3 // two bones, spherical blend
)

// String returns the conventional skinning name.
func (t SkinningType) String() string {
	switch t {
	case BDEF1:
		return "BDEF1"
	case BDEF2:
		return "BDEF2"
	case BDEF4:
		return "BDEF4"
	case SDEF:
		return "SDEF"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// BoneCount returns how many bone indices the type stores.
func (t SkinningType) BoneCount() int {
	switch t {
	case BDEF1:
		return 1
	case BDEF2, SDEF:
		return 2
	case BDEF4:
		return 4
	default:
		return 0
	}
}

// payloadSize returns the byte size of the skinning payload, excluding the
// type tag and the edge scale.
func (t SkinningType) payloadSize(boneIndexSize int) (int, bool) {
	switch t {
	case BDEF1:
		return boneIndexSize, true
	case BDEF2:
		return boneIndexSize*2 + 4, true
	case BDEF4:
		return boneIndexSize*4 + 16, true
	case SDEF:
		return boneIndexSize*2 + 40, true
	default:
		return 0, false
	}
}

const (
	vertexUnitSize    = 32 // position, normal, texcoord
	additionalUVSize  = 16
	vertexTypeTagSize = 1
	vertexEdgeSize    = 4
	noBone            = int32(-1)
)

// Vertex is a skinned model vertex.
//
// Unused bone slots hold -1 and unused weights 0. For BDEF2 and SDEF only
// Weights[0] is stored; the second bone's weight is 1-Weights[0] (see Weight).
// BDEF4 weights are kept exactly as stored and need not sum to one.
type Vertex struct {
	Origin    mgl32.Vec3
	Normal    mgl32.Vec3
	TexCoord  mgl32.Vec2
	UVs       [MaxAdditionalUVs]mgl32.Vec4
	Type      SkinningType
	Bones     [4]int32
	Weights   [4]float32
	SdefC     mgl32.Vec3
	SdefR0    mgl32.Vec3
	SdefR1    mgl32.Vec3
	EdgeScale float32
}

// NewVertex returns a BDEF1 vertex bound to no bone.
func NewVertex() *Vertex {
	v := &Vertex{EdgeScale: 1}
	v.SetBDEF1(noBone)
	return v
}

func (v *Vertex) resetSkinning(t SkinningType) {
	v.Type = t
	v.Bones = [4]int32{noBone, noBone, noBone, noBone}
	v.Weights = [4]float32{}
	v.SdefC = mgl32.Vec3{}
	v.SdefR0 = mgl32.Vec3{}
	v.SdefR1 = mgl32.Vec3{}
}

// SetBDEF1 binds the vertex to a single bone.
func (v *Vertex) SetBDEF1(bone int32) {
	v.resetSkinning(BDEF1)
	v.Bones[0] = bone
	v.Weights[0] = 1
}

// SetBDEF2 blends two bones; weight applies to bone0.
func (v *Vertex) SetBDEF2(bone0, bone1 int32, weight float32) {
	v.resetSkinning(BDEF2)
	v.Bones[0], v.Bones[1] = bone0, bone1
	v.Weights[0] = weight
}

// SetBDEF4 blends four bones with independent weights.
func (v *Vertex) SetBDEF4(bones [4]int32, weights [4]float32) {
	v.resetSkinning(BDEF4)
	v.Bones = bones
	v.Weights = weights
}

// SetSDEF binds two bones with spherical deformation parameters.
func (v *Vertex) SetSDEF(bone0, bone1 int32, weight float32, c, r0, r1 mgl32.Vec3) {
	v.resetSkinning(SDEF)
	v.Bones[0], v.Bones[1] = bone0, bone1
	v.Weights[0] = weight
	v.SdefC, v.SdefR0, v.SdefR1 = c, r0, r1
}

// Weight returns the effective weight of bone slot i.
func (v *Vertex) Weight(i int) float32 {
	if i < 0 || i >= 4 {
		return 0
	}
	switch v.Type {
	case BDEF1:
		if i == 0 {
			return 1
		}
		return 0
	case BDEF2, SDEF:
		switch i {
		case 0:
			return v.Weights[0]
		case 1:
			return 1 - v.Weights[0]
		}
		return 0
	default:
		return v.Weights[i]
	}
}

// remapBones rewrites bone references through fn.
func (v *Vertex) remapBones(fn func(int32) int32) {
	for i := 0; i < v.Type.BoneCount(); i++ {
		v.Bones[i] = fn(v.Bones[i])
	}
}

// PreparseVertices walks the vertex block at the cursor without allocating
// vertices and records its offset, count and byte length in info.
// An unknown skinning type or a short buffer fails the whole parse.
func PreparseVertices(c *binio.Cursor, info *DataInfo) error {
	count, ok := c.Size32()
	if !ok {
		return truncated("reading vertex count")
	}
	info.VerticesOffset = c.Offset()

	baseSize := vertexUnitSize + additionalUVSize*info.AdditionalUVSize
	for i := 0; i < count; i++ {
		if !c.ValidateSize(baseSize) {
			return truncated("vertex %d", i)
		}
		tag, ok := c.Uint8()
		if !ok {
			return truncated("vertex %d skinning type", i)
		}
		size, known := SkinningType(tag).payloadSize(info.BoneIndexSize)
		if !known {
			return fmt.Errorf("%w: vertex %d skinning type %d", binio.ErrMalformedRecord, i, tag)
		}
		if !c.ValidateSize(size + vertexEdgeSize) {
			return truncated("vertex %d skinning payload", i)
		}
	}

	info.VerticesCount = count
	info.VerticesLength = c.Offset() - info.VerticesOffset
	return nil
}

// Read decodes one vertex from the start of data and returns the number of
// bytes consumed.
func (v *Vertex) Read(data []byte, info *DataInfo) (int, error) {
	c := binio.NewCursor(data)

	var ok bool
	if v.Origin, ok = c.Vec3(); !ok {
		return 0, truncated("vertex position")
	}
	if v.Normal, ok = c.Vec3(); !ok {
		return 0, truncated("vertex normal")
	}
	if v.TexCoord, ok = c.Vec2(); !ok {
		return 0, truncated("vertex texcoord")
	}
	v.UVs = [MaxAdditionalUVs]mgl32.Vec4{}
	for i := 0; i < info.AdditionalUVSize; i++ {
		if v.UVs[i], ok = c.Vec4(); !ok {
			return 0, truncated("vertex additional uv %d", i)
		}
	}

	tag, ok := c.Uint8()
	if !ok {
		return 0, truncated("vertex skinning type")
	}
	t := SkinningType(tag)
	if _, known := t.payloadSize(info.BoneIndexSize); !known {
		return 0, fmt.Errorf("%w: skinning type %d", binio.ErrMalformedRecord, tag)
	}
	v.resetSkinning(t)

	for i := 0; i < t.BoneCount(); i++ {
		if v.Bones[i], ok = c.VariantIndex(info.BoneIndexSize); !ok {
			return 0, truncated("vertex bone index %d", i)
		}
	}
	switch t {
	case BDEF1:
		v.Weights[0] = 1
	case BDEF2:
		if v.Weights[0], ok = c.Float32(); !ok {
			return 0, truncated("vertex bdef2 weight")
		}
	case BDEF4:
		if !c.Float32s(v.Weights[:]) {
			return 0, truncated("vertex bdef4 weights")
		}
	case SDEF:
		if v.SdefC, ok = c.Vec3(); !ok {
			return 0, truncated("vertex sdef c")
		}
		if v.SdefR0, ok = c.Vec3(); !ok {
			return 0, truncated("vertex sdef r0")
		}
		if v.SdefR1, ok = c.Vec3(); !ok {
			return 0, truncated("vertex sdef r1")
		}
		if v.Weights[0], ok = c.Float32(); !ok {
			return 0, truncated("vertex sdef weight")
		}
	}

	if v.EdgeScale, ok = c.Float32(); !ok {
		return 0, truncated("vertex edge scale")
	}
	return c.Offset(), nil
}

// Write encodes v; the output is the exact inverse of Read.
func (v *Vertex) Write(w *binio.Writer, info *DataInfo) {
	w.Vec3(v.Origin)
	w.Vec3(v.Normal)
	w.Vec2(v.TexCoord)
	for i := 0; i < info.AdditionalUVSize; i++ {
		w.Vec4(v.UVs[i])
	}

	if _, known := v.Type.payloadSize(info.BoneIndexSize); !known {
		w.Fail(fmt.Errorf("%w: skinning type %d", binio.ErrMalformedRecord, v.Type))
		return
	}
	w.Uint8(uint8(v.Type))
	for i := 0; i < v.Type.BoneCount(); i++ {
		w.VariantIndex(v.Bones[i], info.BoneIndexSize)
	}
	switch v.Type {
	case BDEF2:
		w.Float32(v.Weights[0])
	case BDEF4:
		w.Float32s(v.Weights[:]...)
	case SDEF:
		w.Vec3(v.SdefC)
		w.Vec3(v.SdefR0)
		w.Vec3(v.SdefR1)
		w.Float32(v.Weights[0])
	}
	w.Float32(v.EdgeScale)
}

// EstimateSize returns the encoded size of v.
func (v *Vertex) EstimateSize(info *DataInfo) int {
	size, _ := v.Type.payloadSize(info.BoneIndexSize)
	return vertexUnitSize + additionalUVSize*info.AdditionalUVSize + vertexTypeTagSize + size + vertexEdgeSize
}
