package pmx

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmd-studio/pkg/binio"
)

// BoneFlags is the bone capability bitfield.
type BoneFlags uint16

// Bone flags.
const (
	BoneHasDestinationBone      BoneFlags = 0x0001
	BoneRotatable               BoneFlags = 0x0002
	BoneMovable                 BoneFlags = 0x0004
	BoneVisible                 BoneFlags = 0x0008
	BoneInteractive             BoneFlags = 0x0010
	BoneHasIK                   BoneFlags = 0x0020
	BoneLocalInherent           BoneFlags = 0x0080
	BoneInherentRotation        BoneFlags = 0x0100
	BoneInherentTranslation     BoneFlags = 0x0200
	BoneFixedAxis               BoneFlags = 0x0400
	BoneLocalAxes               BoneFlags = 0x0800
	BoneTransformAfterPhysics   BoneFlags = 0x1000
	BoneTransformExternalParent BoneFlags = 0x2000
)

// Has reports whether every bit of f is set.
func (b BoneFlags) Has(f BoneFlags) bool { return b&f == f }

func (b BoneFlags) String() string {
	names := []struct {
		flag BoneFlags
		name string
	}{
		{BoneHasDestinationBone, "destination"},
		{BoneRotatable, "rotatable"},
		{BoneMovable, "movable"},
		{BoneVisible, "visible"},
		{BoneInteractive, "interactive"},
		{BoneHasIK, "ik"},
		{BoneLocalInherent, "local-inherent"},
		{BoneInherentRotation, "inherent-rotation"},
		{BoneInherentTranslation, "inherent-translation"},
		{BoneFixedAxis, "fixed-axis"},
		{BoneLocalAxes, "local-axes"},
		{BoneTransformAfterPhysics, "after-physics"},
		{BoneTransformExternalParent, "external-parent"},
	}
	var parts []string
	for _, n := range names {
		if b.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// IKLink is one joint of an IK chain.
type IKLink struct {
	Bone       int32
	HasLimit   bool
	LowerLimit mgl32.Vec3
	UpperLimit mgl32.Vec3
}

// Bone is a model bone. References to other bones are indices into the
// owning model's bone list; -1 means none.
type Bone struct {
	name   string
	NameEn string
	Origin mgl32.Vec3
	Parent int32
	Layer  int32
	Flags  BoneFlags

	DestinationBone   int32
	DestinationOrigin mgl32.Vec3

	InherentParent      int32
	InherentCoefficient float32

	FixedAxis mgl32.Vec3
	AxisX     mgl32.Vec3
	AxisZ     mgl32.Vec3

	ExternalKey int32

	Effector int32
	IKLoops  int32
	IKAngle  float32
	IKLinks  []IKLink

	index int
}

// NewBone returns a detached bone with no capabilities.
func NewBone(name string) *Bone {
	return &Bone{
		name:            name,
		Parent:          -1,
		DestinationBone: -1,
		InherentParent:  -1,
		Effector:        -1,
		index:           -1,
	}
}

// Name returns the japanese bone name.
func (b *Bone) Name() string { return b.name }

// SetName renames the bone. Lookups through the owning model see the new
// name immediately.
func (b *Bone) SetName(name string) { b.name = name }

// Index returns the bone's position in its model, or -1 when detached.
func (b *Bone) Index() int { return b.index }

// remapBones rewrites every bone reference through fn.
func (b *Bone) remapBones(fn func(int32) int32) {
	b.Parent = fn(b.Parent)
	if b.Flags.Has(BoneHasDestinationBone) {
		b.DestinationBone = fn(b.DestinationBone)
	}
	b.InherentParent = fn(b.InherentParent)
	b.Effector = fn(b.Effector)
	for i := range b.IKLinks {
		b.IKLinks[i].Bone = fn(b.IKLinks[i].Bone)
	}
}

const ikLinkLimitSize = 24

func preparseBone(c *binio.Cursor, info *DataInfo) bool {
	if !skipText(c) || !skipText(c) {
		return false
	}
	if !c.ValidateSize(12 + info.BoneIndexSize + 4) {
		return false
	}
	raw, ok := c.Uint16()
	if !ok {
		return false
	}
	flags := BoneFlags(raw)

	size := 12
	if flags.Has(BoneHasDestinationBone) {
		size = info.BoneIndexSize
	}
	if flags&(BoneInherentRotation|BoneInherentTranslation) != 0 {
		size += info.BoneIndexSize + 4
	}
	if flags.Has(BoneFixedAxis) {
		size += 12
	}
	if flags.Has(BoneLocalAxes) {
		size += 24
	}
	if flags.Has(BoneTransformExternalParent) {
		size += 4
	}
	if !c.ValidateSize(size) {
		return false
	}
	if !flags.Has(BoneHasIK) {
		return true
	}

	if !c.ValidateSize(info.BoneIndexSize + 8) {
		return false
	}
	links, ok := c.Size32()
	if !ok {
		return false
	}
	for i := 0; i < links; i++ {
		if !c.ValidateSize(info.BoneIndexSize) {
			return false
		}
		limit, ok := c.Uint8()
		if !ok {
			return false
		}
		if limit != 0 && !c.ValidateSize(ikLinkLimitSize) {
			return false
		}
	}
	return true
}

// Read decodes one bone from the start of data and returns the number of
// bytes consumed.
func (b *Bone) Read(data []byte, info *DataInfo) (int, error) {
	c := binio.NewCursor(data)
	width := info.BoneIndexSize
	*b = Bone{index: b.index}

	var err error
	if b.name, err = readText(c, info.Encoding); err != nil {
		return 0, fmt.Errorf("bone name: %w", err)
	}
	if b.NameEn, err = readText(c, info.Encoding); err != nil {
		return 0, fmt.Errorf("bone english name: %w", err)
	}

	var ok bool
	if b.Origin, ok = c.Vec3(); !ok {
		return 0, truncated("bone origin")
	}
	if b.Parent, ok = c.VariantIndex(width); !ok {
		return 0, truncated("bone parent")
	}
	if b.Layer, ok = c.Int32(); !ok {
		return 0, truncated("bone layer")
	}
	raw, ok := c.Uint16()
	if !ok {
		return 0, truncated("bone flags")
	}
	b.Flags = BoneFlags(raw)

	b.DestinationBone = -1
	if b.Flags.Has(BoneHasDestinationBone) {
		if b.DestinationBone, ok = c.VariantIndex(width); !ok {
			return 0, truncated("bone destination")
		}
	} else if b.DestinationOrigin, ok = c.Vec3(); !ok {
		return 0, truncated("bone destination origin")
	}

	b.InherentParent = -1
	if b.Flags&(BoneInherentRotation|BoneInherentTranslation) != 0 {
		if b.InherentParent, ok = c.VariantIndex(width); !ok {
			return 0, truncated("bone inherent parent")
		}
		if b.InherentCoefficient, ok = c.Float32(); !ok {
			return 0, truncated("bone inherent coefficient")
		}
	}
	if b.Flags.Has(BoneFixedAxis) {
		if b.FixedAxis, ok = c.Vec3(); !ok {
			return 0, truncated("bone fixed axis")
		}
	}
	if b.Flags.Has(BoneLocalAxes) {
		if b.AxisX, ok = c.Vec3(); !ok {
			return 0, truncated("bone local x axis")
		}
		if b.AxisZ, ok = c.Vec3(); !ok {
			return 0, truncated("bone local z axis")
		}
	}
	if b.Flags.Has(BoneTransformExternalParent) {
		if b.ExternalKey, ok = c.Int32(); !ok {
			return 0, truncated("bone external key")
		}
	}

	b.Effector = -1
	if b.Flags.Has(BoneHasIK) {
		if b.Effector, ok = c.VariantIndex(width); !ok {
			return 0, truncated("bone ik effector")
		}
		if b.IKLoops, ok = c.Int32(); !ok {
			return 0, truncated("bone ik loops")
		}
		if b.IKAngle, ok = c.Float32(); !ok {
			return 0, truncated("bone ik angle")
		}
		count, ok := c.Size32()
		if !ok {
			return 0, truncated("bone ik link count")
		}
		b.IKLinks = make([]IKLink, count)
		for i := range b.IKLinks {
			link := &b.IKLinks[i]
			if link.Bone, ok = c.VariantIndex(width); !ok {
				return 0, truncated("bone ik link %d", i)
			}
			limit, ok := c.Uint8()
			if !ok {
				return 0, truncated("bone ik link %d limit flag", i)
			}
			if limit != 0 {
				link.HasLimit = true
				if link.LowerLimit, ok = c.Vec3(); !ok {
					return 0, truncated("bone ik link %d lower limit", i)
				}
				if link.UpperLimit, ok = c.Vec3(); !ok {
					return 0, truncated("bone ik link %d upper limit", i)
				}
			}
		}
	}
	return c.Offset(), nil
}

// Write encodes b.
func (b *Bone) Write(w *binio.Writer, info *DataInfo) {
	width := info.BoneIndexSize
	writeText(w, info.Encoding, b.name)
	writeText(w, info.Encoding, b.NameEn)
	w.Vec3(b.Origin)
	w.VariantIndex(b.Parent, width)
	w.Int32(b.Layer)
	w.Uint16(uint16(b.Flags))
	if b.Flags.Has(BoneHasDestinationBone) {
		w.VariantIndex(b.DestinationBone, width)
	} else {
		w.Vec3(b.DestinationOrigin)
	}
	if b.Flags&(BoneInherentRotation|BoneInherentTranslation) != 0 {
		w.VariantIndex(b.InherentParent, width)
		w.Float32(b.InherentCoefficient)
	}
	if b.Flags.Has(BoneFixedAxis) {
		w.Vec3(b.FixedAxis)
	}
	if b.Flags.Has(BoneLocalAxes) {
		w.Vec3(b.AxisX)
		w.Vec3(b.AxisZ)
	}
	if b.Flags.Has(BoneTransformExternalParent) {
		w.Int32(b.ExternalKey)
	}
	if b.Flags.Has(BoneHasIK) {
		w.VariantIndex(b.Effector, width)
		w.Int32(b.IKLoops)
		w.Float32(b.IKAngle)
		w.Int32(int32(len(b.IKLinks)))
		for _, link := range b.IKLinks {
			w.VariantIndex(link.Bone, width)
			if link.HasLimit {
				w.Uint8(1)
				w.Vec3(link.LowerLimit)
				w.Vec3(link.UpperLimit)
			} else {
				w.Uint8(0)
			}
		}
	}
}

// EstimateSize returns the encoded size of b.
func (b *Bone) EstimateSize(info *DataInfo) int {
	width := info.BoneIndexSize
	size := textSize(info.Encoding, b.name) + textSize(info.Encoding, b.NameEn)
	size += 12 + width + 4 + 2
	if b.Flags.Has(BoneHasDestinationBone) {
		size += width
	} else {
		size += 12
	}
	if b.Flags&(BoneInherentRotation|BoneInherentTranslation) != 0 {
		size += width + 4
	}
	if b.Flags.Has(BoneFixedAxis) {
		size += 12
	}
	if b.Flags.Has(BoneLocalAxes) {
		size += 24
	}
	if b.Flags.Has(BoneTransformExternalParent) {
		size += 4
	}
	if b.Flags.Has(BoneHasIK) {
		size += width + 12
		for _, link := range b.IKLinks {
			size += width + 1
			if link.HasLimit {
				size += ikLinkLimitSize
			}
		}
	}
	return size
}
