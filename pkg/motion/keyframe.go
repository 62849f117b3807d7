// Package motion holds keyframed animation: per-kind section stores, the
// motion that combines them, and the MVD and VMD codecs.
//
// A section keeps its keyframes sorted by (time index, layer index) and holds
// at most one keyframe per key; adding a keyframe at an occupied key replaces
// the previous one. Seek resolves every track to its value at a time index
// and caches the result until the next Seek.
package motion

import (
	"fmt"
	"math"
)

// Kind identifies the track kind of a keyframe.
type Kind uint8

// Keyframe kinds.
const (
	KindBone Kind = iota
	KindMorph
	KindCamera
	KindLight
	KindProject
)

func (k Kind) String() string {
	switch k {
	case KindBone:
		return "bone"
	case KindMorph:
		return "morph"
	case KindCamera:
		return "camera"
	case KindLight:
		return "light"
	case KindProject:
		return "project"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Keyframe is the part every keyframe kind shares.
type Keyframe interface {
	Kind() Kind
	TimeIndex() float64
	SetTimeIndex(v float64)
	LayerIndex() int32
	SetLayerIndex(v int32)

	keyBase() *base
}

// owner is the section a keyframe is attached to. Changing the key of an
// attached keyframe goes through the owner so ordering and uniqueness hold.
type owner interface {
	rekey(b *base, apply func())
	detach(b *base)
}

type base struct {
	timeIndex   float64
	layerIndex  int32
	singleLayer bool
	owner       owner
}

func clampTime(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func clampLayer(v int32) int32 {
	if v < 0 {
		return 0
	}
	return v
}

func (b *base) keyBase() *base { return b }

// TimeIndex returns the frame the keyframe sits on.
func (b *base) TimeIndex() float64 { return b.timeIndex }

// LayerIndex returns the blend layer of the keyframe.
func (b *base) LayerIndex() int32 { return b.layerIndex }

// SetTimeIndex moves the keyframe. Negative values clamp to 0. If another
// keyframe of the same section already sits on the new key, it is replaced.
func (b *base) SetTimeIndex(v float64) {
	b.setKey(clampTime(v), b.layerIndex)
}

// SetLayerIndex moves the keyframe to another layer. Negative values clamp
// to 0. Morph, light and project keyframes always stay on layer 0.
func (b *base) SetLayerIndex(v int32) {
	if b.singleLayer {
		v = 0
	}
	b.setKey(b.timeIndex, clampLayer(v))
}

func (b *base) setKey(time float64, layer int32) {
	if b.owner == nil {
		b.timeIndex, b.layerIndex = time, layer
		return
	}
	b.owner.rekey(b, func() { b.timeIndex, b.layerIndex = time, layer })
}

// Attached reports whether the keyframe belongs to a section.
func (b *base) Attached() bool { return b.owner != nil }

func keyLess(t0 float64, l0 int32, t1 float64, l1 int32) bool {
	if t0 != t1 {
		return t0 < t1
	}
	return l0 < l1
}

// normalizedTime returns where t lies between t0 and t1 on [0,1].
func normalizedTime(t, t0, t1 float64) float64 {
	if t1 <= t0 {
		return 1
	}
	v := (t - t0) / (t1 - t0)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
