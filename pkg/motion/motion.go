package motion

import (
	"fmt"
	"os"

	"github.com/Faultbox/mmd-studio/pkg/encoding"
)

// DefaultVersion is the MVD version written for new motions.
const DefaultVersion float32 = 1.0

// Motion combines one section per keyframe kind behind a single time cursor.
type Motion struct {
	Name        string
	Name2       string
	ScaleFactor float32
	Version     float32
	Encoding    encoding.Codec

	reservedText []byte
	names        nameList

	bones   *BoneSection
	morphs  *MorphSection
	camera  *CameraSection
	light   *LightSection
	project *ProjectSection

	current float64
}

// NewMotion returns an empty motion.
func NewMotion() *Motion {
	return &Motion{
		ScaleFactor: 1,
		Version:     DefaultVersion,
		Encoding:    encoding.UTF8,
		names:       nameList{layout: defaultLayout(0)},
		bones:       NewBoneSection(),
		morphs:      NewMorphSection(),
		camera:      NewCameraSection(),
		light:       NewLightSection(),
		project:     NewProjectSection(),
	}
}

// ParseFile reads an MVD or VMD motion from disk, picking the codec by
// signature.
func ParseFile(path string) (*Motion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return Parse(data)
}

// Parse decodes an MVD or VMD motion, picking the codec by signature.
func Parse(data []byte) (*Motion, error) {
	if IsVMD(data) {
		return ReadVMD(data)
	}
	m := NewMotion()
	if err := m.Load(data); err != nil {
		return nil, err
	}
	return m, nil
}

// BoneSection returns the bone keyframe store.
func (m *Motion) BoneSection() *BoneSection { return m.bones }

// MorphSection returns the morph keyframe store.
func (m *Motion) MorphSection() *MorphSection { return m.morphs }

// CameraSection returns the camera keyframe store.
func (m *Motion) CameraSection() *CameraSection { return m.camera }

// LightSection returns the light keyframe store.
func (m *Motion) LightSection() *LightSection { return m.light }

// ProjectSection returns the project keyframe store.
func (m *Motion) ProjectSection() *ProjectSection { return m.project }

// AddKeyframe routes kf to the section of its kind.
func (m *Motion) AddKeyframe(kf Keyframe) error {
	switch k := kf.(type) {
	case *BoneKeyframe:
		m.bones.AddKeyframe(k)
	case *MorphKeyframe:
		m.morphs.AddKeyframe(k)
	case *CameraKeyframe:
		m.camera.AddKeyframe(k)
	case *LightKeyframe:
		m.light.AddKeyframe(k)
	case *ProjectKeyframe:
		m.project.AddKeyframe(k)
	default:
		return fmt.Errorf("unsupported keyframe %T", kf)
	}
	return nil
}

// DeleteKeyframe removes kf from the section of its kind.
func (m *Motion) DeleteKeyframe(kf Keyframe) bool {
	switch k := kf.(type) {
	case *BoneKeyframe:
		return m.bones.DeleteKeyframe(k)
	case *MorphKeyframe:
		return m.morphs.DeleteKeyframe(k)
	case *CameraKeyframe:
		return m.camera.DeleteKeyframe(k)
	case *LightKeyframe:
		return m.light.DeleteKeyframe(k)
	case *ProjectKeyframe:
		return m.project.DeleteKeyframe(k)
	}
	return false
}

// CountKeyframes returns the number of keyframes of one kind.
func (m *Motion) CountKeyframes(kind Kind) int {
	switch kind {
	case KindBone:
		return m.bones.CountKeyframes()
	case KindMorph:
		return m.morphs.CountKeyframes()
	case KindCamera:
		return m.camera.CountKeyframes()
	case KindLight:
		return m.light.CountKeyframes()
	case KindProject:
		return m.project.CountKeyframes()
	}
	return 0
}

// Seek moves the time cursor and resolves every section at it. Negative
// times clamp to 0.
func (m *Motion) Seek(time float64) {
	time = clampTime(time)
	m.bones.Seek(time)
	m.morphs.Seek(time)
	m.camera.Seek(time)
	m.light.Seek(time)
	m.project.Seek(time)
	m.current = time
}

// Advance moves the time cursor forward by delta frames.
func (m *Motion) Advance(delta float64) {
	m.Seek(m.current + delta)
}

// Reset moves the time cursor back to the first frame.
func (m *Motion) Reset() {
	m.Seek(0)
}

// CurrentTimeIndex returns the time cursor.
func (m *Motion) CurrentTimeIndex() float64 { return m.current }

// MaxTimeIndex returns the latest keyframe time across all sections.
func (m *Motion) MaxTimeIndex() float64 {
	max := m.bones.MaxTimeIndex()
	for _, v := range []float64{
		m.morphs.MaxTimeIndex(),
		m.camera.MaxTimeIndex(),
		m.light.MaxTimeIndex(),
		m.project.MaxTimeIndex(),
	} {
		if v > max {
			max = v
		}
	}
	return max
}

// IsReachedTo reports whether the time cursor is at or past time.
func (m *Motion) IsReachedTo(time float64) bool {
	return m.current >= time
}

// Dirty reports whether any section changed since the last Seek.
func (m *Motion) Dirty() bool {
	return m.bones.Dirty() || m.morphs.Dirty() || m.camera.Dirty() || m.light.Dirty() || m.project.Dirty()
}

// BoneState returns the resolved transform of the named bone.
func (m *Motion) BoneState(name string) (BoneState, bool) { return m.bones.State(name) }

// MorphWeight returns the resolved weight of the named morph.
func (m *Motion) MorphWeight(name string) (float32, bool) { return m.morphs.Weight(name) }

// Camera returns the resolved camera.
func (m *Motion) Camera() CameraState { return m.camera.State() }

// Light returns the resolved light.
func (m *Motion) Light() LightState { return m.light.State() }

// Project returns the resolved physics and shadow parameters.
func (m *Motion) Project() ProjectState { return m.project.State() }
