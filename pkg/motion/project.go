package motion

import "github.com/go-gl/mathgl/mgl32"

// DefaultGravityDirection is the gravity of a new project.
var DefaultGravityDirection = mgl32.Vec3{0, -9.8, 0}

// DefaultGravityFactor scales DefaultGravityDirection.
const DefaultGravityFactor = 1

// ProjectKeyframe sets the physics and shadow parameters at one time index.
// Project keyframes always live on layer 0.
type ProjectKeyframe struct {
	base
	GravityFactor    float32
	GravityDirection mgl32.Vec3
	ShadowMode       int32
	ShadowDistance   float32
	ShadowDepth      float32
}

// NewProjectKeyframe returns a keyframe holding the default constants.
func NewProjectKeyframe() *ProjectKeyframe {
	return &ProjectKeyframe{
		base:             base{singleLayer: true},
		GravityFactor:    DefaultGravityFactor,
		GravityDirection: DefaultGravityDirection,
	}
}

// Kind returns KindProject.
func (kf *ProjectKeyframe) Kind() Kind { return KindProject }

// ProjectState is the resolved project parameters.
type ProjectState struct {
	GravityFactor    float32
	GravityDirection mgl32.Vec3
	ShadowMode       int32
	ShadowDistance   float32
	ShadowDepth      float32
}

func (kf *ProjectKeyframe) state() ProjectState {
	return ProjectState{
		GravityFactor:    kf.GravityFactor,
		GravityDirection: kf.GravityDirection,
		ShadowMode:       kf.ShadowMode,
		ShadowDistance:   kf.ShadowDistance,
		ShadowDepth:      kf.ShadowDepth,
	}
}

// ProjectSection stores project keyframes. Values step at keyframes rather
// than interpolating.
type ProjectSection struct {
	track  track[*ProjectKeyframe]
	state  ProjectState
	layout sectionLayout
	dirty  bool
}

// NewProjectSection returns an empty section.
func NewProjectSection() *ProjectSection {
	return &ProjectSection{state: NewProjectKeyframe().state(), layout: defaultLayout(projectRecordSize)}
}

// CreateFirstKeyframeUnlessFound adds a default keyframe at time 0 when none
// exists there, so consumers always find physics constants.
func (s *ProjectSection) CreateFirstKeyframeUnlessFound() *ProjectKeyframe {
	if kf := s.FindKeyframe(0); kf != nil {
		return kf
	}
	kf := NewProjectKeyframe()
	s.AddKeyframe(kf)
	return kf
}

// AddKeyframe inserts kf, replacing a keyframe at the same time.
func (s *ProjectSection) AddKeyframe(kf *ProjectKeyframe) {
	if kf == nil {
		return
	}
	if kf.owner != nil && kf.owner != owner(s) {
		kf.owner.detach(&kf.base)
	}
	kf.singleLayer, kf.layerIndex = true, 0
	s.track.add(kf, s)
	s.dirty = true
}

// DeleteKeyframe removes kf and detaches it.
func (s *ProjectSection) DeleteKeyframe(kf *ProjectKeyframe) bool {
	if kf == nil || !s.track.remove(kf) {
		return false
	}
	s.dirty = true
	return true
}

func (s *ProjectSection) rekey(b *base, apply func()) {
	if !s.track.rekey(b, apply, s) {
		apply()
	}
	s.dirty = true
}

func (s *ProjectSection) detach(b *base) {
	if i := s.track.indexOf(b); i >= 0 {
		s.track.removeAt(i)
		s.dirty = true
	}
}

// FindKeyframe returns the keyframe at exactly time, or nil.
func (s *ProjectSection) FindKeyframe(time float64) *ProjectKeyframe {
	kf, _ := s.track.find(time, 0)
	return kf
}

// FindKeyframeAt returns the keyframe at ordinal i, or nil when i is out of
// range.
func (s *ProjectSection) FindKeyframeAt(i int) *ProjectKeyframe {
	kf, _ := s.track.at(i)
	return kf
}

// Keyframes returns the keyframes in time order.
func (s *ProjectSection) Keyframes() []*ProjectKeyframe { return s.track.clone() }

// CountKeyframes returns the number of keyframes.
func (s *ProjectSection) CountKeyframes() int { return s.track.len() }

// CountLayers returns 1 when the section has keyframes and 0 otherwise.
func (s *ProjectSection) CountLayers() int { return len(s.track.layers()) }

// MaxTimeIndex returns the latest keyframe time.
func (s *ProjectSection) MaxTimeIndex() float64 { return s.track.maxTimeIndex() }

// Dirty reports whether the section changed since the last Seek.
func (s *ProjectSection) Dirty() bool { return s.dirty }

// Clear removes every keyframe.
func (s *ProjectSection) Clear() {
	s.track.clear()
	s.dirty = true
}

// Seek resolves the project parameters at time: the values of the latest
// keyframe at or before time, or of the earliest keyframe when time precedes
// all of them.
func (s *ProjectSection) Seek(time float64) {
	state := NewProjectKeyframe().state()
	if prev, _, _, ok := s.track.resolve(time, 0); ok {
		state = prev.state()
	}
	s.state = state
	s.dirty = false
}

// State returns the parameters resolved by the last Seek.
func (s *ProjectSection) State() ProjectState { return s.state }
