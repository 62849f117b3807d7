package motion

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmd-studio/pkg/interpolation"
)

// CameraComponent selects one of the interpolated camera channels.
type CameraComponent int

// Camera interpolation channels.
const (
	CameraX CameraComponent = iota
	CameraY
	CameraZ
	CameraRotation
	CameraDistance
	CameraFovy
	cameraComponents
)

// Camera defaults for new keyframes.
const (
	DefaultCameraDistance = 45
	DefaultCameraFovy     = 30
)

// CameraKeyframe places the camera at one time index.
type CameraKeyframe struct {
	base

	LookAt      mgl32.Vec3
	Angle       mgl32.Vec3 // euler radians
	Distance    float32
	Fovy        float32 // degrees
	Perspective bool

	params [cameraComponents]interpolation.Parameter
}

// NewCameraKeyframe returns a keyframe at the default camera position.
func NewCameraKeyframe() *CameraKeyframe {
	kf := &CameraKeyframe{
		LookAt:      mgl32.Vec3{0, 10, 0},
		Distance:    DefaultCameraDistance,
		Fovy:        DefaultCameraFovy,
		Perspective: true,
	}
	for i := range kf.params {
		kf.params[i] = interpolation.DefaultParameter
	}
	return kf
}

// Kind returns KindCamera.
func (kf *CameraKeyframe) Kind() Kind { return KindCamera }

// InterpolationParameter returns the easing curve of channel c.
func (kf *CameraKeyframe) InterpolationParameter(c CameraComponent) interpolation.Parameter {
	if c < 0 || c >= cameraComponents {
		return interpolation.DefaultParameter
	}
	return kf.params[c]
}

// SetInterpolationParameter replaces the easing curve of channel c.
func (kf *CameraKeyframe) SetInterpolationParameter(c CameraComponent, p interpolation.Parameter) {
	if c < 0 || c >= cameraComponents {
		return
	}
	kf.params[c] = p
}

// CameraState is the resolved camera.
type CameraState struct {
	LookAt      mgl32.Vec3
	Angle       mgl32.Vec3
	Distance    float32
	Fovy        float32
	Perspective bool
}

func defaultCameraState() CameraState {
	kf := NewCameraKeyframe()
	return CameraState{
		LookAt:      kf.LookAt,
		Angle:       kf.Angle,
		Distance:    kf.Distance,
		Fovy:        kf.Fovy,
		Perspective: kf.Perspective,
	}
}

func (kf *CameraKeyframe) interpolate(next *CameraKeyframe, amount float64) CameraState {
	var s CameraState
	for i := 0; i < 3; i++ {
		p := next.params[CameraX+CameraComponent(i)]
		s.LookAt[i] = interpolation.Lerp(p, kf.LookAt[i], next.LookAt[i], amount)
		s.Angle[i] = interpolation.Lerp(next.params[CameraRotation], kf.Angle[i], next.Angle[i], amount)
	}
	s.Distance = interpolation.Lerp(next.params[CameraDistance], kf.Distance, next.Distance, amount)
	s.Fovy = interpolation.Lerp(next.params[CameraFovy], kf.Fovy, next.Fovy, amount)
	s.Perspective = kf.Perspective
	if amount >= 1 {
		s.Perspective = next.Perspective
	}
	return s
}

// CameraSection stores camera keyframes.
type CameraSection struct {
	track  track[*CameraKeyframe]
	state  CameraState
	layout sectionLayout
	dirty  bool
}

// NewCameraSection returns an empty section.
func NewCameraSection() *CameraSection {
	return &CameraSection{state: defaultCameraState(), layout: defaultLayout(cameraRecordSize)}
}

// AddKeyframe inserts kf, replacing a keyframe at the same time and layer.
func (s *CameraSection) AddKeyframe(kf *CameraKeyframe) {
	if kf == nil {
		return
	}
	if kf.owner != nil && kf.owner != owner(s) {
		kf.owner.detach(&kf.base)
	}
	s.track.add(kf, s)
	s.dirty = true
}

// DeleteKeyframe removes kf and detaches it.
func (s *CameraSection) DeleteKeyframe(kf *CameraKeyframe) bool {
	if kf == nil || !s.track.remove(kf) {
		return false
	}
	s.dirty = true
	return true
}

func (s *CameraSection) rekey(b *base, apply func()) {
	if !s.track.rekey(b, apply, s) {
		apply()
	}
	s.dirty = true
}

func (s *CameraSection) detach(b *base) {
	if i := s.track.indexOf(b); i >= 0 {
		s.track.removeAt(i)
		s.dirty = true
	}
}

// FindKeyframe returns the keyframe at exactly (time, layer), or nil.
func (s *CameraSection) FindKeyframe(time float64, layer int32) *CameraKeyframe {
	kf, _ := s.track.find(time, layer)
	return kf
}

// FindKeyframeAt returns the keyframe at ordinal i, or nil when i is out of
// range.
func (s *CameraSection) FindKeyframeAt(i int) *CameraKeyframe {
	kf, _ := s.track.at(i)
	return kf
}

// Keyframes returns the keyframes in (time, layer) order.
func (s *CameraSection) Keyframes() []*CameraKeyframe { return s.track.clone() }

// CountKeyframes returns the number of keyframes.
func (s *CameraSection) CountKeyframes() int { return s.track.len() }

// CountLayers returns the number of distinct layers in use.
func (s *CameraSection) CountLayers() int { return len(s.track.layers()) }

// MaxTimeIndex returns the latest keyframe time.
func (s *CameraSection) MaxTimeIndex() float64 { return s.track.maxTimeIndex() }

// Dirty reports whether the section changed since the last Seek.
func (s *CameraSection) Dirty() bool { return s.dirty }

// Clear removes every keyframe.
func (s *CameraSection) Clear() {
	s.track.clear()
	s.dirty = true
}

// Seek resolves the camera at time. The lowest layer provides the base
// camera; look-at, angle and distance of higher layers are added to it.
func (s *CameraSection) Seek(time float64) {
	state := defaultCameraState()
	for i, layer := range s.track.layers() {
		prev, next, amount, ok := s.track.resolve(time, layer)
		if !ok {
			continue
		}
		ls := prev.interpolate(next, amount)
		if i == 0 {
			state = ls
			continue
		}
		state.LookAt = state.LookAt.Add(ls.LookAt)
		state.Angle = state.Angle.Add(ls.Angle)
		state.Distance += ls.Distance
	}
	s.state = state
	s.dirty = false
}

// State returns the camera resolved by the last Seek.
func (s *CameraSection) State() CameraState { return s.state }
