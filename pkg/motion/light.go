package motion

import "github.com/go-gl/mathgl/mgl32"

// LightKeyframe sets the scene light at one time index. Light keyframes
// always live on layer 0.
type LightKeyframe struct {
	base
	Color     mgl32.Vec3
	Direction mgl32.Vec3
	Enabled   bool
}

// NewLightKeyframe returns a keyframe with the default light.
func NewLightKeyframe() *LightKeyframe {
	return &LightKeyframe{
		base:      base{singleLayer: true},
		Color:     mgl32.Vec3{0.6, 0.6, 0.6},
		Direction: mgl32.Vec3{-0.5, -1, 0.5},
		Enabled:   true,
	}
}

// Kind returns KindLight.
func (kf *LightKeyframe) Kind() Kind { return KindLight }

// LightState is the resolved light.
type LightState struct {
	Color     mgl32.Vec3
	Direction mgl32.Vec3
	Enabled   bool
}

func defaultLightState() LightState {
	kf := NewLightKeyframe()
	return LightState{Color: kf.Color, Direction: kf.Direction, Enabled: kf.Enabled}
}

// LightSection stores light keyframes. Color and direction are interpolated
// linearly; Enabled switches at keyframes.
type LightSection struct {
	track  track[*LightKeyframe]
	state  LightState
	layout sectionLayout
	dirty  bool
}

// NewLightSection returns an empty section.
func NewLightSection() *LightSection {
	return &LightSection{state: defaultLightState(), layout: defaultLayout(lightRecordSize)}
}

// AddKeyframe inserts kf, replacing a keyframe at the same time.
func (s *LightSection) AddKeyframe(kf *LightKeyframe) {
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
func (s *LightSection) DeleteKeyframe(kf *LightKeyframe) bool {
	if kf == nil || !s.track.remove(kf) {
		return false
	}
	s.dirty = true
	return true
}

func (s *LightSection) rekey(b *base, apply func()) {
	if !s.track.rekey(b, apply, s) {
		apply()
	}
	s.dirty = true
}

func (s *LightSection) detach(b *base) {
	if i := s.track.indexOf(b); i >= 0 {
		s.track.removeAt(i)
		s.dirty = true
	}
}

// FindKeyframe returns the keyframe at exactly time, or nil.
func (s *LightSection) FindKeyframe(time float64) *LightKeyframe {
	kf, _ := s.track.find(time, 0)
	return kf
}

// FindKeyframeAt returns the keyframe at ordinal i, or nil when i is out of
// range.
func (s *LightSection) FindKeyframeAt(i int) *LightKeyframe {
	kf, _ := s.track.at(i)
	return kf
}

// Keyframes returns the keyframes in time order.
func (s *LightSection) Keyframes() []*LightKeyframe { return s.track.clone() }

// CountKeyframes returns the number of keyframes.
func (s *LightSection) CountKeyframes() int { return s.track.len() }

// CountLayers returns 1 when the section has keyframes and 0 otherwise.
func (s *LightSection) CountLayers() int { return len(s.track.layers()) }

// MaxTimeIndex returns the latest keyframe time.
func (s *LightSection) MaxTimeIndex() float64 { return s.track.maxTimeIndex() }

// Dirty reports whether the section changed since the last Seek.
func (s *LightSection) Dirty() bool { return s.dirty }

// Clear removes every keyframe.
func (s *LightSection) Clear() {
	s.track.clear()
	s.dirty = true
}

// Seek resolves the light at time.
func (s *LightSection) Seek(time float64) {
	state := defaultLightState()
	if prev, next, amount, ok := s.track.resolve(time, 0); ok {
		w := float32(amount)
		state.Color = prev.Color.Add(next.Color.Sub(prev.Color).Mul(w))
		state.Direction = prev.Direction.Add(next.Direction.Sub(prev.Direction).Mul(w))
		state.Enabled = prev.Enabled
		if amount >= 1 {
			state.Enabled = next.Enabled
		}
	}
	s.state = state
	s.dirty = false
}

// State returns the light resolved by the last Seek.
func (s *LightSection) State() LightState { return s.state }
