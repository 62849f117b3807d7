package motion

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmd-studio/pkg/interpolation"
)

// BoneComponent selects one of the interpolated bone channels.
type BoneComponent int

// Bone interpolation channels.
const (
	BoneX BoneComponent = iota
	BoneY
	BoneZ
	BoneRotation
	boneComponents
)

// BoneKeyframe poses one bone at one time index.
type BoneKeyframe struct {
	base
	name string

	Translation mgl32.Vec3
	Orientation mgl32.Quat

	params [boneComponents]interpolation.Parameter
}

// NewBoneKeyframe returns a rest-pose keyframe for the named bone at time 0.
func NewBoneKeyframe(name string) *BoneKeyframe {
	kf := &BoneKeyframe{name: name, Orientation: mgl32.QuatIdent()}
	for i := range kf.params {
		kf.params[i] = interpolation.DefaultParameter
	}
	return kf
}

// Kind returns KindBone.
func (kf *BoneKeyframe) Kind() Kind { return KindBone }

// Name returns the bone track name.
func (kf *BoneKeyframe) Name() string { return kf.name }

// SetName moves the keyframe to another bone track.
func (kf *BoneKeyframe) SetName(name string) {
	if kf.owner == nil {
		kf.name = name
		return
	}
	kf.owner.rekey(&kf.base, func() { kf.name = name })
}

// InterpolationParameter returns the easing curve of channel c.
func (kf *BoneKeyframe) InterpolationParameter(c BoneComponent) interpolation.Parameter {
	if c < 0 || c >= boneComponents {
		return interpolation.DefaultParameter
	}
	return kf.params[c]
}

// SetInterpolationParameter replaces the easing curve of channel c.
func (kf *BoneKeyframe) SetInterpolationParameter(c BoneComponent, p interpolation.Parameter) {
	if c < 0 || c >= boneComponents {
		return
	}
	kf.params[c] = p
}

// BoneState is a resolved local bone transform.
type BoneState struct {
	Translation mgl32.Vec3
	Orientation mgl32.Quat
}

func restState() BoneState {
	return BoneState{Orientation: mgl32.QuatIdent()}
}

func (kf *BoneKeyframe) interpolate(next *BoneKeyframe, amount float64) BoneState {
	var s BoneState
	for i := 0; i < 3; i++ {
		p := next.params[BoneX+BoneComponent(i)]
		s.Translation[i] = interpolation.Lerp(p, kf.Translation[i], next.Translation[i], amount)
	}
	w := float32(interpolation.Evaluate(next.params[BoneRotation], amount))
	switch w {
	case 0:
		s.Orientation = kf.Orientation
	case 1:
		s.Orientation = next.Orientation
	default:
		s.Orientation = mgl32.QuatSlerp(kf.Orientation, next.Orientation, w)
	}
	return s
}

type boneTrack struct {
	track[*BoneKeyframe]
	state  BoneState
	layout sectionLayout
}

// BoneSection stores bone keyframes in one track per bone name.
type BoneSection struct {
	tracks map[string]*boneTrack
	order  []*BoneKeyframe // all keyframes, rebuilt lazily
	sorted bool
	dirty  bool
}

// NewBoneSection returns an empty section.
func NewBoneSection() *BoneSection {
	return &BoneSection{tracks: make(map[string]*boneTrack)}
}

func (s *BoneSection) touch() {
	s.sorted = false
	s.dirty = true
}

func (s *BoneSection) trackFor(name string) *boneTrack {
	t, ok := s.tracks[name]
	if !ok {
		t = &boneTrack{state: restState(), layout: defaultLayout(boneRecordSize)}
		s.tracks[name] = t
	}
	return t
}

// AddKeyframe inserts kf, replacing a keyframe on the same bone, time and
// layer. A nil keyframe is ignored.
func (s *BoneSection) AddKeyframe(kf *BoneKeyframe) {
	if kf == nil {
		return
	}
	if kf.owner != nil && kf.owner != owner(s) {
		kf.owner.detach(&kf.base)
	}
	s.trackFor(kf.name).add(kf, s)
	s.touch()
}

// DeleteKeyframe removes kf and detaches it.
func (s *BoneSection) DeleteKeyframe(kf *BoneKeyframe) bool {
	if kf == nil {
		return false
	}
	t, ok := s.tracks[kf.name]
	if !ok || !t.remove(kf) {
		return false
	}
	s.touch()
	return true
}

func (s *BoneSection) rekey(b *base, apply func()) {
	for _, t := range s.tracks {
		i := t.indexOf(b)
		if i < 0 {
			continue
		}
		kf := t.removeAt(i)
		apply()
		s.trackFor(kf.name).add(kf, s)
		s.touch()
		return
	}
	apply()
}

func (s *BoneSection) detach(b *base) {
	for _, t := range s.tracks {
		if i := t.indexOf(b); i >= 0 {
			t.removeAt(i)
			s.touch()
			return
		}
	}
}

// FindKeyframe returns the keyframe of the named bone at exactly
// (time, layer), or nil.
func (s *BoneSection) FindKeyframe(time float64, layer int32, name string) *BoneKeyframe {
	t, ok := s.tracks[name]
	if !ok {
		return nil
	}
	kf, _ := t.find(time, layer)
	return kf
}

func (s *BoneSection) all() []*BoneKeyframe {
	if s.sorted {
		return s.order
	}
	s.order = s.order[:0]
	for _, t := range s.tracks {
		s.order = append(s.order, t.keyframes...)
	}
	sort.Slice(s.order, func(i, j int) bool {
		a, b := s.order[i], s.order[j]
		if a.timeIndex != b.timeIndex || a.layerIndex != b.layerIndex {
			return keyLess(a.timeIndex, a.layerIndex, b.timeIndex, b.layerIndex)
		}
		return a.name < b.name
	})
	s.sorted = true
	return s.order
}

// FindKeyframeAt returns the keyframe at ordinal i across all bones, ordered
// by time, layer and name, or nil when i is out of range.
func (s *BoneSection) FindKeyframeAt(i int) *BoneKeyframe {
	all := s.all()
	if i < 0 || i >= len(all) {
		return nil
	}
	return all[i]
}

// Keyframes returns every keyframe in ordinal order.
func (s *BoneSection) Keyframes() []*BoneKeyframe {
	all := s.all()
	out := make([]*BoneKeyframe, len(all))
	copy(out, all)
	return out
}

// TrackKeyframes returns the keyframes of one bone in (time, layer) order.
func (s *BoneSection) TrackKeyframes(name string) []*BoneKeyframe {
	t, ok := s.tracks[name]
	if !ok {
		return nil
	}
	return t.clone()
}

// TrackNames returns the bone names that have keyframes, sorted.
func (s *BoneSection) TrackNames() []string {
	names := make([]string, 0, len(s.tracks))
	for name, t := range s.tracks {
		if t.len() > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// CountKeyframes returns the number of keyframes across all bones.
func (s *BoneSection) CountKeyframes() int {
	n := 0
	for _, t := range s.tracks {
		n += t.len()
	}
	return n
}

// CountLayers returns the number of distinct layers used by the named bone.
func (s *BoneSection) CountLayers(name string) int {
	t, ok := s.tracks[name]
	if !ok {
		return 0
	}
	return len(t.layers())
}

// MaxTimeIndex returns the latest keyframe time.
func (s *BoneSection) MaxTimeIndex() float64 {
	max := 0.0
	for _, t := range s.tracks {
		if v := t.maxTimeIndex(); v > max {
			max = v
		}
	}
	return max
}

// Dirty reports whether the section changed since the last Seek.
func (s *BoneSection) Dirty() bool { return s.dirty }

// Clear removes every keyframe.
func (s *BoneSection) Clear() {
	for _, t := range s.tracks {
		t.clear()
	}
	s.tracks = make(map[string]*boneTrack)
	s.touch()
}

// Seek resolves every bone at time. Layers are blended in ascending order:
// translations add and orientations multiply.
func (s *BoneSection) Seek(time float64) {
	for _, t := range s.tracks {
		state := restState()
		for _, layer := range t.layers() {
			prev, next, amount, ok := t.resolve(time, layer)
			if !ok {
				continue
			}
			ls := prev.interpolate(next, amount)
			state.Translation = state.Translation.Add(ls.Translation)
			state.Orientation = state.Orientation.Mul(ls.Orientation).Normalize()
		}
		t.state = state
	}
	s.dirty = false
}

// State returns the resolved transform of the named bone from the last
// Seek. Bones without keyframes report false.
func (s *BoneSection) State(name string) (BoneState, bool) {
	t, ok := s.tracks[name]
	if !ok || t.len() == 0 {
		return restState(), false
	}
	return t.state, true
}
