package motion

import "sort"

// MorphKeyframe sets one morph weight at one time index. Morph keyframes
// always live on layer 0.
type MorphKeyframe struct {
	base
	name   string
	Weight float32
}

// NewMorphKeyframe returns a zero-weight keyframe for the named morph.
func NewMorphKeyframe(name string) *MorphKeyframe {
	return &MorphKeyframe{base: base{singleLayer: true}, name: name}
}

// Kind returns KindMorph.
func (kf *MorphKeyframe) Kind() Kind { return KindMorph }

// Name returns the morph track name.
func (kf *MorphKeyframe) Name() string { return kf.name }

// SetName moves the keyframe to another morph track.
func (kf *MorphKeyframe) SetName(name string) {
	if kf.owner == nil {
		kf.name = name
		return
	}
	kf.owner.rekey(&kf.base, func() { kf.name = name })
}

type morphTrack struct {
	track[*MorphKeyframe]
	weight float32
	layout sectionLayout
}

// MorphSection stores morph keyframes in one track per morph name. Weights
// are interpolated linearly.
type MorphSection struct {
	tracks map[string]*morphTrack
	order  []*MorphKeyframe
	sorted bool
	dirty  bool
}

// NewMorphSection returns an empty section.
func NewMorphSection() *MorphSection {
	return &MorphSection{tracks: make(map[string]*morphTrack)}
}

func (s *MorphSection) touch() {
	s.sorted = false
	s.dirty = true
}

func (s *MorphSection) trackFor(name string) *morphTrack {
	t, ok := s.tracks[name]
	if !ok {
		t = &morphTrack{layout: defaultLayout(morphRecordSize)}
		s.tracks[name] = t
	}
	return t
}

// AddKeyframe inserts kf, replacing a keyframe on the same morph and time.
func (s *MorphSection) AddKeyframe(kf *MorphKeyframe) {
	if kf == nil {
		return
	}
	if kf.owner != nil && kf.owner != owner(s) {
		kf.owner.detach(&kf.base)
	}
	kf.singleLayer, kf.layerIndex = true, 0
	s.trackFor(kf.name).add(kf, s)
	s.touch()
}

// DeleteKeyframe removes kf and detaches it.
func (s *MorphSection) DeleteKeyframe(kf *MorphKeyframe) bool {
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

func (s *MorphSection) rekey(b *base, apply func()) {
	for _, t := range s.tracks {
		if i := t.indexOf(b); i >= 0 {
			kf := t.removeAt(i)
			apply()
			s.trackFor(kf.name).add(kf, s)
			s.touch()
			return
		}
	}
	apply()
}

func (s *MorphSection) detach(b *base) {
	for _, t := range s.tracks {
		if i := t.indexOf(b); i >= 0 {
			t.removeAt(i)
			s.touch()
			return
		}
	}
}

// FindKeyframe returns the keyframe of the named morph at exactly time, or
// nil.
func (s *MorphSection) FindKeyframe(time float64, name string) *MorphKeyframe {
	t, ok := s.tracks[name]
	if !ok {
		return nil
	}
	kf, _ := t.find(time, 0)
	return kf
}

func (s *MorphSection) all() []*MorphKeyframe {
	if s.sorted {
		return s.order
	}
	s.order = s.order[:0]
	for _, t := range s.tracks {
		s.order = append(s.order, t.keyframes...)
	}
	sort.Slice(s.order, func(i, j int) bool {
		a, b := s.order[i], s.order[j]
		if a.timeIndex != b.timeIndex {
			return a.timeIndex < b.timeIndex
		}
		return a.name < b.name
	})
	s.sorted = true
	return s.order
}

// FindKeyframeAt returns the keyframe at ordinal i across all morphs, or nil
// when i is out of range.
func (s *MorphSection) FindKeyframeAt(i int) *MorphKeyframe {
	all := s.all()
	if i < 0 || i >= len(all) {
		return nil
	}
	return all[i]
}

// Keyframes returns every keyframe in ordinal order.
func (s *MorphSection) Keyframes() []*MorphKeyframe {
	all := s.all()
	out := make([]*MorphKeyframe, len(all))
	copy(out, all)
	return out
}

// TrackKeyframes returns the keyframes of one morph in time order.
func (s *MorphSection) TrackKeyframes(name string) []*MorphKeyframe {
	t, ok := s.tracks[name]
	if !ok {
		return nil
	}
	return t.clone()
}

// TrackNames returns the morph names that have keyframes, sorted.
func (s *MorphSection) TrackNames() []string {
	names := make([]string, 0, len(s.tracks))
	for name, t := range s.tracks {
		if t.len() > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// CountKeyframes returns the number of keyframes across all morphs.
func (s *MorphSection) CountKeyframes() int {
	n := 0
	for _, t := range s.tracks {
		n += t.len()
	}
	return n
}

// CountLayers returns 1 when the section has keyframes and 0 otherwise.
func (s *MorphSection) CountLayers() int {
	if s.CountKeyframes() > 0 {
		return 1
	}
	return 0
}

// MaxTimeIndex returns the latest keyframe time.
func (s *MorphSection) MaxTimeIndex() float64 {
	max := 0.0
	for _, t := range s.tracks {
		if v := t.maxTimeIndex(); v > max {
			max = v
		}
	}
	return max
}

// Dirty reports whether the section changed since the last Seek.
func (s *MorphSection) Dirty() bool { return s.dirty }

// Clear removes every keyframe.
func (s *MorphSection) Clear() {
	for _, t := range s.tracks {
		t.clear()
	}
	s.tracks = make(map[string]*morphTrack)
	s.touch()
}

// Seek resolves every morph weight at time.
func (s *MorphSection) Seek(time float64) {
	for _, t := range s.tracks {
		prev, next, amount, ok := t.resolve(time, 0)
		if !ok {
			t.weight = 0
			continue
		}
		t.weight = prev.Weight + (next.Weight-prev.Weight)*float32(amount)
	}
	s.dirty = false
}

// Weight returns the resolved weight of the named morph from the last Seek.
func (s *MorphSection) Weight(name string) (float32, bool) {
	t, ok := s.tracks[name]
	if !ok || t.len() == 0 {
		return 0, false
	}
	return t.weight, true
}
