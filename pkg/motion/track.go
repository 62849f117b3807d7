package motion

import "sort"

type keyed interface {
	comparable
	Keyframe
}

// track is a sorted keyframe list with unique (time, layer) keys.
type track[K keyed] struct {
	keyframes []K
}

// search returns the first position whose key is not less than (time, layer).
func (t *track[K]) search(time float64, layer int32) int {
	return sort.Search(len(t.keyframes), func(i int) bool {
		kf := t.keyframes[i]
		return !keyLess(kf.TimeIndex(), kf.LayerIndex(), time, layer)
	})
}

// add inserts kf and attaches it to o. A keyframe already at the same key is
// detached and returned.
func (t *track[K]) add(kf K, o owner) (replaced K, ok bool) {
	kf.keyBase().owner = o
	i := t.search(kf.TimeIndex(), kf.LayerIndex())
	if i < len(t.keyframes) {
		cur := t.keyframes[i]
		if cur == kf {
			return replaced, false
		}
		if cur.TimeIndex() == kf.TimeIndex() && cur.LayerIndex() == kf.LayerIndex() {
			cur.keyBase().owner = nil
			t.keyframes[i] = kf
			return cur, true
		}
	}
	var zero K
	t.keyframes = append(t.keyframes, zero)
	copy(t.keyframes[i+1:], t.keyframes[i:])
	t.keyframes[i] = kf
	return replaced, false
}

func (t *track[K]) indexOf(b *base) int {
	for i, kf := range t.keyframes {
		if kf.keyBase() == b {
			return i
		}
	}
	return -1
}

func (t *track[K]) removeAt(i int) K {
	kf := t.keyframes[i]
	t.keyframes = append(t.keyframes[:i], t.keyframes[i+1:]...)
	kf.keyBase().owner = nil
	return kf
}

// remove detaches kf. It reports false if kf is not in the track.
func (t *track[K]) remove(kf K) bool {
	i := t.indexOf(kf.keyBase())
	if i < 0 {
		return false
	}
	t.removeAt(i)
	return true
}

// rekey applies a key change to an attached keyframe and re-inserts it.
func (t *track[K]) rekey(b *base, apply func(), o owner) bool {
	i := t.indexOf(b)
	if i < 0 {
		return false
	}
	kf := t.removeAt(i)
	apply()
	t.add(kf, o)
	return true
}

func (t *track[K]) find(time float64, layer int32) (K, bool) {
	i := t.search(time, layer)
	if i < len(t.keyframes) {
		kf := t.keyframes[i]
		if kf.TimeIndex() == time && kf.LayerIndex() == layer {
			return kf, true
		}
	}
	var zero K
	return zero, false
}

func (t *track[K]) at(i int) (K, bool) {
	if i < 0 || i >= len(t.keyframes) {
		var zero K
		return zero, false
	}
	return t.keyframes[i], true
}

func (t *track[K]) len() int { return len(t.keyframes) }

func (t *track[K]) clone() []K {
	out := make([]K, len(t.keyframes))
	copy(out, t.keyframes)
	return out
}

func (t *track[K]) clear() {
	for _, kf := range t.keyframes {
		kf.keyBase().owner = nil
	}
	t.keyframes = nil
}

// layers returns the distinct layer indices in ascending order.
func (t *track[K]) layers() []int32 {
	seen := make(map[int32]struct{})
	var out []int32
	for _, kf := range t.keyframes {
		if _, ok := seen[kf.LayerIndex()]; !ok {
			seen[kf.LayerIndex()] = struct{}{}
			out = append(out, kf.LayerIndex())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// bracket finds, on one layer, the latest keyframe at or before time and the
// earliest keyframe after it.
func (t *track[K]) bracket(time float64, layer int32) (prev, next K, hasPrev, hasNext bool) {
	i := sort.Search(len(t.keyframes), func(j int) bool {
		return t.keyframes[j].TimeIndex() > time
	})
	for j := i - 1; j >= 0; j-- {
		if kf := t.keyframes[j]; kf.LayerIndex() == layer {
			prev, hasPrev = kf, true
			break
		}
	}
	for j := i; j < len(t.keyframes); j++ {
		if kf := t.keyframes[j]; kf.LayerIndex() == layer {
			next, hasNext = kf, true
			break
		}
	}
	return prev, next, hasPrev, hasNext
}

func (t *track[K]) maxTimeIndex() float64 {
	if len(t.keyframes) == 0 {
		return 0
	}
	// Sorted by time first, so the last keyframe is the latest.
	return t.keyframes[len(t.keyframes)-1].TimeIndex()
}

// resolve returns the keyframes to blend on one layer and the normalized
// time between them. Outside the keyed range both sides are the edge
// keyframe. ok is false when the layer has no keyframes.
func (t *track[K]) resolve(time float64, layer int32) (prev, next K, amount float64, ok bool) {
	prev, next, hasPrev, hasNext := t.bracket(time, layer)
	switch {
	case !hasPrev && !hasNext:
		return prev, next, 0, false
	case !hasPrev:
		prev = next
	case !hasNext:
		next = prev
	}
	return prev, next, normalizedTime(time, prev.TimeIndex(), next.TimeIndex()), true
}
