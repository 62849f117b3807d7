// Package arena stores model entities behind stable integer handles.
//
// A handle stays valid until its entity is removed; after that every lookup
// through it misses, even if the slot is reused, because each slot carries a
// generation counter.
package arena

// Handle identifies an entity in an Arena. The zero Handle is never valid.
type Handle struct {
	slot       uint32
	generation uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

type entry[T any] struct {
	value      T
	generation uint32
	live       bool
	position   int // index into order
}

// Arena owns values of type T in insertion order.
type Arena[T any] struct {
	entries []entry[T]
	free    []uint32
	order   []Handle
}

// New returns an empty arena with room for capacity entities.
func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		entries: make([]entry[T], 0, capacity),
		order:   make([]Handle, 0, capacity),
	}
}

// Insert appends v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var slot uint32
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		slot = uint32(len(a.entries))
		a.entries = append(a.entries, entry[T]{})
	}

	e := &a.entries[slot]
	e.generation++
	e.value = v
	e.live = true
	e.position = len(a.order)

	h := Handle{slot: slot, generation: e.generation}
	a.order = append(a.order, h)
	return h
}

func (a *Arena[T]) lookup(h Handle) *entry[T] {
	if h.IsZero() || int(h.slot) >= len(a.entries) {
		return nil
	}
	e := &a.entries[h.slot]
	if !e.live || e.generation != h.generation {
		return nil
	}
	return e
}

// Get returns the value for h.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	e := a.lookup(h)
	if e == nil {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Contains reports whether h refers to a live entity.
func (a *Arena[T]) Contains(h Handle) bool {
	return a.lookup(h) != nil
}

// Position returns the insertion-order position of h, or -1.
func (a *Arena[T]) Position(h Handle) int {
	e := a.lookup(h)
	if e == nil {
		return -1
	}
	return e.position
}

// At returns the handle at an insertion-order position.
func (a *Arena[T]) At(i int) (Handle, bool) {
	if i < 0 || i >= len(a.order) {
		return Handle{}, false
	}
	return a.order[i], true
}

// Remove deletes the entity and invalidates h. Positions after it shift down.
func (a *Arena[T]) Remove(h Handle) bool {
	e := a.lookup(h)
	if e == nil {
		return false
	}
	pos := e.position
	var zero T
	e.value = zero
	e.live = false
	a.free = append(a.free, h.slot)

	a.order = append(a.order[:pos], a.order[pos+1:]...)
	for i := pos; i < len(a.order); i++ {
		a.entries[a.order[i].slot].position = i
	}
	return true
}

// Len returns the number of live entities.
func (a *Arena[T]) Len() int {
	return len(a.order)
}

// Values returns the live values in insertion order.
func (a *Arena[T]) Values() []T {
	out := make([]T, len(a.order))
	for i, h := range a.order {
		out[i] = a.entries[h.slot].value
	}
	return out
}

// Handles returns the live handles in insertion order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, len(a.order))
	copy(out, a.order)
	return out
}

// Clear removes every entity and invalidates all handles.
func (a *Arena[T]) Clear() {
	for _, h := range a.order {
		e := &a.entries[h.slot]
		var zero T
		e.value = zero
		e.live = false
		a.free = append(a.free, h.slot)
	}
	a.order = a.order[:0]
}
