// Package history keeps undo and redo snapshots of serialized documents.
//
// Snapshots are stored lz4-compressed and identified by their BLAKE2b digest,
// so pushing a state identical to the newest undo entry is a no-op.
package history

import (
	"errors"
	"fmt"

	lz4 "github.com/bkaradzic/go-lz4"
	"golang.org/x/crypto/blake2b"
)

// Stack errors.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrCorrupt       = errors.New("snapshot corrupt")
)

// Digest identifies a snapshot by content.
type Digest [blake2b.Size256]byte

// Sum returns the digest of state.
func Sum(state []byte) Digest {
	return blake2b.Sum256(state)
}

type snapshot struct {
	label   string
	digest  Digest
	payload []byte // lz4 block with the length prefix go-lz4 writes
	size    int
}

func compress(label string, state []byte) (snapshot, error) {
	if len(state) == 0 {
		return snapshot{label: label, digest: Sum(state)}, nil
	}
	payload, err := lz4.Encode(nil, state)
	if err != nil {
		return snapshot{}, fmt.Errorf("compressing %q: %w", label, err)
	}
	return snapshot{label: label, digest: Sum(state), payload: payload, size: len(state)}, nil
}

func (s snapshot) restore() ([]byte, error) {
	if s.size == 0 {
		return []byte{}, nil
	}
	state, err := lz4.Decode(nil, s.payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCorrupt, s.label, err)
	}
	if len(state) != s.size || Sum(state) != s.digest {
		return nil, fmt.Errorf("%w: %q: digest mismatch", ErrCorrupt, s.label)
	}
	return state, nil
}

// Stack is a bounded undo/redo history. It is not safe for concurrent use.
type Stack struct {
	depth int
	undo  []snapshot
	redo  []snapshot
}

// New returns a stack keeping at most depth undo snapshots. A depth of 0
// disables history.
func New(depth int) *Stack {
	if depth < 0 {
		depth = 0
	}
	return &Stack{depth: depth}
}

// Push records state, the document as it was before an edit named label. It
// reports false when history is disabled or state equals the newest undo
// snapshot. A successful push clears the redo list.
func (s *Stack) Push(label string, state []byte) (bool, error) {
	if s.depth == 0 {
		return false, nil
	}
	if n := len(s.undo); n > 0 && s.undo[n-1].digest == Sum(state) {
		return false, nil
	}
	snap, err := compress(label, state)
	if err != nil {
		return false, err
	}
	s.undo = append(s.undo, snap)
	if over := len(s.undo) - s.depth; over > 0 {
		s.undo = append(s.undo[:0], s.undo[over:]...)
	}
	s.redo = nil
	return true, nil
}

// Undo returns the newest undo snapshot and its label, saving current so
// Redo can return to it.
func (s *Stack) Undo(current []byte) ([]byte, string, error) {
	if len(s.undo) == 0 {
		return nil, "", ErrNothingToUndo
	}
	return s.swap(&s.undo, &s.redo, current)
}

// Redo returns the newest redo snapshot and its label, saving current so
// Undo can return to it.
func (s *Stack) Redo(current []byte) ([]byte, string, error) {
	if len(s.redo) == 0 {
		return nil, "", ErrNothingToRedo
	}
	return s.swap(&s.redo, &s.undo, current)
}

// swap pops from src and pushes current onto dst. Both lists are left
// untouched on error.
func (s *Stack) swap(src, dst *[]snapshot, current []byte) ([]byte, string, error) {
	top := (*src)[len(*src)-1]
	state, err := top.restore()
	if err != nil {
		return nil, "", err
	}
	saved, err := compress(top.label, current)
	if err != nil {
		return nil, "", err
	}
	*src = (*src)[:len(*src)-1]
	*dst = append(*dst, saved)
	return state, top.label, nil
}

// CanUndo reports whether Undo has a snapshot to return.
func (s *Stack) CanUndo() bool { return len(s.undo) > 0 }

// CanRedo reports whether Redo has a snapshot to return.
func (s *Stack) CanRedo() bool { return len(s.redo) > 0 }

// UndoLabel returns the label Undo would restore, or "".
func (s *Stack) UndoLabel() string {
	if len(s.undo) == 0 {
		return ""
	}
	return s.undo[len(s.undo)-1].label
}

// RedoLabel returns the label Redo would restore, or "".
func (s *Stack) RedoLabel() string {
	if len(s.redo) == 0 {
		return ""
	}
	return s.redo[len(s.redo)-1].label
}

// Len returns the number of undo and redo snapshots.
func (s *Stack) Len() (undo, redo int) { return len(s.undo), len(s.redo) }

// Depth returns the undo capacity.
func (s *Stack) Depth() int { return s.depth }

// CompressedSize returns the bytes held by all snapshots.
func (s *Stack) CompressedSize() int {
	n := 0
	for _, snap := range s.undo {
		n += len(snap.payload)
	}
	for _, snap := range s.redo {
		n += len(snap.payload)
	}
	return n
}

// Clear drops every snapshot.
func (s *Stack) Clear() {
	s.undo, s.redo = nil, nil
}
