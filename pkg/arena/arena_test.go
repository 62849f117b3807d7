package arena

import "testing"

func TestArena_InsertGet(t *testing.T) {
	a := New[string](4)
	h1 := a.Insert("a")
	h2 := a.Insert("b")

	if v, ok := a.Get(h1); !ok || v != "a" {
		t.Errorf("expected 'a', got %q (ok=%v)", v, ok)
	}
	if v, ok := a.Get(h2); !ok || v != "b" {
		t.Errorf("expected 'b', got %q (ok=%v)", v, ok)
	}
	if a.Len() != 2 {
		t.Errorf("expected len 2, got %d", a.Len())
	}
	if a.Position(h2) != 1 {
		t.Errorf("expected position 1, got %d", a.Position(h2))
	}
}

func TestArena_RemoveInvalidatesHandle(t *testing.T) {
	a := New[int](0)
	h1 := a.Insert(10)
	h2 := a.Insert(20)
	h3 := a.Insert(30)

	if !a.Remove(h2) {
		t.Fatal("remove failed")
	}
	if a.Contains(h2) {
		t.Error("removed handle still resolves")
	}
	if a.Remove(h2) {
		t.Error("second remove must fail")
	}
	if a.Position(h3) != 1 {
		t.Errorf("expected h3 to shift to position 1, got %d", a.Position(h3))
	}

	// Reused slot must not resurrect the old handle.
	h4 := a.Insert(40)
	if a.Contains(h2) {
		t.Error("stale handle resolved after slot reuse")
	}
	if v, _ := a.Get(h4); v != 40 {
		t.Errorf("expected 40, got %d", v)
	}

	got := a.Values()
	want := []int{10, 30, 40}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("values[%d]: expected %d, got %d", i, want[i], got[i])
		}
	}
	_ = h1
}

func TestArena_ZeroHandle(t *testing.T) {
	a := New[int](0)
	a.Insert(1)
	if a.Contains(Handle{}) {
		t.Error("zero handle must never resolve")
	}
	if _, ok := a.At(5); ok {
		t.Error("out of range position must miss")
	}
}

func TestArena_Clear(t *testing.T) {
	a := New[int](0)
	h := a.Insert(1)
	a.Clear()
	if a.Len() != 0 || a.Contains(h) {
		t.Error("clear must drop every entity")
	}
}
