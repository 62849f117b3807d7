package interpolation

import (
	"math"
	"testing"
)

func TestEvaluate_Boundaries(t *testing.T) {
	params := []Parameter{
		DefaultParameter,
		{X1: 0, Y1: 0, X2: 127, Y2: 127},
		{X1: 64, Y1: 0, X2: 64, Y2: 127},
		{X1: 127, Y1: 0, X2: 0, Y2: 127},
		{X1: 10, Y1: 120, X2: 30, Y2: 5},
	}

	for _, p := range params {
		t.Run(p.String(), func(t *testing.T) {
			if got := Evaluate(p, 0); got != 0 {
				t.Errorf("Evaluate(0) = %v, want 0", got)
			}
			if got := Evaluate(p, 1); got != 1 {
				t.Errorf("Evaluate(1) = %v, want 1", got)
			}
			if got := Evaluate(p, -0.5); got != 0 {
				t.Errorf("Evaluate(-0.5) = %v, want 0", got)
			}
			if got := Evaluate(p, 2); got != 1 {
				t.Errorf("Evaluate(2) = %v, want 1", got)
			}
		})
	}
}

func TestEvaluate_DefaultIsMonotonic(t *testing.T) {
	prev := -1.0
	for i := 0; i <= 100; i++ {
		v := Evaluate(DefaultParameter, float64(i)/100)
		if v < prev {
			t.Fatalf("not monotonic at t=%v: %v < %v", float64(i)/100, v, prev)
		}
		prev = v
	}
}

func TestEvaluate_EaseInOutIsMonotonic(t *testing.T) {
	p := Parameter{X1: 64, Y1: 0, X2: 64, Y2: 127}
	prev := -1.0
	for i := 0; i <= 100; i++ {
		v := Evaluate(p, float64(i)/100)
		if v < prev-1e-9 {
			t.Fatalf("not monotonic at t=%v: %v < %v", float64(i)/100, v, prev)
		}
		prev = v
	}
}

func TestEvaluate_DefaultMidpoint(t *testing.T) {
	got := Evaluate(DefaultParameter, 0.5)
	if got != 0.5 {
		t.Errorf("default curve is on the diagonal, expected 0.5, got %v", got)
	}
}

func TestEvaluate_EaseInOutShape(t *testing.T) {
	p := Parameter{X1: 64, Y1: 0, X2: 64, Y2: 127}

	// Byte quantization keeps the curve only approximately symmetric.
	if got := Evaluate(p, 0.5); math.Abs(got-0.5) > 0.01 {
		t.Errorf("expected ~0.5 at centre, got %v", got)
	}
	// Slow start.
	if got := Evaluate(p, 0.2); got >= 0.2 {
		t.Errorf("expected ease-in below the diagonal, got %v", got)
	}
	// Slow end.
	if got := Evaluate(p, 0.8); got <= 0.8 {
		t.Errorf("expected ease-out above the diagonal, got %v", got)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	p := Parameter{X1: 90, Y1: 10, X2: 20, Y2: 100}
	first := Evaluate(p, 0.37)
	for i := 0; i < 10; i++ {
		if got := Evaluate(p, 0.37); got != first {
			t.Fatalf("run %d: %v != %v", i, got, first)
		}
	}
}

func TestNewParameter_Clamps(t *testing.T) {
	p := NewParameter(-5, 200, 64, 127)
	if p.X1 != 0 || p.Y1 != 127 || p.X2 != 64 || p.Y2 != 127 {
		t.Errorf("unexpected clamp result %s", p)
	}
}

func TestCurve_ParameterRoundTrip(t *testing.T) {
	p := Parameter{X1: 20, Y1: 20, X2: 107, Y2: 107}
	if got := p.Curve().Parameter(); got != p {
		t.Errorf("expected %s, got %s", p, got)
	}
}

func TestLerp(t *testing.T) {
	if got := Lerp(DefaultParameter, 2, 4, 0.5); got != 3 {
		t.Errorf("expected 3, got %v", got)
	}
	if got := Lerp(DefaultParameter, 2, 4, 1); got != 4 {
		t.Errorf("expected 4, got %v", got)
	}
}
