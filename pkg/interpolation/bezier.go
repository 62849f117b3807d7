// Package interpolation evaluates the cubic Bezier easing curves stored with
// bone and camera keyframes.
//
// A curve runs from the implicit P0=(0,0) to P3=(1,1). The two inner control
// points are stored either as bytes on [0,127] (Parameter) or as normalized
// floats (Curve). The x axis is time, the y axis is the blend weight.
package interpolation

import "fmt"

// Max is the upper bound of a byte control coordinate.
const Max = 127

const (
	tolerance     = 1e-5
	maxIterations = 32
)

// Parameter holds two control points P1=(X1,Y1) and P2=(X2,Y2) on [0,127]².
type Parameter struct {
	X1, Y1, X2, Y2 uint8
}

// DefaultParameter is the curve motion files use when nothing else is given.
var DefaultParameter = Parameter{X1: 20, Y1: 20, X2: 107, Y2: 107}

// NewParameter clamps each coordinate to [0,127].
func NewParameter(x1, y1, x2, y2 int) Parameter {
	return Parameter{
		X1: clampByte(x1),
		Y1: clampByte(y1),
		X2: clampByte(x2),
		Y2: clampByte(y2),
	}
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > Max {
		return Max
	}
	return uint8(v)
}

// String returns "(x1,y1)-(x2,y2)".
func (p Parameter) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", p.X1, p.Y1, p.X2, p.Y2)
}

// Bytes returns the control values in x1, y1, x2, y2 order.
func (p Parameter) Bytes() [4]uint8 {
	return [4]uint8{p.X1, p.Y1, p.X2, p.Y2}
}

// ParameterFromBytes is the inverse of Bytes. Values above 127 are clamped.
func ParameterFromBytes(b [4]uint8) Parameter {
	return NewParameter(int(b[0]), int(b[1]), int(b[2]), int(b[3]))
}

// IsLinear reports whether both control points lie on the diagonal, in which
// case the curve is the identity.
func (p Parameter) IsLinear() bool {
	return p.X1 == p.Y1 && p.X2 == p.Y2
}

// Curve returns the normalized form of p.
func (p Parameter) Curve() Curve {
	return Curve{
		X1: float64(p.X1) / Max,
		Y1: float64(p.Y1) / Max,
		X2: float64(p.X2) / Max,
		Y2: float64(p.Y2) / Max,
	}
}

// Evaluate returns the blend weight of p at normalized time t.
func Evaluate(p Parameter, t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	if p.IsLinear() {
		return t
	}
	return p.Curve().Evaluate(t)
}

// Curve holds the two inner control points on [0,1]².
type Curve struct {
	X1, Y1, X2, Y2 float64
}

// Clamp returns c with every coordinate limited to [0,1].
func (c Curve) Clamp() Curve {
	return Curve{X1: clamp01(c.X1), Y1: clamp01(c.Y1), X2: clamp01(c.X2), Y2: clamp01(c.Y2)}
}

// Parameter quantizes c to the byte form, rounding to nearest.
func (c Curve) Parameter() Parameter {
	c = c.Clamp()
	q := func(v float64) int { return int(v*Max + 0.5) }
	return NewParameter(q(c.X1), q(c.Y1), q(c.X2), q(c.Y2))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// bezier evaluates one axis of the curve at parameter u.
func bezier(p1, p2, u float64) float64 {
	inv := 1 - u
	return 3*inv*inv*u*p1 + 3*inv*u*u*p2 + u*u*u
}

// Evaluate solves Bx(u) = t by bisection and returns By(u).
// Control x coordinates are clamped so Bx is monotonic on [0,1].
func (c Curve) Evaluate(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	c = c.Clamp()

	lo, hi := 0.0, 1.0
	u := t
	for i := 0; i < maxIterations; i++ {
		u = (lo + hi) / 2
		x := bezier(c.X1, c.X2, u)
		if d := x - t; d < tolerance && d > -tolerance {
			break
		} else if d < 0 {
			lo = u
		} else {
			hi = u
		}
	}
	return bezier(c.Y1, c.Y2, u)
}

// Lerp blends a and b by the weight p yields at t.
func Lerp(p Parameter, a, b float32, t float64) float32 {
	w := float32(Evaluate(p, t))
	return a + (b-a)*w
}
