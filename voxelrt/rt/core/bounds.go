package core

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrDegenerateBounds is returned when a box has no extent on any axis, so
// no unit-cube mapping exists for it.
var ErrDegenerateBounds = errors.New("degenerate bounds: zero max dimension")

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func NewBounds(minB, maxB mgl32.Vec3) Bounds {
	return Bounds{Min: minB, Max: maxB}
}

// BoundsFromPoints returns the tight box around pts. The second result is
// false when pts is empty.
func BoundsFromPoints(pts []mgl32.Vec3) (Bounds, bool) {
	if len(pts) == 0 {
		return Bounds{}, false
	}
	b := Bounds{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Encapsulate(p)
	}
	return b, true
}

func (b *Bounds) Encapsulate(p mgl32.Vec3) {
	b.Min = mgl32.Vec3{min(b.Min.X(), p.X()), min(b.Min.Y(), p.Y()), min(b.Min.Z(), p.Z())}
	b.Max = mgl32.Vec3{max(b.Max.X(), p.X()), max(b.Max.Y(), p.Y()), max(b.Max.Z(), p.Z())}
}

func (b Bounds) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

func (b Bounds) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// MaxDimension is the largest of the three extents.
func (b Bounds) MaxDimension() float32 {
	s := b.Size()
	return max(s.X(), s.Y(), s.Z())
}

// Proportions is Size divided by MaxDimension: the fraction of the unit
// cube the box fills along each axis. Degenerate boxes yield zero.
func (b Bounds) Proportions() mgl32.Vec3 {
	m := b.MaxDimension()
	if m <= 0 {
		return mgl32.Vec3{}
	}
	return b.Size().Mul(1 / m)
}

func (b Bounds) IsDegenerate() bool {
	return !(b.MaxDimension() > 0)
}

// Corners returns the eight box corners, min-z face first.
func (b Bounds) Corners() [8]mgl32.Vec3 {
	minB, maxB := b.Min, b.Max
	return [8]mgl32.Vec3{
		{minB.X(), minB.Y(), minB.Z()},
		{maxB.X(), minB.Y(), minB.Z()},
		{minB.X(), maxB.Y(), minB.Z()},
		{maxB.X(), maxB.Y(), minB.Z()},
		{minB.X(), minB.Y(), maxB.Z()},
		{maxB.X(), minB.Y(), maxB.Z()},
		{minB.X(), maxB.Y(), maxB.Z()},
		{maxB.X(), maxB.Y(), maxB.Z()},
	}
}

// Transformed returns the conservative box around b's corners under m.
func (b Bounds) Transformed(m mgl32.Mat4) Bounds {
	corners := b.Corners()
	var out Bounds
	for i, c := range corners {
		wc := m.Mul4x1(c.Vec4(1.0)).Vec3()
		if i == 0 {
			out = Bounds{Min: wc, Max: wc}
			continue
		}
		out.Encapsulate(wc)
	}
	return out
}

// AABB returns the box in the [min, max] pair form used by the culling code.
func (b Bounds) AABB() [2]mgl32.Vec3 {
	return [2]mgl32.Vec3{b.Min, b.Max}
}
