package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform places a voxel object in the world.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() *Transform {
	return &Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

func (t *Transform) ObjectToWorld() mgl32.Mat4 {
	// M = T * R * S
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())

	return translate.Mul4(rotate).Mul4(scale)
}

func (t *Transform) WorldToObject() mgl32.Mat4 {
	// inv(M) = inv(S) * inv(R) * inv(T)
	invScale := mgl32.Scale3D(1.0/t.Scale.X(), 1.0/t.Scale.Y(), 1.0/t.Scale.Z())
	invRotate := t.Rotation.Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), -t.Position.Z())

	return invScale.Mul4(invRotate).Mul4(invTranslate)
}

// UnitCubeTransform maps b into the unit cube anchored at the origin with a
// uniform scale of 1/MaxDimension, so shorter axes stay proportionally
// short. Translation is -min*scale.
func UnitCubeTransform(b Bounds) (mgl32.Mat4, error) {
	maxDim := b.MaxDimension()
	if !(maxDim > 0) {
		return mgl32.Ident4(), ErrDegenerateBounds
	}
	s := 1 / maxDim
	t := b.Min.Mul(-s)
	return mgl32.Translate3D(t.X(), t.Y(), t.Z()).Mul4(mgl32.Scale3D(s, s, s)), nil
}
