package voxelise

import (
	"testing"

	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepresentation() *RuntimeRepresentation {
	b := core.NewBounds(mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{3, 2, 1})
	return newRepresentation(b, volume.New(8))
}

func TestRepresentationDerivedValues(t *testing.T) {
	rep := testRepresentation()
	assert.Equal(t, float32(4), rep.MaxDimension)
	assert.Equal(t, mgl32.Vec3{1, 0.5, 0.25}, rep.Proportions)
	assert.Equal(t, 8, rep.RaymarchStepCount)
	assert.Equal(t, rep.Bounds, rep.BoundsMesh.Bounds())

	g := rep.Globals()
	assert.Equal(t, mgl32.Vec3{-1, 0, 0}, g.BoundsMin)
	assert.Equal(t, mgl32.Vec3{3, 2, 1}, g.BoundsMax)
	assert.Equal(t, mgl32.Vec3{4, 2, 1}, g.BoundsSize)
	assert.Equal(t, 8, g.RaymarchStepCount)

	named := g.Named()
	assert.Equal(t, float32(4), named[GlobalBoundsMaxDimension])
	assert.Equal(t, mgl32.Vec3{1, 0.5, 0.25}, named[GlobalBoundsProportions])
	assert.Len(t, named, 7)
}

func TestConfigureKeepsNoiseOffset(t *testing.T) {
	rep := testRepresentation()
	m := NewRaymarchMaterial(rep.Volume)
	m.Globals.NoiseFrameOffset = mgl32.Vec2{0.25, 0.75}

	require.NoError(t, rep.Configure(m))
	assert.Equal(t, RaymarchShader, m.Shader)
	assert.Equal(t, mgl32.Vec2{0.25, 0.75}, m.Globals.NoiseFrameOffset)
	assert.Equal(t, float32(4), m.Globals.BoundsMaxDimension)
}

func TestReleaseIsIdempotent(t *testing.T) {
	rep := testRepresentation()
	var order []int
	require.NoError(t, rep.OnRelease(func() { order = append(order, 1) }))
	require.NoError(t, rep.OnRelease(func() { order = append(order, 2) }))

	rep.Release()
	rep.Release()

	assert.True(t, rep.Released())
	assert.Equal(t, []int{2, 1}, order)
}

func TestUseAfterRelease(t *testing.T) {
	rep := testRepresentation()
	rep.Release()

	assert.ErrorIs(t, rep.Configure(NewRaymarchMaterial(nil)), ErrRepresentationReleased)
	assert.ErrorIs(t, rep.OnRelease(func() {}), ErrRepresentationReleased)
}

func TestMaterialCloneIsIndependent(t *testing.T) {
	m := NewRaymarchMaterial(volume.New(2))
	c := m.Clone()
	c.Globals.RaymarchStepCount = 99
	assert.Zero(t, m.Globals.RaymarchStepCount)
	assert.Same(t, m.MainTexture, c.MainTexture)
}

func TestRepresentationPickAfterRelease(t *testing.T) {
	rep := testRepresentation()
	rep.Volume.Set(0, 0, 0, [4]float32{0, 1, 0, 1})

	hit, ok := rep.Pick(mgl32.Vec3{-0.75, 0.25, -1}, mgl32.Vec3{0, 0, 1})
	require.True(t, ok)
	assert.Equal(t, [3]int{0, 0, 0}, hit.Cell)
	assert.Equal(t, [4]float32{0, 1, 0, 1}, hit.Color)
	assert.InDelta(t, 1, hit.T, 1e-3)

	rep.Release()
	_, ok = rep.Pick(mgl32.Vec3{-0.75, 0.25, -1}, mgl32.Vec3{0, 0, 1})
	assert.False(t, ok)
}
