package app

import (
	"testing"

	"github.com/gekko3d/voxelise"
	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/raster"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boxRenderer(t *testing.T, at mgl32.Vec3) *voxelise.VoxelRenderer {
	t.Helper()
	mesh := core.MeshFromBounds(core.NewBounds(mgl32.Vec3{-0.5, -0.5, -0.5}, mgl32.Vec3{0.5, 0.5, 0.5}))
	mesh.Name = "box"

	def := voxelise.NewVoxelDefinition("box", mesh, raster.New(1))
	def.Resolution = 4
	r := voxelise.NewVoxelRenderer(def, voxelise.NewVoxeliser(nil))
	require.NoError(t, r.Enable())
	require.True(t, r.Enabled())
	r.Transform.Position = at
	return r
}

func TestPickNearestAcrossRenderers(t *testing.T) {
	far := boxRenderer(t, mgl32.Vec3{})
	near := boxRenderer(t, mgl32.Vec3{0, 0, -3})
	renderers := map[*core.Mesh]*voxelise.VoxelRenderer{
		far.Representation().BoundsMesh:  far,
		near.Representation().BoundsMesh: near,
	}

	origin, dir := mgl32.Vec3{-0.3, -0.3, -10}, mgl32.Vec3{0, 0, 1}
	hit, ok := pickNearest(renderers, origin, dir)
	require.True(t, ok)
	assert.InDelta(t, 6.5, hit.T, 1e-3)
	assert.Equal(t, [3]int{0, 0, 0}, hit.Cell)

	near.Disable()
	hit, ok = pickNearest(renderers, origin, dir)
	require.True(t, ok)
	assert.InDelta(t, 9.5, hit.T, 1e-3)

	_, ok = pickNearest(renderers, mgl32.Vec3{5, 5, -10}, dir)
	assert.False(t, ok)
	_, ok = pickNearest(nil, origin, dir)
	assert.False(t, ok)
}
