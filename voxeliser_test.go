package voxelise

import (
	"errors"
	"testing"

	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/raster"
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProgram wraps a program and records every pass and release.
type countingProgram struct {
	inner    core.Program
	passes   []core.Swizzle
	released int
	failOn   int
}

func (p *countingProgram) NewTarget(res int) (core.Target, error) {
	t, err := p.inner.NewTarget(res)
	if err != nil {
		return nil, err
	}
	return &countingTarget{Target: t, prog: p}, nil
}

type countingTarget struct {
	core.Target
	prog *countingProgram
}

var errPassFailed = errors.New("pass failed")

func (t *countingTarget) Rasterize(mesh *core.Mesh, submesh int, params core.Params) error {
	t.prog.passes = append(t.prog.passes, params.Swizzle)
	if t.prog.failOn > 0 && len(t.prog.passes) == t.prog.failOn {
		return errPassFailed
	}
	return t.Target.Rasterize(mesh, submesh, params)
}

func (t *countingTarget) Release() {
	t.prog.released++
	t.Target.Release()
}

func TestVoxeliseMeshUnitCube(t *testing.T) {
	const res = 4
	prog := &countingProgram{inner: raster.New(2)}
	mesh := unitBox()

	vol, err := NewVoxeliser(nil).VoxeliseMesh(mesh, res, prog)
	require.NoError(t, err)

	assert.Equal(t, res, vol.Resolution)
	assert.Equal(t, 2, vol.MetaRes)
	assert.Equal(t, 8, vol.Width())
	assert.Equal(t, mesh.Fingerprint(), vol.SourceFingerprint)
	assert.Equal(t, 56, vol.OccupiedCount())
	assert.False(t, vol.Occupied(1, 1, 1))
	assert.Equal(t, [4]float32{1, 1, 1, 1}, vol.At(0, 0, 0))

	assert.Equal(t, core.Swizzles[:], prog.passes)
	assert.Equal(t, 1, prog.released)
}

func TestVoxeliseMeshPassesPerSubmesh(t *testing.T) {
	mesh := unitBox()
	mesh.SetIndices(mesh.Submeshes[0].Indices, mesh.Submeshes[0].Topology, 1)
	prog := &countingProgram{inner: raster.New(1)}

	_, err := NewVoxeliser(nil).VoxeliseMesh(mesh, 2, prog)
	require.NoError(t, err)
	assert.Len(t, prog.passes, 6)
}

func TestVoxeliseMeshReleasesOnFailure(t *testing.T) {
	prog := &countingProgram{inner: raster.New(1), failOn: 2}

	_, err := NewVoxeliser(nil).VoxeliseMesh(unitBox(), 4, prog)
	require.ErrorIs(t, err, errPassFailed)
	assert.Len(t, prog.passes, 2)
	assert.Equal(t, 1, prog.released)
}

func TestVoxeliseMeshArguments(t *testing.T) {
	v := NewVoxeliser(nil)
	prog := raster.New(1)

	_, err := v.VoxeliseMesh(nil, 4, prog)
	assert.ErrorIs(t, err, ErrNilMesh)

	_, err = v.VoxeliseMesh(unitBox(), 0, prog)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	_, err = v.VoxeliseMesh(unitBox(), 4, nil)
	assert.ErrorIs(t, err, ErrNilProgram)

	flat := boxMesh(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{1, 1, 1})
	_, err = v.VoxeliseMesh(flat, 4, prog)
	assert.ErrorIs(t, err, core.ErrDegenerateBounds)
}

func TestVoxeliseMeshResolutionOne(t *testing.T) {
	vol, err := NewVoxeliser(nil).VoxeliseMesh(unitBox(), 1, raster.New(1))
	require.NoError(t, err)
	assert.Equal(t, 1, vol.Width())
	assert.True(t, vol.Occupied(0, 0, 0))
}

func TestVoxeliseMeshNonCubicBounds(t *testing.T) {
	const res = 4
	// 2 x 1 x 1 box: the unit-cube transform keeps proportions, so only the
	// lower half of y and z is touched.
	mesh := boxMesh(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{2, 1, 1})
	vol, err := NewVoxeliser(nil).VoxeliseMesh(mesh, res, raster.New(2))
	require.NoError(t, err)

	for z := 0; z < res; z++ {
		for y := 0; y < res; y++ {
			for x := 0; x < res; x++ {
				if y == res-1 || z == res-1 {
					assert.False(t, vol.Occupied(x, y, z), "cell %d,%d,%d", x, y, z)
				}
			}
		}
	}
	assert.True(t, vol.Occupied(0, 0, 0))
	assert.True(t, vol.Occupied(3, 0, 0))
}

func TestPrepareVoxelRepresentation(t *testing.T) {
	logger := &recordingLogger{}
	v := NewVoxeliser(logger)
	mesh := unitBox()
	def := NewVoxelDefinition("box", mesh, raster.New(1))
	def.Resolution = 4

	rep, err := v.PrepareVoxelRepresentation(def)
	require.NoError(t, err)
	require.NotNil(t, rep)
	defer rep.Release()

	assert.Equal(t, mesh.Bounds(), rep.Bounds)
	assert.Equal(t, float32(1), rep.MaxDimension)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, rep.Proportions)
	assert.Equal(t, 4, rep.RaymarchStepCount)
	assert.Equal(t, 8, rep.BoundsMesh.VertexCount())
	assert.Equal(t, 56, rep.Volume.OccupiedCount())
	assert.NotEmpty(t, logger.debug)
}

func TestPrepareVoxelRepresentationAdoptsBake(t *testing.T) {
	prog := &countingProgram{inner: raster.New(1)}
	def := NewVoxelDefinition("box", unitBox(), prog)
	def.Resolution = 4
	baked := volume.New(4)
	baked.SourceFingerprint = def.SourceMesh.Fingerprint()
	def.VoxelTexture = baked

	rep, err := NewVoxeliser(nil).PrepareVoxelRepresentation(def)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Same(t, baked, rep.Volume)
	assert.Empty(t, prog.passes)
}

func TestPrepareVoxelRepresentationRevoxelisesStaleBake(t *testing.T) {
	prog := &countingProgram{inner: raster.New(1)}
	def := NewVoxelDefinition("box", unitBox(), prog)
	def.Resolution = 4
	def.VoxelTexture = volume.New(2)

	rep, err := NewVoxeliser(nil).PrepareVoxelRepresentation(def)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, 4, rep.Volume.Resolution)
	assert.Len(t, prog.passes, 3)
}

func TestPrepareInvalidDefinitionIsSilent(t *testing.T) {
	logger := &recordingLogger{}
	v := NewVoxeliser(logger)
	def := NewVoxelDefinition("nomesh", nil, raster.New(1))

	rep, err := v.PrepareVoxelRepresentation(def)
	assert.NoError(t, err)
	assert.Nil(t, rep)

	rep, err = v.PrepareFromBaked(def)
	assert.NoError(t, err)
	assert.Nil(t, rep)

	require.Len(t, logger.warn, 2)
	assert.Contains(t, logger.warn[0], "Missing mesh")
}

func TestPrepareFromBaked(t *testing.T) {
	logger := &recordingLogger{}
	prog := &countingProgram{inner: raster.New(1)}
	def := NewVoxelDefinition("box", unitBox(), prog)
	def.Resolution = 4

	rep, err := NewVoxeliser(logger).PrepareFromBaked(def)
	assert.NoError(t, err)
	assert.Nil(t, rep)
	assert.Len(t, logger.warn, 1)

	def.VoxelTexture = volume.New(4)
	rep, err = NewVoxeliser(logger).PrepareFromBaked(def)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Same(t, def.VoxelTexture, rep.Volume)
	assert.Empty(t, prog.passes)
}
