package gpu

import (
	"os"
	"testing"

	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireDevice(t *testing.T) *Device {
	t.Helper()
	if os.Getenv("VOXELRT_GPU_TESTS") != "1" {
		t.Skip("set VOXELRT_GPU_TESTS=1 to run GPU tests")
	}
	d, err := NewHeadlessDevice()
	require.NoError(t, err)
	t.Cleanup(d.Release)
	return d
}

func TestProgram_UnitCubeShell(t *testing.T) {
	d := requireDevice(t)
	prog, err := NewProgram(d)
	require.NoError(t, err)
	defer prog.Release()

	const res = 4
	mesh := core.MeshFromBounds(core.NewBounds(mgl32.Vec3{-0.5, -0.5, -0.5}, mgl32.Vec3{0.5, 0.5, 0.5}))
	tr, err := core.UnitCubeTransform(mesh.Bounds())
	require.NoError(t, err)

	target, err := prog.NewTarget(res)
	require.NoError(t, err)
	defer target.Release()

	for _, s := range core.Swizzles {
		require.NoError(t, target.Rasterize(mesh, 0, core.Params{Resolution: res, MetaRes: 2, Swizzle: s, Transform: tr}))
	}
	cells, err := target.Readback()
	require.NoError(t, err)
	require.Len(t, cells, res*res*res)

	for z := 1; z < res-1; z++ {
		for y := 1; y < res-1; y++ {
			for x := 1; x < res-1; x++ {
				assert.Zero(t, cells[core.CellIndex(x, y, z, res)][3])
			}
		}
	}
	// Every face centre is covered by the pass facing it.
	assert.NotZero(t, cells[core.CellIndex(1, 1, 0, res)][3])
	assert.NotZero(t, cells[core.CellIndex(1, 1, res-1, res)][3])
	assert.NotZero(t, cells[core.CellIndex(0, 2, 2, res)][3])
	assert.NotZero(t, cells[core.CellIndex(2, res-1, 1, res)][3])
}

func TestProgram_ReleasedTarget(t *testing.T) {
	d := requireDevice(t)
	prog, err := NewProgram(d)
	require.NoError(t, err)
	defer prog.Release()

	target, err := prog.NewTarget(2)
	require.NoError(t, err)
	target.Release()
	target.Release()

	_, err = target.Readback()
	assert.ErrorIs(t, err, ErrTargetReleased)
}
