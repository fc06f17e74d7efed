package voxelise

import (
	"testing"

	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/raster"
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boxMesh(minB, maxB mgl32.Vec3) *core.Mesh {
	m := core.MeshFromBounds(core.NewBounds(minB, maxB))
	m.Name = "box"
	return m
}

func unitBox() *core.Mesh {
	return boxMesh(mgl32.Vec3{-0.5, -0.5, -0.5}, mgl32.Vec3{0.5, 0.5, 0.5})
}

func TestValidateOrder(t *testing.T) {
	prog := raster.New(1)
	flat := core.NewMesh("flat")
	flat.Vertices = []mgl32.Vec3{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	flat.SetIndices([]uint32{0, 1, 2}, core.TopologyTriangles, 0)
	flat.RecalculateBounds()

	tests := []struct {
		name string
		def  *VoxelDefinition
		want error
	}{
		{"nil definition", nil, ReasonMissingMesh},
		{"missing mesh wins over resolution", &VoxelDefinition{Resolution: 0, VoxelisingProgram: prog}, ReasonMissingMesh},
		{"empty mesh", &VoxelDefinition{SourceMesh: core.NewMesh("e"), Resolution: 0}, ReasonEmptyMesh},
		{"missing program", &VoxelDefinition{SourceMesh: unitBox(), Resolution: 0}, ReasonMissingProgram},
		{"bad resolution", &VoxelDefinition{SourceMesh: unitBox(), VoxelisingProgram: prog, Resolution: 0}, ReasonBadResolution},
		{"negative resolution", &VoxelDefinition{SourceMesh: unitBox(), VoxelisingProgram: prog, Resolution: -3}, ReasonBadResolution},
		{"degenerate bounds", &VoxelDefinition{SourceMesh: flat, VoxelisingProgram: prog, Resolution: 4}, ReasonDegenerateBounds},
		{"valid", &VoxelDefinition{SourceMesh: unitBox(), VoxelisingProgram: prog, Resolution: 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				assert.True(t, tt.def.IsValid())
				return
			}
			assert.Equal(t, tt.want, err)
			assert.False(t, tt.def.IsValid())
		})
	}
}

func TestNewVoxelDefinitionDefaults(t *testing.T) {
	def := NewVoxelDefinition("crate", unitBox(), raster.New(1))
	assert.NotEmpty(t, def.ID)
	assert.Equal(t, DefaultResolution, def.Resolution)
	assert.True(t, def.IsValid())

	other := NewVoxelDefinition("crate", unitBox(), raster.New(1))
	assert.NotEqual(t, def.ID, other.ID)
}

func TestDiagnostics(t *testing.T) {
	good := NewVoxelDefinition("good", unitBox(), raster.New(1))
	bad := NewVoxelDefinition("bad", nil, raster.New(1))
	unnamed := &VoxelDefinition{ID: "abc"}

	lines := Diagnostics(good, bad, unnamed)
	assert.Equal(t, []string{"bad is invalid!", "abc is invalid!"}, lines)
	assert.Empty(t, Diagnostics(good))
}

func TestIsReadyToDraw(t *testing.T) {
	mesh := unitBox()
	def := NewVoxelDefinition("box", mesh, raster.New(1))
	def.Resolution = 4
	assert.False(t, def.IsReadyToDraw(), "no texture")

	def.VoxelTexture = volume.New(4)
	assert.True(t, def.IsReadyToDraw(), "texture without fingerprint")

	def.VoxelTexture.SourceFingerprint = mesh.Fingerprint()
	assert.True(t, def.IsReadyToDraw())

	def.VoxelTexture.SourceFingerprint = mesh.Fingerprint() + 1
	assert.False(t, def.IsReadyToDraw(), "stale fingerprint")

	def.VoxelTexture = volume.New(8)
	assert.False(t, def.IsReadyToDraw(), "resolution mismatch")

	def.VoxelTexture = volume.New(4)
	def.VoxelisingProgram = nil
	require.False(t, def.IsValid())
	assert.False(t, def.IsReadyToDraw(), "invalid definition")
}
