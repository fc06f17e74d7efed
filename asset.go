package voxelise

import (
	"fmt"

	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/google/uuid"
)

type AssetId string

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}

// FailureReason says why a definition cannot be voxelised.
type FailureReason string

const (
	ReasonMissingMesh      FailureReason = "Missing mesh"
	ReasonEmptyMesh        FailureReason = "Empty mesh"
	ReasonMissingProgram   FailureReason = "Missing voxelising material"
	ReasonBadResolution    FailureReason = "Resolution must be at least 1"
	ReasonDegenerateBounds FailureReason = "Degenerate mesh bounds"
)

func (r FailureReason) Error() string { return string(r) }

const DefaultResolution = 32

// VoxelDefinition is the persistent description of voxel content: the mesh
// to voxelise, the program that does it and the grid resolution. A bake
// stores its result in VoxelTexture.
type VoxelDefinition struct {
	ID   AssetId
	Name string
	// Path is where the definition lives on disk. Baked textures are written
	// next to it.
	Path string

	SourceMesh        *core.Mesh
	VoxelisingProgram core.Program
	Resolution        int

	VoxelTexture *volume.Volume
}

func NewVoxelDefinition(name string, mesh *core.Mesh, program core.Program) *VoxelDefinition {
	return &VoxelDefinition{
		ID:                makeAssetId(),
		Name:              name,
		SourceMesh:        mesh,
		VoxelisingProgram: program,
		Resolution:        DefaultResolution,
	}
}

// Validate runs the checks in priority order and returns the first failure
// as a FailureReason, or nil.
func (d *VoxelDefinition) Validate() error {
	if d == nil || d.SourceMesh == nil {
		return ReasonMissingMesh
	}
	if d.SourceMesh.VertexCount() < 1 {
		return ReasonEmptyMesh
	}
	if d.VoxelisingProgram == nil {
		return ReasonMissingProgram
	}
	if d.Resolution < 1 {
		return ReasonBadResolution
	}
	if d.SourceMesh.Bounds().IsDegenerate() {
		return ReasonDegenerateBounds
	}
	return nil
}

func (d *VoxelDefinition) IsValid() bool {
	return d.Validate() == nil
}

// IsReadyToDraw reports a valid definition whose baked texture matches its
// resolution and, when the bake recorded one, its mesh.
func (d *VoxelDefinition) IsReadyToDraw() bool {
	if !d.IsValid() {
		return false
	}
	tex := d.VoxelTexture
	if tex.Empty() || tex.Width() == 0 {
		return false
	}
	if tex.Resolution != d.Resolution {
		return false
	}
	if tex.SourceFingerprint != 0 && tex.SourceFingerprint != d.SourceMesh.Fingerprint() {
		return false
	}
	return true
}

func (d *VoxelDefinition) displayName() string {
	if d == nil {
		return "<nil>"
	}
	if d.Name != "" {
		return d.Name
	}
	return string(d.ID)
}

// Diagnostics returns one line per invalid definition.
func Diagnostics(defs ...*VoxelDefinition) []string {
	var lines []string
	for _, d := range defs {
		if !d.IsValid() {
			lines = append(lines, fmt.Sprintf("%s is invalid!", d.displayName()))
		}
	}
	return lines
}
