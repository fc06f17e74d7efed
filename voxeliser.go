package voxelise

import (
	"errors"
	"fmt"

	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
)

var (
	ErrNilMesh           = errors.New("voxelise: nil mesh")
	ErrInvalidResolution = errors.New("voxelise: resolution must be at least 1")
	ErrNilProgram        = errors.New("voxelise: nil voxelising program")
)

// Voxeliser turns meshes into tiled voxel volumes and definitions into
// runtime representations.
type Voxeliser struct {
	Logger Logger
}

func NewVoxeliser(logger Logger) *Voxeliser {
	return &Voxeliser{Logger: logger}
}

func (v *Voxeliser) log() Logger {
	if v == nil {
		return NewNopLogger()
	}
	return orNop(v.Logger)
}

// VoxeliseMesh rasterizes every submesh of mesh three times, once per
// swizzle, into a fresh resolution³ target and packs the result into a
// tiled volume. The target is released before returning.
func (v *Voxeliser) VoxeliseMesh(mesh *core.Mesh, resolution int, program core.Program) (*volume.Volume, error) {
	if mesh == nil {
		return nil, ErrNilMesh
	}
	if resolution < 1 {
		return nil, ErrInvalidResolution
	}
	if program == nil {
		return nil, ErrNilProgram
	}
	logger := v.log()

	bounds := mesh.Bounds()
	transform, err := core.UnitCubeTransform(bounds)
	if err != nil {
		return nil, fmt.Errorf("voxelise %s: %w", mesh.Name, err)
	}

	target, err := program.NewTarget(resolution)
	if err != nil {
		return nil, fmt.Errorf("voxelise %s: allocate target: %w", mesh.Name, err)
	}
	defer target.Release()

	metaRes := volume.MetaResolution(resolution)
	for sm := range mesh.Submeshes {
		for _, s := range core.Swizzles {
			params := core.Params{
				Resolution: resolution,
				MetaRes:    metaRes,
				Swizzle:    s,
				Transform:  transform,
			}
			if err := target.Rasterize(mesh, sm, params); err != nil {
				return nil, fmt.Errorf("voxelise %s: submesh %d pass %s: %w", mesh.Name, sm, s, err)
			}
			logger.Debugf("voxelise %s: submesh %d pass %s issued", mesh.Name, sm, s)
		}
	}

	cells, err := target.Readback()
	if err != nil {
		return nil, fmt.Errorf("voxelise %s: readback: %w", mesh.Name, err)
	}
	logger.Debugf("voxelise %s: read back %d cells", mesh.Name, len(cells))

	vol, err := volume.Pack(resolution, cells)
	if err != nil {
		return nil, fmt.Errorf("voxelise %s: %w", mesh.Name, err)
	}
	vol.SourceFingerprint = mesh.Fingerprint()
	return vol, nil
}

// PrepareVoxelRepresentation builds the runtime representation of def. A
// baked texture that is ready to draw is adopted as is; otherwise the mesh
// is voxelised now. Invalid definitions yield (nil, nil) and a warning.
func (v *Voxeliser) PrepareVoxelRepresentation(def *VoxelDefinition) (*RuntimeRepresentation, error) {
	if err := def.Validate(); err != nil {
		v.log().Warnf("%s: not voxelising: %v", def.displayName(), err)
		return nil, nil
	}
	if def.IsReadyToDraw() {
		return newRepresentation(def.SourceMesh.Bounds(), def.VoxelTexture), nil
	}
	vol, err := v.VoxeliseMesh(def.SourceMesh, def.Resolution, def.VoxelisingProgram)
	if err != nil {
		return nil, err
	}
	return newRepresentation(def.SourceMesh.Bounds(), vol), nil
}

// PrepareFromBaked builds a representation only from an existing bake. It
// never voxelises; definitions without a usable bake yield (nil, nil).
func (v *Voxeliser) PrepareFromBaked(def *VoxelDefinition) (*RuntimeRepresentation, error) {
	if err := def.Validate(); err != nil {
		v.log().Warnf("%s: not preparing: %v", def.displayName(), err)
		return nil, nil
	}
	if !def.IsReadyToDraw() {
		v.log().Warnf("%s: no baked texture matching resolution %d", def.displayName(), def.Resolution)
		return nil, nil
	}
	return newRepresentation(def.SourceMesh.Bounds(), def.VoxelTexture), nil
}
