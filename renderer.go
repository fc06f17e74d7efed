package voxelise

import (
	"errors"
	"math/rand"
	"time"

	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
)

// Drawer submits a mesh with a material for one frame.
type Drawer interface {
	DrawMesh(mesh *core.Mesh, model mgl32.Mat4, material *Material, layer int)
}

var ErrRendererDisabled = errors.New("voxel renderer is not enabled")

// VoxelRenderer is one object's ray-march rendering session. Enable builds
// the representation and material, Update draws the proxy box every frame
// and Disable releases what Enable built.
type VoxelRenderer struct {
	Definition *VoxelDefinition
	// MaterialOverride is a template; each session configures its own copy.
	MaterialOverride *Material
	Transform        *core.Transform
	Layer            int
	Voxeliser        *Voxeliser

	rep      *RuntimeRepresentation
	material *Material
	rng      *rand.Rand
}

func NewVoxelRenderer(def *VoxelDefinition, v *Voxeliser) *VoxelRenderer {
	return &VoxelRenderer{
		Definition: def,
		Transform:  core.NewTransform(),
		Voxeliser:  v,
	}
}

// Enable prepares the representation. Invalid definitions leave the renderer
// disabled without an error.
func (r *VoxelRenderer) Enable() error {
	if r.rep != nil {
		return nil
	}
	rep, err := r.Voxeliser.PrepareVoxelRepresentation(r.Definition)
	if err != nil {
		return err
	}
	if rep == nil {
		return nil
	}

	var mat *Material
	if r.MaterialOverride != nil {
		mat = r.MaterialOverride.Clone()
	} else {
		mat = NewRaymarchMaterial(rep.Volume)
	}
	if err := rep.Configure(mat); err != nil {
		return err
	}

	r.rep = rep
	r.material = mat
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return nil
}

func (r *VoxelRenderer) Enabled() bool {
	return r.rep != nil && !r.rep.Released()
}

func (r *VoxelRenderer) Representation() *RuntimeRepresentation { return r.rep }

func (r *VoxelRenderer) Material() *Material { return r.material }

func (r *VoxelRenderer) model() mgl32.Mat4 {
	if r.Transform == nil {
		return mgl32.Ident4()
	}
	return r.Transform.ObjectToWorld()
}

// Update jitters the noise offset and draws the bounds mesh.
func (r *VoxelRenderer) Update(d Drawer) error {
	if !r.Enabled() {
		return ErrRendererDisabled
	}
	r.material.Globals.NoiseFrameOffset = mgl32.Vec2{r.rng.Float32(), r.rng.Float32()}
	d.DrawMesh(r.rep.BoundsMesh, r.model(), r.material, r.Layer)
	return nil
}

// Visible culls the world-space bounds against frustum planes.
func (r *VoxelRenderer) Visible(planes [6]mgl32.Vec4) bool {
	if !r.Enabled() {
		return false
	}
	return core.BoundsVisible(r.rep.Bounds, r.model(), planes)
}

// Pick casts a world-space ray at the object's voxels.
func (r *VoxelRenderer) Pick(origin, dir mgl32.Vec3) (volume.Hit, bool) {
	if !r.Enabled() {
		return volume.Hit{}, false
	}
	toObject := mgl32.Ident4()
	if r.Transform != nil {
		toObject = r.Transform.WorldToObject()
	}
	o := mgl32.TransformCoordinate(origin, toObject)
	d := mgl32.TransformNormal(dir, toObject)
	return r.rep.Pick(o, d)
}

func (r *VoxelRenderer) Disable() {
	if r.rep == nil {
		return
	}
	r.rep.Release()
	r.rep = nil
	r.material = nil
}
