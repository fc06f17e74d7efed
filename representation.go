package voxelise

import (
	"errors"
	"sync"

	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrRepresentationReleased = errors.New("voxel representation already released")

// RuntimeRepresentation is everything a ray-march renderer needs for one
// object: bounds, a proxy box mesh, the volume and values derived from them.
// It belongs to the session that built it and must be released by it.
type RuntimeRepresentation struct {
	Bounds            core.Bounds
	BoundsMesh        *core.Mesh
	Volume            *volume.Volume
	MaxDimension      float32
	Proportions       mgl32.Vec3
	RaymarchStepCount int

	mu        sync.Mutex
	released  bool
	onRelease []func()
}

func newRepresentation(bounds core.Bounds, vol *volume.Volume) *RuntimeRepresentation {
	return &RuntimeRepresentation{
		Bounds:            bounds,
		BoundsMesh:        core.MeshFromBounds(bounds),
		Volume:            vol,
		MaxDimension:      bounds.MaxDimension(),
		Proportions:       bounds.Proportions(),
		RaymarchStepCount: vol.Resolution,
	}
}

// Globals derives the shader globals. NoiseFrameOffset is left zero.
func (r *RuntimeRepresentation) Globals() ShaderGlobals {
	return ShaderGlobals{
		BoundsMin:          r.Bounds.Min,
		BoundsMax:          r.Bounds.Max,
		BoundsSize:         r.Bounds.Size(),
		BoundsMaxDimension: r.MaxDimension,
		BoundsProportions:  r.Proportions,
		RaymarchStepCount:  r.RaymarchStepCount,
	}
}

// Pick marches an object-space ray through the volume. The hit T is a
// parameter along dir, so it also holds for the same ray in world space
// under any affine object transform.
func (r *RuntimeRepresentation) Pick(origin, dir mgl32.Vec3) (volume.Hit, bool) {
	r.mu.Lock()
	released := r.released
	r.mu.Unlock()
	if released || !(r.MaxDimension > 0) {
		return volume.Hit{}, false
	}
	inv := 1 / r.MaxDimension
	return r.Volume.RayMarchUnit(origin.Sub(r.Bounds.Min).Mul(inv), dir.Mul(inv))
}

// Configure writes the bounds globals and step count into m.
func (r *RuntimeRepresentation) Configure(m *Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrRepresentationReleased
	}
	noise := m.Globals.NoiseFrameOffset
	m.Globals = r.Globals()
	m.Globals.NoiseFrameOffset = noise
	return nil
}

// OnRelease registers fn to free resources created from this
// representation, such as GPU copies of its volume.
func (r *RuntimeRepresentation) OnRelease(fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrRepresentationReleased
	}
	r.onRelease = append(r.onRelease, fn)
	return nil
}

func (r *RuntimeRepresentation) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Release runs the release hooks, newest first. Later calls do nothing.
func (r *RuntimeRepresentation) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	hooks := r.onRelease
	r.onRelease = nil
	r.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}
