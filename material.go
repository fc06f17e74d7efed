package voxelise

import (
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
)

// Shader global names bound by a ray-march material.
const (
	GlobalBoundsMin          = "_VX_BoundsMin"
	GlobalBoundsMax          = "_VX_BoundsMax"
	GlobalBoundsSize         = "_VX_BoundsSize"
	GlobalBoundsMaxDimension = "_VX_BoundsMaxDimension"
	GlobalBoundsProportions  = "_VX_BoundsProportions"
	GlobalRaymarchStepCount  = "_VX_RaymarchStepCount"
	GlobalNoiseFrameOffset   = "_VX_NoiseFrameOffset"
)

const RaymarchShader = "Voxels/VoxelRayMarch"

type ShaderGlobals struct {
	BoundsMin          mgl32.Vec3
	BoundsMax          mgl32.Vec3
	BoundsSize         mgl32.Vec3
	BoundsMaxDimension float32
	BoundsProportions  mgl32.Vec3
	RaymarchStepCount  int
	NoiseFrameOffset   mgl32.Vec2
}

// Named lists the globals under their shader names.
func (g ShaderGlobals) Named() map[string]any {
	return map[string]any{
		GlobalBoundsMin:          g.BoundsMin,
		GlobalBoundsMax:          g.BoundsMax,
		GlobalBoundsSize:         g.BoundsSize,
		GlobalBoundsMaxDimension: g.BoundsMaxDimension,
		GlobalBoundsProportions:  g.BoundsProportions,
		GlobalRaymarchStepCount:  g.RaymarchStepCount,
		GlobalNoiseFrameOffset:   g.NoiseFrameOffset,
	}
}

// Material is a shader reference, its main texture and its globals.
type Material struct {
	Shader      string
	MainTexture *volume.Volume
	Globals     ShaderGlobals
}

func NewRaymarchMaterial(tex *volume.Volume) *Material {
	return &Material{Shader: RaymarchShader, MainTexture: tex}
}

// Clone copies the material so a session can configure its own instance.
func (m *Material) Clone() *Material {
	c := *m
	return &c
}
