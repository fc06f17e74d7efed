package shaders

import (
	_ "embed"
)

//go:embed voxelise.wgsl
var VoxeliseWGSL string

//go:embed raymarch.wgsl
var RaymarchWGSL string
