package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Swizzle selects which principal axis a rasterization pass projects along.
type Swizzle uint32

const (
	SwizzleNone Swizzle = iota // screen (x,y), depth z
	SwizzleLeft                // screen (z,y), depth x
	SwizzleTop                 // screen (x,z), depth y
)

// Swizzles lists the three passes in the order the engine issues them.
var Swizzles = [3]Swizzle{SwizzleNone, SwizzleLeft, SwizzleTop}

func (s Swizzle) String() string {
	switch s {
	case SwizzleNone:
		return "None"
	case SwizzleLeft:
		return "Left"
	case SwizzleTop:
		return "Top"
	}
	return fmt.Sprintf("Swizzle(%d)", uint32(s))
}

// Apply permutes a unit-cube point into (screen x, screen y, depth).
// Every swizzle is its own inverse, so Apply also maps a swizzled cell
// back to grid axes.
func (s Swizzle) Apply(p mgl32.Vec3) mgl32.Vec3 {
	switch s {
	case SwizzleLeft:
		return mgl32.Vec3{p.Z(), p.Y(), p.X()}
	case SwizzleTop:
		return mgl32.Vec3{p.X(), p.Z(), p.Y()}
	}
	return p
}

// ApplyCell is Apply over integer cell coordinates.
func (s Swizzle) ApplyCell(c [3]int) [3]int {
	switch s {
	case SwizzleLeft:
		return [3]int{c[2], c[1], c[0]}
	case SwizzleTop:
		return [3]int{c[0], c[2], c[1]}
	}
	return c
}

// Params is everything a voxelising program is driven with for one pass.
// It replaces named global shader uniforms.
type Params struct {
	Resolution int
	MetaRes    int
	Swizzle    Swizzle
	// Transform maps object space into the unit cube; view and projection
	// are identity.
	Transform mgl32.Mat4
}

// Program is the opaque voxelising capability. Backends (software, GPU)
// implement it; the engine only allocates targets and drives passes.
type Program interface {
	// NewTarget allocates a zeroed scatter target of resolution³ RGBA cells,
	// exclusively owned by the caller.
	NewTarget(resolution int) (Target, error)
}

// Target is one in-flight voxelisation: a scatter buffer plus whatever
// intermediate render targets the backend needs.
type Target interface {
	// Rasterize draws submesh of mesh once under params, scatter-writing
	// every fragment into cell x + y*R + z*R². Concurrent writes to a cell
	// have no ordering; any one of them may win.
	Rasterize(mesh *Mesh, submesh int, params Params) error
	// Readback blocks until all issued passes finish and returns the cells
	// in linear order.
	Readback() ([][4]float32, error)
	// Release frees the buffer and intermediates. Safe to call twice.
	Release()
}

// CellIndex is the linear scatter-buffer index shared by writers and readers.
func CellIndex(x, y, z, resolution int) int {
	return x + y*resolution + z*resolution*resolution
}
