package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/voxelise/voxelrt/rt/core"
)

const (
	// struct VoxelParams {
	//   transform: mat4x4<f32>; -- 64
	//   resolution: u32;        -- 68
	//   meta_res: u32;          -- 72
	//   swizzle: u32;           -- 76
	//   _pad: u32;              -- 80
	// }
	voxelParamsSize = 80

	// position f32x3 + color f32x4
	vertexStride = 28

	cellSize = 16
)

func encodeParams(p core.Params) []byte {
	buf := make([]byte, voxelParamsSize)
	copy(buf, mat4ToBytes(p.Transform))
	binary.LittleEndian.PutUint32(buf[64:], uint32(p.Resolution))
	binary.LittleEndian.PutUint32(buf[68:], uint32(p.MetaRes))
	binary.LittleEndian.PutUint32(buf[72:], uint32(p.Swizzle))
	return buf
}

// packVertices interleaves positions and colors. Meshes without colors get
// opaque white.
func packVertices(mesh *core.Mesh) []byte {
	buf := make([]byte, len(mesh.Vertices)*vertexStride)
	for i, v := range mesh.Vertices {
		c := [4]float32{1, 1, 1, 1}
		if i < len(mesh.Colors) {
			c = mesh.Colors[i]
		}
		o := i * vertexStride
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint32(buf[o+j*4:], math.Float32bits(v[j]))
		}
		for j := 0; j < 4; j++ {
			binary.LittleEndian.PutUint32(buf[o+12+j*4:], math.Float32bits(c[j]))
		}
	}
	return buf
}

// packIndices flattens a submesh into a triangle list. Quads are split the
// same way the CPU path splits them.
func packIndices(mesh *core.Mesh, submesh int) []byte {
	tris := mesh.Triangles(submesh)
	buf := make([]byte, len(tris)*3*4)
	for i, t := range tris {
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint32(buf[(i*3+j)*4:], t[j])
		}
	}
	return buf
}

func decodeCells(data []byte, n int) [][4]float32 {
	cells := make([][4]float32, n)
	for i := range cells {
		o := i * cellSize
		if o+cellSize > len(data) {
			break
		}
		for j := 0; j < 4; j++ {
			cells[i][j] = math.Float32frombits(binary.LittleEndian.Uint32(data[o+j*4:]))
		}
	}
	return cells
}

func mat4ToBytes(m [16]float32) []byte {
	buf := make([]byte, 64)
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func vec4ToBytes(v [4]float32) []byte {
	buf := make([]byte, 16)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
