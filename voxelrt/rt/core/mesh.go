package core

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl32"
)

type Topology int

const (
	TopologyTriangles Topology = iota
	TopologyQuads
)

// IndicesPerPrimitive is 3 for triangles and 4 for quads.
func (t Topology) IndicesPerPrimitive() int {
	if t == TopologyQuads {
		return 4
	}
	return 3
}

type Submesh struct {
	Indices  []uint32
	Topology Topology
}

// Mesh is host-readable geometry. Vertex attribute slices other than
// Vertices are optional and, when present, have one entry per vertex.
type Mesh struct {
	Name      string
	Vertices  []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec3 // unit-cube (u,v,w) per vertex
	Colors    []mgl32.Vec4
	Submeshes []Submesh

	bounds    Bounds
	hasBounds bool
}

func NewMesh(name string) *Mesh {
	return &Mesh{Name: name}
}

func (m *Mesh) VertexCount() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices)
}

// SetIndices replaces the index list of submesh i, growing the submesh
// list as needed.
func (m *Mesh) SetIndices(indices []uint32, topology Topology, submesh int) {
	for len(m.Submeshes) <= submesh {
		m.Submeshes = append(m.Submeshes, Submesh{})
	}
	m.Submeshes[submesh] = Submesh{Indices: indices, Topology: topology}
}

// Bounds returns the explicit bounds when set, otherwise the box around
// the vertices.
func (m *Mesh) Bounds() Bounds {
	if m.hasBounds {
		return m.bounds
	}
	b, _ := BoundsFromPoints(m.Vertices)
	return b
}

// SetBounds pins the bounds metadata; Bounds no longer derives it from the
// vertices.
func (m *Mesh) SetBounds(b Bounds) {
	m.bounds = b
	m.hasBounds = true
}

func (m *Mesh) RecalculateBounds() {
	m.bounds, m.hasBounds = BoundsFromPoints(m.Vertices)
}

// Triangles expands submesh i into triangles. Quads split along their
// 0-2 diagonal. Primitives referencing missing vertices are dropped.
func (m *Mesh) Triangles(submesh int) [][3]uint32 {
	if submesh < 0 || submesh >= len(m.Submeshes) {
		return nil
	}
	sm := m.Submeshes[submesh]
	n := uint32(len(m.Vertices))
	step := sm.Topology.IndicesPerPrimitive()
	tris := make([][3]uint32, 0, len(sm.Indices)/step*(step-2))
	for i := 0; i+step <= len(sm.Indices); i += step {
		p := sm.Indices[i : i+step]
		inRange := true
		for _, idx := range p {
			if idx >= n {
				inRange = false
				break
			}
		}
		if !inRange {
			continue
		}
		tris = append(tris, [3]uint32{p[0], p[1], p[2]})
		if step == 4 {
			tris = append(tris, [3]uint32{p[0], p[2], p[3]})
		}
	}
	return tris
}

// TriangleCount counts triangles over all submeshes.
func (m *Mesh) TriangleCount() int {
	n := 0
	for i := range m.Submeshes {
		n += len(m.Triangles(i))
	}
	return n
}

// RecalculateNormals derives smooth vertex normals: each primitive adds its
// unit face normal once to every vertex it references.
func (m *Mesh) RecalculateNormals() {
	normals := make([]mgl32.Vec3, len(m.Vertices))
	n := uint32(len(m.Vertices))
	for _, sm := range m.Submeshes {
		step := sm.Topology.IndicesPerPrimitive()
		for i := 0; i+step <= len(sm.Indices); i += step {
			p := sm.Indices[i : i+step]
			if p[0] >= n || p[1] >= n || p[2] >= n {
				continue
			}
			v0, v1, v2 := m.Vertices[p[0]], m.Vertices[p[1]], m.Vertices[p[2]]
			face := v1.Sub(v0).Cross(v2.Sub(v0))
			if face.LenSqr() == 0 {
				continue
			}
			face = face.Normalize()
			for _, idx := range p {
				if idx < n {
					normals[idx] = normals[idx].Add(face)
				}
			}
		}
	}
	for i, nv := range normals {
		if nv.LenSqr() > 0 {
			normals[i] = nv.Normalize()
		}
	}
	m.Normals = normals
}

// Fingerprint hashes positions and indices. Baked volumes record it to tie
// them to the geometry they were produced from.
func (m *Mesh) Fingerprint() uint64 {
	if m == nil {
		return 0
	}
	d := xxhash.New()
	var b [4]byte
	for _, v := range m.Vertices {
		for _, c := range v {
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(c))
			_, _ = d.Write(b[:])
		}
	}
	for _, sm := range m.Submeshes {
		binary.LittleEndian.PutUint32(b[:], uint32(sm.Topology))
		_, _ = d.Write(b[:])
		for _, idx := range sm.Indices {
			binary.LittleEndian.PutUint32(b[:], idx)
			_, _ = d.Write(b[:])
		}
	}
	return d.Sum64()
}

// MeshFromBounds builds the 8-vertex, 6-quad box enclosing b. Vertex order:
//
//	1---2
//	|   |
//	0---3
//
// on the min-z face, then the same pattern at max z. UVs hold the unit-cube
// corner of each vertex. The mesh bounds are pinned to b exactly.
func MeshFromBounds(b Bounds) *Mesh {
	minB, maxB := b.Min, b.Max
	verts := make([]mgl32.Vec3, 8)
	verts[0] = mgl32.Vec3{minB.X(), minB.Y(), minB.Z()}
	verts[1] = mgl32.Vec3{minB.X(), maxB.Y(), minB.Z()}
	verts[2] = mgl32.Vec3{maxB.X(), maxB.Y(), minB.Z()}
	verts[3] = mgl32.Vec3{maxB.X(), minB.Y(), minB.Z()}
	for i := 4; i < len(verts); i++ {
		v := verts[i-4]
		v[2] = maxB.Z()
		verts[i] = v
	}

	uvs := make([]mgl32.Vec3, len(verts))
	for i := range 4 {
		var u, v float32
		if i == 2 || i == 3 {
			u = 1
		}
		if i == 1 || i == 2 {
			v = 1
		}
		uvs[i] = mgl32.Vec3{u, v, 0}
		uvs[i+4] = mgl32.Vec3{u, v, 1}
	}

	// 4 indices per quad, 1 quad per face, 6 faces
	indices := []uint32{
		// front
		0, 1, 2, 3,
		// left
		0, 4, 5, 1,
		// top
		1, 5, 6, 2,
		// right
		2, 6, 7, 3,
		// bottom
		3, 7, 4, 0,
		// back
		4, 7, 6, 5,
	}

	mesh := NewMesh("VoxelBounds")
	mesh.Vertices = verts
	mesh.UVs = uvs
	mesh.SetIndices(indices, TopologyQuads, 0)
	mesh.RecalculateNormals()
	mesh.SetBounds(b)
	return mesh
}
