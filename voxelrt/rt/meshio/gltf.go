// Package meshio imports host-readable meshes from glTF 2.0 files.
package meshio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

var ErrNoTriangles = errors.New("gltf document has no triangle primitives")

// LoadGLTF opens a .gltf or .glb file and merges every triangle primitive
// into one mesh, one submesh per primitive.
func LoadGLTF(path string) (*core.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return FromDocument(doc, name)
}

// Decode reads a self-contained document (GLB or glTF with embedded buffers).
func Decode(r io.Reader, name string) (*core.Mesh, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf: %w", err)
	}
	return FromDocument(doc, name)
}

func FromDocument(doc *gltf.Document, name string) (*core.Mesh, error) {
	mesh := core.NewMesh(name)
	hasColors := false
	for mi, m := range doc.Meshes {
		for pi, prim := range m.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			posIdx, ok := prim.Attributes[gltf.POSITION]
			if !ok {
				continue
			}
			positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d positions: %w", mi, pi, err)
			}

			var colors [][4]uint8
			if colIdx, ok := prim.Attributes[gltf.COLOR_0]; ok {
				colors, err = modeler.ReadColor(doc, doc.Accessors[colIdx], nil)
				if err != nil {
					return nil, fmt.Errorf("mesh %d primitive %d colors: %w", mi, pi, err)
				}
			}

			var indices []uint32
			if prim.Indices != nil {
				indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
				if err != nil {
					return nil, fmt.Errorf("mesh %d primitive %d indices: %w", mi, pi, err)
				}
			} else {
				indices = make([]uint32, len(positions))
				for i := range indices {
					indices[i] = uint32(i)
				}
			}

			base := uint32(len(mesh.Vertices))
			for i, p := range positions {
				mesh.Vertices = append(mesh.Vertices, mgl32.Vec3(p))
				c := mgl32.Vec4{1, 1, 1, 1}
				if i < len(colors) {
					hasColors = true
					c = mgl32.Vec4{
						float32(colors[i][0]) / 255,
						float32(colors[i][1]) / 255,
						float32(colors[i][2]) / 255,
						float32(colors[i][3]) / 255,
					}
				}
				mesh.Colors = append(mesh.Colors, c)
			}
			shifted := make([]uint32, len(indices))
			for i, idx := range indices {
				shifted[i] = idx + base
			}
			mesh.SetIndices(shifted, core.TopologyTriangles, len(mesh.Submeshes))
		}
	}
	if len(mesh.Submeshes) == 0 {
		return nil, ErrNoTriangles
	}
	if !hasColors {
		mesh.Colors = nil
	}
	mesh.RecalculateBounds()
	mesh.RecalculateNormals()
	return mesh, nil
}
