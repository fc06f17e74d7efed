// Package raster is a CPU implementation of the voxelising program. It
// rasterizes each swizzled pass into a square R×R viewport and scatter-writes
// every fragment straight into a shared cell buffer.
package raster

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

var ErrTargetReleased = errors.New("raster target released")

// trianglesPerTask is the unit of work handed to one worker.
const trianglesPerTask = 64

// depthSlack tolerates transform rounding at the near and far planes.
const depthSlack = 1e-5

// Fragment is one covered pixel of one pass.
type Fragment struct {
	// Cell is the grid cell after un-swizzling.
	Cell [3]int
	// Position is the interpolated unit-cube position in grid axes.
	Position mgl32.Vec3
	// Color is the interpolated vertex color, opaque white without colors.
	Color   mgl32.Vec4
	Swizzle core.Swizzle
}

// FragmentShader returns the value stored at the fragment's cell.
type FragmentShader func(f Fragment) [4]float32

// VertexColor writes the interpolated vertex color. Alpha carries occupancy.
func VertexColor(f Fragment) [4]float32 {
	return [4]float32(f.Color)
}

// Occupancy writes opaque white for every fragment.
func Occupancy(Fragment) [4]float32 {
	return [4]float32{1, 1, 1, 1}
}

// Program rasterizes on the CPU with a bounded worker pool.
type Program struct {
	Workers int
	Shader  FragmentShader
}

func New(workers int) *Program {
	return &Program{Workers: workers, Shader: VertexColor}
}

func (p *Program) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (p *Program) shader() FragmentShader {
	if p.Shader != nil {
		return p.Shader
	}
	return VertexColor
}

func (p *Program) NewTarget(resolution int) (core.Target, error) {
	buf, err := volume.NewScatterBuffer(resolution)
	if err != nil {
		return nil, err
	}
	return &target{prog: p, buf: buf}, nil
}

type target struct {
	prog *Program

	mu  sync.Mutex
	buf *volume.ScatterBuffer
}

func (t *target) buffer() (*volume.ScatterBuffer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf == nil {
		return nil, ErrTargetReleased
	}
	return t.buf, nil
}

// screenVertex is a vertex after the unit-cube transform and swizzle, in
// pixel units (x right, y up) with depth in [0,1].
type screenVertex struct {
	x, y, depth float32
	unit        mgl32.Vec3
	color       mgl32.Vec4
}

func (t *target) Rasterize(mesh *core.Mesh, submesh int, params core.Params) error {
	buf, err := t.buffer()
	if err != nil {
		return err
	}
	if params.Resolution != buf.Resolution {
		return fmt.Errorf("rasterize: params resolution %d, target resolution %d", params.Resolution, buf.Resolution)
	}
	if mesh == nil {
		return errors.New("rasterize: nil mesh")
	}
	tris := mesh.Triangles(submesh)
	if len(tris) == 0 {
		return nil
	}

	res := float32(params.Resolution)
	verts := make([]screenVertex, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		unit := params.Transform.Mul4x1(v.Vec4(1)).Vec3()
		s := params.Swizzle.Apply(unit)
		sv := screenVertex{x: s.X() * res, y: s.Y() * res, depth: s.Z(), unit: unit, color: mgl32.Vec4{1, 1, 1, 1}}
		if i < len(mesh.Colors) {
			sv.color = mesh.Colors[i]
		}
		verts[i] = sv
	}

	shade := t.prog.shader()
	var g errgroup.Group
	g.SetLimit(t.prog.workers())
	for start := 0; start < len(tris); start += trianglesPerTask {
		chunk := tris[start:min(start+trianglesPerTask, len(tris))]
		g.Go(func() error {
			for _, tri := range chunk {
				rasterizeTriangle(buf, params, shade, verts[tri[0]], verts[tri[1]], verts[tri[2]])
			}
			return nil
		})
	}
	return g.Wait()
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// rasterizeTriangle samples pixel centers inside the triangle. Pixels on an
// edge count as covered; triangles seen edge-on produce nothing.
func rasterizeTriangle(buf *volume.ScatterBuffer, params core.Params, shade FragmentShader, a, b, c screenVertex) {
	area := edge(a.x, a.y, b.x, b.y, c.x, c.y)
	if math.Abs(float64(area)) < 1e-9 {
		return
	}
	r := params.Resolution
	x0 := max(0, int(math.Floor(float64(min(a.x, b.x, c.x)))))
	x1 := min(r-1, int(math.Ceil(float64(max(a.x, b.x, c.x)))))
	y0 := max(0, int(math.Floor(float64(min(a.y, b.y, c.y)))))
	y1 := min(r-1, int(math.Ceil(float64(max(a.y, b.y, c.y)))))

	const eps = -1e-5
	inv := 1 / area
	flat := a.color == b.color && a.color == c.color
	for py := y0; py <= y1; py++ {
		cy := float32(py) + 0.5
		for px := x0; px <= x1; px++ {
			cx := float32(px) + 0.5
			w0 := edge(b.x, b.y, c.x, c.y, cx, cy) * inv
			w1 := edge(c.x, c.y, a.x, a.y, cx, cy) * inv
			w2 := edge(a.x, a.y, b.x, b.y, cx, cy) * inv
			if w0 < eps || w1 < eps || w2 < eps {
				continue
			}
			depth := w0*a.depth + w1*b.depth + w2*c.depth
			if depth < -depthSlack || depth > 1+depthSlack {
				continue
			}
			dz := min(max(int(math.Floor(float64(depth)*float64(r))), 0), r-1)
			cell := params.Swizzle.ApplyCell([3]int{px, py, dz})

			frag := Fragment{
				Cell:     cell,
				Position: a.unit.Mul(w0).Add(b.unit.Mul(w1)).Add(c.unit.Mul(w2)),
				Color:    a.color,
				Swizzle:  params.Swizzle,
			}
			// flat triangles keep their color exactly
			if !flat {
				frag.Color = a.color.Mul(w0).Add(b.color.Mul(w1)).Add(c.color.Mul(w2))
			}
			buf.Write(core.CellIndex(cell[0], cell[1], cell[2], r), shade(frag))
		}
	}
}

func (t *target) Readback() ([][4]float32, error) {
	buf, err := t.buffer()
	if err != nil {
		return nil, err
	}
	return buf.Snapshot(), nil
}

func (t *target) Release() {
	t.mu.Lock()
	t.buf = nil
	t.mu.Unlock()
}
