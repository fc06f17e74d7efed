package volume

import "math"

// Tiling lays R slices of R×R voxels out on an M×M grid of tiles in one
// square 2D image of side R*M. Slice z lives in tile (z mod M, z div M).
type Tiling struct {
	Resolution int
	MetaRes    int
}

// MetaResolution is the number of tiles per image row and column for a
// resolution: ceil(sqrt(r)). For perfect squares this equals floor(sqrt(r)).
func MetaResolution(resolution int) int {
	if resolution < 1 {
		return 0
	}
	m := int(math.Sqrt(float64(resolution)))
	for m*m > resolution {
		m--
	}
	if m*m < resolution {
		m++
	}
	return m
}

func NewTiling(resolution int) Tiling {
	return Tiling{Resolution: resolution, MetaRes: MetaResolution(resolution)}
}

// Side is the width and height of the tiled image in pixels.
func (t Tiling) Side() int {
	return t.Resolution * t.MetaRes
}

// Cells is R³.
func (t Tiling) Cells() int {
	return t.Resolution * t.Resolution * t.Resolution
}

// Index is the linear scatter index of a voxel.
func (t Tiling) Index(x, y, z int) int {
	r := t.Resolution
	return x + y*r + z*r*r
}

// Coord inverts Index.
func (t Tiling) Coord(index int) (x, y, z int) {
	r := t.Resolution
	x = index % r
	y = (index / r) % r
	z = index / (r * r)
	return x, y, z
}

// Pixel is the tiled-image position of a voxel.
func (t Tiling) Pixel(x, y, z int) (px, py int) {
	r, m := t.Resolution, t.MetaRes
	return (z%m)*r + x, (z/m)*r + y
}

// Voxel inverts Pixel. ok is false for pixels outside the image and for
// padding tiles past the last slice.
func (t Tiling) Voxel(px, py int) (x, y, z int, ok bool) {
	side := t.Side()
	if px < 0 || py < 0 || px >= side || py >= side {
		return 0, 0, 0, false
	}
	r, m := t.Resolution, t.MetaRes
	z = (py/r)*m + px/r
	if z >= r {
		return 0, 0, 0, false
	}
	return px % r, py % r, z, true
}

// Contains reports whether (x,y,z) lies inside the R³ grid.
func (t Tiling) Contains(x, y, z int) bool {
	r := t.Resolution
	return x >= 0 && y >= 0 && z >= 0 && x < r && y < r && z < r
}
