package volume

import (
	"errors"
	"fmt"
)

var (
	ErrCellCount       = errors.New("cell count does not match resolution³")
	ErrResolutionRange = fmt.Errorf("volume resolution must be in [1, %d]", MaxResolution)
)

// MaxResolution bounds volumes read from files: 256³ tiles to a 4096² image.
const MaxResolution = 256

// CheckResolution rejects resolutions a loader must not allocate for.
func CheckResolution(resolution int) error {
	if resolution < 1 || resolution > MaxResolution {
		return fmt.Errorf("resolution %d: %w", resolution, ErrResolutionRange)
	}
	return nil
}

// PixBytes is the size of the float32 pixel data for a resolution, or
// false when it is out of range.
func PixBytes(resolution int) (int, bool) {
	if CheckResolution(resolution) != nil {
		return 0, false
	}
	side := NewTiling(resolution).Side()
	return side * side * 4 * 4, true
}

// Volume is an R×R×R grid of RGBA samples stored as a tiled 2D image.
// Channel values are whatever the fragment stage wrote; nothing is
// normalised.
type Volume struct {
	Tiling
	// Pix holds 4 floats per pixel, rows of Side() pixels, top row first.
	Pix []float32
	// SourceFingerprint identifies the mesh the volume was produced from;
	// zero when unknown.
	SourceFingerprint uint64
}

func New(resolution int) *Volume {
	t := NewTiling(resolution)
	side := t.Side()
	return &Volume{Tiling: t, Pix: make([]float32, side*side*4)}
}

// Width of the tiled image; zero for an empty volume.
func (v *Volume) Width() int {
	if v == nil {
		return 0
	}
	return v.Side()
}

func (v *Volume) Empty() bool {
	return v == nil || v.Resolution < 1 || len(v.Pix) == 0
}

func (v *Volume) pixOffset(px, py int) int {
	return (py*v.Side() + px) * 4
}

func (v *Volume) At(x, y, z int) [4]float32 {
	var c [4]float32
	if !v.Contains(x, y, z) {
		return c
	}
	px, py := v.Pixel(x, y, z)
	o := v.pixOffset(px, py)
	copy(c[:], v.Pix[o:o+4])
	return c
}

func (v *Volume) Set(x, y, z int, c [4]float32) {
	if !v.Contains(x, y, z) {
		return
	}
	px, py := v.Pixel(x, y, z)
	o := v.pixOffset(px, py)
	copy(v.Pix[o:o+4], c[:])
}

// Occupied reports a non-zero alpha.
func (v *Volume) Occupied(x, y, z int) bool {
	return v.At(x, y, z)[3] != 0
}

// OccupiedCount counts cells with non-zero alpha.
func (v *Volume) OccupiedCount() int {
	n := 0
	r := v.Resolution
	for z := 0; z < r; z++ {
		for y := 0; y < r; y++ {
			for x := 0; x < r; x++ {
				if v.Occupied(x, y, z) {
					n++
				}
			}
		}
	}
	return n
}

// Pack repacks linearly indexed cells (x + y*R + z*R²) into the tiled layout.
func Pack(resolution int, cells [][4]float32) (*Volume, error) {
	if resolution < 1 {
		return nil, fmt.Errorf("pack: resolution %d: must be at least 1", resolution)
	}
	v := New(resolution)
	if len(cells) != v.Cells() {
		return nil, fmt.Errorf("pack: %d cells for resolution %d: %w", len(cells), resolution, ErrCellCount)
	}
	for i, c := range cells {
		x, y, z := v.Coord(i)
		v.Set(x, y, z, c)
	}
	return v, nil
}

// Unpack returns the cells in linear scatter order.
func (v *Volume) Unpack() [][4]float32 {
	cells := make([][4]float32, v.Cells())
	for i := range cells {
		x, y, z := v.Coord(i)
		cells[i] = v.At(x, y, z)
	}
	return cells
}
