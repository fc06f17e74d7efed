package volume

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Hit is the first occupied cell met by a ray.
type Hit struct {
	T      float32
	Cell   [3]int
	Normal mgl32.Vec3
	Color  [4]float32
}

const maxMarchIterations = 10000

func safeInv(d float32) float32 {
	if math.Abs(float64(d)) < 1e-7 {
		if d >= 0 {
			d = 1e-7
		} else {
			d = -1e-7
		}
	}
	return 1 / d
}

// clipToGrid intersects the ray with the [0,R]³ box and narrows [tMin,tMax].
func (v *Volume) clipToGrid(origin, invDir mgl32.Vec3, tMin, tMax float32) (float32, float32, bool) {
	r := float32(v.Resolution)
	for i := 0; i < 3; i++ {
		t0 := (0 - origin[i]) * invDir[i]
		t1 := (r - origin[i]) * invDir[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tMin = max(tMin, t0)
		tMax = min(tMax, t1)
	}
	return tMin, tMax, tMin <= tMax
}

// RayMarch walks the grid cell by cell in voxel space ([0,R)³, one unit per
// cell) and returns the first cell with non-zero alpha.
func (v *Volume) RayMarch(origin, dir mgl32.Vec3, tMin, tMax float32) (Hit, bool) {
	if v.Empty() {
		return Hit{}, false
	}
	invDir := mgl32.Vec3{safeInv(dir.X()), safeInv(dir.Y()), safeInv(dir.Z())}
	tMin, tMax, ok := v.clipToGrid(origin, invDir, tMin, tMax)
	if !ok {
		return Hit{}, false
	}

	t := tMin
	for i := 0; t <= tMax && i < maxMarchIterations; i++ {
		p := origin.Add(dir.Mul(t + 1e-4))
		cx := int(math.Floor(float64(p.X())))
		cy := int(math.Floor(float64(p.Y())))
		cz := int(math.Floor(float64(p.Z())))

		if c := v.At(cx, cy, cz); v.Contains(cx, cy, cz) && c[3] != 0 {
			return Hit{
				T:      t,
				Cell:   [3]int{cx, cy, cz},
				Normal: cellNormal(origin.Add(dir.Mul(t)), cx, cy, cz),
				Color:  c,
			}, true
		}
		t += max(stepToNext(p, dir, invDir), 0.001)
	}
	return Hit{}, false
}

// RayMarchUnit marches a ray given in the unit cube the volume spans.
// The returned T is the parameter along dir.
func (v *Volume) RayMarchUnit(origin, dir mgl32.Vec3) (Hit, bool) {
	if v.Empty() {
		return Hit{}, false
	}
	r := float32(v.Resolution)
	h, ok := v.RayMarch(origin.Mul(r), dir, 0, float32(math.Inf(1)))
	if ok {
		h.T /= r
	}
	return h, ok
}

// cellNormal picks the face of the cell the hit point lies closest to.
func cellNormal(pHit mgl32.Vec3, cx, cy, cz int) mgl32.Vec3 {
	center := mgl32.Vec3{float32(cx) + 0.5, float32(cy) + 0.5, float32(cz) + 0.5}
	local := pHit.Sub(center)
	axis := 0
	for i := 1; i < 3; i++ {
		if math.Abs(float64(local[i])) > math.Abs(float64(local[axis])) {
			axis = i
		}
	}
	var n mgl32.Vec3
	if local[axis] > 0 {
		n[axis] = 1
	} else {
		n[axis] = -1
	}
	return n
}

func stepToNext(p, dir, invDir mgl32.Vec3) float32 {
	res := float32(1e10)
	for i := 0; i < 3; i++ {
		if dir[i] == 0 {
			continue
		}
		var dist float32
		if dir[i] > 0 {
			dist = float32(math.Floor(float64(p[i])+1e-6)) + 1 - p[i]
		} else {
			dist = float32(math.Floor(float64(p[i])-1e-6)) - p[i]
		}
		if tVal := dist * invDir[i]; tVal > 1e-6 && tVal < res {
			res = tVal
		}
	}
	if res < 1e10 {
		return res + 1e-4
	}
	return res
}
