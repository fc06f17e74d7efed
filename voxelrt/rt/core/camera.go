package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraState is an orbit camera circling Target at Distance. Y is up.
type CameraState struct {
	Target      mgl32.Vec3
	Distance    float32
	Yaw         float32
	Pitch       float32
	FovY        float32 // radians
	Near, Far   float32
	Sensitivity float32
	ZoomStep    float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Distance:    3,
		Pitch:       0.4,
		Yaw:         0.6,
		FovY:        mgl32.DegToRad(60),
		Near:        0.01,
		Far:         1000,
		Sensitivity: 0.005,
		ZoomStep:    0.1,
	}
}

// Frame points the camera at b from a distance that fits it in view.
func (c *CameraState) Frame(b Bounds) {
	c.Target = b.Center()
	radius := b.Size().Len() * 0.5
	if radius <= 0 {
		radius = 1
	}
	c.Distance = radius / float32(math.Sin(float64(c.FovY)*0.5))
	c.Far = c.Distance + radius*4
	c.Near = c.Distance * 0.001
}

// Rotate applies a mouse delta in pixels.
func (c *CameraState) Rotate(dx, dy float32) {
	c.Yaw += dx * c.Sensitivity
	c.Pitch += dy * c.Sensitivity
	limit := float32(math.Pi/2 - 0.01)
	c.Pitch = mgl32.Clamp(c.Pitch, -limit, limit)
}

// Zoom scales the orbit distance; positive steps move closer.
func (c *CameraState) Zoom(steps float32) {
	c.Distance *= float32(math.Pow(float64(1-c.ZoomStep), float64(steps)))
}

func (c *CameraState) Position() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	dir := mgl32.Vec3{
		cp * float32(math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		cp * float32(math.Cos(float64(c.Yaw))),
	}
	return c.Target.Add(dir.Mul(c.Distance))
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Target, mgl32.Vec3{0, 1, 0})
}

func (c *CameraState) GetProjectionMatrix(aspect float32) mgl32.Mat4 {
	if aspect == 0 {
		aspect = 1
	}
	return mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
}

// ScreenRay is the world-space ray through window pixel (x, y), y down.
// dir is normalised.
func (c *CameraState) ScreenRay(x, y float64, width, height int) (origin, dir mgl32.Vec3) {
	if width <= 0 || height <= 0 {
		return c.Position(), c.Target.Sub(c.Position()).Normalize()
	}
	ndcX := float32(2*x/float64(width) - 1)
	ndcY := float32(1 - 2*y/float64(height))
	vp := c.GetProjectionMatrix(float32(width) / float32(height)).Mul4(c.GetViewMatrix())
	inv := vp.Inv()
	far := mgl32.TransformCoordinate(mgl32.Vec3{ndcX, ndcY, 1}, inv)
	origin = c.Position()
	return origin, far.Sub(origin).Normalize()
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0.
func (c *CameraState) ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4

	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes[0] = r3.Add(r0) // left
	planes[1] = r3.Sub(r0) // right
	planes[2] = r3.Add(r1) // bottom
	planes[3] = r3.Sub(r1) // top
	planes[4] = r3.Add(r2) // near (OpenGL-style -1..1)
	planes[5] = r3.Sub(r2) // far

	for i := 0; i < 6; i++ {
		length := mgl32.Vec3{planes[i][0], planes[i][1], planes[i][2]}.Len()
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}

	return planes
}
