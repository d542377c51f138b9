package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a Y-up fly camera shared by the cube and grid scenes.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
	Speed    float32
	FovY     float32 // degrees
	Near     float32
	Far      float32
}

func NewCamera() *Camera {
	return &Camera{
		Position: mgl32.Vec3{0, 1.5, 4},
		Speed:    2.0,
		FovY:     60,
		Near:     0.1,
		Far:      100,
	}
}

func (c *Camera) Forward() mgl32.Vec3 {
	cp := math.Cos(float64(c.Pitch))
	return mgl32.Vec3{
		float32(cp * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-cp * math.Cos(float64(c.Yaw))),
	}
}

func (c *Camera) Right() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Yaw))),
		0,
		float32(math.Sin(float64(c.Yaw))),
	}
}

func (c *Camera) View() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
}

// Projection uses a 0..1 depth range as WebGPU expects.
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	p := mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
	// remap z from [-1,1] to [0,1]
	clip := mgl32.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
	return clip.Mul4(p)
}

func (c *Camera) ViewProj(aspect float32) mgl32.Mat4 {
	return c.Projection(aspect).Mul4(c.View())
}

// Move translates along the ground plane. forward and right are -1..1.
func (c *Camera) Move(forward, right, dt float32) {
	f := c.Forward()
	f[1] = 0
	if f.Len() > 0 {
		f = f.Normalize()
	}
	step := f.Mul(forward).Add(c.Right().Mul(right))
	if step.Len() == 0 {
		return
	}
	c.Position = c.Position.Add(step.Normalize().Mul(c.Speed * dt))
}
