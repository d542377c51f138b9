package scenes

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/gallery/galleryrt/rt/core"
	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
	"github.com/gekko3d/gallery/galleryrt/rt/panel"
	"github.com/gekko3d/gallery/galleryrt/rt/shaders"
)

const cubeVertexCount = 36

var cubeAxis = mgl32.Vec3{1, 1, 0}.Normalize()

// Cube spins a vertex-colored cube. Vertices are pulled from a storage
// buffer; the MVP uniform is rewritten every frame.
type Cube struct {
	base
	camera *core.Camera
	angle  float32
	gen    *cubeGen
}

type cubeGen struct {
	uniform  gpu.Buffer
	vertices gpu.Buffer
	module   gpu.ShaderModule
	pipeline gpu.RenderPipeline
	group    gpu.BindGroup
	builder  *gpu.Builder

	depth     gpu.Texture
	depthView gpu.TextureView
}

func (g *cubeGen) release() {
	if g == nil {
		return
	}
	releaseAll(g.group, g.pipeline, g.module)
	g.releaseDepth()
	if g.builder != nil {
		g.builder.Discard()
	}
}

func (g *cubeGen) releaseDepth() {
	releaseAll(g.depthView, g.depth)
	g.depthView, g.depth = nil, nil
}

func NewCube(d Deps) *Cube {
	c := &Cube{camera: core.NewCamera()}
	c.camera.Position = mgl32.Vec3{0, 0, 4}
	c.base = newBase("Cube", d, c.frame)
	c.panel.AddSlider("speed", "Rotation speed", 1, 0, 5, 0.1)
	c.panel.AddSlider("fov", "Field of view", 60, 20, 120, 1)
	c.panel.AddColor("bg_color", "Background color", [4]float32{0.1, 0.1, 0.12, 1})
	c.listen("fov", func(v panel.Value) { c.camera.FovY = v.Float })
	return c
}

func (c *Cube) Build() error {
	if err := c.CheckUsable(); err != nil {
		return err
	}
	if c.width == 0 || c.height == 0 {
		return fmt.Errorf("cube build: surface is %dx%d", c.width, c.height)
	}
	c.gen.release()
	c.gen = nil

	g, err := c.create()
	if err != nil {
		g.release()
		err = fmt.Errorf("cube build: %w", err)
	} else {
		c.gen = g
	}
	c.finishBuild(err)
	return err
}

func (c *Cube) create() (*cubeGen, error) {
	g := &cubeGen{builder: gpu.NewBuilder(c.device, "Cube")}
	var err error

	if g.uniform, err = g.builder.CreateBuffer("MVP", gpu.Mat4ToBytes(c.mvp()), gpu.BufferUsageUniform); err != nil {
		return g, err
	}
	if g.vertices, err = g.builder.CreateBuffer("Vertices", gpu.Float32sToBytes(CubeVertices()), gpu.BufferUsageStorage); err != nil {
		return g, err
	}
	if err = c.createDepth(g); err != nil {
		return g, err
	}
	if g.module, err = c.device.CreateShaderModule("Cube shader", shaders.CubeWGSL); err != nil {
		return g, err
	}
	if g.pipeline, err = c.device.CreateRenderPipeline(gpu.RenderPipelineDescriptor{
		Label:          "Cube render pipeline",
		Module:         g.module,
		VertexEntry:    "vs_main",
		FragmentEntry:  "fs_main",
		TargetFormat:   c.surface.Format(),
		Topology:       gpu.TopologyTriangleList,
		DepthFormat:    gpu.TextureFormatDepth24Plus,
		DepthWriteTest: true,
	}); err != nil {
		return g, err
	}
	if g.group, err = g.builder.Finalize(g.pipeline); err != nil {
		return g, err
	}
	return g, nil
}

func (c *Cube) createDepth(g *cubeGen) error {
	tex, err := c.device.CreateTexture(gpu.TextureDescriptor{
		Label:  "Cube depth",
		Width:  c.width,
		Height: c.height,
		Format: gpu.TextureFormatDepth24Plus,
		Usage:  gpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}
	view, err := tex.CreateView()
	if err != nil {
		tex.Release()
		return err
	}
	g.depth, g.depthView = tex, view
	return nil
}

// Resize recreates the depth attachment at the new size.
func (c *Cube) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.width, c.height = width, height
	if c.gen == nil {
		return
	}
	c.gen.releaseDepth()
	if err := c.createDepth(c.gen); err != nil {
		c.log.Errorf("Cube depth texture: %v", err)
		c.gen.release()
		c.gen = nil
		c.Reset()
	}
}

func (c *Cube) mvp() mgl32.Mat4 {
	model := mgl32.HomogRotate3D(c.angle, cubeAxis)
	return c.camera.ViewProj(c.aspect()).Mul4(model)
}

// Angle is the current rotation in radians.
func (c *Cube) Angle() float32 {
	return c.angle
}

func (c *Cube) frame() {
	g := c.gen
	if g == nil {
		return
	}
	c.angle += c.panel.Get("speed").Float() * frameStep
	if err := c.device.Queue().WriteBuffer(g.uniform, 0, gpu.Mat4ToBytes(c.mvp())); err != nil {
		c.log.Errorf("Cube MVP write failed: %v", err)
		return
	}
	c.present(gpu.ColorFromRGBA(c.panel.Get("bg_color").Color()), g.depthView, func(rp gpu.RenderPass) {
		rp.SetPipeline(g.pipeline)
		rp.SetBindGroup(0, g.group)
		rp.Draw(cubeVertexCount, 1)
	})
}

func (c *Cube) Dispose() {
	c.dispose(func() {
		c.gen.release()
		c.gen = nil
	})
}

// CubeVertices returns 36 vertices of a unit cube as (position vec4,
// color vec4) pairs, two counter-clockwise triangles per face.
func CubeVertices() []float32 {
	faces := []struct {
		corners [4]mgl32.Vec3
		color   mgl32.Vec4
	}{
		{[4]mgl32.Vec3{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}}, mgl32.Vec4{1, 0, 0, 1}},
		{[4]mgl32.Vec3{{1, -1, -1}, {-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}}, mgl32.Vec4{0, 1, 0, 1}},
		{[4]mgl32.Vec3{{1, -1, 1}, {1, -1, -1}, {1, 1, -1}, {1, 1, 1}}, mgl32.Vec4{0, 0, 1, 1}},
		{[4]mgl32.Vec3{{-1, -1, -1}, {-1, -1, 1}, {-1, 1, 1}, {-1, 1, -1}}, mgl32.Vec4{1, 1, 0, 1}},
		{[4]mgl32.Vec3{{-1, 1, 1}, {1, 1, 1}, {1, 1, -1}, {-1, 1, -1}}, mgl32.Vec4{1, 0, 1, 1}},
		{[4]mgl32.Vec3{{-1, -1, -1}, {1, -1, -1}, {1, -1, 1}, {-1, -1, 1}}, mgl32.Vec4{0, 1, 1, 1}},
	}
	out := make([]float32, 0, cubeVertexCount*8)
	for _, f := range faces {
		for _, i := range [6]int{0, 1, 2, 0, 2, 3} {
			p := f.corners[i].Mul(0.5)
			out = append(out, p[0], p[1], p[2], 1)
			out = append(out, f.color[:]...)
		}
	}
	return out
}
