package scenes

import (
	"fmt"

	"github.com/gekko3d/gallery/galleryrt/rt/core"
	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
	"github.com/gekko3d/gallery/galleryrt/rt/shaders"
)

const gridUniformSize = 64 + 16 + 16

// Grid draws a ground grid procedurally from its uniform and flies the
// camera with the w/a/s/d key tunables.
type Grid struct {
	base
	camera *core.Camera
	gen    *gridGen
}

type gridGen struct {
	uniform  gpu.Buffer
	module   gpu.ShaderModule
	pipeline gpu.RenderPipeline
	group    gpu.BindGroup
	builder  *gpu.Builder
}

func (g *gridGen) release() {
	if g == nil {
		return
	}
	releaseAll(g.group, g.pipeline, g.module)
	if g.builder != nil {
		g.builder.Discard()
	}
}

func NewGrid(d Deps) *Grid {
	g := &Grid{camera: core.NewCamera()}
	g.camera.Pitch = -0.35
	g.base = newBase("Grid", d, g.frame)
	for _, k := range []string{"w", "a", "s", "d"} {
		g.panel.AddKey(k, k)
	}
	g.panel.AddNumber("half_lines", "Lines per side", 20, 1, 200)
	g.panel.AddSlider("spacing", "Spacing", 0.5, 0.05, 5, 0.05)
	g.panel.AddColor("color", "Line color", [4]float32{0.8, 0.8, 0.85, 1})
	g.panel.AddColor("bg_color", "Background color", [4]float32{0.05, 0.05, 0.08, 1})
	return g
}

func (g *Grid) Camera() *core.Camera {
	return g.camera
}

func (g *Grid) Build() error {
	if err := g.CheckUsable(); err != nil {
		return err
	}
	g.gen.release()
	g.gen = nil

	gen, err := g.create()
	if err != nil {
		gen.release()
		err = fmt.Errorf("grid build: %w", err)
	} else {
		g.gen = gen
	}
	g.finishBuild(err)
	return err
}

func (g *Grid) create() (*gridGen, error) {
	gen := &gridGen{builder: gpu.NewBuilder(g.device, "Grid")}
	var err error

	if gen.uniform, err = gen.builder.CreateBuffer("Uniform", g.uniformBytes(), gpu.BufferUsageUniform); err != nil {
		return gen, err
	}
	if gen.module, err = g.device.CreateShaderModule("Grid shader", shaders.GridWGSL); err != nil {
		return gen, err
	}
	if gen.pipeline, err = g.device.CreateRenderPipeline(gpu.RenderPipelineDescriptor{
		Label:         "Grid render pipeline",
		Module:        gen.module,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		TargetFormat:  g.surface.Format(),
		AlphaBlend:    true,
		Topology:      gpu.TopologyLineList,
	}); err != nil {
		return gen, err
	}
	if gen.group, err = gen.builder.Finalize(gen.pipeline); err != nil {
		return gen, err
	}
	return gen, nil
}

func (g *Grid) uniformBytes() []byte {
	u := gpu.NewUniform(gridUniformSize)
	u.PutMat4(0, g.camera.ViewProj(g.aspect())).
		PutVec4(64, g.panel.Get("color").Color()).
		PutFloat(80, g.panel.Get("spacing").Float()).
		PutUint(84, uint32(g.panel.Get("half_lines").Int()))
	return u.Bytes()
}

// GridVertexCount is two vertices for each of the 2n+1 lines on both axes.
func GridVertexCount(halfLines int) uint32 {
	return uint32(2 * (2*halfLines + 1) * 2)
}

func (g *Grid) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	g.width, g.height = width, height
}

func (g *Grid) steer() {
	key := func(name string) float32 {
		if g.panel.Get(name).Bool() {
			return 1
		}
		return 0
	}
	g.camera.Move(key("w")-key("s"), key("d")-key("a"), frameStep)
}

func (g *Grid) frame() {
	gen := g.gen
	if gen == nil {
		return
	}
	g.steer()
	if err := g.device.Queue().WriteBuffer(gen.uniform, 0, g.uniformBytes()); err != nil {
		g.log.Errorf("Grid uniform write failed: %v", err)
		return
	}
	count := GridVertexCount(g.panel.Get("half_lines").Int())
	g.present(gpu.ColorFromRGBA(g.panel.Get("bg_color").Color()), nil, func(rp gpu.RenderPass) {
		rp.SetPipeline(gen.pipeline)
		rp.SetBindGroup(0, gen.group)
		rp.Draw(count, 1)
	})
}

func (g *Grid) Dispose() {
	g.dispose(func() {
		g.gen.release()
		g.gen = nil
	})
}
