package scenes

import (
	"fmt"

	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
	"github.com/gekko3d/gallery/galleryrt/rt/panel"
	"github.com/gekko3d/gallery/galleryrt/rt/shaders"
)

var triangleVertices = []float32{
	0.0, 0.6,
	-0.5, -0.6,
	0.5, -0.6,
}

// Triangle draws one flat colored triangle from a vertex buffer.
type Triangle struct {
	base
	gen *triangleGen
}

type triangleGen struct {
	vertices gpu.Buffer
	style    gpu.Buffer
	module   gpu.ShaderModule
	pipeline gpu.RenderPipeline
	group    gpu.BindGroup
	builder  *gpu.Builder
}

func (g *triangleGen) release() {
	if g == nil {
		return
	}
	releaseAll(g.group, g.pipeline, g.module, g.vertices)
	if g.builder != nil {
		g.builder.Discard()
	}
}

func NewTriangle(d Deps) *Triangle {
	t := &Triangle{}
	t.base = newBase("Triangle", d, t.frame)
	t.panel.AddColor("color", "Triangle color", [4]float32{1, 0.3, 0.2, 1})
	t.panel.AddColor("bg_color", "Background color", [4]float32{0, 0.5, 1, 1})
	t.listen("color", func(v panel.Value) {
		if t.gen == nil {
			return
		}
		if err := t.device.Queue().WriteBuffer(t.gen.style, 0, gpu.Float32sToBytes(v.Color[:])); err != nil {
			t.log.Errorf("Triangle color write failed: %v", err)
		}
	})
	return t
}

func (t *Triangle) Build() error {
	if err := t.CheckUsable(); err != nil {
		return err
	}
	t.gen.release()
	t.gen = nil

	g, err := t.create()
	if err != nil {
		g.release()
		err = fmt.Errorf("triangle build: %w", err)
	} else {
		t.gen = g
	}
	t.finishBuild(err)
	return err
}

func (t *Triangle) create() (*triangleGen, error) {
	g := &triangleGen{builder: gpu.NewBuilder(t.device, "Triangle")}
	var err error

	// The vertex buffer is not bindable so it bypasses the builder.
	if g.vertices, err = gpu.NewBufferInit(t.device, "Triangle:Vertices", gpu.Float32sToBytes(triangleVertices), gpu.BufferUsageVertex); err != nil {
		return g, err
	}
	color := t.panel.Get("color").Color()
	if g.style, err = g.builder.CreateBuffer("Style", gpu.Float32sToBytes(color[:]), gpu.BufferUsageUniform); err != nil {
		return g, err
	}
	if g.module, err = t.device.CreateShaderModule("Triangle shader", shaders.TriangleWGSL); err != nil {
		return g, err
	}
	if g.pipeline, err = t.device.CreateRenderPipeline(gpu.RenderPipelineDescriptor{
		Label:         "Triangle render pipeline",
		Module:        g.module,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		Buffers: []gpu.VertexBufferLayout{{
			ArrayStride: 8,
			StepMode:    gpu.StepVertex,
			Attributes:  []gpu.VertexAttribute{{Format: gpu.VertexFormatFloat32x2, Location: 0}},
		}},
		TargetFormat: t.surface.Format(),
		Topology:     gpu.TopologyTriangleList,
	}); err != nil {
		return g, err
	}
	if g.group, err = g.builder.Finalize(g.pipeline); err != nil {
		return g, err
	}
	return g, nil
}

func (t *Triangle) frame() {
	g := t.gen
	if g == nil {
		return
	}
	t.present(gpu.ColorFromRGBA(t.panel.Get("bg_color").Color()), nil, func(rp gpu.RenderPass) {
		rp.SetPipeline(g.pipeline)
		rp.SetBindGroup(0, g.group)
		rp.SetVertexBuffer(0, g.vertices)
		rp.Draw(3, 1)
	})
}

func (t *Triangle) Dispose() {
	t.dispose(func() {
		t.gen.release()
		t.gen = nil
	})
}
