// Package gputest is an in-memory gpu.Device for tests. Buffers keep their
// bytes, queue writes apply immediately, and compute dispatches run CPU
// kernels registered by pipeline label.
package gputest

import (
	"errors"
	"fmt"

	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
)

var ErrReleased = errors.New("gputest: resource used after release")

// Kernel emulates a compute shader. bindings holds the group 0 buffers in
// binding order; non-buffer slots are nil.
type Kernel func(groups [3]uint32, bindings []*Buffer)

// FailFunc decides whether a device call should fail. op is the method name
// (e.g. "CreateBuffer"), label the resource label.
type FailFunc func(op, label string) error

type Device struct {
	queue *Queue

	kernels map[string]Kernel
	fail    FailFunc

	liveBuffers    int
	liveBindGroups int
	liveTextures   int
	created        int

	// Dispatches and Draws are appended when a submitted command buffer executes.
	Dispatches []Dispatch
	Draws      []Draw
}

type Dispatch struct {
	Pipeline string
	Groups   [3]uint32
}

type Draw struct {
	Pipeline      string
	VertexCount   uint32
	InstanceCount uint32
	VertexBuffers map[uint32]*Buffer
	ClearColor    gpu.Color
}

func NewDevice() *Device {
	d := &Device{kernels: map[string]Kernel{}}
	d.queue = &Queue{device: d}
	return d
}

// RegisterKernel runs k whenever a pipeline with the given label is dispatched.
func (d *Device) RegisterKernel(pipelineLabel string, k Kernel) {
	d.kernels[pipelineLabel] = k
}

// FailWith installs a failure hook; nil clears it.
func (d *Device) FailWith(f FailFunc) {
	d.fail = f
}

func (d *Device) LiveBuffers() int    { return d.liveBuffers }
func (d *Device) LiveBindGroups() int { return d.liveBindGroups }
func (d *Device) LiveTextures() int   { return d.liveTextures }

// BuffersCreated counts every buffer ever created, released or not.
func (d *Device) BuffersCreated() int { return d.created }

// Submissions returns the number of command buffers submitted so far.
func (d *Device) Submissions() int { return d.queue.submitted }

func (d *Device) Queue() gpu.Queue { return d.queue }

func (d *Device) check(op, label string) error {
	if d.fail == nil {
		return nil
	}
	if err := d.fail(op, label); err != nil {
		return fmt.Errorf("%s %q: %w", op, label, err)
	}
	return nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	if err := d.check("CreateBuffer", desc.Label); err != nil {
		return nil, err
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("gputest: buffer %q has zero size", desc.Label)
	}
	d.liveBuffers++
	d.created++
	return &Buffer{
		device: d,
		label:  desc.Label,
		usage:  desc.Usage,
		data:   make([]byte, desc.Size),
	}, nil
}

func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	if err := d.check("CreateTexture", desc.Label); err != nil {
		return nil, err
	}
	d.liveTextures++
	return &Texture{device: d, Label: desc.Label, width: desc.Width, height: desc.Height, Format: desc.Format}, nil
}

func (d *Device) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	if err := d.check("CreateSampler", desc.Label); err != nil {
		return nil, err
	}
	return &Sampler{Label: desc.Label}, nil
}

func (d *Device) CreateShaderModule(label string, code string) (gpu.ShaderModule, error) {
	if err := d.check("CreateShaderModule", label); err != nil {
		return nil, err
	}
	return &ShaderModule{Label: label, Code: code}, nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	if err := d.check("CreateComputePipeline", desc.Label); err != nil {
		return nil, err
	}
	return &ComputePipeline{pipeline: pipeline{label: desc.Label}}, nil
}

func (d *Device) CreateRenderPipeline(desc gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if err := d.check("CreateRenderPipeline", desc.Label); err != nil {
		return nil, err
	}
	return &RenderPipeline{pipeline: pipeline{label: desc.Label}, Desc: desc}, nil
}

func (d *Device) CreateBindGroup(desc gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	if err := d.check("CreateBindGroup", desc.Label); err != nil {
		return nil, err
	}
	bindings := make([]*Buffer, len(desc.Entries))
	for i, e := range desc.Entries {
		if int(e.Binding) != i {
			return nil, fmt.Errorf("gputest: bind group %q entry %d has binding %d", desc.Label, i, e.Binding)
		}
		if e.Buffer == nil {
			continue
		}
		buf := e.Buffer.(*Buffer)
		if buf.released {
			return nil, fmt.Errorf("gputest: bind group %q binding %d: %w", desc.Label, i, ErrReleased)
		}
		bindings[i] = buf
	}
	d.liveBindGroups++
	return &BindGroup{device: d, Label: desc.Label, Entries: desc.Entries, bindings: bindings}, nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	if err := d.check("CreateCommandEncoder", label); err != nil {
		return nil, err
	}
	return &CommandEncoder{device: d}, nil
}

type Queue struct {
	device    *Device
	submitted int
	// Writes counts WriteBuffer calls.
	Writes int
}

func (q *Queue) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b := buf.(*Buffer)
	if b.released {
		return fmt.Errorf("write %q: %w", b.label, ErrReleased)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("gputest: write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, b.label, len(b.data))
	}
	copy(b.data[offset:], data)
	b.Writes++
	q.Writes++
	return nil
}

func (q *Queue) WriteTexture(tex gpu.Texture, data []byte, layout gpu.TextureDataLayout) error {
	t := tex.(*Texture)
	if t.released {
		return fmt.Errorf("write texture %q: %w", t.Label, ErrReleased)
	}
	t.Data = append(t.Data[:0], data...)
	t.Layout = layout
	return nil
}

func (q *Queue) Submit(cmds ...gpu.CommandBuffer) {
	for _, c := range cmds {
		cb := c.(*CommandBuffer)
		for _, op := range cb.ops {
			op()
		}
		q.submitted++
	}
}

type Buffer struct {
	device   *Device
	label    string
	usage    gpu.BufferUsage
	data     []byte
	released bool
	// Writes counts queue writes into this buffer.
	Writes int
}

func (b *Buffer) Label() string          { return b.label }
func (b *Buffer) Size() uint64           { return uint64(len(b.data)) }
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }
func (b *Buffer) Released() bool         { return b.released }

// Bytes exposes the backing store; kernels mutate it directly.
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) Floats() []float32 { return gpu.BytesToFloat32s(b.data) }

func (b *Buffer) SetFloats(v []float32) { copy(b.data, gpu.Float32sToBytes(v)) }

func (b *Buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.device.liveBuffers--
}

type Texture struct {
	device        *Device
	Label         string
	Format        gpu.TextureFormat
	Data          []byte
	Layout        gpu.TextureDataLayout
	width, height uint32
	released      bool
}

func (t *Texture) CreateView() (gpu.TextureView, error) {
	if t.released {
		return nil, ErrReleased
	}
	return &TextureView{Texture: t}, nil
}

func (t *Texture) Width() uint32  { return t.width }
func (t *Texture) Height() uint32 { return t.height }

func (t *Texture) Release() {
	if t.released {
		return
	}
	t.released = true
	t.device.liveTextures--
}

type TextureView struct {
	Texture  *Texture
	Released bool
}

func (v *TextureView) Release() { v.Released = true }

type Sampler struct {
	Label    string
	Released bool
}

func (s *Sampler) Release() { s.Released = true }

type ShaderModule struct {
	Label    string
	Code     string
	Released bool
}

func (m *ShaderModule) Release() { m.Released = true }

type BindGroupLayout struct {
	Group uint32
}

func (*BindGroupLayout) Release() {}

type pipeline struct {
	label    string
	released bool
}

func (p *pipeline) Label() string  { return p.label }
func (p *pipeline) Released() bool { return p.released }

func (p *pipeline) BindGroupLayout(group uint32) (gpu.BindGroupLayout, error) {
	if p.released {
		return nil, ErrReleased
	}
	if group != 0 {
		return nil, fmt.Errorf("gputest: pipeline %q has no group %d", p.label, group)
	}
	return &BindGroupLayout{Group: group}, nil
}

func (p *pipeline) Release() { p.released = true }

type ComputePipeline struct {
	pipeline
	gpu.ComputeMarker
}

type RenderPipeline struct {
	pipeline
	gpu.RenderMarker
	Desc gpu.RenderPipelineDescriptor
}

type BindGroup struct {
	device   *Device
	Label    string
	Entries  []gpu.BindGroupEntry
	bindings []*Buffer
	released bool
}

func (g *BindGroup) Released() bool { return g.released }

// Buffer returns the buffer bound at slot, or nil.
func (g *BindGroup) Buffer(slot int) *Buffer {
	if slot < 0 || slot >= len(g.bindings) {
		return nil
	}
	return g.bindings[slot]
}

func (g *BindGroup) Release() {
	if g.released {
		return
	}
	g.released = true
	g.device.liveBindGroups--
}

type CommandBuffer struct {
	ops []func()
}

func (*CommandBuffer) Release() {}

type CommandEncoder struct {
	device   *Device
	ops      []func()
	finished bool
}

func (e *CommandEncoder) BeginComputePass(label string) gpu.ComputePass {
	return &ComputePass{enc: e}
}

func (e *CommandEncoder) BeginRenderPass(desc gpu.RenderPassDescriptor) gpu.RenderPass {
	return &RenderPass{enc: e, clear: desc.ClearColor, vertex: map[uint32]*Buffer{}}
}

func (e *CommandEncoder) Finish() (gpu.CommandBuffer, error) {
	if e.finished {
		return nil, errors.New("gputest: encoder already finished")
	}
	e.finished = true
	return &CommandBuffer{ops: e.ops}, nil
}

func (*CommandEncoder) Release() {}

type ComputePass struct {
	enc      *CommandEncoder
	pipeline *ComputePipeline
	group    *BindGroup
	err      error
}

func (p *ComputePass) SetPipeline(pl gpu.ComputePipeline) { p.pipeline = pl.(*ComputePipeline) }

func (p *ComputePass) SetBindGroup(group uint32, bg gpu.BindGroup) {
	if group != 0 {
		p.err = fmt.Errorf("gputest: only group 0 is supported, got %d", group)
		return
	}
	p.group = bg.(*BindGroup)
}

func (p *ComputePass) DispatchWorkgroups(x, y, z uint32) {
	if p.pipeline == nil || p.group == nil {
		p.err = errors.New("gputest: dispatch without pipeline or bind group")
		return
	}
	d := p.enc.device
	label := p.pipeline.label
	group := p.group
	groups := [3]uint32{x, y, z}
	p.enc.ops = append(p.enc.ops, func() {
		d.Dispatches = append(d.Dispatches, Dispatch{Pipeline: label, Groups: groups})
		if k, ok := d.kernels[label]; ok {
			k(groups, group.bindings)
		}
	})
}

func (p *ComputePass) End() error { return p.err }

type RenderPass struct {
	enc      *CommandEncoder
	pipeline *RenderPipeline
	clear    gpu.Color
	vertex   map[uint32]*Buffer
	err      error
}

func (p *RenderPass) SetPipeline(pl gpu.RenderPipeline) { p.pipeline = pl.(*RenderPipeline) }

func (p *RenderPass) SetBindGroup(group uint32, bg gpu.BindGroup) {
	if group != 0 {
		p.err = fmt.Errorf("gputest: only group 0 is supported, got %d", group)
	}
}

func (p *RenderPass) SetVertexBuffer(slot uint32, buf gpu.Buffer) {
	p.vertex[slot] = buf.(*Buffer)
}

func (p *RenderPass) Draw(vertexCount, instanceCount uint32) {
	if p.pipeline == nil {
		p.err = errors.New("gputest: draw without pipeline")
		return
	}
	d := p.enc.device
	draw := Draw{
		Pipeline:      p.pipeline.label,
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		VertexBuffers: make(map[uint32]*Buffer, len(p.vertex)),
		ClearColor:    p.clear,
	}
	for k, v := range p.vertex {
		draw.VertexBuffers[k] = v
	}
	p.enc.ops = append(p.enc.ops, func() {
		d.Draws = append(d.Draws, draw)
	})
}

func (p *RenderPass) End() error { return p.err }

// Surface is a fixed-size output surface that counts acquired, presented
// and discarded frames.
type Surface struct {
	Width, Height uint32
	Presents      int
	Acquired      int
	Discarded     int

	held bool
}

func NewSurface(w, h uint32) *Surface {
	return &Surface{Width: w, Height: h}
}

func (s *Surface) AcquireView() (gpu.TextureView, error) {
	s.Acquired++
	s.held = true
	return &TextureView{}, nil
}

func (s *Surface) Present() {
	if s.held {
		s.held = false
		s.Presents++
	}
}

func (s *Surface) Discard() {
	if s.held {
		s.held = false
		s.Discarded++
	}
}

// Outstanding is the number of acquired frames neither presented nor
// discarded.
func (s *Surface) Outstanding() int {
	return s.Acquired - s.Presents - s.Discarded
}

func (s *Surface) Format() gpu.TextureFormat { return gpu.TextureFormatBGRA8Unorm }
func (s *Surface) Size() (uint32, uint32)    { return s.Width, s.Height }
