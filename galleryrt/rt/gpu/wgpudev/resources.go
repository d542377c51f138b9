package wgpudev

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
)

type Buffer struct {
	b        *wgpu.Buffer
	owner    *Device
	label    string
	size     uint64
	usage    gpu.BufferUsage
	released bool
}

func (b *Buffer) Label() string          { return b.label }
func (b *Buffer) Size() uint64           { return b.size }
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }

func (b *Buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.owner.liveBuffers--
	b.b.Release()
}

type Texture struct {
	t             *wgpu.Texture
	width, height uint32
	format        gpu.TextureFormat
}

func (t *Texture) CreateView() (gpu.TextureView, error) {
	v, err := t.t.CreateView(nil)
	if err != nil {
		return nil, err
	}
	return &TextureView{v: v}, nil
}

func (t *Texture) Width() uint32  { return t.width }
func (t *Texture) Height() uint32 { return t.height }
func (t *Texture) Release()       { t.t.Release() }

type TextureView struct {
	v *wgpu.TextureView
}

func (v *TextureView) Release() { v.v.Release() }

type Sampler struct {
	s *wgpu.Sampler
}

func (s *Sampler) Release() { s.s.Release() }

type ShaderModule struct {
	m *wgpu.ShaderModule
}

func (m *ShaderModule) Release() { m.m.Release() }

type BindGroupLayout struct {
	l *wgpu.BindGroupLayout
}

func (l *BindGroupLayout) Release() { l.l.Release() }

type ComputePipeline struct {
	gpu.ComputeMarker
	p *wgpu.ComputePipeline
}

func (p *ComputePipeline) BindGroupLayout(group uint32) (gpu.BindGroupLayout, error) {
	l := p.p.GetBindGroupLayout(group)
	if l == nil {
		return nil, fmt.Errorf("compute pipeline has no bind group layout %d", group)
	}
	return &BindGroupLayout{l: l}, nil
}

func (p *ComputePipeline) Release() { p.p.Release() }

type RenderPipeline struct {
	gpu.RenderMarker
	p *wgpu.RenderPipeline
}

func (p *RenderPipeline) BindGroupLayout(group uint32) (gpu.BindGroupLayout, error) {
	l := p.p.GetBindGroupLayout(group)
	if l == nil {
		return nil, fmt.Errorf("render pipeline has no bind group layout %d", group)
	}
	return &BindGroupLayout{l: l}, nil
}

func (p *RenderPipeline) Release() { p.p.Release() }

type BindGroup struct {
	bg       *wgpu.BindGroup
	owner    *Device
	released bool
}

func (g *BindGroup) Release() {
	if g.released {
		return
	}
	g.released = true
	g.owner.liveBindGroups--
	g.bg.Release()
}

type CommandBuffer struct {
	cb *wgpu.CommandBuffer
}

func (c *CommandBuffer) Release() { c.cb.Release() }

type CommandEncoder struct {
	enc *wgpu.CommandEncoder
}

func (e *CommandEncoder) BeginComputePass(label string) gpu.ComputePass {
	return &ComputePass{p: e.enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})}
}

func (e *CommandEncoder) BeginRenderPass(desc gpu.RenderPassDescriptor) gpu.RenderPass {
	c := desc.ClearColor
	rpd := &wgpu.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       desc.View.(*TextureView).v,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: c.R, G: c.G, B: c.B, A: c.A},
		}},
	}
	if desc.DepthView != nil {
		rpd.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            desc.DepthView.(*TextureView).v,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		}
	}
	return &RenderPass{p: e.enc.BeginRenderPass(rpd)}
}

func (e *CommandEncoder) Finish() (gpu.CommandBuffer, error) {
	cb, err := e.enc.Finish(nil)
	if err != nil {
		return nil, err
	}
	return &CommandBuffer{cb: cb}, nil
}

func (e *CommandEncoder) Release() { e.enc.Release() }

type ComputePass struct {
	p *wgpu.ComputePassEncoder
}

func (p *ComputePass) SetPipeline(pl gpu.ComputePipeline) {
	p.p.SetPipeline(pl.(*ComputePipeline).p)
}

func (p *ComputePass) SetBindGroup(group uint32, bg gpu.BindGroup) {
	p.p.SetBindGroup(group, bg.(*BindGroup).bg, nil)
}

func (p *ComputePass) DispatchWorkgroups(x, y, z uint32) {
	p.p.DispatchWorkgroups(x, y, z)
}

func (p *ComputePass) End() error { return p.p.End() }

type RenderPass struct {
	p *wgpu.RenderPassEncoder
}

func (p *RenderPass) SetPipeline(pl gpu.RenderPipeline) {
	p.p.SetPipeline(pl.(*RenderPipeline).p)
}

func (p *RenderPass) SetBindGroup(group uint32, bg gpu.BindGroup) {
	p.p.SetBindGroup(group, bg.(*BindGroup).bg, nil)
}

func (p *RenderPass) SetVertexBuffer(slot uint32, buf gpu.Buffer) {
	p.p.SetVertexBuffer(slot, buf.(*Buffer).b, 0, wgpu.WholeSize)
}

func (p *RenderPass) Draw(vertexCount, instanceCount uint32) {
	p.p.Draw(vertexCount, instanceCount, 0, 0)
}

func (p *RenderPass) End() error { return p.p.End() }
