// Package wgpudev implements the gpu interfaces on top of
// github.com/cogentcore/webgpu.
package wgpudev

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
)

type Device struct {
	dev   *wgpu.Device
	queue *Queue

	liveBuffers    int
	liveBindGroups int
}

func New(dev *wgpu.Device) *Device {
	d := &Device{dev: dev}
	d.queue = &Queue{q: dev.GetQueue()}
	return d
}

// Raw returns the wrapped device.
func (d *Device) Raw() *wgpu.Device { return d.dev }

func (d *Device) Queue() gpu.Queue { return d.queue }

func (d *Device) LiveBuffers() int    { return d.liveBuffers }
func (d *Device) LiveBindGroups() int { return d.liveBindGroups }

func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	b, err := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: wgpu.BufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, err
	}
	d.liveBuffers++
	return &Buffer{b: b, owner: d, label: desc.Label, size: desc.Size, usage: desc.Usage}, nil
}

func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	format, err := textureFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	t, err := d.dev.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          wgpu.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsage(desc.Usage),
	})
	if err != nil {
		return nil, err
	}
	return &Texture{t: t, width: desc.Width, height: desc.Height, format: desc.Format}, nil
}

func (d *Device) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	s, err := d.dev.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}
	return &Sampler{s: s}, nil
}

func (d *Device) CreateShaderModule(label string, code string) (gpu.ShaderModule, error) {
	m, err := d.dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, err
	}
	return &ShaderModule{m: m}, nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	p, err := d.dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: desc.Label,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     desc.Module.(*ShaderModule).m,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return nil, err
	}
	return &ComputePipeline{p: p}, nil
}

func (d *Device) CreateRenderPipeline(desc gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	format, err := textureFormat(desc.TargetFormat)
	if err != nil {
		return nil, err
	}
	module := desc.Module.(*ShaderModule).m

	target := wgpu.ColorTargetState{
		Format:    format,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if desc.AlphaBlend {
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}

	rpd := &wgpu.RenderPipelineDescriptor{
		Label: desc.Label,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers:    vertexLayouts(desc.Buffers),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(desc.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.DepthFormat != gpu.TextureFormatUndefined {
		depth, err := textureFormat(desc.DepthFormat)
		if err != nil {
			return nil, err
		}
		rpd.DepthStencil = &wgpu.DepthStencilState{
			Format:            depth,
			DepthWriteEnabled: desc.DepthWriteTest,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
		if !desc.DepthWriteTest {
			rpd.DepthStencil.DepthCompare = wgpu.CompareFunctionAlways
		}
	}

	p, err := d.dev.CreateRenderPipeline(rpd)
	if err != nil {
		return nil, err
	}
	return &RenderPipeline{p: p}, nil
}

func (d *Device) CreateBindGroup(desc gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			buf := e.Buffer.(*Buffer)
			entry.Buffer = buf.b
			entry.Size = buf.size
		case e.Sampler != nil:
			entry.Sampler = e.Sampler.(*Sampler).s
		case e.TextureView != nil:
			entry.TextureView = e.TextureView.(*TextureView).v
		default:
			return nil, fmt.Errorf("bind group %q: entry %d is empty", desc.Label, e.Binding)
		}
		entries[i] = entry
	}
	bg, err := d.dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  desc.Layout.(*BindGroupLayout).l,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	d.liveBindGroups++
	return &BindGroup{bg: bg, owner: d}, nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	enc, err := d.dev.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &CommandEncoder{enc: enc}, nil
}

// Release drops the device. Resources created from it must be released first.
func (d *Device) Release() {
	d.dev.Release()
}

type Queue struct {
	q *wgpu.Queue
}

func (q *Queue) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	return q.q.WriteBuffer(buf.(*Buffer).b, offset, data)
}

func (q *Queue) WriteTexture(tex gpu.Texture, data []byte, layout gpu.TextureDataLayout) error {
	t := tex.(*Texture)
	return q.q.WriteTexture(
		t.t.AsImageCopy(),
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  layout.BytesPerRow,
			RowsPerImage: layout.RowsPerImage,
		},
		&wgpu.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)
}

func (q *Queue) Submit(cmds ...gpu.CommandBuffer) {
	raw := make([]*wgpu.CommandBuffer, len(cmds))
	for i, c := range cmds {
		raw[i] = c.(*CommandBuffer).cb
	}
	q.q.Submit(raw...)
}
