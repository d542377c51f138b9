package gpu

// Device is the subset of a logical GPU device the gallery needs.
// Implementations: wgpudev (native webgpu) and gputest (in-memory mock).
type Device interface {
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreateTexture(desc TextureDescriptor) (Texture, error)
	CreateSampler(desc SamplerDescriptor) (Sampler, error)
	CreateShaderModule(label string, code string) (ShaderModule, error)
	CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error)
	CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)
	CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	Queue() Queue
}

// Queue serializes writes and submitted command buffers in FIFO order.
type Queue interface {
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	WriteTexture(tex Texture, data []byte, layout TextureDataLayout) error
	Submit(cmds ...CommandBuffer)
}

// Surface yields one drawable view per frame. Every acquired view is
// either presented or discarded before the next AcquireView.
type Surface interface {
	AcquireView() (TextureView, error)
	Present()
	// Discard drops the acquired frame without showing it. No-op when
	// nothing is held.
	Discard()
	Format() TextureFormat
	Size() (width, height uint32)
}

// Stats is implemented by devices that track live allocations.
type Stats interface {
	LiveBuffers() int
	LiveBindGroups() int
}

type Releaser interface {
	Release()
}

type Buffer interface {
	Label() string
	Size() uint64
	Usage() BufferUsage
	Release()
}

type Texture interface {
	CreateView() (TextureView, error)
	Width() uint32
	Height() uint32
	Release()
}

type TextureView interface {
	Release()
}

type Sampler interface {
	Release()
}

type ShaderModule interface {
	Release()
}

type BindGroupLayout interface {
	Release()
}

// Pipeline exposes the layout a bind group must be built against.
type Pipeline interface {
	BindGroupLayout(group uint32) (BindGroupLayout, error)
	Release()
}

type ComputePipeline interface {
	Pipeline
	isCompute()
}

type RenderPipeline interface {
	Pipeline
	isRender()
}

// ComputeMarker and RenderMarker let out-of-package implementations satisfy
// the pipeline kinds by embedding.
type ComputeMarker struct{}

func (ComputeMarker) isCompute() {}

type RenderMarker struct{}

func (RenderMarker) isRender() {}

type BindGroup interface {
	Release()
}

type CommandBuffer interface {
	Release()
}

type CommandEncoder interface {
	BeginComputePass(label string) ComputePass
	BeginRenderPass(desc RenderPassDescriptor) RenderPass
	Finish() (CommandBuffer, error)
	Release()
}

type ComputePass interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(group uint32, bg BindGroup)
	DispatchWorkgroups(x, y, z uint32)
	End() error
}

type RenderPass interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(group uint32, bg BindGroup)
	SetVertexBuffer(slot uint32, buf Buffer)
	Draw(vertexCount, instanceCount uint32)
	End() error
}
