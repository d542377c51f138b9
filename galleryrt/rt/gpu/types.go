package gpu

// BufferUsage mirrors the WebGPU buffer usage bit values so adapters can cast directly.
type BufferUsage uint32

const (
	BufferUsageMapRead  BufferUsage = 0x0001
	BufferUsageMapWrite BufferUsage = 0x0002
	BufferUsageCopySrc  BufferUsage = 0x0004
	BufferUsageCopyDst  BufferUsage = 0x0008
	BufferUsageIndex    BufferUsage = 0x0010
	BufferUsageVertex   BufferUsage = 0x0020
	BufferUsageUniform  BufferUsage = 0x0040
	BufferUsageStorage  BufferUsage = 0x0080
	BufferUsageIndirect BufferUsage = 0x0100
)

// Has reports whether all bits of flag are set.
func (u BufferUsage) Has(flag BufferUsage) bool {
	return u&flag == flag
}

type TextureFormat int

const (
	TextureFormatUndefined TextureFormat = iota
	TextureFormatR8Unorm
	TextureFormatRGBA8Unorm
	TextureFormatRGBA8UnormSrgb
	TextureFormatBGRA8Unorm
	TextureFormatBGRA8UnormSrgb
	TextureFormatDepth24Plus
)

type TextureUsage uint32

const (
	TextureUsageCopySrc          TextureUsage = 0x01
	TextureUsageCopyDst          TextureUsage = 0x02
	TextureUsageTextureBinding   TextureUsage = 0x04
	TextureUsageStorageBinding   TextureUsage = 0x08
	TextureUsageRenderAttachment TextureUsage = 0x10
)

type FilterMode int

const (
	FilterNearest FilterMode = iota
	FilterLinear
)

type VertexFormat int

const (
	VertexFormatFloat32 VertexFormat = iota
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
)

type StepMode int

const (
	StepVertex StepMode = iota
	StepInstance
)

type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyLineList
)

type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format TextureFormat
	Usage  TextureUsage
}

type TextureDataLayout struct {
	BytesPerRow  uint32
	RowsPerImage uint32
}

type SamplerDescriptor struct {
	Label     string
	MagFilter FilterMode
	MinFilter FilterMode
}

type ComputePipelineDescriptor struct {
	Label      string
	Module     ShaderModule
	EntryPoint string
}

type VertexAttribute struct {
	Format   VertexFormat
	Offset   uint64
	Location uint32
}

type VertexBufferLayout struct {
	ArrayStride uint64
	StepMode    StepMode
	Attributes  []VertexAttribute
}

type RenderPipelineDescriptor struct {
	Label          string
	Module         ShaderModule
	VertexEntry    string
	FragmentEntry  string
	Buffers        []VertexBufferLayout
	TargetFormat   TextureFormat
	AlphaBlend     bool
	Topology       Topology
	DepthFormat    TextureFormat // TextureFormatUndefined disables depth testing
	DepthWriteTest bool
}

// BindGroupEntry binds exactly one of Buffer, Sampler or TextureView at Binding.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Sampler     Sampler
	TextureView TextureView
}

type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

type Color struct {
	R, G, B, A float64
}

// ColorFromRGBA converts a 0..1 float32 rgba quadruple.
func ColorFromRGBA(c [4]float32) Color {
	return Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
}

type RenderPassDescriptor struct {
	Label      string
	View       TextureView
	ClearColor Color
	// DepthView enables a depth attachment cleared to 1.0.
	DepthView TextureView
}
