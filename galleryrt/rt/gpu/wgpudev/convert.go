package wgpudev

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
)

var formats = map[gpu.TextureFormat]wgpu.TextureFormat{
	gpu.TextureFormatR8Unorm:        wgpu.TextureFormatR8Unorm,
	gpu.TextureFormatRGBA8Unorm:     wgpu.TextureFormatRGBA8Unorm,
	gpu.TextureFormatRGBA8UnormSrgb: wgpu.TextureFormatRGBA8UnormSrgb,
	gpu.TextureFormatBGRA8Unorm:     wgpu.TextureFormatBGRA8Unorm,
	gpu.TextureFormatBGRA8UnormSrgb: wgpu.TextureFormatBGRA8UnormSrgb,
	gpu.TextureFormatDepth24Plus:    wgpu.TextureFormatDepth24Plus,
}

func textureFormat(f gpu.TextureFormat) (wgpu.TextureFormat, error) {
	if wf, ok := formats[f]; ok {
		return wf, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("unsupported texture format %d", f)
}

// FormatFrom maps a native surface format back, reporting false when the
// gallery has no equivalent.
func FormatFrom(wf wgpu.TextureFormat) (gpu.TextureFormat, bool) {
	for f, w := range formats {
		if w == wf {
			return f, true
		}
	}
	return gpu.TextureFormatUndefined, false
}

func filterMode(m gpu.FilterMode) wgpu.FilterMode {
	if m == gpu.FilterLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

func topology(t gpu.Topology) wgpu.PrimitiveTopology {
	if t == gpu.TopologyLineList {
		return wgpu.PrimitiveTopologyLineList
	}
	return wgpu.PrimitiveTopologyTriangleList
}

func vertexLayouts(in []gpu.VertexBufferLayout) []wgpu.VertexBufferLayout {
	if len(in) == 0 {
		return nil
	}
	out := make([]wgpu.VertexBufferLayout, len(in))
	for i, l := range in {
		attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
		for j, a := range l.Attributes {
			attrs[j] = wgpu.VertexAttribute{
				Format:         vertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.Location,
			}
		}
		step := wgpu.VertexStepModeVertex
		if l.StepMode == gpu.StepInstance {
			step = wgpu.VertexStepModeInstance
		}
		out[i] = wgpu.VertexBufferLayout{
			ArrayStride: l.ArrayStride,
			StepMode:    step,
			Attributes:  attrs,
		}
	}
	return out
}

func vertexFormat(f gpu.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gpu.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gpu.VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case gpu.VertexFormatFloat32x4:
		return wgpu.VertexFormatFloat32x4
	default:
		return wgpu.VertexFormatFloat32
	}
}
