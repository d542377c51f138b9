package wgpudev

import (
	"errors"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
)

var ErrNoSurfaceFormat = errors.New("surface offers no supported color format")

// Surface owns the swapchain configuration and the texture acquired for the
// current frame.
type Surface struct {
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
	config  *wgpu.SurfaceConfiguration
	format  gpu.TextureFormat

	frame *wgpu.Texture
	view  *wgpu.TextureView
}

// NewSurface configures s for a width x height swapchain with vsync,
// picking the first capability format the gallery can render to.
func NewSurface(s *wgpu.Surface, adapter *wgpu.Adapter, device *wgpu.Device, width, height uint32) (*Surface, error) {
	caps := s.GetCapabilities(adapter)
	var (
		native wgpu.TextureFormat
		format gpu.TextureFormat
		found  bool
	)
	for _, f := range caps.Formats {
		if format, found = FormatFrom(f); found {
			native = f
			break
		}
	}
	if !found {
		return nil, ErrNoSurfaceFormat
	}

	config := &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      native,
		Width:       width,
		Height:      height,
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	s.Configure(adapter, device, config)

	return &Surface{
		surface: s,
		adapter: adapter,
		device:  device,
		config:  config,
		format:  format,
	}, nil
}

// AcquireView returns a view of the next swapchain texture. A frame still
// held from an earlier failed tick is dropped first.
func (s *Surface) AcquireView() (gpu.TextureView, error) {
	s.releaseFrame()
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	s.frame, s.view = tex, view
	return &TextureView{v: view}, nil
}

// Present shows the acquired frame and releases it.
func (s *Surface) Present() {
	if s.frame == nil {
		return
	}
	s.surface.Present()
	s.releaseFrame()
}

// Discard releases the acquired frame without presenting it.
func (s *Surface) Discard() {
	s.releaseFrame()
}

func (s *Surface) releaseFrame() {
	if s.view != nil {
		s.view.Release()
		s.view = nil
	}
	if s.frame != nil {
		s.frame.Release()
		s.frame = nil
	}
}

func (s *Surface) Format() gpu.TextureFormat { return s.format }

func (s *Surface) Size() (uint32, uint32) { return s.config.Width, s.config.Height }

// Resize reconfigures the swapchain. Zero sizes (minimized window) are ignored.
func (s *Surface) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	s.config.Width = width
	s.config.Height = height
	s.surface.Configure(s.adapter, s.device, s.config)
}

func (s *Surface) Release() {
	s.surface.Release()
}
