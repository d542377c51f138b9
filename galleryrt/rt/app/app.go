package app

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/gallery/galleryrt/rt/gpu/wgpudev"
)

// App owns the native GPU objects behind a glfw window. Scenes only see
// Device and Surface through the gpu interfaces.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpudev.Device
	Surface  *wgpudev.Surface

	Profiler *Profiler
}

func NewApp(window *glfw.Window) *App {
	return &App{
		Window:   window,
		Profiler: NewProfiler(),
	}
}

// PowerPreference maps a config string to the adapter preference.
func PowerPreference(name string) wgpu.PowerPreference {
	switch name {
	case "low", "low-power":
		return wgpu.PowerPreferenceLowPower
	case "none", "":
		return wgpu.PowerPreferenceUndefined
	}
	return wgpu.PowerPreferenceHighPerformance
}

func (a *App) Init(power wgpu.PowerPreference) error {
	a.Instance = wgpu.CreateInstance(nil)

	surface := a.Instance.CreateSurface(GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   power,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	a.Adapter = adapter

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	a.Device = wgpudev.New(device)

	width, height := a.Window.GetFramebufferSize()
	a.Surface, err = wgpudev.NewSurface(surface, adapter, device, uint32(width), uint32(height))
	if err != nil {
		return err
	}
	return nil
}

// Resize reconfigures the swapchain for the new framebuffer size.
func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 || a.Surface == nil {
		return
	}
	a.Surface.Resize(uint32(w), uint32(h))
}

// Release drops the native objects. Scenes must be disposed first.
func (a *App) Release() {
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Adapter != nil {
		a.Adapter.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}

func GetSurfaceDescriptor(w *glfw.Window) *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(w)
}
