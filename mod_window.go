package gallery

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	rtapp "github.com/gekko3d/gallery/galleryrt/rt/app"
	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
)

type WindowState struct {
	window *glfw.Window
	Width  int
	Height int
	Title  string
}

func createWindowState(width, height int, title string) (*WindowState, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	return &WindowState{window: win, Width: width, Height: height, Title: title}, nil
}

// Graphics is the device and surface the scenes draw with. Width and Height
// follow the framebuffer.
type Graphics struct {
	Device   gpu.Device
	Surface  gpu.Surface
	Profiler *rtapp.Profiler

	Width, Height int

	resize  func(w, h int)
	release func()
}

// NewGraphics wraps a device and surface. resize and release may be nil.
func NewGraphics(device gpu.Device, surface gpu.Surface, resize func(w, h int), release func()) *Graphics {
	w, h := surface.Size()
	return &Graphics{
		Device:   device,
		Surface:  surface,
		Profiler: rtapp.NewProfiler(),
		Width:    int(w),
		Height:   int(h),
		resize:   resize,
		release:  release,
	}
}

// Resize reconfigures the surface and reports whether the size changed.
// A minimized window reports zero and is ignored.
func (g *Graphics) Resize(w, h int) bool {
	if w <= 0 || h <= 0 || (w == g.Width && h == g.Height) {
		return false
	}
	g.Width, g.Height = w, h
	if g.resize != nil {
		g.resize(w, h)
	}
	return true
}

// LiveBuffers reports the device allocation counter when it has one.
func (g *Graphics) LiveBuffers() (int, bool) {
	if s, ok := g.Device.(gpu.Stats); ok {
		return s.LiveBuffers(), true
	}
	return 0, false
}

func (g *Graphics) Release() {
	if g.release != nil {
		g.release()
		g.release = nil
	}
}

// WindowModule opens the single glfw window and the GPU device behind it.
// Install is a no-op when a window already exists.
type WindowModule struct {
	Width  int
	Height int
	Title  string
	Power  string
}

func NewWindowModule(cfg WindowConfig, power string) *WindowModule {
	m := &WindowModule{Width: cfg.Width, Height: cfg.Height, Title: cfg.Title, Power: power}
	if m.Width <= 0 {
		m.Width = 1280
	}
	if m.Height <= 0 {
		m.Height = 720
	}
	if m.Title == "" {
		m.Title = "WebGPU Gallery"
	}
	return m
}

func (m WindowModule) Install(app *App, cmd *Commands) {
	if _, ok := Resource[WindowState](app); ok {
		return
	}
	log := app.Logger()

	ws, err := createWindowState(m.Width, m.Height, m.Title)
	if err != nil {
		log.Errorf("Window setup failed: %v", err)
		panic(err)
	}
	native := rtapp.NewApp(ws.window)
	if err := native.Init(rtapp.PowerPreference(m.Power)); err != nil {
		log.Errorf("GPU setup failed: %v", err)
		panic(err)
	}

	gfx := NewGraphics(native.Device, native.Surface, native.Resize, native.Release)
	gfx.Profiler = native.Profiler
	log.Infof("Window %dx%d, surface format %v", gfx.Width, gfx.Height, native.Surface.Format())

	cmd.AddResources(ws, gfx)
	app.UseSystem(
		System(windowSystem).
			InStage(PreUpdate).
			RunAlways(),
	)
	if app.stateful {
		app.UseSystem(
			System(closeWindowSystem).
				InState(OnEnter(StateClosing)).
				InStage(PostRender),
		)
	}
}

func windowSystem(ws *WindowState, gfx *Graphics, cmd *Commands) {
	if ws.window.ShouldClose() && cmd.State() != StateClosing {
		cmd.ChangeState(StateClosing)
	}
	ws.Width, ws.Height = ws.window.GetSize()
	gfx.Resize(ws.window.GetFramebufferSize())
}

func closeWindowSystem(ws *WindowState, gfx *Graphics) {
	gfx.Release()
	ws.window.Destroy()
	glfw.Terminate()
}
