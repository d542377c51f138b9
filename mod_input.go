package gallery

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	KeyA int = iota
	KeyD
	KeyS
	KeyW
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeySpace
	KeyEscape
	KeyF1
	MouseButtonLeft
	MouseButtonRight

	keyCount
)

// Input is the polled keyboard and mouse state of one frame. Mouse
// coordinates are framebuffer pixels.
type Input struct {
	Pressed      [keyCount]bool
	JustPressed  [keyCount]bool
	JustReleased [keyCount]bool

	MouseX, MouseY float64
}

// SetKey records the state of key for this frame.
func (in *Input) SetKey(key int, down bool) {
	in.JustPressed[key] = down && !in.Pressed[key]
	in.JustReleased[key] = !down && in.Pressed[key]
	in.Pressed[key] = down
}

type InputModule struct{}

func (mod InputModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Input{})
	app.UseSystem(
		System(inputSystem).
			InStage(PreUpdate).
			RunAlways(),
	)
}

func inputSystem(s *WindowState, input *Input) {
	glfw.PollEvents()

	for key, glfwKey := range keyToGlfw {
		input.SetKey(key, s.window.GetKey(glfwKey) == glfw.Press)
	}
	for btn, glfwBtn := range buttonToGlfw {
		input.SetKey(btn, s.window.GetMouseButton(glfwBtn) == glfw.Press)
	}

	mx, my := s.window.GetCursorPos()
	ww, wh := s.window.GetSize()
	fw, fh := s.window.GetFramebufferSize()
	if ww > 0 && wh > 0 {
		mx *= float64(fw) / float64(ww)
		my *= float64(fh) / float64(wh)
	}
	input.MouseX, input.MouseY = mx, my
}

var keyToGlfw = map[int]glfw.Key{
	KeyA:      glfw.KeyA,
	KeyD:      glfw.KeyD,
	KeyS:      glfw.KeyS,
	KeyW:      glfw.KeyW,
	Key1:      glfw.Key1,
	Key2:      glfw.Key2,
	Key3:      glfw.Key3,
	Key4:      glfw.Key4,
	Key5:      glfw.Key5,
	Key6:      glfw.Key6,
	Key7:      glfw.Key7,
	Key8:      glfw.Key8,
	Key9:      glfw.Key9,
	KeySpace:  glfw.KeySpace,
	KeyEscape: glfw.KeyEscape,
	KeyF1:     glfw.KeyF1,
}

var buttonToGlfw = map[int]glfw.MouseButton{
	MouseButtonLeft:  glfw.MouseButtonLeft,
	MouseButtonRight: glfw.MouseButtonRight,
}
