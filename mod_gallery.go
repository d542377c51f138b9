package gallery

import (
	"context"
	"fmt"
	"strings"

	"github.com/gekko3d/gallery/galleryrt/rt/core"
	"github.com/gekko3d/gallery/galleryrt/rt/panel"
	"github.com/gekko3d/gallery/galleryrt/rt/scenes"
	"github.com/gekko3d/gallery/galleryrt/rt/sim"
)

// GalleryScene is a scene with a control panel.
type GalleryScene interface {
	core.Scene
	Panel() *panel.Panel
}

// Gallery owns the scenes, the frame loop that drives them and the panel
// override file.
type Gallery struct {
	Registry  *core.Registry
	Loop      *core.FrameLoop
	Overrides *panel.FileSource

	Particles *sim.System
	Balls     *sim.System
	Text      *scenes.Text

	scenes  []GalleryScene
	initial string
	watch   bool
	width   int
	height  int
	log     Logger
	cancel  context.CancelFunc
}

var panelKeys = map[string]int{"w": KeyW, "a": KeyA, "s": KeyS, "d": KeyD}

// NewGallery creates every scene against gfx. Nothing is allocated on the
// device until Start.
func NewGallery(cfg Config, gfx *Graphics, log Logger, rec core.Recorder) (*Gallery, error) {
	if log == nil {
		log = NewNopLogger()
	}
	if rec == nil {
		rec = core.NopRecorder()
	}
	loop := core.NewFrameLoop()
	deps := scenes.Deps{Device: gfx.Device, Surface: gfx.Surface, Loop: loop, Log: log, Rec: rec}
	wg := cfg.GPU.WorkgroupSize

	g := &Gallery{
		Registry: core.NewRegistry(log),
		Loop:     loop,
		initial:  cfg.Gallery.Scene,
		watch:    cfg.Panel.Watch,
		width:    gfx.Width,
		height:   gfx.Height,
		log:      log,
	}
	g.Particles = sim.NewParticles(cfg.Particles.options(sim.DefaultParticleOptions(), wg), gfx.Device, gfx.Surface, loop, log, rec)
	g.Balls = sim.NewBalls(cfg.Balls.options(sim.DefaultBallOptions(), wg), gfx.Device, gfx.Surface, loop, log, rec)
	g.Text = scenes.NewText(deps, scenes.DefaultAtlas())
	if cfg.Text.Content != "" {
		if err := g.Text.SetText(cfg.Text.Content); err != nil {
			return nil, err
		}
	}
	if err := g.Text.Panel().Set("scale", panel.SliderValue(cfg.Text.Scale)); err != nil {
		return nil, fmt.Errorf("text scale: %w", err)
	}

	g.scenes = []GalleryScene{
		g.Particles,
		g.Balls,
		scenes.NewCube(deps),
		scenes.NewGrid(deps),
		scenes.NewTriangle(deps),
		g.Text,
	}
	for _, s := range g.scenes {
		g.Registry.Register(s, s.Panel())
	}

	if cfg.Panel.Overrides != "" {
		g.Overrides = panel.NewFileSource(cfg.Panel.Overrides, log)
		for _, s := range g.scenes {
			g.Overrides.Bind(s.Panel())
		}
	}
	return g, nil
}

func (g *Gallery) Scenes() []GalleryScene {
	return g.scenes
}

// Start builds every scene, then applies the override file so its values
// go through the same listeners as interactive changes.
func (g *Gallery) Start() {
	for _, s := range g.scenes {
		if err := s.Build(); err != nil {
			g.log.Warnf("Scene %s did not build: %v", s.Name(), err)
		}
	}
	if g.Overrides == nil {
		return
	}
	if err := g.Overrides.Load(); err != nil {
		g.log.Warnf("Panel overrides: %v", err)
	}
	g.applyOverrides()
	if !g.watch {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := g.Overrides.Start(ctx); err != nil {
		cancel()
		g.log.Warnf("Panel overrides are not watched: %v", err)
		return
	}
	g.cancel = cancel
}

// ActivateInitial shows the configured scene, or the first one.
func (g *Gallery) ActivateInitial() {
	if g.initial != "" {
		for _, e := range g.Registry.Entries() {
			if strings.EqualFold(e.Scene.Name(), g.initial) {
				g.Switch(e.Index)
				return
			}
		}
		g.log.Warnf("Unknown scene %q, starting the first one", g.initial)
	}
	g.Switch(0)
}

func (g *Gallery) Switch(index int) {
	if err := g.Registry.Activate(index); err != nil {
		g.log.Errorf("Switch to scene %d: %v", index, err)
	}
}

// Active returns the running scene, or nil.
func (g *Gallery) Active() GalleryScene {
	e := g.Registry.Active()
	if e == nil {
		return nil
	}
	return e.Scene.(GalleryScene)
}

// HandleInput feeds the key and cursor parameters of the active panel.
// Values are only set on change so listeners see transitions.
func (g *Gallery) HandleInput(in *Input) {
	s := g.Active()
	if s == nil {
		return
	}
	p := s.Panel()
	for _, param := range p.Find(panel.KindKey) {
		key, ok := panelKeys[param.Key]
		if !ok || param.Bool() == in.Pressed[key] {
			continue
		}
		if err := param.Set(panel.KeyValue(in.Pressed[key])); err != nil {
			g.log.Warnf("%s key %s: %v", s.Name(), param.Key, err)
		}
	}
	c := panel.Cursor{X: float32(in.MouseX), Y: float32(in.MouseY), Dragging: in.Pressed[MouseButtonLeft]}
	for _, param := range p.Find(panel.KindCursor) {
		if param.CursorValue() == c {
			continue
		}
		if err := param.Set(panel.CursorValue(c)); err != nil {
			g.log.Warnf("%s cursor: %v", s.Name(), err)
		}
	}
}

// Resize forwards a framebuffer change to every scene.
func (g *Gallery) Resize(w, h int) {
	if w <= 0 || h <= 0 || (w == g.width && h == g.height) {
		return
	}
	g.width, g.height = w, h
	g.Registry.Resize(uint32(w), uint32(h))
}

func (g *Gallery) applyOverrides() {
	if g.Overrides == nil {
		return
	}
	for _, err := range g.Overrides.Apply() {
		g.log.Warnf("Panel override rejected: %v", err)
	}
}

// Close stops watching overrides and disposes every scene.
func (g *Gallery) Close() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	if g.Overrides != nil {
		if err := g.Overrides.Close(); err != nil {
			g.log.Warnf("Panel overrides: %v", err)
		}
	}
	g.Registry.Close()
}

// GalleryModule registers the scenes and drives them from the app loop:
// keys 1 to 9 switch scenes, Esc quits, the mouse and w/a/s/d feed the
// active panel. It needs Graphics and a stateful app.
type GalleryModule struct {
	Config Config
}

func (m GalleryModule) Install(app *App, cmd *Commands) {
	if !app.stateful {
		panic("GalleryModule needs UseStates(StateBooting, StateClosing)")
	}
	gfx, ok := Resource[Graphics](app)
	if !ok {
		panic("GalleryModule needs Graphics, install WindowModule first")
	}
	var metrics core.Recorder
	if t, ok := Resource[Telemetry](app); ok {
		metrics = t.Metrics
	}
	rec := core.Recorders(gfx.Profiler, metrics)

	g, err := NewGallery(m.Config, gfx, app.Logger(), rec)
	if err != nil {
		app.Logger().Errorf("Gallery setup failed: %v", err)
		panic(err)
	}
	cmd.AddResources(g)
	if _, ok := Resource[Input](app); !ok {
		cmd.AddResources(&Input{})
	}
	if _, ok := Resource[Time](app); !ok {
		TimeModule{}.Install(app, cmd)
	}

	app.UseSystem(System(startGallerySystem).InState(OnEnter(StateBooting)))
	app.UseSystem(System(bootedSystem).InState(OnExecute(StateBooting)))
	app.UseSystem(System(activateGallerySystem).InState(OnEnter(StateRunning)))
	app.UseSystem(System(galleryInputSystem).InState(OnExecute(StateRunning)))
	app.UseSystem(
		System(galleryResizeSystem).
			InState(OnExecute(StateRunning)).
			InStage(PostUpdate),
	)
	app.UseSystem(
		System(galleryFrameSystem).
			InState(OnExecute(StateRunning)).
			InStage(Render),
	)
	app.UseSystem(
		System(closeGallerySystem).
			InState(OnEnter(StateClosing)).
			InStage(Render),
	)
}

func startGallerySystem(g *Gallery) {
	g.Start()
}

func bootedSystem(cmd *Commands) {
	cmd.ChangeState(StateRunning)
}

func activateGallerySystem(g *Gallery) {
	g.ActivateInitial()
}

func galleryInputSystem(in *Input, g *Gallery, cmd *Commands) {
	if in.JustPressed[KeyEscape] {
		cmd.ChangeState(StateClosing)
		return
	}
	for i := 0; i < 9 && i < g.Registry.Len(); i++ {
		if in.JustPressed[Key1+i] {
			g.Switch(i)
		}
	}
	g.HandleInput(in)
}

func galleryResizeSystem(gfx *Graphics, g *Gallery) {
	g.Resize(gfx.Width, gfx.Height)
}

func galleryFrameSystem(g *Gallery, gfx *Graphics, t *Time) {
	p := gfx.Profiler
	p.Scope("panel", g.applyOverrides)
	p.Scope("frame", g.Loop.Tick)

	if n, ok := gfx.LiveBuffers(); ok {
		p.SetCount("live_buffers", n)
	}
	if g.Particles.Running() {
		p.SetCount("entities", g.Particles.Count())
	} else if g.Balls.Running() {
		p.SetCount("entities", g.Balls.Count())
	}

	if t.Frames%600 == 0 && g.log.DebugEnabled() {
		g.log.Debugf("Frame %d, dt %v\n%s", t.Frames, t.Dt, p.StatsString())
	}
}

func closeGallerySystem(g *Gallery) {
	g.Close()
}
