package sim

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/gekko3d/gallery/galleryrt/rt/core"
	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
	"github.com/gekko3d/gallery/galleryrt/rt/panel"
	"github.com/gekko3d/gallery/galleryrt/rt/shaders"
)

const (
	configSize = 48
	cursorSize = 16

	// Vertices per entity: one impostor triangle.
	impostorVertices = 3
)

// Variant describes the fixed shape of a simulated system: its shaders and
// which per-entity arrays and uniforms it carries.
type Variant struct {
	Name        string
	ComputeWGSL string
	RenderWGSL  string
	// Acceleration adds the acceleration array to the compute bindings.
	Acceleration bool
	// Cursor adds the cursor uniform to the render bindings.
	Cursor bool
	Depth  bool
	Clamp  bool
	// Refresh adds a button that regenerates the entities.
	Refresh bool
}

var (
	ParticlesVariant = Variant{
		Name:         "Particles",
		ComputeWGSL:  shaders.ParticlesComputeWGSL,
		RenderWGSL:   shaders.ParticlesRenderWGSL,
		Acceleration: true,
		Cursor:       true,
		Clamp:        true,
		Refresh:      true,
	}
	BallsVariant = Variant{
		Name:        "Balls",
		ComputeWGSL: shaders.BallsComputeWGSL,
		RenderWGSL:  shaders.BallsRenderWGSL,
		Depth:       true,
	}
)

// Options seed the panel and fix the values that are not tunable at runtime.
type Options struct {
	WorkgroupSize    int
	DT               float32
	Amount           int
	Size             float32
	Color            [4]float32
	Background       [4]float32
	Bounds           bool
	Anchor           bool
	AnchorMultiplier float32
	// Seed of the spawn sampler; zero seeds from the clock.
	Seed int64
}

func DefaultParticleOptions() Options {
	return Options{
		WorkgroupSize:    shaders.DefaultWorkgroupSize,
		DT:               1.0 / 60.0,
		Amount:           100,
		Size:             0.01,
		Color:            [4]float32{183.0 / 255, 138.0 / 255, 84.0 / 255, 0.9},
		Background:       [4]float32{100.0 / 255, 100.0 / 255, 100.0 / 255, 1},
		Anchor:           true,
		AnchorMultiplier: 3,
	}
}

func DefaultBallOptions() Options {
	o := DefaultParticleOptions()
	o.Amount = 1000
	o.Size = 0.02
	o.Color = [4]float32{0.2, 0.55, 0.9, 1}
	o.Anchor = false
	return o
}

// generation is every GPU object of one build. It is replaced whole on a
// structural change and rewritten in place on a value change.
type generation struct {
	count int

	position     gpu.Buffer
	velocity     gpu.Buffer
	acceleration gpu.Buffer
	radius       gpu.Buffer
	config       gpu.Buffer
	cursor       gpu.Buffer

	computeModule gpu.ShaderModule
	renderModule  gpu.ShaderModule
	compute       gpu.ComputePipeline
	render        gpu.RenderPipeline
	computeGroup  gpu.BindGroup
	renderGroup   gpu.BindGroup

	computeBuilder *gpu.Builder
	renderBuilder  *gpu.Builder
}

// release drops the generation. Safe on a partially built one.
func (g *generation) release() {
	if g == nil {
		return
	}
	for _, r := range []gpu.Releaser{g.computeGroup, g.renderGroup, g.compute, g.render, g.computeModule, g.renderModule} {
		if r != nil {
			r.Release()
		}
	}
	if g.computeBuilder != nil {
		g.computeBuilder.Discard()
	}
	if g.renderBuilder != nil {
		g.renderBuilder.Discard()
	}
}

// System is a compute-then-render scene over one entity set.
type System struct {
	core.Lifecycle

	variant Variant
	opts    Options
	device  gpu.Device
	surface gpu.Surface
	panel   *panel.Panel
	log     core.Logger
	rec     core.Recorder
	rng     *rand.Rand

	width, height uint32
	gen           *generation
	unsubscribe   []func()
}

// NewSystem creates the scene and its panel. Nothing touches the device
// until Build.
func NewSystem(v Variant, opts Options, device gpu.Device, surface gpu.Surface, loop *core.FrameLoop, log core.Logger, rec core.Recorder) *System {
	if log == nil {
		log = core.NopLogger()
	}
	if rec == nil {
		rec = core.NopRecorder()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &System{
		variant: v,
		opts:    opts,
		device:  device,
		surface: surface,
		log:     log,
		rec:     rec,
		rng:     rand.New(rand.NewSource(seed)),
	}
	s.Lifecycle = core.NewLifecycle(v.Name, loop, s.frame)
	s.width, s.height = surface.Size()
	s.panel = s.newPanel()
	s.subscribe()
	return s
}

func NewParticles(opts Options, device gpu.Device, surface gpu.Surface, loop *core.FrameLoop, log core.Logger, rec core.Recorder) *System {
	return NewSystem(ParticlesVariant, opts, device, surface, loop, log, rec)
}

func NewBalls(opts Options, device gpu.Device, surface gpu.Surface, loop *core.FrameLoop, log core.Logger, rec core.Recorder) *System {
	return NewSystem(BallsVariant, opts, device, surface, loop, log, rec)
}

func (s *System) Panel() *panel.Panel {
	return s.panel
}

// Count is the entity count of the live generation, zero without one.
func (s *System) Count() int {
	if s.gen == nil {
		return 0
	}
	return s.gen.count
}

func (s *System) newPanel() *panel.Panel {
	p := panel.New(strings.ToLower(s.variant.Name))
	if s.variant.Refresh {
		p.AddButton("refresh", "Refresh")
	}
	p.AddCheckbox("debug", "Debug", false)
	p.AddCheckbox("bounds", "Bounds", s.opts.Bounds)
	p.AddNumber("amount", "Amount", s.opts.Amount, 0, 100000)
	p.AddSlider("size", "Size", s.opts.Size, 0.001, 0.3, 0.001)
	p.AddColor("bg_color", "Background color", s.opts.Background)
	p.AddColor("color", s.variant.Name+" color", s.opts.Color)
	if s.variant.Cursor {
		p.AddCursor("cursor")
	}
	return p
}

// subscribe wires one listener per tunable: structural ones rebuild,
// value ones rewrite a uniform in place.
func (s *System) subscribe() {
	rebuild := func(panel.Value) {
		if s.State() == core.StateDisposed {
			return
		}
		if err := s.Build(); err != nil {
			s.log.Warnf("%s rebuild failed: %v", s.Name(), err)
		}
	}
	rewrite := func(panel.Value) {
		if err := s.writeConfig(); err != nil {
			s.log.Errorf("%s config write failed: %v", s.Name(), err)
		}
	}

	names := []string{"amount", "size"}
	if s.variant.Refresh {
		names = append(names, "refresh")
	}
	for _, n := range names {
		s.unsubscribe = append(s.unsubscribe, s.panel.Get(n).Listen(rebuild))
	}
	for _, n := range []string{"color", "bounds", "debug"} {
		s.unsubscribe = append(s.unsubscribe, s.panel.Get(n).Listen(rewrite))
	}
	if s.variant.Cursor {
		s.unsubscribe = append(s.unsubscribe, s.panel.Get("cursor").Listen(func(v panel.Value) {
			if err := s.writeCursor(v.Cursor); err != nil {
				s.log.Errorf("%s cursor write failed: %v", s.Name(), err)
			}
		}))
	}
	// bg_color is read at frame time as the clear color and needs no write.
}

func (s *System) params() Params {
	return Params{
		Count:            s.panel.Get("amount").Int(),
		Radius:           s.panel.Get("size").Float(),
		Acceleration:     s.variant.Acceleration,
		Depth:            s.variant.Depth,
		Clamp:            s.variant.Clamp,
		Anchor:           s.opts.Anchor,
		AnchorMultiplier: s.opts.AnchorMultiplier,
	}
}

// Build replaces the current generation. Preconditions are checked before
// anything is released, so a rejected build leaves the old generation
// running. A device failure after the old generation is gone leaves the
// scene Constructed with nothing live; a scene that was running resumes on
// the next successful build.
func (s *System) Build() error {
	if err := s.CheckUsable(); err != nil {
		return err
	}

	entities, computeSrc, err := s.prepare()
	if err != nil {
		s.rec.BuildFinished(s.Name(), err)
		return err
	}

	s.gen.release()
	s.gen = nil

	g, err := s.create(entities, computeSrc)
	if err != nil {
		g.release()
		if s.Reset() {
			s.log.Warnf("%s lost its resources while running and resumes after the next build: %v", s.Name(), err)
		}
		s.reportLive()
		s.rec.BuildFinished(s.Name(), err)
		return fmt.Errorf("%s build: %w", s.Name(), err)
	}
	s.gen = g
	s.Built()
	s.reportLive()
	s.rec.BuildFinished(s.Name(), nil)
	s.log.Debugf("%s built with %d entities", s.Name(), g.count)
	return nil
}

// prepare runs every CPU side check of a build.
func (s *System) prepare() (*EntitySet, string, error) {
	for _, name := range []string{"color", "bg_color"} {
		if err := validColor(s.panel.Get(name).Color()); err != nil {
			return nil, "", fmt.Errorf("%s %s: %w", s.Name(), name, err)
		}
	}
	if !(s.opts.DT > 0) || math.IsInf(float64(s.opts.DT), 0) {
		return nil, "", fmt.Errorf("%s time step %g: %w", s.Name(), s.opts.DT, ErrInvalidParams)
	}
	entities, err := Generate(s.params(), s.rng)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", s.Name(), err)
	}
	if err := entities.Validate(SpawnBound); err != nil {
		return nil, "", fmt.Errorf("%s: %w", s.Name(), err)
	}
	src, err := shaders.WithWorkgroupSize(s.variant.ComputeWGSL, s.opts.WorkgroupSize)
	if err != nil {
		return nil, "", fmt.Errorf("%s compute shader: %w: %w", s.Name(), err, ErrInvalidParams)
	}
	return entities, src, nil
}

func (s *System) create(e *EntitySet, computeSrc string) (*generation, error) {
	name := s.Name()
	g := &generation{
		count:          e.Count,
		renderBuilder:  gpu.NewBuilder(s.device, name+" render"),
		computeBuilder: gpu.NewBuilder(s.device, name+" compute"),
	}
	var err error

	// Render side uniforms. The compute builder attaches the config below.
	if g.config, err = g.renderBuilder.CreateBuffer("Config", s.configBytes(e.Count), gpu.BufferUsageUniform); err != nil {
		return g, err
	}
	if s.variant.Cursor {
		if g.cursor, err = g.renderBuilder.CreateBuffer("Cursor", cursorBytes(s.panel.Get("cursor").CursorValue()), gpu.BufferUsageUniform); err != nil {
			return g, err
		}
	}

	entity := gpu.BufferUsageStorage | gpu.BufferUsageVertex
	cb := g.computeBuilder
	if g.position, err = cb.CreateBuffer("Position", gpu.Float32sToBytes(e.Position), entity); err != nil {
		return g, err
	}
	if g.velocity, err = cb.CreateBuffer("Velocity", gpu.Float32sToBytes(e.Velocity), gpu.BufferUsageStorage); err != nil {
		return g, err
	}
	if s.variant.Acceleration {
		if g.acceleration, err = cb.CreateBuffer("Acceleration", gpu.Float32sToBytes(e.Acceleration), gpu.BufferUsageStorage); err != nil {
			return g, err
		}
	}
	if g.radius, err = cb.CreateBuffer("Radius", gpu.Float32sToBytes(e.Radius), entity); err != nil {
		return g, err
	}
	if err = cb.AttachBuffer(g.config); err != nil {
		return g, err
	}

	if g.computeModule, err = s.device.CreateShaderModule(name+" compute shader", computeSrc); err != nil {
		return g, err
	}
	if g.compute, err = s.device.CreateComputePipeline(gpu.ComputePipelineDescriptor{
		Label:      ComputePipelineLabel(s.variant),
		Module:     g.computeModule,
		EntryPoint: "compute_main",
	}); err != nil {
		return g, err
	}

	if g.renderModule, err = s.device.CreateShaderModule(name+" render shader", s.variant.RenderWGSL); err != nil {
		return g, err
	}
	if g.render, err = s.device.CreateRenderPipeline(gpu.RenderPipelineDescriptor{
		Label:         name + " render pipeline",
		Module:        g.renderModule,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		Buffers: []gpu.VertexBufferLayout{
			{
				ArrayStride: 16,
				StepMode:    gpu.StepInstance,
				Attributes:  []gpu.VertexAttribute{{Format: gpu.VertexFormatFloat32x4, Location: 0}},
			},
			{
				ArrayStride: 4,
				StepMode:    gpu.StepInstance,
				Attributes:  []gpu.VertexAttribute{{Format: gpu.VertexFormatFloat32, Location: 1}},
			},
		},
		TargetFormat: s.surface.Format(),
		AlphaBlend:   true,
		Topology:     gpu.TopologyTriangleList,
	}); err != nil {
		return g, err
	}

	if g.computeGroup, err = cb.Finalize(g.compute); err != nil {
		return g, err
	}
	if g.renderGroup, err = g.renderBuilder.Finalize(g.render); err != nil {
		return g, err
	}
	return g, nil
}

// ComputePipelineLabel names the compute pipeline of a variant.
func ComputePipelineLabel(v Variant) string {
	return v.Name + " compute pipeline"
}

func (s *System) configBytes(count int) []byte {
	u := gpu.NewUniform(configSize)
	u.PutVec4(0, s.panel.Get("color").Color()).
		PutVec2(16, float32(s.width), float32(s.height)).
		PutBool(24, s.panel.Get("bounds").Bool()).
		PutBool(28, s.panel.Get("debug").Bool()).
		PutFloat(32, s.opts.DT).
		PutUint(36, uint32(count))
	return u.Bytes()
}

func cursorBytes(c panel.Cursor) []byte {
	u := gpu.NewUniform(cursorSize)
	u.PutVec2(0, c.X, c.Y).PutBool(8, c.Dragging)
	return u.Bytes()
}

// writeConfig rewrites the config uniform of the live generation. Without
// one the values are picked up by the next build.
func (s *System) writeConfig() error {
	if s.gen == nil {
		return nil
	}
	return s.device.Queue().WriteBuffer(s.gen.config, 0, s.configBytes(s.gen.count))
}

func (s *System) writeCursor(c panel.Cursor) error {
	if s.gen == nil || s.gen.cursor == nil {
		return nil
	}
	return s.device.Queue().WriteBuffer(s.gen.cursor, 0, cursorBytes(c))
}

// Resize updates the viewport size in the config uniform.
func (s *System) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	s.width, s.height = width, height
	if err := s.writeConfig(); err != nil {
		s.log.Errorf("%s viewport write failed: %v", s.Name(), err)
	}
}

// frame records one compute pass then one render pass into a single
// command buffer, submits it and presents.
func (s *System) frame() {
	g := s.gen
	if g == nil {
		return
	}
	start := time.Now()

	view, err := s.surface.AcquireView()
	if err != nil {
		s.log.Warnf("%s: surface unavailable: %v", s.Name(), err)
		return
	}
	presented := false
	defer func() {
		if !presented {
			s.surface.Discard()
		}
	}()

	enc, err := s.device.CreateCommandEncoder(s.Name() + " command encoder")
	if err != nil {
		s.log.Errorf("%s: %v", s.Name(), err)
		return
	}
	defer enc.Release()

	cp := enc.BeginComputePass(s.Name() + " compute pass")
	cp.SetPipeline(g.compute)
	cp.SetBindGroup(0, g.computeGroup)
	cp.DispatchWorkgroups(Workgroups(g.count, s.opts.WorkgroupSize), 1, 1)
	if err := cp.End(); err != nil {
		s.log.Errorf("%s compute pass: %v", s.Name(), err)
		return
	}

	rp := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:      s.Name() + " render pass",
		View:       view,
		ClearColor: gpu.ColorFromRGBA(s.panel.Get("bg_color").Color()),
	})
	rp.SetPipeline(g.render)
	rp.SetBindGroup(0, g.renderGroup)
	rp.SetVertexBuffer(0, g.position)
	rp.SetVertexBuffer(1, g.radius)
	rp.Draw(impostorVertices, uint32(g.count))
	if err := rp.End(); err != nil {
		s.log.Errorf("%s render pass: %v", s.Name(), err)
		return
	}

	cmd, err := enc.Finish()
	if err != nil {
		s.log.Errorf("%s: %v", s.Name(), err)
		return
	}
	s.device.Queue().Submit(cmd)
	cmd.Release()
	s.surface.Present()
	presented = true
	s.rec.FrameSubmitted(s.Name(), time.Since(start))
}

// Workgroups is ceil(count / size).
func Workgroups(count, size int) uint32 {
	if count <= 0 || size <= 0 {
		return 0
	}
	return uint32((count + size - 1) / size)
}

// Dispose stops the scene and releases everything. Further calls to Build
// or Run fail.
func (s *System) Dispose() {
	if s.State() == core.StateDisposed {
		return
	}
	s.Stop()
	for _, stop := range s.unsubscribe {
		stop()
	}
	s.unsubscribe = nil
	s.gen.release()
	s.gen = nil
	s.Disposed()
	s.reportLive()
}

func (s *System) reportLive() {
	if st, ok := s.device.(gpu.Stats); ok {
		s.rec.LiveBuffers(st.LiveBuffers())
	}
}

func validColor(c [4]float32) error {
	for i, v := range c {
		if math.IsNaN(float64(v)) || v < 0 || v > 1 {
			return fmt.Errorf("component %d = %g: %w", i, v, ErrInvalidParams)
		}
	}
	return nil
}
