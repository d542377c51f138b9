package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/gallery/galleryrt/rt/core"
	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
	"github.com/gekko3d/gallery/galleryrt/rt/gpu/gputest"
	"github.com/gekko3d/gallery/galleryrt/rt/panel"
)

type rig struct {
	sys     *System
	dev     *gputest.Device
	surface *gputest.Surface
	loop    *core.FrameLoop
}

func newRig(t *testing.T, v Variant, opts Options) *rig {
	t.Helper()
	opts.Seed = 42
	dev := gputest.NewDevice()
	surface := gputest.NewSurface(800, 600)
	loop := core.NewFrameLoop()
	registerIntegrator(t, dev, v, opts.WorkgroupSize)
	return &rig{
		sys:     NewSystem(v, opts, dev, surface, loop, nil, nil),
		dev:     dev,
		surface: surface,
		loop:    loop,
	}
}

// registerIntegrator mirrors the compute shaders on the CPU.
func registerIntegrator(t *testing.T, dev *gputest.Device, v Variant, wg int) {
	dev.RegisterKernel(ComputePipelineLabel(v), func(groups [3]uint32, b []*gputest.Buffer) {
		pos, vel := b[0], b[1]
		var acc, rad, cfg *gputest.Buffer
		if v.Acceleration {
			acc, rad, cfg = b[2], b[3], b[4]
		} else {
			rad, cfg = b[2], b[3]
		}
		c := cfg.Floats()
		count := int(gpu.BytesToUint32s(cfg.Bytes())[9])
		assert.GreaterOrEqual(t, int(groups[0])*wg, count, "dispatch covers every entity")

		p, vv := pos.Floats(), vel.Floats()
		var a []float32
		if acc != nil {
			a = acc.Floats()
		}
		Integrate(p, vv, a, rad.Floats(), count, c[8], c[6] > 0.5, v.Depth)
		pos.SetFloats(p)
		vel.SetFloats(vv)
	})
}

func buf(b gpu.Buffer) *gputest.Buffer {
	return b.(*gputest.Buffer)
}

func TestSystem_BuildCreatesSizedBuffers(t *testing.T) {
	opts := DefaultParticleOptions()
	opts.Amount = 500
	r := newRig(t, ParticlesVariant, opts)

	require.NoError(t, r.sys.Build())
	assert.Equal(t, core.StateBuilt, r.sys.State())
	assert.Equal(t, 500, r.sys.Count())

	g := r.sys.gen
	assert.Equal(t, uint64(500*16), g.position.Size())
	assert.Equal(t, uint64(500*16), g.velocity.Size())
	assert.Equal(t, uint64(500*16), g.acceleration.Size())
	assert.Equal(t, uint64(500*4), g.radius.Size())
	assert.True(t, g.position.Usage().Has(gpu.BufferUsageStorage|gpu.BufferUsageVertex|gpu.BufferUsageCopyDst))

	for _, f := range buf(g.position).Floats() {
		assert.True(t, f >= -1 && f <= 1)
	}

	// The config uniform is bound by both groups at different slots.
	cg := g.computeGroup.(*gputest.BindGroup)
	rg := g.renderGroup.(*gputest.BindGroup)
	assert.Same(t, cg.Buffer(4), rg.Buffer(0))
	assert.Same(t, buf(g.cursor), rg.Buffer(1))
}

func TestSystem_BallsHaveNoAcceleration(t *testing.T) {
	r := newRig(t, BallsVariant, DefaultBallOptions())
	require.NoError(t, r.sys.Build())

	g := r.sys.gen
	assert.Nil(t, g.acceleration)
	assert.Nil(t, g.cursor)
	assert.Same(t, buf(g.config), g.computeGroup.(*gputest.BindGroup).Buffer(3))
	assert.Nil(t, r.sys.Panel().Get("cursor"))
}

func TestSystem_SameCountRebuildDoesNotLeak(t *testing.T) {
	r := newRig(t, ParticlesVariant, DefaultParticleOptions())
	require.NoError(t, r.sys.Build())
	buffers, groups := r.dev.LiveBuffers(), r.dev.LiveBindGroups()
	old := r.sys.gen

	for i := 0; i < 5; i++ {
		require.NoError(t, r.sys.Panel().Get("refresh").Press())
	}

	assert.Equal(t, buffers, r.dev.LiveBuffers())
	assert.Equal(t, groups, r.dev.LiveBindGroups())
	assert.True(t, buf(old.position).Released())
	assert.True(t, old.computeGroup.(*gputest.BindGroup).Released())
}

func TestSystem_ValueWriteKeepsGeneration(t *testing.T) {
	r := newRig(t, ParticlesVariant, DefaultParticleOptions())
	require.NoError(t, r.sys.Build())
	g := r.sys.gen
	created := r.dev.BuffersCreated()

	p := r.sys.Panel()
	require.NoError(t, p.Set("color", panel.ColorValue([4]float32{0.1, 0.2, 0.3, 0.4})))
	require.NoError(t, p.Set("bounds", panel.CheckboxValue(true)))
	require.NoError(t, p.Set("debug", panel.CheckboxValue(true)))
	require.NoError(t, p.Set("bg_color", panel.ColorValue([4]float32{0, 0, 0, 1})))
	r.sys.Resize(1024, 768)

	assert.Same(t, g, r.sys.gen)
	assert.Equal(t, created, r.dev.BuffersCreated())
	assert.Same(t, g.computeGroup, r.sys.gen.computeGroup)
	assert.Equal(t, 100, r.sys.Count())

	cfg := buf(g.config).Floats()
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3, 0.4}, cfg[0:4], 1e-6)
	assert.Equal(t, []float32{1024, 768, 1, 1}, cfg[4:8])
	assert.Equal(t, uint32(100), gpu.BytesToUint32s(buf(g.config).Bytes())[9])
}

func TestSystem_CursorWrite(t *testing.T) {
	r := newRig(t, ParticlesVariant, DefaultParticleOptions())
	require.NoError(t, r.sys.Build())

	require.NoError(t, r.sys.Panel().Set("cursor", panel.CursorValue(panel.Cursor{X: 12, Y: 34, Dragging: true})))
	assert.Equal(t, []float32{12, 34, 1, 0}, buf(r.sys.gen.cursor).Floats())
}

func TestSystem_StructuralChangeReplacesGeneration(t *testing.T) {
	r := newRig(t, ParticlesVariant, DefaultParticleOptions())
	require.NoError(t, r.sys.Build())
	old := r.sys.gen

	require.NoError(t, r.sys.Panel().Set("amount", panel.NumberValue(500)))

	g := r.sys.gen
	require.NotSame(t, old, g)
	assert.Equal(t, 500, g.count)
	assert.Equal(t, uint64(500*16), g.position.Size())
	for _, b := range []gpu.Buffer{old.position, old.velocity, old.acceleration, old.radius, old.config, old.cursor} {
		assert.True(t, buf(b).Released(), b.Label())
	}
	assert.True(t, old.computeGroup.(*gputest.BindGroup).Released())
	assert.True(t, old.renderGroup.(*gputest.BindGroup).Released())
	assert.True(t, old.compute.(*gputest.ComputePipeline).Released())
}

func TestSystem_FrameEncodesComputeThenRender(t *testing.T) {
	opts := DefaultParticleOptions()
	opts.Amount = 130
	r := newRig(t, ParticlesVariant, opts)
	require.NoError(t, r.sys.Build())
	require.NoError(t, r.sys.Run())

	r.loop.Tick()

	require.Len(t, r.dev.Dispatches, 1)
	require.Len(t, r.dev.Draws, 1)
	assert.Equal(t, [3]uint32{3, 1, 1}, r.dev.Dispatches[0].Groups)

	d := r.dev.Draws[0]
	assert.Equal(t, uint32(3), d.VertexCount)
	assert.Equal(t, uint32(130), d.InstanceCount)
	assert.Same(t, buf(r.sys.gen.position), d.VertexBuffers[0])
	assert.Same(t, buf(r.sys.gen.radius), d.VertexBuffers[1])
	assert.Equal(t, gpu.ColorFromRGBA(opts.Background), d.ClearColor)
	assert.Equal(t, 1, r.dev.Submissions())
	assert.Equal(t, 1, r.surface.Presents)
}

func TestSystem_StopHaltsSubmissions(t *testing.T) {
	r := newRig(t, ParticlesVariant, DefaultParticleOptions())
	require.NoError(t, r.sys.Build())
	require.NoError(t, r.sys.Run())

	for i := 0; i < 3; i++ {
		r.loop.Tick()
	}
	require.Equal(t, 3, r.dev.Submissions())

	r.sys.Stop()
	for i := 0; i < 3; i++ {
		r.loop.Tick()
	}
	assert.Equal(t, 3, r.dev.Submissions())
	assert.Equal(t, 0, r.loop.Pending())
	assert.Equal(t, core.StateStopped, r.sys.State())
}

func TestSystem_SingleEntityAnchor(t *testing.T) {
	opts := DefaultParticleOptions()
	opts.Amount = 1
	opts.Size = 0.02
	r := newRig(t, ParticlesVariant, opts)
	require.NoError(t, r.sys.Build())

	assert.InDelta(t, 0.06, buf(r.sys.gen.radius).Floats()[0], 1e-6)
}

func TestSystem_IntegratesOverSixtyTicks(t *testing.T) {
	opts := DefaultBallOptions()
	opts.Amount = 64
	r := newRig(t, BallsVariant, opts)
	require.NoError(t, r.sys.Build())

	p0 := buf(r.sys.gen.position).Floats()
	v := buf(r.sys.gen.velocity).Floats()

	require.NoError(t, r.sys.Run())
	for i := 0; i < 60; i++ {
		r.loop.Tick()
	}
	require.Len(t, r.dev.Dispatches, 60)

	got := buf(r.sys.gen.position).Floats()
	for i := 0; i < opts.Amount; i++ {
		for k := 0; k < 3; k++ {
			want := p0[i*4+k] + 60*v[i*4+k]*opts.DT
			assert.InDelta(t, want, got[i*4+k], 1e-4)
		}
	}
}

func TestSystem_RebuildBetweenFrames(t *testing.T) {
	opts := DefaultParticleOptions()
	opts.Amount = 50
	r := newRig(t, ParticlesVariant, opts)
	require.NoError(t, r.sys.Build())
	require.NoError(t, r.sys.Run())
	r.loop.Tick()

	require.NoError(t, r.sys.Panel().Set("amount", panel.NumberValue(200)))
	assert.Equal(t, core.StateRunning, r.sys.State())
	r.loop.Tick()

	require.Len(t, r.dev.Draws, 2)
	assert.Equal(t, uint32(50), r.dev.Draws[0].InstanceCount)
	assert.Equal(t, uint32(200), r.dev.Draws[1].InstanceCount)
	assert.Equal(t, uint32(4), r.dev.Dispatches[1].Groups[0])
	assert.Len(t, buf(r.sys.gen.position).Floats(), 800)
}

func TestSystem_RejectedBuildKeepsRunning(t *testing.T) {
	r := newRig(t, ParticlesVariant, DefaultParticleOptions())
	require.NoError(t, r.sys.Build())
	require.NoError(t, r.sys.Run())
	r.loop.Tick()
	g := r.sys.gen
	buffers := r.dev.LiveBuffers()

	require.NoError(t, r.sys.Panel().Set("amount", panel.NumberValue(0)))
	assert.ErrorIs(t, r.sys.Build(), ErrInvalidParams)

	assert.Same(t, g, r.sys.gen)
	assert.False(t, buf(g.position).Released())
	assert.Equal(t, buffers, r.dev.LiveBuffers())
	assert.Equal(t, core.StateRunning, r.sys.State())

	r.loop.Tick()
	assert.Equal(t, 2, r.dev.Submissions())
	assert.Equal(t, uint32(100), r.dev.Draws[1].InstanceCount)
}

func TestSystem_InvalidWorkgroupSizeIsRejected(t *testing.T) {
	opts := DefaultParticleOptions()
	opts.WorkgroupSize = 48
	r := newRig(t, ParticlesVariant, opts)

	assert.ErrorIs(t, r.sys.Build(), ErrInvalidParams)
	assert.Equal(t, 0, r.dev.BuffersCreated())
	assert.Equal(t, core.StateConstructed, r.sys.State())
}

func TestSystem_DeviceFailureLeavesNothingLive(t *testing.T) {
	r := newRig(t, ParticlesVariant, DefaultParticleOptions())
	require.NoError(t, r.sys.Build())
	require.NoError(t, r.sys.Run())

	lost := errors.New("device lost")
	r.dev.FailWith(func(op, label string) error {
		if op == "CreateComputePipeline" {
			return lost
		}
		return nil
	})
	err := r.sys.Build()
	require.ErrorIs(t, err, lost)

	assert.Equal(t, 0, r.dev.LiveBuffers())
	assert.Equal(t, 0, r.dev.LiveBindGroups())
	assert.Equal(t, core.StateConstructed, r.sys.State())
	assert.Zero(t, r.sys.Count())

	r.loop.Tick()
	assert.Equal(t, 0, r.dev.Submissions(), "the queued frame exits")
	assert.ErrorIs(t, r.sys.Run(), core.ErrNotBuilt)

	r.dev.FailWith(nil)
	require.NoError(t, r.sys.Build())
	assert.Equal(t, core.StateRunning, r.sys.State(), "resumes without a new Run")
	r.loop.Tick()
	assert.Equal(t, 1, r.dev.Submissions())
}

func TestSystem_FailedFrameDiscardsSurface(t *testing.T) {
	r := newRig(t, ParticlesVariant, DefaultParticleOptions())
	require.NoError(t, r.sys.Build())
	require.NoError(t, r.sys.Run())

	r.dev.FailWith(func(op, label string) error {
		if op == "CreateCommandEncoder" {
			return errors.New("device lost")
		}
		return nil
	})
	r.loop.Tick()
	r.loop.Tick()
	assert.Equal(t, 2, r.surface.Acquired)
	assert.Equal(t, 2, r.surface.Discarded)
	assert.Zero(t, r.surface.Outstanding())
	assert.Zero(t, r.surface.Presents)

	r.dev.FailWith(nil)
	r.loop.Tick()
	assert.Equal(t, 1, r.surface.Presents)
	assert.Zero(t, r.surface.Outstanding())
}

func TestSystem_FailureOnSecondBindGroup(t *testing.T) {
	r := newRig(t, BallsVariant, DefaultBallOptions())
	r.dev.FailWith(func(op, label string) error {
		if op == "CreateBindGroup" && label == "Balls render:BindGroup" {
			return errors.New("out of memory")
		}
		return nil
	})

	require.Error(t, r.sys.Build())
	assert.Equal(t, 0, r.dev.LiveBuffers())
	assert.Equal(t, 0, r.dev.LiveBindGroups())
}

func TestSystem_Dispose(t *testing.T) {
	r := newRig(t, ParticlesVariant, DefaultParticleOptions())
	require.NoError(t, r.sys.Build())
	require.NoError(t, r.sys.Run())

	r.sys.Dispose()
	r.loop.Tick()

	assert.Equal(t, 0, r.dev.LiveBuffers())
	assert.Equal(t, 0, r.dev.Submissions())
	assert.Equal(t, core.StateDisposed, r.sys.State())
	assert.ErrorIs(t, r.sys.Build(), core.ErrDisposed)
	assert.ErrorIs(t, r.sys.Run(), core.ErrDisposed)

	created := r.dev.BuffersCreated()
	require.NoError(t, r.sys.Panel().Set("amount", panel.NumberValue(10)))
	assert.Equal(t, created, r.dev.BuffersCreated(), "listeners are gone")
}
