package gpu_test

import (
	"errors"
	"testing"

	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
	"github.com/gekko3d/gallery/galleryrt/rt/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T, d *gputest.Device) gpu.ComputePipeline {
	t.Helper()
	p, err := d.CreateComputePipeline(gpu.ComputePipelineDescriptor{Label: "test"})
	require.NoError(t, err)
	return p
}

func TestBuilderSlotsFollowAllocationOrder(t *testing.T) {
	d := gputest.NewDevice()
	b := gpu.NewBuilder(d, "Particles")

	pos, err := b.CreateBuffer("Position", gpu.Float32sToBytes([]float32{1, 2, 3, 1}), gpu.BufferUsageStorage|gpu.BufferUsageVertex)
	require.NoError(t, err)
	vel, err := b.CreateBuffer("Velocity", gpu.Float32sToBytes([]float32{0, 0, 0, 1}), gpu.BufferUsageStorage)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())

	bg, err := b.Finalize(newPipeline(t, d))
	require.NoError(t, err)

	group := bg.(*gputest.BindGroup)
	require.Len(t, group.Entries, 2)
	assert.Same(t, pos, group.Buffer(0))
	assert.Same(t, vel, group.Buffer(1))
	assert.Equal(t, uint32(0), group.Entries[0].Binding)
	assert.Equal(t, uint32(1), group.Entries[1].Binding)
}

func TestBuilderUploadsAndAddsCopyDst(t *testing.T) {
	d := gputest.NewDevice()
	b := gpu.NewBuilder(d, "Balls")

	buf, err := b.CreateBuffer("Radius", gpu.Float32sToBytes([]float32{0.5, 0.25}), gpu.BufferUsageStorage)
	require.NoError(t, err)

	assert.Equal(t, "Balls:Radius", buf.Label())
	assert.True(t, buf.Usage().Has(gpu.BufferUsageCopyDst))
	assert.Equal(t, uint64(8), buf.Size())
	assert.Equal(t, []float32{0.5, 0.25}, buf.(*gputest.Buffer).Floats())
}

func TestBuilderPadsToFourBytes(t *testing.T) {
	d := gputest.NewDevice()
	b := gpu.NewBuilder(d, "Text")

	buf, err := b.CreateBuffer("Chars", []byte("hello"), gpu.BufferUsageStorage)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), buf.Size())
	assert.Equal(t, []byte{'h', 'e', 'l', 'l', 'o', 0, 0, 0}, buf.(*gputest.Buffer).Bytes())
}

func TestBuilderRejectsEmptyData(t *testing.T) {
	b := gpu.NewBuilder(gputest.NewDevice(), "x")
	_, err := b.CreateBuffer("empty", nil, gpu.BufferUsageStorage)
	assert.True(t, errors.Is(err, gpu.ErrEmptyData))
	assert.Equal(t, 0, b.Len())
}

func TestBuilderRejectsIncompatibleUsage(t *testing.T) {
	b := gpu.NewBuilder(gputest.NewDevice(), "x")
	data := []byte{1, 2, 3, 4}

	for _, usage := range []gpu.BufferUsage{
		gpu.BufferUsageVertex,
		gpu.BufferUsageUniform | gpu.BufferUsageStorage,
		gpu.BufferUsageStorage | gpu.BufferUsageMapRead,
	} {
		_, err := b.CreateBuffer("bad", data, usage)
		assert.ErrorIs(t, err, gpu.ErrIncompatibleUsage, "usage %#x", usage)
	}
	assert.Equal(t, 0, b.Len())
}

func TestBuilderIsSingleUse(t *testing.T) {
	d := gputest.NewDevice()
	b := gpu.NewBuilder(d, "x")
	_, err := b.CreateBuffer("a", []byte{1, 0, 0, 0}, gpu.BufferUsageUniform)
	require.NoError(t, err)

	p := newPipeline(t, d)
	_, err = b.Finalize(p)
	require.NoError(t, err)

	_, err = b.CreateBuffer("b", []byte{1, 0, 0, 0}, gpu.BufferUsageUniform)
	assert.ErrorIs(t, err, gpu.ErrBuilderFinalized)
	_, err = b.Finalize(p)
	assert.ErrorIs(t, err, gpu.ErrBuilderFinalized)
}

func TestBuilderSharesAttachedBuffers(t *testing.T) {
	d := gputest.NewDevice()

	compute := gpu.NewBuilder(d, "Compute")
	pos, err := compute.CreateBuffer("Position", make([]byte, 16), gpu.BufferUsageStorage)
	require.NoError(t, err)

	render := gpu.NewBuilder(d, "Render")
	cfg, err := render.CreateBuffer("Config", make([]byte, 16), gpu.BufferUsageUniform)
	require.NoError(t, err)
	require.NoError(t, render.AttachBuffer(pos))

	rbg, err := render.Finalize(newPipeline(t, d))
	require.NoError(t, err)
	group := rbg.(*gputest.BindGroup)
	assert.Same(t, cfg, group.Buffer(0))
	assert.Same(t, pos, group.Buffer(1))

	// Attached handles stay with their creator.
	render.Discard()
	assert.False(t, pos.(*gputest.Buffer).Released())
	assert.True(t, cfg.(*gputest.Buffer).Released())
}

func TestBuilderAttachesSamplerAndView(t *testing.T) {
	d := gputest.NewDevice()
	b := gpu.NewBuilder(d, "Text")
	_, err := b.CreateBuffer("Config", make([]byte, 16), gpu.BufferUsageUniform)
	require.NoError(t, err)

	s, err := d.CreateSampler(gpu.SamplerDescriptor{Label: "atlas"})
	require.NoError(t, err)
	tex, err := d.CreateTexture(gpu.TextureDescriptor{Label: "atlas", Width: 8, Height: 8, Format: gpu.TextureFormatR8Unorm})
	require.NoError(t, err)
	view, err := tex.CreateView()
	require.NoError(t, err)

	require.NoError(t, b.AttachSampler(s))
	require.NoError(t, b.AttachTextureView(view))

	bg, err := b.Finalize(newPipeline(t, d))
	require.NoError(t, err)
	entries := bg.(*gputest.BindGroup).Entries
	require.Len(t, entries, 3)
	assert.Equal(t, s, entries[1].Sampler)
	assert.Equal(t, view, entries[2].TextureView)
	assert.Equal(t, uint32(2), entries[2].Binding)
}

func TestBuilderDiscardReleasesOwnedBuffers(t *testing.T) {
	d := gputest.NewDevice()
	b := gpu.NewBuilder(d, "x")
	for i := 0; i < 3; i++ {
		_, err := b.CreateBuffer("buf", make([]byte, 4), gpu.BufferUsageStorage)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, d.LiveBuffers())

	b.Discard()
	assert.Equal(t, 0, d.LiveBuffers())
	_, err := b.CreateBuffer("late", make([]byte, 4), gpu.BufferUsageStorage)
	assert.ErrorIs(t, err, gpu.ErrBuilderFinalized)
}

func TestBuilderDeviceFailureLeavesNothing(t *testing.T) {
	d := gputest.NewDevice()
	boom := errors.New("out of memory")
	d.FailWith(func(op, label string) error {
		if op == "CreateBuffer" && label == "x:second" {
			return boom
		}
		return nil
	})

	b := gpu.NewBuilder(d, "x")
	_, err := b.CreateBuffer("first", make([]byte, 4), gpu.BufferUsageStorage)
	require.NoError(t, err)
	_, err = b.CreateBuffer("second", make([]byte, 4), gpu.BufferUsageStorage)
	require.ErrorIs(t, err, boom)

	b.Discard()
	assert.Equal(t, 0, d.LiveBuffers())
}

func TestUniformPacking(t *testing.T) {
	u := gpu.NewUniform(40)
	assert.Equal(t, 48, u.Size())

	u.PutVec4(0, [4]float32{1, 0.5, 0.25, 1}).PutVec2(16, 800, 600).PutBool(24, true).PutUint(36, 7)
	f := gpu.BytesToFloat32s(u.Bytes())
	assert.Equal(t, []float32{1, 0.5, 0.25, 1, 800, 600, 1}, f[:7])
	assert.Equal(t, uint32(7), gpu.BytesToUint32s(u.Bytes())[9])
}
