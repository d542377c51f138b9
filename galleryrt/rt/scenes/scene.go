// Package scenes holds the single-pass scenes of the gallery. Each one
// embeds core.Lifecycle, allocates through gpu.Builder and owns a panel.
package scenes

import (
	"fmt"
	"strings"
	"time"

	"github.com/gekko3d/gallery/galleryrt/rt/core"
	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
	"github.com/gekko3d/gallery/galleryrt/rt/panel"
)

// frameStep is the simulated time between two frames. Scenes advance by a
// fixed step so the display rate only changes smoothness.
const frameStep = float32(1.0 / 60.0)

// Deps are the collaborators every scene needs.
type Deps struct {
	Device  gpu.Device
	Surface gpu.Surface
	Loop    *core.FrameLoop
	Log     core.Logger
	Rec     core.Recorder
}

type base struct {
	core.Lifecycle

	device  gpu.Device
	surface gpu.Surface
	panel   *panel.Panel
	log     core.Logger
	rec     core.Recorder

	width, height uint32
	unsubscribe   []func()
}

func newBase(name string, d Deps, frame func()) base {
	if d.Log == nil {
		d.Log = core.NopLogger()
	}
	if d.Rec == nil {
		d.Rec = core.NopRecorder()
	}
	w, h := d.Surface.Size()
	return base{
		Lifecycle: core.NewLifecycle(name, d.Loop, frame),
		device:    d.Device,
		surface:   d.Surface,
		panel:     panel.New(strings.ToLower(name)),
		log:       d.Log,
		rec:       d.Rec,
		width:     w,
		height:    h,
	}
}

func (b *base) Panel() *panel.Panel {
	return b.panel
}

func (b *base) listen(name string, fn panel.Listener) {
	b.unsubscribe = append(b.unsubscribe, b.panel.Get(name).Listen(fn))
}

func (b *base) aspect() float32 {
	if b.height == 0 {
		return 1
	}
	return float32(b.width) / float32(b.height)
}

// present records one render pass through draw, submits it and presents.
func (b *base) present(clear gpu.Color, depth gpu.TextureView, draw func(gpu.RenderPass)) {
	start := time.Now()
	if err := b.submitPass(clear, depth, draw); err != nil {
		b.log.Errorf("%s frame: %v", b.Name(), err)
		return
	}
	b.rec.FrameSubmitted(b.Name(), time.Since(start))
}

// submitPass discards the acquired frame on every failure after the
// acquire.
func (b *base) submitPass(clear gpu.Color, depth gpu.TextureView, draw func(gpu.RenderPass)) (err error) {
	view, err := b.surface.AcquireView()
	if err != nil {
		return fmt.Errorf("acquire surface: %w", err)
	}
	defer func() {
		if err != nil {
			b.surface.Discard()
		}
	}()
	enc, err := b.device.CreateCommandEncoder(b.Name() + " command encoder")
	if err != nil {
		return err
	}
	defer enc.Release()

	rp := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:      b.Name() + " render pass",
		View:       view,
		ClearColor: clear,
		DepthView:  depth,
	})
	draw(rp)
	if err = rp.End(); err != nil {
		return fmt.Errorf("render pass: %w", err)
	}
	cmd, err := enc.Finish()
	if err != nil {
		return err
	}
	b.device.Queue().Submit(cmd)
	cmd.Release()
	b.surface.Present()
	return nil
}

// finishBuild records the outcome of a build.
func (b *base) finishBuild(err error) {
	if err != nil {
		if b.Reset() {
			b.log.Warnf("%s lost its resources while running and resumes after the next build: %v", b.Name(), err)
		}
	} else {
		b.Built()
	}
	b.rec.BuildFinished(b.Name(), err)
	if st, ok := b.device.(gpu.Stats); ok {
		b.rec.LiveBuffers(st.LiveBuffers())
	}
}

// dispose runs release once and marks the scene disposed.
func (b *base) dispose(release func()) {
	if b.State() == core.StateDisposed {
		return
	}
	b.Stop()
	for _, stop := range b.unsubscribe {
		stop()
	}
	b.unsubscribe = nil
	release()
	b.Disposed()
}

func releaseAll(rs ...gpu.Releaser) {
	for _, r := range rs {
		if r != nil {
			r.Release()
		}
	}
}
