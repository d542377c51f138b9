package scenes

import (
	"fmt"
	"math"

	"github.com/gekko3d/gallery/galleryrt/rt/gpu"
	"github.com/gekko3d/gallery/galleryrt/rt/panel"
	"github.com/gekko3d/gallery/galleryrt/rt/shaders"
)

const (
	textConfigSize  = 80
	minTextCapacity = 256
	tabWidth        = 4
)

const DefaultText = "\tThis text is rendered entirely on the GPU by a fragment shader sampling a 7x13 ASCII bitmap font :)"

// Text renders a string with a fullscreen fragment shader that looks each
// pixel's character up in a packed text buffer and samples the atlas.
type Text struct {
	base
	atlas *Atlas
	text  string
	gen   *textGen
}

type textGen struct {
	config   gpu.Buffer
	bg       gpu.Buffer
	text     gpu.Buffer
	capacity int

	texture gpu.Texture
	view    gpu.TextureView
	sampler gpu.Sampler

	module   gpu.ShaderModule
	pipeline gpu.RenderPipeline
	group    gpu.BindGroup
	builder  *gpu.Builder
}

func (g *textGen) release() {
	if g == nil {
		return
	}
	releaseAll(g.group, g.pipeline, g.module, g.sampler, g.view, g.texture)
	if g.builder != nil {
		g.builder.Discard()
	}
}

func NewText(d Deps, atlas *Atlas) *Text {
	if atlas == nil {
		atlas = DefaultAtlas()
	}
	t := &Text{atlas: atlas, text: DefaultText}
	t.base = newBase("Text", d, t.frame)

	p := t.panel
	p.AddColor("color", "Text color", [4]float32{0, 0, 0, 1})
	p.AddColor("bg_color", "Background color", [4]float32{1, 1, 1, 1})
	p.AddCheckbox("debug", "Debug", false)
	p.AddCheckbox("word_wrap", "Word wrap", true)
	p.AddSlider("scale", "Font scale", 2, 1, 8, 1)
	p.AddNumber("px", "Padding x", 1, 0, 32)
	p.AddNumber("py", "Padding y", 2, 0, 32)
	p.AddNumber("mx", "Margin x", 4, 0, 64)
	p.AddNumber("my", "Margin y", 4, 0, 64)

	t.listen("bg_color", func(v panel.Value) {
		if t.gen == nil {
			return
		}
		if err := t.device.Queue().WriteBuffer(t.gen.bg, 0, gpu.Float32sToBytes(v.Color[:])); err != nil {
			t.log.Errorf("Text background write failed: %v", err)
		}
	})
	for _, name := range []string{"color", "debug", "word_wrap", "scale", "px", "py", "mx", "my"} {
		t.listen(name, func(panel.Value) { t.refreshOrLog() })
	}
	return t
}

// Content returns the unprocessed text.
func (t *Text) Content() string {
	return t.text
}

// SetText replaces the text. It is a buffer write unless the processed
// text outgrows the buffer, in which case the scene rebuilds.
func (t *Text) SetText(s string) error {
	t.text = s
	return t.refresh()
}

// Capacity is the text buffer size in bytes, zero without resources.
func (t *Text) Capacity() int {
	if t.gen == nil {
		return 0
	}
	return t.gen.capacity
}

// Layout returns the characters per line and the visible line count for
// the current size and panel values.
func (t *Text) Layout() (cols, rows int) {
	p := t.panel
	scale := float64(p.Get("scale").Float())
	cellW := float64(t.atlas.GlyphWidth+p.Get("px").Int()) * scale
	cellH := float64(t.atlas.GlyphHeight+p.Get("py").Int()) * scale
	cols = int(math.Floor((float64(t.width) - 2*float64(p.Get("mx").Int())*scale) / cellW))
	rows = int(math.Floor((float64(t.height) - 2*float64(p.Get("my").Int())*scale) / cellH))
	return max(cols, 1), max(rows, 0)
}

func (t *Text) processed() []byte {
	cols, _ := t.Layout()
	return Preprocess(t.text, cols, t.panel.Get("word_wrap").Bool())
}

func (t *Text) Build() error {
	if err := t.CheckUsable(); err != nil {
		return err
	}
	data := t.processed()

	t.gen.release()
	t.gen = nil

	g, err := t.create(data)
	if err != nil {
		g.release()
		err = fmt.Errorf("text build: %w", err)
	} else {
		t.gen = g
	}
	t.finishBuild(err)
	return err
}

func (t *Text) create(data []byte) (*textGen, error) {
	g := &textGen{
		builder:  gpu.NewBuilder(t.device, "Text"),
		capacity: textCapacity(len(data)),
	}
	b := g.builder
	var err error

	if g.config, err = b.CreateBuffer("Config", t.configBytes(len(data)), gpu.BufferUsageUniform); err != nil {
		return g, err
	}
	bg := t.panel.Get("bg_color").Color()
	if g.bg, err = b.CreateBuffer("Background", gpu.Float32sToBytes(bg[:]), gpu.BufferUsageUniform); err != nil {
		return g, err
	}
	if g.text, err = b.CreateBuffer("Text", padTo(data, g.capacity), gpu.BufferUsageStorage); err != nil {
		return g, err
	}

	if g.texture, err = t.device.CreateTexture(gpu.TextureDescriptor{
		Label:  "ASCII atlas",
		Width:  t.atlas.Width(),
		Height: t.atlas.Height(),
		Format: gpu.TextureFormatR8Unorm,
		Usage:  gpu.TextureUsageTextureBinding | gpu.TextureUsageCopyDst,
	}); err != nil {
		return g, err
	}
	if err = t.device.Queue().WriteTexture(g.texture, t.atlas.Pixels, gpu.TextureDataLayout{
		BytesPerRow:  t.atlas.Width(),
		RowsPerImage: t.atlas.Height(),
	}); err != nil {
		return g, err
	}
	if g.view, err = g.texture.CreateView(); err != nil {
		return g, err
	}
	if g.sampler, err = t.device.CreateSampler(gpu.SamplerDescriptor{
		Label:     "Text sampler",
		MagFilter: gpu.FilterNearest,
		MinFilter: gpu.FilterNearest,
	}); err != nil {
		return g, err
	}
	if err = b.AttachSampler(g.sampler); err != nil {
		return g, err
	}
	if err = b.AttachTextureView(g.view); err != nil {
		return g, err
	}

	if g.module, err = t.device.CreateShaderModule("Text shader", shaders.TextWGSL); err != nil {
		return g, err
	}
	if g.pipeline, err = t.device.CreateRenderPipeline(gpu.RenderPipelineDescriptor{
		Label:         "Text render pipeline",
		Module:        g.module,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		TargetFormat:  t.surface.Format(),
		Topology:      gpu.TopologyTriangleList,
	}); err != nil {
		return g, err
	}
	if g.group, err = b.Finalize(g.pipeline); err != nil {
		return g, err
	}
	return g, nil
}

func (t *Text) configBytes(length int) []byte {
	p := t.panel
	cols, rows := t.Layout()
	u := gpu.NewUniform(textConfigSize)
	u.PutVec4(0, p.Get("color").Color()).
		PutVec2(16, float32(t.width), float32(t.height)).
		PutVec2(24, float32(t.atlas.GlyphWidth), float32(t.atlas.GlyphHeight)).
		PutVec2(32, float32(t.atlas.Width()), float32(t.atlas.Height())).
		PutVec2(40, float32(p.Get("mx").Int()), float32(p.Get("my").Int())).
		PutVec2(48, float32(p.Get("px").Int()), float32(p.Get("py").Int())).
		PutFloat(56, p.Get("scale").Float()).
		PutBool(60, p.Get("debug").Bool()).
		PutUint(64, uint32(cols)).
		PutUint(68, uint32(rows)).
		PutUint(72, uint32(length))
	return u.Bytes()
}

// refresh rewrites text and config in place, rebuilding only when the
// text no longer fits.
func (t *Text) refresh() error {
	if t.gen == nil {
		return nil
	}
	data := t.processed()
	if len(data) > t.gen.capacity {
		t.log.Debugf("Text grows past %d bytes, rebuilding", t.gen.capacity)
		return t.Build()
	}
	q := t.device.Queue()
	if err := q.WriteBuffer(t.gen.text, 0, padTo(data, t.gen.capacity)); err != nil {
		return err
	}
	return q.WriteBuffer(t.gen.config, 0, t.configBytes(len(data)))
}

func (t *Text) refreshOrLog() {
	if err := t.refresh(); err != nil {
		t.log.Errorf("Text update failed: %v", err)
	}
}

func (t *Text) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	t.width, t.height = width, height
	t.refreshOrLog()
}

func (t *Text) frame() {
	g := t.gen
	if g == nil {
		return
	}
	t.present(gpu.ColorFromRGBA(t.panel.Get("bg_color").Color()), nil, func(rp gpu.RenderPass) {
		rp.SetPipeline(g.pipeline)
		rp.SetBindGroup(0, g.group)
		rp.Draw(3, 1)
	})
}

func (t *Text) Dispose() {
	t.dispose(func() {
		t.gen.release()
		t.gen = nil
	})
}

// textCapacity rounds n up to a power of two of at least minTextCapacity.
func textCapacity(n int) int {
	c := minTextCapacity
	for c < n {
		c *= 2
	}
	return c
}

func padTo(data []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, data)
	return out
}

// Preprocess lays text out on lines of lineCapacity characters: tabs
// become four spaces, a newline pads the rest of its line with spaces and
// spaces at the start of a line are dropped. With wordWrap a word that
// would cross the line end starts the next line instead, unless it is
// longer than a line. Non-ASCII runes become '?'.
func Preprocess(text string, lineCapacity int, wordWrap bool) []byte {
	if lineCapacity < 1 {
		lineCapacity = 1
	}
	rs := []rune(text)
	out := make([]byte, 0, len(rs)+lineCapacity)

	col := func() int { return len(out) % lineCapacity }
	padLine := func() {
		for n := lineCapacity - col(); n > 0; n-- {
			out = append(out, ' ')
		}
	}

	for i, r := range rs {
		switch {
		case r == '\t':
			for k := 0; k < tabWidth; k++ {
				out = append(out, ' ')
			}
		case r == '\n':
			padLine()
		case r == ' ':
			if col() != 0 {
				out = append(out, ' ')
			}
		default:
			if wordWrap && col() != 0 && (i == 0 || isBreak(rs[i-1])) {
				n := wordLen(rs[i:])
				if n <= lineCapacity && col()+n > lineCapacity {
					padLine()
				}
			}
			if r > 0x7e || r < ' ' {
				r = '?'
			}
			out = append(out, byte(r))
		}
	}
	return out
}

func isBreak(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

func wordLen(rs []rune) int {
	n := 0
	for n < len(rs) && !isBreak(rs[n]) {
		n++
	}
	return n
}
