package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gekko3d/gallery/galleryrt/rt/core"
)

type timing struct {
	last  time.Duration
	total time.Duration
	n     int
}

func (t *timing) add(d time.Duration) {
	t.last = d
	t.total += d
	t.n++
}

func (t *timing) mean() time.Duration {
	if t.n == 0 {
		return 0
	}
	return t.total / time.Duration(t.n)
}

// Profiler keeps CPU timings of the main loop scopes and of every scene
// frame, plus a few counters. It is a core.Recorder so scenes report into
// it the same way they report to Prometheus. Main loop only.
type Profiler struct {
	scopes map[string]*timing
	order  []string
	scenes map[string]*timing
	counts map[string]int
}

var _ core.Recorder = (*Profiler)(nil)

func NewProfiler() *Profiler {
	return &Profiler{
		scopes: make(map[string]*timing),
		scenes: make(map[string]*timing),
		counts: make(map[string]int),
	}
}

// Scope times fn under name and returns how long it took.
func (p *Profiler) Scope(name string, fn func()) time.Duration {
	t, ok := p.scopes[name]
	if !ok {
		t = &timing{}
		p.scopes[name] = t
		p.order = append(p.order, name)
	}
	start := time.Now()
	fn()
	d := time.Since(start)
	t.add(d)
	return d
}

// Last is the latest duration of a scope, zero if it never ran.
func (p *Profiler) Last(name string) time.Duration {
	if t, ok := p.scopes[name]; ok {
		return t.last
	}
	return 0
}

// Scopes lists scope names in first-use order.
func (p *Profiler) Scopes() []string {
	return p.order
}

func (p *Profiler) SetCount(name string, count int) {
	p.counts[name] = count
}

func (p *Profiler) Count(name string) int {
	return p.counts[name]
}

func (p *Profiler) FrameSubmitted(scene string, elapsed time.Duration) {
	t, ok := p.scenes[scene]
	if !ok {
		t = &timing{}
		p.scenes[scene] = t
	}
	t.add(elapsed)
}

// SceneFrames is the number of frames a scene submitted since the last
// Reset.
func (p *Profiler) SceneFrames(scene string) int {
	if t, ok := p.scenes[scene]; ok {
		return t.n
	}
	return 0
}

func (p *Profiler) BuildFinished(scene string, err error) {
	p.counts["builds"]++
	if err != nil {
		p.counts["build_failures"]++
	}
}

func (p *Profiler) LiveBuffers(n int) {
	p.counts["live_buffers"] = n
}

// Reset starts a new averaging window. Counters and scope order survive.
func (p *Profiler) Reset() {
	for _, t := range p.scopes {
		*t = timing{}
	}
	for _, t := range p.scenes {
		*t = timing{}
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// StatsString renders the window as a text block for the debug log.
func (p *Profiler) StatsString() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.order {
		t := p.scopes[name]
		fmt.Fprintf(&sb, "  %-15s: %.2f ms (avg %.2f)\n", name, ms(t.last), ms(t.mean()))
	}

	if len(p.scenes) > 0 {
		sb.WriteString("\nFrames:\n")
		for _, name := range sortedKeys(p.scenes) {
			t := p.scenes[name]
			fmt.Fprintf(&sb, "  %-15s: %d, avg %.2f ms\n", name, t.n, ms(t.mean()))
		}
	}

	sb.WriteString("\nStats:\n")
	for _, k := range sortedKeys(p.counts) {
		fmt.Fprintf(&sb, "  %-15s: %d\n", k, p.counts[k])
	}
	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
