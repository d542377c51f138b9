package gallery

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/gekko3d/gallery/galleryrt/rt/shaders"
	"github.com/gekko3d/gallery/galleryrt/rt/sim"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the file configuration of the gallery. Keys missing from the
// file keep their DefaultConfig value.
type Config struct {
	Window    WindowConfig  `toml:"window"`
	Log       LogConfig     `toml:"log"`
	GPU       GPUConfig     `toml:"gpu"`
	Gallery   GalleryConfig `toml:"gallery"`
	Particles SimConfig     `toml:"particles"`
	Balls     SimConfig     `toml:"balls"`
	Text      TextConfig    `toml:"text"`
	Metrics   MetricsConfig `toml:"metrics"`
	Panel     PanelConfig   `toml:"panel"`
}

type WindowConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
}

type LogConfig struct {
	Debug  bool   `toml:"debug"`
	Prefix string `toml:"prefix"`
}

type GPUConfig struct {
	WorkgroupSize int `toml:"workgroup_size"`
	// Power is "high", "low" or "none".
	Power string `toml:"power"`
}

type GalleryConfig struct {
	// Scene is the name of the scene shown first. Empty starts the first
	// registered scene.
	Scene string `toml:"scene"`
}

type SimConfig struct {
	Amount           int     `toml:"amount"`
	Size             float32 `toml:"size"`
	Seed             int64   `toml:"seed"`
	Anchor           bool    `toml:"anchor"`
	AnchorMultiplier float32 `toml:"anchor_multiplier"`
}

type TextConfig struct {
	Content string  `toml:"content"`
	Scale   float32 `toml:"scale"`
}

type MetricsConfig struct {
	// Addr is the listen address of /metrics. Empty disables the server.
	Addr string `toml:"addr"`
}

type PanelConfig struct {
	// Overrides is a TOML file of panel values, applied at start and on
	// every change.
	Overrides string `toml:"overrides"`
	Watch     bool   `toml:"watch"`
}

func DefaultConfig() Config {
	p := sim.DefaultParticleOptions()
	b := sim.DefaultBallOptions()
	return Config{
		Window: WindowConfig{Width: 1280, Height: 720, Title: "WebGPU Gallery"},
		Log:    LogConfig{Prefix: "gallery"},
		GPU:    GPUConfig{WorkgroupSize: shaders.DefaultWorkgroupSize, Power: "high"},
		Particles: SimConfig{
			Amount:           p.Amount,
			Size:             p.Size,
			Anchor:           p.Anchor,
			AnchorMultiplier: p.AnchorMultiplier,
		},
		Balls: SimConfig{
			Amount:           b.Amount,
			Size:             b.Size,
			Anchor:           b.Anchor,
			AnchorMultiplier: b.AnchorMultiplier,
		},
		Text:  TextConfig{Scale: 2},
		Panel: PanelConfig{Watch: true},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return cfg, fmt.Errorf("parse config at %d:%d: %w", row, col, err)
		}
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	if !shaders.ValidWorkgroupSize(c.GPU.WorkgroupSize) {
		return fmt.Errorf("%w: workgroup_size %d is not a power of two in [1, 256]", ErrInvalidConfig, c.GPU.WorkgroupSize)
	}
	switch c.GPU.Power {
	case "", "none", "low", "low-power", "high", "high-performance":
	default:
		return fmt.Errorf("%w: gpu power %q", ErrInvalidConfig, c.GPU.Power)
	}
	for name, s := range map[string]SimConfig{"particles": c.Particles, "balls": c.Balls} {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}
	if c.Text.Scale < 1 || c.Text.Scale > 8 {
		return fmt.Errorf("%w: text scale %v outside [1, 8]", ErrInvalidConfig, c.Text.Scale)
	}
	return nil
}

func (s SimConfig) validate() error {
	if s.Amount < 0 || s.Amount > 100000 {
		return fmt.Errorf("amount %d outside [0, 100000]", s.Amount)
	}
	if s.Size < 0.001 || s.Size > 0.3 {
		return fmt.Errorf("size %v outside [0.001, 0.3]", s.Size)
	}
	if s.Anchor && s.AnchorMultiplier <= 0 {
		return fmt.Errorf("anchor_multiplier must be positive")
	}
	return nil
}

// options overlays the file values on the defaults of a variant.
func (s SimConfig) options(base sim.Options, workgroupSize int) sim.Options {
	base.WorkgroupSize = workgroupSize
	base.Amount = s.Amount
	base.Size = s.Size
	base.Seed = s.Seed
	base.Anchor = s.Anchor
	base.AnchorMultiplier = s.AnchorMultiplier
	return base
}
