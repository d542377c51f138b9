package gallery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/gallery/galleryrt/rt/sim"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 64, cfg.GPU.WorkgroupSize)
	assert.Equal(t, 100, cfg.Particles.Amount)
	assert.True(t, cfg.Particles.Anchor)
	assert.Equal(t, float32(3), cfg.Particles.AnchorMultiplier)
	assert.Equal(t, 1000, cfg.Balls.Amount)
	assert.False(t, cfg.Balls.Anchor)
}

func TestParseConfig_OverlaysDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[gpu]
workgroup_size = 32

[particles]
amount = 5000
anchor = false

[gallery]
scene = "cube"

[metrics]
addr = ":9100"
`))
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.GPU.WorkgroupSize)
	assert.Equal(t, "high", cfg.GPU.Power)
	assert.Equal(t, 5000, cfg.Particles.Amount)
	assert.False(t, cfg.Particles.Anchor)
	assert.Equal(t, float32(0.01), cfg.Particles.Size)
	assert.Equal(t, "cube", cfg.Gallery.Scene)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, 1280, cfg.Window.Width)
}

func TestParseConfig_Rejects(t *testing.T) {
	for name, doc := range map[string]string{
		"workgroup not power of two": "[gpu]\nworkgroup_size = 48\n",
		"workgroup too large":        "[gpu]\nworkgroup_size = 512\n",
		"power":                      "[gpu]\npower = \"turbo\"\n",
		"amount":                     "[balls]\namount = -1\n",
		"size":                       "[particles]\nsize = 0.5\n",
		"window":                     "[window]\nwidth = 0\n",
		"text scale":                 "[text]\nscale = 12.0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := ParseConfig([]byte("[gpu\nworkgroup_size = 32"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "gallery.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\ndebug = true\n"), 0o644))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Log.Debug)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSimConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Particles.Seed = 7
	cfg.Particles.Amount = 12

	opts := cfg.Particles.options(sim.DefaultParticleOptions(), 32)
	assert.Equal(t, 32, opts.WorkgroupSize)
	assert.Equal(t, 12, opts.Amount)
	assert.Equal(t, int64(7), opts.Seed)
	assert.Equal(t, sim.DefaultParticleOptions().Color, opts.Color)
}
