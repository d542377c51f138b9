package shaders

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithWorkgroupSize(t *testing.T) {
	for _, size := range []int{32, 64} {
		src, err := WithWorkgroupSize(ParticlesComputeWGSL, size)
		require.NoError(t, err)
		assert.NotContains(t, src, workgroupPlaceholder)
		assert.Contains(t, src, "@workgroup_size("+strconv.Itoa(size)+")")
	}

	_, err := WithWorkgroupSize(BallsComputeWGSL, 48)
	assert.Error(t, err)
	_, err = WithWorkgroupSize(CubeWGSL, 64)
	assert.Error(t, err, "render shaders carry no placeholder")
}

func TestEmbeddedShadersHaveEntryPoints(t *testing.T) {
	for name, src := range map[string]string{
		"particles_render": ParticlesRenderWGSL,
		"balls_render":     BallsRenderWGSL,
		"cube":             CubeWGSL,
		"grid":             GridWGSL,
		"triangle":         TriangleWGSL,
		"text":             TextWGSL,
	} {
		assert.True(t, strings.Contains(src, "fn vs_main"), name)
		assert.True(t, strings.Contains(src, "fn fs_main"), name)
	}
	assert.Contains(t, ParticlesComputeWGSL, "fn compute_main")
	assert.Contains(t, BallsComputeWGSL, "fn compute_main")
}

func TestValidWorkgroupSize(t *testing.T) {
	assert.True(t, ValidWorkgroupSize(1))
	assert.True(t, ValidWorkgroupSize(256))
	assert.False(t, ValidWorkgroupSize(0))
	assert.False(t, ValidWorkgroupSize(512))
	assert.False(t, ValidWorkgroupSize(96))
}
