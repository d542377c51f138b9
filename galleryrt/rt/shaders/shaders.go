package shaders

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
)

//go:embed particles_compute.wgsl
var ParticlesComputeWGSL string

//go:embed particles_render.wgsl
var ParticlesRenderWGSL string

//go:embed balls_compute.wgsl
var BallsComputeWGSL string

//go:embed balls_render.wgsl
var BallsRenderWGSL string

//go:embed cube.wgsl
var CubeWGSL string

//go:embed grid.wgsl
var GridWGSL string

//go:embed triangle.wgsl
var TriangleWGSL string

//go:embed text.wgsl
var TextWGSL string

const workgroupPlaceholder = "{{WORKGROUP_SIZE}}"

// DefaultWorkgroupSize is the compute workgroup width used unless configured.
const DefaultWorkgroupSize = 64

// ValidWorkgroupSize accepts powers of two from 1 to 256, the WebGPU
// default limit for maxComputeInvocationsPerWorkgroup.
func ValidWorkgroupSize(n int) bool {
	return n >= 1 && n <= 256 && n&(n-1) == 0
}

// WithWorkgroupSize fills the workgroup size placeholder of a compute shader.
func WithWorkgroupSize(src string, size int) (string, error) {
	if !ValidWorkgroupSize(size) {
		return "", fmt.Errorf("invalid workgroup size %d", size)
	}
	if !strings.Contains(src, workgroupPlaceholder) {
		return "", fmt.Errorf("shader has no %s placeholder", workgroupPlaceholder)
	}
	return strings.ReplaceAll(src, workgroupPlaceholder, strconv.Itoa(size)), nil
}
