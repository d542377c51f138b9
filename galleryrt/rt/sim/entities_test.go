package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Validate(t *testing.T) {
	ok := Params{Count: 1, Radius: 0.01}
	assert.NoError(t, ok.Validate())

	for name, p := range map[string]Params{
		"zero count":      {Count: 0, Radius: 0.01},
		"negative radius": {Count: 10, Radius: -1},
		"nan radius":      {Count: 10, Radius: float32(math.NaN())},
		"inf radius":      {Count: 10, Radius: float32(math.Inf(1))},
		"bad multiplier":  {Count: 10, Radius: 0.01, Anchor: true},
	} {
		assert.ErrorIs(t, p.Validate(), ErrInvalidParams, name)
	}
}

func TestGenerate_LengthsAndBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e, err := Generate(Params{Count: 257, Radius: 0.05, Acceleration: true, Depth: true}, rng)
	require.NoError(t, err)

	assert.Len(t, e.Position, 257*4)
	assert.Len(t, e.Velocity, 257*4)
	assert.Len(t, e.Acceleration, 257*4)
	assert.Len(t, e.Radius, 257)
	require.NoError(t, e.Validate(SpawnBound))

	for i := 0; i < e.Count; i++ {
		assert.Equal(t, float32(1), e.Position[i*4+3])
		assert.Equal(t, float32(0.05), e.Radius[i])
	}
}

func TestGenerate_NoAccelerationWithoutForcing(t *testing.T) {
	e, err := Generate(Params{Count: 4, Radius: 0.1}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Nil(t, e.Acceleration)
	for i := 0; i < e.Count; i++ {
		assert.Zero(t, e.Position[i*4+2], "flat systems keep z at zero")
	}
}

func TestGenerate_ClampKeepsEntitiesInside(t *testing.T) {
	const r = 0.3
	e, err := Generate(Params{Count: 2000, Radius: r, Clamp: true}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	for i := 0; i < e.Count; i++ {
		for k := 0; k < 2; k++ {
			v := e.Position[i*4+k]
			assert.LessOrEqual(t, v, float32(1-r))
			assert.GreaterOrEqual(t, v, float32(-(1 - r)))
		}
	}
}

func TestGenerate_AnchorOnSingleEntity(t *testing.T) {
	e, err := Generate(Params{
		Count:            1,
		Radius:           0.02,
		Acceleration:     true,
		Anchor:           true,
		AnchorMultiplier: 3,
	}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.InDelta(t, 0.06, e.Radius[0], 1e-7)
	assert.Equal(t, []float32{0, 0, 0, 1}, e.Position[:4])
	assert.Equal(t, []float32{0, 0, 0, 1}, e.Velocity[:4])
	assert.Equal(t, []float32{0, 0, 0, 1}, e.Acceleration[:4])
}

func TestEntitySet_ValidateRejectsBadArrays(t *testing.T) {
	e := &EntitySet{Count: 2, Position: make([]float32, 8), Velocity: make([]float32, 4), Radius: make([]float32, 2)}
	assert.ErrorIs(t, e.Validate(1), ErrInvalidParams)

	e.Velocity = make([]float32, 8)
	e.Position[5] = float32(math.Inf(-1))
	assert.ErrorIs(t, e.Validate(1), ErrInvalidParams)

	e.Position[5] = 0.5
	assert.NoError(t, e.Validate(1))
}

func TestIntegrate_EulerStep(t *testing.T) {
	pos := []float32{0, 0, 0, 1}
	vel := []float32{1, -2, 0, 1}
	acc := []float32{10, 0, 0, 1}
	Integrate(pos, vel, acc, []float32{0.1}, 1, 0.1, false, false)

	assert.InDelta(t, 2.0, vel[0], 1e-6)
	assert.InDelta(t, 0.2, pos[0], 1e-6)
	assert.InDelta(t, -0.2, pos[1], 1e-6)
}

func TestIntegrate_WrapsAroundEdges(t *testing.T) {
	pos := []float32{1.05, -1.05, 1.5, 1}
	vel := []float32{0.1, -0.1, 1, 1}
	Integrate(pos, vel, nil, []float32{0.1}, 1, 1, true, false)

	assert.InDelta(t, 1.15-2.2, pos[0], 1e-6)
	assert.InDelta(t, -1.15+2.2, pos[1], 1e-6)
	assert.InDelta(t, 2.5, pos[2], 1e-6, "z only wraps with depth")
}

func TestWorkgroups(t *testing.T) {
	assert.Equal(t, uint32(1), Workgroups(1, 64))
	assert.Equal(t, uint32(1), Workgroups(64, 64))
	assert.Equal(t, uint32(2), Workgroups(65, 64))
	assert.Equal(t, uint32(4), Workgroups(200, 64))
	assert.Equal(t, uint32(0), Workgroups(0, 64))
}
