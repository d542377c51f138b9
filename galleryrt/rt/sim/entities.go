package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var ErrInvalidParams = errors.New("invalid simulation parameters")

// SpawnBound is the half extent of the cube entities spawn in.
const SpawnBound = 1.0

// Params are the structural inputs of one generation.
type Params struct {
	Count  int
	Radius float32
	// Acceleration adds the per-entity acceleration array.
	Acceleration bool
	// Depth samples z as well as x and y.
	Depth bool
	// Clamp pulls samples with |v| >= 1-Radius back to ±(1-Radius) so
	// entities spawn fully inside the viewport.
	Clamp bool
	// Anchor pins entity Count-1 at the origin, at rest, with its radius
	// scaled by AnchorMultiplier.
	Anchor           bool
	AnchorMultiplier float32
}

func (p Params) Validate() error {
	if p.Count <= 0 {
		return fmt.Errorf("count %d must be positive: %w", p.Count, ErrInvalidParams)
	}
	r := float64(p.Radius)
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return fmt.Errorf("radius %g must be finite and non-negative: %w", p.Radius, ErrInvalidParams)
	}
	if p.Anchor {
		m := float64(p.AnchorMultiplier)
		if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
			return fmt.Errorf("anchor multiplier %g must be finite and positive: %w", p.AnchorMultiplier, ErrInvalidParams)
		}
	}
	return nil
}

// EntitySet holds the per-entity arrays of one generation. Vectors are
// packed as vec4 (x, y, z, 1).
type EntitySet struct {
	Count        int
	Position     []float32
	Velocity     []float32
	Acceleration []float32 // nil when the system has no forcing
	Radius       []float32
}

// Generate samples a fresh entity set. rng must not be nil.
func Generate(p Params, rng *rand.Rand) (*EntitySet, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := p.Count
	e := &EntitySet{
		Count:    n,
		Position: make([]float32, n*4),
		Velocity: make([]float32, n*4),
		Radius:   make([]float32, n),
	}
	if p.Acceleration {
		e.Acceleration = make([]float32, n*4)
	}

	sample := func() float32 {
		v := rng.Float32()*2*SpawnBound - SpawnBound
		if p.Clamp {
			limit := SpawnBound - p.Radius
			if limit < 0 {
				limit = 0
			}
			if v >= limit {
				v = limit
			} else if v <= -limit {
				v = -limit
			}
		}
		return v
	}
	vec := func(dst []float32, i int) {
		dst[i*4] = sample()
		dst[i*4+1] = sample()
		if p.Depth {
			dst[i*4+2] = sample()
		}
		dst[i*4+3] = 1
	}

	for i := 0; i < n; i++ {
		vec(e.Position, i)
		vec(e.Velocity, i)
		if e.Acceleration != nil {
			vec(e.Acceleration, i)
		}
		e.Radius[i] = p.Radius
	}

	if p.Anchor {
		last := n - 1
		for _, arr := range [][]float32{e.Position, e.Velocity, e.Acceleration} {
			if arr == nil {
				continue
			}
			copy(arr[last*4:], []float32{0, 0, 0, 1})
		}
		e.Radius[last] = p.Radius * p.AnchorMultiplier
	}
	return e, nil
}

// Validate checks the array length invariants and that every vector
// component is finite and within bound.
func (e *EntitySet) Validate(bound float32) error {
	n := e.Count
	if n <= 0 {
		return fmt.Errorf("entity count %d: %w", n, ErrInvalidParams)
	}
	if len(e.Position) != n*4 || len(e.Velocity) != n*4 || len(e.Radius) != n {
		return fmt.Errorf("array lengths %d/%d/%d do not match count %d: %w",
			len(e.Position), len(e.Velocity), len(e.Radius), n, ErrInvalidParams)
	}
	if e.Acceleration != nil && len(e.Acceleration) != n*4 {
		return fmt.Errorf("acceleration length %d does not match count %d: %w", len(e.Acceleration), n, ErrInvalidParams)
	}
	for _, arr := range [][]float32{e.Position, e.Velocity, e.Acceleration} {
		for i, v := range arr {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) || v < -bound || v > bound {
				return fmt.Errorf("component %d = %g outside [%g, %g]: %w", i, v, -bound, bound, ErrInvalidParams)
			}
		}
	}
	for i, r := range e.Radius {
		if math.IsNaN(float64(r)) || r < 0 {
			return fmt.Errorf("radius %d = %g: %w", i, r, ErrInvalidParams)
		}
	}
	return nil
}

// Integrate advances every entity by one step of dt the way the compute
// shaders do: velocity picks up acceleration, then position picks up
// velocity. With wrap set, x and y (and z when depth is set) wrap around
// the [-1-r, 1+r] box.
func Integrate(position, velocity, acceleration, radius []float32, count int, dt float32, wrap, depth bool) {
	for i := 0; i < count; i++ {
		o := i * 4
		if acceleration != nil {
			for k := 0; k < 3; k++ {
				velocity[o+k] += acceleration[o+k] * dt
			}
			velocity[o+3] = 1
		}
		for k := 0; k < 3; k++ {
			position[o+k] += velocity[o+k] * dt
		}
		position[o+3] = 1
		if !wrap {
			continue
		}
		axes := 2
		if depth {
			axes = 3
		}
		for k := 0; k < axes; k++ {
			position[o+k] = wrapAxis(position[o+k], radius[i])
		}
	}
}

func wrapAxis(v, r float32) float32 {
	edge := SpawnBound + r
	if v > edge {
		return v - 2*edge
	}
	if v < -edge {
		return v + 2*edge
	}
	return v
}
