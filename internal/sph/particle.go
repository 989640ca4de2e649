package sph

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Fluid selects the material constants of a particle.
type Fluid uint8

const (
	Water Fluid = iota
	Air
)

// ReferenceTemperature is the initial particle temperature [K].
const ReferenceTemperature = 293.15

func (f Fluid) String() string {
	switch f {
	case Water:
		return "water"
	case Air:
		return "air"
	default:
		return fmt.Sprintf("fluid(%d)", uint8(f))
	}
}

// ParseFluid maps a fluid name to its tag.
func ParseFluid(s string) (Fluid, error) {
	switch s {
	case "water":
		return Water, nil
	case "air":
		return Air, nil
	}
	return 0, fmt.Errorf("unknown fluid %q", s)
}

func (f Fluid) MarshalText() ([]byte, error) {
	if f > Air {
		return nil, fmt.Errorf("unknown fluid %d", uint8(f))
	}
	return []byte(f.String()), nil
}

func (f *Fluid) UnmarshalText(b []byte) error {
	v, err := ParseFluid(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Particle is one SPH sample. Pair is the exclusive end of the particle's
// block in the shared pair slice.
type Particle struct {
	Volume      float64 // m^3
	Rho0        float64 // reference density, kg/m^3
	Rho         float64
	Viscosity   float64 // Pa s
	SoundSpeed  float64 // m/s
	X           r3.Vec
	V           r3.Vec
	Stress      Tensor
	Accel       r3.Vec
	Energy      float64
	Power       float64
	Temperature float64
	Fluid       Fluid
	Pair        int
}

// NewParticle returns a particle at rest with the material constants of
// fluid at ReferenceTemperature.
func NewParticle(fluid Fluid, volume float64) Particle {
	t := ReferenceTemperature
	p := Particle{
		Volume:      volume,
		Temperature: t,
		Fluid:       fluid,
	}
	// sound speed polynomials take Celsius
	c := t - 273.15
	switch fluid {
	case Air:
		p.Rho0 = 1.225
		p.Viscosity = 1.81e-5
		p.SoundSpeed = 331.3 + 0.6*c
	default:
		p.Rho0 = 1000
		p.Viscosity = 0.001
		p.SoundSpeed = 1402.4 + 5.04*c - 0.057*c*c
	}
	p.Rho = p.Rho0
	return p
}

// Mass is rho times volume at the current density.
func (p *Particle) Mass() float64 {
	return p.Rho * p.Volume
}

// Block returns the half-open pair range owned by particle i.
func Block(ps []Particle, i int) (lo, hi int) {
	if i > 0 {
		lo = ps[i-1].Pair
	}
	return lo, ps[i].Pair
}

// firstNonFinite returns the first axis of v that is NaN or infinite, or -1.
func firstNonFinite(v r3.Vec) int {
	for axis, c := range [3]float64{v.X, v.Y, v.Z} {
		if !isFinite(c) {
			return axis
		}
	}
	return -1
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
