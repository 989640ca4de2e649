package sph

import (
	"math"

	"github.com/san-kum/sphsim/internal/parallel"
)

// TaitGamma is the stiffness exponent of the equation of state.
const TaitGamma = 7.0

// Pressure evaluates the Tait equation of state.
func Pressure(p *Particle) float64 {
	c0 := p.SoundSpeed
	return p.Rho0 * c0 * c0 / TaitGamma * (math.Pow(p.Rho/p.Rho0, TaitGamma) - 1)
}

// Stress folds pressure and the volumetric rate term into each particle's
// stress and scales it by the particle viscosity. div comes from Density.
func Stress(plan parallel.Plan, ps []Particle, div []float64) error {
	return parallel.For(plan, len(ps), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			p := &ps[i]
			s := p.Stress.Add(ScaledIdentity(-Pressure(p)))
			s = s.Add(ScaledIdentity(-div[i] * 2 / 3)).Scale(p.Viscosity)
			if !s.IsFinite() {
				return &DivergenceError{Quantity: QuantityStress, Index: i, Axis: -1}
			}
			p.Stress = s
		}
		return nil
	})
}
