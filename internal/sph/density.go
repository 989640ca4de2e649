package sph

import "github.com/san-kum/sphsim/internal/parallel"

// Density advances the continuity equation by dt. div receives the velocity
// divergence of every particle and is read again by Stress.
func Density(plan parallel.Plan, ps []Particle, pairs []Pair, div []float64, dt float64) error {
	err := parallel.For(plan, len(ps), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			d := gather(velocityDivergence{}, ps, pairs, i).scalar
			if !isFinite(d) {
				return &DivergenceError{Quantity: QuantityDivergence, Index: i, Axis: -1}
			}
			div[i] = d
		}
		return nil
	})
	if err != nil {
		return err
	}

	return parallel.For(plan, len(ps), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			rho := ps[i].Rho - ps[i].Rho*div[i]*dt
			if !isFinite(rho) {
				return &DivergenceError{Quantity: QuantityDensity, Index: i, Axis: -1}
			}
			ps[i].Rho = rho
		}
		return nil
	})
}
