package sph

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/parallel"
)

// Acceleration sets every particle's acceleration from the divergence of
// stress. slots is scratch of at least len(ps); particles are written only
// after every gather succeeded.
func Acceleration(plan parallel.Plan, ps []Particle, pairs []Pair, slots []r3.Vec) error {
	err := parallel.For(plan, len(ps), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			a := r3.Scale(1/ps[i].Rho, gather(stressDivergence{}, ps, pairs, i).vector)
			if axis := firstNonFinite(a); axis >= 0 {
				return &DivergenceError{Quantity: QuantityAcceleration, Index: i, Axis: axis}
			}
			slots[i] = a
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i := range ps {
		ps[i].Accel = slots[i]
	}
	return nil
}
