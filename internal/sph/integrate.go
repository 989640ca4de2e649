package sph

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/parallel"
)

// HalfKick advances velocities by half a step of the current acceleration.
func HalfKick(plan parallel.Plan, ps []Particle, dt float64) error {
	return parallel.For(plan, len(ps), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			v := r3.Add(ps[i].V, r3.Scale(0.5*dt, ps[i].Accel))
			if axis := firstNonFinite(v); axis >= 0 {
				return &DivergenceError{Quantity: QuantityVelocity, Index: i, Axis: axis}
			}
			ps[i].V = v
		}
		return nil
	})
}

// Drift advances positions by a full step of the current velocity.
func Drift(plan parallel.Plan, ps []Particle, dt float64) error {
	return parallel.For(plan, len(ps), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			x := r3.Add(ps[i].X, r3.Scale(dt, ps[i].V))
			if axis := firstNonFinite(x); axis >= 0 {
				return &DivergenceError{Quantity: QuantityPosition, Index: i, Axis: axis}
			}
			ps[i].X = x
		}
		return nil
	})
}
