package sph

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/parallel"
)

// ArtificialViscosity adds the Monaghan pressure term to the stress of both
// particles of every approaching pair.
func ArtificialViscosity(plan parallel.Plan, ps []Particle, pairs []Pair, h, beta float64) error {
	n := len(ps)
	eps2 := 0.01 * h * h

	acc := parallel.Fold(plan, len(pairs),
		func() []Tensor { return make([]Tensor, n) },
		func(buf []Tensor, lo, hi int) []Tensor {
			for _, p := range pairs[lo:hi] {
				if p.I >= p.J {
					continue
				}
				a, b := &ps[p.I], &ps[p.J]
				xij := r3.Sub(a.X, b.X)
				vx := r3.Dot(r3.Sub(a.V, b.V), xij)
				if vx >= 0 {
					continue
				}
				mu := h * vx / (r3.Norm2(xij) + eps2)
				rho := 0.5 * (a.Rho + b.Rho)
				c := 0.5 * (a.SoundSpeed + b.SoundSpeed)
				pi := (-beta*c*mu + beta*mu*mu) / rho
				t := ScaledIdentity(-pi)
				buf[p.I] = buf[p.I].Add(t)
				buf[p.J] = buf[p.J].Add(t)
			}
			return buf
		},
		func(dst, src []Tensor) []Tensor {
			for i := range dst {
				dst[i] = dst[i].Add(src[i])
			}
			return dst
		})

	return parallel.For(plan, n, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			s := ps[i].Stress.Add(acc[i])
			if !s.IsFinite() {
				return &DivergenceError{Quantity: QuantityStress, Index: i, Axis: -1}
			}
			ps[i].Stress = s
		}
		return nil
	})
}
