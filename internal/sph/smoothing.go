package sph

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/parallel"
)

type smoothingSums struct {
	den    []float64
	vel    []r3.Vec
	stress []Tensor
}

func newSmoothingSums(n int) *smoothingSums {
	return &smoothingSums{
		den:    make([]float64, n),
		vel:    make([]r3.Vec, n),
		stress: make([]Tensor, n),
	}
}

func (s *smoothingSums) add(i int, w float64, src *Particle) {
	s.den[i] += w
	s.vel[i] = r3.Add(s.vel[i], r3.Scale(w, src.V))
	s.stress[i] = s.stress[i].Add(src.Stress.Scale(w))
}

// ConservativeSmoothing blends velocity and stress toward their kernel
// averages over the neighborhood. Particles without neighbors keep their
// fields.
func ConservativeSmoothing(plan parallel.Plan, ps []Particle, pairs []Pair, rate float64) error {
	n := len(ps)
	sums := parallel.Fold(plan, len(pairs),
		func() *smoothingSums { return newSmoothingSums(n) },
		func(s *smoothingSums, lo, hi int) *smoothingSums {
			for _, p := range pairs[lo:hi] {
				if p.I >= p.J {
					continue
				}
				a, b := &ps[p.I], &ps[p.J]
				s.add(p.I, p.W*b.Volume, b)
				s.add(p.J, p.W*a.Volume, a)
			}
			return s
		},
		func(dst, src *smoothingSums) *smoothingSums {
			for i := range dst.den {
				dst.den[i] += src.den[i]
				dst.vel[i] = r3.Add(dst.vel[i], src.vel[i])
				dst.stress[i] = dst.stress[i].Add(src.stress[i])
			}
			return dst
		})

	return parallel.For(plan, n, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			den := sums.den[i]
			if den == 0 {
				continue
			}
			p := &ps[i]
			v := r3.Add(r3.Scale(1-rate, p.V), r3.Scale(rate/den, sums.vel[i]))
			if axis := firstNonFinite(v); axis >= 0 {
				return &DivergenceError{Quantity: QuantityVelocity, Index: i, Axis: axis}
			}
			s := p.Stress.Scale(1 - rate).Add(sums.stress[i].Scale(rate / den))
			if !s.IsFinite() {
				return &DivergenceError{Quantity: QuantityStress, Index: i, Axis: -1}
			}
			p.V, p.Stress = v, s
		}
		return nil
	})
}
