package sph

import "gonum.org/v1/gonum/spatial/r3"

// contribution is one pair's share of a divergence at its owning particle.
type contribution struct {
	scalar float64
	vector r3.Vec
}

// divergence is a field whose SPH divergence is gathered over a block.
// The set of implementations is closed.
type divergence interface {
	term(ps []Particle, p Pair) contribution
}

// velocityDivergence is (v_i - v_j) . grad W_ij V_j.
type velocityDivergence struct{}

func (velocityDivergence) term(ps []Particle, p Pair) contribution {
	dv := r3.Sub(ps[p.I].V, ps[p.J].V)
	return contribution{scalar: r3.Dot(dv, p.Grad) * ps[p.J].Volume}
}

// stressDivergence is rho_i (sigma_i/rho_i^2 - sigma_j/rho_j^2) grad W_ij V_j.
type stressDivergence struct{}

func (stressDivergence) term(ps []Particle, p Pair) contribution {
	a, b := &ps[p.I], &ps[p.J]
	t := a.Stress.Scale(1 / (a.Rho * a.Rho)).Sub(b.Stress.Scale(1 / (b.Rho * b.Rho)))
	return contribution{vector: r3.Scale(a.Rho*b.Volume, t.MulVec(p.Grad))}
}

func gather(d divergence, ps []Particle, pairs []Pair, i int) contribution {
	lo, hi := Block(ps, i)
	var sum contribution
	for _, p := range pairs[lo:hi] {
		c := d.term(ps, p)
		sum.scalar += c.scalar
		sum.vector = r3.Add(sum.vector, c.vector)
	}
	return sum
}
