// Package stability bounds the explicit time step and applies the boundary
// condition of a run.
package stability

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/parallel"
	"github.com/san-kum/sphsim/internal/sph"
)

// Courant is the CFL number.
const Courant = 0.3

type speeds struct {
	v, c float64
}

// MaxSpeeds returns the largest particle speed and sound speed.
func MaxSpeeds(plan parallel.Plan, ps []sph.Particle) (vmax, cmax float64) {
	s := parallel.Fold(plan, len(ps),
		func() speeds { return speeds{} },
		func(acc speeds, lo, hi int) speeds {
			for i := lo; i < hi; i++ {
				acc.v = math.Max(acc.v, r3.Norm(ps[i].V))
				acc.c = math.Max(acc.c, ps[i].SoundSpeed)
			}
			return acc
		},
		func(dst, src speeds) speeds {
			return speeds{v: math.Max(dst.v, src.v), c: math.Max(dst.c, src.c)}
		})
	return s.v, s.c
}

// CFL returns min(dt, Courant*h/(vmax+cmax)). dt is returned unchanged when
// no particle moves and no sound speed is set.
func CFL(plan parallel.Plan, ps []sph.Particle, dt, h float64) float64 {
	vmax, cmax := MaxSpeeds(plan, ps)
	signal := vmax + cmax
	if !(signal > 0) {
		return dt
	}
	return math.Min(dt, Courant*h/signal)
}
