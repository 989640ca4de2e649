package sph

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
)

// lattice returns n^3 water particles spaced dx apart.
func lattice(n int, dx float64) []Particle {
	vol := dx * dx * dx
	ps := make([]Particle, 0, n*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				p := NewParticle(Water, vol)
				p.X = r3.Vec{X: float64(i) * dx, Y: float64(j) * dx, Z: float64(k) * dx}
				ps = append(ps, p)
			}
		}
	}
	return ps
}

func jitter(ps []Particle, amp float64, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := range ps {
		ps[i].X = r3.Add(ps[i].X, r3.Vec{
			X: (rng.Float64() - 0.5) * amp,
			Y: (rng.Float64() - 0.5) * amp,
			Z: (rng.Float64() - 0.5) * amp,
		})
	}
}

func buildPairs(tb interface{ Fatalf(string, ...any) }, ps []Particle, h float64) []Pair {
	buf := make([]Pair, len(ps)*len(ps))
	ix := NewNeighborIndex(h, 2, testPlan)
	k, err := ix.Build(ps, buf)
	if err != nil {
		tb.Fatalf("Build: %v", err)
	}
	return buf[:k]
}
