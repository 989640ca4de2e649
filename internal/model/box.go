// Package model fills the particle pool with an initial configuration.
package model

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/sph"
)

// latticeCount is the number of lattice steps of size d that fit in extent.
func latticeCount(extent, d float64) int {
	// tolerate 0.1/0.01 landing just below 10
	return int(math.Floor(extent/d + 1e-9))
}

// BoxSize returns the lattice dimensions (points per axis) of dom.
func BoxSize(dom config.DomainConfig) (nx, ny, nz int) {
	return latticeCount(dom.Length, dom.DX) + 1,
		latticeCount(dom.Width, dom.DY) + 1,
		latticeCount(dom.Height, dom.DZ) + 1
}

// GenerateBox places particles of fluid on a rectangular lattice spanning
// dom, corners included, and shares the box volume evenly between them. It
// returns the live count. The pool is untouched when it is too small.
func GenerateBox(pool []sph.Particle, dom config.DomainConfig, fluid sph.Fluid) (int, error) {
	nx, ny, nz := BoxSize(dom)
	n := nx * ny * nz
	if n > len(pool) {
		return 0, &sph.CapacityError{What: "particles", Requested: n, Max: len(pool)}
	}

	vol := dom.Length * dom.Width * dom.Height / float64(n)
	idx := 0
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				p := sph.NewParticle(fluid, vol)
				p.X = r3.Vec{X: float64(i) * dom.DX, Y: float64(j) * dom.DY, Z: float64(k) * dom.DZ}
				pool[idx] = p
				idx++
			}
		}
	}
	return n, nil
}
