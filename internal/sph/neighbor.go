package sph

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/parallel"
)

// Pair is one directed neighbor relation. Grad is the kernel gradient taken
// along x_j - x_i.
type Pair struct {
	I, J int
	W    float64
	Grad r3.Vec
}

type cellKey [3]int

// Grid is a cell-linked list over a particle slice.
type Grid struct {
	origin r3.Vec
	size   float64
	cells  map[cellKey][]int
}

// NewGrid bins ps into cubic cells of edge size, anchored at the per-axis
// minimum position.
func NewGrid(ps []Particle, size float64) *Grid {
	g := &Grid{size: size, cells: make(map[cellKey][]int)}
	if len(ps) == 0 {
		return g
	}
	g.origin = ps[0].X
	for i := 1; i < len(ps); i++ {
		x := ps[i].X
		g.origin.X = math.Min(g.origin.X, x.X)
		g.origin.Y = math.Min(g.origin.Y, x.Y)
		g.origin.Z = math.Min(g.origin.Z, x.Z)
	}
	for i := range ps {
		k := g.cellOf(ps[i].X)
		g.cells[k] = append(g.cells[k], i)
	}
	return g
}

func (g *Grid) cellOf(x r3.Vec) cellKey {
	d := r3.Sub(x, g.origin)
	return cellKey{
		int(math.Floor(d.X / g.size)),
		int(math.Floor(d.Y / g.size)),
		int(math.Floor(d.Z / g.size)),
	}
}

// collect appends every j within 2h of particle i found in the 27 cells
// around it.
func (g *Grid) collect(ps []Particle, i int, h float64, out []Pair) []Pair {
	cutoff := KernelSupport * h
	cutoff2 := cutoff * cutoff
	xi := ps[i].X
	c := g.cellOf(xi)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				for _, j := range g.cells[cellKey{c[0] + dx, c[1] + dy, c[2] + dz}] {
					if j == i {
						continue
					}
					d := r3.Sub(ps[j].X, xi)
					r2 := r3.Norm2(d)
					if r2 >= cutoff2 {
						continue
					}
					r := math.Sqrt(r2)
					w, dwdq := CubicSpline(r / h)
					p := Pair{I: i, J: j, W: w}
					// coincident particles have no direction
					if r > 0 {
						p.Grad = r3.Scale(dwdq/(h*r), d)
					}
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// NeighborIndex rebuilds the pair list. Candidate buffers are kept between
// builds.
type NeighborIndex struct {
	H         float64
	CellScale float64
	Plan      parallel.Plan

	candidates [][]Pair
}

// NewNeighborIndex returns an index for smoothing length h and cells of
// edge cellScale*h. cellScale must be at least 2.
func NewNeighborIndex(h, cellScale float64, plan parallel.Plan) *NeighborIndex {
	return &NeighborIndex{H: h, CellScale: cellScale, Plan: plan}
}

// Build writes the pairs of ps into buf in increasing I and sets every
// particle's Pair end index. It returns the live pair count. Neither buf
// nor ps is touched when the pairs do not fit.
func (ix *NeighborIndex) Build(ps []Particle, buf []Pair) (int, error) {
	grid := NewGrid(ps, ix.CellScale*ix.H)

	if cap(ix.candidates) < len(ps) {
		ix.candidates = make([][]Pair, len(ps))
	}
	cand := ix.candidates[:len(ps)]

	_ = parallel.For(ix.Plan, len(ps), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			cand[i] = grid.collect(ps, i, ix.H, cand[i][:0])
		}
		return nil
	})

	total := 0
	for i := range cand {
		total += len(cand[i])
	}
	if total > len(buf) {
		return 0, &CapacityError{What: "pairs", Requested: total, Max: len(buf)}
	}
	if total == 0 {
		return 0, ErrDegenerateNeighborhood
	}

	k := 0
	for i := range cand {
		k += copy(buf[k:], cand[i])
		ps[i].Pair = k
	}
	return k, nil
}
