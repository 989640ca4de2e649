package stability

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/parallel"
	"github.com/san-kum/sphsim/internal/sph"
)

// Boundary is the boundary condition applied before every step.
type Boundary uint8

const (
	CavityFlow Boundary = iota + 1
	PoiseuilleFlow
	PeriodicFlow
	LidDrivenCavity
)

var boundaryNames = map[Boundary]string{
	CavityFlow:      "cavity-flow",
	PoiseuilleFlow:  "poiseuille-flow",
	PeriodicFlow:    "periodic-flow",
	LidDrivenCavity: "lid-driven-cavity",
}

func (b Boundary) String() string {
	if s, ok := boundaryNames[b]; ok {
		return s
	}
	return fmt.Sprintf("boundary(%d)", uint8(b))
}

// Boundaries lists every boundary condition in declaration order.
func Boundaries() []Boundary {
	return []Boundary{CavityFlow, PoiseuilleFlow, PeriodicFlow, LidDrivenCavity}
}

// ParseBoundary accepts the kebab-case name, case-insensitively. The
// "liddrivencavity" spelling is accepted as well.
func ParseBoundary(s string) (Boundary, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "liddrivencavity" {
		return LidDrivenCavity, nil
	}
	for b, name := range boundaryNames {
		if name == key {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown boundary condition %q", s)
}

func (b Boundary) MarshalText() ([]byte, error) {
	s, ok := boundaryNames[b]
	if !ok {
		return nil, fmt.Errorf("unknown boundary condition %d", uint8(b))
	}
	return []byte(s), nil
}

func (b *Boundary) UnmarshalText(text []byte) error {
	v, err := ParseBoundary(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Domain is the box the boundary condition acts on.
type Domain struct {
	Length, Width, Height float64
	DX, DY, DZ            float64
	H                     float64 // smoothing length
	ULid                  float64 // lid or peak inflow velocity
}

// Apply imposes b on every particle. Each particle is updated from its own
// position only.
func (b Boundary) Apply(plan parallel.Plan, ps []sph.Particle, d Domain) error {
	var fn func(p *sph.Particle)
	switch b {
	case CavityFlow:
		fn = d.cavity
	case PoiseuilleFlow:
		fn = d.poiseuille
	case PeriodicFlow:
		fn = d.periodic
	case LidDrivenCavity:
		fn = d.lidDriven
	default:
		return fmt.Errorf("unknown boundary condition %d", uint8(b))
	}
	return parallel.For(plan, len(ps), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			fn(&ps[i])
		}
		return nil
	})
}

func outside(v, lo, hi float64) bool {
	return v < lo || v > hi
}

func (d Domain) cavity(p *sph.Particle) {
	switch {
	case p.X.Y > d.Width-d.H:
		p.V = r3.Vec{X: d.ULid}
	case outside(p.X.X, d.DX, d.Length-d.DX), p.X.Y < d.DY, outside(p.X.Z, d.DZ, d.Height-d.DZ):
		p.V = r3.Vec{}
	}
}

func (d Domain) poiseuille(p *sph.Particle) {
	y := p.X.Y
	if outside(y, d.DY, d.Width-d.DY) {
		p.V = r3.Vec{}
		return
	}
	p.V = r3.Vec{X: 4 * d.ULid * y * (d.Width - y) / (d.Width * d.Width)}
}

func (d Domain) periodic(p *sph.Particle) {
	switch {
	case p.X.X < 0:
		p.X.X += d.Length
	case p.X.X > d.Length:
		p.X.X -= d.Length
	}
}

func (d Domain) lidDriven(p *sph.Particle) {
	if p.X.Y > d.Width-d.H {
		p.V = r3.Vec{X: d.ULid}
		return
	}
	p.V = r3.Vec{}
}
