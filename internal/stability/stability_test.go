package stability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphsim/internal/parallel"
	"github.com/san-kum/sphsim/internal/sph"
)

var plan = parallel.Plan{Workers: 3, MinChunk: 1}

func particles(n int) []sph.Particle {
	ps := make([]sph.Particle, n)
	for i := range ps {
		ps[i] = sph.NewParticle(sph.Water, 1e-6)
	}
	return ps
}

func TestCFL(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		sound float64
		dt    float64
		want  float64
	}{
		{"sound limited", 0, 1500, 1e-3, 0.3 * 0.01 / 1500},
		{"velocity adds", 500, 1500, 1e-3, 0.3 * 0.01 / 2000},
		{"dt already small", 0, 1500, 1e-9, 1e-9},
		{"no signal", 0, 0, 1e-3, 1e-3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := particles(10)
			for i := range ps {
				ps[i].SoundSpeed = tt.sound
			}
			ps[7].V = r3.Vec{X: 0.6 * tt.speed, Y: 0.8 * tt.speed}

			got := CFL(plan, ps, tt.dt, 0.01)
			assert.InDelta(t, tt.want, got, 1e-15)
			assert.LessOrEqual(t, got, tt.dt)
		})
	}
}

func TestMaxSpeedsUsesMagnitude(t *testing.T) {
	ps := particles(5)
	ps[1].V = r3.Vec{X: 3, Y: -4}
	ps[3].V = r3.Vec{Z: -4.5}
	v, c := MaxSpeeds(plan, ps)
	assert.InDelta(t, 5.0, v, 1e-12)
	assert.Equal(t, ps[0].SoundSpeed, c)
}

func testDomain() Domain {
	return Domain{Length: 1, Width: 1, Height: 1, DX: 0.1, DY: 0.1, DZ: 0.1, H: 0.12, ULid: 2}
}

func at(x, y, z float64) sph.Particle {
	p := sph.NewParticle(sph.Water, 1e-6)
	p.X = r3.Vec{X: x, Y: y, Z: z}
	p.V = r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	return p
}

func TestCavityFlow(t *testing.T) {
	ps := []sph.Particle{
		at(0.5, 0.95, 0.5), // lid
		at(0.05, 0.5, 0.5), // left wall
		at(0.5, 0.05, 0.5), // floor
		at(0.5, 0.5, 0.95), // back wall
		at(0.5, 0.5, 0.5),  // interior
	}
	require.NoError(t, CavityFlow.Apply(plan, ps, testDomain()))

	assert.Equal(t, r3.Vec{X: 2}, ps[0].V)
	assert.Equal(t, r3.Vec{}, ps[1].V)
	assert.Equal(t, r3.Vec{}, ps[2].V)
	assert.Equal(t, r3.Vec{}, ps[3].V)
	assert.Equal(t, r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, ps[4].V)
}

func TestPoiseuilleFlow(t *testing.T) {
	ps := []sph.Particle{at(0.5, 0.5, 0.5), at(0.5, 0.25, 0.5), at(0.5, 0.05, 0.5)}
	require.NoError(t, PoiseuilleFlow.Apply(plan, ps, testDomain()))

	assert.InDelta(t, 2.0, ps[0].V.X, 1e-12)
	assert.InDelta(t, 4*2*0.25*0.75, ps[1].V.X, 1e-12)
	assert.Zero(t, ps[1].V.Y)
	assert.Equal(t, r3.Vec{}, ps[2].V)
}

func TestPeriodicFlow(t *testing.T) {
	ps := []sph.Particle{at(-0.1, 0.5, 0.5), at(1.25, 0.5, 0.5), at(0.4, 0.5, 0.5)}
	require.NoError(t, PeriodicFlow.Apply(plan, ps, testDomain()))

	assert.InDelta(t, 0.9, ps[0].X.X, 1e-12)
	assert.InDelta(t, 0.25, ps[1].X.X, 1e-12)
	assert.Equal(t, 0.4, ps[2].X.X)
	assert.Equal(t, r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, ps[2].V)
}

func TestLidDrivenCavity(t *testing.T) {
	ps := []sph.Particle{at(0.5, 0.95, 0.5), at(0.5, 0.5, 0.5)}
	require.NoError(t, LidDrivenCavity.Apply(plan, ps, testDomain()))

	assert.Equal(t, r3.Vec{X: 2}, ps[0].V)
	assert.Equal(t, r3.Vec{}, ps[1].V)
}

func TestParseBoundary(t *testing.T) {
	for _, b := range Boundaries() {
		got, err := ParseBoundary(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}

	got, err := ParseBoundary("LidDrivenCavity")
	require.NoError(t, err)
	assert.Equal(t, LidDrivenCavity, got)

	got, err = ParseBoundary("Cavity-Flow")
	require.NoError(t, err)
	assert.Equal(t, CavityFlow, got)

	_, err = ParseBoundary("slip-wall")
	assert.Error(t, err)
	assert.Error(t, Boundary(0).Apply(plan, nil, testDomain()))
}
