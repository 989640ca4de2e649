package config

import (
	"gopkg.in/gcfg.v1"

	"github.com/san-kum/sphsim/internal/stability"
	"github.com/san-kum/sphsim/internal/sph"
)

// gcfgFile is the INI layout:
//
//	[capacity]
//	max-particles = 60000
//	[domain]
//	length = 0.5
//	[physics]
//	boundary = lid-driven-cavity
//	[run]
//	max-step = 500
type gcfgFile struct {
	Capacity struct {
		MaxParticles int `gcfg:"max-particles"`
		MaxPairs     int `gcfg:"max-pairs"`
	}
	Domain struct {
		Length float64
		Width  float64
		Height float64
		DX     float64 `gcfg:"dx"`
		DY     float64 `gcfg:"dy"`
		DZ     float64 `gcfg:"dz"`
	}
	Physics struct {
		Boundary        stability.Boundary
		Fluid           sph.Fluid
		LidVelocity     float64 `gcfg:"lid-velocity"`
		SmoothingLength float64 `gcfg:"smoothing-length"`
		CellScale       float64 `gcfg:"cell-scale"`
		Beta            float64
		SmoothingRate   float64 `gcfg:"smoothing-rate"`
		Dt              float64
	}
	Run struct {
		OutputStep       int    `gcfg:"output-step"`
		MaxStep          int    `gcfg:"max-step"`
		NeighborInterval int    `gcfg:"neighbor-interval"`
		Restart          string
		OutputFile       string `gcfg:"output-file"`
		Monitor          int
		Workers          int
	}
}

func parseGcfg(data []byte, cfg *Config) (*Config, error) {
	var f gcfgFile
	f.fill(cfg)
	if err := gcfg.ReadStringInto(&f, string(data)); err != nil {
		return nil, err
	}
	f.apply(cfg)
	return cfg, nil
}

func (f *gcfgFile) fill(c *Config) {
	f.Capacity.MaxParticles = c.MaxParticles
	f.Capacity.MaxPairs = c.MaxPairs
	f.Domain.Length = c.Domain.Length
	f.Domain.Width = c.Domain.Width
	f.Domain.Height = c.Domain.Height
	f.Domain.DX = c.Domain.DX
	f.Domain.DY = c.Domain.DY
	f.Domain.DZ = c.Domain.DZ
	f.Physics.Boundary = c.Boundary
	f.Physics.Fluid = c.Fluid
	f.Physics.LidVelocity = c.LidVelocity
	f.Physics.SmoothingLength = c.SmoothingLength
	f.Physics.CellScale = c.CellScale
	f.Physics.Beta = c.Beta
	f.Physics.SmoothingRate = c.SmoothingRate
	f.Physics.Dt = c.Dt
	f.Run.OutputStep = c.OutputStep
	f.Run.MaxStep = c.MaxStep
	f.Run.NeighborInterval = c.NeighborInterval
	f.Run.Restart = c.Restart
	f.Run.OutputFile = c.OutputFile
	f.Run.Monitor = c.Monitor
	f.Run.Workers = c.Workers
}

func (f *gcfgFile) apply(c *Config) {
	c.MaxParticles = f.Capacity.MaxParticles
	c.MaxPairs = f.Capacity.MaxPairs
	c.Domain = DomainConfig{
		Length: f.Domain.Length,
		Width:  f.Domain.Width,
		Height: f.Domain.Height,
		DX:     f.Domain.DX,
		DY:     f.Domain.DY,
		DZ:     f.Domain.DZ,
	}
	c.Boundary = f.Physics.Boundary
	c.Fluid = f.Physics.Fluid
	c.LidVelocity = f.Physics.LidVelocity
	c.SmoothingLength = f.Physics.SmoothingLength
	c.CellScale = f.Physics.CellScale
	c.Beta = f.Physics.Beta
	c.SmoothingRate = f.Physics.SmoothingRate
	c.Dt = f.Physics.Dt
	c.OutputStep = f.Run.OutputStep
	c.MaxStep = f.Run.MaxStep
	c.NeighborInterval = f.Run.NeighborInterval
	c.Restart = f.Run.Restart
	c.OutputFile = f.Run.OutputFile
	c.Monitor = f.Run.Monitor
	c.Workers = f.Run.Workers
}
