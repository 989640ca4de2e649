package config

import (
	"sort"

	"github.com/san-kum/sphsim/internal/stability"
)

// Presets adjust the defaults for a named scenario.
var Presets = map[string]func(*Config){
	"cavity": func(c *Config) {},
	"lid-driven": func(c *Config) {
		c.Boundary = stability.LidDrivenCavity
		c.LidVelocity = 1
	},
	"poiseuille": func(c *Config) {
		c.Boundary = stability.PoiseuilleFlow
		c.Domain.Length = 1.0
		c.Domain.Width = 0.25
		c.Domain.Height = 0.25
		c.LidVelocity = 0.5
	},
	"periodic": func(c *Config) {
		c.Boundary = stability.PeriodicFlow
		c.Domain.Length = 1.0
		c.Domain.Width = 0.25
		c.Domain.Height = 0.25
	},
	"small": func(c *Config) {
		c.Domain.Length = 0.1
		c.Domain.Width = 0.1
		c.Domain.Height = 0.1
		c.Domain.DX = 0.01
		c.Domain.DY = 0.01
		c.Domain.DZ = 0.01
		c.SmoothingLength = 0.012
		c.MaxParticles = 2000
		c.MaxPairs = 200000
		c.MaxStep = 200
	},
}

// GetPreset returns the defaults with the named preset applied, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	fn(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
