package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/sphsim/internal/stability"
	"github.com/san-kum/sphsim/internal/sph"
)

const (
	DefaultMaxParticles     = 60000
	DefaultMaxPairs         = 1500000
	DefaultBoxSize          = 0.5
	DefaultSpacing          = 0.027
	DefaultSmoothingLength  = 0.0324
	DefaultCellScale        = 2.0
	DefaultBeta             = 0.3
	DefaultSmoothingRate    = 0.05
	DefaultDt               = 1e-3
	DefaultOutputStep       = 10
	DefaultMaxStep          = 10000
	DefaultNeighborInterval = 1
	DefaultLidVelocity      = 5.0
	DefaultOutputFile       = "./sim_checkpoint.bin"
)

type Config struct {
	MaxParticles int `yaml:"max_particles"`
	MaxPairs     int `yaml:"max_pairs"`

	Domain   DomainConfig       `yaml:"domain"`
	Boundary stability.Boundary `yaml:"boundary"`
	Fluid    sph.Fluid          `yaml:"fluid"`

	LidVelocity     float64 `yaml:"lid_velocity"`
	SmoothingLength float64 `yaml:"smoothing_length"`
	CellScale       float64 `yaml:"cell_scale"`
	Beta            float64 `yaml:"beta"`
	SmoothingRate   float64 `yaml:"smoothing_rate"`
	Dt              float64 `yaml:"dt"`

	OutputStep       int    `yaml:"output_step"`
	MaxStep          int    `yaml:"max_step"`
	NeighborInterval int    `yaml:"neighbor_interval"`
	Restart          string `yaml:"restart,omitempty"`
	OutputFile       string `yaml:"output_file"`
	Monitor          int    `yaml:"monitor"`
	Workers          int    `yaml:"workers"`
}

// DomainConfig is the box extent and the lattice spacing per axis.
type DomainConfig struct {
	Length float64 `yaml:"length"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	DX     float64 `yaml:"dx"`
	DY     float64 `yaml:"dy"`
	DZ     float64 `yaml:"dz"`
}

// ConfigError names the first invalid field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

func DefaultConfig() *Config {
	return &Config{
		MaxParticles: DefaultMaxParticles,
		MaxPairs:     DefaultMaxPairs,
		Domain: DomainConfig{
			Length: DefaultBoxSize,
			Width:  DefaultBoxSize,
			Height: DefaultBoxSize,
			DX:     DefaultSpacing,
			DY:     DefaultSpacing,
			DZ:     DefaultSpacing,
		},
		Boundary:         stability.CavityFlow,
		Fluid:            sph.Water,
		LidVelocity:      DefaultLidVelocity,
		SmoothingLength:  DefaultSmoothingLength,
		CellScale:        DefaultCellScale,
		Beta:             DefaultBeta,
		SmoothingRate:    DefaultSmoothingRate,
		Dt:               DefaultDt,
		OutputStep:       DefaultOutputStep,
		MaxStep:          DefaultMaxStep,
		NeighborInterval: DefaultNeighborInterval,
		OutputFile:       DefaultOutputFile,
	}
}

// Load reads a run configuration over the defaults. Files ending in .ini or
// .gcfg are parsed as gcfg; anything else as YAML with unknown keys
// rejected. The result is validated.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver is Load with base in place of the defaults. Keys absent from the
// file keep their base value; base itself is not modified.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".gcfg":
		cfg, err = parseGcfg(data, base.Clone())
	default:
		cfg, err = decode(data, base.Clone())
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without validating.
func Parse(data []byte) (*Config, error) {
	return decode(data, DefaultConfig())
}

func decode(data []byte, cfg *Config) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns an independent copy.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

func (c *Config) Validate() error {
	checks := []struct {
		ok     bool
		field  string
		reason string
	}{
		{c.MaxParticles > 0, "max_particles", "must be positive"},
		{c.MaxPairs > 0, "max_pairs", "must be positive"},
		{c.Domain.Length > 0, "domain.length", "must be positive"},
		{c.Domain.Width > 0, "domain.width", "must be positive"},
		{c.Domain.Height > 0, "domain.height", "must be positive"},
		{c.Domain.DX > 0, "domain.dx", "must be positive"},
		{c.Domain.DY > 0, "domain.dy", "must be positive"},
		{c.Domain.DZ > 0, "domain.dz", "must be positive"},
		{validBoundary(c.Boundary), "boundary", "is not a known boundary condition"},
		{c.Fluid == sph.Water || c.Fluid == sph.Air, "fluid", "must be water or air"},
		{c.SmoothingLength > 0, "smoothing_length", "must be positive"},
		{c.CellScale >= 2, "cell_scale", "must be at least 2"},
		{c.Beta >= 0, "beta", "must not be negative"},
		{c.SmoothingRate >= 0 && c.SmoothingRate <= 1, "smoothing_rate", "must be within [0, 1]"},
		{c.Dt > 0, "dt", "must be positive"},
		{c.OutputStep > 0, "output_step", "must be positive"},
		{c.MaxStep >= 0, "max_step", "must not be negative"},
		{c.NeighborInterval >= 0, "neighbor_interval", "must not be negative"},
		{c.OutputFile != "", "output_file", "must be set"},
		{c.Monitor >= 0, "monitor", "must not be negative"},
		{c.Workers >= 0, "workers", "must not be negative"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return &ConfigError{Field: chk.field, Reason: chk.reason}
		}
	}
	return nil
}

func validBoundary(b stability.Boundary) bool {
	for _, v := range stability.Boundaries() {
		if v == b {
			return true
		}
	}
	return false
}

// StabilityDomain is the box seen by the boundary condition.
func (c *Config) StabilityDomain() stability.Domain {
	return stability.Domain{
		Length: c.Domain.Length,
		Width:  c.Domain.Width,
		Height: c.Domain.Height,
		DX:     c.Domain.DX,
		DY:     c.Domain.DY,
		DZ:     c.Domain.DZ,
		H:      c.SmoothingLength,
		ULid:   c.LidVelocity,
	}
}
