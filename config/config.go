// Package config provides configuration loading and access for the engine
// and its drivers.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devitrification/hoomd-blue/manifold"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Box        BoxConfig        `yaml:"box"`
	Particles  ParticlesConfig  `yaml:"particles"`
	Active     ActiveConfig     `yaml:"active"`
	Constraint ConstraintConfig `yaml:"constraint"`
	Neighbor   NeighborConfig   `yaml:"neighbor"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds run-level parameters.
type SimulationConfig struct {
	DT    float64 `yaml:"dt"`
	Steps int     `yaml:"steps"`
	Seed  uint32  `yaml:"seed"`
}

// BoxConfig holds the periodic box edge lengths.
type BoxConfig struct {
	LX float64 `yaml:"lx"`
	LY float64 `yaml:"ly"`
	LZ float64 `yaml:"lz"`
}

// ParticlesConfig holds group setup parameters.
type ParticlesConfig struct {
	Count           int     `yaml:"count"`
	ForceMagnitude  float64 `yaml:"force_magnitude"`
	TorqueMagnitude float64 `yaml:"torque_magnitude"`
	Speed           float64 `yaml:"speed"` // driver-side advection multiplier
}

// ActiveConfig holds the force/orientation engine parameters.
type ActiveConfig struct {
	RotationDiff           float64 `yaml:"rotation_diff"`
	TwoD                   bool    `yaml:"two_d"`
	OrientationLink        bool    `yaml:"orientation_link"`
	ReverseOrientationLink bool    `yaml:"reverse_orientation_link"`
	Coupling               float64 `yaml:"coupling"`
	Cutoff                 float64 `yaml:"cutoff"`
}

// ConstraintConfig describes the optional ellipsoid constraint surface.
// All-zero radii disable the constraint.
type ConstraintConfig struct {
	Center []float64 `yaml:"center"`
	Radii  []float64 `yaml:"radii"`
}

// NeighborConfig holds neighbor-grid parameters.
type NeighborConfig struct {
	CellSize float64 `yaml:"cell_size"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow int `yaml:"stats_window"`
	PerfWindow  int `yaml:"perf_window"`
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	RotationConst float64 // sqrt(2 * rotation_diff * dt), per-step Gaussian width
	CutoffSq      float64
	Surface       manifold.Ellipsoid
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if
// path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// unmarshal into the same struct - only fields present in the
		// file are overwritten
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

// Validate checks the configuration for construction-time errors.
func (c *Config) Validate() error {
	if c.Simulation.DT <= 0 || math.IsNaN(c.Simulation.DT) {
		return fmt.Errorf("config: simulation.dt must be positive, got %g", c.Simulation.DT)
	}
	if c.Particles.Count <= 0 {
		return fmt.Errorf("config: particles.count must be positive, got %d", c.Particles.Count)
	}
	if c.Particles.ForceMagnitude <= 0 {
		return fmt.Errorf("config: particles.force_magnitude must be positive, got %g", c.Particles.ForceMagnitude)
	}
	if c.Active.RotationDiff < 0 {
		return fmt.Errorf("config: active.rotation_diff must be non-negative, got %g", c.Active.RotationDiff)
	}
	if c.Active.Coupling != 0 {
		if c.Active.Cutoff <= 0 {
			return fmt.Errorf("config: active.coupling requires a positive active.cutoff")
		}
		if c.Neighbor.CellSize <= 0 {
			return fmt.Errorf("config: active.coupling requires a positive neighbor.cell_size")
		}
	}
	if c.Box.LX <= 0 || c.Box.LY <= 0 || c.Box.LZ <= 0 {
		return fmt.Errorf("config: box edges must be positive, got (%g, %g, %g)", c.Box.LX, c.Box.LY, c.Box.LZ)
	}
	if len(c.Constraint.Center) != 0 && len(c.Constraint.Center) != 3 {
		return fmt.Errorf("config: constraint.center needs 3 components, got %d", len(c.Constraint.Center))
	}
	if len(c.Constraint.Radii) != 0 && len(c.Constraint.Radii) != 3 {
		return fmt.Errorf("config: constraint.radii needs 3 components, got %d", len(c.Constraint.Radii))
	}
	if err := c.surface().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Telemetry.StatsWindow < 1 {
		return fmt.Errorf("config: telemetry.stats_window must be at least 1, got %d", c.Telemetry.StatsWindow)
	}
	return nil
}

func (c *Config) surface() manifold.Ellipsoid {
	var e manifold.Ellipsoid
	if len(c.Constraint.Center) == 3 {
		e.Center.X = c.Constraint.Center[0]
		e.Center.Y = c.Constraint.Center[1]
		e.Center.Z = c.Constraint.Center[2]
	}
	if len(c.Constraint.Radii) == 3 {
		e.RX = c.Constraint.Radii[0]
		e.RY = c.Constraint.Radii[1]
		e.RZ = c.Constraint.Radii[2]
	}
	return e
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.RotationConst = math.Sqrt(2 * c.Active.RotationDiff * c.Simulation.DT)
	c.Derived.CutoffSq = c.Active.Cutoff * c.Active.Cutoff
	c.Derived.Surface = c.surface()
}

// WriteYAML saves the configuration to a file, for run provenance.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
