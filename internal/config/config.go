// ============================================================================
// Scenario configuration
// ============================================================================
//
// Package: internal/config
// File: config.go
// Purpose: load and validate the YAML scenario file that drives a run
//
// Layout (configs/default.yaml):
//   mission / baseline / processor   - product naming and MPH fields
//   worker                           - pool size and per-product timeout
//   orbit                            - period, inline ANX list or orbit file
//   slicing / framing                - grid constants per product level
//   payload / resources              - synthetic payload and load simulation
//   journal / inventory / metrics    - persistence and monitoring
//
// Mission constants are written as float seconds and converted once, here,
// to time.Duration rounded to the microsecond. Everything downstream works
// in integer time.
//
// ============================================================================

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ChuLiYu/procsim/internal/grid"
	"github.com/ChuLiYu/procsim/internal/orbit"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the scenario file
const DefaultPath = "configs/default.yaml"

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("config: invalid scenario")

// Config is the complete scenario configuration
type Config struct {
	Mission   string `yaml:"mission"`
	Baseline  int    `yaml:"baseline"`
	OutputDir string `yaml:"output_dir"`
	LogLevel  string `yaml:"log_level"`

	Processor struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"processor"`

	Worker struct {
		WorkerCount int           `yaml:"worker_count"`
		TaskTimeout time.Duration `yaml:"task_timeout"`
	} `yaml:"worker"`

	Orbit OrbitConfig `yaml:"orbit"`

	Slicing GridConfig `yaml:"slicing"`
	Framing GridConfig `yaml:"framing"`

	Payload struct {
		SizeBytes int64 `yaml:"size_bytes"`
	} `yaml:"payload"`

	Resources struct {
		CPUSeconds float64 `yaml:"cpu_seconds"`
		MemoryMB   int     `yaml:"memory_mb"`
	} `yaml:"resources"`

	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Inventory struct {
		Path string `yaml:"path"`
	} `yaml:"inventory"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`

	dir string // directory of the loaded file, for relative paths
}

// OrbitConfig describes where ANX instants come from
type OrbitConfig struct {
	Period      float64  `yaml:"period"`       // seconds
	ANX         []string `yaml:"anx"`          // ISO-8601 instants
	OrbitFile   string   `yaml:"orbit_file"`   // orbit prediction XML, used when anx is empty
	Extrapolate bool     `yaml:"extrapolate"`  // extend the table by whole periods on demand
	FirstOrbit  int      `yaml:"first_orbit"`  // absolute orbit of the earliest inline ANX
}

// GridConfig holds one product level's grid constants, in seconds
type GridConfig struct {
	ProductType  string  `yaml:"product_type"`
	Spacing      float64 `yaml:"spacing"`
	OverlapStart float64 `yaml:"overlap_start"`
	OverlapEnd   float64 `yaml:"overlap_end"`
	MinDuration  float64 `yaml:"min_duration"`
}

// Default returns a configuration with every optional field filled in
func Default() *Config {
	cfg := &Config{
		Mission:   "SIM",
		Baseline:  1,
		OutputDir: "out",
		LogLevel:  "info",
	}
	cfg.Processor.Name = "procsim"
	cfg.Processor.Version = "01.00"
	cfg.Worker.WorkerCount = 4
	cfg.Worker.TaskTimeout = 30 * time.Second
	cfg.Payload.SizeBytes = 1024
	cfg.Metrics.Port = 9090
	return cfg
}

// Load reads path, applies defaults for omitted fields and validates
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	cfg.dir = filepath.Dir(path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration errors before anything runs
func (c *Config) Validate() error {
	if c.Mission == "" {
		return fmt.Errorf("%w: mission is required", ErrInvalid)
	}
	if c.Baseline < 0 || c.Baseline > 99 {
		return fmt.Errorf("%w: baseline must be in [0, 99], got %d", ErrInvalid, c.Baseline)
	}
	if c.Worker.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker.worker_count must be positive", ErrInvalid)
	}
	if c.Worker.TaskTimeout <= 0 {
		return fmt.Errorf("%w: worker.task_timeout must be positive", ErrInvalid)
	}
	if len(c.Orbit.ANX) == 0 && c.Orbit.OrbitFile == "" {
		return fmt.Errorf("%w: orbit.anx or orbit.orbit_file is required", ErrInvalid)
	}
	if c.Payload.SizeBytes < 0 || c.Resources.CPUSeconds < 0 || c.Resources.MemoryMB < 0 {
		return fmt.Errorf("%w: payload and resource sizes must not be negative", ErrInvalid)
	}

	for name, g := range map[string]GridConfig{"slicing": c.Slicing, "framing": c.Framing} {
		if g.ProductType == "" {
			return fmt.Errorf("%w: %s.product_type is required", ErrInvalid, name)
		}
		if err := c.GridFor(g).Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
		}
	}
	return nil
}

// Seconds converts float seconds to a Duration rounded to the microsecond
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1e6)) * time.Microsecond
}

// OrbitalPeriod returns orbit.period as a Duration
func (c *Config) OrbitalPeriod() time.Duration {
	return Seconds(c.Orbit.Period)
}

// GridFor converts a level's constants into engine configuration
func (c *Config) GridFor(g GridConfig) grid.Config {
	return grid.Config{
		OrbitalPeriod: c.OrbitalPeriod(),
		Spacing:       Seconds(g.Spacing),
		OverlapStart:  Seconds(g.OverlapStart),
		OverlapEnd:    Seconds(g.OverlapEnd),
		MinDuration:   Seconds(g.MinDuration),
	}
}

// Resolve returns p relative to the directory of the loaded config file
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// OrbitTable builds the orbit reference table from the inline ANX list or,
// when that is empty, from the orbit prediction file
func (c *Config) OrbitTable() (*orbit.Table, error) {
	tc := orbit.Config{
		Period:      c.OrbitalPeriod(),
		Extrapolate: c.Orbit.Extrapolate,
		FirstOrbit:  c.Orbit.FirstOrbit,
	}

	if len(c.Orbit.ANX) > 0 {
		for i, s := range c.Orbit.ANX {
			t, err := orbit.ParseUTC(s)
			if err != nil {
				return nil, fmt.Errorf("orbit.anx[%d]: %w", i, err)
			}
			tc.ANX = append(tc.ANX, t)
		}
	} else {
		pred, err := orbit.LoadOrbitFile(c.Resolve(c.Orbit.OrbitFile))
		if err != nil {
			return nil, err
		}
		tc.ANX = pred.ANX
		if tc.FirstOrbit == 0 {
			tc.FirstOrbit = pred.FirstOrbit
		}
	}

	return orbit.NewTable(tc)
}

// Engines builds the slicing and framing engines over one shared table
func (c *Config) Engines() (slicing, framing *grid.Engine, err error) {
	table, err := c.OrbitTable()
	if err != nil {
		return nil, nil, err
	}
	if slicing, err = grid.New(c.GridFor(c.Slicing), table); err != nil {
		return nil, nil, fmt.Errorf("slicing: %w", err)
	}
	if framing, err = grid.New(c.GridFor(c.Framing), table); err != nil {
		return nil, nil, fmt.Errorf("framing: %w", err)
	}
	return slicing, framing, nil
}
