// Package config provides configuration loading and access for the application.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all application configuration. Solver parameters are not
// here; they come from the parameter/geometry files so runs stay
// comparable with existing parameter sets.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Display   DisplayConfig   `yaml:"display"`
	Compute   ComputeConfig   `yaml:"compute"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// DisplayConfig holds visualization settings.
type DisplayConfig struct {
	Field        string  `yaml:"field"`         // initial field: u, v, p, speed, vorticity, cell_type
	Smooth       bool    `yaml:"smooth"`        // bilinear texture sampling instead of nearest
	ColormapGain float64 `yaml:"colormap_gain"` // cubehelix saturation
	ZoomMin      float64 `yaml:"zoom_min"`
	ZoomMax      float64 `yaml:"zoom_max"`
}

// ComputeConfig holds solver dispatch settings.
type ComputeConfig struct {
	Backend         string `yaml:"backend"`           // opencl or cpu
	StepsPerFrame   int    `yaml:"steps_per_frame"`   // solver substeps per rendered frame
	LogEverySteps   int    `yaml:"log_every_steps"`   // substep interval for progress logs
	StatsEverySteps int    `yaml:"stats_every_steps"` // substep interval for perf logging
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	OutputDir           string `yaml:"output_dir"`
	PerfCollectorWindow int    `yaml:"perf_collector_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ScreenW32 float32 // Screen.Width as float32
	ScreenH32 float32 // Screen.Height as float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults
// if path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
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
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) computeDerived() {
	if c.Compute.StepsPerFrame < 1 {
		c.Compute.StepsPerFrame = 1
	}
	if c.Display.ZoomMax < c.Display.ZoomMin {
		c.Display.ZoomMax = c.Display.ZoomMin
	}
	c.Derived.ScreenW32 = float32(c.Screen.Width)
	c.Derived.ScreenH32 = float32(c.Screen.Height)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
