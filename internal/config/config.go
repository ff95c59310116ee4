// Package config loads parforge settings from a YAML file and applies
// defaults. The resulting struct is handed to the runner explicitly; no
// package reads environment variables or globals.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Output struct {
		// Dir receives converted images, sidecars and QC files.
		Dir string `yaml:"dir"`

		// Gzip selects .nii.gz outputs instead of plain .nii.
		Gzip bool `yaml:"gzip"`

		// Overwrite allows clobbering existing outputs. When false a
		// pre-existing output fails that acquisition.
		Overwrite bool `yaml:"overwrite"`
	} `yaml:"output"`

	Processing struct {
		// Workers bounds the number of acquisitions converted in
		// parallel.
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	QC struct {
		// Enabled turns on per-acquisition stats and montage output.
		Enabled bool `yaml:"enabled"`
	} `yaml:"qc"`

	Log struct {
		// Level is a logrus level name: debug, info, warn, error.
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Output.Dir = "derivatives"
	cfg.Output.Gzip = true
	cfg.Processing.Workers = runtime.NumCPU()
	cfg.QC.Enabled = true
	cfg.Log.Level = "info"
	return cfg
}

// Load reads YAML from path on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	if c.Processing.Workers <= 0 {
		return fmt.Errorf("processing.workers must be positive, got %d", c.Processing.Workers)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	return nil
}

// Ext returns the image extension outputs are written with.
func (c *Config) Ext() string {
	if c.Output.Gzip {
		return ".nii.gz"
	}
	return ".nii"
}
