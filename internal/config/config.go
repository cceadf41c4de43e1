// Package config loads and validates the pipeline configuration file.
// Every recognized option is an explicit field; validation happens once at
// load time, never on access.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface of the harmonic pipeline.
type Config struct {
	Dirs struct {
		// Clip and ARD are per-tile working directories; the tile index is
		// appended as "<dir>_<tile>".
		Clip  string `yaml:"dir_clip"`
		ARD   string `yaml:"dir_ard"`
		Dst   string `yaml:"dst_dir"`
		Coefs string `yaml:"dir_coefs"`
	} `yaml:"dirs"`

	Harmonic struct {
		Frequency        int     `yaml:"harmonic_frequency"` // e.g. 365
		Pairs            int     `yaml:"harmonic_pairs"`
		Alpha            float64 `yaml:"alpha"`
		Kernel           int     `yaml:"kernel"`
		Eps              float64 `yaml:"eps"`
		MaxIter          int     `yaml:"max_iter"`
		KeepIntermediate bool    `yaml:"keep_mid"`
	} `yaml:"harmonic"`

	Parallel struct {
		// Workers is an integer or the string "default", meaning one
		// worker per available CPU.
		Workers string `yaml:"threads_number"`
	} `yaml:"parallel"`

	Output struct {
		Format string `yaml:"format"` // GTiff or ENVI
	} `yaml:"output"`

	Polarizations []string `yaml:"polarizations"`
}

// Load reads, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Harmonic.Frequency == 0 {
		c.Harmonic.Frequency = 365
	}
	if c.Harmonic.MaxIter == 0 {
		c.Harmonic.MaxIter = 10000
	}
	if c.Parallel.Workers == "" {
		c.Parallel.Workers = "default"
	}
	if c.Output.Format == "" {
		c.Output.Format = "GTiff"
	}
	if len(c.Polarizations) == 0 {
		c.Polarizations = []string{"VV", "VH"}
	}
}

// Validate checks every option and names the first violation.
func (c *Config) Validate() error {
	if c.Dirs.Clip == "" || c.Dirs.ARD == "" || c.Dirs.Dst == "" || c.Dirs.Coefs == "" {
		return fmt.Errorf("dirs: dir_clip, dir_ard, dst_dir and dir_coefs are all required")
	}
	if c.Harmonic.Frequency <= 0 {
		return fmt.Errorf("harmonic_frequency must be positive, got %d", c.Harmonic.Frequency)
	}
	if c.Harmonic.Pairs < 1 {
		return fmt.Errorf("harmonic_pairs must be at least 1, got %d", c.Harmonic.Pairs)
	}
	if c.Harmonic.Alpha < 0 {
		return fmt.Errorf("alpha must be non-negative, got %g", c.Harmonic.Alpha)
	}
	if c.Harmonic.Kernel <= 0 || c.Harmonic.Kernel%2 == 0 {
		return fmt.Errorf("kernel must be positive odd, got %d", c.Harmonic.Kernel)
	}
	if c.Harmonic.Eps < 0 {
		return fmt.Errorf("eps must be non-negative, got %g", c.Harmonic.Eps)
	}
	if c.Harmonic.MaxIter < 1 {
		return fmt.Errorf("max_iter must be positive, got %d", c.Harmonic.MaxIter)
	}
	if _, err := parseWorkers(c.Parallel.Workers); err != nil {
		return err
	}
	if c.Output.Format != "GTiff" && c.Output.Format != "ENVI" {
		return fmt.Errorf("output format must be GTiff or ENVI, got %q", c.Output.Format)
	}
	return nil
}

// Workers resolves the configured worker capacity to a concrete count.
func (c *Config) Workers() int {
	n, _ := parseWorkers(c.Parallel.Workers)
	return n
}

func parseWorkers(s string) (int, error) {
	if s == "default" {
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("threads_number must be a positive integer or \"default\", got %q", s)
	}
	return n, nil
}

// ClipDir returns the clip directory for one tile.
func (c *Config) ClipDir(tile string) string { return c.Dirs.Clip + "_" + tile }

// ARDDir returns the analysis-ready-data directory for one tile.
func (c *Config) ARDDir(tile string) string { return c.Dirs.ARD + "_" + tile }
