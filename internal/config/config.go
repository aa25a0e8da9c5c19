// Package config holds the options of a compilation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config drives the compiler driver and the binaries
type Config struct {
	// SIMDWidth is the kernel dispatch width, 8 or 16
	SIMDWidth uint32 `yaml:"simd_width"`
	// PointerSize is 32 or 64
	PointerSize uint32 `yaml:"pointer_size"`
	// LoopCarriedLiveness extends liveness over loop back edges
	LoopCarriedLiveness bool `yaml:"loop_carried_liveness"`
	// StrictValidation checks every appended instruction
	StrictValidation bool `yaml:"strict_validation"`

	DumpIR       bool   `yaml:"dump_ir"`
	DumpLiveness bool   `yaml:"dump_liveness"`
	DumpCFGDir   string `yaml:"dump_cfg_dir"`

	// LogVerbosity is passed to commonlog.Configure
	LogVerbosity int `yaml:"log_verbosity"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		SIMDWidth:        16,
		PointerSize:      32,
		StrictValidation: true,
	}
}

// Load reads a YAML file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.SIMDWidth != 8 && c.SIMDWidth != 16 {
		return fmt.Errorf("simd_width must be 8 or 16, got %d", c.SIMDWidth)
	}
	if c.PointerSize != 32 && c.PointerSize != 64 {
		return fmt.Errorf("pointer_size must be 32 or 64, got %d", c.PointerSize)
	}
	if c.LogVerbosity < 0 {
		return fmt.Errorf("log_verbosity must not be negative, got %d", c.LogVerbosity)
	}
	return nil
}
