// Package config reads and writes the denoising.config record that sits next
// to a checkpoint and describes which architecture to rebuild.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/denoise/internal/tensor"
)

// FileName is the conventional name of the configuration record.
const FileName = "denoising.config"

// Defaults.
const (
	DefaultInChannels = 3
	DefaultFeatures   = 32
	DefaultBlocks     = 4
	DefaultKernelSize = 3
	DefaultActivation = "relu"
	DefaultISOScale   = 6400
	DefaultDevice     = "cpu"
)

var (
	defaultDilations = []int{1, 2}
	defaultISOLevels = []float64{100, 200, 400, 800, 1600, 3200, 6400}
)

// Config captures the hyperparameters needed to rebuild a trained model.
type Config struct {
	Model      string    `yaml:"model"`
	InChannels int       `yaml:"in_channels"`
	Features   int       `yaml:"features"`
	Blocks     int       `yaml:"blocks"`
	KernelSize int       `yaml:"kernel_size"`
	Dilations  []int     `yaml:"dilations,flow"`
	Activation string    `yaml:"activation"`
	ISOScale   float64   `yaml:"iso_scale"`
	ISOLevels  []float64 `yaml:"iso_levels,flow"`
	Device     string    `yaml:"device"`
}

// Default returns a config for model with every other field defaulted.
func Default(model string) *Config {
	c := &Config{Model: model}
	c.ApplyDefaults()
	return c
}

// Load reads, defaults and validates a Config from YAML. Unknown fields are
// rejected.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates a YAML document.
func Parse(raw []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // config is not secret
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyDefaults fills every zero-valued field.
func (c *Config) ApplyDefaults() {
	if c.InChannels == 0 {
		c.InChannels = DefaultInChannels
	}
	if c.Features == 0 {
		c.Features = DefaultFeatures
	}
	if c.Blocks == 0 {
		c.Blocks = DefaultBlocks
	}
	if c.KernelSize == 0 {
		c.KernelSize = DefaultKernelSize
	}
	if len(c.Dilations) == 0 {
		c.Dilations = slices.Clone(defaultDilations)
	}
	if c.Activation == "" {
		c.Activation = DefaultActivation
	}
	if c.ISOScale == 0 {
		c.ISOScale = DefaultISOScale
	}
	if len(c.ISOLevels) == 0 {
		c.ISOLevels = slices.Clone(defaultISOLevels)
	}
	if c.Device == "" {
		c.Device = DefaultDevice
	}
}

// Validate verifies the config describes a buildable model. The model name
// itself is resolved by the model registry.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("model must be set")
	}
	switch c.InChannels {
	case 1, 3, 4:
	default:
		return fmt.Errorf("in_channels must be 1, 3 or 4 (got %d)", c.InChannels)
	}
	if c.Features <= 0 {
		return fmt.Errorf("features must be > 0 (got %d)", c.Features)
	}
	if c.Blocks <= 0 {
		return fmt.Errorf("blocks must be > 0 (got %d)", c.Blocks)
	}
	if c.KernelSize <= 0 || c.KernelSize%2 == 0 {
		return fmt.Errorf("kernel_size must be odd and > 0 (got %d)", c.KernelSize)
	}
	if len(c.Dilations) != 2 {
		return fmt.Errorf("dilations must have exactly two entries (got %d)", len(c.Dilations))
	}
	for _, d := range c.Dilations {
		if d <= 0 {
			return fmt.Errorf("dilations must be > 0 (got %v)", c.Dilations)
		}
	}
	switch strings.ToLower(c.Activation) {
	case "relu", "tanh", "sigmoid", "none":
	default:
		return fmt.Errorf("activation must be relu, tanh, sigmoid or none (got %q)", c.Activation)
	}
	if c.ISOScale <= 0 {
		return fmt.Errorf("iso_scale must be > 0 (got %g)", c.ISOScale)
	}
	for i, level := range c.ISOLevels {
		if level <= 0 || (i > 0 && level <= c.ISOLevels[i-1]) {
			return fmt.Errorf("iso_levels must be positive and strictly increasing (got %v)", c.ISOLevels)
		}
	}
	if _, err := tensor.ParseDevice(c.Device); err != nil {
		return err
	}
	return nil
}

// Dilation returns the two per-stage dilations.
func (c *Config) Dilation() [2]int {
	return [2]int{c.Dilations[0], c.Dilations[1]}
}
