// Package config loads the sizeview configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sizeview/sizeview/internal/logging"
)

// Config is the on-disk configuration. Command-line flags override it.
type Config struct {
	Concurrency int            `yaml:"concurrency"`  // admission cap for scan tasks, 0 = number of CPUs
	Wrap        bool           `yaml:"wrap"`         // wrap single-step moves at the ends of a listing
	OnError     string         `yaml:"on_error"`     // partial or abort
	Exclude     []string       `yaml:"exclude"`      // glob patterns matched against names and paths
	Watch       bool           `yaml:"watch"`        // flag the viewed directory when it changes on disk
	MetricsAddr string         `yaml:"metrics_addr"` // serve Prometheus metrics here when set
	Log         logging.Config `yaml:"log"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		OnError: "partial",
		Watch:   true,
		Log:     logging.Config{Level: "info"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/sizeview/config.yaml, falling back to
// ~/.config.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "sizeview", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sizeview", "config.yaml"), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	switch c.OnError {
	case "", "partial", "abort":
	default:
		return fmt.Errorf("on_error must be partial or abort, got %q", c.OnError)
	}
	return nil
}
