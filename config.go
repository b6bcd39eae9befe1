// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the file form of a Dock's settings.
type Config struct {
	Version       string        `yaml:"version"`
	Address       string        `yaml:"address"`
	Transport     string        `yaml:"transport"`
	SchemaDir     string        `yaml:"schema_dir"`
	FailurePolicy string        `yaml:"failure_policy"`
	Logging       LoggingConfig `yaml:"logging"`
	Metrics       MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the logger built by NewLogger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Version:       DefaultVersion,
		Address:       DefaultAddress,
		Transport:     DefaultTransport,
		SchemaDir:     "schemas",
		FailurePolicy: FailFast.String(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Path: DefaultMetricsPath,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Environment
// variables in the file are expanded.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	var errs []error
	if c.Version == "" {
		errs = append(errs, errors.New("version is required"))
	}
	if c.Address == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if !HasTransport(c.Transport) {
		errs = append(errs, fmt.Errorf("transport %q is not available (have %v)", c.Transport, AvailableTransports()))
	}
	if _, err := ParseFailurePolicy(c.FailurePolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
			errs = append(errs, fmt.Errorf("logging level: %w", err))
		}
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging format %q must be json or console", c.Logging.Format))
	}
	return errors.Join(errs...)
}
