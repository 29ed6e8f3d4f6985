package config

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load builds the effective configuration: the YAML file (if path is
// non-empty and exists) with ${VAR} expansion, then CONFIG_* environment
// overrides, then defaults. Validation is left to the caller since required
// fields depend on the build flavor.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// loadFile reads a YAML config file, expands environment variables, and
// unmarshals into cfg. A missing file is only an error when the path was
// explicitly requested by the caller; Load passes "" to skip.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays CONFIG_* environment variables onto cfg.
// Only variables that are actually set override file values.
func applyEnv(cfg *Config) error {
	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(Duration{}): parseDuration,
		},
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("invalid environment configuration: %w", err)
	}
	return nil
}

// parseDuration parses a Duration from an env var string like "30s".
func parseDuration(v string) (any, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", v, err)
	}
	return Duration{Duration: d}, nil
}
