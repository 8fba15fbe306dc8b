// Package config resolves runtime settings: defaults, then an optional YAML
// file, then COVIDASH_* environment overrides. CLI flags are applied last by
// the command layer.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Data is the path of the case dataset CSV.
	Data string `yaml:"data"`
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
}

func Default() Config {
	return Config{
		Data:   "dataset/covid_19_india.csv",
		Listen: ":8080",
	}
}

// Load resolves the config. path may be empty (no file).
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COVIDASH_DATA"); v != "" {
		c.Data = v
	}
	if v := os.Getenv("COVIDASH_LISTEN"); v != "" {
		c.Listen = v
	}
}
