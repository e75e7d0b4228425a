package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML decoding; durations are written as
// strings such as "168h".
type fileConfig struct {
	Config   `yaml:",inline"`
	TokenTTL string `yaml:"token_ttl"`
}

func loadYAML(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := fileConfig{Config: *cfg}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.TokenTTL != "" {
		d, err := time.ParseDuration(fc.TokenTTL)
		if err != nil {
			return fmt.Errorf("config file token_ttl: %w", err)
		}
		fc.Config.TokenTTL = d
	}

	*cfg = fc.Config
	return nil
}
