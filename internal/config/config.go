// Package config loads service settings from an optional file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore, e.g. PARKING_FACILITY__FLOORS=4.
const EnvPrefix = "PARKING_"

type Config struct {
	Facility     FacilityConfig     `json:"facility"`
	Server       ServerConfig       `json:"server"`
	Reservations ReservationsConfig `json:"reservations"`
	Telemetry    TelemetryConfig    `json:"telemetry"`
	Logging      LoggingConfig      `json:"logging"`
}

// Load reads path when it is not empty, applies environment overrides,
// fills defaults and validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}

	cfg.Facility.SetDefaults()
	cfg.Server.SetDefaults()
	cfg.Reservations.SetDefaults()
	cfg.Telemetry.SetDefaults()
	cfg.Logging.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Facility.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Reservations.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

// envOr returns the environment value of key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
