package config

import (
	"fmt"
	"strings"

	"parking-facility/internal/parking"
)

type TelemetryConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"service_name"`
	Endpoint    string `json:"endpoint"`
}

// SetDefaults falls back to the standard OTEL_* variables.
func (c *TelemetryConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = envOr("OTEL_SERVICE_NAME", parking.DefaultServiceName)
	}
	if c.Endpoint == "" {
		c.Endpoint = envOr("OTEL_EXPORTER_OTLP_ENDPOINT", parking.DefaultOTLPEndpoint)
	}
}

type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

func (c LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
		return nil
	}
	return fmt.Errorf("invalid logging.level %q", c.Level)
}
