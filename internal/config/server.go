package config

import (
	"fmt"
	"strconv"
	"time"
)

type ServerConfig struct {
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Port == 0 {
		if p, err := strconv.Atoi(envOr("PORT", "8080")); err == nil {
			c.Port = p
		}
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Port)
	}
	return nil
}

func (c ServerConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

type ReservationsConfig struct {
	SweepInterval time.Duration `json:"sweep_interval"`
	// MaxDuration caps a single reservation.
	MaxDuration time.Duration `json:"max_duration"`
}

func (c *ReservationsConfig) SetDefaults() {
	if c.SweepInterval == 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = 24 * time.Hour
	}
}

func (c ReservationsConfig) Validate() error {
	if c.SweepInterval < time.Second {
		return fmt.Errorf("reservations.sweep_interval must be at least 1s, got %s", c.SweepInterval)
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("reservations.max_duration must be positive, got %s", c.MaxDuration)
	}
	return nil
}
