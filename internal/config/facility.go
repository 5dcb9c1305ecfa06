package config

import (
	"fmt"
	"time"

	"parking-facility/internal/parking"
)

type FacilityConfig struct {
	// ID prefixes ticket numbers. Generated when empty.
	ID           string         `json:"id"`
	Floors       int            `json:"floors"`
	SpotsPerSize map[string]int `json:"spots_per_size"`
	// Timezone is an IANA name used to evaluate time-of-day discounts.
	Timezone string `json:"timezone"`
}

func (c *FacilityConfig) SetDefaults() {
	if c.Floors == 0 {
		c.Floors = 3
	}
	if len(c.SpotsPerSize) == 0 {
		c.SpotsPerSize = map[string]int{
			"compact":   10,
			"standard":  20,
			"oversized": 5,
		}
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
}

func (c FacilityConfig) Validate() error {
	if c.Floors <= 0 {
		return fmt.Errorf("facility.floors must be positive, got %d", c.Floors)
	}
	if _, err := c.Layout(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Layout converts the per-size counts into typed sizes.
func (c FacilityConfig) Layout() (map[parking.SpotSize]int, error) {
	layout := make(map[parking.SpotSize]int, len(c.SpotsPerSize))
	for name, count := range c.SpotsPerSize {
		size, err := parking.ParseSpotSize(name)
		if err != nil {
			return nil, fmt.Errorf("facility.spots_per_size: %w", err)
		}
		if count <= 0 {
			return nil, fmt.Errorf("facility.spots_per_size.%s must be positive, got %d", name, count)
		}
		layout[size] = count
	}
	return layout, nil
}

func (c FacilityConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("facility.timezone: %w", err)
	}
	return loc, nil
}
