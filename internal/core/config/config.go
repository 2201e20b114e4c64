// Package config provides configuration management for the kidase-rules
// service.
package config

import "time"

// Config holds the service configuration.
type Config struct {
	Host           string
	Port           int
	RequestTimeout time.Duration

	DatabaseURL string

	CacheSize int
	CacheTTL  time.Duration

	// Timezone the evaluation context's date facts are computed in.
	// The congregation's wall clock decides the liturgical day, not UTC.
	Timezone string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           7654,
		RequestTimeout: 15 * time.Second,
		DatabaseURL:    "sqlite://kidase.db",
		CacheSize:      256,
		CacheTTL:       5 * time.Minute,
		Timezone:       "Africa/Addis_Ababa",
	}
}

// Location parses the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
