package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultConfig
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 7654)
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("database.url", "sqlite://kidase.db")
	v.SetDefault("engine.cache_size", 256)
	v.SetDefault("engine.cache_ttl", "5m")
	v.SetDefault("calendar.timezone", "Africa/Addis_Ababa")

	// Bind environment variables with KIDASE_ prefix
	v.SetEnvPrefix("KIDASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		DatabaseURL:    v.GetString("database.url"),
		CacheSize:      v.GetInt("engine.cache_size"),
		CacheTTL:       v.GetDuration("engine.cache_ttl"),
		Timezone:       v.GetString("calendar.timezone"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range, positive cache limits, and that the
// timezone parses.
func validateConfig(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database.url must not be empty")
	}
	if cfg.CacheSize <= 0 {
		return fmt.Errorf("engine.cache_size must be positive, got %d", cfg.CacheSize)
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("engine.cache_ttl must be positive, got %v", cfg.CacheTTL)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("calendar.timezone is not a valid IANA zone: %w", err)
	}
	return nil
}
