// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// GamContainer is the docker container the GAM CLI runs in.
	GamContainer string `mapstructure:"GAM_CONTAINER"`
	// GamPath is the GAM executable path inside the container.
	GamPath string `mapstructure:"GAM_PATH"`
	// GamTimeoutSeconds is the default timeout for GAM commands (e.g. single-device lookups).
	GamTimeoutSeconds int `mapstructure:"GAM_TIMEOUT_SECONDS"`
	// GamBulkTimeoutSeconds is the extended timeout for bulk GAM listings.
	GamBulkTimeoutSeconds int `mapstructure:"GAM_BULK_TIMEOUT_SECONDS"`

	// OUGroupES/MS/HS are comma-separated OU path lists for the scoped usage jobs.
	OUGroupES string `mapstructure:"OU_GROUP_ES"`
	OUGroupMS string `mapstructure:"OU_GROUP_MS"`
	OUGroupHS string `mapstructure:"OU_GROUP_HS"`

	// Timezone is the wall-clock timezone the job schedules are written against.
	// The retention cutoff (first of previous month) is computed in this zone.
	Timezone string `mapstructure:"TIMEZONE"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317).
	// Empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("GAM_CONTAINER", "app-docker-gam")
	v.SetDefault("GAM_PATH", "/home/gam/gam7/gam")
	v.SetDefault("GAM_TIMEOUT_SECONDS", 60)
	v.SetDefault("GAM_BULK_TIMEOUT_SECONDS", 300)
	v.SetDefault("OU_GROUP_ES", "/Devices/ES,/Students/ES")
	v.SetDefault("OU_GROUP_MS", "/Devices/MS,/Students/MS")
	v.SetDefault("OU_GROUP_HS", "/Devices/HS,/Students/HS")
	v.SetDefault("TIMEZONE", "America/New_York")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.GamTimeoutSeconds <= 0 {
		return nil, errors.New("config: GAM_TIMEOUT_SECONDS must be positive")
	}
	if cfg.GamBulkTimeoutSeconds <= 0 {
		return nil, errors.New("config: GAM_BULK_TIMEOUT_SECONDS must be positive")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("config: invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return &cfg, nil
}

// GamTimeout returns the default GAM command timeout as a duration.
func (c *Config) GamTimeout() time.Duration {
	return time.Duration(c.GamTimeoutSeconds) * time.Second
}

// GamBulkTimeout returns the bulk-listing GAM command timeout as a duration.
func (c *Config) GamBulkTimeout() time.Duration {
	return time.Duration(c.GamBulkTimeoutSeconds) * time.Second
}

// Location returns the configured timezone. Load validates it, so failures
// here only happen for a zero Config; UTC is the fallback.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OUGroup returns the OU paths for the named group (es, ms, hs).
// Unknown group names return nil.
func (c *Config) OUGroup(name string) []string {
	var raw string
	switch strings.ToLower(name) {
	case "es":
		raw = c.OUGroupES
	case "ms":
		raw = c.OUGroupMS
	case "hs":
		raw = c.OUGroupHS
	default:
		return nil
	}
	return splitCSV(raw)
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
