// Package config loads server settings from BORO_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. BORO_ADDR.
const Prefix = "BORO"

// Config holds the server configuration.
type Config struct {
	DB       string `envconfig:"DB" default:"boro.sqlite3"`
	Addr     string `envconfig:"ADDR" default:":8080"`
	StateDir string `envconfig:"STATE_DIR" default:"boro-state"`

	Log       string `envconfig:"LOG" default:""`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// AdminUser is created with a random password on first run.
	AdminUser string `envconfig:"ADMIN_USER" default:"admin"`

	TokenExpiry    time.Duration `envconfig:"TOKEN_EXPIRY" default:"168h"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`

	// Login attempts per second and burst, per remote address.
	LoginRate  float64 `envconfig:"LOGIN_RATE" default:"0.2"`
	LoginBurst int     `envconfig:"LOGIN_BURST" default:"5"`
}

// Load reads the configuration from the environment. Call Validate after
// applying any overrides.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("processing environment variables: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values and normalizes the log level and format.
func (c *Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Addr, err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	switch c.LogFormat = strings.ToLower(c.LogFormat); c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.AdminUser == "" {
		return fmt.Errorf("admin username must not be empty")
	}
	if c.TokenExpiry < time.Minute {
		return fmt.Errorf("token expiry %s is shorter than a minute", c.TokenExpiry)
	}
	if c.LoginRate <= 0 || c.LoginBurst < 1 {
		return fmt.Errorf("login rate limit must be positive (rate %v, burst %d)", c.LoginRate, c.LoginBurst)
	}
	for _, o := range c.AllowedOrigins {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("allowed origins must not contain empty entries")
		}
	}
	return nil
}

// ParseLevel maps debug, info, warn or error onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}
