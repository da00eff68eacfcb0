// Package config loads server settings from defaults, an optional YAML file
// and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // business timezones must resolve without system zoneinfo

	"gopkg.in/yaml.v3"
)

// RateLimitConfig describes one token bucket.
type RateLimitConfig struct {
	Capacity        float64 `yaml:"capacity"`
	RefillPerSecond float64 `yaml:"refill_per_second"`
}

// Config holds every server setting.
type Config struct {
	Port             string          `yaml:"port"`
	DatabasePath     string          `yaml:"database_path"`
	JWTSecret        string          `yaml:"jwt_secret"`
	CookieSecure     bool            `yaml:"cookie_secure"`
	BcryptCost       int             `yaml:"bcrypt_cost"`
	BusinessTimezone string          `yaml:"business_timezone"`
	WebhookURL       string          `yaml:"webhook_url"`
	WebhookQueueSize int             `yaml:"webhook_queue_size"`
	StatusRateLimit  RateLimitConfig `yaml:"status_rate_limit"`
	LoginRateLimit   RateLimitConfig `yaml:"login_rate_limit"`
	ShutdownTimeout  time.Duration   `yaml:"shutdown_timeout"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Port:             "8080",
		DatabasePath:     "workville.db",
		CookieSecure:     true,
		BcryptCost:       12,
		BusinessTimezone: "Asia/Seoul",
		WebhookQueueSize: 64,
		StatusRateLimit:  RateLimitConfig{Capacity: 10, RefillPerSecond: 1},
		LoginRateLimit:   RateLimitConfig{Capacity: 5, RefillPerSecond: 0.1},
		ShutdownTimeout:  5 * time.Second,
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("DATABASE_PATH", &c.DatabasePath)
	str("JWT_SECRET", &c.JWTSecret)
	str("BUSINESS_TIMEZONE", &c.BusinessTimezone)
	str("SLACK_WEBHOOK_URL", &c.WebhookURL)

	// Secure cookies stay on unless explicitly disabled for local development.
	if v, ok := lookup("COOKIE_SECURE"); ok && v != "" {
		c.CookieSecure = v != "false"
	}

	if v, ok := lookup("BCRYPT_COST"); ok && v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BCRYPT_COST: %w", err)
		}
		c.BcryptCost = cost
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost))
	}
	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil {
		errs = append(errs, fmt.Errorf("unknown business timezone %q", c.BusinessTimezone))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	for name, rl := range map[string]RateLimitConfig{"status": c.StatusRateLimit, "login": c.LoginRateLimit} {
		if rl.Capacity <= 0 || rl.RefillPerSecond <= 0 {
			errs = append(errs, fmt.Errorf("%s rate limit needs a positive capacity and refill rate", name))
		}
	}
	return errors.Join(errs...)
}
