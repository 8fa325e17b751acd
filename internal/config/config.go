// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPort        = "3000"
	DefaultDatabaseURL = "sqlite://lantern.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	DefaultAdminUser   = "admin"
	DefaultAdminPass   = "lantern-admin-demo-CHANGE_ME"
	DefaultRateLimit   = 300
	DefaultRateWindow  = 60 * time.Second
	DefaultFeedChannel = "lantern:feed"
	ServiceName        = "lantern"
)

type Config struct {
	Port        string
	DatabaseURL string
	AdminUser   string
	AdminPass   string
	AutoPublish bool
	CORSOrigin  string

	RateLimit  int
	RateWindow time.Duration

	RedisURL    string
	FeedChannel string

	SentryDSN    string
	OTLPEndpoint string
	LogLevel     string
	Environment  string
}

// Load reads configuration from environment variables, applying defaults
// for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", DefaultPort)
	v.SetDefault("DATABASE_URL", DefaultDatabaseURL)
	v.SetDefault("ADMIN_USER", DefaultAdminUser)
	v.SetDefault("ADMIN_PASS", DefaultAdminPass)
	v.SetDefault("AUTO_PUBLISH", false)
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("RATE_LIMIT", DefaultRateLimit)
	v.SetDefault("RATE_WINDOW", DefaultRateWindow)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("FEED_CHANNEL", DefaultFeedChannel)
	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "development")

	cfg := &Config{
		Port:         v.GetString("PORT"),
		DatabaseURL:  v.GetString("DATABASE_URL"),
		AdminUser:    v.GetString("ADMIN_USER"),
		AdminPass:    v.GetString("ADMIN_PASS"),
		AutoPublish:  v.GetBool("AUTO_PUBLISH"),
		CORSOrigin:   v.GetString("CORS_ORIGIN"),
		RateLimit:    v.GetInt("RATE_LIMIT"),
		RateWindow:   v.GetDuration("RATE_WINDOW"),
		RedisURL:     v.GetString("REDIS_URL"),
		FeedChannel:  v.GetString("FEED_CHANNEL"),
		SentryDSN:    v.GetString("SENTRY_DSN"),
		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		Environment:  v.GetString("APP_ENV"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run safely with. Admin
// credentials must be present: an empty secret would fail open.
func (c *Config) Validate() error {
	var errs []error
	if c.AdminUser == "" {
		errs = append(errs, errors.New("ADMIN_USER must not be empty"))
	}
	if c.AdminPass == "" {
		errs = append(errs, errors.New("ADMIN_PASS must not be empty"))
	}
	if c.RateLimit < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT must be positive, got %d", c.RateLimit))
	}
	if c.RateWindow <= 0 {
		errs = append(errs, fmt.Errorf("RATE_WINDOW must be positive, got %s", c.RateWindow))
	}
	if !strings.HasPrefix(c.DatabaseURL, "sqlite://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		errs = append(errs, errors.New("DATABASE_URL must start with sqlite://, postgres:// or postgresql://"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
