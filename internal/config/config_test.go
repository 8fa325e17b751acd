package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Empty variables count as unset.
	for _, key := range []string{"PORT", "ADMIN_USER", "ADMIN_PASS", "AUTO_PUBLISH", "RATE_LIMIT",
		"RATE_WINDOW", "CORS_ORIGIN", "REDIS_URL", "DATABASE_URL", "APP_ENV"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultAdminUser, cfg.AdminUser)
	assert.Equal(t, DefaultAdminPass, cfg.AdminPass)
	assert.False(t, cfg.AutoPublish)
	assert.Equal(t, 300, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateWindow)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Empty(t, cfg.RedisURL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ADMIN_USER", "mod")
	t.Setenv("ADMIN_PASS", "s3cret")
	t.Setenv("AUTO_PUBLISH", "true")
	t.Setenv("RATE_LIMIT", "10")
	t.Setenv("RATE_WINDOW", "30s")
	t.Setenv("DATABASE_URL", "postgres://user:pw@localhost:5432/lantern")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "mod", cfg.AdminUser)
	assert.Equal(t, "s3cret", cfg.AdminPass)
	assert.True(t, cfg.AutoPublish)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.RateWindow)
	assert.True(t, cfg.IsProduction())
}

func TestValidate(t *testing.T) {
	valid := Config{
		AdminUser:   "admin",
		AdminPass:   "pw",
		RateLimit:   1,
		RateWindow:  time.Second,
		DatabaseURL: "sqlite://x.db",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty password", func(c *Config) { c.AdminPass = "" }},
		{"empty user", func(c *Config) { c.AdminUser = "" }},
		{"zero rate limit", func(c *Config) { c.RateLimit = 0 }},
		{"zero window", func(c *Config) { c.RateWindow = 0 }},
		{"unknown database", func(c *Config) { c.DatabaseURL = "mysql://db" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
