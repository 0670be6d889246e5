package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FRONTEND_URL", "https://shop.example.com")
	t.Setenv("RAZORPAY_KEY_SECRET", "rzp_secret")

	cfg := Load()

	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Equal(t, 60, cfg.AccessTokenTTLMin)
	assert.Equal(t, []string{"https://shop.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "rzp_secret", cfg.RazorpayWebhookSecret, "webhook secret falls back to key secret")
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("REQUIRE_EMAIL_VERIFICATION", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "whsec")
	t.Setenv("COUPONS", "welcome10:10, BAD, FESTIVE20:20,HUGE:150")

	cfg := Load()

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.RequireEmailVerification)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 0.0001)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "whsec", cfg.RazorpayWebhookSecret)
	assert.Equal(t, map[string]int{"WELCOME10": 10, "FESTIVE20": 20}, cfg.Coupons)
}

func TestValidate(t *testing.T) {
	valid := Config{
		HTTPAddr:            ":8080",
		DatabaseURL:         "postgres://localhost/shop",
		JWTAccessSecret:     "a",
		JWTRefreshSecret:    "r",
		LogLevel:            "info",
		AccessTokenTTLMin:   15,
		RefreshTokenTTLDays: 7,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database", func(c *Config) { c.DatabaseURL = "" }},
		{"missing refresh secret", func(c *Config) { c.JWTRefreshSecret = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad smtp port", func(c *Config) { c.SMTPHost = "smtp.example.com"; c.SMTPPort = 0 }},
		{"zero ttl", func(c *Config) { c.AccessTokenTTLMin = 0 }},
		{"missing port", func(c *Config) { c.HTTPAddr = "localhost" }},
		{"zero port", func(c *Config) { c.HTTPAddr = ":0" }},
		{"negative port", func(c *Config) { c.HTTPAddr = "0.0.0.0:-1" }},
		{"named port", func(c *Config) { c.HTTPAddr = ":http" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
