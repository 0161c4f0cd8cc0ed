package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if !had {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "ENV", "development")
	setEnv(t, "PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(DefaultBasicSummariesPerMonth), cfg.BasicSummariesPerMonth)
	assert.Equal(t, int64(DefaultProSummariesPerMonth), cfg.ProSummariesPerMonth)
	assert.Equal(t, int64(DefaultTrialSummariesLimit), cfg.TrialSummariesLimit)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSizeBytes())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "ENV", "staging")
	setEnv(t, "PRO_SUMMARIES_PER_MONTH", "750")
	setEnv(t, "REQUEST_TIMEOUT", "5s")
	setEnv(t, "OTEL_TRACES_SAMPLER_ARG", "0.1")
	setEnv(t, "CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(750), cfg.ProSummariesPerMonth)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.InDelta(t, 0.1, cfg.TraceSampleRatio, 1e-9)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoad_InvalidNumberFallsBack(t *testing.T) {
	setEnv(t, "ENV", "development")
	setEnv(t, "BASIC_SUMMARIES_PER_MONTH", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultBasicSummariesPerMonth), cfg.BasicSummariesPerMonth)
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{
			Env:                    "production",
			LogFormat:              "json",
			DatabaseURL:            "postgres://localhost/docsum",
			StripeWebhookSecret:    "whsec_test",
			AdminSecret:            "0123456789abcdef0123456789abcdef",
			BasicSummariesPerMonth: 100,
			ProSummariesPerMonth:   500,
			TrialSummariesLimit:    100,
			MaxFileSizeMB:          10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid production config", mutate: func(*Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DATABASE_URL is required"},
		{name: "missing webhook secret", mutate: func(c *Config) { c.StripeWebhookSecret = "" }, wantErr: "STRIPE_WEBHOOK_SECRET is required"},
		{name: "short admin secret", mutate: func(c *Config) { c.AdminSecret = "short" }, wantErr: "ADMIN_SECRET must be at least 32"},
		{name: "negative limit", mutate: func(c *Config) { c.ProSummariesPerMonth = -1 }, wantErr: "must not be negative"},
		{name: "zero upload size", mutate: func(c *Config) { c.MaxFileSizeMB = 0 }, wantErr: "MAX_FILE_SIZE_MB"},
		{name: "sample ratio out of range", mutate: func(c *Config) { c.TraceSampleRatio = 1.5 }, wantErr: "OTEL_TRACES_SAMPLER_ARG"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LOG_FORMAT"},
		{name: "development skips secrets", mutate: func(c *Config) {
			c.Env = "development"
			c.DatabaseURL = ""
			c.StripeWebhookSecret = ""
			c.AdminSecret = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
