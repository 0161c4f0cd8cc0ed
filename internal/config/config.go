// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port           string
	Env            string // "development", "staging", "production"
	LogLevel       string
	LogFormat      string // "text" or "json"
	RequestTimeout time.Duration

	// Database
	DatabaseURL  string // PostgreSQL connection string (optional, uses in-memory if not set)
	MaxOpenConns int

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceIDBasic  string
	StripePriceIDPro    string
	FrontendURL         string // Checkout success/cancel redirects land here

	// Quotas (summaries per billing period)
	BasicSummariesPerMonth int64
	ProSummariesPerMonth   int64
	TrialSummariesLimit    int64

	// Documents
	MaxFileSizeMB int64
	UploadDir     string

	// Security
	AdminSecret        string // Guards the identity broker endpoint
	RateLimitRPM       int
	CORSAllowedOrigins []string

	// Tracing
	OTLPEndpoint     string
	TraceSampleRatio float64 // OTEL_TRACES_SAMPLER_ARG; 0 keeps every trace
}

const (
	DefaultPort                   = "8080"
	DefaultEnv                    = "development"
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "text"
	DefaultMaxOpenConns           = 25
	DefaultFrontendURL            = "http://localhost:3000"
	DefaultBasicSummariesPerMonth = 100
	DefaultProSummariesPerMonth   = 500
	DefaultTrialSummariesLimit    = 100
	DefaultMaxFileSizeMB          = 10
	DefaultUploadDir              = "uploads"
	DefaultRateLimitRPM           = 120
	DefaultRequestTimeout         = 30 * time.Second
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", DefaultPort),
		Env:                    getEnv("ENV", DefaultEnv),
		LogLevel:               getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:              getEnv("LOG_FORMAT", DefaultLogFormat),
		RequestTimeout:         getEnvDuration("REQUEST_TIMEOUT", DefaultRequestTimeout),
		DatabaseURL:            os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		MaxOpenConns:           int(getEnvInt64("POSTGRES_MAX_OPEN_CONNS", DefaultMaxOpenConns)),
		StripeSecretKey:        os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePriceIDBasic:     os.Getenv("STRIPE_PRICE_ID_BASIC"),
		StripePriceIDPro:       os.Getenv("STRIPE_PRICE_ID_PRO"),
		FrontendURL:            getEnv("FRONTEND_URL", DefaultFrontendURL),
		BasicSummariesPerMonth: getEnvInt64("BASIC_SUMMARIES_PER_MONTH", DefaultBasicSummariesPerMonth),
		ProSummariesPerMonth:   getEnvInt64("PRO_SUMMARIES_PER_MONTH", DefaultProSummariesPerMonth),
		TrialSummariesLimit:    getEnvInt64("TRIAL_SUMMARIES_LIMIT", DefaultTrialSummariesLimit),
		MaxFileSizeMB:          getEnvInt64("MAX_FILE_SIZE_MB", DefaultMaxFileSizeMB),
		UploadDir:              getEnv("UPLOAD_DIR", DefaultUploadDir),
		AdminSecret:            os.Getenv("ADMIN_SECRET"),
		RateLimitRPM:           int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		CORSAllowedOrigins:     getEnvList("CORS_ALLOWED_ORIGINS"),
		OTLPEndpoint:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TraceSampleRatio:       getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.BasicSummariesPerMonth < 0 || c.ProSummariesPerMonth < 0 || c.TrialSummariesLimit < 0 {
		return fmt.Errorf("summary limits must not be negative")
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}

	if !c.IsProduction() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	if c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
	}
	if len(c.AdminSecret) < 32 {
		return fmt.Errorf("ADMIN_SECRET must be at least 32 characters in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MaxFileSizeBytes is the upload ceiling in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
