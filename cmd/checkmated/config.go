package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Host           string
	Port           int
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration

	// Store settings: "postgres", "sqlite" or "memory"
	StoreProvider string

	// Database settings
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	SQLitePath string

	// Storage settings
	StorageProvider  string
	StorageLocalPath string
	StorageS3Bucket  string
	StorageS3Region  string
	StorageS3Prefix  string

	// Checklist template settings. An empty TemplateDir serves the embedded templates.
	TemplateDir      string
	TemplateVersion  string
	TemplateCacheTTL time.Duration

	// VIN decoder settings
	VINEnabled    bool
	VINBaseURL    string
	VINTimeout    time.Duration
	VINMaxRetries int
	VINStaticData string

	// Lifecycle policy
	FinalizeBlockOnRequired bool

	// Rate limits
	RateLimitRPS         float64
	RateLimitBurst       int
	UploadRatePerMinute  float64
	UploadRateLimitBurst int
}

// LoadConfig loads configuration from environment variables.
func LoadConfig(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		// Server settings
		Host:           envString(getenv, "SERVER_HOST", "localhost"),
		Port:           envInt(getenv, "SERVER_PORT", 8080),
		Environment:    envString(getenv, "ENVIRONMENT", "dev"),
		LogLevel:       envString(getenv, "LOG_LEVEL", "info"),
		RequestTimeout: envDuration(getenv, "REQUEST_TIMEOUT", 10*time.Second),

		StoreProvider: envString(getenv, "STORE_PROVIDER", "postgres"),

		// Database settings
		DBUser:     envString(getenv, "DB_USER", "postgres"),
		DBPassword: envString(getenv, "DB_PASSWORD", ""),
		DBHost:     envString(getenv, "DB_HOSTNAME", "localhost"),
		DBPort:     envString(getenv, "DB_PORT", "5432"),
		DBName:     envString(getenv, "DB_NAME", "postgres"),
		SQLitePath: envString(getenv, "SQLITE_PATH", "checkmate.db"),

		// Storage settings
		StorageProvider:  envString(getenv, "STORAGE_PROVIDER", "local"),
		StorageLocalPath: envString(getenv, "STORAGE_LOCAL_PATH", "./uploads"),
		StorageS3Bucket:  envString(getenv, "STORAGE_S3_BUCKET", ""),
		StorageS3Region:  envString(getenv, "STORAGE_S3_REGION", "us-east-1"),
		StorageS3Prefix:  envString(getenv, "STORAGE_S3_PREFIX", "photos"),

		// Template settings
		TemplateDir:      envString(getenv, "TEMPLATE_DIR", ""),
		TemplateVersion:  envString(getenv, "TEMPLATE_VERSION", ""),
		TemplateCacheTTL: envDuration(getenv, "TEMPLATE_CACHE_TTL", 5*time.Minute),

		// VIN decoder settings
		VINEnabled:    envBool(getenv, "VIN_DECODER_ENABLED", true),
		VINBaseURL:    envString(getenv, "VIN_DECODER_URL", ""),
		VINTimeout:    envDuration(getenv, "VIN_DECODER_TIMEOUT", 10*time.Second),
		VINMaxRetries: envInt(getenv, "VIN_DECODER_MAX_RETRIES", 3),
		VINStaticData: envString(getenv, "VIN_STATIC_DATA", ""),

		FinalizeBlockOnRequired: envBool(getenv, "FINALIZE_BLOCK_ON_REQUIRED", false),

		RateLimitRPS:         envFloat(getenv, "RATE_LIMIT_RPS", 100),
		RateLimitBurst:       envInt(getenv, "RATE_LIMIT_BURST", 200),
		UploadRatePerMinute:  envFloat(getenv, "UPLOAD_RATE_PER_MINUTE", 30),
		UploadRateLimitBurst: envInt(getenv, "UPLOAD_RATE_BURST", 10),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// validate checks settings that have no usable default.
func (c *Config) validate() error {
	switch c.StoreProvider {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("STORE_PROVIDER must be postgres, sqlite or memory, got %q", c.StoreProvider)
	}
	switch c.StorageProvider {
	case "local":
	case "s3":
		if c.StorageS3Bucket == "" {
			return fmt.Errorf("STORAGE_S3_BUCKET is required when STORAGE_PROVIDER=s3")
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be local or s3, got %q", c.StorageProvider)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.IsProduction() && c.StoreProvider == "memory" {
		return fmt.Errorf("STORE_PROVIDER=memory is not allowed in production")
	}
	if c.VINMaxRetries < 0 {
		return fmt.Errorf("VIN_DECODER_MAX_RETRIES must not be negative")
	}
	return nil
}

// loadDotEnv loads .env from the working directory if present.
// Variables already set in the environment win.
func loadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Helper functions for loading environment variables with defaults.

func envString(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(getenv func(string) string, key string, defaultValue int) int {
	if value := getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func envFloat(getenv func(string) string, key string, defaultValue float64) float64 {
	if value := getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func envBool(getenv func(string) string, key string, defaultValue bool) bool {
	if value := getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func envDuration(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	if value := getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
