// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	BaseCurrency  string
	QuoteProvider string // "http" (Yahoo JSON endpoints) or "native" (go-yfinance)

	Cache  CacheConfig
	Retry  RetryConfig
	Pluggy PluggyConfig
	Backup BackupConfig

	RequestTimeout time.Duration
	FanOutLimit    int
}

// CacheConfig holds TTLs for the in-memory quote cache
type CacheConfig struct {
	QuoteTTL      time.Duration
	PortfolioTTL  time.Duration
	SweepSchedule string // cron expression for the housekeeping sweep
}

// RetryConfig holds the backoff policy applied to outbound calls
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// PluggyConfig holds open-banking aggregator credentials
type PluggyConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// Enabled reports whether aggregator credentials are present
func (p PluggyConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// BackupConfig holds S3-compatible snapshot storage settings
type BackupConfig struct {
	Bucket          string
	Endpoint        string // Empty means AWS S3
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string
	Retain          int
}

// Enabled reports whether a backup bucket is configured
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

var supportedProviders = map[string]bool{"http": true, "native": true}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FAMFIN_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("PORT", 8080),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		BaseCurrency:  strings.ToUpper(getEnv("BASE_CURRENCY", "BRL")),
		QuoteProvider: strings.ToLower(getEnv("QUOTE_PROVIDER", "http")),
		Cache: CacheConfig{
			QuoteTTL:      getEnvAsDuration("QUOTE_CACHE_TTL", 5*time.Minute),
			PortfolioTTL:  getEnvAsDuration("PORTFOLIO_CACHE_TTL", 15*time.Minute),
			SweepSchedule: getEnv("CACHE_SWEEP_SCHEDULE", "0 */10 * * * *"),
		},
		Retry: RetryConfig{
			MaxRetries: getEnvAsInt("MAX_RETRIES", 3),
			BaseDelay:  getEnvAsDuration("RETRY_BASE_DELAY", time.Second),
		},
		Pluggy: PluggyConfig{
			ClientID:     getEnv("PLUGGY_CLIENT_ID", ""),
			ClientSecret: getEnv("PLUGGY_CLIENT_SECRET", ""),
			BaseURL:      getEnv("PLUGGY_API_URL", "https://api.pluggy.ai"),
		},
		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			Retain:          getEnvAsInt("BACKUP_RETAIN", 14),
		},
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		FanOutLimit:    getEnvAsInt("FANOUT_LIMIT", 8),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configured values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if !supportedProviders[c.QuoteProvider] {
		return fmt.Errorf("unsupported quote provider %q (want http or native)", c.QuoteProvider)
	}
	if len(c.BaseCurrency) != 3 {
		return fmt.Errorf("invalid base currency %q", c.BaseCurrency)
	}
	if c.Cache.QuoteTTL <= 0 || c.Cache.PortfolioTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative: %d", c.Retry.MaxRetries)
	}
	if c.Retry.BaseDelay < 0 {
		return fmt.Errorf("retry base delay must not be negative: %s", c.Retry.BaseDelay)
	}
	if c.FanOutLimit <= 0 {
		return fmt.Errorf("fan-out limit must be positive: %d", c.FanOutLimit)
	}
	if c.Backup.Enabled() && (c.Backup.AccessKeyID == "") != (c.Backup.SecretAccessKey == "") {
		return fmt.Errorf("backup credentials must include both access key id and secret")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain milliseconds ("1500").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
