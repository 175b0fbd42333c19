// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	APIBaseURL string // Upstream Trend View backend base URL
	DataDir    string // Base directory for the cache database and snapshot file
	Port       int
	LogLevel   string
	DevMode    bool

	DefaultLanguage string // "zh" or "en"

	// Polling defaults for job status checks
	PollInterval time.Duration
	PollTimeout  time.Duration

	// One-shot GET retry behavior
	RetryMaxAttempts int
	RetryBackoffStep time.Duration

	// HTTP client timeout for upstream calls
	UpstreamTimeout time.Duration

	// Cron specs (robfig/cron format); empty disables the job
	SyncCron    string
	CleanupCron string
	BackupCron  string

	Backup *BackupConfig
}

// BackupConfig holds S3-compatible backup settings.
// Backups are disabled when Bucket is empty.
type BackupConfig struct {
	Bucket          string
	Endpoint        string // Custom endpoint for R2-style providers; empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TRENDVIEW_DATA_DIR", "")
	if dataDir == "" {
		dataDir = filepath.Join(".", "data")
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		APIBaseURL:       getEnv("TRENDVIEW_API_BASE", "http://localhost:8000/api"),
		DataDir:          absDataDir,
		Port:             getEnvAsInt("TRENDVIEW_PORT", 8080),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		DefaultLanguage:  getEnv("TRENDVIEW_LANG", "zh"),
		PollInterval:     getEnvAsDuration("TRENDVIEW_POLL_INTERVAL", 2500*time.Millisecond),
		PollTimeout:      getEnvAsDuration("TRENDVIEW_POLL_TIMEOUT", 3*time.Minute),
		RetryMaxAttempts: getEnvAsInt("TRENDVIEW_RETRY_ATTEMPTS", 3),
		RetryBackoffStep: getEnvAsDuration("TRENDVIEW_RETRY_BACKOFF", 500*time.Millisecond),
		UpstreamTimeout:  getEnvAsDuration("TRENDVIEW_UPSTREAM_TIMEOUT", 15*time.Second),
		SyncCron:         getEnv("TRENDVIEW_SYNC_CRON", "0 */4 * * *"),
		CleanupCron:      getEnv("TRENDVIEW_CLEANUP_CRON", "30 3 * * *"),
		BackupCron:       getEnv("TRENDVIEW_BACKUP_CRON", ""),
		Backup:           loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("TRENDVIEW_API_BASE must not be empty")
	}
	if c.DefaultLanguage != "zh" && c.DefaultLanguage != "en" {
		return fmt.Errorf("TRENDVIEW_LANG must be zh or en, got %q", c.DefaultLanguage)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("TRENDVIEW_RETRY_ATTEMPTS must be at least 1")
	}
	return nil
}

// loadBackupConfig reads S3 backup settings; nil-safe defaults when unset
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:          getEnv("TRENDVIEW_BACKUP_BUCKET", ""),
		Endpoint:        getEnv("TRENDVIEW_BACKUP_ENDPOINT", ""),
		Region:          getEnv("TRENDVIEW_BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("TRENDVIEW_BACKUP_ACCESS_KEY", ""),
		SecretAccessKey: getEnv("TRENDVIEW_BACKUP_SECRET_KEY", ""),
	}
}

// Enabled reports whether backups are configured.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
