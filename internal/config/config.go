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
	DataDir             string // Base directory for the store, cache snapshots and backup staging
	Port                int
	LogLevel            string
	DevMode             bool
	SyncSchedule        string        // Cron expression for the periodic full sync
	SyncDeadline        time.Duration // Per-adapter deadline during a sync
	TradernetServiceURL string
	TradernetAPIKey     string
	TradernetAPISecret  string
	Backup              BackupConfig
}

// BackupConfig holds object-storage backup configuration. Backups are
// disabled unless endpoint, bucket and credentials are all present.
type BackupConfig struct {
	Enabled   bool
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Schedule  string // Cron expression, defaults to nightly
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FOLIOSYNC_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	backup := BackupConfig{
		Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
		Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
		AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
		SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		Schedule:  getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"), // 03:00 daily
	}
	backup.Enabled = backup.Endpoint != "" && backup.Bucket != "" &&
		backup.AccessKey != "" && backup.SecretKey != ""

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("PORT", 8080),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		SyncSchedule:        getEnv("SYNC_SCHEDULE", "0 */5 * * * *"), // Every 5 minutes
		SyncDeadline:        getEnvAsDuration("SYNC_DEADLINE", 45*time.Second),
		TradernetServiceURL: getEnv("TRADERNET_SERVICE_URL", "http://localhost:9001"),
		TradernetAPIKey:     getEnv("TRADERNET_API_KEY", ""),
		TradernetAPISecret:  getEnv("TRADERNET_API_SECRET", ""),
		Backup:              backup,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("FOLIOSYNC_DATA_DIR is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be a valid TCP port, got %d", c.Port)
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
