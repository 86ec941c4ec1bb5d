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
	DataDir  string // Base directory for the database and backup staging (always absolute)
	LogLevel string
	Pretty   bool
	Port     int
	DevMode  bool

	ExercismAPIURL string
	ExercismToken  string

	DiscordAPIURL    string
	DiscordToken     string
	DiscordChannelID string
	DiscordGuildID   string
	DiscordBotUserID string // Only messages authored by this user count as mirror messages

	// Tracks is the static track list. Empty means every track the source reports.
	Tracks []string

	Poll   *PollConfig
	Backup *BackupConfig
}

// PollConfig holds the worker and scheduler tuning knobs.
type PollConfig struct {
	Min          time.Duration // Floor for the source poll interval
	Max          time.Duration // Ceiling for the source poll interval
	HistorySize  int           // Number of change timestamps kept per track
	TickInterval time.Duration // Worker tick period
	TaskTimeout  time.Duration // Upper bound for one external call chain
}

// BackupConfig holds the S3 compatible backup settings.
type BackupConfig struct {
	Enabled         bool
	Schedule        string // cron expression, seconds field included
	Bucket          string
	Endpoint        string // Custom endpoint (R2, MinIO); empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Retention       int // Number of archives to keep
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("REQUESTMIRROR_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Pretty:           getEnvAsBool("LOG_PRETTY", true),
		Port:             getEnvAsInt("HTTP_PORT", 8090),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		ExercismAPIURL:   getEnv("EXERCISM_API_URL", "https://exercism.org/api/v2"),
		ExercismToken:    getEnv("EXERCISM_TOKEN", ""),
		DiscordAPIURL:    getEnv("DISCORD_API_URL", "https://discord.com/api/v10"),
		DiscordToken:     getEnv("DISCORD_TOKEN", ""),
		DiscordChannelID: getEnv("DISCORD_CHANNEL_ID", ""),
		DiscordGuildID:   getEnv("DISCORD_GUILD_ID", ""),
		DiscordBotUserID: getEnv("DISCORD_BOT_USER_ID", ""),
		Tracks:           getEnvAsList("TRACKS"),
		Poll:             loadPollConfig(),
		Backup:           loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the location of the SQLite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "mirror.db")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.DiscordChannelID == "" {
		return fmt.Errorf("DISCORD_CHANNEL_ID is required")
	}
	if c.Poll.Min <= 0 || c.Poll.Max < c.Poll.Min {
		return fmt.Errorf("invalid poll clamp [%s, %s]", c.Poll.Min, c.Poll.Max)
	}
	if c.Poll.HistorySize < 2 {
		return fmt.Errorf("HISTORY_SIZE must be at least 2, got %d", c.Poll.HistorySize)
	}
	if c.Poll.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive")
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_BUCKET is required when backups are enabled")
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

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadPollConfig() *PollConfig {
	return &PollConfig{
		Min:          getEnvAsDuration("POLL_MIN", 5*time.Minute),
		Max:          getEnvAsDuration("POLL_MAX", 60*time.Minute),
		HistorySize:  getEnvAsInt("HISTORY_SIZE", 20),
		TickInterval: getEnvAsDuration("TICK_INTERVAL", 5*time.Second),
		TaskTimeout:  getEnvAsDuration("TASK_TIMEOUT", 30*time.Second),
	}
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"), // Daily at 3:00 AM
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		Retention:       getEnvAsInt("BACKUP_RETENTION", 14),
	}
}
