// Package config provides configuration management for the teleop ingestion service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Ingest   IngestConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Sync     SyncConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
}

// AuthConfig holds authentication-related configuration.
// When APIKey is empty, authentication is disabled.
type AuthConfig struct {
	APIKey string
}

// IngestConfig holds telemetry ingestion tuning knobs
type IngestConfig struct {
	// BufferSize is the frame count that triggers a flush (60 frames = 1s at 60fps)
	BufferSize int

	// FlushInterval bounds worst-case durability latency for partially filled buffers
	FlushInterval time.Duration

	// IdleTimeout closes a connection with no inbound traffic beyond this window
	IdleTimeout time.Duration

	// WriteRetries bounds retry attempts for a failed batch write
	WriteRetries int

	// WriteRetryBackoff is the base delay between batch write retries
	WriteRetryBackoff time.Duration

	// DefaultFPS is the declared frame cadence for new sessions
	DefaultFPS int
}

// StorageConfig holds file-store configuration
type StorageConfig struct {
	Root                   string
	VideoMaxSizeMB         int
	VideoAllowedExtensions []string
}

// SyncConfig holds sidecar synchronizer configuration
type SyncConfig struct {
	WatchDir      string
	ServerURL     string
	PollInterval  time.Duration
	UploadTimeout time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                   string
	Host                  string
	Port                  string
	Name                  string
	User                  string
	Password              string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			URL:                   os.Getenv("DATABASE_URL"),
			Host:                  getEnv("DB_HOST", "localhost"),
			Port:                  getEnv("DB_PORT", "5432"),
			Name:                  getEnv("DB_NAME", "teleop_dev"),
			User:                  getEnv("DB_USER", "teleop_user"),
			Password:              GetSecret("DB_PASSWORD", "teleop_pass"),
			SSLMode:               getEnv("DB_SSLMODE", "disable"),
			MaxConnections:        getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConnections:    getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnectionMaxLifetime: getEnvAsDuration("DB_CONNECTION_MAX_LIFETIME", "5m"),
		},
		Ingest: IngestConfig{
			BufferSize:        getEnvAsInt("WS_BUFFER_SIZE", 60),
			FlushInterval:     getEnvAsDuration("WS_FLUSH_INTERVAL", "1s"),
			IdleTimeout:       getEnvAsDuration("WS_IDLE_TIMEOUT", "30s"),
			WriteRetries:      getEnvAsInt("WRITE_RETRIES", 3),
			WriteRetryBackoff: getEnvAsDuration("WRITE_RETRY_BACKOFF", "100ms"),
			DefaultFPS:        getEnvAsInt("DEFAULT_FPS", 60),
		},
		Storage: StorageConfig{
			Root:                   getEnv("STORAGE_ROOT", "./teleop_backup"),
			VideoMaxSizeMB:         getEnvAsInt("VIDEO_MAX_SIZE_MB", 500),
			VideoAllowedExtensions: getEnvAsSlice("VIDEO_ALLOWED_EXTENSIONS", []string{"mp4", "avi", "mov", "webm"}),
		},
		Auth: AuthConfig{
			APIKey: GetSecret("API_KEY", ""),
		},
		Sync: SyncConfig{
			WatchDir:      getEnv("SYNC_WATCH_DIR", "./outputs/train"),
			ServerURL:     getEnv("SYNC_SERVER_URL", "http://localhost:8080"),
			PollInterval:  getEnvAsDuration("SYNC_POLL_INTERVAL", "5s"),
			UploadTimeout: getEnvAsDuration("SYNC_UPLOAD_TIMEOUT", "5m"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.Ingest.BufferSize <= 0 {
		return errors.New("WS_BUFFER_SIZE must be positive")
	}
	if c.Ingest.FlushInterval <= 0 {
		return errors.New("WS_FLUSH_INTERVAL must be positive")
	}
	if c.Ingest.WriteRetries < 0 {
		return errors.New("WRITE_RETRIES must not be negative")
	}
	if c.Storage.VideoMaxSizeMB <= 0 {
		return errors.New("VIDEO_MAX_SIZE_MB must be positive")
	}
	return nil
}

// ConnectionString returns the database connection string
func (d *DatabaseConfig) ConnectionString() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// MaxVideoBytes returns the maximum accepted video payload size in bytes
func (s *StorageConfig) MaxVideoBytes() int64 {
	return int64(s.VideoMaxSizeMB) * 1024 * 1024
}

// ExtensionAllowed reports whether the given file extension (without dot) is accepted
func (s *StorageConfig) ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range s.VideoAllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration or returns a default value
func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		defaultDuration, _ := time.ParseDuration(defaultValue)
		return defaultDuration
	}
	return value
}

// getEnvAsSlice gets a comma-separated environment variable or returns a default value
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
