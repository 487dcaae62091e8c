package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	API      APIConfig
	Backend  BackendConfig
	Store    StoreConfig
	Notify   NotifyConfig
	Database DatabaseConfig
	Session  SessionConfig
	Import   ImportConfig
	Worker   WorkerConfig
}

// APIConfig holds console HTTP server configuration
type APIConfig struct {
	Port     int
	LogLevel slog.Level
}

// BackendConfig holds the CRM backend connection settings
type BackendConfig struct {
	BaseURL   string
	Timeout   time.Duration
	AuthToken string
}

// StoreConfig holds list store tuning
type StoreConfig struct {
	CacheSize    int
	TTL          time.Duration
	FetchTimeout time.Duration
}

// NotifyConfig holds notification feed configuration
type NotifyConfig struct {
	Backend    string // "memory" or "redis"
	RedisURL   string
	KeyPrefix  string
	MaxBacklog int
	FeedTTL    time.Duration
}

// DatabaseConfig holds the notification journal connection configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// SessionConfig holds view session lifecycle settings
type SessionConfig struct {
	IdleTTL time.Duration
}

// ImportConfig holds spreadsheet upload limits
type ImportConfig struct {
	MaxUploadBytes int64
}

// WorkerConfig holds activity journal writer settings
type WorkerConfig struct {
	QueueSize     int
	MaxRetryCount int
	RetryDelay    time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory, or the file named by CONSOLE_ENV_FILE, is applied first
// without overriding variables already set.
func Load() (*Config, error) {
	envFile := getEnv("CONSOLE_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	apiPort, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_PORT: %w", err)
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	cacheSize, err := strconv.Atoi(getEnv("STORE_CACHE_SIZE", "256"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_CACHE_SIZE: %w", err)
	}

	maxBacklog, err := strconv.Atoi(getEnv("NOTIFY_MAX_BACKLOG", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_MAX_BACKLOG: %w", err)
	}

	maxUpload, err := strconv.ParseInt(getEnv("IMPORT_MAX_UPLOAD_BYTES", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid IMPORT_MAX_UPLOAD_BYTES: %w", err)
	}

	queueSize, err := strconv.Atoi(getEnv("JOURNAL_QUEUE_SIZE", "256"))
	if err != nil {
		return nil, fmt.Errorf("invalid JOURNAL_QUEUE_SIZE: %w", err)
	}

	maxRetryCount, err := strconv.Atoi(getEnv("JOURNAL_MAX_RETRY_COUNT", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid JOURNAL_MAX_RETRY_COUNT: %w", err)
	}

	backendTimeout, err := getEnvDuration("BACKEND_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	storeTTL, err := getEnvDuration("STORE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := getEnvDuration("STORE_FETCH_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	feedTTL, err := getEnvDuration("NOTIFY_FEED_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	idleTTL, err := getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	retryDelay, err := getEnvDuration("JOURNAL_RETRY_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		API: APIConfig{
			Port:     apiPort,
			LogLevel: logLevel,
		},
		Backend: BackendConfig{
			BaseURL:   strings.TrimRight(getEnv("BACKEND_BASE_URL", "http://localhost:3000"), "/"),
			Timeout:   backendTimeout,
			AuthToken: getEnv("BACKEND_AUTH_TOKEN", ""),
		},
		Store: StoreConfig{
			CacheSize:    cacheSize,
			TTL:          storeTTL,
			FetchTimeout: fetchTimeout,
		},
		Notify: NotifyConfig{
			Backend:    getEnv("NOTIFY_BACKEND", "memory"),
			RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
			KeyPrefix:  getEnv("NOTIFY_KEY_PREFIX", "console:notifications"),
			MaxBacklog: maxBacklog,
			FeedTTL:    feedTTL,
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("JOURNAL_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "crm_console"),
			Password: getEnv("DB_PASSWORD", "crm_console"),
			DBName:   getEnv("DB_NAME", "crm_console"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Session: SessionConfig{
			IdleTTL: idleTTL,
		},
		Import: ImportConfig{
			MaxUploadBytes: maxUpload,
		},
		Worker: WorkerConfig{
			QueueSize:     queueSize,
			MaxRetryCount: maxRetryCount,
			RetryDelay:    retryDelay,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("BACKEND_BASE_URL is required")
	}
	switch c.Notify.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid NOTIFY_BACKEND: %q (must be 'memory' or 'redis')", c.Notify.Backend)
	}
	if c.Store.CacheSize < 1 {
		return fmt.Errorf("invalid STORE_CACHE_SIZE: %d", c.Store.CacheSize)
	}
	if c.Notify.MaxBacklog < 1 {
		return fmt.Errorf("invalid NOTIFY_MAX_BACKLOG: %d", c.Notify.MaxBacklog)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
