package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Downloader DownloaderConfig
	Cache      CacheConfig
	Logging    LoggingConfig
	Metrics    MetricsConfig
	Tracing    TracingConfig
	RateLimit  RateLimitConfig
	History    HistoryConfig
	Webhook    WebhookConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration for archived artifacts
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	URLExpiry       time.Duration
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// DownloaderConfig holds download and artifact settings
type DownloaderConfig struct {
	ArtifactRoot    string
	CleanupOnExit   bool
	YtDlpPath       string
	MaxConcurrent   int
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
	Retention       time.Duration
	CleanupInterval time.Duration
	AudioQuality    string
}

// CacheConfig controls the provider metadata cache
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// LoggingConfig mirrors logging.Config
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds Prometheus exporter settings
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds Jaeger settings
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// RateLimitConfig holds per-client limits for the submit endpoints
type RateLimitConfig struct {
	Enabled bool
	RPS     int
	Burst   int
}

// HistoryConfig selects how completed downloads are recorded.
// Mode is "direct" (write to Postgres) or "queue" (publish an event that
// the worker records).
type HistoryConfig struct {
	Mode        string
	RecentLimit int
}

// WebhookConfig holds outgoing job notification settings
type WebhookConfig struct {
	URLs    []string
	Secret  string
	Timeout time.Duration
}

// History modes
const (
	HistoryModeDirect = "direct"
	HistoryModeQueue  = "queue"
)

// Load reads configuration from file and environment variables.
// A missing file is not an error; defaults and environment apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	if c.Downloader.MaxConcurrent < 1 {
		return fmt.Errorf("downloader.maxConcurrent must be at least 1, got %d", c.Downloader.MaxConcurrent)
	}
	switch c.History.Mode {
	case HistoryModeDirect, HistoryModeQueue:
	default:
		return fmt.Errorf("unknown history.mode %q", c.History.Mode)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "0s") // file streams and wait=true can run long
	v.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	v.SetDefault("database.url", "") // DATABASE_URL, wins over the discrete fields
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "mediafetch")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxConns", 10)
	v.SetDefault("database.minConns", 2)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "downloads")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)
	v.SetDefault("storage.urlExpiry", "24h")

	// Queue defaults
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")

	// Downloader defaults
	v.SetDefault("downloader.artifactRoot", "")
	v.SetDefault("downloader.cleanupOnExit", true)
	v.SetDefault("downloader.ytDlpPath", "")
	v.SetDefault("downloader.maxConcurrent", 4)
	v.SetDefault("downloader.metadataTimeout", "60s")
	v.SetDefault("downloader.downloadTimeout", "30m")
	v.SetDefault("downloader.retention", "0s")
	v.SetDefault("downloader.cleanupInterval", "10m")
	v.SetDefault("downloader.audioQuality", "192")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", "10m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "mediafetch")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	// Rate limit defaults
	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.rps", 5)
	v.SetDefault("rateLimit.burst", 10)

	// History defaults
	v.SetDefault("history.mode", HistoryModeDirect)
	v.SetDefault("history.recentLimit", 5)

	// Webhook defaults
	v.SetDefault("webhook.urls", []string{})
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.timeout", "10s")
}
