package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hivedocs/hivedocs/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage StorageConfig

	// Decision cache configuration
	Cache CacheConfig

	// Quota reconciler configuration
	Reconciler ReconcilerConfig

	// Search configuration
	Search SearchConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// StorageConfig holds PostgreSQL and Redis connection settings
type StorageConfig struct {
	PostgresURL         string
	PostgresReplicaURLs string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
}

// CacheConfig holds decision cache settings
type CacheConfig struct {
	Enabled bool

	// L1 in-process LRU entry count
	L1Size int

	// TTL applied to both cache tiers
	TTL time.Duration
}

// ReconcilerConfig holds quota reconciler settings
type ReconcilerConfig struct {
	Enabled bool

	// Cron spec for the over-quota sweep
	Schedule string
}

// SearchConfig holds hybrid search defaults
type SearchConfig struct {
	// Minimum cosine similarity for vector eligibility
	SimilarityThreshold float64

	// Maximum chunks returned per request
	MaxResults int

	// Per-document cap when searching across multiple documents
	PerDocumentCap int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry trace propagation
	OTelServiceName string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Cache:         loadCacheConfig(),
		Reconciler:    loadReconcilerConfig(),
		Search:        loadSearchConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("HIVEDOCS_HOST", "0.0.0.0"),
		Port:            getEnv("HIVEDOCS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("HIVEDOCS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("HIVEDOCS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("HIVEDOCS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("HIVEDOCS_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("HIVEDOCS_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() StorageConfig {
	return StorageConfig{
		PostgresURL:         getEnv("HIVEDOCS_POSTGRES_URL", ""),
		PostgresReplicaURLs: getEnv("HIVEDOCS_POSTGRES_REPLICA_URLS", ""),
		PostgresMaxConns:    getEnvInt("HIVEDOCS_POSTGRES_MAX_CONNS", 25),
		PostgresMinConns:    getEnvInt("HIVEDOCS_POSTGRES_MIN_CONNS", 5),
		PostgresTimeout:     getEnvDuration("HIVEDOCS_POSTGRES_TIMEOUT", 30*time.Second),
		RedisURL:            getEnv("HIVEDOCS_REDIS_URL", ""),
		RedisPassword:       getEnv("HIVEDOCS_REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("HIVEDOCS_REDIS_DB", 0),
		RedisMaxRetries:     getEnvInt("HIVEDOCS_REDIS_MAX_RETRIES", 3),
		RedisPoolSize:       getEnvInt("HIVEDOCS_REDIS_POOL_SIZE", 10),
	}
}

// loadCacheConfig loads decision cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: getEnvBool("HIVEDOCS_CACHE_ENABLED", true),
		L1Size:  getEnvInt("HIVEDOCS_CACHE_L1_SIZE", 10000),
		TTL:     getEnvDuration("HIVEDOCS_CACHE_TTL", 5*time.Minute),
	}
}

// loadReconcilerConfig loads quota reconciler configuration from environment
func loadReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Enabled:  getEnvBool("HIVEDOCS_RECONCILER_ENABLED", true),
		Schedule: getEnv("HIVEDOCS_RECONCILER_SCHEDULE", "@every 15m"),
	}
}

// loadSearchConfig loads hybrid search configuration from environment
func loadSearchConfig() SearchConfig {
	return SearchConfig{
		SimilarityThreshold: getEnvFloat("HIVEDOCS_SEARCH_SIMILARITY_THRESHOLD", 0.3),
		MaxResults:          getEnvInt("HIVEDOCS_SEARCH_MAX_RESULTS", 20),
		PerDocumentCap:      getEnvInt("HIVEDOCS_SEARCH_PER_DOCUMENT_CAP", 5),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:        parseLogLevel(getEnv("HIVEDOCS_LOG_LEVEL", "info")),
		MetricsEnabled:  getEnvBool("HIVEDOCS_METRICS_ENABLED", true),
		OTelServiceName: getEnv("HIVEDOCS_OTEL_SERVICE_NAME", "hivedocs"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.PostgresMaxConns < c.Storage.PostgresMinConns {
		return fmt.Errorf("postgres max conns (%d) must be >= min conns (%d)",
			c.Storage.PostgresMaxConns, c.Storage.PostgresMinConns)
	}

	if c.Cache.Enabled && c.Cache.L1Size <= 0 {
		return fmt.Errorf("cache L1 size must be positive when cache is enabled")
	}

	if c.Reconciler.Enabled && c.Reconciler.Schedule == "" {
		return fmt.Errorf("reconciler schedule is required when reconciler is enabled")
	}

	if c.Search.SimilarityThreshold < 0 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("search similarity threshold must be in [0, 1], got %f",
			c.Search.SimilarityThreshold)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search max results must be positive")
	}
	if c.Search.PerDocumentCap <= 0 {
		return fmt.Errorf("search per-document cap must be positive")
	}

	return nil
}

// ReplicaURLList splits the replica URL string into individual URLs
func (c StorageConfig) ReplicaURLList() []string {
	if c.PostgresReplicaURLs == "" {
		return nil
	}
	parts := strings.Split(c.PostgresReplicaURLs, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
