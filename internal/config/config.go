// Package config provides configuration management for catalogfetch.
package config

import (
	"time"

	"github.com/LavishGent/catalogfetch/internal/types"
)

// SecretString is a string type that redacts its value when marshaled to JSON.
type SecretString = types.SecretString

// NewSecretString creates a new SecretString with the provided value.
func NewSecretString(value string) SecretString {
	return types.NewSecretString(value)
}

// Config contains all configuration for the catalogfetch access layer.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	Upstream       UpstreamConfig       `json:"upstream"`
	RateGate       RateGateConfig       `json:"rateGate"`
	Queue          QueueConfig          `json:"queue"`
	Retry          RetryConfig          `json:"retry"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	ServerCache    ServerCacheConfig    `json:"serverCache"`
	ClientCache    ClientCacheConfig    `json:"clientCache"`
	Redis          RedisConfig          `json:"redis"`
	Metrics        MetricsConfig        `json:"metrics"`
	Server         ServerConfig         `json:"server"`
	Log            LogConfig            `json:"log"`
}

// UpstreamConfig describes the rate-limited catalog API.
type UpstreamConfig struct {
	BaseURL   string        `json:"baseURL"`
	UserAgent string        `json:"userAgent"`
	APIKey    SecretString  `json:"apiKey"`
	Timeout   time.Duration `json:"timeout"`
}

// RateGateConfig sets the minimum spacing between upstream call starts.
type RateGateConfig struct {
	Interval time.Duration `json:"interval"`
}

// QueueConfig contains configuration for the request queue.
type QueueConfig struct {
	// Capacity bounds pending jobs. Zero means unbounded.
	Capacity        int           `json:"capacity"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

// RetryConfig controls re-attempts of rate-limited (429) upstream calls.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RetryConfig struct {
	// ServerCooldown is the first backoff on the server cache path.
	ServerCooldown time.Duration `json:"serverCooldown"`
	// ClientCooldown is the first backoff on the client path.
	ClientCooldown time.Duration `json:"clientCooldown"`
	MaxBackoff     time.Duration `json:"maxBackoff"`
	Multiplier     float64       `json:"multiplier"`
	MaxAttempts    int           `json:"maxAttempts"`
	Jitter         bool          `json:"jitter"`
	// Unbounded retries 429s forever at the cooldown, ignoring MaxAttempts.
	Unbounded bool `json:"unbounded"`
}

// CircuitBreakerConfig contains configuration for the circuit breaker pattern.
type CircuitBreakerConfig struct {
	Enabled             bool          `json:"enabled"`
	FailureThreshold    int           `json:"failureThreshold"`
	SuccessThreshold    int           `json:"successThreshold"`
	OpenDuration        time.Duration `json:"openDuration"`
	HalfOpenMaxRequests int           `json:"halfOpenMaxRequests"`
}

// MemoryConfig contains configuration for a bigcache-backed memory store.
type MemoryConfig struct {
	CleanupInterval  time.Duration `json:"cleanupInterval"`
	MaxSizeMB        int           `json:"maxSizeMB"`
	Shards           int           `json:"shards"`
	MaxEntrySize     int           `json:"maxEntrySize"`
	HardMaxCacheSize bool          `json:"hardMaxCacheSize"`
}

// SegmentTTLConfig holds the lifetime of each endpoint family.
type SegmentTTLConfig struct {
	TopAnime      time.Duration `json:"topAnime"`
	TopMovies     time.Duration `json:"topMovies"`
	CurrentSeason time.Duration `json:"currentSeason"`
	Schedules     time.Duration `json:"schedules"`
	AnimeListing  time.Duration `json:"animeListing"`
	Default       time.Duration `json:"default"`
}

// ServerCacheConfig configures the long-lived, endpoint-segmented tier.
type ServerCacheConfig struct {
	Enabled bool             `json:"enabled"`
	Level   string           `json:"level"`
	TTLs    SegmentTTLConfig `json:"ttls"`
	Memory  MemoryConfig     `json:"memory"`
}

// ClientCacheConfig configures the short-lived de-duplication tier.
type ClientCacheConfig struct {
	Enabled bool          `json:"enabled"`
	TTL     time.Duration `json:"ttl"`
	Memory  MemoryConfig  `json:"memory"`
}

// RedisConfig contains configuration for the shared Redis layer of the
// server tier.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RedisConfig struct {
	DialTimeout         time.Duration `json:"dialTimeout"`
	ReadTimeout         time.Duration `json:"readTimeout"`
	WriteTimeout        time.Duration `json:"writeTimeout"`
	PoolTimeout         time.Duration `json:"poolTimeout"`
	HealthCheckInterval time.Duration `json:"healthCheckInterval"`
	Password            SecretString  `json:"password"`
	Address             string        `json:"address"`
	KeyPrefix           string        `json:"keyPrefix"`
	DB                  int           `json:"db"`
	PoolSize            int           `json:"poolSize"`
	MinIdleConns        int           `json:"minIdleConns"`
	Enabled             bool          `json:"enabled"`
	EnableTLS           bool          `json:"enableTLS"`
	TLSSkipVerify       bool          `json:"tlsSkipVerify"`
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	PublishInterval time.Duration    `json:"publishInterval"`
	DataDog         DataDogConfig    `json:"datadog"`
	Prometheus      PrometheusConfig `json:"prometheus"`
	Enabled         bool             `json:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags"`
	AgentHost string   `json:"agentHost"`
	Prefix    string   `json:"prefix"`
	Port      int      `json:"port"`
	Enabled   bool     `json:"enabled"`
}

// PrometheusConfig controls the Prometheus collectors served on /metrics.
type PrometheusConfig struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}

// ServerConfig configures the HTTP cache endpoint.
type ServerConfig struct {
	Address         string        `json:"address"`
	ReadTimeout     time.Duration `json:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
	// CacheMaxAge is advertised to browsers in Cache-Control.
	CacheMaxAge time.Duration `json:"cacheMaxAge"`
}

// LogConfig selects the slog handler used by the binaries.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}
