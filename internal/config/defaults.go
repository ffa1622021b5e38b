package config

import "time"

// DefaultUpstreamBaseURL is the public catalog API.
const DefaultUpstreamBaseURL = "https://api.jikan.moe/v4"

// DefaultClientCacheTTL is how long the client tier keeps a payload.
const DefaultClientCacheTTL = 2 * time.Second

// DefaultSegmentTTLs returns the lifetime of each endpoint family.
func DefaultSegmentTTLs() SegmentTTLConfig {
	return SegmentTTLConfig{
		TopAnime:      6 * time.Hour,
		TopMovies:     12 * time.Hour,
		CurrentSeason: 3 * time.Hour,
		Schedules:     30 * time.Minute,
		AnimeListing:  6 * time.Hour,
		Default:       1 * time.Hour,
	}
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:   DefaultUpstreamBaseURL,
			UserAgent: "catalogfetch/1.0",
			Timeout:   15 * time.Second,
		},
		RateGate: RateGateConfig{
			Interval: 1 * time.Second,
		},
		Queue: QueueConfig{
			Capacity:        1000,
			ShutdownTimeout: 5 * time.Second,
		},
		Retry: RetryConfig{
			ServerCooldown: 2 * time.Second,
			ClientCooldown: 3 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
			MaxAttempts:    5,
			Jitter:         false,
			Unbounded:      false,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             false,
			FailureThreshold:    5,
			SuccessThreshold:    2,
			OpenDuration:        30 * time.Second,
			HalfOpenMaxRequests: 1,
		},
		ServerCache: ServerCacheConfig{
			Enabled: true,
			Level:   "memory-only",
			TTLs:    DefaultSegmentTTLs(),
			Memory: MemoryConfig{
				MaxSizeMB:        256,
				CleanupInterval:  1 * time.Minute,
				Shards:           1024,
				MaxEntrySize:     1024 * 1024, // 1MB
				HardMaxCacheSize: false,
			},
		},
		ClientCache: ClientCacheConfig{
			Enabled: true,
			TTL:     DefaultClientCacheTTL,
			Memory: MemoryConfig{
				MaxSizeMB:        32,
				CleanupInterval:  1 * time.Second,
				Shards:           64,
				MaxEntrySize:     256 * 1024, // 256KB
				HardMaxCacheSize: false,
			},
		},
		Redis: RedisConfig{
			Enabled:             false,
			Address:             "localhost:6379",
			Password:            SecretString{},
			DB:                  0,
			KeyPrefix:           "catalogfetch:",
			PoolSize:            50,
			MinIdleConns:        5,
			DialTimeout:         5 * time.Second,
			ReadTimeout:         3 * time.Second,
			WriteTimeout:        3 * time.Second,
			PoolTimeout:         4 * time.Second,
			EnableTLS:           false,
			TLSSkipVerify:       false,
			HealthCheckInterval: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			PublishInterval: 30 * time.Second,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "catalogfetch",
				Tags:      []string{},
			},
			Prometheus: PrometheusConfig{
				Enabled:   true,
				Namespace: "catalogfetch",
			},
		},
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			CacheMaxAge:     1 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests.
// Intervals are short so that serialization and retry tests run quickly.
func ForTesting() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:   "http://127.0.0.1:0",
			UserAgent: "catalogfetch-test",
			Timeout:   2 * time.Second,
		},
		RateGate: RateGateConfig{
			Interval: 20 * time.Millisecond,
		},
		Queue: QueueConfig{
			Capacity:        100,
			ShutdownTimeout: 1 * time.Second,
		},
		Retry: RetryConfig{
			ServerCooldown: 20 * time.Millisecond,
			ClientCooldown: 30 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
			Multiplier:     2.0,
			MaxAttempts:    3,
			Jitter:         false,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             false,
			FailureThreshold:    3,
			SuccessThreshold:    1,
			OpenDuration:        1 * time.Second,
			HalfOpenMaxRequests: 1,
		},
		ServerCache: ServerCacheConfig{
			Enabled: true,
			Level:   "memory-only",
			TTLs:    DefaultSegmentTTLs(),
			Memory: MemoryConfig{
				MaxSizeMB:       16,
				CleanupInterval: 1 * time.Second,
				Shards:          64,
				MaxEntrySize:    64 * 1024,
			},
		},
		ClientCache: ClientCacheConfig{
			Enabled: true,
			TTL:     2 * time.Second,
			Memory: MemoryConfig{
				MaxSizeMB:       4,
				CleanupInterval: 1 * time.Second,
				Shards:          16,
				MaxEntrySize:    64 * 1024,
			},
		},
		Redis: RedisConfig{
			Enabled:             false, // Disabled for unit tests
			Address:             "localhost:6379",
			KeyPrefix:           "test:",
			PoolSize:            10,
			MinIdleConns:        1,
			DialTimeout:         1 * time.Second,
			ReadTimeout:         1 * time.Second,
			WriteTimeout:        1 * time.Second,
			PoolTimeout:         1 * time.Second,
			HealthCheckInterval: 0,
		},
		Metrics: MetricsConfig{
			Enabled:         false,
			PublishInterval: 1 * time.Second,
		},
		Server: ServerConfig{
			Address:         "127.0.0.1:0",
			ReadTimeout:     1 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 1 * time.Second,
			CacheMaxAge:     1 * time.Hour,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
		},
	}
}

// ForTestingWithRedis returns a test config with Redis enabled.
func ForTestingWithRedis(addr string) *Config {
	cfg := ForTesting()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = addr
	cfg.ServerCache.Level = "memory-then-redis"
	return cfg
}
