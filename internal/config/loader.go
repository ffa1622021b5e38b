package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load loads configuration from a JSON file.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CATALOGFETCH_UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("CATALOGFETCH_UPSTREAM_TIMEOUT"); v != "" {
		cfg.Upstream.Timeout = parseDuration(v, cfg.Upstream.Timeout)
	}
	if v := os.Getenv("CATALOGFETCH_UPSTREAM_USER_AGENT"); v != "" {
		cfg.Upstream.UserAgent = v
	}
	if v := os.Getenv("CATALOGFETCH_UPSTREAM_API_KEY"); v != "" {
		cfg.Upstream.APIKey = NewSecretString(v)
	}

	if v := os.Getenv("CATALOGFETCH_RATE_GATE_INTERVAL"); v != "" {
		cfg.RateGate.Interval = parseDuration(v, cfg.RateGate.Interval)
	}

	if v := os.Getenv("CATALOGFETCH_QUEUE_CAPACITY"); v != "" {
		cfg.Queue.Capacity = parseInt(v, cfg.Queue.Capacity)
	}

	if v := os.Getenv("CATALOGFETCH_RETRY_MAX_ATTEMPTS"); v != "" {
		cfg.Retry.MaxAttempts = parseInt(v, cfg.Retry.MaxAttempts)
	}
	if v := os.Getenv("CATALOGFETCH_RETRY_SERVER_COOLDOWN"); v != "" {
		cfg.Retry.ServerCooldown = parseDuration(v, cfg.Retry.ServerCooldown)
	}
	if v := os.Getenv("CATALOGFETCH_RETRY_CLIENT_COOLDOWN"); v != "" {
		cfg.Retry.ClientCooldown = parseDuration(v, cfg.Retry.ClientCooldown)
	}
	if v := os.Getenv("CATALOGFETCH_RETRY_MAX_BACKOFF"); v != "" {
		cfg.Retry.MaxBackoff = parseDuration(v, cfg.Retry.MaxBackoff)
	}
	if v := os.Getenv("CATALOGFETCH_RETRY_UNBOUNDED"); v != "" {
		cfg.Retry.Unbounded = parseBool(v)
	}

	if v := os.Getenv("CATALOGFETCH_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("CATALOGFETCH_CIRCUIT_BREAKER_FAILURE_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.FailureThreshold = parseInt(v, cfg.CircuitBreaker.FailureThreshold)
	}
	if v := os.Getenv("CATALOGFETCH_CIRCUIT_BREAKER_OPEN_DURATION"); v != "" {
		cfg.CircuitBreaker.OpenDuration = parseDuration(v, cfg.CircuitBreaker.OpenDuration)
	}

	if v := os.Getenv("CATALOGFETCH_SERVER_CACHE_ENABLED"); v != "" {
		cfg.ServerCache.Enabled = parseBool(v)
	}
	if v := os.Getenv("CATALOGFETCH_SERVER_CACHE_LEVEL"); v != "" {
		cfg.ServerCache.Level = v
	}
	if v := os.Getenv("CATALOGFETCH_SERVER_CACHE_DEFAULT_TTL"); v != "" {
		cfg.ServerCache.TTLs.Default = parseDuration(v, cfg.ServerCache.TTLs.Default)
	}
	if v := os.Getenv("CATALOGFETCH_SERVER_CACHE_MAX_SIZE_MB"); v != "" {
		cfg.ServerCache.Memory.MaxSizeMB = parseInt(v, cfg.ServerCache.Memory.MaxSizeMB)
	}

	if v := os.Getenv("CATALOGFETCH_CLIENT_CACHE_ENABLED"); v != "" {
		cfg.ClientCache.Enabled = parseBool(v)
	}
	if v := os.Getenv("CATALOGFETCH_CLIENT_CACHE_TTL"); v != "" {
		cfg.ClientCache.TTL = parseDuration(v, cfg.ClientCache.TTL)
	}

	if v := os.Getenv("CATALOGFETCH_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("CATALOGFETCH_REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("CATALOGFETCH_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = NewSecretString(v)
	}
	if v := os.Getenv("CATALOGFETCH_REDIS_DB"); v != "" {
		cfg.Redis.DB = parseInt(v, cfg.Redis.DB)
	}
	if v := os.Getenv("CATALOGFETCH_REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
	if v := os.Getenv("CATALOGFETCH_REDIS_POOL_SIZE"); v != "" {
		cfg.Redis.PoolSize = parseInt(v, cfg.Redis.PoolSize)
	}
	if v := os.Getenv("CATALOGFETCH_REDIS_ENABLE_TLS"); v != "" {
		cfg.Redis.EnableTLS = parseBool(v)
	}
	if v := os.Getenv("CATALOGFETCH_REDIS_TLS_SKIP_VERIFY"); v != "" {
		cfg.Redis.TLSSkipVerify = parseBool(v)
	}

	if v := os.Getenv("CATALOGFETCH_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("CATALOGFETCH_PROMETHEUS_ENABLED"); v != "" {
		cfg.Metrics.Prometheus.Enabled = parseBool(v)
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}

	if v := os.Getenv("CATALOGFETCH_DATADOG_ENABLED"); v != "" {
		if os.Getenv("DD_AGENT_HOST") == "" {
			cfg.Metrics.DataDog.Enabled = parseBool(v)
		}
	}

	if v := os.Getenv("CATALOGFETCH_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	// Serverless platforms hand the listen port over in PORT.
	if v := os.Getenv("PORT"); v != "" && os.Getenv("CATALOGFETCH_SERVER_ADDRESS") == "" {
		cfg.Server.Address = ":" + strings.TrimSpace(v)
	}

	if v := os.Getenv("CATALOGFETCH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CATALOGFETCH_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

var validLevels = map[string]bool{
	"memory-only":       true,
	"redis-only":        true,
	"memory-then-redis": true,
}

// Validate checks if the configuration is valid.
//
//nolint:gocyclo // One check per field keeps the messages precise
func (c *Config) Validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.baseURL must be an absolute URL, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}

	if c.RateGate.Interval <= 0 {
		return fmt.Errorf("rateGate.interval must be positive")
	}

	if c.Queue.Capacity < 0 {
		return fmt.Errorf("queue.capacity must not be negative")
	}

	if c.Retry.ServerCooldown <= 0 || c.Retry.ClientCooldown <= 0 {
		return fmt.Errorf("retry cooldowns must be positive")
	}
	if !c.Retry.Unbounded {
		if c.Retry.MaxAttempts <= 0 {
			return fmt.Errorf("retry.maxAttempts must be positive")
		}
		if c.Retry.Multiplier < 1 {
			return fmt.Errorf("retry.multiplier must be at least 1")
		}
		if c.Retry.MaxBackoff < c.Retry.ServerCooldown || c.Retry.MaxBackoff < c.Retry.ClientCooldown {
			return fmt.Errorf("retry.maxBackoff must not be shorter than the cooldowns")
		}
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuitBreaker.failureThreshold must be positive")
		}
		if c.CircuitBreaker.OpenDuration <= 0 {
			return fmt.Errorf("circuitBreaker.openDuration must be positive")
		}
	}

	if c.ServerCache.Enabled {
		if !validLevels[c.ServerCache.Level] {
			return fmt.Errorf("serverCache.level %q is not one of memory-only, redis-only, memory-then-redis", c.ServerCache.Level)
		}
		if err := c.ServerCache.TTLs.validate(); err != nil {
			return err
		}
		if c.ServerCache.Level != "redis-only" {
			if err := c.ServerCache.Memory.validate("serverCache.memory"); err != nil {
				return err
			}
		}
		if c.ServerCache.Level != "memory-only" && !c.Redis.Enabled {
			return fmt.Errorf("serverCache.level %q requires redis.enabled", c.ServerCache.Level)
		}
	}

	if c.ClientCache.Enabled {
		if c.ClientCache.TTL <= 0 {
			return fmt.Errorf("clientCache.ttl must be positive")
		}
		if err := c.ClientCache.Memory.validate("clientCache.memory"); err != nil {
			return err
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address is required when redis is enabled")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.poolSize must be positive")
		}
	}

	return nil
}

func (m MemoryConfig) validate(section string) error {
	if m.MaxSizeMB <= 0 {
		return fmt.Errorf("%s.maxSizeMB must be positive", section)
	}
	if m.Shards <= 0 || (m.Shards&(m.Shards-1)) != 0 {
		return fmt.Errorf("%s.shards must be a positive power of 2", section)
	}
	return nil
}

func (t SegmentTTLConfig) validate() error {
	ttls := map[string]time.Duration{
		"topAnime":      t.TopAnime,
		"topMovies":     t.TopMovies,
		"currentSeason": t.CurrentSeason,
		"schedules":     t.Schedules,
		"animeListing":  t.AnimeListing,
		"default":       t.Default,
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("serverCache.ttls.%s must be positive", name)
		}
	}
	return nil
}

// Longest returns the largest segment TTL. The memory store's global life
// window is sized from it.
func (t SegmentTTLConfig) Longest() time.Duration {
	longest := t.Default
	for _, ttl := range []time.Duration{t.TopAnime, t.TopMovies, t.CurrentSeason, t.Schedules, t.AnimeListing} {
		if ttl > longest {
			longest = ttl
		}
	}
	return longest
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}
