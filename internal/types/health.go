package types

import "time"

// HealthStatus represents the overall health state.
type HealthStatus int

const (
	// HealthStatusHealthy indicates all systems operating normally.
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusDegraded indicates partial functionality (e.g., Redis down, breaker open).
	HealthStatusDegraded
	// HealthStatusUnhealthy indicates the client can no longer serve requests.
	HealthStatusUnhealthy
)

// String returns the string representation of health status.
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON health reports.
func (s HealthStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HealthMetrics contains overall access layer health information.
type HealthMetrics struct {
	Timestamp   time.Time          `json:"timestamp"`
	ServerCache TierHealthMetrics  `json:"serverCache"`
	ClientCache TierHealthMetrics  `json:"clientCache"`
	Redis       RedisHealthMetrics `json:"redis"`
	Queue       QueueHealthMetrics `json:"queue"`
	Status      HealthStatus       `json:"status"`
}

// TierHealthMetrics contains health details for one cache tier.
type TierHealthMetrics struct {
	Status          HealthStatus `json:"status"`
	Available       bool         `json:"available"`
	EntryCount      int          `json:"entryCount"`
	SizeBytes       int64        `json:"sizeBytes"`
	UsagePercentage float64      `json:"usagePercentage"`
	HitCount        int64        `json:"hitCount"`
	MissCount       int64        `json:"missCount"`
	SharedCount     int64        `json:"sharedCount"`
	HitRatio        float64      `json:"hitRatio"`
}

// RedisHealthMetrics contains Redis backend health details.
type RedisHealthMetrics struct {
	Status     HealthStatus `json:"status"`
	Enabled    bool         `json:"enabled"`
	Connected  bool         `json:"connected"`
	ErrorCount int64        `json:"errorCount"`
}

// QueueHealthMetrics describes the upstream request queue.
//
//nolint:govet // Metrics struct - logical grouping prioritized for readability
type QueueHealthMetrics struct {
	LastRequestAt       time.Time `json:"lastRequestAt"`
	Pending             int       `json:"pending"`
	Capacity            int       `json:"capacity"`
	Executed            int64     `json:"executed"`
	Rejected            int64     `json:"rejected"`
	RateLimitRetries    int64     `json:"rateLimitRetries"`
	CircuitBreakerState string    `json:"circuitBreakerState"`
}

// MetricsSnapshot contains a point-in-time view of access layer metrics.
//
//nolint:govet // Metrics struct with many counters - grouping by category improves readability
type MetricsSnapshot struct {
	Timestamp time.Time
	// Hit/miss counters
	ServerHits   int64
	ServerMisses int64
	ClientHits   int64
	ClientMisses int64
	SharedLoads  int64
	SetCount     int64
	ErrorCount   int64

	// Upstream counters
	UpstreamCalls    int64
	UpstreamFailures int64
	RateLimited      int64
	QueueDepth       int64

	// Upstream latency (milliseconds)
	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64

	CircuitBreakerChanges int64
}

// ServerHitRatio calculates the server tier hit ratio.
func (s *MetricsSnapshot) ServerHitRatio() float64 {
	total := s.ServerHits + s.ServerMisses
	if total == 0 {
		return 0
	}
	return float64(s.ServerHits) / float64(total)
}

// ClientHitRatio calculates the client tier hit ratio.
func (s *MetricsSnapshot) ClientHitRatio() float64 {
	total := s.ClientHits + s.ClientMisses
	if total == 0 {
		return 0
	}
	return float64(s.ClientHits) / float64(total)
}

// TotalHitRatio calculates the overall cache hit ratio.
func (s *MetricsSnapshot) TotalHitRatio() float64 {
	totalHits := s.ServerHits + s.ClientHits
	total := totalHits + s.ServerMisses + s.ClientMisses
	if total == 0 {
		return 0
	}
	return float64(totalHits) / float64(total)
}

// PublisherHealthMetrics is the periodic health sample pushed to publishers.
type PublisherHealthMetrics struct {
	ServerEntries         int
	ServerUsagePercentage float64
	ServerHitRatio        float64
	ClientHitRatio        float64
	QueueDepth            int
	RateLimitRetries      int64
	UpstreamAvgLatencyMs  float64
	RedisConnected        bool
	CircuitOpen           bool
}
