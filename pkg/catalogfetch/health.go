package catalogfetch

import (
	"github.com/LavishGent/catalogfetch/internal/types"
)

type (
	HealthStatus       = types.HealthStatus
	HealthMetrics      = types.HealthMetrics
	TierHealthMetrics  = types.TierHealthMetrics
	RedisHealthMetrics = types.RedisHealthMetrics
	QueueHealthMetrics = types.QueueHealthMetrics
	MetricsSnapshot    = types.MetricsSnapshot
)

const (
	HealthStatusHealthy   = types.HealthStatusHealthy
	HealthStatusDegraded  = types.HealthStatusDegraded
	HealthStatusUnhealthy = types.HealthStatusUnhealthy
)
