package catalogfetch

import (
	"github.com/LavishGent/catalogfetch/internal/types"
)

type (
	// Params are the query parameters of a catalog request.
	Params = types.Params
	// Priority orders pending upstream calls.
	Priority = types.Priority
	// Tier names the cache tier that owns an endpoint family.
	Tier = types.Tier
	// Segment is an endpoint family with its own cache lifetime.
	Segment = types.Segment
	// CacheEntry is a stored upstream payload.
	CacheEntry = types.CacheEntry
	// MetricsRecorder receives cache and upstream events.
	MetricsRecorder = types.MetricsRecorder
	// Publisher pushes metrics to an external sink.
	Publisher = types.Publisher
	// PublisherHealthMetrics is the periodic sample sent to a Publisher.
	PublisherHealthMetrics = types.PublisherHealthMetrics
	// Logger provides logging operations.
	Logger = types.Logger
)

const (
	PriorityLow    = types.PriorityLow
	PriorityMedium = types.PriorityMedium
	PriorityHigh   = types.PriorityHigh
)

const (
	SegmentGeneric       = types.SegmentGeneric
	SegmentTopAnime      = types.SegmentTopAnime
	SegmentTopMovies     = types.SegmentTopMovies
	SegmentCurrentSeason = types.SegmentCurrentSeason
	SegmentSchedules     = types.SegmentSchedules
	SegmentAnimeListing  = types.SegmentAnimeListing
)

const (
	TierServer = types.TierServer
	TierClient = types.TierClient
)

// Bool returns a pointer to b, for Params.SFW.
func Bool(b bool) *bool {
	return types.Bool(b)
}

// ParsePriority maps "high", "medium" and "low" to a Priority, defaulting
// to PriorityMedium.
func ParsePriority(s string) Priority {
	return types.ParsePriority(s)
}
