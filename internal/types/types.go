// Package types provides shared types for the catalogfetch access layer.
// This package breaks import cycles between pkg/catalogfetch and the internal packages.
package types

import (
	"encoding/json"
	"time"
)

// Priority orders pending upstream jobs. Higher priorities drain first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the declared priorities.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

// ParsePriority maps "high", "medium" and "low" to a Priority.
// Anything else yields PriorityMedium.
func ParsePriority(s string) Priority {
	switch s {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Tier identifies which cache tier serves an endpoint family.
type Tier int

const (
	TierServer Tier = iota + 1
	TierClient
)

func (t Tier) String() string {
	switch t {
	case TierServer:
		return "server"
	case TierClient:
		return "client"
	default:
		return "unknown"
	}
}

// Segment is an endpoint family with its own cache lifetime.
type Segment int

const (
	SegmentGeneric Segment = iota
	SegmentTopAnime
	SegmentTopMovies
	SegmentCurrentSeason
	SegmentSchedules
	SegmentAnimeListing
)

func (s Segment) String() string {
	switch s {
	case SegmentGeneric:
		return "generic"
	case SegmentTopAnime:
		return "top-anime"
	case SegmentTopMovies:
		return "top-movies"
	case SegmentCurrentSeason:
		return "current-season"
	case SegmentSchedules:
		return "schedules"
	case SegmentAnimeListing:
		return "anime-listing"
	default:
		return "unknown"
	}
}

// Tier returns the cache tier that owns entries of this segment.
// Every named family lives in the server tier; generic calls only get
// short-lived client de-duplication.
func (s Segment) Tier() Tier {
	if s == SegmentGeneric {
		return TierClient
	}
	return TierServer
}

// CacheLevel specifies which backends the server tier uses.
type CacheLevel int

const (
	LevelMemoryOnly CacheLevel = iota + 1
	LevelRedisOnly
	LevelMemoryThenRedis
)

func (l CacheLevel) String() string {
	switch l {
	case LevelMemoryOnly:
		return "memory-only"
	case LevelRedisOnly:
		return "redis-only"
	case LevelMemoryThenRedis:
		return "memory-then-redis"
	default:
		return "unknown"
	}
}

func (l CacheLevel) IncludesMemory() bool {
	return l == LevelMemoryOnly || l == LevelMemoryThenRedis
}

func (l CacheLevel) IncludesRedis() bool {
	return l == LevelRedisOnly || l == LevelMemoryThenRedis
}

// ParseCacheLevel parses the config spelling of a CacheLevel.
func ParseCacheLevel(s string) CacheLevel {
	switch s {
	case "redis-only":
		return LevelRedisOnly
	case "memory-then-redis":
		return LevelMemoryThenRedis
	default:
		return LevelMemoryOnly
	}
}

// CacheEntry is a stored upstream payload. Payload is never mutated after
// the entry is written.
type CacheEntry struct {
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"storedAt"`
}

// IsFresh reports whether the entry is still servable at now for the given ttl.
func (e *CacheEntry) IsFresh(now time.Time, ttl time.Duration) bool {
	if e == nil || ttl <= 0 {
		return false
	}
	return now.Before(e.StoredAt.Add(ttl))
}

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// CacheStats contains counters for one cache tier.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Errors    int64
	Shared    int64
	Evictions int64
}
