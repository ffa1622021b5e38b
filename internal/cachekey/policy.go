package cachekey

import (
	"time"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

// Policy is the immutable TTL table of the server tier. Every segment has
// exactly one lifetime; generic keys use Default.
type Policy struct {
	ttls       map[types.Segment]time.Duration
	defaultTTL time.Duration
}

// NewPolicy builds a Policy from configured lifetimes. Non-positive values
// fall back to the built-in defaults.
func NewPolicy(cfg config.SegmentTTLConfig) *Policy {
	def := config.DefaultSegmentTTLs()
	pick := func(v, fallback time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return fallback
	}

	return &Policy{
		ttls: map[types.Segment]time.Duration{
			types.SegmentTopAnime:      pick(cfg.TopAnime, def.TopAnime),
			types.SegmentTopMovies:     pick(cfg.TopMovies, def.TopMovies),
			types.SegmentCurrentSeason: pick(cfg.CurrentSeason, def.CurrentSeason),
			types.SegmentSchedules:     pick(cfg.Schedules, def.Schedules),
			types.SegmentAnimeListing:  pick(cfg.AnimeListing, def.AnimeListing),
		},
		defaultTTL: pick(cfg.Default, def.Default),
	}
}

// DefaultPolicy returns the built-in lifetimes.
func DefaultPolicy() *Policy {
	return NewPolicy(config.DefaultSegmentTTLs())
}

// TTL returns the lifetime of a segment.
func (p *Policy) TTL(seg types.Segment) time.Duration {
	if ttl, ok := p.ttls[seg]; ok {
		return ttl
	}
	return p.defaultTTL
}

// TTLForKey returns the lifetime of the segment key belongs to.
func (p *Policy) TTLForKey(key string) time.Duration {
	return p.TTL(Segment(key))
}

// Longest returns the largest lifetime in the table.
func (p *Policy) Longest() time.Duration {
	longest := p.defaultTTL
	for _, ttl := range p.ttls {
		if ttl > longest {
			longest = ttl
		}
	}
	return longest
}
