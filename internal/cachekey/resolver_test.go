package cachekey

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		endpoint  string
		params    types.Params
		wantKey   string
		cacheable bool
	}{
		{"top movies", "/top/anime", types.Params{Type: "movie"}, "/top/anime/movie", true},
		{"top anime", "/top/anime", types.Params{}, "/top/anime", true},
		{"top anime tv stays top anime", "/top/anime", types.Params{Type: "tv"}, "/top/anime", true},
		{"top anime filter is coarsened", "/top/anime", types.Params{Filter: "airing", Page: 2}, "/top/anime", true},
		{"schedule day", "/schedules", types.Params{Filter: "monday"}, "/schedules/monday", true},
		{"schedules without day", "/schedules", types.Params{}, "/schedules", true},
		{"anime search", "/anime", types.Params{Q: "naruto"}, "", false},
		{"anime search with filters", "/anime", types.Params{Q: "naruto", OrderBy: "score"}, "", false},
		{"anime fresh", "/anime", types.Params{Fresh: true, OrderBy: "score"}, "", false},
		{"anime listing", "/anime", types.Params{OrderBy: "score", Sort: "desc"}, "/anime?order_by=score&sort=desc", true},
		{"anime listing all filters", "/anime",
			types.Params{Type: "tv", SFW: types.Bool(true), Sort: "asc", OrderBy: "popularity"},
			"/anime?order_by=popularity&sfw=true&sort=asc&type=tv", true},
		{"anime sfw false", "/anime", types.Params{SFW: types.Bool(false)}, "/anime?sfw=false", true},
		{"anime without filters", "/anime", types.Params{Page: 3, Limit: 10}, "/anime", true},
		{"current season", "/seasons/now", types.Params{Page: 2}, "/seasons/now", true},
		{"generic endpoint", "/anime/5114/full", types.Params{}, "/anime/5114/full", true},
		{"fresh outside anime is ignored", "/top/anime", types.Params{Fresh: true}, "/top/anime", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := Resolve(tt.endpoint, tt.params)
			if ok != tt.cacheable {
				t.Fatalf("Resolve() cacheable = %v, want %v", ok, tt.cacheable)
			}
			if key != tt.wantKey {
				t.Errorf("Resolve() key = %q, want %q", key, tt.wantKey)
			}
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	// Build the same params from queries whose keys arrive in different orders.
	queries := []string{
		"order_by=score&sort=desc&type=tv&sfw",
		"sfw&type=tv&sort=desc&order_by=score",
		"type=tv&sfw=true&order_by=score&sort=desc",
	}

	var first string
	for i, raw := range queries {
		q, err := url.ParseQuery(raw)
		if err != nil {
			t.Fatalf("ParseQuery(%q) error = %v", raw, err)
		}
		p, err := types.ParamsFromQuery(q)
		if err != nil {
			t.Fatalf("ParamsFromQuery(%q) error = %v", raw, err)
		}

		for range 3 {
			key, ok := Resolve("/anime", p)
			if !ok {
				t.Fatalf("Resolve(%q) not cacheable", raw)
			}
			if i == 0 && first == "" {
				first = key
			}
			if key != first {
				t.Errorf("Resolve(%q) = %q, want %q", raw, key, first)
			}
		}
	}
}

func TestResolveCoarsening(t *testing.T) {
	base := types.Params{OrderBy: "score"}
	variants := []types.Params{
		{OrderBy: "score", Page: 2},
		{OrderBy: "score", Limit: 25},
		{OrderBy: "score", Extra: map[string]string{"genres": "1"}},
		{OrderBy: "score", Filter: "airing"},
	}

	want, _ := Resolve("/anime", base)
	for _, v := range variants {
		got, ok := Resolve("/anime", v)
		if !ok || got != want {
			t.Errorf("Resolve(%+v) = %q/%v, want %q", v, got, ok, want)
		}
	}
}

func TestSegment(t *testing.T) {
	tests := []struct {
		key  string
		want types.Segment
	}{
		{"/top/anime", types.SegmentTopAnime},
		{"/top/anime/movie", types.SegmentTopMovies},
		{"/seasons/now", types.SegmentCurrentSeason},
		{"/schedules/monday", types.SegmentSchedules},
		{"/schedules", types.SegmentSchedules},
		{"/anime?order_by=score", types.SegmentAnimeListing},
		{"/anime", types.SegmentAnimeListing},
		{"/anime/5114/full", types.SegmentGeneric},
		{"/animex", types.SegmentGeneric},
		{"/top/manga", types.SegmentGeneric},
		{"/schedulesx", types.SegmentGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := Segment(tt.key); got != tt.want {
				t.Errorf("Segment(%q) = %s, want %s", tt.key, got, tt.want)
			}
		})
	}
}

func TestSegmentsAreDistinctKeys(t *testing.T) {
	movie, _ := Resolve("/top/anime", types.Params{Type: "movie"})
	top, _ := Resolve("/top/anime", types.Params{})

	if movie == top {
		t.Fatalf("movie and top anime share key %q", movie)
	}
	if Segment(movie) == Segment(top) {
		t.Errorf("movie and top anime share segment %s", Segment(movie))
	}
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		key  string
		want time.Duration
	}{
		{"/top/anime", 6 * time.Hour},
		{"/top/anime/movie", 12 * time.Hour},
		{"/seasons/now", 3 * time.Hour},
		{"/schedules/monday", 30 * time.Minute},
		{"/anime?order_by=score", 6 * time.Hour},
		{"/anime", 6 * time.Hour},
		{"/producers", time.Hour},
	}

	for _, tt := range tests {
		if got := p.TTLForKey(tt.key); got != tt.want {
			t.Errorf("TTLForKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}

	if p.Longest() != 12*time.Hour {
		t.Errorf("Longest() = %v, want 12h", p.Longest())
	}
}

func TestNewPolicyOverrides(t *testing.T) {
	cfg := config.DefaultSegmentTTLs()
	cfg.Schedules = 5 * time.Minute
	cfg.Default = 0

	p := NewPolicy(cfg)

	if got := p.TTL(types.SegmentSchedules); got != 5*time.Minute {
		t.Errorf("TTL(schedules) = %v, want 5m", got)
	}
	if got := p.TTL(types.SegmentGeneric); got != time.Hour {
		t.Errorf("TTL(generic) = %v, want fallback 1h", got)
	}
}

func TestPatternsCoverSegmentKeys(t *testing.T) {
	keys := []string{
		"/top/anime",
		"/top/anime/movie",
		"/seasons/now",
		"/schedules",
		"/schedules/monday",
		"/anime",
		"/anime?order_by=score",
		"/anime?sfw=true&type=tv",
		"/anime/5114",
		"/schedulesx",
	}

	for _, key := range keys {
		seg := Segment(key)
		if seg == types.SegmentGeneric {
			continue
		}
		patterns := Patterns(seg)
		if len(patterns) == 0 {
			t.Fatalf("Patterns(%s) is empty", seg)
		}
		for _, other := range keys {
			matches := false
			for _, pattern := range patterns {
				matches = matches || patternMatches(other, pattern)
			}
			if want := Segment(other) == seg; matches != want {
				t.Errorf("patterns %q vs %q = %v, want %v", patterns, other, matches, want)
			}
		}
	}

	if got := Patterns(types.SegmentGeneric); len(got) != 0 {
		t.Errorf("generic segment should have no patterns, got %q", got)
	}
}

// patternMatches mirrors the single-wildcard matching of the stores.
func patternMatches(key, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(key, prefix)
	}
	return key == pattern
}
