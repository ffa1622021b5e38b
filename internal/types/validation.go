package types

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPageSize is the largest page the upstream API serves.
	MaxPageSize = 25
	// MaxEndpointLength bounds endpoint paths accepted by Fetch.
	MaxEndpointLength = 256
)

var (
	validTypes = setOf("tv", "movie", "ova", "special", "ona", "music", "cm", "pv", "tv_special")

	// Filters for /top/anime plus the weekday filters for /schedules.
	validFilters = setOf(
		"airing", "upcoming", "bypopularity", "favorite",
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
		"unknown", "other",
	)

	validOrderBy = setOf(
		"mal_id", "title", "start_date", "end_date", "episodes", "score",
		"scored_by", "rank", "popularity", "members", "favorites",
	)

	validSort = setOf("asc", "desc")
)

// ValidateEndpoint checks that endpoint is a plausible upstream path.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint cannot be empty", ErrInvalidEndpoint)
	}

	if len(endpoint) > MaxEndpointLength {
		return fmt.Errorf("%w: endpoint length %d exceeds maximum %d bytes",
			ErrInvalidEndpoint, len(endpoint), MaxEndpointLength)
	}

	if !strings.HasPrefix(endpoint, "/") {
		return fmt.Errorf("%w: endpoint %q must start with /", ErrInvalidEndpoint, endpoint)
	}

	if !utf8.ValidString(endpoint) {
		return fmt.Errorf("%w: endpoint contains invalid UTF-8", ErrInvalidEndpoint)
	}

	for i, r := range endpoint {
		if r < 32 || r == 127 || unicode.IsSpace(r) {
			return fmt.Errorf("%w: endpoint contains control character or whitespace at position %d",
				ErrInvalidEndpoint, i)
		}
		if r == '?' || r == '#' {
			return fmt.Errorf("%w: endpoint must not carry a query or fragment", ErrInvalidEndpoint)
		}
	}

	if strings.Contains(endpoint, "..") {
		return fmt.Errorf("%w: endpoint must not contain ..", ErrInvalidEndpoint)
	}

	return nil
}

// Validate checks the recognized parameters against the upstream enums.
func (p Params) Validate() error {
	if p.Page < 0 {
		return fmt.Errorf("%w: page must not be negative", ErrInvalidParams)
	}

	if p.Limit < 0 || p.Limit > MaxPageSize {
		return fmt.Errorf("%w: limit must be between 0 and %d", ErrInvalidParams, MaxPageSize)
	}

	if p.Type != "" && !validTypes[p.Type] {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidParams, p.Type)
	}

	if p.Filter != "" && !validFilters[p.Filter] {
		return fmt.Errorf("%w: unknown filter %q", ErrInvalidParams, p.Filter)
	}

	if p.OrderBy != "" && !validOrderBy[p.OrderBy] {
		return fmt.Errorf("%w: unknown order_by %q", ErrInvalidParams, p.OrderBy)
	}

	if p.Sort != "" && !validSort[p.Sort] {
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidParams, p.Sort)
	}

	return nil
}

func setOf(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
