// Package cachekey maps upstream requests to canonical cache keys and
// decides how long each endpoint family stays cached.
package cachekey

import (
	"sort"
	"strconv"
	"strings"

	"github.com/LavishGent/catalogfetch/internal/types"
)

const (
	topAnimePath      = "/top/anime"
	topMoviesKey      = "/top/anime/movie"
	schedulesPath     = "/schedules"
	animePath         = "/anime"
	currentSeasonPath = "/seasons/now"
	listingPrefix     = animePath + "?"
)

// Resolve returns the cache key for a request, or false when the request
// must never be cached. It is pure: equal inputs always give equal results.
//
// Parameters outside order_by, sort, sfw, type and filter never reach the
// key, so requests differing only in page, limit or an unknown parameter
// share one entry.
func Resolve(endpoint string, p types.Params) (string, bool) {
	switch endpoint {
	case topAnimePath:
		if p.Type == "movie" {
			return topMoviesKey, true
		}
	case schedulesPath:
		if p.Filter != "" {
			return schedulesPath + "/" + p.Filter, true
		}
	case animePath:
		if p.Q != "" || p.Fresh {
			return "", false
		}
		if key, ok := listingKey(p); ok {
			return key, true
		}
	}
	return endpoint, true
}

// listingKey builds "/anime?k=v&..." from the recognized listing filters.
func listingKey(p types.Params) (string, bool) {
	pairs := make([]string, 0, 4)
	if p.OrderBy != "" {
		pairs = append(pairs, "order_by="+p.OrderBy)
	}
	if p.Sort != "" {
		pairs = append(pairs, "sort="+p.Sort)
	}
	if p.SFW != nil {
		pairs = append(pairs, "sfw="+strconv.FormatBool(*p.SFW))
	}
	if p.Type != "" {
		pairs = append(pairs, "type="+p.Type)
	}
	if len(pairs) == 0 {
		return "", false
	}
	sort.Strings(pairs)
	return listingPrefix + strings.Join(pairs, "&"), true
}

// Segment reports the endpoint family a resolved key belongs to.
func Segment(key string) types.Segment {
	switch {
	case key == topAnimePath:
		return types.SegmentTopAnime
	case key == topMoviesKey:
		return types.SegmentTopMovies
	case key == currentSeasonPath:
		return types.SegmentCurrentSeason
	case key == schedulesPath, strings.HasPrefix(key, schedulesPath+"/"):
		return types.SegmentSchedules
	case key == animePath, strings.HasPrefix(key, listingPrefix):
		return types.SegmentAnimeListing
	default:
		return types.SegmentGeneric
	}
}

// Patterns returns store patterns that together match every key of seg,
// using the single "*" wildcard the stores understand. Generic keys have
// none.
func Patterns(seg types.Segment) []string {
	switch seg {
	case types.SegmentTopAnime:
		return []string{topAnimePath}
	case types.SegmentTopMovies:
		return []string{topMoviesKey}
	case types.SegmentCurrentSeason:
		return []string{currentSeasonPath}
	case types.SegmentSchedules:
		return []string{schedulesPath, schedulesPath + "/*"}
	case types.SegmentAnimeListing:
		return []string{animePath, listingPrefix + "*"}
	default:
		return nil
	}
}
