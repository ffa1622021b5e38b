package types

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Params is the closed set of query parameters understood by the access
// layer. Parameters outside that set travel in Extra: they are forwarded
// upstream but never influence cache keys.
type Params struct {
	Extra   map[string]string
	SFW     *bool
	Q       string
	Type    string
	Filter  string
	OrderBy string
	Sort    string
	Page    int
	Limit   int
	// Fresh forces an upstream call for listing requests. It is a local
	// directive and is not sent upstream.
	Fresh bool
}

// Bool returns a pointer to b, for Params.SFW literals.
func Bool(b bool) *bool {
	return &b
}

// freshnessKeys are the query spellings that set Params.Fresh.
var freshnessKeys = map[string]bool{
	"fresh":   true,
	"nocache": true,
	"_t":      true,
}

// singleValued are the recognized keys that may appear at most once.
var singleValued = map[string]bool{
	"page":     true,
	"limit":    true,
	"q":        true,
	"type":     true,
	"filter":   true,
	"order_by": true,
	"sort":     true,
	"sfw":      true,
}

// ParamsFromQuery builds Params from a query string. Keys listed in skip are
// dropped (the cache endpoint uses this for its own "endpoint" and
// "priority" parameters). A repeated recognized key is rejected since it
// would otherwise resolve to an arbitrary one of its values; unrecognized
// keys keep their first value.
func ParamsFromQuery(q url.Values, skip ...string) (Params, error) {
	var p Params

	skipped := make(map[string]bool, len(skip))
	for _, k := range skip {
		skipped[k] = true
	}

	for key, values := range q {
		if skipped[key] {
			continue
		}
		if len(values) > 1 && singleValued[key] {
			return Params{}, fmt.Errorf("%w: %s given more than once", ErrInvalidParams, key)
		}
		value := ""
		if len(values) > 0 {
			value = strings.TrimSpace(values[0])
		}

		switch {
		case key == "page":
			n, err := parseCount(key, value)
			if err != nil {
				return Params{}, err
			}
			p.Page = n
		case key == "limit":
			n, err := parseCount(key, value)
			if err != nil {
				return Params{}, err
			}
			p.Limit = n
		case key == "q":
			p.Q = value
		case key == "type":
			p.Type = value
		case key == "filter":
			p.Filter = value
		case key == "order_by":
			p.OrderBy = value
		case key == "sort":
			p.Sort = value
		case key == "sfw":
			sfw, err := parseFlag(key, value)
			if err != nil {
				return Params{}, err
			}
			p.SFW = &sfw
		case freshnessKeys[key]:
			p.Fresh = true
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[key] = value
		}
	}

	return p, p.Validate()
}

// Query encodes the parameters for the upstream request.
func (p Params) Query() url.Values {
	q := url.Values{}
	for k, v := range p.Extra {
		q.Set(k, v)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Q != "" {
		q.Set("q", p.Q)
	}
	if p.Type != "" {
		q.Set("type", p.Type)
	}
	if p.Filter != "" {
		q.Set("filter", p.Filter)
	}
	if p.OrderBy != "" {
		q.Set("order_by", p.OrderBy)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.SFW != nil {
		q.Set("sfw", strconv.FormatBool(*p.SFW))
	}
	return q
}

// Args renders the parameters in a stable order. The client tier uses it to
// build composite operation keys.
func (p Params) Args() string {
	return p.Query().Encode()
}

func parseCount(key, value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidParams, key, value)
	}
	return n, nil
}

func parseFlag(key, value string) (bool, error) {
	switch strings.ToLower(value) {
	case "", "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", ErrInvalidParams, key, value)
	}
}
