// Package catalogfetch is the upstream access layer for an anime catalog.
//
// Every request for catalog data goes through a Client. The client maps the
// request to a cache key, answers from the tier that owns the endpoint when a
// fresh entry exists, and otherwise schedules one upstream call on a
// priority queue. The queue runs calls one at a time behind a rate gate, so
// a burst of cache misses never turns into a burst of upstream traffic.
//
// # Tiers
//
// Named listing families (top anime, top movies, the current season, daily
// schedules and the anime listing) live in the server tier, which is backed
// by bigcache and optionally Redis and keeps each family for its own TTL:
//
//	top anime       6h
//	top movies      12h
//	current season  3h
//	schedules       30m
//	anime listing   6h
//
// A bare /anime request with no filters counts as a listing. Everything
// else lands in the client tier for a couple of seconds, which is just long
// enough to fold duplicate requests from one page render. The cacheserver's
// /cache endpoint instead keeps those in the server tier for the default
// TTL (1h).
// Searches (a q parameter) and requests marked fresh are never cached.
//
// # Quick Start
//
//	client, err := catalogfetch.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	type topAnime struct {
//	    Data []struct {
//	        MalID int    `json:"mal_id"`
//	        Title string `json:"title"`
//	    } `json:"data"`
//	}
//
//	top, err := catalogfetch.Fetch[topAnime](ctx, client, "/top/anime",
//	    catalogfetch.Params{Filter: "bypopularity", Limit: 25},
//	    catalogfetch.PriorityHigh)
//
// # Rate Limits
//
// A 429 from upstream is retried with capped exponential backoff that starts
// at the tier cooldown. When every attempt is rate limited the call fails
// with an error matching ErrRetriesExhausted. Other upstream failures are
// returned as *UpstreamError without retrying.
//
// # Configuration
//
//	cfg := catalogfetch.Config()
//	cfg.Redis.Enabled = true
//	cfg.Redis.Address = "localhost:6379"
//	cfg.ServerCache.Level = "memory-then-redis"
//	client, err := catalogfetch.NewFromConfig(cfg)
//
// or load JSON with environment overrides:
//
//	client, err := catalogfetch.NewFromFile("catalogfetch.json")
//
// # Observability
//
// Client.Health reports tier, Redis and queue state. Client.MetricsHandler
// serves Prometheus metrics when enabled, and a StatsD publisher can be
// switched on through the DataDog section of the config or supplied with
// WithPublisher.
package catalogfetch
