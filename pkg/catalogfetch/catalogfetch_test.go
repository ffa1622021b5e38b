package catalogfetch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/catalogfetch/pkg/catalogfetch"
)

type topAnime struct {
	Data []struct {
		MalID int    `json:"mal_id"`
		Title string `json:"title"`
	} `json:"data"`
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string) *catalogfetch.Client {
	t.Helper()
	cfg := catalogfetch.TestConfig()
	cfg.Upstream.BaseURL = baseURL

	client, err := catalogfetch.NewFromConfig(cfg,
		catalogfetch.WithSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestFetchDecodesAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/top/anime", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":[{"mal_id":5114,"title":"Fullmetal Alchemist: Brotherhood"}]}`)
	})
	client := newClient(t, srv.URL)
	ctx := context.Background()
	params := catalogfetch.Params{Filter: "bypopularity", Limit: 25}

	first, err := catalogfetch.Fetch[topAnime](ctx, client, "/top/anime", params, catalogfetch.PriorityHigh)
	require.NoError(t, err)
	require.Len(t, first.Data, 1)
	assert.Equal(t, 5114, first.Data[0].MalID)

	second, err := catalogfetch.Fetch[topAnime](ctx, client, "/top/anime", params, catalogfetch.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	snap := client.Metrics()
	assert.Equal(t, int64(1), snap.ServerHits)
	assert.True(t, client.IsHealthy(ctx))
}

func TestFetchDecodeFailure(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data":"not a list"}`)
	})
	client := newClient(t, srv.URL)

	_, err := catalogfetch.Fetch[topAnime](context.Background(), client, "/top/anime", catalogfetch.Params{}, catalogfetch.PriorityMedium)

	assert.ErrorIs(t, err, catalogfetch.ErrSerializationFailed)
}

func TestFetchRawUpstreamError(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"status":404}`, http.StatusNotFound)
	})
	client := newClient(t, srv.URL)

	_, err := client.FetchRaw(context.Background(), "/anime/0", catalogfetch.Params{}, catalogfetch.PriorityMedium)

	require.Error(t, err)
	assert.True(t, catalogfetch.IsUpstreamError(err))
	assert.False(t, catalogfetch.IsRetryable(err))
	upErr, ok := catalogfetch.AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, upErr.Status)
}

func TestFetchRateLimitExhausted(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client := newClient(t, srv.URL)

	_, err := client.FetchRaw(context.Background(), "/top/anime", catalogfetch.Params{}, catalogfetch.PriorityMedium)

	assert.ErrorIs(t, err, catalogfetch.ErrRetriesExhausted)
	assert.True(t, catalogfetch.IsRateLimited(err))
	assert.False(t, catalogfetch.IsRetryable(err))
}

func TestInvalidInput(t *testing.T) {
	client := newClient(t, "http://127.0.0.1:1")
	ctx := context.Background()

	_, err := client.FetchRaw(ctx, "https://evil.example/top/anime", catalogfetch.Params{}, catalogfetch.PriorityMedium)
	assert.ErrorIs(t, err, catalogfetch.ErrInvalidEndpoint)

	_, err = client.FetchRaw(ctx, "/anime", catalogfetch.Params{Page: -1}, catalogfetch.PriorityMedium)
	assert.ErrorIs(t, err, catalogfetch.ErrInvalidParams)
}

func TestCloseRejectsFurtherCalls(t *testing.T) {
	cfg := catalogfetch.TestConfig()
	client, err := catalogfetch.NewFromConfig(cfg)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err = client.FetchRaw(context.Background(), "/top/anime", catalogfetch.Params{}, catalogfetch.PriorityMedium)
	assert.True(t, errors.Is(err, catalogfetch.ErrClosed))
	assert.Equal(t, catalogfetch.HealthStatusUnhealthy, client.Health(context.Background()).Status)
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, catalogfetch.PriorityHigh, catalogfetch.ParsePriority("high"))
	assert.Equal(t, catalogfetch.PriorityLow, catalogfetch.ParsePriority("low"))
	assert.Equal(t, catalogfetch.PriorityMedium, catalogfetch.ParsePriority(""))
	assert.Equal(t, catalogfetch.PriorityMedium, catalogfetch.ParsePriority("urgent"))
}
