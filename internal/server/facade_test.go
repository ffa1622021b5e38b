package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/fetch"
)

type countingUpstream struct {
	calls atomic.Int64
}

func (u *countingUpstream) Get(context.Context, string, url.Values) (json.RawMessage, error) {
	u.calls.Add(1)
	return json.RawMessage(`{"data":[]}`), nil
}

func TestCacheEndpointKeepsGenericKeysInServerTier(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	u := &countingUpstream{}
	facade, err := fetch.New(config.ForTesting(), fetch.Options{Logger: logger, Upstream: u, Clock: clock})
	require.NoError(t, err)
	t.Cleanup(func() { _ = facade.Close() })

	s := New(config.ServerConfig{CacheMaxAge: time.Hour}, facade, nil, logger)

	rec := do(t, s, http.MethodGet, "/cache?endpoint=/seasons/upcoming")
	require.Equal(t, http.StatusOK, rec.Code)

	advance(3 * time.Second)
	rec = do(t, s, http.MethodGet, "/cache?endpoint=/seasons/upcoming")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), u.calls.Load(), "second request should be served from the server tier")

	_, ok := facade.ServerCache().Entry(context.Background(), "/seasons/upcoming")
	assert.True(t, ok)
}
