package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"marketnexus/config"
	"marketnexus/internal/cache"
	"marketnexus/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRateLimitLocalFallback(t *testing.T) {
	log := zap.NewNop()
	c := cache.New(cache.Config{Addr: "127.0.0.1:1"}, log)
	eng := engine.New(c, staticSource{}, log)

	cfg := &config.Config{
		Server:    config.ServerConfig{Addr: ":0"},
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2},
	}
	srv := New(eng, c, nil, cfg, log)

	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/market/indices")
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Equal(t, http.StatusOK, statuses[1])
	assert.Equal(t, http.StatusTooManyRequests, statuses[2], "third request in the window exceeds the budget")
}

func TestLocalCounterRollsOver(t *testing.T) {
	l := newLocalCounter()

	key1 := "ratelimit:1.2.3.4:202608301200"
	assert.Equal(t, int64(1), l.incr(key1))
	assert.Equal(t, int64(2), l.incr(key1))

	// A new minute bucket resets every counter.
	key2 := "ratelimit:1.2.3.4:202608301201"
	assert.Equal(t, int64(1), l.incr(key2))
}
