package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestIPRateLimiterBurstThenBlocks(t *testing.T) {
	limiter := NewIPRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2, IdleTTL: time.Minute})
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.False(t, limiter.Allow("1.1.1.1"))
	assert.True(t, limiter.Allow("2.2.2.2"), "buckets are per ip")
}

func TestIPRateLimiterPrunesIdleClients(t *testing.T) {
	limiter := NewIPRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("1.1.1.1")
	now = now.Add(2 * time.Minute)
	limiter.Allow("2.2.2.2")

	require.Equal(t, 1, limiter.Prune())
	_, kept := limiter.clients["2.2.2.2"]
	assert.True(t, kept)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	handler := RateLimit(limiter, nil)(okHandler())

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.RemoteAddr = "3.3.3.3:1000"
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	handler := RateLimit(NewIPRateLimiter(config.RateLimitConfig{}), nil)(okHandler())
	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, resp.Code)
	}
}
