package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genmedia-bff/bff/internal/config"
)

func TestLimiter_AllowsUpToCapacityThenRejects(t *testing.T) {
	l := NewLimiter(map[config.RouteFamily]config.RateLimitRule{
		config.FamilyUpscale: {Capacity: 4, RefillPerSec: 1},
	})
	defer l.Close()

	handler := l.Middleware(config.FamilyUpscale)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/generate/upscale", nil))
		require.Equal(t, http.StatusAccepted, w.Code, "request %d should be allowed", i+1)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/generate/upscale", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestLimiter_RefillsOverTime(t *testing.T) {
	l := NewLimiter(map[config.RouteFamily]config.RateLimitRule{
		config.FamilyUpscale: {Capacity: 1, RefillPerSec: 10},
	})
	defer l.Close()

	b := l.bucketFor("tenant|"+string(config.FamilyUpscale), config.FamilyUpscale, time.Now())
	ok, _ := b.allow(time.Now())
	require.True(t, ok)

	ok, retryAfter := b.allow(time.Now())
	require.False(t, ok)
	require.GreaterOrEqual(t, retryAfter, 1)

	ok, _ = b.allow(time.Now().Add(200 * time.Millisecond))
	assert.True(t, ok, "token should have refilled after 200ms at 10/s")
}

func TestLimiter_SeparateTenantsDoNotShareBucket(t *testing.T) {
	l := NewLimiter(map[config.RouteFamily]config.RateLimitRule{
		config.FamilyUpscale: {Capacity: 1, RefillPerSec: 1},
	})
	defer l.Close()

	now := time.Now()
	a := l.bucketFor("tenant-a|"+string(config.FamilyUpscale), config.FamilyUpscale, now)
	b := l.bucketFor("tenant-b|"+string(config.FamilyUpscale), config.FamilyUpscale, now)

	okA, _ := a.allow(now)
	require.True(t, okA)
	okA2, _ := a.allow(now)
	require.False(t, okA2)

	okB, _ := b.allow(now)
	assert.True(t, okB, "tenant-b should have its own bucket")
}
