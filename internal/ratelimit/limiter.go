package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/genmedia-bff/bff/internal/auth"
	"github.com/genmedia-bff/bff/internal/config"
	"github.com/genmedia-bff/bff/internal/httpresponse"
)

// cleanupInterval and bucketIdleTTL bound the keyed-bucket map's size the
// way the teacher's InMemoryRateLimitStore periodically sweeps stale
// entries.
const (
	cleanupInterval = 5 * time.Minute
	bucketIdleTTL   = 10 * time.Minute
)

type bucketEntry struct {
	bucket     *tokenBucket
	lastAccess time.Time
}

// Limiter enforces the ingress token-bucket regime, keyed by
// (tenant_id, route_family).
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucketEntry
	rules   map[config.RouteFamily]config.RateLimitRule

	stop chan struct{}
}

// NewLimiter constructs a Limiter from the route-family rule table and
// starts its background cleanup sweep.
func NewLimiter(rules map[config.RouteFamily]config.RateLimitRule) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucketEntry),
		rules:   rules,
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Close stops the background cleanup goroutine.
func (l *Limiter) Close() {
	close(l.stop)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep(time.Now())
		}
	}
}

func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.buckets {
		if now.Sub(entry.lastAccess) > bucketIdleTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) bucketFor(key string, family config.RouteFamily, now time.Time) *tokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.buckets[key]; ok {
		entry.lastAccess = now
		return entry.bucket
	}

	rule := l.rules[family]
	b := newTokenBucket(rule.Capacity, rule.RefillPerSec)
	l.buckets[key] = &bucketEntry{bucket: b, lastAccess: now}
	return b
}

// Middleware enforces the token bucket for the given route family, keyed by
// the authenticated tenant (so it must run after auth.Middleware).
func (l *Limiter) Middleware(family config.RouteFamily) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := auth.TenantFromContext(r.Context())
			key := string(family)
			if tenant != nil {
				key = tenant.ID + "|" + key
			}

			bucket := l.bucketFor(key, family, time.Now())
			allowed, retryAfter := bucket.allow(time.Now())
			if !allowed {
				httpresponse.WriteRateLimited(w, "rate limit exceeded", retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
