// Package ratelimit implements the C2 rate limiter: a per-(tenant,
// route-family) token bucket (spec.md §4.2). The bucket itself wraps
// golang.org/x/time/rate, the same library the retrieval pack wires for
// per-key limiting (Mindburn-Labs-helm/core/pkg/api/middleware.go's
// GlobalRateLimiter, keyed per-IP with a background cleanup sweep rather
// than per-tenant). That file's own comment notes Allow() can't produce a
// wait duration and Reserve() is what gives one; this adapter takes that
// hint and uses ReserveN/DelayFrom to get the exact Retry-After the spec's
// seed tests check (scenario 5: capacity 4, refill 1/s -> 5th request gets
// Retry-After: 1). httprate is still wired separately, as the ingress-wide
// per-IP abuse guard ahead of auth (see router.go); see DESIGN.md.
package ratelimit

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// tokenBucket wraps a rate.Limiter configured with capacity tokens and a
// continuous refillPerSec rate.
type tokenBucket struct {
	limiter *rate.Limiter
}

func newTokenBucket(capacity int, refillPerSec float64) *tokenBucket {
	return &tokenBucket{limiter: rate.NewLimiter(rate.Limit(refillPerSec), capacity)}
}

// allow attempts to take one token. On failure it also returns how many
// whole seconds the caller must wait before the next token is available.
//
// It reserves a token up front (ReserveN), reads the reservation's delay,
// and cancels the reservation again when the delay is nonzero so a denied
// request doesn't consume a future token it never got to use.
func (b *tokenBucket) allow(now time.Time) (ok bool, retryAfterSeconds int) {
	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 1
	}

	delay := r.DelayFrom(now)
	if delay <= 0 {
		return true, 0
	}

	r.CancelAt(now)
	if delay == rate.InfDuration {
		// Zero refill rate: never recovers on its own: report the
		// shortest useful wait rather than an unbounded one.
		return false, 1
	}
	retryAfterSeconds = int(math.Ceil(delay.Seconds()))
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	return false, retryAfterSeconds
}
