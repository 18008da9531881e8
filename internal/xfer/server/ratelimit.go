package server

import (
	"sync"
	"time"
)

// rateWindow and rateLimit bound the sliding window rate limiter
// (spec §3 RateBucket, §4.5: "no IP sees more than 60 handler
// invocations" in any 60 000 ms window).
const (
	rateWindow = 60 * time.Second
	rateLimit  = 60
)

// rateLimiter tracks a per-IP sliding window of request timestamps.
// Hand-rolled rather than fiber's middleware/limiter: that middleware
// rate-limits per-route by default and exposes no hook for the
// "rejected request observed by the rate limiter but otherwise never
// reaches a handler" accounting spec §9 requires (rate-limit bucket
// updates atomic per IP, independent of any other shared state); a
// small mutex-guarded map is simpler to reason about here than
// configuring the middleware around that gap.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{buckets: make(map[string][]time.Time)}
}

// allow evicts timestamps older than rateWindow from ip's bucket, then
// reports whether the caller may proceed. It records the current
// request's timestamp only when allowing it, per spec §4.5 ("if the
// remaining count is ≥ 60, respond 429 and do not execute the
// handler; else append the current timestamp").
func (r *rateLimiter) allow(ip string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-rateWindow)
	kept := r.buckets[ip][:0]
	for _, ts := range r.buckets[ip] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rateLimit {
		r.buckets[ip] = kept
		return false
	}

	r.buckets[ip] = append(kept, now)
	return true
}
