package transport

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter provides per-key rate limiting using token bucket algorithm.
// Keys are usually currency symbols so each node gets its own bucket.
type RateLimiter struct {
	limiters   map[string]*rate.Limiter
	mu         sync.RWMutex
	rateLimit  rate.Limit
	burstLimit int
}

// NewRateLimiter creates a new rate limiter with the specified rate and burst.
// rate is requests per second, burst is the maximum burst size.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		rateLimit:  rate.Limit(ratePerSecond),
		burstLimit: burst,
	}
}

// Wait blocks until a request to the key is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	return r.getLimiter(key).Wait(ctx)
}

// getLimiter returns the limiter for the given key, creating one if needed.
func (r *RateLimiter) getLimiter(key string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[key]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = r.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(r.rateLimit, r.burstLimit)
	r.limiters[key] = limiter
	return limiter
}
