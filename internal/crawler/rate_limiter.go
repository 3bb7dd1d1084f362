package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out requests to the same host
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	delay    time.Duration
}

// NewRateLimiter creates a new rate limiter. A zero delay never blocks.
func NewRateLimiter(defaultDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    defaultDelay,
	}
}

// Wait blocks until a request to the host of urlStr may proceed
func (r *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	return r.getLimiter(parsedURL.Host).Wait(ctx)
}

// SetHostDelay overrides the delay for one host
func (r *RateLimiter) SetHostDelay(host string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limiters[host] = newLimiter(delay)
}

// getLimiter gets or creates a rate limiter for a host
func (r *RateLimiter) getLimiter(host string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[host]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check again in case another goroutine created it
	if limiter, exists := r.limiters[host]; exists {
		return limiter
	}

	limiter = newLimiter(r.delay)
	r.limiters[host] = limiter

	return limiter
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
