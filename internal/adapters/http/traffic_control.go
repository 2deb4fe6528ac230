package httpadapter

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// callerRateLimiter backs rateLimitMiddleware: each caller_id (or, for
// anonymous callers, remote address) gets its own token bucket, per
// spec.md §5's note that the core applies no backpressure directly and
// relies on the transport layer for it.
type callerRateLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newCallerRateLimiter(rps float64, burst int) *callerRateLimiter {
	return &callerRateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *callerRateLimiter) limiterFor(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	limiter, ok := c.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(c.rps, c.burst)
		c.limiters[key] = limiter
	}
	return limiter
}

// rateLimitMiddleware returns 429 with a Retry-After header once a caller
// exhausts its token bucket.
func (c *callerRateLimiter) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := c.limiterFor(callerKey(r))
		if !limiter.Allow() {
			retryAfter := limiter.Reserve().Delay()
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if callerID := r.Header.Get("X-Caller-Id"); callerID != "" {
		return callerID
	}
	return r.RemoteAddr
}

// evictIdle periodically drops per-caller limiters that have not been used,
// bounding memory for services with a long tail of one-shot callers.
func (c *callerRateLimiter) evictIdle(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			for key, limiter := range c.limiters {
				if limiter.Tokens() >= float64(c.burst) {
					delete(c.limiters, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// backpressureMiddleware bounds the number of concurrently in-flight
// requests with a buffered semaphore: a request that cannot acquire a slot
// within timeout gets a 503 rather than queuing indefinitely.
func backpressureMiddleware(next http.Handler, maxConcurrent int, timeout time.Duration) http.Handler {
	sem := make(chan struct{}, maxConcurrent)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		case <-time.After(timeout):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server overloaded, try again shortly"})
		}
	})
}
