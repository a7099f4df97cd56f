package server

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter enforces per-client and global request rate limits.
// Uses token bucket algorithm via golang.org/x/time/rate.
type RateLimiter struct {
	mu        sync.Mutex
	global    *rate.Limiter
	clients   map[string]*rate.Limiter
	perClient rate.Limit
	burst     int
}

// NewRateLimiter creates a rate limiter. perClientRPS is the sustained
// requests/second for one client address; the global bucket allows
// globalFactor times that across all clients. burst applies to each client
// bucket.
func NewRateLimiter(perClientRPS float64, burst, globalFactor int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if globalFactor < 1 {
		globalFactor = 1
	}
	return &RateLimiter{
		global:    rate.NewLimiter(rate.Limit(perClientRPS*float64(globalFactor)), burst*globalFactor),
		clients:   make(map[string]*rate.Limiter),
		perClient: rate.Limit(perClientRPS),
		burst:     burst,
	}
}

// Allow checks whether a request for key is allowed.
// Returns true if allowed, false if rate limited.
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.global.Allow() {
		return false
	}
	rl.mu.Lock()
	limiter, ok := rl.clients[key]
	if !ok {
		limiter = rate.NewLimiter(rl.perClient, rl.burst)
		rl.clients[key] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// Len returns the number of tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// clientKey is the caller's address without its port. RealIP runs first,
// so proxied requests are keyed by the forwarded address.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
