package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter manages per-IP limiters for the public invite endpoints.
// Entries are evicted after a period of inactivity so drive-by IPs do not
// accumulate.
type RateLimiter struct {
	mu       sync.Mutex
	ips      map[string]*ipLimiter
	rps      rate.Limit
	burst    int
	maxIdle  time.Duration
	interval time.Duration
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		ips:      make(map[string]*ipLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		maxIdle:  10 * time.Minute,
		interval: time.Minute,
	}

	go rl.evictLoop()

	return rl
}

// GetLimiter returns a limiter for an IP
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.ips[ip]
	if !exists {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.ips[ip] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.interval)
	for range ticker.C {
		cutoff := time.Now().Add(-rl.maxIdle)
		rl.mu.Lock()
		for ip, entry := range rl.ips {
			if entry.lastSeen.Before(cutoff) {
				delete(rl.ips, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware creates a middleware for rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.GetLimiter(getClientIP(r)).Allow() {
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP, preferring the first hop in the
// proxy header when present
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			return strings.TrimSpace(forwarded[:i])
		}
		return forwarded
	}
	return r.RemoteAddr
}
