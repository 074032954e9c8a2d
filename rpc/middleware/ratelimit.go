package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimit caps request throughput for a single client.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

// RateLimiter tracks a token bucket per client identifier.
type RateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

// NewRateLimiter builds a limiter with the given per-client budget. A zero
// RequestsPerMinute disables limiting.
func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		visitors: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the client identified by the request may proceed.
func (r *RateLimiter) Allow(req *http.Request) bool {
	if r == nil || r.limit.RequestsPerMinute <= 0 {
		return true
	}
	return r.obtain(ClientID(req)).Allow()
}

// Middleware rejects over-budget clients with 429.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.Allow(req) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) obtain(id string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.visitors[id]
	if ok {
		return limiter
	}
	perSecond := r.limit.RequestsPerMinute / 60.0
	burst := r.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	r.visitors[id] = limiter
	return limiter
}

// ClientID identifies the caller by forwarded-for header or remote address.
func ClientID(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
