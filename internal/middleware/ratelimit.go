package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RealIP returns the client address. Behind the reverse proxy the first
// X-Forwarded-For hop (or X-Real-IP) is the visitor; direct connections
// use RemoteAddr.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type bucket struct {
	hits    int
	resetAt time.Time
}

// RateLimiter counts hits per key in fixed windows, in memory. Counters
// are lost on restart.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Take records one hit for key. It reports whether the hit fits in the
// limit and, when it does not, how long until the window resets.
func (rl *RateLimiter) Take(key string, limit int, window time.Duration) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		rl.buckets[key] = &bucket{hits: 1, resetAt: now.Add(window)}
		return limit > 0, 0
	}
	if b.hits >= limit {
		return false, b.resetAt.Sub(now)
	}
	b.hits++
	return true, 0
}

// Allow is Take without the wait time.
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	ok, _ := rl.Take(key, limit, window)
	return ok
}

// Cleanup drops buckets whose window has ended and returns how many.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for key, b := range rl.buckets {
		if !now.Before(b.resetAt) {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

// ByIP keys requests by client address and route, so each public form
// has its own budget.
func ByIP(r *http.Request) string {
	return RealIP(r) + " " + r.Method + " " + r.URL.Path
}

// RateLimit rejects with 429 and a Retry-After (whole seconds, rounded
// up) once keyFunc's bucket is full.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Take(keyFunc(r), limit, window)
			if !ok {
				secs := int((wait + time.Second - 1) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
