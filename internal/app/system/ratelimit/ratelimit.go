// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/prephub/internal/app/system/identity"
	"github.com/dalemusser/prephub/internal/app/system/timebound"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket per key. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	every   rate.Limit
	burst   int
	idle    time.Duration // buckets unused this long are dropped
	clock   timebound.Clock
	swept   time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter allowing perMinute requests per key, with bursts of
// up to burst. A nil clock means the system clock.
func New(perMinute float64, burst int, clock timebound.Clock) *Limiter {
	if burst < 1 {
		burst = 1
	}
	if clock == nil {
		clock = timebound.SystemClock{}
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		every:   rate.Limit(perMinute / 60),
		burst:   burst,
		idle:    10 * time.Minute,
		clock:   clock,
	}
}

// Allow reports whether a request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep drops idle buckets at most once per idle period. Callers hold mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.swept) < l.idle {
		return
	}
	l.swept = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.buckets, k)
		}
	}
}

// Middleware answers 429 once the caller's bucket is empty. Signed-in
// callers are keyed by user id, everyone else by client IP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Allow(Key(r)) {
			next.ServeHTTP(w, r)
			return
		}
		retry := 1
		if l.every > 0 {
			retry = int(1/float64(l.every)) + 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
	})
}

// Key identifies the caller for rate limiting.
func Key(r *http.Request) string {
	if u, ok := identity.CurrentUser(r); ok {
		return "user:" + u.ID
	}
	return "ip:" + ClientIP(r)
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	// X-Forwarded-For is a comma-separated list; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
