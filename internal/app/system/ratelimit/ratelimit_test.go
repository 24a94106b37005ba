package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/prephub/internal/app/system/identity"
	"github.com/dalemusser/prephub/internal/app/system/ratelimit"
	"github.com/dalemusser/prephub/internal/app/system/timebound"
)

var t0 = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

func TestAllow_BurstThenRefill(t *testing.T) {
	clock := timebound.NewFixedClock(t0)
	l := ratelimit.New(60, 2, clock) // one token per second

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !l.Allow("b") {
		t.Error("keys must not share a bucket")
	}

	clock.Advance(time.Second)
	if !l.Allow("a") {
		t.Error("a token should have refilled after one second")
	}
}

func TestAllow_DropsIdleKeys(t *testing.T) {
	clock := timebound.NewFixedClock(t0)
	l := ratelimit.New(60, 1, clock)

	l.Allow("a")
	l.Allow("b")
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	clock.Advance(11 * time.Minute)
	l.Allow("c")
	if l.Len() != 1 {
		t.Errorf("Len() = %d after idle sweep, want 1", l.Len())
	}
}

func TestMiddleware(t *testing.T) {
	l := ratelimit.New(60, 1, timebound.NewFixedClock(t0))
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := identity.WithUser(httptest.NewRequest(http.MethodGet, "/summary", nil), &identity.User{ID: "u-1"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	if got := ratelimit.Key(req); got != "ip:10.0.0.7" {
		t.Errorf("Key() = %q", got)
	}
	if got := ratelimit.Key(identity.WithUser(req, &identity.User{ID: "u-9"})); got != "user:u-9" {
		t.Errorf("Key() = %q", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1:80", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": " 5.6.7.8 "}, "10.0.0.1:80", "5.6.7.8"},
		{"remote with port", nil, "9.9.9.9:1234", "9.9.9.9"},
		{"remote without port", nil, "9.9.9.9", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := ratelimit.ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
