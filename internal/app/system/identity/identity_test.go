package identity_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/prephub/internal/app/system/identity"
)

var hashKey = []byte("0123456789abcdef0123456789abcdef")

func newManager(t *testing.T) *identity.SessionManager {
	t.Helper()
	m, err := identity.NewSessionManager(identity.Config{HashKey: hashKey}, nil)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return m
}

// echo writes the current user as JSON, or "none".
func echo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := identity.CurrentUser(r)
		if !ok {
			_, _ = w.Write([]byte("none"))
			return
		}
		_ = json.NewEncoder(w).Encode(u)
	})
}

func TestNewSessionManager_KeyValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     identity.Config
		wantErr bool
	}{
		{"32 byte hash", identity.Config{HashKey: hashKey}, false},
		{"short hash", identity.Config{HashKey: []byte("short")}, true},
		{"bad block", identity.Config{HashKey: hashKey, BlockKey: []byte("123")}, true},
		{"aes-128 block", identity.Config{HashKey: hashKey, BlockKey: []byte("0123456789abcdef")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := identity.NewSessionManager(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToken_RoundTrip(t *testing.T) {
	m := newManager(t)
	tok, err := m.IssueToken(identity.User{ID: "u1", Username: "alice"})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	u, err := m.ParseToken(tok)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if u.ID != "u1" || u.Username != "alice" {
		t.Errorf("user = %+v", u)
	}
}

func TestToken_Rejects(t *testing.T) {
	m := newManager(t)
	other, _ := identity.NewSessionManager(identity.Config{HashKey: []byte("ffffffffffffffffffffffffffffffff")}, nil)
	forged, _ := other.IssueToken(identity.User{ID: "u1"})

	for _, tok := range []string{"", "garbage", forged} {
		if _, err := m.ParseToken(tok); !errors.Is(err, identity.ErrInvalidToken) {
			t.Errorf("ParseToken(%q) err = %v, want ErrInvalidToken", tok, err)
		}
	}
	if _, err := m.IssueToken(identity.User{}); !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("IssueToken without id: err = %v", err)
	}
}

func TestLoadUser_Header(t *testing.T) {
	m := newManager(t)
	tok, _ := m.IssueToken(identity.User{ID: "u1", Username: "alice"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(identity.HeaderName, tok)
	rec := httptest.NewRecorder()
	m.LoadUser(echo()).ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"user_id":"u1"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestLoadUser_BadHeaderLeavesAnonymous(t *testing.T) {
	m := newManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(identity.HeaderName, "tampered")
	rec := httptest.NewRecorder()
	m.LoadUser(echo()).ServeHTTP(rec, req)

	if rec.Body.String() != "none" {
		t.Errorf("body = %s, want none", rec.Body.String())
	}
}

func TestSession_SignInThenLoad(t *testing.T) {
	m := newManager(t)

	signIn := httptest.NewRecorder()
	if err := m.SignIn(signIn, httptest.NewRequest(http.MethodPost, "/session", nil), identity.User{ID: "u2", Username: "bob"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	cookies := signIn.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	m.LoadUser(echo()).ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"user_id":"u2"`) || !strings.Contains(rec.Body.String(), `"username":"bob"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSession_SignOutExpiresCookie(t *testing.T) {
	m := newManager(t)
	rec := httptest.NewRecorder()
	if err := m.SignOut(rec, httptest.NewRequest(http.MethodDelete, "/session", nil)); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == identity.SessionName && c.MaxAge >= 0 {
			t.Errorf("cookie MaxAge = %d, want expired", c.MaxAge)
		}
	}
}

func TestRequireSignedIn(t *testing.T) {
	h := identity.RequireSignedIn(echo())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := identity.WithUser(httptest.NewRequest(http.MethodGet, "/", nil), &identity.User{ID: "u1"})
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("signed in: status = %d, want 200", rec.Code)
	}
}
