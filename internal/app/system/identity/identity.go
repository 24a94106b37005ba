// Package identity carries the caller's already-authenticated identity
// into request handlers.
//
// The scheduler never manages credentials. An upstream identity service
// hands over a signed token (securecookie) naming the user id and the
// submission feed username. API callers send it in the X-Prephub-Identity
// header; browser callers exchange it once for a session cookie.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	// HeaderName carries a signed identity token.
	HeaderName = "X-Prephub-Identity"
	// SessionName is the browser session cookie.
	SessionName = "prephub-session"

	tokenName   = "prephub_identity"
	userIDKey   = "user_id"
	usernameKey = "username"
)

// ErrInvalidToken means a token failed verification or named no user.
var ErrInvalidToken = errors.New("identity: invalid token")

// User is the identity handed over by the identity service.
type User struct {
	ID       string `json:"user_id"`
	Username string `json:"username,omitempty"`
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*User, bool) {
	u, ok := r.Context().Value(currentUserKey).(*User)
	return u, ok
}

// WithUser returns r carrying u. Handler tests use it to skip token checks.
func WithUser(r *http.Request, u *User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// Config configures a SessionManager.
type Config struct {
	HashKey    []byte        // HMAC key, 32 or 64 bytes
	BlockKey   []byte        // optional AES key, 16, 24 or 32 bytes
	TokenTTL   time.Duration // max token age (default 24h)
	SessionTTL time.Duration // browser session lifetime (default 30 days)
	Domain     string
	Secure     bool
}

// SessionManager verifies identity tokens and browser sessions.
type SessionManager struct {
	codec *securecookie.SecureCookie
	store *sessions.CookieStore
	log   *zap.Logger
}

// NewSessionManager validates the keys and builds a manager.
func NewSessionManager(cfg Config, logger *zap.Logger) (*SessionManager, error) {
	if n := len(cfg.HashKey); n != 32 && n != 64 {
		return nil, fmt.Errorf("identity hash key must be 32 or 64 bytes, got %d", n)
	}
	switch len(cfg.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("identity block key must be 16, 24 or 32 bytes, got %d", len(cfg.BlockKey))
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var block []byte
	if len(cfg.BlockKey) > 0 {
		block = cfg.BlockKey
	}
	codec := securecookie.New(cfg.HashKey, block)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.TokenTTL.Seconds()))

	store := sessions.NewCookieStore(cfg.HashKey, block)
	store.Options = &sessions.Options{
		Domain:   cfg.Domain,
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &SessionManager{codec: codec, store: store, log: logger}, nil
}

// IssueToken signs u. The identity service holds the same keys and calls
// this on its side; tests and tooling use it here.
func (m *SessionManager) IssueToken(u User) (string, error) {
	if strings.TrimSpace(u.ID) == "" {
		return "", ErrInvalidToken
	}
	return m.codec.Encode(tokenName, u)
}

// ParseToken verifies a token and returns the user it names.
func (m *SessionManager) ParseToken(token string) (User, error) {
	var u User
	if err := m.codec.Decode(tokenName, strings.TrimSpace(token), &u); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	u.ID = strings.TrimSpace(u.ID)
	u.Username = strings.TrimSpace(u.Username)
	if u.ID == "" {
		return User{}, ErrInvalidToken
	}
	return u, nil
}

// LoadUser injects the user into context when the request carries a valid
// header token or session. Requests without one pass through unchanged.
func (m *SessionManager) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := r.Header.Get(HeaderName); tok != "" {
			u, err := m.ParseToken(tok)
			if err != nil {
				m.log.Debug("rejected identity token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, WithUser(r, &u))
			return
		}

		sess, err := m.store.Get(r, SessionName)
		if err != nil {
			if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
				m.log.Debug("discarding undecodable session cookie", zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}
		if id := getString(sess, userIDKey); id != "" {
			r = WithUser(r, &User{ID: id, Username: getString(sess, usernameKey)})
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn answers 401 when LoadUser found no user.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	})
}

// SignIn stores u in the browser session.
func (m *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u User) error {
	sess, _ := m.store.Get(r, SessionName)
	sess.Values[userIDKey] = u.ID
	sess.Values[usernameKey] = u.Username
	return sess.Save(r, w)
}

// SignOut expires the browser session.
func (m *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, SessionName)
	sess.Values = map[interface{}]interface{}{}
	opts := *m.store.Options
	opts.MaxAge = -1
	sess.Options = &opts
	return sess.Save(r, w)
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
