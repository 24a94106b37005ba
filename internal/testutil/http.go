package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/dalemusser/prephub/internal/app/system/identity"
	"github.com/google/uuid"
)

// NewUser returns an identity with a fresh id.
func NewUser(username string) identity.User {
	return identity.User{ID: uuid.NewString(), Username: username}
}

// WithUser adds a user to the request context for testing signed-in handlers.
// This bypasses the identity middleware and injects the user directly.
func WithUser(r *http.Request, u identity.User) *http.Request {
	return identity.WithUser(r, &u)
}

// NewRequest creates an HTTP request for testing. A non-nil body is encoded
// as JSON.
func NewRequest(method, target string, body any) *http.Request {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
func NewAuthenticatedRequest(method, target string, body any, u identity.User) *http.Request {
	return WithUser(NewRequest(method, target, body), u)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %s)", r.Code, expected, r.Body.String())
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// DecodeJSON decodes the response body into dst.
func (r *ResponseRecorder) DecodeJSON(t interface {
	Fatalf(string, ...any)
	Helper()
}, dst any) {
	t.Helper()
	if err := json.Unmarshal(r.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", r.Body.String(), err)
	}
}
