// internal/app/features/session/routes.go
package session

import "github.com/go-chi/chi/v5"

// Routes returns the session subrouter, mounted under /api/session.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ServeSignIn)
	r.Delete("/", h.ServeSignOut)
	return r
}
