// internal/app/features/revisions/routes.go
package revisions

import (
	"github.com/dalemusser/prephub/internal/app/system/identity"
	"github.com/dalemusser/prephub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the revision subrouter, mounted under /api/revisions.
// The caller must have run identity's LoadUser before these routes.
// summaryLimit, when set, caps how often each user can run a summary.
func Routes(h *Handler, summaryLimit *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()
	r.Use(identity.RequireSignedIn)

	if summaryLimit != nil {
		r.With(summaryLimit.Middleware).Get("/summary", h.ServeSummary)
	} else {
		r.Get("/summary", h.ServeSummary)
	}
	r.Get("/archive", h.ServeArchive)

	r.Route("/items", func(r chi.Router) {
		r.Post("/", h.ServeAdd)
		r.Delete("/{id}", h.ServeDelete)
		r.Post("/{id}/move", h.ServeMove)
		r.Post("/{id}/complete", h.ServeComplete)
	})
	return r
}
