// internal/app/features/session/handler.go
package session

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/prephub/internal/app/system/identity"
	"go.uber.org/zap"
)

// Handler turns a verified identity token into a browser session and back.
type Handler struct {
	Log        *zap.Logger
	SessionMgr *identity.SessionManager
}

func NewHandler(sessionMgr *identity.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
	}
}

// ServeSignIn handles POST /api/session. The request must carry a valid
// identity header; the answer sets the session cookie.
func (h *Handler) ServeSignIn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	u, err := h.SessionMgr.ParseToken(r.Header.Get(identity.HeaderName))
	if err != nil {
		h.Log.Debug("session: rejected identity token", zap.Error(err))
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}

	if err := h.SessionMgr.SignIn(w, r, u); err != nil {
		h.Log.Error("session: save session", zap.Error(err), zap.String("user_id", u.ID))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
		return
	}
	_ = json.NewEncoder(w).Encode(u)
}

// ServeSignOut handles DELETE /api/session.
func (h *Handler) ServeSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		// We still answer 204; the cookie is gone or was never set.
		h.Log.Warn("session: expire session", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
