// internal/app/features/revisions/handler.go
package revisions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/prephub/internal/app/revision"
	"github.com/dalemusser/prephub/internal/app/system/identity"
	"github.com/dalemusser/prephub/internal/app/system/timeouts"
	"github.com/dalemusser/prephub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// maxBody bounds request bodies on the command endpoints.
const maxBody = 64 << 10

// Handler serves the revision command surface as JSON.
type Handler struct {
	Svc *revision.Service
	Log *zap.Logger
}

// NewHandler creates a revisions handler.
func NewHandler(svc *revision.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

type moveRequest struct {
	TargetBucket string `json:"target_bucket"`
}

type completeRequest struct {
	Scope              string `json:"scope"`
	PromoteEasyToMonth bool   `json:"promote_easy_to_month,omitempty"`
}

type itemResponse struct {
	Item    models.RevisionItem `json:"item"`
	Created *bool               `json:"created,omitempty"`
}

type historyResponse struct {
	Months []models.MonthlyArchive `json:"months"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ServeSummary handles GET /summary. It runs the full maintenance pipeline
// before reading, so it takes the long timeout.
func (h *Handler) ServeSummary(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.CurrentUser(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "summary")
	defer cancel()

	sum, err := h.Svc.Summary(ctx, revision.User{ID: u.ID, Username: u.Username})
	if err != nil {
		h.fail(w, "summary", u.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ServeArchive handles GET /archive.
func (h *Handler) ServeArchive(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.CurrentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	months, err := h.Svc.History(ctx, u.ID)
	if err != nil {
		h.fail(w, "archive", u.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Months: months})
}

// ServeAdd handles POST /items. A new item answers 201; an item the bucket
// already held answers 200 with created=false.
func (h *Handler) ServeAdd(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.CurrentUser(r)

	var req revision.AddRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	it, created, err := h.Svc.Add(ctx, u.ID, req)
	if err != nil {
		h.fail(w, "add", u.ID, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, itemResponse{Item: it, Created: &created})
}

// ServeDelete handles DELETE /items/{id}.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.CurrentUser(r)
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	it, err := h.Svc.Delete(ctx, u.ID, id)
	if err != nil {
		h.fail(w, "delete", u.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Item: it})
}

// ServeMove handles POST /items/{id}/move.
func (h *Handler) ServeMove(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.CurrentUser(r)
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	it, err := h.Svc.Move(ctx, u.ID, id, req.TargetBucket)
	if err != nil {
		h.fail(w, "move", u.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Item: it})
}

// ServeComplete handles POST /items/{id}/complete.
func (h *Handler) ServeComplete(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.CurrentUser(r)
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "complete")
	defer cancel()

	res, err := h.Svc.Complete(ctx, u.ID, revision.CompleteRequest{
		ItemID:             id,
		Scope:              models.Bucket(req.Scope),
		PromoteEasyToMonth: req.PromoteEasyToMonth,
	})
	if err != nil {
		h.fail(w, "complete", u.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return false
	}
	return true
}

func itemID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid item id", Field: "itemId"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// fail maps engine errors onto status codes.
func (h *Handler) fail(w http.ResponseWriter, op, userID string, err error) {
	var ve *revision.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Reason, Field: ve.Field})
	case errors.Is(err, revision.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, revision.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "item not found"})
	case errors.Is(err, revision.ErrPersistence):
		h.Log.Error("revisions: storage failure", zap.String("op", op), zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
	default:
		h.Log.Error("revisions: unexpected failure", zap.String("op", op), zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
