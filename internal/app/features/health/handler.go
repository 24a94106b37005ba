package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/prephub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// CachePinger checks the shared feed cache. It is optional.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	DB    Pinger
	Cache CachePinger
	Log   *zap.Logger
}

// NewHandler constructs a health Handler. cache may be nil when the feed
// cache is in-process.
func NewHandler(db Pinger, cache CachePinger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:    db,
		Cache: cache,
		Log:   logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "cache":"connected" }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
//
// The cache is informational; the scheduler works without it.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}

	if err := h.DB.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if h.Cache != nil {
		resp.Cache = "connected"
		if err := h.Cache.Ping(ctx); err != nil {
			h.Log.Warn("health-check: cache ping failed", zap.Error(err))
			resp.Cache = "disconnected"
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}
