package health

import (
	"context"
	"encoding/json"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/civicwatch/civicwatch/internal/app/store/sessiontoken"
	"github.com/civicwatch/civicwatch/internal/app/system/timeouts"
)

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Tokens *sessiontoken.Store
	Log    *zap.Logger
}

// NewHandler constructs a health Handler with the Mongo client, the
// local session store, and a logger.
func NewHandler(client *mongo.Client, tokens *sessiontoken.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Tokens: tokens,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	SessionStore string `json:"sessionStore,omitempty"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "sessionStore":"ok" }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}

	// Check database
	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	// Check the local token store (informational only)
	if h.Tokens != nil {
		if _, _, err := h.Tokens.Load(); err != nil {
			h.Log.Warn("health-check: session store read failed", zap.Error(err))
			resp.SessionStore = "error"
		} else {
			resp.SessionStore = "ok"
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}
