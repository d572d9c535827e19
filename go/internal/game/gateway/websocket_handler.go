package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for the game feed
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleConnection upgrades to a WebSocket. An optional address query parameter
// subscribes the connection on connect.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")

	// The upgrader already wrote an error response on failure
	if err := h.connectionManager.UpgradeConnection(w, r, address); err != nil {
		hlog.FromRequest(r).Warn().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.HandleConnection)
	mux.HandleFunc("GET /api/stats", h.HandleConnectionStats)
}
