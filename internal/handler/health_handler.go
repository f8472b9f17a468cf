package handler

import (
	"database/sql"
	"net/http"

	"admitcast/internal/queue"
	"admitcast/internal/transport"
)

// HealthHandler reports the health of the API's collaborators
type HealthHandler struct {
	db        *sql.DB
	queueConn *queue.Connection
	transport transport.Transport
}

// NewHealthHandler creates a new health handler. queueConn may be nil
// when no queue is configured.
func NewHealthHandler(db *sql.DB, queueConn *queue.Connection, tr transport.Transport) *HealthHandler {
	return &HealthHandler{
		db:        db,
		queueConn: queueConn,
		transport: tr,
	}
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Queue     string `json:"queue"`
	Transport string `json:"transport"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Database:  "connected",
		Queue:     "connected",
		Transport: "ready",
	}
	status := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		resp.Database = "disconnected"
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	if h.queueConn == nil {
		resp.Queue = "not configured"
	} else if !h.queueConn.IsConnected() {
		resp.Queue = "disconnected"
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	// Transport readiness is informational only: a missing desktop
	// client blocks broadcast starts, not the API itself.
	if err := h.transport.Ready(r.Context()); err != nil {
		resp.Transport = "not ready"
		if resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	}

	WriteJSON(w, status, resp)
}
