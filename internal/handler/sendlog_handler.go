package handler

import (
	"net/http"
	"strconv"

	"admitcast/internal/repository"
)

// SendLogHandler exposes the audit log of terminal item transitions
type SendLogHandler struct {
	sendLogRepo repository.SendLogRepository
}

// NewSendLogHandler creates a new send log handler
func NewSendLogHandler(sendLogRepo repository.SendLogRepository) *SendLogHandler {
	return &SendLogHandler{sendLogRepo: sendLogRepo}
}

// List handles GET /api/send-log
func (h *SendLogHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 1000 {
		limit = 1000
	}

	entries, err := h.sendLogRepo.List(r.Context(), limit)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, map[string]interface{}{"entries": entries})
}
