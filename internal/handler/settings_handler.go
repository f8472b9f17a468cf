package handler

import (
	"encoding/json"
	"net/http"

	"admitcast/internal/engine"
	"admitcast/internal/models"
	"admitcast/internal/repository"
)

// SettingsHandler handles HTTP requests for engine settings
type SettingsHandler struct {
	settingsRepo repository.SettingsRepository
	dispatcher   *engine.Dispatcher
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsRepo repository.SettingsRepository, dispatcher *engine.Dispatcher) *SettingsHandler {
	return &SettingsHandler{
		settingsRepo: settingsRepo,
		dispatcher:   dispatcher,
	}
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsRepo.Load(r.Context())
	if err != nil {
		HandleServiceError(w, err)
		return
	}
	WriteOK(w, settings)
}

// Update handles PUT /api/settings - the record is rewritten whole and
// persisted before the running engine picks up the new values
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	settings.Clamp()
	if err := h.settingsRepo.Save(r.Context(), &settings); err != nil {
		HandleServiceError(w, err)
		return
	}

	h.dispatcher.ApplySettings(settings)
	WriteOK(w, settings)
}
