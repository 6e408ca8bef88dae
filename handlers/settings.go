package handlers

import (
	"encoding/json"
	"net/http"

	"slideflow/internal/auth"
	"slideflow/models"
	"slideflow/services/settings"
)

// SettingsHandler reads and writes per-account slideshow preferences.
// Persisting an update also notifies the bridge, which reconfigures the
// running slideshow when the caller is the active user.
type SettingsHandler struct {
	settings *settings.Service
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(settingsSvc *settings.Service) *SettingsHandler {
	return &SettingsHandler{settings: settingsSvc}
}

// Get returns the caller's preferences, defaults filled in.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.settings.Get(auth.GetAccountID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// Update replaces the caller's preferences. The stored result is returned
// because normalization may have adjusted the submitted values.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var prefs models.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stored, err := h.settings.Update(auth.GetAccountID(r), prefs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, stored)
}
