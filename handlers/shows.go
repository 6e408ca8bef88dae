package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"slideflow/internal/auth"
	"slideflow/models"
	"slideflow/services/settings"
	"slideflow/services/shows"
)

// ShowsHandler manages saved shows: named, shareable preference snapshots.
type ShowsHandler struct {
	shows    *shows.Service
	settings *settings.Service
}

// NewShowsHandler creates a new shows handler.
func NewShowsHandler(showsSvc *shows.Service, settingsSvc *settings.Service) *ShowsHandler {
	return &ShowsHandler{shows: showsSvc, settings: settingsSvc}
}

// SaveShowRequest is the body for creating a saved show. Settings are
// optional; when omitted the caller's current preferences are frozen.
type SaveShowRequest struct {
	Name     string              `json:"name"`
	Settings *models.Preferences `json:"settings,omitempty"`
}

// Create saves a new show for the caller.
func (h *ShowsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SaveShowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accountID := auth.GetAccountID(r)
	prefs := models.Preferences{}
	if req.Settings != nil {
		prefs = *req.Settings
	} else {
		current, err := h.settings.Get(accountID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load current settings")
			return
		}
		prefs = current
	}

	show, err := h.shows.Save(accountID, req.Name, prefs)
	if err != nil {
		if errors.Is(err, shows.ErrNameRequired) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to save show")
		return
	}
	writeJSON(w, http.StatusCreated, show)
}

// List returns the caller's saved shows, newest first.
func (h *ShowsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.shows.List(auth.GetAccountID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list shows")
		return
	}
	if list == nil {
		list = []models.SavedShow{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Get returns one of the caller's shows.
func (h *ShowsHandler) Get(w http.ResponseWriter, r *http.Request) {
	show, err := h.shows.Get(auth.GetAccountID(r), mux.Vars(r)["showID"])
	if err != nil {
		h.writeShowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, show)
}

// UpdateShowRequest is the body for renaming a show or replacing its
// frozen settings. Absent fields are left unchanged.
type UpdateShowRequest struct {
	Name     *string             `json:"name,omitempty"`
	Settings *models.Preferences `json:"settings,omitempty"`
}

// Update renames a show and/or replaces its settings snapshot.
func (h *ShowsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateShowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accountID := auth.GetAccountID(r)
	showID := mux.Vars(r)["showID"]

	show, err := h.shows.Get(accountID, showID)
	if err != nil {
		h.writeShowError(w, err)
		return
	}
	if req.Name != nil {
		if show, err = h.shows.Rename(accountID, showID, *req.Name); err != nil {
			h.writeShowError(w, err)
			return
		}
	}
	if req.Settings != nil {
		if show, err = h.shows.UpdateSettings(accountID, showID, *req.Settings); err != nil {
			h.writeShowError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, show)
}

// Delete removes one of the caller's shows.
func (h *ShowsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.shows.Delete(auth.GetAccountID(r), mux.Vars(r)["showID"]); err != nil {
		h.writeShowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Load applies a saved show's frozen settings as the caller's current
// preferences. The settings service notifies the bridge, so for the active
// user the running slideshow reconfigures immediately.
func (h *ShowsHandler) Load(w http.ResponseWriter, r *http.Request) {
	accountID := auth.GetAccountID(r)
	show, err := h.shows.Get(accountID, mux.Vars(r)["showID"])
	if err != nil {
		h.writeShowError(w, err)
		return
	}

	stored, err := h.settings.Update(accountID, show.Settings)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to apply show settings")
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// Shared resolves a share token without authentication. The owner is
// stripped from the response.
func (h *ShowsHandler) Shared(w http.ResponseWriter, r *http.Request) {
	show, err := h.shows.GetShared(mux.Vars(r)["token"])
	if err != nil {
		if errors.Is(err, shows.ErrTokenNotFound) {
			writeError(w, http.StatusNotFound, "share link not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve share link")
		return
	}
	writeJSON(w, http.StatusOK, show)
}

func (h *ShowsHandler) writeShowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shows.ErrShowNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shows.ErrNotShowOwner):
		// Do not reveal that the show exists.
		writeError(w, http.StatusNotFound, shows.ErrShowNotFound.Error())
	case errors.Is(err, shows.ErrNameRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "show operation failed")
	}
}
