package handlers

import (
	"net/http"

	"slideflow/models"
	"slideflow/services/bridge"
	"slideflow/services/caption"
	"slideflow/services/playlist"
	"slideflow/services/slideshow"
)

// SlideshowHandler exposes playback state and navigation.
type SlideshowHandler struct {
	controller *slideshow.Controller
	captions   *caption.Coordinator
	poller     *playlist.Poller
	bridge     *bridge.Bridge
}

// NewSlideshowHandler creates a new slideshow handler.
func NewSlideshowHandler(controller *slideshow.Controller, captions *caption.Coordinator, poller *playlist.Poller, br *bridge.Bridge) *SlideshowHandler {
	return &SlideshowHandler{
		controller: controller,
		captions:   captions,
		poller:     poller,
		bridge:     br,
	}
}

// StateResponse is the full playback state for one poll from the frontend.
type StateResponse struct {
	slideshow.State
	Caption  models.CaptionRecord `json:"caption"`
	Warnings []string             `json:"warnings,omitempty"`
	Notice   string               `json:"notice,omitempty"`
}

// State returns the controller snapshot plus caption and source health.
func (h *SlideshowHandler) State(w http.ResponseWriter, r *http.Request) {
	resp := StateResponse{
		State:    h.controller.State(),
		Caption:  h.captions.Record(),
		Warnings: h.poller.Snapshot().Warnings,
	}
	if notice, ok := h.bridge.Notice(); ok {
		resp.Notice = notice
	}
	writeJSON(w, http.StatusOK, resp)
}

// Next requests a forward transition. Always 200: a rejected request
// (mid-transition, too few items) is normal operation.
func (h *SlideshowHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.controller.Next()
	writeJSON(w, http.StatusOK, h.controller.State())
}

// Previous requests a backward transition.
func (h *SlideshowHandler) Previous(w http.ResponseWriter, r *http.Request) {
	h.controller.Previous()
	writeJSON(w, http.StatusOK, h.controller.State())
}

// Pause stops automatic advancement. Manual navigation keeps working.
func (h *SlideshowHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.controller.Pause()
	writeJSON(w, http.StatusOK, h.controller.State())
}

// Resume restarts automatic advancement with a full interval.
func (h *SlideshowHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.controller.Resume()
	writeJSON(w, http.StatusOK, h.controller.State())
}

// RegenerateCaption requests a fresh caption for the current item.
func (h *SlideshowHandler) RegenerateCaption(w http.ResponseWriter, r *http.Request) {
	h.captions.Regenerate()
	writeJSON(w, http.StatusOK, h.captions.Record())
}

// Playlist returns the latest aggregated snapshot.
func (h *SlideshowHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.poller.Snapshot())
}

// RefreshPlaylist forces an immediate poll of all channels.
func (h *SlideshowHandler) RefreshPlaylist(w http.ResponseWriter, r *http.Request) {
	h.poller.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
}
