package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"slideflow/services/playlist"
	"slideflow/services/tokenbroker"
)

const stateLifetime = 10 * time.Minute

// ProviderHandler manages the OAuth connection to the content provider.
type ProviderHandler struct {
	provider *tokenbroker.ProviderClient
	broker   *tokenbroker.Broker
	poller   *playlist.Poller

	mu     sync.Mutex
	states map[string]time.Time
}

// NewProviderHandler creates a new provider handler.
func NewProviderHandler(provider *tokenbroker.ProviderClient, broker *tokenbroker.Broker, poller *playlist.Poller) *ProviderHandler {
	return &ProviderHandler{
		provider: provider,
		broker:   broker,
		poller:   poller,
		states:   make(map[string]time.Time),
	}
}

// Status reports whether a provider token is stored.
func (h *ProviderHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"connected": h.broker.IsAuthenticated()})
}

// Connect starts the OAuth flow and returns the authorization URL.
func (h *ProviderHandler) Connect(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}
	state := hex.EncodeToString(buf)

	h.mu.Lock()
	h.pruneStatesLocked()
	h.states[state] = time.Now().Add(stateLifetime)
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"authUrl": h.provider.AuthURL(state)})
}

// Callback completes the OAuth flow: verifies state, exchanges the code
// and stores the token, then kicks an immediate poll.
func (h *ProviderHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if errMsg := query.Get("error"); errMsg != "" {
		writeError(w, http.StatusBadRequest, "authorization denied: "+errMsg)
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "missing state or code")
		return
	}

	h.mu.Lock()
	expiry, ok := h.states[state]
	delete(h.states, state)
	h.mu.Unlock()
	if !ok || time.Now().After(expiry) {
		writeError(w, http.StatusBadRequest, "unknown or expired state")
		return
	}

	record, err := h.provider.ExchangeCode(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusBadGateway, "code exchange failed")
		return
	}
	if err := h.broker.SetToken(record); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store token")
		return
	}

	h.poller.Refresh()
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

// Disconnect discards the stored provider token.
func (h *ProviderHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.broker.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear token")
		return
	}
	h.poller.Refresh()
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (h *ProviderHandler) pruneStatesLocked() {
	now := time.Now()
	for state, expiry := range h.states {
		if now.After(expiry) {
			delete(h.states, state)
		}
	}
}
