package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"slideflow/services/accounts"
	"slideflow/services/sessions"
	"slideflow/services/settings"
)

// AccountsHandler exposes master-only account administration.
type AccountsHandler struct {
	accounts *accounts.Service
	sessions *sessions.Service
	settings *settings.Service
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(accountsSvc *accounts.Service, sessionsSvc *sessions.Service, settingsSvc *settings.Service) *AccountsHandler {
	return &AccountsHandler{
		accounts: accountsSvc,
		sessions: sessionsSvc,
		settings: settingsSvc,
	}
}

// List returns all accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.accounts.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	resp := make([]AccountResponse, 0, len(list))
	for _, a := range list {
		resp = append(resp, AccountResponse{ID: a.ID, Username: a.Username, IsMaster: a.IsMaster})
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateRequest is the account creation request body.
type CreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Create registers a new regular account.
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accounts.Register(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrUsernameExists):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, accounts.ErrUsernameRequired),
			errors.Is(err, accounts.ErrPasswordRequired),
			errors.Is(err, accounts.ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create account")
		}
		return
	}

	writeJSON(w, http.StatusCreated, AccountResponse{
		ID:       account.ID,
		Username: account.Username,
		IsMaster: account.IsMaster,
	})
}

// Delete removes an account along with its sessions and stored preferences.
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountID"]

	if err := h.accounts.Delete(accountID); err != nil {
		switch {
		case errors.Is(err, accounts.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, accounts.ErrCannotDeleteMaster):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete account")
		}
		return
	}

	h.sessions.RevokeAccount(accountID)
	h.settings.Delete(accountID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
