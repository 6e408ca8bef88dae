package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"slideflow/api"
	"slideflow/internal/auth"
	"slideflow/services/accounts"
	"slideflow/services/sessions"
)

// AuthHandler handles login, logout and the current-account endpoints.
type AuthHandler struct {
	accounts *accounts.Service
	sessions *sessions.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accountsSvc *accounts.Service, sessionsSvc *sessions.Service) *AuthHandler {
	return &AuthHandler{accounts: accountsSvc, sessions: sessionsSvc}
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the login response.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	AccountID string `json:"accountId"`
	Username  string `json:"username"`
	IsMaster  bool   `json:"isMaster"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsMaster bool   `json:"isMaster"`
}

// Login authenticates a username/password pair and issues a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accounts.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	session, err := h.sessions.Create(account, r.Header.Get("User-Agent"), api.ClientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		AccountID: account.ID,
		Username:  account.Username,
		IsMaster:  account.IsMaster,
	})
}

// Logout invalidates the current session token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "no session token")
		return
	}

	if err := h.sessions.Revoke(token); err != nil && !errors.Is(err, sessions.ErrSessionNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Get(auth.GetAccountID(r))
	if err != nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{
		ID:       account.ID,
		Username: account.Username,
		IsMaster: account.IsMaster,
	})
}

// ChangePasswordRequest is the password change request body.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword rotates the authenticated account's password and revokes
// its other sessions.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accountID := auth.GetAccountID(r)
	account, err := h.accounts.Get(accountID)
	if err != nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	if _, err := h.accounts.Authenticate(account.Username, req.CurrentPassword); err != nil {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	if err := h.accounts.ChangePassword(accountID, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, accounts.ErrPasswordRequired), errors.Is(err, accounts.ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}
