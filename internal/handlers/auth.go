package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/diewo77/toiture-backoffice/auth"
	"github.com/diewo77/toiture-backoffice/httpx"
	"github.com/diewo77/toiture-backoffice/internal/backoffice"
	"github.com/diewo77/toiture-backoffice/internal/services"
)

type AuthHandler struct {
	accounts *services.AccountService
	sessions *auth.Sessions
	registry *backoffice.Registry
	baseURL  string
}

func NewAuthHandler(accounts *services.AccountService, sessions *auth.Sessions, registry *backoffice.Registry, baseURL string) *AuthHandler {
	return &AuthHandler{accounts: accounts, sessions: sessions, registry: registry, baseURL: strings.TrimRight(baseURL, "/")}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks credentials and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	acc, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	case errors.Is(err, services.ErrNotConfirmed):
		httpx.JSONError(w, http.StatusForbidden, "not_confirmed", nil)
		return
	case err != nil:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	h.sessions.Create(w, acc.ID)
	httpx.JSON(w, http.StatusOK, map[string]string{"user_id": acc.ID, "email": acc.Email})
}

// Logout clears the cookie and drops the server-side session state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if uid, ok := h.sessions.Parse(r); ok {
		h.registry.Drop(uid)
	}
	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Confirm activates the account of the mailed token and redirects to the
// login page.
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.Confirm(r.Context(), r.URL.Query().Get("token"))
	if errors.Is(err, services.ErrInvalidToken) {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_token", nil)
		return
	}
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	target := acc.RedirectTo
	if target == "" {
		target = h.baseURL + "/login"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
