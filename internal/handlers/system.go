package handlers

import (
	"net/http"

	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/httpx"
	"github.com/diewo77/toiture-backoffice/internal/backoffice"
	"github.com/diewo77/toiture-backoffice/internal/status"
)

// Pinger checks the database connection.
type Pinger func() error

// Health always answers ok; Healthz also pings the database.
func Health(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func Healthz(ping Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ping(); err != nil {
			httpx.JSONError(w, http.StatusServiceUnavailable, "db_unavailable", err.Error())
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "db": "ok"})
	}
}

type meResponse struct {
	UserID       string            `json:"user_id"`
	Role         gate.Role         `json:"role"`
	RoleLabel    string            `json:"role_label"`
	Capabilities gate.Capabilities `json:"capabilities"`
}

// Me returns the caller's role and capability flags.
func (h *Handler) Me() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		role := h.Gate.Role(r.Context(), s.UserID)
		reply(w, r, s, http.StatusOK, meResponse{
			UserID:       s.UserID,
			Role:         role,
			RoleLabel:    role.Label(),
			Capabilities: s.Capabilities(),
		})
	})
}

// Notifications drains the caller's queue.
func (h *Handler) Notifications() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		reply(w, r, s, http.StatusOK, nil)
	})
}

// StatusBadge presents a lead or devis status code.
func StatusBadge(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, status.Present(r.PathValue("code")))
}
