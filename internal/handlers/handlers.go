// Package handlers exposes the back-office sessions over JSON.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/diewo77/toiture-backoffice/auth"
	"github.com/diewo77/toiture-backoffice/httpx"
	"github.com/diewo77/toiture-backoffice/i18n"
	"github.com/diewo77/toiture-backoffice/internal/backoffice"
	"github.com/diewo77/toiture-backoffice/internal/notify"
	"github.com/diewo77/toiture-backoffice/internal/policy"
	"github.com/diewo77/toiture-backoffice/internal/services"
	"github.com/diewo77/toiture-backoffice/internal/store"
	"github.com/diewo77/toiture-backoffice/internal/webhook"
	"github.com/diewo77/toiture-backoffice/validation"
)

// Handler holds what every session-backed handler needs.
type Handler struct {
	Registry *backoffice.Registry
	Gate     *policy.AuthGate
	Logger   *slog.Logger
}

func NewHandler(registry *backoffice.Registry, gate *policy.AuthGate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Registry: registry, Gate: gate, Logger: logger}
}

// session returns the caller's session with freshly resolved capabilities.
func (h *Handler) session(r *http.Request) (*backoffice.Session, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, false
	}
	s := h.Registry.Get(uid)
	s.RefreshCapabilities(r.Context(), h.Gate.Capabilities)
	return s, true
}

// sessionFunc adapts a handler that needs the caller's session.
func (h *Handler) sessionFunc(fn func(w http.ResponseWriter, r *http.Request, s *backoffice.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.session(r)
		if !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		fn(w, r, s)
	}
}

// NotificationView is a queued notification rendered in the caller's language.
type NotificationView struct {
	Level   notify.Level `json:"level"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	At      time.Time    `json:"at"`
}

func drain(r *http.Request, s *backoffice.Session) []NotificationView {
	lang := i18n.LangFromContext(r.Context())
	items := s.Notifications.Drain()
	out := make([]NotificationView, len(items))
	for i, n := range items {
		out[i] = NotificationView{Level: n.Level, Code: n.Code, Message: n.Message(lang), At: n.At}
	}
	return out
}

type envelope struct {
	Data          any                `json:"data,omitempty"`
	Notifications []NotificationView `json:"notifications"`
}

type errorEnvelope struct {
	Error         string             `json:"error"`
	Details       any                `json:"details,omitempty"`
	Notifications []NotificationView `json:"notifications"`
}

// reply writes data with the notifications queued so far.
func reply(w http.ResponseWriter, r *http.Request, s *backoffice.Session, status int, data any) {
	httpx.JSON(w, status, envelope{Data: data, Notifications: drain(r, s)})
}

// fail maps err to a status and error code and writes it with the queued
// notifications, which carry the store message when there is one.
func fail(w http.ResponseWriter, r *http.Request, s *backoffice.Session, err error) {
	status, code, details := classify(err)
	httpx.JSON(w, status, errorEnvelope{Error: code, Details: details, Notifications: drain(r, s)})
}

func classify(err error) (int, string, any) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, "validation_failed", verr.Violations
	case errors.Is(err, backoffice.ErrBadPatch):
		return http.StatusBadRequest, "invalid_json", err.Error()
	case errors.Is(err, backoffice.ErrForbidden):
		return http.StatusForbidden, "access_denied", nil
	case errors.Is(err, backoffice.ErrSubmitInFlight):
		return http.StatusConflict, "submit_in_flight", nil
	case errors.Is(err, backoffice.ErrDialogClosed):
		return http.StatusConflict, "dialog_closed", nil
	case errors.Is(err, backoffice.ErrNoPendingDelete):
		return http.StatusConflict, "no_pending_delete", nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, "not_found", nil
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict, "email_taken", nil
	case errors.Is(err, services.ErrPartialCreate):
		return http.StatusInternalServerError, "user_partial", nil
	case errors.Is(err, webhook.ErrNotConfigured):
		return http.StatusServiceUnavailable, "webhook_not_configured", nil
	case errors.Is(err, backoffice.ErrQuoteStatusLost):
		return http.StatusInternalServerError, "quote_status_lost", nil
	}
	var serr *webhook.StatusError
	if errors.As(err, &serr) {
		return http.StatusBadGateway, "quote_send_failed", map[string]int{"status": serr.Code}
	}
	return http.StatusInternalServerError, "internal_error", nil
}

// decodeOptional decodes a JSON body into v, treating an empty body as {}.
func decodeOptional(r *http.Request, v any) error {
	if err := httpx.Decode(r, v); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		return err
	}
	return nil
}

// readPatch returns the JSON object posted to a dialog, or nil for an empty
// body.
func readPatch(r *http.Request) ([]byte, error) {
	raw, err := httpx.ReadObject(r)
	if errors.Is(err, httpx.ErrEmptyBody) {
		return nil, nil
	}
	return raw, err
}
