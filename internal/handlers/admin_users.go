package handlers

import (
	"net/http"

	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/httpx"
	"github.com/diewo77/toiture-backoffice/internal/backoffice"
	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/services"
)

// AdminUsersHandler lists users and manages their role. Every route sits
// behind RequireAdmin; the session page guards again.
type AdminUsersHandler struct {
	*Handler
}

func NewAdminUsersHandler(h *Handler) *AdminUsersHandler {
	return &AdminUsersHandler{Handler: h}
}

type roleOption struct {
	Code  gate.Role `json:"code"`
	Label string    `json:"label"`
}

func roleOptions() []roleOption {
	out := make([]roleOption, len(gate.Roles))
	for i, r := range gate.Roles {
		out[i] = roleOption{Code: r, Label: r.Label()}
	}
	return out
}

type usersResponse struct {
	listResponse[models.UserWithRole]
	Roles []roleOption `json:"roles"`
}

// List returns users merged with their role (?q= searches email and name).
func (h *AdminUsersHandler) List() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		s.Users.SetSearch(r.URL.Query().Get("q"))
		rows, err := s.Users.Rows(r.Context())
		if err != nil {
			fail(w, r, s, err)
			return
		}
		pending, _ := s.Users.PendingDelete()
		reply(w, r, s, http.StatusOK, usersResponse{
			listResponse: listResponse[models.UserWithRole]{
				Rows: rows, Count: len(rows), Loading: s.Users.Loading(),
				PendingDelete: pending, Capabilities: s.Capabilities(),
			},
			Roles: roleOptions(),
		})
	})
}

func (h *AdminUsersHandler) Events() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		if err := s.Users.Guard(); err != nil {
			fail(w, r, s, err)
			return
		}
		serveEvents(w, r, s, s.Users)
	})
}

// Create runs the user dialog with the posted form.
func (h *AdminUsersHandler) Create() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		var in services.NewUser
		if err := httpx.Decode(r, &in); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		if in.Role == "" {
			in.Role = gate.RoleLecteur
		}
		d := s.UserDialog
		d.Open()
		if err := d.Edit(func(f *services.NewUser) { *f = in }); err != nil {
			fail(w, r, s, err)
			return
		}
		u, err := d.Submit(r.Context())
		if err != nil {
			h.Logger.WarnContext(r.Context(), "create user failed", "by", s.UserID, "err", err)
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusCreated, u)
	})
}

type roleRequest struct {
	Role string `json:"role"`
}

// ChangeRole replaces the role of {id}.
func (h *AdminUsersHandler) ChangeRole() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		var req roleRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		role, err := gate.ParseRole(req.Role)
		if err != nil || req.Role == "" {
			httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", map[string]string{"role": "invalid_choice"})
			return
		}
		id := r.PathValue("id")
		if err := s.Users.ChangeRole(r.Context(), id, role); err != nil {
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, map[string]any{"user_id": id, "role": role})
	})
}

func (h *AdminUsersHandler) ArmDelete() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		if err := s.Users.RequestDelete(r.PathValue("id")); err != nil {
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, map[string]string{"pending_delete": r.PathValue("id")})
	})
}

func (h *AdminUsersHandler) ConfirmDelete() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		if err := s.Users.ConfirmDelete(r.Context()); err != nil {
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, nil)
	})
}

func (h *AdminUsersHandler) CancelDelete() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		if err := s.Users.Guard(); err != nil {
			fail(w, r, s, err)
			return
		}
		s.Users.CancelDelete()
		reply(w, r, s, http.StatusOK, nil)
	})
}
