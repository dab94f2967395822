package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/httpx"
	"github.com/diewo77/toiture-backoffice/internal/backoffice"
	"github.com/diewo77/toiture-backoffice/internal/export"
	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/store"
	"github.com/diewo77/toiture-backoffice/validation"
)

// DevisHandler serves the quote list and its dialog.
type DevisHandler struct {
	*Handler
	devis *store.Table[models.Devis]
}

func NewDevisHandler(h *Handler, devis *store.Table[models.Devis]) *DevisHandler {
	return &DevisHandler{Handler: h, devis: devis}
}

func (h *DevisHandler) List() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		applyFilters(r, s.Devis)
		rows, err := s.Devis.Rows(r.Context())
		if err != nil {
			h.Logger.ErrorContext(r.Context(), "list devis", "err", err)
			fail(w, r, s, err)
			return
		}
		pending, _ := s.Devis.PendingDelete()
		reply(w, r, s, http.StatusOK, listResponse[models.Devis]{
			Rows: rows, Count: len(rows), Loading: s.Devis.Loading(),
			PendingDelete: pending, Capabilities: s.Capabilities(),
		})
	})
}

// Latest returns the most recent quotes for the dashboard (?n=, default 5).
func (h *DevisHandler) Latest() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n"))
		rows, err := s.Devis.Latest(r.Context(), n)
		if err != nil {
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, rows)
	})
}

func (h *DevisHandler) Events() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		serveEvents(w, r, s, s.Devis)
	})
}

func (h *DevisHandler) Export() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		applyFilters(r, s.Devis)
		rows, err := s.Devis.Rows(r.Context())
		if err != nil {
			fail(w, r, s, err)
			return
		}
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="devis.xlsx"`)
		if err := export.WriteDevis(w, rows); err != nil {
			h.Logger.ErrorContext(r.Context(), "export devis", "err", err)
		}
	})
}

// LeadOptions lists the leads a quote can be attached to.
func (h *DevisHandler) LeadOptions() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		opts, err := s.DevisDialog.LeadOptions(r.Context())
		if err != nil {
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, opts)
	})
}

type devisDialogView struct {
	Open       bool                  `json:"open"`
	Mode       backoffice.Mode       `json:"mode"`
	Form       models.Devis          `json:"form"`
	Violations validation.Violations `json:"violations,omitempty"`
}

func devisDialogState(d *backoffice.DevisDialog) devisDialogView {
	return devisDialogView{Open: d.IsOpen(), Mode: d.Mode(), Form: d.Form(), Violations: d.Violations()}
}

func (h *DevisHandler) OpenDialog() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		var req openRequest
		if err := decodeOptional(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		if req.ID == "" {
			if !h.Gate.Can(r.Context(), gate.ActionCreate, gate.ResourceDevis) {
				fail(w, r, s, backoffice.ErrForbidden)
				return
			}
			s.DevisDialog.Open(nil)
		} else {
			d, err := h.devis.Get(r.Context(), req.ID)
			if err != nil {
				fail(w, r, s, err)
				return
			}
			s.DevisDialog.Open(&d)
		}
		reply(w, r, s, http.StatusOK, devisDialogState(s.DevisDialog))
	})
}

type selectLeadRequest struct {
	LeadID string `json:"lead_id"`
}

// SelectLead pre-fills the client fields from a lead.
func (h *DevisHandler) SelectLead() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		var req selectLeadRequest
		if err := httpx.Decode(r, &req); err != nil || req.LeadID == "" {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		if err := s.DevisDialog.SelectLead(r.Context(), req.LeadID); err != nil {
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, devisDialogState(s.DevisDialog))
	})
}

// SubmitDialog lays the posted fields over the quote form and saves it.
// Fields left out keep their value, so a new quote keeps the default VAT
// rate. TTC is always recomputed from HT and the VAT rate.
func (h *DevisHandler) SubmitDialog() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		d := s.DevisDialog
		if !d.IsOpen() {
			fail(w, r, s, backoffice.ErrDialogClosed)
			return
		}
		action := gate.ActionCreate
		if d.Mode() == backoffice.ModeEdit {
			action = gate.ActionUpdate
		}
		if !h.Gate.Can(r.Context(), action, gate.ResourceDevis) {
			fail(w, r, s, backoffice.ErrForbidden)
			return
		}

		raw, err := readPatch(r)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		if raw != nil {
			err := d.Patch(raw, func(prev models.Devis, next *models.Devis) {
				next.Base, next.Numero = prev.Base, prev.Numero
			})
			if err != nil {
				fail(w, r, s, err)
				return
			}
		}

		saved, err := d.Submit(r.Context())
		if err != nil {
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, saved)
	})
}

func (h *DevisHandler) CloseDialog() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		s.DevisDialog.Close()
		reply(w, r, s, http.StatusOK, devisDialogState(s.DevisDialog))
	})
}

func (h *DevisHandler) ArmDelete() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		if err := s.Devis.RequestDelete(r.PathValue("id")); err != nil {
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, map[string]string{"pending_delete": r.PathValue("id")})
	})
}

func (h *DevisHandler) ConfirmDelete() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		if err := s.Devis.ConfirmDelete(r.Context()); err != nil {
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, nil)
	})
}

func (h *DevisHandler) CancelDelete() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		s.Devis.CancelDelete()
		reply(w, r, s, http.StatusOK, nil)
	})
}
