package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/httpx"
	"github.com/diewo77/toiture-backoffice/internal/backoffice"
	"github.com/diewo77/toiture-backoffice/internal/export"
	"github.com/diewo77/toiture-backoffice/internal/lines"
	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/store"
	"github.com/diewo77/toiture-backoffice/validation"
)

// LeadHandler serves the lead list, its dialog and the send-quote action.
type LeadHandler struct {
	*Handler
	leads *store.Table[models.Lead]
}

func NewLeadHandler(h *Handler, leads *store.Table[models.Lead]) *LeadHandler {
	return &LeadHandler{Handler: h, leads: leads}
}

type listResponse[T any] struct {
	Rows          []T               `json:"rows"`
	Count         int               `json:"count"`
	Loading       bool              `json:"loading"`
	PendingDelete string            `json:"pending_delete,omitempty"`
	Capabilities  gate.Capabilities `json:"capabilities"`
}

// filterable is a list page whose filters follow the query string.
type filterable interface {
	SetSearch(string)
	SetStatus(string)
}

func applyFilters(r *http.Request, p filterable) {
	q := r.URL.Query()
	p.SetSearch(q.Get("q"))
	p.SetStatus(q.Get("statut"))
}

// List returns the leads matching ?q= and ?statut=.
func (h *LeadHandler) List() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		applyFilters(r, s.Leads)
		rows, err := s.Leads.Rows(r.Context())
		if err != nil {
			h.Logger.ErrorContext(r.Context(), "list leads", "err", err)
			fail(w, r, s, err)
			return
		}
		pending, _ := s.Leads.PendingDelete()
		reply(w, r, s, http.StatusOK, listResponse[models.Lead]{
			Rows: rows, Count: len(rows), Loading: s.Leads.Loading(),
			PendingDelete: pending, Capabilities: s.Capabilities(),
		})
	})
}

// Events streams invalidations of the lead list.
func (h *LeadHandler) Events() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		serveEvents(w, r, s, s.Leads)
	})
}

// Export writes the filtered lead list as a workbook.
func (h *LeadHandler) Export() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		applyFilters(r, s.Leads)
		rows, err := s.Leads.Rows(r.Context())
		if err != nil {
			fail(w, r, s, err)
			return
		}
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="leads.xlsx"`)
		if err := export.WriteLeads(w, rows); err != nil {
			h.Logger.ErrorContext(r.Context(), "export leads", "err", err)
		}
	})
}

type openRequest struct {
	ID string `json:"id"`
}

type leadDialogView struct {
	Open       bool                  `json:"open"`
	Mode       backoffice.Mode       `json:"mode"`
	Form       models.Lead           `json:"form"`
	Lines      backoffice.LinesView  `json:"lines"`
	Violations validation.Violations `json:"violations,omitempty"`
}

func leadDialogState(d *backoffice.LeadDialog) leadDialogView {
	return leadDialogView{Open: d.IsOpen(), Mode: d.Mode(), Form: d.Form(), Lines: d.Lines(), Violations: d.Violations()}
}

// OpenDialog opens the lead dialog on {id} or on a blank lead.
func (h *LeadHandler) OpenDialog() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		var req openRequest
		if err := decodeOptional(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		if req.ID == "" {
			if !h.Gate.Can(r.Context(), gate.ActionCreate, gate.ResourceLead) {
				fail(w, r, s, backoffice.ErrForbidden)
				return
			}
			s.LeadDialog.Open(nil)
		} else {
			lead, err := h.leads.Get(r.Context(), req.ID)
			if err != nil {
				fail(w, r, s, err)
				return
			}
			s.LeadDialog.Open(&lead)
		}
		reply(w, r, s, http.StatusOK, leadDialogState(s.LeadDialog))
	})
}

// SubmitDialog lays the posted fields over the form, lines included, and
// saves it. Fields left out keep their value; an empty body submits the
// form as it stands.
func (h *LeadHandler) SubmitDialog() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		d := s.LeadDialog
		if !d.IsOpen() {
			fail(w, r, s, backoffice.ErrDialogClosed)
			return
		}
		action := gate.ActionCreate
		if d.Mode() == backoffice.ModeEdit {
			action = gate.ActionUpdate
		}
		if !h.Gate.Can(r.Context(), action, gate.ResourceLead) {
			fail(w, r, s, backoffice.ErrForbidden)
			return
		}

		raw, err := readPatch(r)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		if raw != nil {
			err := d.Patch(raw, func(prev models.Lead, next *models.Lead) { next.Base = prev.Base })
			if err == nil {
				err = patchLines(d, raw)
			}
			if err != nil {
				fail(w, r, s, err)
				return
			}
		}

		saved, err := d.Submit(r.Context())
		if err != nil {
			var verr *validation.Error
			if !errors.As(err, &verr) {
				h.Logger.WarnContext(r.Context(), "lead submit failed", "user_id", s.UserID, "err", err)
			}
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, saved)
	})
}

// linesPatch holds the line-editor keys of a lead post. A nil field was
// not posted.
type linesPatch struct {
	Lines *[]models.DevisLine `json:"lignes_devis_custom"`
	Notes *string             `json:"notes_devis_custom"`
}

// patchLines loads the posted lines and notes into the editor. Keys left
// out keep the editor's current state.
func patchLines(d *backoffice.LeadDialog, raw []byte) error {
	var p linesPatch
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: %v", backoffice.ErrBadPatch, err)
	}
	if p.Lines == nil && p.Notes == nil {
		return nil
	}
	cur := d.Lines()
	ls, notes := cur.Lines, cur.Notes
	if p.Lines != nil {
		ls = *p.Lines
	}
	if p.Notes != nil {
		notes = *p.Notes
	}
	return d.ReplaceLines(ls, notes)
}

type lineRequest struct {
	Op    string      `json:"op"` // append | remove | update | notes
	Index int         `json:"index"`
	Field lines.Field `json:"field"`
	Value string      `json:"value"`
}

// EditLines applies one line-editor operation to the open dialog.
func (h *LeadHandler) EditLines() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		var req lineRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		d := s.LeadDialog
		var err error
		switch req.Op {
		case "append":
			_, err = d.AppendLine()
		case "remove":
			err = d.RemoveLine(req.Index)
		case "update":
			err = d.UpdateLine(req.Index, req.Field, req.Value)
		case "notes":
			err = d.SetNotes(req.Value)
		default:
			httpx.JSONError(w, http.StatusBadRequest, "invalid_op", nil)
			return
		}
		switch {
		case errors.Is(err, lines.ErrIndex), errors.Is(err, lines.ErrField):
			httpx.JSONError(w, http.StatusBadRequest, "invalid_line", err.Error())
			return
		case err != nil:
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, d.Lines())
	})
}

// CloseDialog discards the form.
func (h *LeadHandler) CloseDialog() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		s.LeadDialog.Close()
		reply(w, r, s, http.StatusOK, leadDialogState(s.LeadDialog))
	})
}

// ArmDelete marks {id} for deletion; nothing is deleted yet.
func (h *LeadHandler) ArmDelete() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		if err := s.Leads.RequestDelete(r.PathValue("id")); err != nil {
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, map[string]string{"pending_delete": r.PathValue("id")})
	})
}

func (h *LeadHandler) ConfirmDelete() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		if err := s.Leads.ConfirmDelete(r.Context()); err != nil {
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, nil)
	})
}

func (h *LeadHandler) CancelDelete() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		s.Leads.CancelDelete()
		reply(w, r, s, http.StatusOK, nil)
	})
}

// SendQuote triggers the quote workflow for {id}.
func (h *LeadHandler) SendQuote() http.HandlerFunc {
	return h.sessionFunc(func(w http.ResponseWriter, r *http.Request, s *backoffice.Session) {
		id := r.PathValue("id")
		if err := s.Leads.SendQuote(r.Context(), id); err != nil {
			h.Logger.WarnContext(r.Context(), "send quote failed", "lead_id", id, "err", err)
			fail(w, r, s, err)
			return
		}
		reply(w, r, s, http.StatusOK, map[string]string{"lead_id": id})
	})
}
