package backoffice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/diewo77/toiture-backoffice/internal/lines"
	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/notify"
	"github.com/diewo77/toiture-backoffice/internal/status"
	"github.com/diewo77/toiture-backoffice/internal/store"
	"github.com/diewo77/toiture-backoffice/internal/webhook"
	"github.com/diewo77/toiture-backoffice/validation"
)

// ErrQuoteStatusLost means the quote went out but the lead status could not
// be moved to devis_envoye.
var ErrQuoteStatusLost = errors.New("quote sent but lead status not updated")

// QuoteSender triggers the quote workflow for one lead.
type QuoteSender interface {
	SendQuote(webhook.QuotePayload) error
}

// LeadsPage is the lead list.
type LeadsPage struct {
	*ListPage[models.Lead]
	table  *store.Table[models.Lead]
	quotes QuoteSender
}

// SendQuote asks the workflow to generate and mail a quote for the lead,
// then moves the lead to devis_envoye.
func (p *LeadsPage) SendQuote(ctx context.Context, id string) error {
	if !p.cfg.Capabilities().CanEdit {
		return ErrForbidden
	}
	lead, err := p.table.Get(ctx, id)
	if err != nil {
		notify.Fail(p.cfg.Notifier, "quote_send_failed", err)
		return err
	}
	if err := p.quotes.SendQuote(webhook.PayloadFromLead(lead)); err != nil {
		p.cfg.Notifier.Notify(notify.Notification{Level: notify.Error, Code: "quote_send_failed"})
		return fmt.Errorf("send quote for lead %s: %w", id, err)
	}

	lead.Statut = status.LeadDevisEnvoye
	if _, err := p.table.Update(ctx, &lead); err != nil {
		notify.Warn(p.cfg.Notifier, "quote_status_lost")
		p.Invalidate()
		return fmt.Errorf("%w: %w", ErrQuoteStatusLost, err)
	}
	p.Invalidate()
	notify.Succeed(p.cfg.Notifier, "quote_sent")
	return nil
}

// ValidateLead requires a name and a known status.
func ValidateLead(l models.Lead) validation.Violations {
	v := validation.Violations{}
	validation.Required("nom", l.Nom, v)
	validation.Required("statut", string(l.Statut), v)
	if _, ok := v["statut"]; !ok {
		if _, known := status.ParseLead(string(l.Statut)); !known {
			v["statut"] = "invalid_choice"
		}
	}
	if l.Email != "" {
		validation.Email("email", l.Email, v)
	}
	return v
}

// LeadDialog edits a lead together with its custom quote lines.
type LeadDialog struct {
	*Dialog[models.Lead]

	mu     sync.Mutex
	editor *lines.Editor
}

func newLeadDialog(cfg DialogConfig[models.Lead]) *LeadDialog {
	d := &LeadDialog{editor: lines.New(nil, "")}
	cfg.Blank = func() models.Lead { return models.Lead{Statut: status.LeadNouveau} }
	cfg.Validate = ValidateLead
	cfg.OnOpen = func(rec *models.Lead) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if rec == nil {
			d.editor.Load(nil, "")
			return
		}
		notes := ""
		if rec.NotesDevisCustom != nil {
			notes = *rec.NotesDevisCustom
		}
		d.editor.Load(rec.LignesDevisCustom, notes)
	}
	cfg.Prepare = func(_ Mode, form *models.Lead) {
		d.mu.Lock()
		defer d.mu.Unlock()
		form.LignesDevisCustom, form.NotesDevisCustom = d.editor.Override()
	}
	d.Dialog = NewDialog(cfg)
	return d
}

// LinesView is the editor state shown under the lead form.
type LinesView struct {
	Lines      []models.DevisLine `json:"lines"`
	LineTotals []float64          `json:"line_totals"`
	GrandTotal float64            `json:"grand_total"`
	Notes      string             `json:"notes"`
}

// Lines returns the editor state.
func (d *LeadDialog) Lines() LinesView {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := LinesView{Lines: d.editor.Lines(), GrandTotal: d.editor.GrandTotal(), Notes: d.editor.Notes}
	v.LineTotals = make([]float64, d.editor.Len())
	for i := range v.LineTotals {
		v.LineTotals[i], _ = d.editor.LineTotal(i)
	}
	return v
}

// AppendLine adds a default line and returns its index.
func (d *LeadDialog) AppendLine() (int, error) {
	if !d.IsOpen() {
		return 0, ErrDialogClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.editor.Append(), nil
}

func (d *LeadDialog) RemoveLine(i int) error {
	if !d.IsOpen() {
		return ErrDialogClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.editor.Remove(i)
}

func (d *LeadDialog) UpdateLine(i int, field lines.Field, value string) error {
	if !d.IsOpen() {
		return ErrDialogClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.editor.Update(i, field, value)
}

func (d *LeadDialog) SetNotes(notes string) error {
	if !d.IsOpen() {
		return ErrDialogClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.editor.Notes = notes
	return nil
}

// ReplaceLines loads lines and notes wholesale, as sent by a form post.
func (d *LeadDialog) ReplaceLines(ls []models.DevisLine, notes string) error {
	if !d.IsOpen() {
		return ErrDialogClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.editor.Load(ls, notes)
	return nil
}
