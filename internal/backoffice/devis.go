package backoffice

import (
	"context"

	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/status"
	"github.com/diewo77/toiture-backoffice/internal/store"
	"github.com/diewo77/toiture-backoffice/validation"
)

// LatestDevisCount is the size of the dashboard's latest-quotes list.
const LatestDevisCount = 5

// DevisPage is the quote list.
type DevisPage struct {
	*ListPage[models.Devis]
	table *store.Table[models.Devis]
}

// Latest returns the n most recent quotes, whatever the filters.
func (p *DevisPage) Latest(ctx context.Context, n int) ([]models.Devis, error) {
	if n <= 0 {
		n = LatestDevisCount
	}
	return p.table.List(ctx, store.Query{Limit: n})
}

// ValidateDevis requires a client name, a known status and an amount that
// is not negative.
func ValidateDevis(d models.Devis) validation.Violations {
	v := validation.Violations{}
	validation.Required("client_nom", d.ClientNom, v)
	validation.Required("statut", string(d.Statut), v)
	if _, ok := v["statut"]; !ok {
		if _, known := status.ParseDevis(string(d.Statut)); !known {
			v["statut"] = "invalid_choice"
		}
	}
	validation.NonNegativeFloat("montant_ht", d.MontantHT, v)
	validation.RangeFloat("tva_pct", d.TVAPct, 0, 100, v)
	if d.ClientEmail != "" {
		validation.Email("client_email", d.ClientEmail, v)
	}
	return v
}

// LeadOption is one entry of the lead picker in the quote dialog.
type LeadOption struct {
	ID        string `json:"id"`
	Nom       string `json:"nom"`
	Prenom    string `json:"prenom,omitempty"`
	Email     string `json:"email,omitempty"`
	Telephone string `json:"telephone,omitempty"`
	Adresse   string `json:"adresse,omitempty"`
}

// DevisDialog edits a quote. A lead can be picked to fill the client fields.
type DevisDialog struct {
	*Dialog[models.Devis]
	leads *store.Table[models.Lead]
}

func newDevisDialog(cfg DialogConfig[models.Devis], leads *store.Table[models.Lead]) *DevisDialog {
	cfg.Blank = models.NewDevis
	cfg.Validate = ValidateDevis
	cfg.Prepare = func(mode Mode, form *models.Devis) {
		if mode == ModeCreate {
			// empty numero: assigned on insert
			form.Numero = ""
		}
		form.Recompute()
	}
	return &DevisDialog{Dialog: NewDialog(cfg), leads: leads}
}

// SelectLead copies the lead's contact details into the form.
func (d *DevisDialog) SelectLead(ctx context.Context, leadID string) error {
	if !d.IsOpen() {
		return ErrDialogClosed
	}
	lead, err := d.leads.Get(ctx, leadID)
	if err != nil {
		return err
	}
	return d.Edit(func(f *models.Devis) { f.PrefillFromLead(lead) })
}

// SetMontantHT changes the amount before tax; TTC follows.
func (d *DevisDialog) SetMontantHT(ht float64) error {
	return d.Edit(func(f *models.Devis) { f.SetMontantHT(ht) })
}

// SetTVAPct changes the VAT rate; TTC follows.
func (d *DevisDialog) SetTVAPct(tva float64) error {
	return d.Edit(func(f *models.Devis) { f.SetTVAPct(tva) })
}

// LeadOptions lists every lead by name for the picker.
func (d *DevisDialog) LeadOptions(ctx context.Context) ([]LeadOption, error) {
	rows, err := d.leads.Select(ctx, "nom", "id", "nom", "prenom", "email", "telephone", "adresse")
	if err != nil {
		return nil, err
	}
	out := make([]LeadOption, len(rows))
	for i, l := range rows {
		out[i] = LeadOption{ID: l.ID, Nom: l.Nom, Prenom: l.Prenom, Email: l.Email, Telephone: l.Telephone, Adresse: l.Adresse}
	}
	return out, nil
}
