package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/internal/pricing"
	"github.com/diewo77/toiture-backoffice/internal/status"
)

// Devis is a quote sent to a client. The client fields are a snapshot taken
// when the quote was written and do not follow later lead edits.
type Devis struct {
	Base

	// Numero is assigned on insert when left empty.
	Numero string `gorm:"size:50;uniqueIndex" json:"numero"`

	// LeadID points at the originating lead, for lookup only.
	LeadID *string `gorm:"size:36;index" json:"lead_id,omitempty"`

	ClientNom       string `gorm:"size:255;not null" json:"client_nom"`
	ClientEmail     string `gorm:"size:255" json:"client_email,omitempty"`
	ClientTelephone string `gorm:"size:50" json:"client_telephone,omitempty"`
	ClientAdresse   string `gorm:"size:500" json:"client_adresse,omitempty"`

	MontantHT  float64 `gorm:"column:montant_ht;type:decimal(12,2);not null" json:"montant_ht"`
	TVAPct     float64 `gorm:"column:tva_pct;type:decimal(5,2);not null" json:"tva_pct"`
	MontantTTC float64 `gorm:"column:montant_ttc;type:decimal(12,2);not null" json:"montant_ttc"`

	Statut status.DevisStatus `gorm:"size:50;not null;index" json:"statut"`

	URLPDF       string     `gorm:"column:url_pdf;size:1000" json:"url_pdf,omitempty"`
	DateCreation time.Time  `gorm:"not null" json:"date_creation"`
	DateValidite *time.Time `json:"date_validite,omitempty"`
	Notes        string     `gorm:"type:text" json:"notes,omitempty"`
}

func (Devis) TableName() string { return "devis" }

// NewDevis returns a blank quote with the default VAT rate.
func NewDevis() Devis {
	return Devis{TVAPct: pricing.DefaultTVA, Statut: status.DevisEnvoye}
}

// SetMontantHT changes the tax-exclusive amount and recomputes TTC.
func (d *Devis) SetMontantHT(ht float64) {
	d.MontantHT = ht
	d.Recompute()
}

// SetTVAPct changes the VAT rate and recomputes TTC.
func (d *Devis) SetTVAPct(tva float64) {
	d.TVAPct = tva
	d.Recompute()
}

// Recompute derives MontantTTC from MontantHT and TVAPct.
func (d *Devis) Recompute() {
	d.MontantHT = pricing.Round2(d.MontantHT)
	d.MontantTTC = pricing.TTC(d.MontantHT, d.TVAPct)
}

// Amounts returns the monetary triple.
func (d Devis) Amounts() pricing.Amounts {
	return pricing.Amounts{HT: d.MontantHT, TVA: d.TVAPct, TTC: d.MontantTTC}
}

// PrefillFromLead copies the lead's contact details into the client snapshot.
func (d *Devis) PrefillFromLead(l Lead) {
	id := l.ID
	d.LeadID = &id
	d.ClientNom = l.FullName()
	d.ClientEmail = l.Email
	d.ClientTelephone = l.Telephone
	d.ClientAdresse = l.Adresse
}

func (d *Devis) BeforeSave(tx *gorm.DB) error {
	d.Statut = status.DevisStatus(status.Normalize(string(d.Statut)))
	if d.Statut == "" {
		d.Statut = status.DevisEnvoye
	}
	if d.DateCreation.IsZero() {
		d.DateCreation = time.Now().Truncate(24 * time.Hour)
	}
	d.Recompute()
	return nil
}

func (d *Devis) BeforeCreate(tx *gorm.DB) error {
	if err := d.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if d.Numero != "" {
		return nil
	}
	n, err := NextDevisNumero(tx.Session(&gorm.Session{NewDB: true}), d.DateCreation.Year())
	if err != nil {
		return err
	}
	d.Numero = n
	return nil
}

func (d *Devis) AfterFind(tx *gorm.DB) error {
	d.Statut = status.DevisStatus(status.Normalize(string(d.Statut)))
	return nil
}

// NextDevisNumero returns the next free quote number for year, one past the
// highest numeric suffix in use. Suffixes are compared as numbers, so
// DEV-2025-10000 follows DEV-2025-9999.
// Format: DEV-YYYY-NNNN (e.g., DEV-2025-0001)
func NextDevisNumero(db *gorm.DB, year int) (string, error) {
	prefix := fmt.Sprintf("DEV-%d-", year)
	var taken []string
	err := db.Model(&Devis{}).
		Where("numero LIKE ?", prefix+"%").
		Pluck("numero", &taken).Error
	if err != nil {
		return "", err
	}
	last := 0
	for _, n := range taken {
		if v, err := strconv.Atoi(strings.TrimPrefix(n, prefix)); err == nil && v > last {
			last = v
		}
	}
	return fmt.Sprintf("%s%04d", prefix, last+1), nil
}
