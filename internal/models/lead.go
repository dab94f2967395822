package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/internal/pricing"
	"github.com/diewo77/toiture-backoffice/internal/status"
)

// DevisLine is one manually entered quote line (tax-exclusive price).
type DevisLine struct {
	Designation    string  `json:"designation"`
	Quantite       float64 `json:"quantite"`
	Unite          string  `json:"unite"`
	PrixUnitaireHT float64 `json:"prix_unitaire_ht"`
}

// Total is quantity times unit price.
func (l DevisLine) Total() float64 {
	return l.Quantite * l.PrixUnitaireHT
}

// Quote sources, by decreasing precedence.
const (
	QuoteFromCustomLines      = "custom_lines"
	QuoteFromNegotiatedBudget = "negotiated_budget"
	QuoteFromEstimatedBudget  = "estimated_budget"
	QuoteAutomatic            = "automatic"
)

// Lead is a prospective customer.
type Lead struct {
	Base

	// Contact
	Nom        string `gorm:"size:255;not null" json:"nom"`
	Prenom     string `gorm:"size:255" json:"prenom,omitempty"`
	Email      string `gorm:"size:255;index" json:"email,omitempty"`
	Telephone  string `gorm:"size:50" json:"telephone,omitempty"`
	Adresse    string `gorm:"size:500" json:"adresse,omitempty"`
	CodePostal string `gorm:"size:20" json:"code_postal,omitempty"`
	Ville      string `gorm:"size:100" json:"ville,omitempty"`
	Source     string `gorm:"size:100" json:"source,omitempty"`

	Statut status.LeadStatus `gorm:"size:50;not null;index" json:"statut"`

	// Project
	TypeProjet  string   `gorm:"size:100" json:"type_projet,omitempty"`
	Surface     *float64 `json:"surface,omitempty"`
	Description string   `gorm:"type:text" json:"description,omitempty"`

	// Qualification written by the AI intake
	AINotes            string `gorm:"column:ai_notes;type:text" json:"ai_notes,omitempty"`
	AIRaw              string `gorm:"column:ai_raw;type:text" json:"ai_raw,omitempty"`
	ScoreQualification *int   `json:"score_qualification,omitempty"`

	// Budget. A negotiated budget overrides the estimate.
	BudgetEstime  *float64 `gorm:"type:decimal(12,2)" json:"budget_estime,omitempty"`
	BudgetNegocie *float64 `gorm:"type:decimal(12,2)" json:"budget_negocie,omitempty"`
	Delai         string   `gorm:"size:100" json:"delai,omitempty"`
	Urgence       string   `gorm:"size:100" json:"urgence,omitempty"`

	// Email engagement, filled by the mail provider callbacks
	EmailOuvert       bool       `gorm:"default:false" json:"email_ouvert"`
	EmailOuvertCount  int        `gorm:"default:0" json:"email_ouvert_count"`
	EmailOuvertAt     *time.Time `json:"email_ouvert_at,omitempty"`
	EmailDeliveredAt  *time.Time `json:"email_delivered_at,omitempty"`
	EmailClicCount    int        `gorm:"default:0" json:"email_clic_count"`
	EmailClicAt       *time.Time `json:"email_clic_at,omitempty"`
	PDFConsulte       bool       `gorm:"column:pdf_consulte;default:false" json:"pdf_consulte"`
	PDFConsulteAt     *time.Time `gorm:"column:pdf_consulte_at" json:"pdf_consulte_at,omitempty"`
	EngagementScore   int        `gorm:"default:0" json:"engagement_score"`
	DerniereActivite  *time.Time `json:"derniere_activite,omitempty"`
	SendgridMessageID string     `gorm:"column:sendgrid_message_id;size:255" json:"sendgrid_message_id,omitempty"`

	// Lines typed in after a phone call. Nil means no manual override.
	LignesDevisCustom datatypes.JSONSlice[DevisLine] `json:"lignes_devis_custom"`
	NotesDevisCustom  *string                        `gorm:"type:text" json:"notes_devis_custom"`
}

func (Lead) TableName() string { return "leads" }

// FullName is "nom prenom" without stray spaces.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.Nom + " " + l.Prenom)
}

// EffectiveBudget is the negotiated budget when set, else the estimate.
func (l Lead) EffectiveBudget() *float64 {
	if l.BudgetNegocie != nil {
		return l.BudgetNegocie
	}
	return l.BudgetEstime
}

// QuoteSource tells the quote generator what to build the quote from.
func (l Lead) QuoteSource() string {
	switch {
	case len(l.LignesDevisCustom) > 0:
		return QuoteFromCustomLines
	case l.BudgetNegocie != nil:
		return QuoteFromNegotiatedBudget
	case l.BudgetEstime != nil:
		return QuoteFromEstimatedBudget
	}
	return QuoteAutomatic
}

// CustomLinesTotal sums the manual lines, rounded to cents.
func (l Lead) CustomLinesTotal() float64 {
	var total float64
	for _, line := range l.LignesDevisCustom {
		total += line.Total()
	}
	return pricing.Round2(total)
}

func (l *Lead) BeforeSave(tx *gorm.DB) error {
	l.Statut = status.LeadStatus(status.Normalize(string(l.Statut)))
	if l.Statut == "" {
		l.Statut = status.LeadNouveau
	}
	return nil
}

// AfterFind folds legacy spellings so callers only see canonical codes.
func (l *Lead) AfterFind(tx *gorm.DB) error {
	l.Statut = status.LeadStatus(status.Normalize(string(l.Statut)))
	return nil
}
