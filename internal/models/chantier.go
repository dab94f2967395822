package models

import "time"

// Chantier is a worksite opened once a quote is accepted.
type Chantier struct {
	Base
	LeadID        *string    `gorm:"size:36;index" json:"lead_id,omitempty"`
	DevisID       *string    `gorm:"size:36;index" json:"devis_id,omitempty"`
	NomClient     string     `gorm:"size:255;not null" json:"nom_client"`
	TypeProjet    string     `gorm:"size:100" json:"type_projet,omitempty"`
	Adresse       string     `gorm:"size:500" json:"adresse,omitempty"`
	Statut        string     `gorm:"size:50;not null" json:"statut"`
	AvancementPct int        `gorm:"default:0" json:"avancement_pct"`
	DateDebut     *time.Time `json:"date_debut,omitempty"`
	DateFinPrevue *time.Time `json:"date_fin_prevue,omitempty"`
	DateFinReelle *time.Time `json:"date_fin_reelle,omitempty"`
	Notes         string     `gorm:"type:text" json:"notes,omitempty"`
}

func (Chantier) TableName() string { return "chantiers" }
