package store

import (
	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/realtime"
)

var (
	LeadSchema = Schema{
		Table:         "leads",
		SearchColumns: []string{"nom", "email", "ville"},
		StatusColumn:  "statut",
	}
	DevisSchema = Schema{
		Table:         "devis",
		SearchColumns: []string{"client_nom", "numero"},
		StatusColumn:  "statut",
	}
	ChantierSchema = Schema{
		Table:         "chantiers",
		SearchColumns: []string{"nom_client", "adresse"},
		StatusColumn:  "statut",
	}
)

// Client groups the table clients of the back office. It is built once at
// startup and passed to whoever needs it.
type Client struct {
	DB        *gorm.DB
	Leads     *Table[models.Lead]
	Devis     *Table[models.Devis]
	Chantiers *Table[models.Chantier]
	Publisher realtime.Publisher
}

// NewClient wires the table clients over db. pub may be nil.
func NewClient(db *gorm.DB, pub realtime.Publisher) *Client {
	return &Client{
		DB:        db,
		Leads:     NewTable[models.Lead](db, LeadSchema, pub),
		Devis:     NewTable[models.Devis](db, DevisSchema, pub),
		Chantiers: NewTable[models.Chantier](db, ChantierSchema, pub),
		Publisher: pub,
	}
}
