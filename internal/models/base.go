package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base holds the identity and row timestamps shared by every table.
type Base struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller left the id empty.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// GetID returns the record identity.
func (b Base) GetID() string { return b.ID }

// All lists every model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Account{}, &Profile{}, &UserRole{},
		&Lead{}, &Devis{}, &Chantier{}, &Configuration{},
	}
}
