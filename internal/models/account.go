package models

import (
	"time"

	"github.com/diewo77/toiture-backoffice/gate"
)

// Account is a login. It outlives its profile: deleting a user from the
// back office removes the profile and role but keeps the account.
type Account struct {
	Base
	Email             string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash      string     `gorm:"size:255;not null" json:"-"`
	FullName          string     `gorm:"size:255" json:"full_name,omitempty"`
	ConfirmationToken string     `gorm:"size:64;index" json:"-"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	RedirectTo        string     `gorm:"size:500" json:"-"`
}

func (Account) TableName() string { return "accounts" }

// Confirmed reports whether the confirmation link was followed.
func (a Account) Confirmed() bool { return a.ConfirmedAt != nil }

// Profile is the application-side identity of an account. Its ID is the
// account ID.
type Profile struct {
	Base
	Email    string `gorm:"size:255;not null" json:"email"`
	FullName string `gorm:"size:255" json:"full_name,omitempty"`
}

func (Profile) TableName() string { return "profiles" }

// UserRole assigns one role to an account. A missing row means lecteur.
type UserRole struct {
	Base
	UserID string    `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	Role   gate.Role `gorm:"size:20;not null" json:"role"`
}

func (UserRole) TableName() string { return "user_roles" }

// UserWithRole is a profile joined with its effective role.
type UserWithRole struct {
	Profile
	Role gate.Role `json:"role"`
}
