package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/auth"
	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/internal/config"
	"github.com/diewo77/toiture-backoffice/internal/models"
)

// DefaultCompanyName names the seeded configuration row.
const DefaultCompanyName = "Mon entreprise de toiture"

// Seed inserts the configuration singleton and, when ADMIN_EMAIL and
// ADMIN_PASSWORD are both set, a confirmed bootstrap admin. It is idempotent.
func Seed(ctx context.Context, db *gorm.DB, app config.AppConfig, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	db = db.WithContext(ctx)

	var n int64
	if err := db.Model(&models.Configuration{}).Count(&n).Error; err != nil {
		return fmt.Errorf("count configurations: %w", err)
	}
	if n == 0 {
		if err := db.Create(&models.Configuration{NomEntreprise: DefaultCompanyName}).Error; err != nil {
			return fmt.Errorf("seed configuration: %w", err)
		}
		log.Info("seeded configuration")
	}

	email := strings.ToLower(strings.TrimSpace(app.AdminEmail))
	if email == "" || app.AdminPassword == "" {
		return nil
	}
	return seedAdmin(db, email, app.AdminPassword, log)
}

func seedAdmin(db *gorm.DB, email, password string, log *slog.Logger) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var acc models.Account
		err := tx.Where("email = ?", email).First(&acc).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			now := time.Now()
			acc = models.Account{Email: email, PasswordHash: hash, FullName: "Administrateur", ConfirmedAt: &now}
			if err := tx.Create(&acc).Error; err != nil {
				return fmt.Errorf("seed admin account: %w", err)
			}
		case err != nil:
			return err
		}

		profile := models.Profile{Base: models.Base{ID: acc.ID}, Email: acc.Email, FullName: acc.FullName}
		if err := tx.Where("id = ?", acc.ID).FirstOrCreate(&profile).Error; err != nil {
			return fmt.Errorf("seed admin profile: %w", err)
		}
		if err := tx.Where("user_id = ?", acc.ID).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.UserRole{UserID: acc.ID, Role: gate.RoleAdmin}).Error; err != nil {
			return fmt.Errorf("seed admin role: %w", err)
		}
		log.Info("bootstrap admin ready", "email", email)
		return nil
	})
}
