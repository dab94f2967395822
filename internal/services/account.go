// Package services holds the account and user-administration logic that
// sits between the HTTP layer and the database.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/auth"
	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/validation"
)

var (
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidToken    = errors.New("invalid or expired confirmation token")
	ErrNotConfirmed    = errors.New("account not confirmed")
	ErrAccountNotFound = errors.New("account not found")
)

// SignUpInput creates an account.
type SignUpInput struct {
	Email      string
	Password   string
	FullName   string
	RedirectTo string
}

// AccountService owns the accounts table.
type AccountService struct {
	db      *gorm.DB
	mailer  Mailer
	baseURL string
	logger  *slog.Logger
}

// NewAccountService builds the service. baseURL prefixes confirmation links.
func NewAccountService(db *gorm.DB, mailer Mailer, baseURL string, logger *slog.Logger) *AccountService {
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{db: db, mailer: mailer, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// SignUp creates an unconfirmed account and mails its confirmation link.
// A mail failure is logged; the account stays and can be confirmed later.
func (s *AccountService) SignUp(ctx context.Context, in SignUpInput) (models.Account, error) {
	in.Email = normalizeEmail(in.Email)
	v := validation.Violations{}
	validation.Email("email", in.Email, v)
	validation.MinLength("password", in.Password, auth.MinPasswordLength, v)
	if err := v.Err(); err != nil {
		return models.Account{}, err
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Where("email = ?", in.Email).Count(&n).Error; err != nil {
		return models.Account{}, fmt.Errorf("check email: %w", err)
	}
	if n > 0 {
		return models.Account{}, ErrEmailTaken
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.Account{}, err
	}
	acc := models.Account{
		Email:             in.Email,
		PasswordHash:      hash,
		FullName:          strings.TrimSpace(in.FullName),
		ConfirmationToken: strings.ReplaceAll(uuid.NewString(), "-", ""),
		RedirectTo:        in.RedirectTo,
	}
	if err := s.db.WithContext(ctx).Create(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Account{}, ErrEmailTaken
		}
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}

	link := s.baseURL + "/confirm?token=" + acc.ConfirmationToken
	body := fmt.Sprintf("Bonjour %s,\n\nConfirmez votre compte : %s\n", acc.FullName, link)
	if err := s.mailer.Send(ctx, acc.Email, "Confirmez votre compte", body); err != nil {
		s.logger.WarnContext(ctx, "confirmation mail failed", "account_id", acc.ID, "err", err)
	}
	return acc, nil
}

// Confirm marks the account holding token as confirmed and returns it.
func (s *AccountService) Confirm(ctx context.Context, token string) (models.Account, error) {
	var acc models.Account
	if token == "" {
		return acc, ErrInvalidToken
	}
	err := s.db.WithContext(ctx).Where("confirmation_token = ?", token).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return acc, ErrInvalidToken
	}
	if err != nil {
		return acc, err
	}
	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&acc).Updates(map[string]any{
		"confirmed_at":       now,
		"confirmation_token": "",
	}).Error; err != nil {
		return acc, fmt.Errorf("confirm account: %w", err)
	}
	acc.ConfirmedAt = &now
	acc.ConfirmationToken = ""
	return acc, nil
}

// Authenticate checks credentials of a confirmed account.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (models.Account, error) {
	var acc models.Account
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Account{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return models.Account{}, err
	}
	if err := auth.CheckPassword(acc.PasswordHash, password); err != nil {
		return models.Account{}, err
	}
	if !acc.Confirmed() {
		return models.Account{}, ErrNotConfirmed
	}
	return acc, nil
}

// Exists reports whether an account with id is present.
func (s *AccountService) Exists(ctx context.Context, id string) bool {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false
	}
	return n > 0
}

// Delete removes the account.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Account{})
	if res.Error != nil {
		return fmt.Errorf("delete account %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
