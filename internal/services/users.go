package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/realtime"
	"github.com/diewo77/toiture-backoffice/validation"
)

var (
	// ErrPartialCreate means a user creation failed half-way and the
	// compensating deletes failed too. The orphan sweep cleans up.
	ErrPartialCreate = errors.New("user creation left an orphaned account")
	ErrUserNotFound  = errors.New("user not found")
)

// NewUser is the create-user form.
type NewUser struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	FullName string    `json:"full_name"`
	Role     gate.Role `json:"role"`
}

// Validate checks email, password length and role.
func (u NewUser) Validate() error {
	v := validation.Violations{}
	validation.Email("email", u.Email, v)
	validation.MinLength("password", u.Password, 6, v)
	validation.OneOf("role", string(u.Role), roleCodes(), v)
	return v.Err()
}

func roleCodes() []string {
	out := make([]string, len(gate.Roles))
	for i, r := range gate.Roles {
		out[i] = string(r)
	}
	return out
}

// UserQuery filters the user list.
type UserQuery struct {
	Search string
}

// UserAdmin manages the profile and role of back-office users.
type UserAdmin struct {
	db       *gorm.DB
	accounts *AccountService
	pub      realtime.Publisher
	logger   *slog.Logger
	// loginURL is the post-confirmation redirect of new accounts.
	loginURL string

	// OnRoleChange is called with the user id after a role write or delete.
	OnRoleChange func(userID string)
}

func NewUserAdmin(db *gorm.DB, accounts *AccountService, pub realtime.Publisher, logger *slog.Logger) *UserAdmin {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserAdmin{
		db:       db,
		accounts: accounts,
		pub:      pub,
		logger:   logger,
		loginURL: accounts.baseURL + "/login",
	}
}

func (s *UserAdmin) publish(table string, op realtime.Op, id string) {
	if s.pub != nil {
		s.pub.Publish(realtime.Event{Table: table, Op: op, ID: id, At: time.Now()})
	}
}

func (s *UserAdmin) roleChanged(userID string) {
	if s.OnRoleChange != nil {
		s.OnRoleChange(userID)
	}
}

// List returns profiles, newest first, each with its role. A profile without
// a role row is a lecteur.
func (s *UserAdmin) List(ctx context.Context, q UserQuery) ([]models.UserWithRole, error) {
	tx := s.db.WithContext(ctx).Model(&models.Profile{}).Order("created_at DESC")
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		like := "%" + term + "%"
		tx = tx.Where("LOWER(email) LIKE ? OR LOWER(COALESCE(full_name,'')) LIKE ?", like, like)
	}
	var profiles []models.Profile
	if err := tx.Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if len(profiles) == 0 {
		return []models.UserWithRole{}, nil
	}

	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	var roles []models.UserRole
	if err := s.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	byUser := make(map[string]gate.Role, len(roles))
	for _, r := range roles {
		byUser[r.UserID] = r.Role
	}

	out := make([]models.UserWithRole, len(profiles))
	for i, p := range profiles {
		role, ok := byUser[p.ID]
		if !ok || !role.Valid() {
			role = gate.RoleLecteur
		}
		out[i] = models.UserWithRole{Profile: p, Role: role}
	}
	return out, nil
}

// RoleOf returns the role of userID; no row means lecteur.
func (s *UserAdmin) RoleOf(ctx context.Context, userID string) (gate.Role, error) {
	var r models.UserRole
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&r).Error
	if err != nil {
		return gate.RoleLecteur, err
	}
	if r.ID == "" {
		return gate.RoleLecteur, nil
	}
	return gate.ParseRole(string(r.Role))
}

// Create runs the three creation steps: account, profile, role. When step 2
// or 3 fails, what was already created is deleted again in reverse order.
func (s *UserAdmin) Create(ctx context.Context, in NewUser) (models.UserWithRole, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return models.UserWithRole{}, err
	}

	acc, err := s.accounts.SignUp(ctx, SignUpInput{
		Email:      in.Email,
		Password:   in.Password,
		FullName:   in.FullName,
		RedirectTo: s.loginURL,
	})
	if err != nil {
		return models.UserWithRole{}, err
	}

	profile := models.Profile{Base: models.Base{ID: acc.ID}, Email: acc.Email, FullName: acc.FullName}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return models.UserWithRole{}, s.compensate(ctx, fmt.Errorf("create profile: %w", err), acc.ID, false)
	}

	role := models.UserRole{UserID: acc.ID, Role: in.Role}
	if err := s.db.WithContext(ctx).Create(&role).Error; err != nil {
		return models.UserWithRole{}, s.compensate(ctx, fmt.Errorf("assign role: %w", err), acc.ID, true)
	}

	s.publish("profiles", realtime.OpInsert, acc.ID)
	s.publish("user_roles", realtime.OpInsert, role.ID)
	return models.UserWithRole{Profile: profile, Role: in.Role}, nil
}

func (s *UserAdmin) compensate(ctx context.Context, cause error, accountID string, profileCreated bool) error {
	var errs []error
	if profileCreated {
		if err := s.db.WithContext(ctx).Where("id = ?", accountID).Delete(&models.Profile{}).Error; err != nil {
			errs = append(errs, fmt.Errorf("remove profile: %w", err))
		}
	}
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		errs = append(errs, fmt.Errorf("remove account: %w", err))
	}
	if len(errs) > 0 {
		s.logger.ErrorContext(ctx, "user creation rollback failed", "account_id", accountID, "cause", cause, "err", errors.Join(errs...))
		return fmt.Errorf("%w (%s): %w", ErrPartialCreate, accountID, errors.Join(append([]error{cause}, errs...)...))
	}
	s.logger.WarnContext(ctx, "user creation rolled back", "account_id", accountID, "cause", cause)
	return cause
}

// ChangeRole replaces the role row of userID inside one transaction.
func (s *UserAdmin) ChangeRole(ctx context.Context, userID string, role gate.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", gate.ErrUnknownRole, role)
	}
	if err := s.requireProfile(ctx, userID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserRole{UserID: userID, Role: role}).Error
	})
	if err != nil {
		return fmt.Errorf("change role of %s: %w", userID, err)
	}
	s.roleChanged(userID)
	s.publish("user_roles", realtime.OpUpdate, userID)
	return nil
}

// Delete removes the role row then the profile row. The account is kept.
func (s *UserAdmin) Delete(ctx context.Context, userID string) error {
	if err := s.requireProfile(ctx, userID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
		return fmt.Errorf("delete role of %s: %w", userID, err)
	}
	s.publish("user_roles", realtime.OpDelete, userID)
	if err := s.db.WithContext(ctx).Where("id = ?", userID).Delete(&models.Profile{}).Error; err != nil {
		s.roleChanged(userID)
		return fmt.Errorf("delete profile %s: %w", userID, err)
	}
	// after the profile is gone, so no lookup can cache the old access
	s.roleChanged(userID)
	s.publish("profiles", realtime.OpDelete, userID)
	return nil
}

func (s *UserAdmin) requireProfile(ctx context.Context, userID string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// HasProfile reports whether userID still has application access.
func (s *UserAdmin) HasProfile(ctx context.Context, userID string) bool {
	return s.requireProfile(ctx, userID) == nil
}

// OrphanAccounts lists accounts created before olderThan that have no profile.
func (s *UserAdmin) OrphanAccounts(ctx context.Context, olderThan time.Time) ([]models.Account, error) {
	var out []models.Account
	err := s.db.WithContext(ctx).
		Where("created_at < ?", olderThan).
		Where("id NOT IN (?)", s.db.Model(&models.Profile{}).Select("id")).
		Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list orphan accounts: %w", err)
	}
	return out, nil
}

// DeleteAccount removes an account, used by the orphan sweep.
func (s *UserAdmin) DeleteAccount(ctx context.Context, id string) error {
	return s.accounts.Delete(ctx, id)
}
