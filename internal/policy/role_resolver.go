package policy

import (
	"context"

	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/internal/models"
)

// DBRoleResolver maps an account id to the profile of its role, read from
// user_roles. A user with a profile but no role row is a lecteur. An account
// without profile resolves to no profile at all and is denied everything.
type DBRoleResolver struct {
	DB *gorm.DB
}

func NewDBRoleResolver(db *gorm.DB) *DBRoleResolver {
	return &DBRoleResolver{DB: db}
}

// Role returns the stored role of userID.
func (r *DBRoleResolver) Role(ctx context.Context, userID string) (gate.Role, error) {
	var row models.UserRole
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&row).Error; err != nil {
		return "", err
	}
	if row.ID == "" {
		return gate.RoleLecteur, nil
	}
	return gate.ParseRole(string(row.Role))
}

func (r *DBRoleResolver) Resolve(ctx context.Context, userID string) (gate.Profile, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	role, err := r.Role(ctx, userID)
	if err != nil {
		return nil, err
	}
	return gate.RoleProfile(role), nil
}
