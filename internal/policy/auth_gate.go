// Package policy wires the permission engine to the role table and exposes
// it as HTTP middleware.
package policy

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/auth"
	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/httpx"
)

// AuthGate is the central authorization point of the application.
type AuthGate struct {
	Gate  *gate.Gate[string]
	Cache *gate.CachedResolver[string]
}

// NewAuthGate reads roles from db, caching each user's profile for cacheTTL.
func NewAuthGate(db *gorm.DB, cacheTTL time.Duration) *AuthGate {
	return NewAuthGateWith(NewDBRoleResolver(db), cacheTTL)
}

// NewAuthGateWith builds the gate over any resolver.
func NewAuthGateWith(resolver gate.ProfileResolver[string], cacheTTL time.Duration) *AuthGate {
	cached := gate.NewCachedResolver[string](resolver, cacheTTL)
	return &AuthGate{Gate: gate.New[string](cached), Cache: cached}
}

// Can checks a permission for the user of ctx.
func (ag *AuthGate) Can(ctx context.Context, action gate.Action, resourceType string) bool {
	uid, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	return ag.Gate.Can(ctx, uid, action, resourceType)
}

// Capabilities of userID. Unknown users get all flags false.
func (ag *AuthGate) Capabilities(ctx context.Context, userID string) gate.Capabilities {
	return ag.Gate.Capabilities(ctx, userID)
}

// Role returns the cached role name of userID, lecteur when unresolved.
func (ag *AuthGate) Role(ctx context.Context, userID string) gate.Role {
	p, err := ag.Cache.Resolve(ctx, userID)
	if err != nil || p == nil {
		return gate.RoleLecteur
	}
	r, err := gate.ParseRole(p.Name())
	if err != nil {
		return gate.RoleLecteur
	}
	return r
}

// Invalidate drops the cached role of userID. Call after a role change.
func (ag *AuthGate) Invalidate(userID string) {
	ag.Cache.Invalidate(userID)
}

// RequirePermission returns middleware that checks resourceType:action.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.UserIDFromContext(r.Context()); !ok {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if !ag.Can(r.Context(), action, resourceType) {
				httpx.JSONError(w, http.StatusForbidden, "access_denied", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin only lets through users whose profile holds "*:*".
func (ag *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if !ag.Capabilities(r.Context(), uid).IsAdmin {
				httpx.JSONError(w, http.StatusForbidden, "access_denied", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
