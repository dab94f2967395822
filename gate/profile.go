package gate

import (
	"context"
	"slices"
	"sync"
)

// Profile is a named set of permissions.
type Profile interface {
	Name() string
	HasPermission(permission Permission) bool
	Permissions() []Permission
}

// ProfileResolver maps a user to a profile. (nil, nil) means the user has
// no role yet.
type ProfileResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Profile, error)
}

// ResolverFunc adapts a plain function to ProfileResolver.
type ResolverFunc[U any] func(ctx context.Context, user U) (Profile, error)

func (f ResolverFunc[U]) Resolve(ctx context.Context, user U) (Profile, error) {
	return f(ctx, user)
}

// PermissionSet is an in-memory profile. Permissions are kept sorted and
// deduplicated.
type PermissionSet struct {
	name  string
	perms []Permission
}

func NewPermissionSet(name string, perms ...Permission) *PermissionSet {
	sorted := slices.Clone(perms)
	slices.Sort(sorted)
	return &PermissionSet{name: name, perms: slices.Compact(sorted)}
}

func (s *PermissionSet) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

func (s *PermissionSet) Permissions() []Permission {
	if s == nil {
		return nil
	}
	return slices.Clone(s.perms)
}

// HasPermission honours wildcard grants such as "lead:*" and "*:*".
func (s *PermissionSet) HasPermission(requested Permission) bool {
	if s == nil {
		return false
	}
	return slices.ContainsFunc(s.perms, func(p Permission) bool { return p.Matches(requested) })
}

// RoleMap resolves users from an in-memory role table.
type RoleMap[U comparable] struct {
	mu    sync.RWMutex
	roles map[U]Role
}

func NewRoleMap[U comparable]() *RoleMap[U] {
	return &RoleMap[U]{roles: make(map[U]Role)}
}

// Assign sets the role of user, replacing any previous one.
func (m *RoleMap[U]) Assign(user U, r Role) {
	m.mu.Lock()
	m.roles[user] = r
	m.mu.Unlock()
}

func (m *RoleMap[U]) Resolve(_ context.Context, user U) (Profile, error) {
	m.mu.RLock()
	r, ok := m.roles[user]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return RoleProfile(r), nil
}
