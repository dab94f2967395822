package gate

import (
	"fmt"
	"strings"
)

// Role is the single application role held by a user.
type Role string

const (
	RoleLecteur    Role = "lecteur"
	RoleSecretaire Role = "secretaire"
	RoleAdmin      Role = "admin"
)

// Roles lists every role, lowest first.
var Roles = []Role{RoleLecteur, RoleSecretaire, RoleAdmin}

// ParseRole accepts a stored role code. Empty input is the reader role,
// matching a user without any role row.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleLecteur, nil
	case RoleLecteur, RoleSecretaire, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r.Rank() > 0 }

// Rank orders roles: lecteur < secretaire < admin. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleLecteur:
		return 1
	case RoleSecretaire:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// Label is the display name of the role.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrateur"
	case RoleSecretaire:
		return "Secrétaire"
	case RoleLecteur:
		return "Lecteur"
	}
	return string(r)
}

var roleProfiles = map[Role]*PermissionSet{
	RoleLecteur:    NewPermissionSet(string(RoleLecteur), readPermissions()...),
	RoleSecretaire: NewPermissionSet(string(RoleSecretaire), append(readPermissions(), writePermissions()...)...),
	RoleAdmin:      NewPermissionSet(string(RoleAdmin), PermissionSuperAdmin),
}

func readPermissions() []Permission {
	var out []Permission
	for _, res := range businessResources {
		out = append(out, Grant(res, ActionList, ActionView)...)
	}
	return out
}

func writePermissions() []Permission {
	var out []Permission
	for _, res := range businessResources {
		out = append(out, Grant(res, ActionCreate, ActionUpdate)...)
	}
	return out
}

// RoleProfile returns the permission profile of a role, or nil for an
// unknown role.
func RoleProfile(r Role) Profile {
	if p, ok := roleProfiles[r]; ok {
		return p
	}
	return nil
}

// Capabilities are the flags the list pages and the users page gate on.
type Capabilities struct {
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
	IsAdmin   bool `json:"isAdmin"`
}

// CapabilitiesOf derives the flags from a profile. A nil profile yields the
// most restrictive flags.
func CapabilitiesOf(p Profile) Capabilities {
	if p == nil {
		return Capabilities{}
	}
	return Capabilities{
		CanEdit:   p.HasPermission(NewPermission(ResourceLead, ActionUpdate)),
		CanDelete: p.HasPermission(NewPermission(ResourceLead, ActionDelete)),
		IsAdmin:   p.HasPermission(NewPermission(ResourceUser, ActionUpdate)),
	}
}

// CapabilitiesFor is CapabilitiesOf(RoleProfile(r)).
func CapabilitiesFor(r Role) Capabilities {
	return CapabilitiesOf(RoleProfile(r))
}
