// Package gate decides what a signed-in user may do.
//
// Users resolve to a Profile (a named permission set, one per role) through a
// ProfileResolver. The Gate checks "resource:action" permissions against that
// profile, and Capabilities condenses a profile into the three flags the
// back-office pages consume.
package gate

import "context"

// Gate is the central authorization checkpoint.
// U is the user/subject type; its zero value means "not signed in".
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
}

// New creates a Gate backed by resolver.
func New[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver}
}

// Authorize returns ErrUnauthorized unless user's profile grants
// resourceType:action. Resolver failures also deny.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil || profile == nil {
		return ErrUnauthorized
	}
	if !profile.HasPermission(NewPermission(resourceType, action)) {
		return ErrUnauthorized
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string) bool {
	return g.Authorize(ctx, user, action, resourceType) == nil
}

// Capabilities resolves user and derives the page-level flags.
// Anonymous users and resolver failures get the reader defaults.
func (g *Gate[U]) Capabilities(ctx context.Context, user U) Capabilities {
	var zero U
	if user == zero {
		return Capabilities{}
	}
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil {
		return Capabilities{}
	}
	return CapabilitiesOf(profile)
}
