package gate

import "errors"

// Sentinel errors returned by Gate.Authorize and ParseRole.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnknownRole  = errors.New("unknown role")
)
