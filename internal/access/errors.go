package access

import "errors"

// Terminal error categories for access decisions. They are never retried
// and are surfaced to callers without internal detail. ErrForbidden is
// deliberately used for both "not visible" and "does not exist" so that
// responses do not leak existence.
var (
	ErrUnauthorized    = errors.New("access: unauthorized")
	ErrForbidden       = errors.New("access: forbidden")
	ErrScopeResolution = errors.New("access: scope resolution failed")
)
