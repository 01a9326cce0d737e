package rbac

import (
	"time"

	"github.com/crucible-ti/crucible/internal/access"
)

// Role groups permission identifiers for assignment to users.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GroupGrant gives a user visibility into a provenance group up to a
// classification ceiling. Grants are the sole input of the scope
// fingerprint: creating, changing or revoking one re-keys the user's
// cache segment on their next request with no further signal.
type GroupGrant struct {
	UserID    int64
	Group     string
	Ceiling   access.Classification
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRole links a user to a role.
type UserRole struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}
