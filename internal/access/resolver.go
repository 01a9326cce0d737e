package access

import (
	"context"
	"fmt"
	"log/slog"
)

// Store provides the persisted inputs of scope resolution.
type Store interface {
	// UserByID loads a user. Implementations return an error wrapping
	// ErrUnauthorized for unknown users.
	UserByID(ctx context.Context, id int64) (User, error)
	// EffectivePermissions returns the union of permission ids granted
	// by all of the user's roles.
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
	// GroupCeilings returns the per-group classification ceilings
	// granted to the user. Groups without a grant are omitted.
	GroupCeilings(ctx context.Context, userID int64) (map[string]Classification, error)
}

// Resolver builds a Scope from a user's role assignments and group
// grants. Resolution runs exactly once per request; the resulting Scope
// is reused for every check so a single consistent view is guaranteed
// even if assignments change mid-request.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve loads the user and computes its access scope. Superusers
// bypass both the permission union and the group resolver. Lookup
// failures surface as ErrScopeResolution and the caller must treat the
// scope as empty, never as allow-all.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (*Scope, error) {
	rc, err := r.ResolveContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rc.Scope, nil
}

// ResolveContext resolves the full request context for a user: the user
// record plus its access scope.
func (r *Resolver) ResolveContext(ctx context.Context, userID int64) (*RequestContext, error) {
	user, err := r.store.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user %d: %v", ErrScopeResolution, userID, err)
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	scope, err := r.scopeFor(ctx, user)
	if err != nil {
		return nil, err
	}
	return &RequestContext{User: user, Scope: scope}, nil
}

// Ceilings are per-(user, group) only. If a global per-role ceiling is
// ever introduced it must be intersected here, before the fingerprint
// is computed.
func (r *Resolver) scopeFor(ctx context.Context, user User) (*Scope, error) {
	if user.IsSuperuser {
		return &Scope{UserID: user.ID, Superuser: true}, nil
	}

	perms, err := r.store.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: permissions for user %d: %v", ErrScopeResolution, user.ID, err)
	}
	ceilings, err := r.store.GroupCeilings(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: group ceilings for user %d: %v", ErrScopeResolution, user.ID, err)
	}

	scope := &Scope{
		UserID:        user.ID,
		Permissions:   NewPermissionSet(perms...),
		GroupCeilings: ceilings,
	}
	if r.logger != nil {
		r.logger.Debug("scope resolved",
			slog.Int64("user_id", user.ID),
			slog.Int("permissions", len(scope.Permissions)),
			slog.Int("groups", len(scope.GroupCeilings)),
			slog.String("fingerprint", scope.Fingerprint()))
	}
	return scope, nil
}
