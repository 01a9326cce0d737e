package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgconn"

	"github.com/crucible-ti/crucible/internal/access"
	"github.com/crucible-ti/crucible/internal/audit"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// ErrDuplicate indicates a uniqueness conflict.
var ErrDuplicate = errors.New("rbac: duplicate")

// Store is the persistence surface the service depends on. Implemented
// by Repository; tests substitute a stub.
type Store interface {
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	RolePermissions(ctx context.Context, roleID int64) ([]string, error)
	SetRolePermissions(ctx context.Context, roleID int64, permissions []string) error
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	ListGroupGrants(ctx context.Context, userID int64) ([]GroupGrant, error)
	UpsertGroupGrant(ctx context.Context, userID int64, group string, ceiling access.Classification) error
	DeleteGroupGrant(ctx context.Context, userID int64, group string) error
}

// Service orchestrates role and group-grant administration. Role edits
// change effective permissions on the user's next request; grant edits
// additionally change the scope fingerprint, which re-keys the user's
// cache segment without touching the cache itself.
type Service struct {
	store Store
	audit *audit.Logger
}

// NewService constructs a Service.
func NewService(store Store, auditLogger *audit.Logger) *Service {
	return &Service{store: store, audit: auditLogger}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, actorID int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	role, err := s.store.CreateRole(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, mapConflict(err)
	}
	s.record(ctx, actorID, "role.create", "role", role.Name, nil)
	return role, nil
}

// DeleteRole removes a role and its assignments.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	if err := s.store.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.delete", "role", "", map[string]any{"role_id": id})
	return nil
}

// RolePermissions lists the permission ids granted by a role.
func (s *Service) RolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	return s.store.RolePermissions(ctx, roleID)
}

// SetRolePermissions replaces a role's permission grants. Unknown ids
// are rejected against the registry so typos cannot silently grant
// nothing.
func (s *Service) SetRolePermissions(ctx context.Context, actorID, roleID int64, permissions []string, registry access.PermissionSet) error {
	cleaned := make([]string, 0, len(permissions))
	for _, perm := range permissions {
		perm = strings.TrimSpace(perm)
		if perm == "" {
			continue
		}
		if len(registry) > 0 && !registry.Has(perm) {
			return errors.New("rbac: unknown permission " + perm)
		}
		cleaned = append(cleaned, perm)
	}
	if err := s.store.SetRolePermissions(ctx, roleID, cleaned); err != nil {
		return mapConflict(err)
	}
	s.record(ctx, actorID, "role.set_permissions", "role", "", map[string]any{
		"role_id":     roleID,
		"permissions": cleaned,
	})
	return nil
}

// AssignRole assigns a role to the given user.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID int64) error {
	if err := s.store.AssignRole(ctx, userID, roleID); err != nil {
		return mapConflict(err)
	}
	s.record(ctx, actorID, "role.assign", "user", "", map[string]any{"user_id": userID, "role_id": roleID})
	return nil
}

// RemoveRole removes a role from a user.
func (s *Service) RemoveRole(ctx context.Context, actorID, userID, roleID int64) error {
	if err := s.store.RemoveRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.remove", "user", "", map[string]any{"user_id": userID, "role_id": roleID})
	return nil
}

// ListGroupGrants returns a user's group grants.
func (s *Service) ListGroupGrants(ctx context.Context, userID int64) ([]GroupGrant, error) {
	return s.store.ListGroupGrants(ctx, userID)
}

// GrantGroupAccess creates or updates a grant's classification ceiling.
func (s *Service) GrantGroupAccess(ctx context.Context, actorID, userID int64, group string, ceiling access.Classification) error {
	group = strings.TrimSpace(group)
	if group == "" {
		return errors.New("rbac: group name required")
	}
	if !ceiling.Valid() {
		return errors.New("rbac: invalid classification ceiling")
	}
	if err := s.store.UpsertGroupGrant(ctx, userID, group, ceiling); err != nil {
		return mapConflict(err)
	}
	s.record(ctx, actorID, "group_access.grant", "user", "", map[string]any{
		"user_id": userID,
		"group":   group,
		"ceiling": ceiling.String(),
	})
	return nil
}

// RevokeGroupAccess removes a user's visibility into a group.
func (s *Service) RevokeGroupAccess(ctx context.Context, actorID, userID int64, group string) error {
	if err := s.store.DeleteGroupGrant(ctx, userID, group); err != nil {
		return err
	}
	s.record(ctx, actorID, "group_access.revoke", "user", "", map[string]any{
		"user_id": userID,
		"group":   group,
	})
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity, entityID string, meta map[string]any) {
	_ = s.audit.Record(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	})
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
