package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crucible-ti/crucible/internal/access"
	"github.com/crucible-ti/crucible/internal/platform/db"
)

// Repository provides PostgreSQL persistence for roles, role
// permissions and group grants. It also implements access.Store, so
// scope resolution and administration read the same tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UserByID implements access.Store.
func (r *Repository) UserByID(ctx context.Context, id int64) (access.User, error) {
	var user access.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, is_active, is_superuser FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Username, &user.IsActive, &user.IsSuperuser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return access.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return access.User{}, fmt.Errorf("rbac: user by id: %w", err)
	}
	return user, nil
}

// EffectivePermissions implements access.Store: the deduplicated union
// of permission ids across all of the user's roles.
func (r *Repository) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT rp.permission
		 FROM role_permissions rp
		 JOIN user_roles ur ON ur.role_id = rp.role_id
		 WHERE ur.user_id = $1
		 ORDER BY rp.permission`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: effective permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var perm string
		if err := rows.Scan(&perm); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// GroupCeilings implements access.Store: one ceiling per granted group.
func (r *Repository) GroupCeilings(ctx context.Context, userID int64) (map[string]access.Classification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT group_name, ceiling FROM group_grants WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: group ceilings: %w", err)
	}
	defer rows.Close()

	ceilings := make(map[string]access.Classification)
	for rows.Next() {
		var group string
		var ceiling int
		if err := rows.Scan(&group, &ceiling); err != nil {
			return nil, err
		}
		ceilings[group] = access.Classification(ceiling)
	}
	return ceilings, rows.Err()
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a role.
func (r *Repository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 RETURNING id, name, description, created_at, updated_at`, name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

// DeleteRole removes a role and its assignments.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RolePermissions returns the permission ids granted by a role.
func (r *Repository) RolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT permission FROM role_permissions WHERE role_id = $1 ORDER BY permission`, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: role permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var perm string
		if err := rows.Scan(&perm); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// SetRolePermissions replaces a role's permission grants atomically.
func (r *Repository) SetRolePermissions(ctx context.Context, roleID int64, permissions []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, perm := range permissions {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_permissions (role_id, permission) VALUES ($1, $2)`, roleID, perm); err != nil {
				return err
			}
		}
		return nil
	})
}

// AssignRole links a role to a user.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id, created_at) VALUES ($1, $2, NOW())`, userID, roleID)
	if err != nil {
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	return nil
}

// RemoveRole unlinks a role from a user.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("rbac: remove role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListGroupGrants returns all grants for a user.
func (r *Repository) ListGroupGrants(ctx context.Context, userID int64) ([]GroupGrant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, group_name, ceiling, created_at, updated_at
		 FROM group_grants WHERE user_id = $1 ORDER BY group_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list group grants: %w", err)
	}
	defer rows.Close()

	var grants []GroupGrant
	for rows.Next() {
		var grant GroupGrant
		var ceiling int
		if err := rows.Scan(&grant.UserID, &grant.Group, &ceiling, &grant.CreatedAt, &grant.UpdatedAt); err != nil {
			return nil, err
		}
		grant.Ceiling = access.Classification(ceiling)
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

// UpsertGroupGrant creates or updates a grant's ceiling.
func (r *Repository) UpsertGroupGrant(ctx context.Context, userID int64, group string, ceiling access.Classification) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO group_grants (user_id, group_name, ceiling, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 ON CONFLICT (user_id, group_name) DO UPDATE SET ceiling = EXCLUDED.ceiling, updated_at = NOW()`,
		userID, group, int(ceiling))
	if err != nil {
		return fmt.Errorf("rbac: upsert group grant: %w", err)
	}
	return nil
}

// DeleteGroupGrant revokes a user's access to a group entirely.
func (r *Repository) DeleteGroupGrant(ctx context.Context, userID int64, group string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM group_grants WHERE user_id = $1 AND group_name = $2`, userID, group)
	if err != nil {
		return fmt.Errorf("rbac: delete group grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
