package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/nucmed-tracker/internal/persistence"
)

// RoleRepository implements persistence.RoleRepository over SQLite.
type RoleRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
}

// NewRoleRepository creates a new SQLite role repository.
func NewRoleRepository(pool *ConnectionPool) *RoleRepository {
	return &RoleRepository{pool: pool, helper: NewQueryHelper(pool)}
}

// CreateRole inserts a new role.
func (r *RoleRepository) CreateRole(ctx context.Context, role persistence.Role) error {
	if role.ID == "" || role.Name == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO roles (id, name, permissions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		role.ID,
		role.Name,
		encodePermissions(role.Permissions),
		encodeTime(role.CreatedAt),
		encodeTime(role.UpdatedAt),
	)
	return mapError(err)
}

// UpdateRole updates an existing role.
func (r *RoleRepository) UpdateRole(ctx context.Context, role persistence.Role) error {
	if role.ID == "" || role.Name == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE roles
		SET name = ?, permissions = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		role.Name,
		encodePermissions(role.Permissions),
		encodeTime(role.UpdatedAt),
		role.ID,
	)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetRole retrieves a role by ID.
func (r *RoleRepository) GetRole(ctx context.Context, id string) (persistence.Role, error) {
	if id == "" {
		return persistence.Role{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx,
		`SELECT id, name, permissions, created_at, updated_at FROM roles WHERE id = ?`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Role{}, persistence.ErrNotFound
		}
		return persistence.Role{}, err
	}
	return role, nil
}

// ListRoles returns all roles ordered by name.
func (r *RoleRepository) ListRoles(ctx context.Context) ([]persistence.Role, error) {
	rows, err := r.helper.Query(ctx,
		`SELECT id, name, permissions, created_at, updated_at FROM roles ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var roles []persistence.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return roles, nil
}

// DeleteRole removes a role. The foreign key from users keeps referenced
// roles in place; the driver error surfaces as ErrForeignKeyViolation.
func (r *RoleRepository) DeleteRole(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, `DELETE FROM roles WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanRole(scanner rowScanner) (persistence.Role, error) {
	var role persistence.Role
	var permissions, createdAt, updatedAt string

	if err := scanner.Scan(&role.ID, &role.Name, &permissions, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Role{}, err
		}
		return persistence.Role{}, mapError(err)
	}

	role.Permissions = decodePermissions(permissions)

	var err error
	if role.CreatedAt, err = decodeTime(createdAt); err != nil {
		return persistence.Role{}, err
	}
	if role.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return persistence.Role{}, err
	}
	return role, nil
}

func encodePermissions(permissions []string) string {
	return strings.Join(permissions, ",")
}

func decodePermissions(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}
