package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// RoleRepository captures the persistence operations needed by the role service.
type RoleRepository interface {
	CreateRole(ctx context.Context, role Role) (Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id string) error
	ListRoles(ctx context.Context) ([]Role, error)
}

// RoleService orchestrates validation, authorization, and persistence for roles.
type RoleService struct {
	roles       RoleRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoleService wires dependencies for the role service.
func NewRoleService(roles RoleRepository, idGenerator func() string, now func() time.Time) *RoleService {
	return NewRoleServiceWithLogger(roles, idGenerator, now, nil)
}

// NewRoleServiceWithLogger wires dependencies for the role service with a specified logger.
func NewRoleServiceWithLogger(roles RoleRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoleService{roles: roles, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *RoleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoleService", operation, attrs...)
}

// CreateRole validates input and persists a new role.
func (s *RoleService) CreateRole(ctx context.Context, params CreateRoleParams) (role Role, err error) {
	if s == nil {
		err = fmt.Errorf("RoleService is nil")
		return
	}
	if s.roles == nil {
		err = fmt.Errorf("role repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRole", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create role", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("role_id", role.ID).InfoContext(ctx, "role created")
	}()

	if !params.Principal.HasPermission(PermissionRolesManage) {
		err = ErrUnauthorized
		return
	}

	normalized := normalizeRoleInput(params.Input)
	vErr := validateRoleInput(normalized)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	candidate := Role{
		ID:          s.idGenerator(),
		Name:        normalized.Name,
		Permissions: normalized.Permissions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	role, err = s.roles.CreateRole(ctx, candidate)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}
	return
}

// UpdateRole validates input and updates an existing role.
func (s *RoleService) UpdateRole(ctx context.Context, params UpdateRoleParams) (role Role, err error) {
	if s == nil {
		err = fmt.Errorf("RoleService is nil")
		return
	}
	if s.roles == nil {
		err = fmt.Errorf("role repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRole",
		"principal_id", params.Principal.UserID,
		"role_id", params.RoleID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update role", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "role updated")
	}()

	if !params.Principal.HasPermission(PermissionRolesManage) {
		err = ErrUnauthorized
		return
	}

	var existing Role
	existing, err = s.roles.GetRole(ctx, params.RoleID)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}

	normalized := normalizeRoleInput(params.Input)
	vErr := validateRoleInput(normalized)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = normalized.Name
	updated.Permissions = normalized.Permissions
	updated.UpdatedAt = s.now()

	role, err = s.roles.UpdateRole(ctx, updated)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}
	return
}

// DeleteRole removes a role. Roles still assigned to users are kept and the
// call fails with ErrConflict.
func (s *RoleService) DeleteRole(ctx context.Context, principal Principal, roleID string) error {
	if s == nil {
		return fmt.Errorf("RoleService is nil")
	}
	if s.roles == nil {
		return fmt.Errorf("role repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRole",
		"principal_id", principal.UserID,
		"role_id", roleID,
	)

	if !principal.HasPermission(PermissionRolesManage) {
		logger.ErrorContext(ctx, "failed to delete role", "error", ErrUnauthorized, "error_kind", ErrorKind(ErrUnauthorized))
		return ErrUnauthorized
	}

	if err := s.roles.DeleteRole(ctx, roleID); err != nil {
		err = mapRepositoryError(err)
		logger.ErrorContext(ctx, "failed to delete role", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "role deleted")
	return nil
}

// GetRole returns one role.
func (s *RoleService) GetRole(ctx context.Context, principal Principal, roleID string) (Role, error) {
	if s == nil {
		return Role{}, fmt.Errorf("RoleService is nil")
	}
	if s.roles == nil {
		return Role{}, fmt.Errorf("role repository not configured")
	}
	if !principal.HasPermission(PermissionRolesManage) {
		return Role{}, ErrUnauthorized
	}

	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, mapRepositoryError(err)
	}
	return role, nil
}

// ListRoles returns all roles sorted by name.
func (s *RoleService) ListRoles(ctx context.Context, principal Principal) ([]Role, error) {
	if s == nil {
		return nil, fmt.Errorf("RoleService is nil")
	}
	if !principal.HasPermission(PermissionRolesManage) {
		return nil, ErrUnauthorized
	}
	if s.roles == nil {
		return nil, nil
	}

	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	out := make([]Role, len(roles))
	copy(out, roles)

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Name, out[j].Name) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})

	return out, nil
}

func normalizeRoleInput(input RoleInput) RoleInput {
	permissions := make([]string, 0, len(input.Permissions))
	seen := make(map[string]struct{}, len(input.Permissions))
	for _, permission := range input.Permissions {
		trimmed := strings.TrimSpace(permission)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		permissions = append(permissions, trimmed)
	}
	sort.Strings(permissions)

	return RoleInput{
		Name:        strings.TrimSpace(input.Name),
		Permissions: permissions,
	}
}

func validateRoleInput(input RoleInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add("name", "le nom du rôle est obligatoire")
	}

	known := make(map[string]struct{}, len(AllPermissions))
	for _, permission := range AllPermissions {
		known[permission] = struct{}{}
	}
	for _, permission := range input.Permissions {
		if _, ok := known[permission]; !ok {
			vErr.add("permissions", fmt.Sprintf("permission inconnue : %s", permission))
			break
		}
	}

	return vErr
}
