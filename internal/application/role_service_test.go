package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/nucmed-tracker/internal/persistence"
)

func TestRoleService_CreateRole(t *testing.T) {
	t.Parallel()

	t.Run("normalizes and persists the permission set", func(t *testing.T) {
		t.Parallel()

		repo := newRoleRepositoryStub()
		svc := NewRoleService(repo, sequenceIDs("role"), fixedNow)

		role, err := svc.CreateRole(context.Background(), CreateRoleParams{
			Principal: adminPrincipal(),
			Input: RoleInput{
				Name:        "  Manipulateur  ",
				Permissions: []string{PermissionPatientsManage, PermissionPatientsManage, " " + PermissionHotLabManage + " "},
			},
		})
		if err != nil {
			t.Fatalf("CreateRole failed: %v", err)
		}
		if role.Name != "Manipulateur" {
			t.Fatalf("expected trimmed name, got %q", role.Name)
		}
		if len(role.Permissions) != 2 {
			t.Fatalf("expected deduplicated permissions, got %#v", role.Permissions)
		}
	})

	t.Run("rejects unknown permissions", func(t *testing.T) {
		t.Parallel()

		svc := NewRoleService(newRoleRepositoryStub(), sequenceIDs("role"), fixedNow)
		_, err := svc.CreateRole(context.Background(), CreateRoleParams{
			Principal: adminPrincipal(),
			Input:     RoleInput{Name: "X", Permissions: []string{"universe.rule"}},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestRoleService_DeleteRole(t *testing.T) {
	t.Parallel()

	t.Run("maps referenced roles to a conflict", func(t *testing.T) {
		t.Parallel()

		repo := newRoleRepositoryStub()
		repo.deleteErr = persistence.ErrForeignKeyViolation
		svc := NewRoleService(repo, sequenceIDs("role"), fixedNow)

		if err := svc.DeleteRole(context.Background(), adminPrincipal(), "in-use"); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("requires the roles permission", func(t *testing.T) {
		t.Parallel()

		svc := NewRoleService(newRoleRepositoryStub(), sequenceIDs("role"), fixedNow)
		if err := svc.DeleteRole(context.Background(), Principal{UserID: "staff"}, "role-1"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

// roleRepositoryStub provides an in-memory RoleRepository for tests.
type roleRepositoryStub struct {
	roles map[string]Role

	deleteErr error
}

func newRoleRepositoryStub() *roleRepositoryStub {
	return &roleRepositoryStub{roles: make(map[string]Role)}
}

func (r *roleRepositoryStub) CreateRole(ctx context.Context, role Role) (Role, error) {
	r.roles[role.ID] = role
	return role, nil
}

func (r *roleRepositoryStub) GetRole(ctx context.Context, id string) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (r *roleRepositoryStub) UpdateRole(ctx context.Context, role Role) (Role, error) {
	if _, ok := r.roles[role.ID]; !ok {
		return Role{}, ErrNotFound
	}
	r.roles[role.ID] = role
	return role, nil
}

func (r *roleRepositoryStub) DeleteRole(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.roles[id]; !ok {
		return ErrNotFound
	}
	delete(r.roles, id)
	return nil
}

func (r *roleRepositoryStub) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}
