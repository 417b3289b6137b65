package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/nucmed-tracker/internal/persistence"
)

func adminPrincipal() Principal {
	return Principal{
		UserID:      "admin-1",
		RoleID:      "admin",
		Permissions: AllPermissions,
	}
}

func TestUserService_CreateUser(t *testing.T) {
	t.Parallel()

	roles := &roleStoreStub{roles: map[string]Role{
		"secretary": {ID: "secretary", Name: "Secrétaire"},
	}}

	t.Run("hashes the password and persists the account", func(t *testing.T) {
		t.Parallel()

		repo := newUserRepositoryStub()
		svc := NewUserService(repo, roles, sequenceIDs("usr"), fixedNow)

		user, err := svc.CreateUser(context.Background(), CreateUserParams{
			Principal: adminPrincipal(),
			Input: UserInput{
				Email:       "Claire.Petit@example.com",
				DisplayName: "Claire Petit",
				RoleID:      "secretary",
				Password:    "s3cret-pass",
			},
		})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if user.Email != "claire.petit@example.com" {
			t.Fatalf("expected normalized email, got %s", user.Email)
		}

		hash := repo.hashes[user.ID]
		if hash == "" || hash == "s3cret-pass" {
			t.Fatalf("expected a derived hash, got %q", hash)
		}
		if err := VerifyPassword(hash, "s3cret-pass"); err != nil {
			t.Fatalf("expected the stored hash to verify: %v", err)
		}
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		t.Parallel()

		svc := NewUserService(newUserRepositoryStub(), roles, sequenceIDs("usr"), fixedNow)
		_, err := svc.CreateUser(context.Background(), CreateUserParams{
			Principal: adminPrincipal(),
			Input: UserInput{
				Email:       "x@example.com",
				DisplayName: "X",
				RoleID:      "ghost",
				Password:    "s3cret-pass",
			},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("maps duplicate emails to the sentinel", func(t *testing.T) {
		t.Parallel()

		repo := newUserRepositoryStub()
		repo.createErr = persistence.ErrDuplicate
		svc := NewUserService(repo, roles, sequenceIDs("usr"), fixedNow)

		_, err := svc.CreateUser(context.Background(), CreateUserParams{
			Principal: adminPrincipal(),
			Input: UserInput{
				Email:       "dup@example.com",
				DisplayName: "Dup",
				RoleID:      "secretary",
				Password:    "s3cret-pass",
			},
		})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("requires the users permission", func(t *testing.T) {
		t.Parallel()

		svc := NewUserService(newUserRepositoryStub(), roles, sequenceIDs("usr"), fixedNow)
		_, err := svc.CreateUser(context.Background(), CreateUserParams{
			Principal: Principal{UserID: "staff"},
			Input:     UserInput{Email: "x@example.com", DisplayName: "X", RoleID: "secretary", Password: "s3cret-pass"},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	t.Parallel()

	t.Run("refuses self deletion", func(t *testing.T) {
		t.Parallel()

		svc := NewUserService(newUserRepositoryStub(), nil, sequenceIDs("usr"), fixedNow)
		err := svc.DeleteUser(context.Background(), adminPrincipal(), "admin-1")

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("maps unknown accounts to not found", func(t *testing.T) {
		t.Parallel()

		svc := NewUserService(newUserRepositoryStub(), nil, sequenceIDs("usr"), fixedNow)
		if err := svc.DeleteUser(context.Background(), adminPrincipal(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUserService_UpdateUser(t *testing.T) {
	t.Parallel()

	roles := &roleStoreStub{roles: map[string]Role{
		"secretary": {ID: "secretary"},
		"physician": {ID: "physician"},
	}}

	repo := newUserRepositoryStub()
	svc := NewUserService(repo, roles, sequenceIDs("usr"), fixedNow)

	created, err := svc.CreateUser(context.Background(), CreateUserParams{
		Principal: adminPrincipal(),
		Input: UserInput{
			Email:       "user@example.com",
			DisplayName: "User",
			RoleID:      "secretary",
			Password:    "s3cret-pass",
		},
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	originalHash := repo.hashes[created.ID]

	updated, err := svc.UpdateUser(context.Background(), UpdateUserParams{
		Principal: adminPrincipal(),
		UserID:    created.ID,
		Input: UserInput{
			Email:       "user@example.com",
			DisplayName: "User Renamed",
			RoleID:      "physician",
		},
	})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if updated.DisplayName != "User Renamed" || updated.RoleID != "physician" {
		t.Fatalf("unexpected update: %#v", updated)
	}
	if repo.hashes[created.ID] != originalHash {
		t.Fatal("expected the password hash to be kept when no password is supplied")
	}
}

// userRepositoryStub provides an in-memory UserRepository for tests.
type userRepositoryStub struct {
	users  map[string]User
	hashes map[string]string

	createErr error
}

func newUserRepositoryStub() *userRepositoryStub {
	return &userRepositoryStub{
		users:  make(map[string]User),
		hashes: make(map[string]string),
	}
}

func (r *userRepositoryStub) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	if r.createErr != nil {
		return User{}, r.createErr
	}
	r.users[user.ID] = user
	r.hashes[user.ID] = passwordHash
	return user, nil
}

func (r *userRepositoryStub) GetUser(ctx context.Context, id string) (User, error) {
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *userRepositoryStub) UpdateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return User{}, ErrNotFound
	}
	r.users[user.ID] = user
	if passwordHash != "" {
		r.hashes[user.ID] = passwordHash
	}
	return user, nil
}

func (r *userRepositoryStub) DeleteUser(ctx context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	delete(r.hashes, id)
	return nil
}

func (r *userRepositoryStub) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, user := range r.users {
		out = append(out, user)
	}
	return out, nil
}
