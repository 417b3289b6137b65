package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/nucmed-tracker/internal/application"
	"github.com/example/nucmed-tracker/internal/persistence"
	"github.com/example/nucmed-tracker/internal/workflow"
)

type capturingUserRepo struct {
	created application.User
	hash    string
}

func (c *capturingUserRepo) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	c.created = user
	c.hash = passwordHash
	return user, nil
}

func (c *capturingUserRepo) GetUser(ctx context.Context, id string) (application.User, error) {
	return application.User{}, application.ErrNotFound
}

func (c *capturingUserRepo) UpdateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	return user, nil
}

func (c *capturingUserRepo) DeleteUser(ctx context.Context, id string) error {
	return nil
}

func (c *capturingUserRepo) ListUsers(ctx context.Context) ([]application.User, error) {
	return nil, nil
}

type staticRoleStore struct{}

func (staticRoleStore) GetRole(ctx context.Context, id string) (application.Role, error) {
	return application.Role{ID: id, Name: id, Permissions: RolePermissions(id)}, nil
}

func TestServiceFactoryNewUserService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingUserRepo{}

	svc := factory.NewUserService(UserServiceDeps{Users: repo, Roles: staticRoleStore{}})
	principal := NewUserFixture(WithUserRole(workflow.RoleAdmin)).Principal()
	input := application.UserInput{
		Email:       "s.bernard@nucmed.example",
		DisplayName: "Sophie Bernard",
		RoleID:      workflow.RoleSecretary,
		Password:    "mot-de-passe-long",
	}

	user, err := svc.CreateUser(context.Background(), application.CreateUserParams{Principal: principal, Input: input})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	if user.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", user.ID)
	}
	if repo.created.ID != user.ID {
		t.Fatalf("repository received unexpected ID: %q", repo.created.ID)
	}
	if repo.hash == "" || repo.hash == input.Password {
		t.Fatalf("expected a hashed password, got %q", repo.hash)
	}
	if !user.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), user.CreatedAt)
	}
}

func TestServiceFactoryNewPatientService(t *testing.T) {
	factory := NewServiceFactory(WithIDGenerator(NewIDGenerator("patient")))
	repo := newMemoryPatientRepo()

	svc := factory.NewPatientService(PatientServiceDeps{Patients: repo})
	principal := NewUserFixture(WithUserRole(workflow.RoleSecretary)).Principal()

	patient, err := svc.RegisterPatient(context.Background(), application.RegisterPatientParams{
		Principal: principal,
		Input: application.PatientInput{
			FullName:      "Marie Dupont",
			BirthDate:     ReferenceTime().AddDate(-60, 0, 0),
			RequestedExam: "Scintigraphie osseuse",
		},
	})
	if err != nil {
		t.Fatalf("RegisterPatient returned error: %v", err)
	}

	if patient.ID != "patient-1" {
		t.Fatalf("expected generated ID patient-1, got %q", patient.ID)
	}
	if patient.CurrentRoomID != workflow.RoomRequest {
		t.Fatalf("expected intake room, got %s", patient.CurrentRoomID)
	}
	if !patient.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), patient.CreatedAt)
	}
}

type memoryPatientRepo struct {
	patients map[string]*workflow.Patient
}

func newMemoryPatientRepo() *memoryPatientRepo {
	return &memoryPatientRepo{patients: make(map[string]*workflow.Patient)}
}

func (r *memoryPatientRepo) CreatePatient(ctx context.Context, patient *workflow.Patient) error {
	r.patients[patient.ID] = patient.Clone()
	return nil
}

func (r *memoryPatientRepo) UpdatePatient(ctx context.Context, patient *workflow.Patient, expectedUpdatedAt time.Time) error {
	existing, ok := r.patients[patient.ID]
	if !ok {
		return application.ErrNotFound
	}
	if !existing.UpdatedAt.Equal(expectedUpdatedAt) {
		return persistence.ErrStaleRecord
	}
	r.patients[patient.ID] = patient.Clone()
	return nil
}

func (r *memoryPatientRepo) GetPatient(ctx context.Context, id string) (*workflow.Patient, error) {
	patient, ok := r.patients[id]
	if !ok {
		return nil, application.ErrNotFound
	}
	return patient.Clone(), nil
}

func (r *memoryPatientRepo) ListPatients(ctx context.Context, filter application.PatientListFilter) ([]*workflow.Patient, error) {
	out := make([]*workflow.Patient, 0, len(r.patients))
	for _, patient := range r.patients {
		out = append(out, patient.Clone())
	}
	return out, nil
}
