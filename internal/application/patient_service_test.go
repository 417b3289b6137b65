package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/nucmed-tracker/internal/persistence"
	"github.com/example/nucmed-tracker/internal/workflow"
)

var serviceTestNow = time.Date(2025, time.June, 11, 10, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return serviceTestNow }

func sequenceIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func clinicalPrincipal(roleID string) Principal {
	return Principal{
		UserID:      "staff-1",
		RoleID:      roleID,
		Permissions: []string{PermissionPatientsManage, PermissionReportsView},
	}
}

func TestPatientService_RegisterPatient(t *testing.T) {
	t.Parallel()

	t.Run("creates a waiting patient in the intake room", func(t *testing.T) {
		t.Parallel()

		repo := newPatientRepositoryStub()
		svc := NewPatientService(repo, workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)

		patient, err := svc.RegisterPatient(context.Background(), RegisterPatientParams{
			Principal: clinicalPrincipal(workflow.RoleSecretary),
			Input: PatientInput{
				FullName:  "Marie Lefevre",
				BirthDate: time.Date(1960, time.March, 2, 0, 0, 0, 0, time.UTC),
			},
		})
		if err != nil {
			t.Fatalf("RegisterPatient failed: %v", err)
		}

		if patient.CurrentRoomID != workflow.RoomRequest {
			t.Fatalf("expected patient in intake room, got %s", patient.CurrentRoomID)
		}
		if len(patient.History) != 1 || !patient.History[0].Open() {
			t.Fatalf("expected a single open history entry, got %#v", patient.History)
		}
		if _, ok := repo.patients[patient.ID]; !ok {
			t.Fatal("expected patient to be persisted")
		}
	})

	t.Run("completes intake immediately when an exam is requested", func(t *testing.T) {
		t.Parallel()

		repo := newPatientRepositoryStub()
		svc := NewPatientService(repo, workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)

		patient, err := svc.RegisterPatient(context.Background(), RegisterPatientParams{
			Principal: clinicalPrincipal(workflow.RoleSecretary),
			Input: PatientInput{
				FullName:      "Paul Martin",
				BirthDate:     time.Date(1975, time.July, 14, 0, 0, 0, 0, time.UTC),
				RequestedExam: "Scintigraphie osseuse",
			},
		})
		if err != nil {
			t.Fatalf("RegisterPatient failed: %v", err)
		}

		if patient.CurrentRoomID != workflow.RoomAppointment {
			t.Fatalf("expected patient in appointment room, got %s", patient.CurrentRoomID)
		}
		if len(patient.History) != 2 {
			t.Fatalf("expected two history entries, got %d", len(patient.History))
		}
		if patient.History[0].Open() {
			t.Fatal("expected the intake entry to be closed")
		}
		if patient.RoomData.Request == nil || patient.RoomData.Request.RequestedExam != "Scintigraphie osseuse" {
			t.Fatalf("expected the request payload to be kept, got %#v", patient.RoomData.Request)
		}
	})

	t.Run("validates required fields", func(t *testing.T) {
		t.Parallel()

		svc := NewPatientService(newPatientRepositoryStub(), workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)

		_, err := svc.RegisterPatient(context.Background(), RegisterPatientParams{
			Principal: clinicalPrincipal(workflow.RoleSecretary),
			Input:     PatientInput{FullName: "  "},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["full_name"]; !ok {
			t.Fatalf("expected full_name error, got %#v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["birth_date"]; !ok {
			t.Fatalf("expected birth_date error, got %#v", vErr.FieldErrors)
		}
	})

	t.Run("rejects principals without the patients permission", func(t *testing.T) {
		t.Parallel()

		svc := NewPatientService(newPatientRepositoryStub(), workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)

		_, err := svc.RegisterPatient(context.Background(), RegisterPatientParams{
			Principal: Principal{UserID: "staff-1", RoleID: workflow.RoleSecretary},
			Input:     PatientInput{FullName: "X", BirthDate: serviceTestNow.AddDate(-30, 0, 0)},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestPatientService_CompleteRoom(t *testing.T) {
	t.Parallel()

	register := func(t *testing.T, svc *PatientService, exam string) *workflow.Patient {
		t.Helper()
		patient, err := svc.RegisterPatient(context.Background(), RegisterPatientParams{
			Principal: clinicalPrincipal(workflow.RoleSecretary),
			Input: PatientInput{
				FullName:      "Anne Dubois",
				BirthDate:     time.Date(1980, time.January, 15, 0, 0, 0, 0, time.UTC),
				RequestedExam: exam,
			},
		})
		if err != nil {
			t.Fatalf("RegisterPatient failed: %v", err)
		}
		return patient
	}

	t.Run("advances the patient to the next room", func(t *testing.T) {
		t.Parallel()

		repo := newPatientRepositoryStub()
		svc := NewPatientService(repo, workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)
		patient := register(t, svc, "Scintigraphie osseuse")

		scheduled := serviceTestNow.Add(48 * time.Hour)
		updated, err := svc.CompleteRoom(context.Background(), CompleteRoomParams{
			Principal: clinicalPrincipal(workflow.RoleSecretary),
			PatientID: patient.ID,
			RoomID:    workflow.RoomAppointment,
			Data:      workflow.RoomData{Appointment: &workflow.AppointmentData{ScheduledFor: &scheduled}},
		})
		if err != nil {
			t.Fatalf("CompleteRoom failed: %v", err)
		}

		if updated.CurrentRoomID != workflow.RoomConsultation {
			t.Fatalf("expected consultation room, got %s", updated.CurrentRoomID)
		}
		if updated.StatusInRoom != workflow.StatusWaiting {
			t.Fatalf("expected waiting status, got %s", updated.StatusInRoom)
		}
		if updated.RoomData.Appointment == nil || updated.RoomData.Appointment.ScheduledFor == nil {
			t.Fatal("expected the appointment payload to be kept")
		}

		persisted := repo.patients[patient.ID]
		if persisted.CurrentRoomID != workflow.RoomConsultation {
			t.Fatalf("expected the move to be persisted, got %s", persisted.CurrentRoomID)
		}
	})

	t.Run("rejects completion from the wrong room", func(t *testing.T) {
		t.Parallel()

		repo := newPatientRepositoryStub()
		svc := NewPatientService(repo, workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)
		patient := register(t, svc, "Scintigraphie osseuse")

		_, err := svc.CompleteRoom(context.Background(), CompleteRoomParams{
			Principal: clinicalPrincipal(workflow.RolePhysician),
			PatientID: patient.ID,
			RoomID:    workflow.RoomConsultation,
		})
		if !errors.Is(err, workflow.ErrWrongRoom) {
			t.Fatalf("expected ErrWrongRoom, got %v", err)
		}
	})

	t.Run("enforces the room's role gate", func(t *testing.T) {
		t.Parallel()

		repo := newPatientRepositoryStub()
		svc := NewPatientService(repo, workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)
		patient := register(t, svc, "Scintigraphie osseuse")

		// Appointments are handled by secretaries, not technologists.
		_, err := svc.CompleteRoom(context.Background(), CompleteRoomParams{
			Principal: clinicalPrincipal(workflow.RoleTechnologist),
			PatientID: patient.ID,
			RoomID:    workflow.RoomAppointment,
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects unknown rooms", func(t *testing.T) {
		t.Parallel()

		svc := NewPatientService(newPatientRepositoryStub(), workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)
		_, err := svc.CompleteRoom(context.Background(), CompleteRoomParams{
			Principal: clinicalPrincipal(workflow.RoleAdmin),
			PatientID: "missing",
			RoomID:    workflow.RoomID("CAFETERIA"),
		})
		if !errors.Is(err, workflow.ErrUnknownRoom) {
			t.Fatalf("expected ErrUnknownRoom, got %v", err)
		}
	})

	t.Run("surfaces a conflict when another writer got there first", func(t *testing.T) {
		t.Parallel()

		repo := newPatientRepositoryStub()
		svc := NewPatientService(repo, workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)
		patient := register(t, svc, "Scintigraphie osseuse")

		// The read hands out a snapshot that predates the stored record,
		// as if a concurrent completion had committed in between.
		repo.staleReads = 1
		scheduled := serviceTestNow.Add(48 * time.Hour)
		_, err := svc.CompleteRoom(context.Background(), CompleteRoomParams{
			Principal: clinicalPrincipal(workflow.RoleSecretary),
			PatientID: patient.ID,
			RoomID:    workflow.RoomAppointment,
			Data:      workflow.RoomData{Appointment: &workflow.AppointmentData{ScheduledFor: &scheduled}},
		})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		persisted := repo.patients[patient.ID]
		if persisted.CurrentRoomID != workflow.RoomAppointment {
			t.Fatalf("expected the losing write to leave the record untouched, got %s", persisted.CurrentRoomID)
		}
	})

	t.Run("returns not found for unknown patients", func(t *testing.T) {
		t.Parallel()

		svc := NewPatientService(newPatientRepositoryStub(), workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)
		_, err := svc.CompleteRoom(context.Background(), CompleteRoomParams{
			Principal: clinicalPrincipal(workflow.RoleSecretary),
			PatientID: "missing",
			RoomID:    workflow.RoomRequest,
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPatientService_MovePatient(t *testing.T) {
	t.Parallel()

	repo := newPatientRepositoryStub()
	svc := NewPatientService(repo, workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)

	patient, err := svc.RegisterPatient(context.Background(), RegisterPatientParams{
		Principal: clinicalPrincipal(workflow.RoleSecretary),
		Input: PatientInput{
			FullName:  "Luc Moreau",
			BirthDate: time.Date(1990, time.May, 5, 0, 0, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("RegisterPatient failed: %v", err)
	}

	moved, err := svc.MovePatient(context.Background(), MovePatientParams{
		Principal: clinicalPrincipal(workflow.RoleSecretary),
		PatientID: patient.ID,
		RoomID:    workflow.RoomExamination,
	})
	if err != nil {
		t.Fatalf("MovePatient failed: %v", err)
	}
	if moved.CurrentRoomID != workflow.RoomExamination {
		t.Fatalf("expected examination room, got %s", moved.CurrentRoomID)
	}
	if moved.StatusInRoom != workflow.StatusWaiting {
		t.Fatalf("expected waiting status, got %s", moved.StatusInRoom)
	}
}

func TestPatientService_ListPatients(t *testing.T) {
	t.Parallel()

	seed := func(repo *patientRepositoryStub, id string, roomID workflow.RoomID, entered time.Time) {
		patient := &workflow.Patient{
			ID:            id,
			FullName:      "Patient " + id,
			CurrentRoomID: roomID,
			StatusInRoom:  workflow.StatusWaiting,
			History: []workflow.HistoryEntry{
				{RoomID: roomID, EntryDate: entered},
			},
			CreatedAt: entered,
			UpdatedAt: entered,
		}
		repo.patients[id] = patient
	}

	t.Run("filters by room and sorts by entry date", func(t *testing.T) {
		t.Parallel()

		repo := newPatientRepositoryStub()
		seed(repo, "a", workflow.RoomAppointment, serviceTestNow.Add(-2*time.Hour))
		seed(repo, "b", workflow.RoomAppointment, serviceTestNow.Add(-4*time.Hour))
		seed(repo, "c", workflow.RoomInjection, serviceTestNow.Add(-1*time.Hour))

		svc := NewPatientService(repo, workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)
		patients, err := svc.ListPatients(context.Background(), ListPatientsParams{
			Principal: clinicalPrincipal(workflow.RoleSecretary),
			RoomID:    workflow.RoomAppointment,
		})
		if err != nil {
			t.Fatalf("ListPatients failed: %v", err)
		}
		if len(patients) != 2 || patients[0].ID != "b" || patients[1].ID != "a" {
			t.Fatalf("unexpected listing: %#v", patients)
		}
	})

	t.Run("applies the period filter on the current stay", func(t *testing.T) {
		t.Parallel()

		repo := newPatientRepositoryStub()
		seed(repo, "today", workflow.RoomAppointment, serviceTestNow.Add(-time.Hour))
		seed(repo, "lastweek", workflow.RoomAppointment, serviceTestNow.AddDate(0, 0, -10))

		svc := NewPatientService(repo, workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)
		patients, err := svc.ListPatients(context.Background(), ListPatientsParams{
			Principal:       clinicalPrincipal(workflow.RoleSecretary),
			Period:          workflow.PeriodToday,
			PeriodReference: serviceTestNow,
		})
		if err != nil {
			t.Fatalf("ListPatients failed: %v", err)
		}
		if len(patients) != 1 || patients[0].ID != "today" {
			t.Fatalf("unexpected listing: %#v", patients)
		}
	})

	t.Run("rejects unknown periods", func(t *testing.T) {
		t.Parallel()

		svc := NewPatientService(newPatientRepositoryStub(), workflow.DefaultCatalog(), sequenceIDs("pat"), fixedNow)
		_, err := svc.ListPatients(context.Background(), ListPatientsParams{
			Principal: clinicalPrincipal(workflow.RoleSecretary),
			Period:    workflow.Period("fortnight"),
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

// patientRepositoryStub provides an in-memory PatientRepository for tests.
// Updates are guarded by the caller's last-read timestamp like the real
// stores; staleReads makes the next reads hand out an outdated snapshot to
// simulate a writer that committed in between.
type patientRepositoryStub struct {
	patients map[string]*workflow.Patient

	createErr  error
	updateErr  error
	getErr     error
	listErr    error
	staleReads int
}

func newPatientRepositoryStub() *patientRepositoryStub {
	return &patientRepositoryStub{patients: make(map[string]*workflow.Patient)}
}

func (r *patientRepositoryStub) CreatePatient(ctx context.Context, patient *workflow.Patient) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.patients[patient.ID] = patient.Clone()
	return nil
}

func (r *patientRepositoryStub) UpdatePatient(ctx context.Context, patient *workflow.Patient, expectedUpdatedAt time.Time) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	existing, ok := r.patients[patient.ID]
	if !ok {
		return ErrNotFound
	}
	if !existing.UpdatedAt.Equal(expectedUpdatedAt) {
		return persistence.ErrStaleRecord
	}
	r.patients[patient.ID] = patient.Clone()
	return nil
}

func (r *patientRepositoryStub) GetPatient(ctx context.Context, id string) (*workflow.Patient, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	patient, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := patient.Clone()
	if r.staleReads > 0 {
		r.staleReads--
		clone.UpdatedAt = clone.UpdatedAt.Add(-time.Minute)
	}
	return clone, nil
}

func (r *patientRepositoryStub) ListPatients(ctx context.Context, filter PatientListFilter) ([]*workflow.Patient, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*workflow.Patient
	for _, patient := range r.patients {
		if filter.RoomID != "" && patient.CurrentRoomID != filter.RoomID {
			continue
		}
		if filter.Status != "" && patient.StatusInRoom != filter.Status {
			continue
		}
		out = append(out, patient.Clone())
	}
	return out, nil
}
