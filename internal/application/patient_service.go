package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/nucmed-tracker/internal/workflow"
)

// PatientListFilter narrows patient listings at the repository level. Period
// filtering happens in the service because it depends on the open entry.
type PatientListFilter struct {
	RoomID workflow.RoomID
	Status workflow.Status
}

// PatientRepository captures the persistence operations needed by the patient
// service. UpdatePatient is guarded by the update timestamp the service read
// before mutating: when another writer committed in between, the store
// returns persistence.ErrStaleRecord and the losing write surfaces as
// ErrConflict instead of silently overwriting history.
type PatientRepository interface {
	CreatePatient(ctx context.Context, patient *workflow.Patient) error
	UpdatePatient(ctx context.Context, patient *workflow.Patient, expectedUpdatedAt time.Time) error
	GetPatient(ctx context.Context, id string) (*workflow.Patient, error)
	ListPatients(ctx context.Context, filter PatientListFilter) ([]*workflow.Patient, error)
}

// PatientService orchestrates validation, authorization, and the room pathway
// for patient records.
type PatientService struct {
	patients    PatientRepository
	catalog     *workflow.Catalog
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewPatientService wires dependencies for the patient service.
func NewPatientService(patients PatientRepository, catalog *workflow.Catalog, idGenerator func() string, now func() time.Time) *PatientService {
	return NewPatientServiceWithLogger(patients, catalog, idGenerator, now, nil)
}

// NewPatientServiceWithLogger wires dependencies for the patient service with a specified logger.
func NewPatientServiceWithLogger(patients PatientRepository, catalog *workflow.Catalog, idGenerator func() string, now func() time.Time, logger *slog.Logger) *PatientService {
	if catalog == nil {
		catalog = workflow.DefaultCatalog()
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &PatientService{
		patients:    patients,
		catalog:     catalog,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *PatientService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PatientService", operation, attrs...)
}

// Rooms returns the configured pathway in order.
func (s *PatientService) Rooms() []workflow.Room {
	if s == nil {
		return nil
	}
	return s.catalog.Rooms()
}

// RegisterPatient validates input and creates a patient in the intake room.
// When the input names a requested exam the intake stage completes
// immediately and the patient lands in the appointment room.
func (s *PatientService) RegisterPatient(ctx context.Context, params RegisterPatientParams) (patient *workflow.Patient, err error) {
	if s == nil {
		err = fmt.Errorf("PatientService is nil")
		return
	}
	if s.patients == nil {
		err = fmt.Errorf("patient repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "RegisterPatient", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register patient", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"patient_id", patient.ID,
			"room_id", string(patient.CurrentRoomID),
		).InfoContext(ctx, "patient registered")
	}()

	if !params.Principal.HasPermission(PermissionPatientsManage) {
		err = ErrUnauthorized
		return
	}

	normalized := normalizePatientInput(params.Input)
	vErr := s.validatePatientInput(normalized)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var request *workflow.RequestData
	if normalized.RequestedExam != "" || normalized.ReferringPhysician != "" {
		request = &workflow.RequestData{
			RequestedExam:      normalized.RequestedExam,
			ReferringPhysician: normalized.ReferringPhysician,
		}
	}

	candidate := s.catalog.NewPatient(s.idGenerator(), normalized.FullName, normalized.BirthDate, normalized.Phone, request, s.now())
	if err = s.patients.CreatePatient(ctx, candidate); err != nil {
		err = mapRepositoryError(err)
		return
	}
	patient = candidate
	return
}

// GetPatient returns one patient record with its full history.
func (s *PatientService) GetPatient(ctx context.Context, principal Principal, patientID string) (*workflow.Patient, error) {
	if s == nil {
		return nil, fmt.Errorf("PatientService is nil")
	}
	if s.patients == nil {
		return nil, fmt.Errorf("patient repository not configured")
	}
	if !principal.HasPermission(PermissionPatientsManage) && !principal.HasPermission(PermissionReportsView) {
		return nil, ErrUnauthorized
	}

	patient, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return patient, nil
}

// ListPatients returns patients matching the filters, sorted by entry into
// their current room, oldest first. The optional period filter keeps only
// patients whose current stay began inside the window.
func (s *PatientService) ListPatients(ctx context.Context, params ListPatientsParams) ([]*workflow.Patient, error) {
	if s == nil {
		return nil, fmt.Errorf("PatientService is nil")
	}
	if s.patients == nil {
		return nil, fmt.Errorf("patient repository not configured")
	}
	if !params.Principal.HasPermission(PermissionPatientsManage) && !params.Principal.HasPermission(PermissionReportsView) {
		return nil, ErrUnauthorized
	}

	if params.RoomID != "" {
		if _, ok := s.catalog.Room(params.RoomID); !ok {
			vErr := &ValidationError{}
			vErr.add("room_id", "salle inconnue")
			return nil, vErr
		}
	}
	if params.Period != "" && !workflow.ValidPeriod(params.Period) {
		vErr := &ValidationError{}
		vErr.add("period", "période inconnue")
		return nil, vErr
	}

	patients, err := s.patients.ListPatients(ctx, PatientListFilter{RoomID: params.RoomID, Status: params.Status})
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	if params.Period != "" {
		reference := params.PeriodReference
		if reference.IsZero() {
			reference = s.now()
		}
		filtered := patients[:0]
		for _, patient := range patients {
			entry, ok := currentStay(patient)
			if !ok {
				continue
			}
			if workflow.InPeriod(entry.EntryDate, params.Period, reference) {
				filtered = append(filtered, patient)
			}
		}
		patients = filtered
	}

	sort.SliceStable(patients, func(i, j int) bool {
		a, aOK := currentStay(patients[i])
		b, bOK := currentStay(patients[j])
		if aOK != bOK {
			return aOK
		}
		if !aOK {
			return patients[i].ID < patients[j].ID
		}
		if a.EntryDate.Equal(b.EntryDate) {
			return patients[i].ID < patients[j].ID
		}
		return a.EntryDate.Before(b.EntryDate)
	})

	return patients, nil
}

// CompleteRoom records the room's form for a waiting patient and advances the
// pathway. The acting principal's role must be allowed in the room.
func (s *PatientService) CompleteRoom(ctx context.Context, params CompleteRoomParams) (patient *workflow.Patient, err error) {
	if s == nil {
		err = fmt.Errorf("PatientService is nil")
		return
	}
	if s.patients == nil {
		err = fmt.Errorf("patient repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CompleteRoom",
		"principal_id", params.Principal.UserID,
		"patient_id", params.PatientID,
		"room_id", string(params.RoomID),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"next_room_id", string(patient.CurrentRoomID),
			"status", string(patient.StatusInRoom),
		).InfoContext(ctx, "room completed")
	}()

	if !params.Principal.HasPermission(PermissionPatientsManage) {
		err = ErrUnauthorized
		return
	}

	room, ok := s.catalog.Room(params.RoomID)
	if !ok {
		err = workflow.ErrUnknownRoom
		return
	}
	if !room.AllowsRole(params.Principal.RoleID) {
		err = ErrUnauthorized
		return
	}

	var current *workflow.Patient
	current, err = s.patients.GetPatient(ctx, params.PatientID)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}

	readAt := current.UpdatedAt
	if err = s.catalog.Advance(current, params.RoomID, params.Data, s.now()); err != nil {
		return
	}

	if err = s.patients.UpdatePatient(ctx, current, readAt); err != nil {
		err = mapRepositoryError(err)
		return
	}
	patient = current
	return
}

// MovePatient transfers a patient to an arbitrary room, bypassing the
// pathway. It exists to correct mistakes and is not role-gated per room.
func (s *PatientService) MovePatient(ctx context.Context, params MovePatientParams) (patient *workflow.Patient, err error) {
	if s == nil {
		err = fmt.Errorf("PatientService is nil")
		return
	}
	if s.patients == nil {
		err = fmt.Errorf("patient repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "MovePatient",
		"principal_id", params.Principal.UserID,
		"patient_id", params.PatientID,
		"room_id", string(params.RoomID),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to move patient", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "patient moved")
	}()

	if !params.Principal.HasPermission(PermissionPatientsManage) {
		err = ErrUnauthorized
		return
	}

	var current *workflow.Patient
	current, err = s.patients.GetPatient(ctx, params.PatientID)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}

	readAt := current.UpdatedAt
	if err = s.catalog.Move(current, params.RoomID, s.now()); err != nil {
		return
	}

	if err = s.patients.UpdatePatient(ctx, current, readAt); err != nil {
		err = mapRepositoryError(err)
		return
	}
	patient = current
	return
}

// currentStay finds the history entry for the patient's current room,
// preferring the open one.
func currentStay(patient *workflow.Patient) (workflow.HistoryEntry, bool) {
	if patient == nil {
		return workflow.HistoryEntry{}, false
	}
	for i := len(patient.History) - 1; i >= 0; i-- {
		if patient.History[i].RoomID == patient.CurrentRoomID {
			return patient.History[i], true
		}
	}
	return workflow.HistoryEntry{}, false
}

func normalizePatientInput(input PatientInput) PatientInput {
	return PatientInput{
		FullName:           strings.TrimSpace(input.FullName),
		BirthDate:          input.BirthDate,
		Phone:              strings.TrimSpace(input.Phone),
		RequestedExam:      strings.TrimSpace(input.RequestedExam),
		ReferringPhysician: strings.TrimSpace(input.ReferringPhysician),
	}
}

func (s *PatientService) validatePatientInput(input PatientInput) *ValidationError {
	vErr := &ValidationError{}

	if input.FullName == "" {
		vErr.add("full_name", "le nom complet est obligatoire")
	}
	if input.BirthDate.IsZero() {
		vErr.add("birth_date", "la date de naissance est obligatoire")
	} else if input.BirthDate.After(s.now()) {
		vErr.add("birth_date", "la date de naissance est dans le futur")
	}

	return vErr
}
