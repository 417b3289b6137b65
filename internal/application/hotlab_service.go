package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/nucmed-tracker/internal/persistence"
)

// HotLabRepository captures the persistence operations for tracer lots and
// dose records. AppendDose debits the dose's activity from the lot atomically
// with the dose write; a debit past the remaining activity fails with
// persistence.ErrInsufficientBalance.
type HotLabRepository interface {
	CreateLot(ctx context.Context, lot TracerLot) (TracerLot, error)
	GetLot(ctx context.Context, id string) (TracerLot, error)
	ListLots(ctx context.Context) ([]TracerLot, error)
	AppendDose(ctx context.Context, dose DoseRecord) error
	ListDosesForLot(ctx context.Context, lotID string) ([]DoseRecord, error)
	ListDosesForPatient(ctx context.Context, patientID string) ([]DoseRecord, error)
	MarkDoseAdministered(ctx context.Context, doseID string, at time.Time) error
}

// PatientFinder checks patient existence before a dose is attributed.
type PatientFinder interface {
	PatientExists(ctx context.Context, id string) (bool, error)
}

// HotLabService orchestrates the radiopharmacy: tracer lots, dose
// preparation and administration.
type HotLabService struct {
	lots        HotLabRepository
	patients    PatientFinder
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewHotLabService wires dependencies for the hot lab service.
func NewHotLabService(lots HotLabRepository, patients PatientFinder, idGenerator func() string, now func() time.Time) *HotLabService {
	return NewHotLabServiceWithLogger(lots, patients, idGenerator, now, nil)
}

// NewHotLabServiceWithLogger wires dependencies for the hot lab service with a specified logger.
func NewHotLabServiceWithLogger(lots HotLabRepository, patients PatientFinder, idGenerator func() string, now func() time.Time, logger *slog.Logger) *HotLabService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &HotLabService{
		lots:        lots,
		patients:    patients,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *HotLabService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "HotLabService", operation, attrs...)
}

// CreateLot validates input and registers a tracer lot with its full
// calibrated activity remaining.
func (s *HotLabService) CreateLot(ctx context.Context, params CreateLotParams) (lot TracerLot, err error) {
	if s == nil {
		err = fmt.Errorf("HotLabService is nil")
		return
	}
	if s.lots == nil {
		err = fmt.Errorf("hot lab repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateLot", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create lot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("lot_id", lot.ID).InfoContext(ctx, "lot created")
	}()

	if !params.Principal.HasPermission(PermissionHotLabManage) {
		err = ErrUnauthorized
		return
	}

	input := params.Input
	vErr := &ValidationError{}
	tracer := strings.TrimSpace(input.Tracer)
	if tracer == "" {
		vErr.add("tracer", "le traceur est obligatoire")
	}
	if input.InitialActivityMBq <= 0 {
		vErr.add("initial_activity_mbq", "l'activité initiale doit être strictement positive")
	}
	if input.CalibratedAt.IsZero() {
		vErr.add("calibrated_at", "l'heure de calibration est obligatoire")
	}
	if input.ExpiresAt.IsZero() {
		vErr.add("expires_at", "la péremption est obligatoire")
	} else if !input.CalibratedAt.IsZero() && !input.ExpiresAt.After(input.CalibratedAt) {
		vErr.add("expires_at", "la péremption doit être postérieure à la calibration")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	candidate := TracerLot{
		ID:                   s.idGenerator(),
		Tracer:               tracer,
		InitialActivityMBq:   input.InitialActivityMBq,
		RemainingActivityMBq: input.InitialActivityMBq,
		CalibratedAt:         input.CalibratedAt,
		ExpiresAt:            input.ExpiresAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	lot, err = s.lots.CreateLot(ctx, candidate)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}
	return
}

// GetLot returns one tracer lot.
func (s *HotLabService) GetLot(ctx context.Context, principal Principal, lotID string) (TracerLot, error) {
	if s == nil {
		return TracerLot{}, fmt.Errorf("HotLabService is nil")
	}
	if s.lots == nil {
		return TracerLot{}, fmt.Errorf("hot lab repository not configured")
	}
	if !principal.HasPermission(PermissionHotLabManage) && !principal.HasPermission(PermissionReportsView) {
		return TracerLot{}, ErrUnauthorized
	}

	lot, err := s.lots.GetLot(ctx, lotID)
	if err != nil {
		return TracerLot{}, mapRepositoryError(err)
	}
	return lot, nil
}

// ListLots returns all tracer lots, newest calibration first.
func (s *HotLabService) ListLots(ctx context.Context, principal Principal) ([]TracerLot, error) {
	if s == nil {
		return nil, fmt.Errorf("HotLabService is nil")
	}
	if s.lots == nil {
		return nil, fmt.Errorf("hot lab repository not configured")
	}
	if !principal.HasPermission(PermissionHotLabManage) && !principal.HasPermission(PermissionReportsView) {
		return nil, ErrUnauthorized
	}

	lots, err := s.lots.ListLots(ctx)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return lots, nil
}

// PrepareDose withdraws a dose from a lot for a patient. Expired lots and
// withdrawals beyond the remaining activity are rejected.
func (s *HotLabService) PrepareDose(ctx context.Context, params PrepareDoseParams) (dose DoseRecord, err error) {
	if s == nil {
		err = fmt.Errorf("HotLabService is nil")
		return
	}
	if s.lots == nil {
		err = fmt.Errorf("hot lab repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "PrepareDose",
		"principal_id", params.Principal.UserID,
		"lot_id", params.LotID,
		"patient_id", params.PatientID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to prepare dose", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("dose_id", dose.ID).InfoContext(ctx, "dose prepared")
	}()

	if !params.Principal.HasPermission(PermissionHotLabManage) {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	if params.ActivityMBq <= 0 {
		vErr.add("activity_mbq", "l'activité doit être strictement positive")
	}
	if strings.TrimSpace(params.PatientID) == "" {
		vErr.add("patient_id", "le patient est obligatoire")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if s.patients != nil {
		var exists bool
		exists, err = s.patients.PatientExists(ctx, params.PatientID)
		if err != nil {
			err = mapRepositoryError(err)
			return
		}
		if !exists {
			vErr := &ValidationError{}
			vErr.add("patient_id", "le patient demandé n'existe pas")
			err = vErr
			return
		}
	}

	var lot TracerLot
	lot, err = s.lots.GetLot(ctx, params.LotID)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}

	now := s.now()
	if !lot.ExpiresAt.After(now) {
		vErr := &ValidationError{}
		vErr.add("lot_id", "le lot est périmé")
		err = vErr
		return
	}

	candidate := DoseRecord{
		ID:          s.idGenerator(),
		LotID:       lot.ID,
		PatientID:   params.PatientID,
		ActivityMBq: params.ActivityMBq,
		PreparedAt:  now,
	}

	// The remaining-activity check belongs to the store's transaction, not
	// to the snapshot read above, so concurrent withdrawals cannot both
	// pass against the same remaining value.
	if err = s.lots.AppendDose(ctx, candidate); err != nil {
		if errors.Is(err, persistence.ErrInsufficientBalance) {
			vErr := &ValidationError{}
			vErr.add("activity_mbq", "activité restante insuffisante dans le lot")
			err = vErr
			return
		}
		err = mapRepositoryError(err)
		return
	}
	dose = candidate
	return
}

// AdministerDose stamps the administration time on a prepared dose.
func (s *HotLabService) AdministerDose(ctx context.Context, principal Principal, doseID string) error {
	if s == nil {
		return fmt.Errorf("HotLabService is nil")
	}
	if s.lots == nil {
		return fmt.Errorf("hot lab repository not configured")
	}

	logger := s.loggerWith(ctx, "AdministerDose",
		"principal_id", principal.UserID,
		"dose_id", doseID,
	)

	if !principal.HasPermission(PermissionHotLabManage) {
		logger.ErrorContext(ctx, "failed to administer dose", "error", ErrUnauthorized, "error_kind", ErrorKind(ErrUnauthorized))
		return ErrUnauthorized
	}

	if err := s.lots.MarkDoseAdministered(ctx, doseID, s.now()); err != nil {
		err = mapRepositoryError(err)
		logger.ErrorContext(ctx, "failed to administer dose", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "dose administered")
	return nil
}

// ListDosesForLot returns the doses withdrawn from one lot.
func (s *HotLabService) ListDosesForLot(ctx context.Context, principal Principal, lotID string) ([]DoseRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("HotLabService is nil")
	}
	if s.lots == nil {
		return nil, fmt.Errorf("hot lab repository not configured")
	}
	if !principal.HasPermission(PermissionHotLabManage) && !principal.HasPermission(PermissionReportsView) {
		return nil, ErrUnauthorized
	}

	doses, err := s.lots.ListDosesForLot(ctx, lotID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return doses, nil
}

// ListDosesForPatient returns the doses prepared for one patient.
func (s *HotLabService) ListDosesForPatient(ctx context.Context, principal Principal, patientID string) ([]DoseRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("HotLabService is nil")
	}
	if s.lots == nil {
		return nil, fmt.Errorf("hot lab repository not configured")
	}
	if !principal.HasPermission(PermissionHotLabManage) && !principal.HasPermission(PermissionReportsView) {
		return nil, ErrUnauthorized
	}

	doses, err := s.lots.ListDosesForPatient(ctx, patientID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return doses, nil
}
