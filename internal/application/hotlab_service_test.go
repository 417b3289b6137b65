package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/nucmed-tracker/internal/persistence"
)

func hotlabPrincipal() Principal {
	return Principal{
		UserID:      "staff-1",
		RoleID:      "technologist",
		Permissions: []string{PermissionHotLabManage, PermissionReportsView},
	}
}

func freshLot(t *testing.T, svc *HotLabService) TracerLot {
	t.Helper()
	lot, err := svc.CreateLot(context.Background(), CreateLotParams{
		Principal: hotlabPrincipal(),
		Input: LotInput{
			Tracer:             "99mTc-HDP",
			InitialActivityMBq: 2000,
			CalibratedAt:       serviceTestNow.Add(-time.Hour),
			ExpiresAt:          serviceTestNow.Add(6 * time.Hour),
		},
	})
	if err != nil {
		t.Fatalf("CreateLot failed: %v", err)
	}
	return lot
}

func TestHotLabService_CreateLot(t *testing.T) {
	t.Parallel()

	t.Run("starts with the full calibrated activity", func(t *testing.T) {
		t.Parallel()

		svc := NewHotLabService(newHotLabRepositoryStub(), nil, sequenceIDs("lot"), fixedNow)
		lot := freshLot(t, svc)

		if lot.RemainingActivityMBq != lot.InitialActivityMBq {
			t.Fatalf("expected remaining activity %f, got %f", lot.InitialActivityMBq, lot.RemainingActivityMBq)
		}
	})

	t.Run("rejects expiry before calibration", func(t *testing.T) {
		t.Parallel()

		svc := NewHotLabService(newHotLabRepositoryStub(), nil, sequenceIDs("lot"), fixedNow)
		_, err := svc.CreateLot(context.Background(), CreateLotParams{
			Principal: hotlabPrincipal(),
			Input: LotInput{
				Tracer:             "18F-FDG",
				InitialActivityMBq: 500,
				CalibratedAt:       serviceTestNow,
				ExpiresAt:          serviceTestNow.Add(-time.Hour),
			},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestHotLabService_PrepareDose(t *testing.T) {
	t.Parallel()

	t.Run("decrements the lot's remaining activity", func(t *testing.T) {
		t.Parallel()

		repo := newHotLabRepositoryStub()
		svc := NewHotLabService(repo, &patientFinderStub{known: map[string]bool{"pat-1": true}}, sequenceIDs("lot"), fixedNow)
		lot := freshLot(t, svc)

		dose, err := svc.PrepareDose(context.Background(), PrepareDoseParams{
			Principal:   hotlabPrincipal(),
			LotID:       lot.ID,
			PatientID:   "pat-1",
			ActivityMBq: 700,
		})
		if err != nil {
			t.Fatalf("PrepareDose failed: %v", err)
		}
		if dose.ActivityMBq != 700 || dose.AdministeredAt != nil {
			t.Fatalf("unexpected dose: %#v", dose)
		}

		stored, err := svc.GetLot(context.Background(), hotlabPrincipal(), lot.ID)
		if err != nil {
			t.Fatalf("GetLot failed: %v", err)
		}
		if stored.RemainingActivityMBq != 1300 {
			t.Fatalf("expected remaining 1300, got %f", stored.RemainingActivityMBq)
		}
	})

	t.Run("rejects withdrawals beyond the remaining activity", func(t *testing.T) {
		t.Parallel()

		repo := newHotLabRepositoryStub()
		svc := NewHotLabService(repo, nil, sequenceIDs("lot"), fixedNow)
		lot := freshLot(t, svc)

		_, err := svc.PrepareDose(context.Background(), PrepareDoseParams{
			Principal:   hotlabPrincipal(),
			LotID:       lot.ID,
			PatientID:   "pat-1",
			ActivityMBq: 2500,
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["activity_mbq"]; !ok {
			t.Fatalf("expected activity error, got %#v", vErr.FieldErrors)
		}
	})

	t.Run("debits against the stored activity, not the read", func(t *testing.T) {
		t.Parallel()

		repo := newHotLabRepositoryStub()
		svc := NewHotLabService(repo, nil, sequenceIDs("lot"), fixedNow)
		lot := freshLot(t, svc)

		withdraw := func() (DoseRecord, error) {
			return svc.PrepareDose(context.Background(), PrepareDoseParams{
				Principal:   hotlabPrincipal(),
				LotID:       lot.ID,
				PatientID:   "pat-1",
				ActivityMBq: 1500,
			})
		}

		if _, err := withdraw(); err != nil {
			t.Fatalf("first withdrawal failed: %v", err)
		}

		// A second writer observing the pre-withdrawal activity of 2000 must
		// still be rejected: only 500 MBq remain in the store.
		repo.onGetLot = func(lot TracerLot) TracerLot {
			lot.RemainingActivityMBq = 2000
			return lot
		}
		_, err := withdraw()
		repo.onGetLot = nil

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["activity_mbq"]; !ok {
			t.Fatalf("expected activity error, got %#v", vErr.FieldErrors)
		}

		stored, err := svc.GetLot(context.Background(), hotlabPrincipal(), lot.ID)
		if err != nil {
			t.Fatalf("GetLot failed: %v", err)
		}
		if stored.RemainingActivityMBq != 500 {
			t.Fatalf("expected remaining 500, got %f", stored.RemainingActivityMBq)
		}

		doses, err := svc.ListDosesForLot(context.Background(), hotlabPrincipal(), lot.ID)
		if err != nil {
			t.Fatalf("ListDosesForLot failed: %v", err)
		}
		if len(doses) != 1 {
			t.Fatalf("expected the rejected withdrawal to leave no dose, got %d", len(doses))
		}
	})

	t.Run("rejects expired lots", func(t *testing.T) {
		t.Parallel()

		repo := newHotLabRepositoryStub()
		svc := NewHotLabService(repo, nil, sequenceIDs("lot"), fixedNow)
		lot, err := svc.CreateLot(context.Background(), CreateLotParams{
			Principal: hotlabPrincipal(),
			Input: LotInput{
				Tracer:             "99mTc-MAA",
				InitialActivityMBq: 900,
				CalibratedAt:       serviceTestNow.Add(-24 * time.Hour),
				ExpiresAt:          serviceTestNow.Add(-time.Hour),
			},
		})
		if err != nil {
			t.Fatalf("CreateLot failed: %v", err)
		}

		_, err = svc.PrepareDose(context.Background(), PrepareDoseParams{
			Principal:   hotlabPrincipal(),
			LotID:       lot.ID,
			PatientID:   "pat-1",
			ActivityMBq: 100,
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["lot_id"]; !ok {
			t.Fatalf("expected lot error, got %#v", vErr.FieldErrors)
		}
	})

	t.Run("rejects unknown patients", func(t *testing.T) {
		t.Parallel()

		repo := newHotLabRepositoryStub()
		svc := NewHotLabService(repo, &patientFinderStub{}, sequenceIDs("lot"), fixedNow)
		lot := freshLot(t, svc)

		_, err := svc.PrepareDose(context.Background(), PrepareDoseParams{
			Principal:   hotlabPrincipal(),
			LotID:       lot.ID,
			PatientID:   "ghost",
			ActivityMBq: 100,
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("requires the hot lab permission", func(t *testing.T) {
		t.Parallel()

		svc := NewHotLabService(newHotLabRepositoryStub(), nil, sequenceIDs("lot"), fixedNow)
		_, err := svc.PrepareDose(context.Background(), PrepareDoseParams{
			Principal:   Principal{UserID: "staff-1"},
			LotID:       "lot-1",
			PatientID:   "pat-1",
			ActivityMBq: 100,
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestHotLabService_AdministerDose(t *testing.T) {
	t.Parallel()

	repo := newHotLabRepositoryStub()
	svc := NewHotLabService(repo, nil, sequenceIDs("lot"), fixedNow)
	lot := freshLot(t, svc)

	dose, err := svc.PrepareDose(context.Background(), PrepareDoseParams{
		Principal:   hotlabPrincipal(),
		LotID:       lot.ID,
		PatientID:   "pat-1",
		ActivityMBq: 300,
	})
	if err != nil {
		t.Fatalf("PrepareDose failed: %v", err)
	}

	if err := svc.AdministerDose(context.Background(), hotlabPrincipal(), dose.ID); err != nil {
		t.Fatalf("AdministerDose failed: %v", err)
	}

	doses, err := svc.ListDosesForLot(context.Background(), hotlabPrincipal(), lot.ID)
	if err != nil {
		t.Fatalf("ListDosesForLot failed: %v", err)
	}
	if len(doses) != 1 || doses[0].AdministeredAt == nil {
		t.Fatalf("expected one administered dose, got %#v", doses)
	}

	if err := svc.AdministerDose(context.Background(), hotlabPrincipal(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// hotLabRepositoryStub provides an in-memory HotLabRepository for tests. The
// remaining-activity guard sits in AppendDose like the real stores; onGetLot
// lets a test serve a doctored snapshot to simulate a writer racing the read.
type hotLabRepositoryStub struct {
	lots     map[string]TracerLot
	doses    map[string]DoseRecord
	onGetLot func(TracerLot) TracerLot
}

func newHotLabRepositoryStub() *hotLabRepositoryStub {
	return &hotLabRepositoryStub{
		lots:  make(map[string]TracerLot),
		doses: make(map[string]DoseRecord),
	}
}

func (r *hotLabRepositoryStub) CreateLot(ctx context.Context, lot TracerLot) (TracerLot, error) {
	r.lots[lot.ID] = lot
	return lot, nil
}

func (r *hotLabRepositoryStub) GetLot(ctx context.Context, id string) (TracerLot, error) {
	lot, ok := r.lots[id]
	if !ok {
		return TracerLot{}, ErrNotFound
	}
	if r.onGetLot != nil {
		return r.onGetLot(lot), nil
	}
	return lot, nil
}

func (r *hotLabRepositoryStub) ListLots(ctx context.Context) ([]TracerLot, error) {
	out := make([]TracerLot, 0, len(r.lots))
	for _, lot := range r.lots {
		out = append(out, lot)
	}
	return out, nil
}

func (r *hotLabRepositoryStub) AppendDose(ctx context.Context, dose DoseRecord) error {
	lot, ok := r.lots[dose.LotID]
	if !ok {
		return ErrNotFound
	}
	remaining := lot.RemainingActivityMBq - dose.ActivityMBq
	if remaining < 0 {
		return persistence.ErrInsufficientBalance
	}
	lot.RemainingActivityMBq = remaining
	r.lots[dose.LotID] = lot
	r.doses[dose.ID] = dose
	return nil
}

func (r *hotLabRepositoryStub) ListDosesForLot(ctx context.Context, lotID string) ([]DoseRecord, error) {
	var out []DoseRecord
	for _, dose := range r.doses {
		if dose.LotID == lotID {
			out = append(out, dose)
		}
	}
	return out, nil
}

func (r *hotLabRepositoryStub) ListDosesForPatient(ctx context.Context, patientID string) ([]DoseRecord, error) {
	var out []DoseRecord
	for _, dose := range r.doses {
		if dose.PatientID == patientID {
			out = append(out, dose)
		}
	}
	return out, nil
}

func (r *hotLabRepositoryStub) MarkDoseAdministered(ctx context.Context, doseID string, at time.Time) error {
	dose, ok := r.doses[doseID]
	if !ok {
		return ErrNotFound
	}
	administered := at
	dose.AdministeredAt = &administered
	r.doses[doseID] = dose
	return nil
}

// patientFinderStub implements PatientFinder for tests.
type patientFinderStub struct {
	known map[string]bool
	err   error
}

func (p *patientFinderStub) PatientExists(ctx context.Context, id string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	return p.known[id], nil
}
