package testfixtures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/nucmed-tracker/internal/persistence"
	"github.com/example/nucmed-tracker/internal/workflow"
)

// DemoPassword is the shared password of every seeded demo account.
const DemoPassword = "nucmed-demo"

// SeedStores groups the repositories the demo seeder writes to.
type SeedStores struct {
	Roles    persistence.RoleRepository
	Users    persistence.UserRepository
	Patients persistence.PatientRepository
	Assets   persistence.AssetRepository
	Stock    persistence.StockRepository
	HotLab   persistence.HotLabRepository
}

// SeedDemo populates the stores with a small working dataset: the four
// canonical roles, one account per role, patients spread along the pathway,
// an equipment register, a consumable and a tracer lot. Records already
// present are left untouched, so seeding is safe to run on every start.
func SeedDemo(ctx context.Context, stores SeedStores, hash func(password string) (string, error), now func() time.Time) error {
	if hash == nil {
		return fmt.Errorf("seed requires a password hasher")
	}
	if now == nil {
		now = time.Now
	}
	at := now().UTC()

	if err := seedRoles(ctx, stores.Roles, at); err != nil {
		return err
	}
	if err := seedUsers(ctx, stores.Users, hash, at); err != nil {
		return err
	}
	if err := seedPatients(ctx, stores.Patients, at); err != nil {
		return err
	}
	if err := seedInventory(ctx, stores.Assets, stores.Stock, at); err != nil {
		return err
	}
	return seedHotLab(ctx, stores.HotLab, at)
}

func seedRoles(ctx context.Context, roles persistence.RoleRepository, at time.Time) error {
	if roles == nil {
		return nil
	}
	for _, role := range DefaultRoles(at) {
		_, err := roles.GetRole(ctx, role.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("failed to look up role %s: %w", role.ID, err)
		}
		if err := roles.CreateRole(ctx, role); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.ID, err)
		}
	}
	return nil
}

func seedUsers(ctx context.Context, users persistence.UserRepository, hash func(string) (string, error), at time.Time) error {
	if users == nil {
		return nil
	}
	accounts := []struct {
		id          string
		email       string
		displayName string
		roleID      string
	}{
		{"demo-admin", "admin@nucmed.example", "Administrateur", workflow.RoleAdmin},
		{"demo-physician", "c.moreau@nucmed.example", "Dr Claire Moreau", workflow.RolePhysician},
		{"demo-technologist", "j.petit@nucmed.example", "Julien Petit", workflow.RoleTechnologist},
		{"demo-secretary", "s.bernard@nucmed.example", "Sophie Bernard", workflow.RoleSecretary},
	}
	for _, account := range accounts {
		_, err := users.GetUserByEmail(ctx, account.email)
		if err == nil {
			continue
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("failed to look up user %s: %w", account.email, err)
		}
		passwordHash, err := hash(DemoPassword)
		if err != nil {
			return fmt.Errorf("failed to hash demo password: %w", err)
		}
		user := persistence.User{
			ID:           account.id,
			Email:        account.email,
			DisplayName:  account.displayName,
			PasswordHash: passwordHash,
			RoleID:       account.roleID,
			CreatedAt:    at,
			UpdatedAt:    at,
		}
		if err := users.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", account.email, err)
		}
	}
	return nil
}

func seedPatients(ctx context.Context, patients persistence.PatientRepository, at time.Time) error {
	if patients == nil {
		return nil
	}
	for _, patient := range demoPatients(at) {
		_, err := patients.GetPatient(ctx, patient.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("failed to look up patient %s: %w", patient.ID, err)
		}
		if err := patients.CreatePatient(ctx, patient); err != nil {
			return fmt.Errorf("failed to seed patient %s: %w", patient.ID, err)
		}
	}
	return nil
}

// demoPatients builds three records at different stages: a fresh request, an
// injection in progress and an archived record from the day before.
func demoPatients(at time.Time) []persistence.Patient {
	closedEntry := func(roomID workflow.RoomID, entry, exit time.Time, message string) workflow.HistoryEntry {
		return workflow.HistoryEntry{
			RoomID:        roomID,
			EntryDate:     entry,
			ExitDate:      &exit,
			StatusMessage: message,
		}
	}

	intake := NewPatientFixture(
		WithPatientID("demo-patient-1"),
		WithPatientName("Marie Dupont"),
		WithPatientBirthDate(time.Date(1958, time.March, 21, 0, 0, 0, 0, time.UTC)),
		WithPatientPhone("0601020304"),
		WithPatientHistory(workflow.HistoryEntry{RoomID: workflow.RoomRequest, EntryDate: at}),
		WithPatientRoomData(workflow.RoomData{
			Request: &workflow.RequestData{
				RequestedExam:      "Scintigraphie osseuse",
				ReferringPhysician: "Dr Lambert",
			},
		}),
		WithPatientTimestamps(at, at),
	)

	scheduled := at.Add(-2 * time.Hour)
	injection := NewPatientFixture(
		WithPatientID("demo-patient-2"),
		WithPatientName("Paul Leroy"),
		WithPatientBirthDate(time.Date(1949, time.November, 3, 0, 0, 0, 0, time.UTC)),
		WithPatientPhone("0605060708"),
		WithPatientRoom(workflow.RoomInjection, workflow.StatusWaiting),
		WithPatientHistory(
			closedEntry(workflow.RoomRequest, at.Add(-26*time.Hour), at.Add(-25*time.Hour), "Demande créée"),
			closedEntry(workflow.RoomAppointment, at.Add(-25*time.Hour), at.Add(-3*time.Hour), "Rendez-vous planifié"),
			closedEntry(workflow.RoomConsultation, at.Add(-3*time.Hour), at.Add(-30*time.Minute), "Consultation effectuée"),
			workflow.HistoryEntry{RoomID: workflow.RoomInjection, EntryDate: at.Add(-30 * time.Minute)},
		),
		WithPatientRoomData(workflow.RoomData{
			Request: &workflow.RequestData{
				RequestedExam:      "Scintigraphie myocardique",
				ReferringPhysician: "Dr Garnier",
			},
			Appointment: &workflow.AppointmentData{ScheduledFor: &scheduled},
			Consultation: &workflow.ConsultationData{
				ClinicalSummary: "Douleurs thoraciques à l'effort",
			},
		}),
		WithPatientTimestamps(at.Add(-26*time.Hour), at.Add(-30*time.Minute)),
	)

	archived := NewPatientFixture(
		WithPatientID("demo-patient-3"),
		WithPatientName("Jeanne Caron"),
		WithPatientBirthDate(time.Date(1972, time.July, 14, 0, 0, 0, 0, time.UTC)),
		WithPatientPhone("0611121314"),
		WithPatientRoom(workflow.RoomArchive, workflow.StatusSeen),
		WithPatientHistory(
			closedEntry(workflow.RoomRequest, at.Add(-50*time.Hour), at.Add(-49*time.Hour), "Demande créée"),
			closedEntry(workflow.RoomAppointment, at.Add(-49*time.Hour), at.Add(-28*time.Hour), "Rendez-vous planifié"),
			closedEntry(workflow.RoomConsultation, at.Add(-28*time.Hour), at.Add(-27*time.Hour), "Consultation effectuée"),
			closedEntry(workflow.RoomInjection, at.Add(-27*time.Hour), at.Add(-26*time.Hour), "Injection réalisée"),
			closedEntry(workflow.RoomExamination, at.Add(-26*time.Hour), at.Add(-25*time.Hour), "Examen réalisé"),
			closedEntry(workflow.RoomReport, at.Add(-25*time.Hour), at.Add(-24*time.Hour), "Compte rendu rédigé"),
			closedEntry(workflow.RoomRetrieval, at.Add(-24*time.Hour), at.Add(-23*time.Hour), "Résultats remis au patient"),
			workflow.HistoryEntry{RoomID: workflow.RoomArchive, EntryDate: at.Add(-23 * time.Hour), StatusMessage: "Dossier archivé"},
		),
		WithPatientRoomData(workflow.RoomData{
			Request: &workflow.RequestData{
				RequestedExam:      "Scintigraphie thyroïdienne",
				ReferringPhysician: "Dr Lambert",
			},
			Report:  &workflow.ReportData{Conclusion: "Fixation homogène, pas de nodule."},
			Archive: &workflow.ArchiveData{Reason: "Parcours terminé"},
		}),
		WithPatientTimestamps(at.Add(-50*time.Hour), at.Add(-23*time.Hour)),
	)

	return []persistence.Patient{
		intake.Persistence(),
		injection.Persistence(),
		archived.Persistence(),
	}
}

func seedInventory(ctx context.Context, assets persistence.AssetRepository, stock persistence.StockRepository, at time.Time) error {
	if assets != nil {
		acquired := at.AddDate(-3, 0, 0)
		camera := NewAssetFixture(
			WithAssetID("demo-asset-1"),
			WithAssetDesignation("Gamma caméra double tête"),
			WithAssetSerialNumber("GC-2040"),
			WithAssetAcquiredAt(&acquired),
			WithAssetMovements(MovementFixture{
				ID:        "demo-asset-1-mvt-1",
				Kind:      persistence.MovementEntry,
				Quantity:  1,
				UnitPrice: 420000,
				Label:     "Acquisition",
				Date:      acquired,
			}),
		)
		record := camera.Persistence()
		record.CreatedAt = at
		record.UpdatedAt = at
		movements := record.Movements
		record.Movements = nil
		if _, err := assets.GetAsset(ctx, record.ID); err != nil {
			if !errors.Is(err, persistence.ErrNotFound) {
				return fmt.Errorf("failed to look up asset %s: %w", record.ID, err)
			}
			if err := assets.CreateAsset(ctx, record); err != nil {
				return fmt.Errorf("failed to seed asset %s: %w", record.ID, err)
			}
			for _, movement := range movements {
				if err := assets.AppendAssetMovement(ctx, record.ID, movement); err != nil {
					return fmt.Errorf("failed to seed asset ledger for %s: %w", record.ID, err)
				}
			}
		}
	}

	if stock != nil {
		syringes := NewStockItemFixture(
			WithStockItemID("demo-stock-1"),
			WithStockItemName("Seringues blindées"),
			WithStockItemUnit("unité"),
			WithStockItemBalance(200, MovementFixture{
				ID:       "demo-stock-1-mvt-1",
				Kind:     persistence.MovementEntry,
				Quantity: 200,
				Label:    "Stock initial",
				Date:     at,
			}),
		)
		record := syringes.Persistence()
		record.CreatedAt = at
		record.UpdatedAt = at
		movements := record.Movements
		record.Movements = nil
		record.CurrentStock = 0
		if _, err := stock.GetStockItem(ctx, record.ID); err != nil {
			if !errors.Is(err, persistence.ErrNotFound) {
				return fmt.Errorf("failed to look up stock item %s: %w", record.ID, err)
			}
			if err := stock.CreateStockItem(ctx, record); err != nil {
				return fmt.Errorf("failed to seed stock item %s: %w", record.ID, err)
			}
			for _, movement := range movements {
				delta := movement.Quantity
				if movement.Kind == persistence.MovementExit {
					delta = -delta
				}
				if err := stock.AppendStockMovement(ctx, record.ID, movement, delta); err != nil {
					return fmt.Errorf("failed to seed stock ledger for %s: %w", record.ID, err)
				}
			}
		}
	}

	return nil
}

func seedHotLab(ctx context.Context, hotLab persistence.HotLabRepository, at time.Time) error {
	if hotLab == nil {
		return nil
	}
	lot := NewLotFixture(
		WithLotID("demo-lot-1"),
		WithLotTracer("99mTc-HDP"),
		WithLotActivity(1200, 1200),
		WithLotWindow(at, at.Add(6*time.Hour)),
	)
	record := lot.Persistence()
	record.CreatedAt = at
	record.UpdatedAt = at
	if _, err := hotLab.GetLot(ctx, record.ID); err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("failed to look up lot %s: %w", record.ID, err)
		}
		if err := hotLab.CreateLot(ctx, record); err != nil {
			return fmt.Errorf("failed to seed lot %s: %w", record.ID, err)
		}
	}
	return nil
}
