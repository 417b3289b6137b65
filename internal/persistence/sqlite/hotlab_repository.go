package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/nucmed-tracker/internal/persistence"
)

// HotLabRepository implements persistence.HotLabRepository over SQLite.
type HotLabRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
}

// NewHotLabRepository creates a new SQLite hot-lab repository.
func NewHotLabRepository(pool *ConnectionPool) *HotLabRepository {
	return &HotLabRepository{pool: pool, helper: NewQueryHelper(pool)}
}

// CreateLot inserts a new tracer lot.
func (r *HotLabRepository) CreateLot(ctx context.Context, lot persistence.TracerLot) error {
	if lot.ID == "" || lot.Tracer == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO tracer_lots (id, tracer, initial_activity_mbq, remaining_activity_mbq, calibrated_at, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		lot.ID,
		lot.Tracer,
		lot.InitialActivityMBq,
		lot.RemainingActivityMBq,
		encodeTime(lot.CalibratedAt),
		encodeTime(lot.ExpiresAt),
		encodeTime(lot.CreatedAt),
		encodeTime(lot.UpdatedAt),
	)
	return mapError(err)
}

const lotColumns = `id, tracer, initial_activity_mbq, remaining_activity_mbq, calibrated_at, expires_at, created_at, updated_at`

// GetLot retrieves a tracer lot by ID.
func (r *HotLabRepository) GetLot(ctx context.Context, id string) (persistence.TracerLot, error) {
	if id == "" {
		return persistence.TracerLot{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+lotColumns+` FROM tracer_lots WHERE id = ?`, id)
	lot, err := scanLot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.TracerLot{}, persistence.ErrNotFound
		}
		return persistence.TracerLot{}, err
	}
	return lot, nil
}

// ListLots returns all tracer lots ordered by calibration time, newest first.
func (r *HotLabRepository) ListLots(ctx context.Context) ([]persistence.TracerLot, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+lotColumns+` FROM tracer_lots ORDER BY calibrated_at DESC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var lots []persistence.TracerLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return lots, nil
}

// AppendDose debits the dose's activity from the lot and writes the dose
// record in a single transaction. The remaining-activity guard lives in the
// UPDATE itself, so overlapping withdrawals race on the stored balance and
// the loser fails with ErrInsufficientBalance instead of going negative.
func (r *HotLabRepository) AppendDose(ctx context.Context, dose persistence.DoseRecord) error {
	if dose.ID == "" || dose.LotID == "" || dose.PatientID == "" {
		return persistence.ErrConstraintViolation
	}
	if dose.ActivityMBq <= 0 {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE tracer_lots SET remaining_activity_mbq = remaining_activity_mbq - ?, updated_at = ?
			WHERE id = ? AND remaining_activity_mbq >= ?
		`, dose.ActivityMBq, encodeTime(dose.PreparedAt), dose.LotID, dose.ActivityMBq)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return mapError(err)
		}
		if affected == 0 {
			var known int
			if err := tx.QueryRow(`SELECT COUNT(1) FROM tracer_lots WHERE id = ?`, dose.LotID).Scan(&known); err != nil {
				return mapError(err)
			}
			if known == 0 {
				return persistence.ErrNotFound
			}
			return persistence.ErrInsufficientBalance
		}

		if _, err := tx.Exec(`
			INSERT INTO dose_records (id, lot_id, patient_id, activity_mbq, prepared_at, administered_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			dose.ID,
			dose.LotID,
			dose.PatientID,
			dose.ActivityMBq,
			encodeTime(dose.PreparedAt),
			encodeTimePtr(dose.AdministeredAt),
		); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// ListDosesForLot returns the doses withdrawn from one lot, oldest first.
func (r *HotLabRepository) ListDosesForLot(ctx context.Context, lotID string) ([]persistence.DoseRecord, error) {
	return r.listDoses(ctx, `lot_id`, lotID)
}

// ListDosesForPatient returns the doses prepared for one patient, oldest first.
func (r *HotLabRepository) ListDosesForPatient(ctx context.Context, patientID string) ([]persistence.DoseRecord, error) {
	return r.listDoses(ctx, `patient_id`, patientID)
}

// MarkDoseAdministered stamps the administration time on a dose.
func (r *HotLabRepository) MarkDoseAdministered(ctx context.Context, doseID string, at time.Time) error {
	if doseID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE dose_records SET administered_at = ? WHERE id = ?`, encodeTime(at), doseID)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *HotLabRepository) listDoses(ctx context.Context, ownerColumn, ownerID string) ([]persistence.DoseRecord, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, lot_id, patient_id, activity_mbq, prepared_at, administered_at
		FROM dose_records
		WHERE `+ownerColumn+` = ?
		ORDER BY prepared_at ASC, id ASC
	`, ownerID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var doses []persistence.DoseRecord
	for rows.Next() {
		var dose persistence.DoseRecord
		var preparedAt string
		var administeredAt sql.NullString
		if err := rows.Scan(
			&dose.ID,
			&dose.LotID,
			&dose.PatientID,
			&dose.ActivityMBq,
			&preparedAt,
			&administeredAt,
		); err != nil {
			return nil, mapError(err)
		}
		if dose.PreparedAt, err = decodeTime(preparedAt); err != nil {
			return nil, err
		}
		if dose.AdministeredAt, err = decodeTimePtr(administeredAt); err != nil {
			return nil, err
		}
		doses = append(doses, dose)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return doses, nil
}

func scanLot(scanner rowScanner) (persistence.TracerLot, error) {
	var lot persistence.TracerLot
	var calibratedAt, expiresAt, createdAt, updatedAt string

	if err := scanner.Scan(
		&lot.ID,
		&lot.Tracer,
		&lot.InitialActivityMBq,
		&lot.RemainingActivityMBq,
		&calibratedAt,
		&expiresAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.TracerLot{}, err
		}
		return persistence.TracerLot{}, mapError(err)
	}

	var err error
	if lot.CalibratedAt, err = decodeTime(calibratedAt); err != nil {
		return persistence.TracerLot{}, err
	}
	if lot.ExpiresAt, err = decodeTime(expiresAt); err != nil {
		return persistence.TracerLot{}, err
	}
	if lot.CreatedAt, err = decodeTime(createdAt); err != nil {
		return persistence.TracerLot{}, err
	}
	if lot.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return persistence.TracerLot{}, err
	}
	return lot, nil
}
