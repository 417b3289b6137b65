package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/nucmed-tracker/internal/persistence"
)

// PatientRepository implements persistence.PatientRepository over SQLite.
// The aggregate spans two tables: patients holds the flat record plus the
// room_data JSON document, patient_history holds one row per stay keyed by
// position so ordering survives round trips.
type PatientRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
}

// NewPatientRepository creates a new SQLite patient repository.
func NewPatientRepository(pool *ConnectionPool) *PatientRepository {
	return &PatientRepository{pool: pool, helper: NewQueryHelper(pool)}
}

// CreatePatient inserts a new patient aggregate.
func (r *PatientRepository) CreatePatient(ctx context.Context, patient persistence.Patient) error {
	if patient.ID == "" || patient.FullName == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO patients (id, full_name, birth_date, phone, current_room_id, status_in_room, room_data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.Exec(query,
			patient.ID,
			patient.FullName,
			encodeTime(patient.BirthDate),
			patient.Phone,
			patient.CurrentRoomID,
			patient.StatusInRoom,
			roomDataOrEmpty(patient.RoomData),
			encodeTime(patient.CreatedAt),
			encodeTime(patient.UpdatedAt),
		); err != nil {
			return mapError(err)
		}
		return insertHistory(tx, patient.ID, patient.History)
	})
}

// UpdatePatient replaces the stored aggregate. History rows are rewritten
// wholesale; the service layer only ever appends or closes entries, so the
// replace keeps both tables consistent with one write path. The WHERE clause
// matches the update timestamp the caller last read: a concurrent writer who
// committed in between makes the match fail, and the losing write comes back
// as ErrStaleRecord instead of silently overwriting.
func (r *PatientRepository) UpdatePatient(ctx context.Context, patient persistence.Patient, expectedUpdatedAt time.Time) error {
	if patient.ID == "" || patient.FullName == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE patients
			SET full_name = ?, birth_date = ?, phone = ?, current_room_id = ?, status_in_room = ?, room_data = ?, updated_at = ?
			WHERE id = ? AND updated_at = ?
		`
		result, err := tx.Exec(query,
			patient.FullName,
			encodeTime(patient.BirthDate),
			patient.Phone,
			patient.CurrentRoomID,
			patient.StatusInRoom,
			roomDataOrEmpty(patient.RoomData),
			encodeTime(patient.UpdatedAt),
			patient.ID,
			encodeTime(expectedUpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return mapError(err)
		}
		if affected == 0 {
			var known int
			if err := tx.QueryRow(`SELECT COUNT(1) FROM patients WHERE id = ?`, patient.ID).Scan(&known); err != nil {
				return mapError(err)
			}
			if known == 0 {
				return persistence.ErrNotFound
			}
			return persistence.ErrStaleRecord
		}

		if _, err := tx.Exec(`DELETE FROM patient_history WHERE patient_id = ?`, patient.ID); err != nil {
			return mapError(err)
		}
		return insertHistory(tx, patient.ID, patient.History)
	})
}

const patientColumns = `id, full_name, birth_date, phone, current_room_id, status_in_room, room_data, created_at, updated_at`

// GetPatient retrieves a patient aggregate by ID.
func (r *PatientRepository) GetPatient(ctx context.Context, id string) (persistence.Patient, error) {
	if id == "" {
		return persistence.Patient{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = ?`, id)
	patient, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Patient{}, persistence.ErrNotFound
		}
		return persistence.Patient{}, err
	}

	history, err := r.loadHistory(ctx, id)
	if err != nil {
		return persistence.Patient{}, err
	}
	patient.History = history
	return patient, nil
}

// ListPatients returns patients matching the filter, ordered by creation
// timestamp then ID.
func (r *PatientRepository) ListPatients(ctx context.Context, filter persistence.PatientFilter) ([]persistence.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients`
	var clauses []string
	var args []any
	if filter.RoomID != "" {
		clauses = append(clauses, `current_room_id = ?`)
		args = append(args, filter.RoomID)
	}
	if filter.Status != "" {
		clauses = append(clauses, `status_in_room = ?`)
		args = append(args, filter.Status)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var patients []persistence.Patient
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, patient)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	for i := range patients {
		history, err := r.loadHistory(ctx, patients[i].ID)
		if err != nil {
			return nil, err
		}
		patients[i].History = history
	}

	// EnteredAfter needs the open entry, so it is applied after hydration.
	if filter.EnteredAfter != nil {
		filtered := patients[:0]
		for _, patient := range patients {
			if entry := currentRoomEntry(patient); entry != nil && !entry.EntryDate.Before(*filter.EnteredAfter) {
				filtered = append(filtered, patient)
			}
		}
		patients = filtered
	}
	return patients, nil
}

func currentRoomEntry(patient persistence.Patient) *persistence.HistoryEntry {
	for i := len(patient.History) - 1; i >= 0; i-- {
		if patient.History[i].RoomID == patient.CurrentRoomID {
			return &patient.History[i]
		}
	}
	return nil
}

func insertHistory(tx *sql.Tx, patientID string, history []persistence.HistoryEntry) error {
	query := `
		INSERT INTO patient_history (patient_id, position, room_id, entry_date, exit_date, status_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for position, entry := range history {
		if _, err := tx.Exec(query,
			patientID,
			position,
			entry.RoomID,
			encodeTime(entry.EntryDate),
			encodeTimePtr(entry.ExitDate),
			entry.StatusMessage,
		); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r *PatientRepository) loadHistory(ctx context.Context, patientID string) ([]persistence.HistoryEntry, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT room_id, entry_date, exit_date, status_message
		FROM patient_history
		WHERE patient_id = ?
		ORDER BY position ASC
	`, patientID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var history []persistence.HistoryEntry
	for rows.Next() {
		var entry persistence.HistoryEntry
		var entryDate string
		var exitDate sql.NullString
		if err := rows.Scan(&entry.RoomID, &entryDate, &exitDate, &entry.StatusMessage); err != nil {
			return nil, mapError(err)
		}
		if entry.EntryDate, err = decodeTime(entryDate); err != nil {
			return nil, err
		}
		if entry.ExitDate, err = decodeTimePtr(exitDate); err != nil {
			return nil, err
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return history, nil
}

func scanPatient(scanner rowScanner) (persistence.Patient, error) {
	var patient persistence.Patient
	var birthDate, roomData, createdAt, updatedAt string

	if err := scanner.Scan(
		&patient.ID,
		&patient.FullName,
		&birthDate,
		&patient.Phone,
		&patient.CurrentRoomID,
		&patient.StatusInRoom,
		&roomData,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Patient{}, err
		}
		return persistence.Patient{}, mapError(err)
	}

	patient.RoomData = []byte(roomData)

	var err error
	if patient.BirthDate, err = decodeTime(birthDate); err != nil {
		return persistence.Patient{}, err
	}
	if patient.CreatedAt, err = decodeTime(createdAt); err != nil {
		return persistence.Patient{}, err
	}
	if patient.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return persistence.Patient{}, err
	}
	return patient, nil
}

func roomDataOrEmpty(data []byte) string {
	if len(data) == 0 {
		return "{}"
	}
	return string(data)
}
