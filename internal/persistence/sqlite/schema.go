package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Schema statements are applied in order on startup. Every statement is
// idempotent so repeated boots against an existing file are safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		permissions TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role_id TEXT NOT NULL REFERENCES roles(id),
		disabled INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		token TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		revoked_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		current_room_id TEXT NOT NULL,
		status_in_room TEXT NOT NULL,
		room_data TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS patient_history (
		patient_id TEXT NOT NULL REFERENCES patients(id),
		position INTEGER NOT NULL,
		room_id TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		exit_date TEXT,
		status_message TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (patient_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		designation TEXT NOT NULL,
		serial_number TEXT NOT NULL DEFAULT '',
		acquired_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS asset_movements (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL REFERENCES assets(id),
		kind TEXT NOT NULL CHECK (kind IN ('entry', 'exit')),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price REAL NOT NULL DEFAULT 0,
		label TEXT NOT NULL DEFAULT '',
		moved_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		current_stock INTEGER NOT NULL DEFAULT 0 CHECK (current_stock >= 0),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL REFERENCES stock_items(id),
		kind TEXT NOT NULL CHECK (kind IN ('entry', 'exit')),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price REAL NOT NULL DEFAULT 0,
		label TEXT NOT NULL DEFAULT '',
		moved_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tracer_lots (
		id TEXT PRIMARY KEY,
		tracer TEXT NOT NULL,
		initial_activity_mbq REAL NOT NULL CHECK (initial_activity_mbq > 0),
		remaining_activity_mbq REAL NOT NULL CHECK (remaining_activity_mbq >= 0),
		calibrated_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dose_records (
		id TEXT PRIMARY KEY,
		lot_id TEXT NOT NULL REFERENCES tracer_lots(id),
		patient_id TEXT NOT NULL REFERENCES patients(id),
		activity_mbq REAL NOT NULL CHECK (activity_mbq > 0),
		prepared_at TEXT NOT NULL,
		administered_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_patients_room ON patients(current_room_id, status_in_room)`,
	`CREATE INDEX IF NOT EXISTS idx_history_patient ON patient_history(patient_id)`,
	`CREATE INDEX IF NOT EXISTS idx_doses_lot ON dose_records(lot_id)`,
	`CREATE INDEX IF NOT EXISTS idx_doses_patient ON dose_records(patient_id)`,
}

// Migrate applies the schema to the connected database.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	return cp.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to apply schema statement: %w", err)
			}
		}
		return nil
	})
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", value, err)
	}
	return parsed, nil
}

func decodeTimePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	parsed, err := decodeTime(value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
