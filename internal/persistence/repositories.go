package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RoleRepository exposes CRUD operations for roles. DeleteRole returns
// ErrForeignKeyViolation while any user still references the role.
type RoleRepository interface {
	CreateRole(ctx context.Context, role Role) error
	UpdateRole(ctx context.Context, role Role) error
	GetRole(ctx context.Context, id string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	DeleteRole(ctx context.Context, id string) error
}

// PatientRepository stores patient aggregates including history and room
// payloads. Patients are never deleted; archiving is a workflow state.
// UpdatePatient is guarded by the update timestamp the caller last read and
// returns ErrStaleRecord when another writer got there first.
type PatientRepository interface {
	CreatePatient(ctx context.Context, patient Patient) error
	UpdatePatient(ctx context.Context, patient Patient, expectedUpdatedAt time.Time) error
	GetPatient(ctx context.Context, id string) (Patient, error)
	ListPatients(ctx context.Context, filter PatientFilter) ([]Patient, error)
}

// AssetRepository stores durable equipment and its movement ledger.
type AssetRepository interface {
	CreateAsset(ctx context.Context, asset Asset) error
	UpdateAsset(ctx context.Context, asset Asset) error
	GetAsset(ctx context.Context, id string) (Asset, error)
	ListAssets(ctx context.Context) ([]Asset, error)
	AppendAssetMovement(ctx context.Context, assetID string, movement Movement) error
}

// StockRepository stores consumables. AppendStockMovement applies the signed
// delta to the cached balance and writes the ledger line in one transaction;
// a delta that would drive the balance negative is rejected with
// ErrInsufficientBalance and nothing is written.
type StockRepository interface {
	CreateStockItem(ctx context.Context, item StockItem) error
	GetStockItem(ctx context.Context, id string) (StockItem, error)
	ListStockItems(ctx context.Context) ([]StockItem, error)
	AppendStockMovement(ctx context.Context, itemID string, movement Movement, delta int) error
}

// HotLabRepository stores tracer lots and dose records. AppendDose debits the
// dose's activity from the lot and writes the dose record in one transaction;
// a debit past the remaining activity is rejected with ErrInsufficientBalance.
type HotLabRepository interface {
	CreateLot(ctx context.Context, lot TracerLot) error
	GetLot(ctx context.Context, id string) (TracerLot, error)
	ListLots(ctx context.Context) ([]TracerLot, error)
	AppendDose(ctx context.Context, dose DoseRecord) error
	ListDosesForLot(ctx context.Context, lotID string) ([]DoseRecord, error)
	ListDosesForPatient(ctx context.Context, patientID string) ([]DoseRecord, error)
	MarkDoseAdministered(ctx context.Context, doseID string, at time.Time) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
