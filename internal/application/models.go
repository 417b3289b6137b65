package application

import (
	"time"

	"github.com/example/nucmed-tracker/internal/workflow"
)

// Permissions understood by the services. Roles carry any subset.
const (
	PermissionPatientsManage  = "patients.manage"
	PermissionUsersManage     = "users.manage"
	PermissionRolesManage     = "roles.manage"
	PermissionInventoryManage = "inventory.manage"
	PermissionHotLabManage    = "hotlab.manage"
	PermissionReportsView     = "reports.view"
)

// AllPermissions lists every permission the services check.
var AllPermissions = []string{
	PermissionPatientsManage,
	PermissionUsersManage,
	PermissionRolesManage,
	PermissionInventoryManage,
	PermissionHotLabManage,
	PermissionReportsView,
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID      string
	RoleID      string
	Permissions []string
}

// HasPermission reports whether the principal carries the given permission.
func (p Principal) HasPermission(permission string) bool {
	for _, granted := range p.Permissions {
		if granted == permission {
			return true
		}
	}
	return false
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	RoleID      string
	Disabled    bool
	Password    string
}

// User represents a staff account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	RoleID      string
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user. Password is
// optional on update; an empty password leaves the stored hash untouched.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// RoleInput captures caller provided role attributes.
type RoleInput struct {
	Name        string
	Permissions []string
}

// Role represents a named permission set assigned to users.
type Role struct {
	ID          string
	Name        string
	Permissions []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateRoleParams wraps the data required to create a role.
type CreateRoleParams struct {
	Principal Principal
	Input     RoleInput
}

// UpdateRoleParams wraps the data required to update a role.
type UpdateRoleParams struct {
	Principal Principal
	RoleID    string
	Input     RoleInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// PatientInput captures caller provided patient fields at registration.
type PatientInput struct {
	FullName           string
	BirthDate          time.Time
	Phone              string
	RequestedExam      string
	ReferringPhysician string
}

// RegisterPatientParams wraps the data required to register a patient.
type RegisterPatientParams struct {
	Principal Principal
	Input     PatientInput
}

// CompleteRoomParams wraps the data required to mark a patient done in a room.
type CompleteRoomParams struct {
	Principal Principal
	PatientID string
	RoomID    workflow.RoomID
	Data      workflow.RoomData
}

// MovePatientParams wraps the data required to move a patient out of band.
type MovePatientParams struct {
	Principal Principal
	PatientID string
	RoomID    workflow.RoomID
}

// ListPatientsParams wraps the filters applied to patient listings. Period
// filters on the current room's entry date relative to PeriodReference.
type ListPatientsParams struct {
	Principal       Principal
	RoomID          workflow.RoomID
	Status          workflow.Status
	Period          workflow.Period
	PeriodReference time.Time
}

// Movement is one line of an inventory ledger.
type Movement struct {
	ID        string
	Kind      string
	Quantity  int
	UnitPrice float64
	Label     string
	Date      time.Time
}

// Movement kinds.
const (
	MovementEntry = "entry"
	MovementExit  = "exit"
)

// MovementInput captures caller provided movement fields.
type MovementInput struct {
	Kind      string
	Quantity  int
	UnitPrice float64
	Label     string
}

// AssetInput captures caller provided asset fields.
type AssetInput struct {
	Designation  string
	SerialNumber string
	AcquiredAt   *time.Time
}

// Asset is a durable equipment record with its movement ledger.
type Asset struct {
	ID           string
	Designation  string
	SerialNumber string
	AcquiredAt   *time.Time
	Movements    []Movement
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateAssetParams wraps the data required to register an asset.
type CreateAssetParams struct {
	Principal Principal
	Input     AssetInput
}

// UpdateAssetParams wraps the data required to update an asset.
type UpdateAssetParams struct {
	Principal Principal
	AssetID   string
	Input     AssetInput
}

// RecordAssetMovementParams wraps the data required to append an asset ledger line.
type RecordAssetMovementParams struct {
	Principal Principal
	AssetID   string
	Input     MovementInput
}

// StockItemInput captures caller provided consumable fields.
type StockItemInput struct {
	Name         string
	Unit         string
	InitialStock int
}

// StockItem is a consumable with its ledger and cached balance.
type StockItem struct {
	ID           string
	Name         string
	Unit         string
	CurrentStock int
	Movements    []Movement
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateStockItemParams wraps the data required to register a consumable.
type CreateStockItemParams struct {
	Principal Principal
	Input     StockItemInput
}

// RecordStockMovementParams wraps the data required to append a stock ledger line.
type RecordStockMovementParams struct {
	Principal Principal
	ItemID    string
	Input     MovementInput
}

// LotInput captures caller provided tracer lot fields.
type LotInput struct {
	Tracer             string
	InitialActivityMBq float64
	CalibratedAt       time.Time
	ExpiresAt          time.Time
}

// TracerLot is a hot-lab radiotracer preparation.
type TracerLot struct {
	ID                   string
	Tracer               string
	InitialActivityMBq   float64
	RemainingActivityMBq float64
	CalibratedAt         time.Time
	ExpiresAt            time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CreateLotParams wraps the data required to register a tracer lot.
type CreateLotParams struct {
	Principal Principal
	Input     LotInput
}

// DoseRecord is one dose withdrawn from a lot for a patient.
type DoseRecord struct {
	ID             string
	LotID          string
	PatientID      string
	ActivityMBq    float64
	PreparedAt     time.Time
	AdministeredAt *time.Time
}

// PrepareDoseParams wraps the data required to withdraw a dose from a lot.
type PrepareDoseParams struct {
	Principal   Principal
	LotID       string
	PatientID   string
	ActivityMBq float64
}

// RoomOccupancy summarizes the patients present in one room.
type RoomOccupancy struct {
	RoomID   workflow.RoomID
	RoomName string
	Waiting  int
	Seen     int
}

// ActivityEntry is one room stay surfaced by the activity feed.
type ActivityEntry struct {
	PatientID     string
	PatientName   string
	RoomID        workflow.RoomID
	EntryDate     time.Time
	ExitDate      *time.Time
	StatusMessage string
}

// ExamStat counts patients by requested exam.
type ExamStat struct {
	Exam  string
	Count int
}

// ActivityReport bundles the reporting queries for one period.
type ActivityReport struct {
	Period    workflow.Period
	Occupancy []RoomOccupancy
	Entries   []ActivityEntry
	ExamStats []ExamStat
}

// ReferenceStats carries regional exam counts fetched from the national
// statistics service. Partial failures keep Available false rather than
// reporting zeroed counts as real data.
type ReferenceStats struct {
	Available bool
	Day       time.Time
	ExamCount int
	DoseCount int
}
