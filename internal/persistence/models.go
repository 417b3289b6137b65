package persistence

import "time"

// User represents a staff account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	RoleID       string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role represents a named permission set referenced by users.
type Role struct {
	ID          string
	Name        string
	Permissions []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// HistoryEntry is one stay of a patient inside a room.
type HistoryEntry struct {
	RoomID        string
	EntryDate     time.Time
	ExitDate      *time.Time
	StatusMessage string
}

// Patient is the stored patient aggregate. RoomData carries the per-room
// form payloads as a JSON document; the workflow layer owns its shape.
type Patient struct {
	ID            string
	FullName      string
	BirthDate     time.Time
	Phone         string
	CurrentRoomID string
	StatusInRoom  string
	History       []HistoryEntry
	RoomData      []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PatientFilter narrows patient listings.
type PatientFilter struct {
	RoomID       string
	Status       string
	EnteredAfter *time.Time
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

// StockItem is a consumable with a movement ledger. CurrentStock is a cache
// of the ledger's running total, recomputed on every movement.
type StockItem struct {
	ID           string
	Name         string
	Unit         string
	CurrentStock int
	Movements    []Movement
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TracerLot is a hot-lab radiotracer preparation. RemainingActivityMBq is a
// cache over the lot's dose withdrawals.
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

// DoseRecord is one dose withdrawn from a lot for a patient.
type DoseRecord struct {
	ID             string
	LotID          string
	PatientID      string
	ActivityMBq    float64
	PreparedAt     time.Time
	AdministeredAt *time.Time
}
