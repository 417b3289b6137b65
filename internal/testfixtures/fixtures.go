// Package testfixtures provides deterministic builders for the records the
// tracker manipulates: roles, users, patients, inventory entries, tracer lots
// and sessions. Fixtures convert to both the application and persistence
// representations so the same builder serves service and repository tests.
package testfixtures

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/nucmed-tracker/internal/application"
	"github.com/example/nucmed-tracker/internal/persistence"
	"github.com/example/nucmed-tracker/internal/workflow"
)

var (
	userCounter    uint64
	roleCounter    uint64
	patientCounter uint64
	assetCounter   uint64
	stockCounter   uint64
	lotCounter     uint64
	doseCounter    uint64
	sessionCounter uint64
)

var referenceTime = time.Date(2025, time.June, 11, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// RolePermissions returns the permission set attached to one of the four
// canonical roles. Unknown role identifiers yield only patients.manage.
func RolePermissions(roleID string) []string {
	switch roleID {
	case workflow.RoleAdmin:
		perms := make([]string, len(application.AllPermissions))
		copy(perms, application.AllPermissions)
		return perms
	case workflow.RolePhysician:
		return []string{
			application.PermissionPatientsManage,
			application.PermissionHotLabManage,
			application.PermissionReportsView,
		}
	case workflow.RoleTechnologist:
		return []string{
			application.PermissionPatientsManage,
			application.PermissionInventoryManage,
			application.PermissionHotLabManage,
		}
	case workflow.RoleSecretary:
		return []string{
			application.PermissionPatientsManage,
			application.PermissionInventoryManage,
			application.PermissionReportsView,
		}
	default:
		return []string{application.PermissionPatientsManage}
	}
}

// DefaultRoles returns the four canonical roles with their fixed identifiers.
// The room catalog gates transitions on these IDs, so they are stable.
func DefaultRoles(now time.Time) []persistence.Role {
	names := []struct {
		id   string
		name string
	}{
		{workflow.RoleAdmin, "Administrateur"},
		{workflow.RolePhysician, "Médecin"},
		{workflow.RoleTechnologist, "Manipulateur"},
		{workflow.RoleSecretary, "Secrétaire"},
	}
	roles := make([]persistence.Role, 0, len(names))
	for _, entry := range names {
		roles = append(roles, persistence.Role{
			ID:          entry.id,
			Name:        entry.name,
			Permissions: RolePermissions(entry.id),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return roles
}

// ----------------------------- Role fixtures -----------------------------

// RoleFixture represents a deterministic role record.
type RoleFixture struct {
	ID          string
	Name        string
	Permissions []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleOption configures the generated role fixture.
type RoleOption func(*RoleFixture)

// NewRoleFixture returns a deterministic role fixture with optional overrides.
func NewRoleFixture(opts ...RoleOption) RoleFixture {
	idx := atomic.AddUint64(&roleCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := RoleFixture{
		ID:          fmt.Sprintf("role-%03d", idx),
		Name:        fmt.Sprintf("Rôle %03d", idx),
		Permissions: []string{application.PermissionPatientsManage},
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoleID overrides the generated role ID.
func WithRoleID(id string) RoleOption {
	return func(f *RoleFixture) {
		f.ID = id
	}
}

// WithRoleName overrides the generated role name.
func WithRoleName(name string) RoleOption {
	return func(f *RoleFixture) {
		f.Name = name
	}
}

// WithRolePermissions overrides the permission set.
func WithRolePermissions(permissions ...string) RoleOption {
	return func(f *RoleFixture) {
		f.Permissions = permissions
	}
}

// WithRoleTimestamps sets both timestamps on the fixture.
func WithRoleTimestamps(created, updated time.Time) RoleOption {
	return func(f *RoleFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Role value.
func (f RoleFixture) Application() application.Role {
	return application.Role{
		ID:          f.ID,
		Name:        f.Name,
		Permissions: append([]string(nil), f.Permissions...),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Role value.
func (f RoleFixture) Persistence() persistence.Role {
	return persistence.Role{
		ID:          f.ID,
		Name:        f.Name,
		Permissions: append([]string(nil), f.Permissions...),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Input returns the fixture as an application.RoleInput.
func (f RoleFixture) Input() application.RoleInput {
	return application.RoleInput{
		Name:        f.Name,
		Permissions: append([]string(nil), f.Permissions...),
	}
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic staff account.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	RoleID       string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
// The default role is secretary, the broadest non-privileged profile.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@nucmed.example", id),
		DisplayName:  fmt.Sprintf("Utilisateur %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		RoleID:       workflow.RoleSecretary,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) {
		f.DisplayName = name
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserRole assigns the given role to the generated fixture.
func WithUserRole(roleID string) UserOption {
	return func(f *UserFixture) {
		f.RoleID = roleID
	}
}

// WithUserDisabled sets the disabled flag on the generated fixture.
func WithUserDisabled(disabled bool) UserOption {
	return func(f *UserFixture) {
		f.Disabled = disabled
	}
}

// WithUserTimestamps sets both timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		RoleID:      f.RoleID,
		Disabled:    f.Disabled,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
		Disabled:     f.Disabled,
	}
}

// Principal returns an application.Principal carrying the permission set of
// the fixture's role.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{
		UserID:      f.ID,
		RoleID:      f.RoleID,
		Permissions: RolePermissions(f.RoleID),
	}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		RoleID:       f.RoleID,
		Disabled:     f.Disabled,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input returns the fixture as an application.UserInput without a password.
func (f UserFixture) Input() application.UserInput {
	return application.UserInput{
		Email:       f.Email,
		DisplayName: f.DisplayName,
		RoleID:      f.RoleID,
		Disabled:    f.Disabled,
	}
}

// ---------------------------- Patient fixtures ----------------------------

// PatientFixture represents a deterministic patient record positioned
// somewhere along the pathway.
type PatientFixture struct {
	ID            string
	FullName      string
	BirthDate     time.Time
	Phone         string
	CurrentRoomID workflow.RoomID
	StatusInRoom  workflow.Status
	History       []workflow.HistoryEntry
	RoomData      workflow.RoomData
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PatientOption configures the generated patient fixture.
type PatientOption func(*PatientFixture)

// NewPatientFixture returns a patient freshly registered in the intake room,
// waiting, with the exam request recorded.
func NewPatientFixture(opts ...PatientOption) PatientFixture {
	idx := atomic.AddUint64(&patientCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := PatientFixture{
		ID:            fmt.Sprintf("patient-%03d", idx),
		FullName:      fmt.Sprintf("Patient %03d", idx),
		BirthDate:     time.Date(1960, time.January, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(idx)),
		Phone:         fmt.Sprintf("06%08d", idx),
		CurrentRoomID: workflow.RoomRequest,
		StatusInRoom:  workflow.StatusWaiting,
		History: []workflow.HistoryEntry{
			{RoomID: workflow.RoomRequest, EntryDate: created},
		},
		RoomData: workflow.RoomData{
			Request: &workflow.RequestData{RequestedExam: "Scintigraphie osseuse"},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithPatientID overrides the generated patient ID.
func WithPatientID(id string) PatientOption {
	return func(f *PatientFixture) {
		f.ID = id
	}
}

// WithPatientName overrides the generated full name.
func WithPatientName(name string) PatientOption {
	return func(f *PatientFixture) {
		f.FullName = name
	}
}

// WithPatientBirthDate overrides the generated birth date.
func WithPatientBirthDate(birth time.Time) PatientOption {
	return func(f *PatientFixture) {
		f.BirthDate = birth
	}
}

// WithPatientPhone overrides the generated phone number.
func WithPatientPhone(phone string) PatientOption {
	return func(f *PatientFixture) {
		f.Phone = phone
	}
}

// WithPatientRoom places the patient in the given room with the given status.
// The history is not rewritten; combine with WithPatientHistory when the
// pathway up to that room matters.
func WithPatientRoom(roomID workflow.RoomID, status workflow.Status) PatientOption {
	return func(f *PatientFixture) {
		f.CurrentRoomID = roomID
		f.StatusInRoom = status
	}
}

// WithPatientHistory replaces the generated history entries.
func WithPatientHistory(entries ...workflow.HistoryEntry) PatientOption {
	return func(f *PatientFixture) {
		f.History = entries
	}
}

// WithPatientRoomData replaces the generated room payloads.
func WithPatientRoomData(data workflow.RoomData) PatientOption {
	return func(f *PatientFixture) {
		f.RoomData = data
	}
}

// WithPatientTimestamps sets both timestamps on the fixture.
func WithPatientTimestamps(created, updated time.Time) PatientOption {
	return func(f *PatientFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Workflow returns the fixture as a workflow.Patient aggregate.
func (f PatientFixture) Workflow() *workflow.Patient {
	patient := &workflow.Patient{
		ID:            f.ID,
		FullName:      f.FullName,
		BirthDate:     f.BirthDate,
		Phone:         f.Phone,
		CurrentRoomID: f.CurrentRoomID,
		StatusInRoom:  f.StatusInRoom,
		History:       append([]workflow.HistoryEntry(nil), f.History...),
		RoomData:      f.RoomData,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
	return patient.Clone()
}

// Persistence returns the fixture as a persistence.Patient row. Room payloads
// are serialised to the stored JSON document.
func (f PatientFixture) Persistence() persistence.Patient {
	history := make([]persistence.HistoryEntry, 0, len(f.History))
	for _, entry := range f.History {
		stored := persistence.HistoryEntry{
			RoomID:        string(entry.RoomID),
			EntryDate:     entry.EntryDate,
			StatusMessage: entry.StatusMessage,
		}
		if entry.ExitDate != nil {
			exit := *entry.ExitDate
			stored.ExitDate = &exit
		}
		history = append(history, stored)
	}
	return persistence.Patient{
		ID:            f.ID,
		FullName:      f.FullName,
		BirthDate:     f.BirthDate,
		Phone:         f.Phone,
		CurrentRoomID: string(f.CurrentRoomID),
		StatusInRoom:  string(f.StatusInRoom),
		History:       history,
		RoomData:      marshalRoomData(f.RoomData),
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// Input returns the fixture as an application.PatientInput.
func (f PatientFixture) Input() application.PatientInput {
	input := application.PatientInput{
		FullName:  f.FullName,
		BirthDate: f.BirthDate,
		Phone:     f.Phone,
	}
	if f.RoomData.Request != nil {
		input.RequestedExam = f.RoomData.Request.RequestedExam
		input.ReferringPhysician = f.RoomData.Request.ReferringPhysician
	}
	return input
}

// marshalRoomData serialises room payloads to the stored JSON form. RoomData
// contains only plain values, so marshalling cannot fail.
func marshalRoomData(data workflow.RoomData) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		return []byte("{}")
	}
	return payload
}

// ---------------------------- Movement fixtures ---------------------------

// MovementFixture represents one inventory ledger line.
type MovementFixture struct {
	ID        string
	Kind      string
	Quantity  int
	UnitPrice float64
	Label     string
	Date      time.Time
}

// ApplicationMovement returns the fixture as an application.Movement.
func (f MovementFixture) ApplicationMovement() application.Movement {
	return application.Movement{
		ID:        f.ID,
		Kind:      f.Kind,
		Quantity:  f.Quantity,
		UnitPrice: f.UnitPrice,
		Label:     f.Label,
		Date:      f.Date,
	}
}

// PersistenceMovement returns the fixture as a persistence.Movement.
func (f MovementFixture) PersistenceMovement() persistence.Movement {
	return persistence.Movement{
		ID:        f.ID,
		Kind:      f.Kind,
		Quantity:  f.Quantity,
		UnitPrice: f.UnitPrice,
		Label:     f.Label,
		Date:      f.Date,
	}
}

func applicationMovements(movements []MovementFixture) []application.Movement {
	if len(movements) == 0 {
		return nil
	}
	out := make([]application.Movement, 0, len(movements))
	for _, movement := range movements {
		out = append(out, movement.ApplicationMovement())
	}
	return out
}

func persistenceMovements(movements []MovementFixture) []persistence.Movement {
	if len(movements) == 0 {
		return nil
	}
	out := make([]persistence.Movement, 0, len(movements))
	for _, movement := range movements {
		out = append(out, movement.PersistenceMovement())
	}
	return out
}

// ----------------------------- Asset fixtures -----------------------------

// AssetFixture represents a deterministic durable-equipment record.
type AssetFixture struct {
	ID           string
	Designation  string
	SerialNumber string
	AcquiredAt   *time.Time
	Movements    []MovementFixture
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AssetOption configures the generated asset fixture.
type AssetOption func(*AssetFixture)

// NewAssetFixture returns an asset with its acquisition already in the ledger.
func NewAssetFixture(opts ...AssetOption) AssetFixture {
	idx := atomic.AddUint64(&assetCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	acquired := referenceTime.AddDate(-1, 0, 0)
	fixture := AssetFixture{
		ID:           fmt.Sprintf("asset-%03d", idx),
		Designation:  fmt.Sprintf("Équipement %03d", idx),
		SerialNumber: fmt.Sprintf("SN-%03d", idx),
		AcquiredAt:   &acquired,
		Movements: []MovementFixture{
			{
				ID:        fmt.Sprintf("asset-%03d-mvt-1", idx),
				Kind:      persistence.MovementEntry,
				Quantity:  1,
				UnitPrice: float64(idx) * 1000,
				Label:     "Acquisition",
				Date:      acquired,
			},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAssetID overrides the generated asset ID.
func WithAssetID(id string) AssetOption {
	return func(f *AssetFixture) {
		f.ID = id
	}
}

// WithAssetDesignation overrides the generated designation.
func WithAssetDesignation(designation string) AssetOption {
	return func(f *AssetFixture) {
		f.Designation = designation
	}
}

// WithAssetSerialNumber overrides the generated serial number.
func WithAssetSerialNumber(serial string) AssetOption {
	return func(f *AssetFixture) {
		f.SerialNumber = serial
	}
}

// WithAssetAcquiredAt overrides the acquisition date.
func WithAssetAcquiredAt(at *time.Time) AssetOption {
	return func(f *AssetFixture) {
		f.AcquiredAt = at
	}
}

// WithAssetMovements replaces the generated ledger.
func WithAssetMovements(movements ...MovementFixture) AssetOption {
	return func(f *AssetFixture) {
		f.Movements = movements
	}
}

// Application returns the fixture as an application.Asset value.
func (f AssetFixture) Application() application.Asset {
	return application.Asset{
		ID:           f.ID,
		Designation:  f.Designation,
		SerialNumber: f.SerialNumber,
		AcquiredAt:   f.AcquiredAt,
		Movements:    applicationMovements(f.Movements),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Asset value.
func (f AssetFixture) Persistence() persistence.Asset {
	return persistence.Asset{
		ID:           f.ID,
		Designation:  f.Designation,
		SerialNumber: f.SerialNumber,
		AcquiredAt:   f.AcquiredAt,
		Movements:    persistenceMovements(f.Movements),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// --------------------------- Stock item fixtures --------------------------

// StockItemFixture represents a deterministic consumable record.
type StockItemFixture struct {
	ID           string
	Name         string
	Unit         string
	CurrentStock int
	Movements    []MovementFixture
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StockItemOption configures the generated stock fixture.
type StockItemOption func(*StockItemFixture)

// NewStockItemFixture returns a consumable with its initial stock entry.
func NewStockItemFixture(opts ...StockItemOption) StockItemFixture {
	idx := atomic.AddUint64(&stockCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := StockItemFixture{
		ID:           fmt.Sprintf("stock-%03d", idx),
		Name:         fmt.Sprintf("Consommable %03d", idx),
		Unit:         "unité",
		CurrentStock: 50,
		Movements: []MovementFixture{
			{
				ID:       fmt.Sprintf("stock-%03d-mvt-1", idx),
				Kind:     persistence.MovementEntry,
				Quantity: 50,
				Label:    "Stock initial",
				Date:     created,
			},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithStockItemID overrides the generated item ID.
func WithStockItemID(id string) StockItemOption {
	return func(f *StockItemFixture) {
		f.ID = id
	}
}

// WithStockItemName overrides the generated item name.
func WithStockItemName(name string) StockItemOption {
	return func(f *StockItemFixture) {
		f.Name = name
	}
}

// WithStockItemUnit overrides the generated unit label.
func WithStockItemUnit(unit string) StockItemOption {
	return func(f *StockItemFixture) {
		f.Unit = unit
	}
}

// WithStockItemBalance sets the cached balance and replaces the ledger.
func WithStockItemBalance(balance int, movements ...MovementFixture) StockItemOption {
	return func(f *StockItemFixture) {
		f.CurrentStock = balance
		f.Movements = movements
	}
}

// Application returns the fixture as an application.StockItem value.
func (f StockItemFixture) Application() application.StockItem {
	return application.StockItem{
		ID:           f.ID,
		Name:         f.Name,
		Unit:         f.Unit,
		CurrentStock: f.CurrentStock,
		Movements:    applicationMovements(f.Movements),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.StockItem value.
func (f StockItemFixture) Persistence() persistence.StockItem {
	return persistence.StockItem{
		ID:           f.ID,
		Name:         f.Name,
		Unit:         f.Unit,
		CurrentStock: f.CurrentStock,
		Movements:    persistenceMovements(f.Movements),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ------------------------------ Lot fixtures ------------------------------

// LotFixture represents a deterministic tracer lot.
type LotFixture struct {
	ID                   string
	Tracer               string
	InitialActivityMBq   float64
	RemainingActivityMBq float64
	CalibratedAt         time.Time
	ExpiresAt            time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// LotOption configures the generated lot fixture.
type LotOption func(*LotFixture)

// NewLotFixture returns a freshly calibrated lot with six hours of shelf
// life, the usual envelope for a technetium preparation.
func NewLotFixture(opts ...LotOption) LotFixture {
	idx := atomic.AddUint64(&lotCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := LotFixture{
		ID:                   fmt.Sprintf("lot-%03d", idx),
		Tracer:               "99mTc-HDP",
		InitialActivityMBq:   1000,
		RemainingActivityMBq: 1000,
		CalibratedAt:         created,
		ExpiresAt:            created.Add(6 * time.Hour),
		CreatedAt:            created,
		UpdatedAt:            created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithLotID overrides the generated lot ID.
func WithLotID(id string) LotOption {
	return func(f *LotFixture) {
		f.ID = id
	}
}

// WithLotTracer overrides the generated tracer name.
func WithLotTracer(tracer string) LotOption {
	return func(f *LotFixture) {
		f.Tracer = tracer
	}
}

// WithLotActivity sets the initial and remaining activity.
func WithLotActivity(initialMBq, remainingMBq float64) LotOption {
	return func(f *LotFixture) {
		f.InitialActivityMBq = initialMBq
		f.RemainingActivityMBq = remainingMBq
	}
}

// WithLotWindow sets the calibration and expiry instants.
func WithLotWindow(calibratedAt, expiresAt time.Time) LotOption {
	return func(f *LotFixture) {
		f.CalibratedAt = calibratedAt
		f.ExpiresAt = expiresAt
	}
}

// Application returns the fixture as an application.TracerLot value.
func (f LotFixture) Application() application.TracerLot {
	return application.TracerLot{
		ID:                   f.ID,
		Tracer:               f.Tracer,
		InitialActivityMBq:   f.InitialActivityMBq,
		RemainingActivityMBq: f.RemainingActivityMBq,
		CalibratedAt:         f.CalibratedAt,
		ExpiresAt:            f.ExpiresAt,
		CreatedAt:            f.CreatedAt,
		UpdatedAt:            f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.TracerLot value.
func (f LotFixture) Persistence() persistence.TracerLot {
	return persistence.TracerLot{
		ID:                   f.ID,
		Tracer:               f.Tracer,
		InitialActivityMBq:   f.InitialActivityMBq,
		RemainingActivityMBq: f.RemainingActivityMBq,
		CalibratedAt:         f.CalibratedAt,
		ExpiresAt:            f.ExpiresAt,
		CreatedAt:            f.CreatedAt,
		UpdatedAt:            f.UpdatedAt,
	}
}

// ------------------------------ Dose fixtures -----------------------------

// DoseFixture represents one dose withdrawn from a lot.
type DoseFixture struct {
	ID             string
	LotID          string
	PatientID      string
	ActivityMBq    float64
	PreparedAt     time.Time
	AdministeredAt *time.Time
}

// DoseOption configures the generated dose fixture.
type DoseOption func(*DoseFixture)

// NewDoseFixture returns a prepared, not yet administered dose.
func NewDoseFixture(opts ...DoseOption) DoseFixture {
	idx := atomic.AddUint64(&doseCounter, 1)
	fixture := DoseFixture{
		ID:          fmt.Sprintf("dose-%03d", idx),
		LotID:       "lot-001",
		PatientID:   "patient-001",
		ActivityMBq: 550,
		PreparedAt:  referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithDoseID overrides the generated dose ID.
func WithDoseID(id string) DoseOption {
	return func(f *DoseFixture) {
		f.ID = id
	}
}

// WithDoseLot attributes the dose to the given lot.
func WithDoseLot(lotID string) DoseOption {
	return func(f *DoseFixture) {
		f.LotID = lotID
	}
}

// WithDosePatient attributes the dose to the given patient.
func WithDosePatient(patientID string) DoseOption {
	return func(f *DoseFixture) {
		f.PatientID = patientID
	}
}

// WithDoseActivity overrides the withdrawn activity.
func WithDoseActivity(activityMBq float64) DoseOption {
	return func(f *DoseFixture) {
		f.ActivityMBq = activityMBq
	}
}

// WithDoseAdministered marks the dose as administered at the given instant.
func WithDoseAdministered(at time.Time) DoseOption {
	return func(f *DoseFixture) {
		f.AdministeredAt = &at
	}
}

// Application returns the fixture as an application.DoseRecord value.
func (f DoseFixture) Application() application.DoseRecord {
	record := application.DoseRecord{
		ID:          f.ID,
		LotID:       f.LotID,
		PatientID:   f.PatientID,
		ActivityMBq: f.ActivityMBq,
		PreparedAt:  f.PreparedAt,
	}
	if f.AdministeredAt != nil {
		at := *f.AdministeredAt
		record.AdministeredAt = &at
	}
	return record
}

// Persistence returns the fixture as a persistence.DoseRecord value.
func (f DoseFixture) Persistence() persistence.DoseRecord {
	record := persistence.DoseRecord{
		ID:          f.ID,
		LotID:       f.LotID,
		PatientID:   f.PatientID,
		ActivityMBq: f.ActivityMBq,
		PreparedAt:  f.PreparedAt,
	}
	if f.AdministeredAt != nil {
		at := *f.AdministeredAt
		record.AdministeredAt = &at
	}
	return record
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture represents a deterministic authentication session.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns an active session valid for twelve hours.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    "user-001",
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: created.Add(12 * time.Hour),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionUser attributes the session to the given user.
func WithSessionUser(userID string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = userID
	}
}

// WithSessionToken overrides the generated token.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiry sets the expiry instant.
func WithSessionExpiry(at time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = at
	}
}

// WithSessionRevoked marks the session revoked at the given instant.
func WithSessionRevoked(at time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.RevokedAt = &at
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	session := application.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
	if f.RevokedAt != nil {
		at := *f.RevokedAt
		session.RevokedAt = &at
	}
	return session
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	session := persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
	if f.RevokedAt != nil {
		at := *f.RevokedAt
		session.RevokedAt = &at
	}
	return session
}
