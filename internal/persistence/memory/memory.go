package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/nucmed-tracker/internal/persistence"
)

// Storage is an in-memory implementation of every repository interface. It
// backs unit tests and demo deployments where no database file is wanted.
type Storage struct {
	mu       sync.RWMutex
	users    map[string]persistence.User
	roles    map[string]persistence.Role
	patients map[string]persistence.Patient
	assets   map[string]persistence.Asset
	stock    map[string]persistence.StockItem
	lots     map[string]persistence.TracerLot
	doses    map[string]persistence.DoseRecord
	sessions map[string]persistence.Session
}

// NewStorage returns an empty in-memory storage.
func NewStorage() *Storage {
	return &Storage{
		users:    make(map[string]persistence.User),
		roles:    make(map[string]persistence.Role),
		patients: make(map[string]persistence.Patient),
		assets:   make(map[string]persistence.Asset),
		stock:    make(map[string]persistence.StockItem),
		lots:     make(map[string]persistence.TracerLot),
		doses:    make(map[string]persistence.DoseRecord),
		sessions: make(map[string]persistence.Session),
	}
}

// Close releases resources held by the storage. No-op for memory.
func (s *Storage) Close() error {
	return nil
}

// --- UserRepository implementation ---

func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}
	if user.RoleID != "" {
		if _, ok := s.roles[user.RoleID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
	}

	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}
	if user.RoleID != "" {
		if _, ok := s.roles[user.RoleID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
	}

	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(email)
	for _, user := range s.users {
		if strings.ToLower(user.Email) == lower {
			return cloneUser(user), nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, cloneUser(user))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.users, id)

	for token, session := range s.sessions {
		if session.UserID == id {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (s *Storage) ensureUniqueEmailLocked(id, email string) error {
	lower := strings.ToLower(email)
	for existingID, user := range s.users {
		if existingID == id {
			continue
		}
		if strings.ToLower(user.Email) == lower {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

// --- RoleRepository implementation ---

func (s *Storage) CreateRole(ctx context.Context, role persistence.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[role.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.roles[role.ID] = cloneRole(role)
	return nil
}

func (s *Storage) UpdateRole(ctx context.Context, role persistence.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[role.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.roles[role.ID] = cloneRole(role)
	return nil
}

func (s *Storage) GetRole(ctx context.Context, id string) (persistence.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[id]
	if !ok {
		return persistence.Role{}, persistence.ErrNotFound
	}
	return cloneRole(role), nil
}

func (s *Storage) ListRoles(ctx context.Context) ([]persistence.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles := make([]persistence.Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, cloneRole(role))
	}
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Name == roles[j].Name {
			return roles[i].ID < roles[j].ID
		}
		return roles[i].Name < roles[j].Name
	})
	return roles, nil
}

// DeleteRole refuses to remove a role while any user still references it.
func (s *Storage) DeleteRole(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, user := range s.users {
		if user.RoleID == id {
			return persistence.ErrForeignKeyViolation
		}
	}
	delete(s.roles, id)
	return nil
}

// --- PatientRepository implementation ---

func (s *Storage) CreatePatient(ctx context.Context, patient persistence.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patients[patient.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.patients[patient.ID] = clonePatient(patient)
	return nil
}

func (s *Storage) UpdatePatient(ctx context.Context, patient persistence.Patient, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.patients[patient.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if !existing.UpdatedAt.Equal(expectedUpdatedAt) {
		return persistence.ErrStaleRecord
	}
	patient.CreatedAt = existing.CreatedAt
	s.patients[patient.ID] = clonePatient(patient)
	return nil
}

func (s *Storage) GetPatient(ctx context.Context, id string) (persistence.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patient, ok := s.patients[id]
	if !ok {
		return persistence.Patient{}, persistence.ErrNotFound
	}
	return clonePatient(patient), nil
}

func (s *Storage) ListPatients(ctx context.Context, filter persistence.PatientFilter) ([]persistence.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patients := make([]persistence.Patient, 0)
	for _, patient := range s.patients {
		if !matchesPatientFilter(patient, filter) {
			continue
		}
		patients = append(patients, clonePatient(patient))
	}
	sort.Slice(patients, func(i, j int) bool {
		left, right := lastEntryDate(patients[i]), lastEntryDate(patients[j])
		if left.Equal(right) {
			return patients[i].ID < patients[j].ID
		}
		return left.Before(right)
	})
	return patients, nil
}

func matchesPatientFilter(patient persistence.Patient, filter persistence.PatientFilter) bool {
	if filter.RoomID != "" && patient.CurrentRoomID != filter.RoomID {
		return false
	}
	if filter.Status != "" && patient.StatusInRoom != filter.Status {
		return false
	}
	if filter.EnteredAfter != nil && lastEntryDate(patient).Before(*filter.EnteredAfter) {
		return false
	}
	return true
}

func lastEntryDate(patient persistence.Patient) time.Time {
	if len(patient.History) == 0 {
		return patient.CreatedAt
	}
	return patient.History[len(patient.History)-1].EntryDate
}

// --- AssetRepository implementation ---

func (s *Storage) CreateAsset(ctx context.Context, asset persistence.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[asset.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.assets[asset.ID] = cloneAsset(asset)
	return nil
}

func (s *Storage) UpdateAsset(ctx context.Context, asset persistence.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.assets[asset.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	asset.CreatedAt = existing.CreatedAt
	asset.Movements = existing.Movements
	s.assets[asset.ID] = cloneAsset(asset)
	return nil
}

func (s *Storage) GetAsset(ctx context.Context, id string) (persistence.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, ok := s.assets[id]
	if !ok {
		return persistence.Asset{}, persistence.ErrNotFound
	}
	return cloneAsset(asset), nil
}

func (s *Storage) ListAssets(ctx context.Context) ([]persistence.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]persistence.Asset, 0, len(s.assets))
	for _, asset := range s.assets {
		assets = append(assets, cloneAsset(asset))
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].Designation == assets[j].Designation {
			return assets[i].ID < assets[j].ID
		}
		return assets[i].Designation < assets[j].Designation
	})
	return assets, nil
}

func (s *Storage) AppendAssetMovement(ctx context.Context, assetID string, movement persistence.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[assetID]
	if !ok {
		return persistence.ErrNotFound
	}
	asset.Movements = append(asset.Movements, movement)
	asset.UpdatedAt = movement.Date
	s.assets[assetID] = asset
	return nil
}

// --- StockRepository implementation ---

func (s *Storage) CreateStockItem(ctx context.Context, item persistence.StockItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stock[item.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.stock[item.ID] = cloneStockItem(item)
	return nil
}

func (s *Storage) GetStockItem(ctx context.Context, id string) (persistence.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.stock[id]
	if !ok {
		return persistence.StockItem{}, persistence.ErrNotFound
	}
	return cloneStockItem(item), nil
}

func (s *Storage) ListStockItems(ctx context.Context) ([]persistence.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]persistence.StockItem, 0, len(s.stock))
	for _, item := range s.stock {
		items = append(items, cloneStockItem(item))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name == items[j].Name {
			return items[i].ID < items[j].ID
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (s *Storage) AppendStockMovement(ctx context.Context, itemID string, movement persistence.Movement, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.stock[itemID]
	if !ok {
		return persistence.ErrNotFound
	}
	newBalance := item.CurrentStock + delta
	if newBalance < 0 {
		return persistence.ErrInsufficientBalance
	}
	item.Movements = append(item.Movements, movement)
	item.CurrentStock = newBalance
	item.UpdatedAt = movement.Date
	s.stock[itemID] = item
	return nil
}

// --- HotLabRepository implementation ---

func (s *Storage) CreateLot(ctx context.Context, lot persistence.TracerLot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lots[lot.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.lots[lot.ID] = lot
	return nil
}

func (s *Storage) GetLot(ctx context.Context, id string) (persistence.TracerLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lot, ok := s.lots[id]
	if !ok {
		return persistence.TracerLot{}, persistence.ErrNotFound
	}
	return lot, nil
}

func (s *Storage) ListLots(ctx context.Context) ([]persistence.TracerLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lots := make([]persistence.TracerLot, 0, len(s.lots))
	for _, lot := range s.lots {
		lots = append(lots, lot)
	}
	sort.Slice(lots, func(i, j int) bool {
		if lots[i].CalibratedAt.Equal(lots[j].CalibratedAt) {
			return lots[i].ID < lots[j].ID
		}
		return lots[i].CalibratedAt.Before(lots[j].CalibratedAt)
	})
	return lots, nil
}

func (s *Storage) AppendDose(ctx context.Context, dose persistence.DoseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.lots[dose.LotID]
	if !ok {
		return persistence.ErrNotFound
	}
	if _, ok := s.doses[dose.ID]; ok {
		return persistence.ErrDuplicate
	}
	newRemaining := lot.RemainingActivityMBq - dose.ActivityMBq
	if newRemaining < 0 {
		return persistence.ErrInsufficientBalance
	}

	s.doses[dose.ID] = cloneDose(dose)
	lot.RemainingActivityMBq = newRemaining
	lot.UpdatedAt = dose.PreparedAt
	s.lots[dose.LotID] = lot
	return nil
}

func (s *Storage) ListDosesForLot(ctx context.Context, lotID string) ([]persistence.DoseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDosesLocked(func(dose persistence.DoseRecord) bool { return dose.LotID == lotID }), nil
}

func (s *Storage) ListDosesForPatient(ctx context.Context, patientID string) ([]persistence.DoseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDosesLocked(func(dose persistence.DoseRecord) bool { return dose.PatientID == patientID }), nil
}

func (s *Storage) listDosesLocked(match func(persistence.DoseRecord) bool) []persistence.DoseRecord {
	doses := make([]persistence.DoseRecord, 0)
	for _, dose := range s.doses {
		if match(dose) {
			doses = append(doses, cloneDose(dose))
		}
	}
	sort.Slice(doses, func(i, j int) bool {
		if doses[i].PreparedAt.Equal(doses[j].PreparedAt) {
			return doses[i].ID < doses[j].ID
		}
		return doses[i].PreparedAt.Before(doses[j].PreparedAt)
	})
	return doses
}

func (s *Storage) MarkDoseAdministered(ctx context.Context, doseID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dose, ok := s.doses[doseID]
	if !ok {
		return persistence.ErrNotFound
	}
	dose.AdministeredAt = &at
	s.doses[doseID] = dose
	return nil
}

// --- SessionRepository implementation ---

func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Token]; ok {
		return persistence.Session{}, persistence.ErrDuplicate
	}
	s.sessions[session.Token] = cloneSession(session)
	return cloneSession(session), nil
}

func (s *Storage) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

func (s *Storage) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	session.UpdatedAt = revokedAt
	s.sessions[token] = session
	return cloneSession(session), nil
}

func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

// --- Helpers ---

func cloneUser(user persistence.User) persistence.User {
	return user
}

func cloneRole(role persistence.Role) persistence.Role {
	clone := role
	clone.Permissions = append([]string(nil), role.Permissions...)
	return clone
}

func clonePatient(patient persistence.Patient) persistence.Patient {
	clone := patient
	clone.History = make([]persistence.HistoryEntry, len(patient.History))
	for i, entry := range patient.History {
		clone.History[i] = entry
		if entry.ExitDate != nil {
			exit := *entry.ExitDate
			clone.History[i].ExitDate = &exit
		}
	}
	clone.RoomData = append([]byte(nil), patient.RoomData...)
	return clone
}

func cloneAsset(asset persistence.Asset) persistence.Asset {
	clone := asset
	if asset.AcquiredAt != nil {
		at := *asset.AcquiredAt
		clone.AcquiredAt = &at
	}
	clone.Movements = append([]persistence.Movement(nil), asset.Movements...)
	return clone
}

func cloneStockItem(item persistence.StockItem) persistence.StockItem {
	clone := item
	clone.Movements = append([]persistence.Movement(nil), item.Movements...)
	return clone
}

func cloneDose(dose persistence.DoseRecord) persistence.DoseRecord {
	clone := dose
	if dose.AdministeredAt != nil {
		at := *dose.AdministeredAt
		clone.AdministeredAt = &at
	}
	return clone
}

func cloneSession(session persistence.Session) persistence.Session {
	clone := session
	if session.RevokedAt != nil {
		at := *session.RevokedAt
		clone.RevokedAt = &at
	}
	return clone
}
