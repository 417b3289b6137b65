package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/nucmed-tracker/internal/application"
	"github.com/example/nucmed-tracker/internal/persistence"
	"github.com/example/nucmed-tracker/internal/workflow"
)

// The application layer owns its repository interfaces; the adapters below
// bridge them to the SQLite repositories, converting between the stored rows
// and the application or workflow aggregates.

type patientRepositoryAdapter struct {
	repo persistence.PatientRepository
}

func newPatientRepositoryAdapter(repo persistence.PatientRepository) *patientRepositoryAdapter {
	return &patientRepositoryAdapter{repo: repo}
}

func (a *patientRepositoryAdapter) CreatePatient(ctx context.Context, patient *workflow.Patient) error {
	model, err := toPersistencePatient(patient)
	if err != nil {
		return err
	}
	return a.repo.CreatePatient(ctx, model)
}

func (a *patientRepositoryAdapter) UpdatePatient(ctx context.Context, patient *workflow.Patient, expectedUpdatedAt time.Time) error {
	model, err := toPersistencePatient(patient)
	if err != nil {
		return err
	}
	return a.repo.UpdatePatient(ctx, model, expectedUpdatedAt)
}

func (a *patientRepositoryAdapter) GetPatient(ctx context.Context, id string) (*workflow.Patient, error) {
	model, err := a.repo.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	return toWorkflowPatient(model)
}

func (a *patientRepositoryAdapter) ListPatients(ctx context.Context, filter application.PatientListFilter) ([]*workflow.Patient, error) {
	models, err := a.repo.ListPatients(ctx, persistence.PatientFilter{
		RoomID: string(filter.RoomID),
		Status: string(filter.Status),
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	patients := make([]*workflow.Patient, 0, len(models))
	for _, model := range models {
		patient, err := toWorkflowPatient(model)
		if err != nil {
			return nil, err
		}
		patients = append(patients, patient)
	}
	return patients, nil
}

// PatientExists satisfies application.PatientFinder for the hot lab.
func (a *patientRepositoryAdapter) PatientExists(ctx context.Context, id string) (bool, error) {
	if _, err := a.repo.GetPatient(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

// UpdateUser keeps the stored hash when passwordHash is empty.
func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if passwordHash == "" {
		current, err := a.repo.GetUser(ctx, user.ID)
		if err != nil {
			return application.User{}, err
		}
		passwordHash = current.PasswordHash
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type roleRepositoryAdapter struct {
	repo persistence.RoleRepository
}

func newRoleRepositoryAdapter(repo persistence.RoleRepository) *roleRepositoryAdapter {
	return &roleRepositoryAdapter{repo: repo}
}

func (a *roleRepositoryAdapter) CreateRole(ctx context.Context, role application.Role) (application.Role, error) {
	if err := a.repo.CreateRole(ctx, toPersistenceRole(role)); err != nil {
		return application.Role{}, err
	}
	stored, err := a.repo.GetRole(ctx, role.ID)
	if err != nil {
		return application.Role{}, err
	}
	return toApplicationRole(stored), nil
}

func (a *roleRepositoryAdapter) GetRole(ctx context.Context, id string) (application.Role, error) {
	stored, err := a.repo.GetRole(ctx, id)
	if err != nil {
		return application.Role{}, err
	}
	return toApplicationRole(stored), nil
}

func (a *roleRepositoryAdapter) UpdateRole(ctx context.Context, role application.Role) (application.Role, error) {
	if err := a.repo.UpdateRole(ctx, toPersistenceRole(role)); err != nil {
		return application.Role{}, err
	}
	stored, err := a.repo.GetRole(ctx, role.ID)
	if err != nil {
		return application.Role{}, err
	}
	return toApplicationRole(stored), nil
}

func (a *roleRepositoryAdapter) DeleteRole(ctx context.Context, id string) error {
	return a.repo.DeleteRole(ctx, id)
}

func (a *roleRepositoryAdapter) ListRoles(ctx context.Context) ([]application.Role, error) {
	models, err := a.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	roles := make([]application.Role, 0, len(models))
	for _, model := range models {
		roles = append(roles, toApplicationRole(model))
	}
	return roles, nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
		Disabled:     stored.Disabled,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

type assetRepositoryAdapter struct {
	repo persistence.AssetRepository
}

func newAssetRepositoryAdapter(repo persistence.AssetRepository) *assetRepositoryAdapter {
	return &assetRepositoryAdapter{repo: repo}
}

func (a *assetRepositoryAdapter) CreateAsset(ctx context.Context, asset application.Asset) (application.Asset, error) {
	if err := a.repo.CreateAsset(ctx, toPersistenceAsset(asset)); err != nil {
		return application.Asset{}, err
	}
	stored, err := a.repo.GetAsset(ctx, asset.ID)
	if err != nil {
		return application.Asset{}, err
	}
	return toApplicationAsset(stored), nil
}

func (a *assetRepositoryAdapter) UpdateAsset(ctx context.Context, asset application.Asset) (application.Asset, error) {
	if err := a.repo.UpdateAsset(ctx, toPersistenceAsset(asset)); err != nil {
		return application.Asset{}, err
	}
	stored, err := a.repo.GetAsset(ctx, asset.ID)
	if err != nil {
		return application.Asset{}, err
	}
	return toApplicationAsset(stored), nil
}

func (a *assetRepositoryAdapter) GetAsset(ctx context.Context, id string) (application.Asset, error) {
	stored, err := a.repo.GetAsset(ctx, id)
	if err != nil {
		return application.Asset{}, err
	}
	return toApplicationAsset(stored), nil
}

func (a *assetRepositoryAdapter) ListAssets(ctx context.Context) ([]application.Asset, error) {
	models, err := a.repo.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	assets := make([]application.Asset, 0, len(models))
	for _, model := range models {
		assets = append(assets, toApplicationAsset(model))
	}
	return assets, nil
}

func (a *assetRepositoryAdapter) AppendAssetMovement(ctx context.Context, assetID string, movement application.Movement) error {
	return a.repo.AppendAssetMovement(ctx, assetID, toPersistenceMovement(movement))
}

type stockRepositoryAdapter struct {
	repo persistence.StockRepository
}

func newStockRepositoryAdapter(repo persistence.StockRepository) *stockRepositoryAdapter {
	return &stockRepositoryAdapter{repo: repo}
}

func (a *stockRepositoryAdapter) CreateStockItem(ctx context.Context, item application.StockItem) (application.StockItem, error) {
	if err := a.repo.CreateStockItem(ctx, toPersistenceStockItem(item)); err != nil {
		return application.StockItem{}, err
	}
	stored, err := a.repo.GetStockItem(ctx, item.ID)
	if err != nil {
		return application.StockItem{}, err
	}
	return toApplicationStockItem(stored), nil
}

func (a *stockRepositoryAdapter) GetStockItem(ctx context.Context, id string) (application.StockItem, error) {
	stored, err := a.repo.GetStockItem(ctx, id)
	if err != nil {
		return application.StockItem{}, err
	}
	return toApplicationStockItem(stored), nil
}

func (a *stockRepositoryAdapter) ListStockItems(ctx context.Context) ([]application.StockItem, error) {
	models, err := a.repo.ListStockItems(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	items := make([]application.StockItem, 0, len(models))
	for _, model := range models {
		items = append(items, toApplicationStockItem(model))
	}
	return items, nil
}

func (a *stockRepositoryAdapter) AppendStockMovement(ctx context.Context, itemID string, movement application.Movement, delta int) error {
	return a.repo.AppendStockMovement(ctx, itemID, toPersistenceMovement(movement), delta)
}

type hotLabRepositoryAdapter struct {
	repo persistence.HotLabRepository
}

func newHotLabRepositoryAdapter(repo persistence.HotLabRepository) *hotLabRepositoryAdapter {
	return &hotLabRepositoryAdapter{repo: repo}
}

func (a *hotLabRepositoryAdapter) CreateLot(ctx context.Context, lot application.TracerLot) (application.TracerLot, error) {
	if err := a.repo.CreateLot(ctx, toPersistenceLot(lot)); err != nil {
		return application.TracerLot{}, err
	}
	stored, err := a.repo.GetLot(ctx, lot.ID)
	if err != nil {
		return application.TracerLot{}, err
	}
	return toApplicationLot(stored), nil
}

func (a *hotLabRepositoryAdapter) GetLot(ctx context.Context, id string) (application.TracerLot, error) {
	stored, err := a.repo.GetLot(ctx, id)
	if err != nil {
		return application.TracerLot{}, err
	}
	return toApplicationLot(stored), nil
}

func (a *hotLabRepositoryAdapter) ListLots(ctx context.Context) ([]application.TracerLot, error) {
	models, err := a.repo.ListLots(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	lots := make([]application.TracerLot, 0, len(models))
	for _, model := range models {
		lots = append(lots, toApplicationLot(model))
	}
	return lots, nil
}

func (a *hotLabRepositoryAdapter) AppendDose(ctx context.Context, dose application.DoseRecord) error {
	return a.repo.AppendDose(ctx, toPersistenceDose(dose))
}

func (a *hotLabRepositoryAdapter) ListDosesForLot(ctx context.Context, lotID string) ([]application.DoseRecord, error) {
	models, err := a.repo.ListDosesForLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	return toApplicationDoses(models), nil
}

func (a *hotLabRepositoryAdapter) ListDosesForPatient(ctx context.Context, patientID string) ([]application.DoseRecord, error) {
	models, err := a.repo.ListDosesForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return toApplicationDoses(models), nil
}

func (a *hotLabRepositoryAdapter) MarkDoseAdministered(ctx context.Context, doseID string, at time.Time) error {
	return a.repo.MarkDoseAdministered(ctx, doseID, at)
}

// --- Conversions ---

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		RoleID:      model.RoleID,
		Disabled:    model.Disabled,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		RoleID:       user.RoleID,
		Disabled:     user.Disabled,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationRole(model persistence.Role) application.Role {
	return application.Role{
		ID:          model.ID,
		Name:        model.Name,
		Permissions: append([]string(nil), model.Permissions...),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceRole(role application.Role) persistence.Role {
	return persistence.Role{
		ID:          role.ID,
		Name:        role.Name,
		Permissions: append([]string(nil), role.Permissions...),
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func toPersistencePatient(patient *workflow.Patient) (persistence.Patient, error) {
	if patient == nil {
		return persistence.Patient{}, fmt.Errorf("patient is nil")
	}
	roomData, err := json.Marshal(patient.RoomData)
	if err != nil {
		return persistence.Patient{}, fmt.Errorf("failed to serialise room data: %w", err)
	}
	history := make([]persistence.HistoryEntry, 0, len(patient.History))
	for _, entry := range patient.History {
		history = append(history, persistence.HistoryEntry{
			RoomID:        string(entry.RoomID),
			EntryDate:     entry.EntryDate,
			ExitDate:      cloneTime(entry.ExitDate),
			StatusMessage: entry.StatusMessage,
		})
	}
	return persistence.Patient{
		ID:            patient.ID,
		FullName:      patient.FullName,
		BirthDate:     patient.BirthDate,
		Phone:         patient.Phone,
		CurrentRoomID: string(patient.CurrentRoomID),
		StatusInRoom:  string(patient.StatusInRoom),
		History:       history,
		RoomData:      roomData,
		CreatedAt:     patient.CreatedAt,
		UpdatedAt:     patient.UpdatedAt,
	}, nil
}

func toWorkflowPatient(model persistence.Patient) (*workflow.Patient, error) {
	var roomData workflow.RoomData
	if len(model.RoomData) > 0 {
		if err := json.Unmarshal(model.RoomData, &roomData); err != nil {
			return nil, fmt.Errorf("failed to parse room data for patient %s: %w", model.ID, err)
		}
	}
	history := make([]workflow.HistoryEntry, 0, len(model.History))
	for _, entry := range model.History {
		history = append(history, workflow.HistoryEntry{
			RoomID:        workflow.RoomID(entry.RoomID),
			EntryDate:     entry.EntryDate,
			ExitDate:      cloneTime(entry.ExitDate),
			StatusMessage: entry.StatusMessage,
		})
	}
	return &workflow.Patient{
		ID:            model.ID,
		FullName:      model.FullName,
		BirthDate:     model.BirthDate,
		Phone:         model.Phone,
		CurrentRoomID: workflow.RoomID(model.CurrentRoomID),
		StatusInRoom:  workflow.Status(model.StatusInRoom),
		History:       history,
		RoomData:      roomData,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}, nil
}

func toApplicationMovement(model persistence.Movement) application.Movement {
	return application.Movement{
		ID:        model.ID,
		Kind:      model.Kind,
		Quantity:  model.Quantity,
		UnitPrice: model.UnitPrice,
		Label:     model.Label,
		Date:      model.Date,
	}
}

func toPersistenceMovement(movement application.Movement) persistence.Movement {
	return persistence.Movement{
		ID:        movement.ID,
		Kind:      movement.Kind,
		Quantity:  movement.Quantity,
		UnitPrice: movement.UnitPrice,
		Label:     movement.Label,
		Date:      movement.Date,
	}
}

func toApplicationMovements(models []persistence.Movement) []application.Movement {
	if len(models) == 0 {
		return nil
	}
	movements := make([]application.Movement, 0, len(models))
	for _, model := range models {
		movements = append(movements, toApplicationMovement(model))
	}
	return movements
}

func toPersistenceMovements(movements []application.Movement) []persistence.Movement {
	if len(movements) == 0 {
		return nil
	}
	models := make([]persistence.Movement, 0, len(movements))
	for _, movement := range movements {
		models = append(models, toPersistenceMovement(movement))
	}
	return models
}

func toApplicationAsset(model persistence.Asset) application.Asset {
	return application.Asset{
		ID:           model.ID,
		Designation:  model.Designation,
		SerialNumber: model.SerialNumber,
		AcquiredAt:   cloneTime(model.AcquiredAt),
		Movements:    toApplicationMovements(model.Movements),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toPersistenceAsset(asset application.Asset) persistence.Asset {
	return persistence.Asset{
		ID:           asset.ID,
		Designation:  asset.Designation,
		SerialNumber: asset.SerialNumber,
		AcquiredAt:   cloneTime(asset.AcquiredAt),
		Movements:    toPersistenceMovements(asset.Movements),
		CreatedAt:    asset.CreatedAt,
		UpdatedAt:    asset.UpdatedAt,
	}
}

func toApplicationStockItem(model persistence.StockItem) application.StockItem {
	return application.StockItem{
		ID:           model.ID,
		Name:         model.Name,
		Unit:         model.Unit,
		CurrentStock: model.CurrentStock,
		Movements:    toApplicationMovements(model.Movements),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toPersistenceStockItem(item application.StockItem) persistence.StockItem {
	return persistence.StockItem{
		ID:           item.ID,
		Name:         item.Name,
		Unit:         item.Unit,
		CurrentStock: item.CurrentStock,
		Movements:    toPersistenceMovements(item.Movements),
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

func toApplicationLot(model persistence.TracerLot) application.TracerLot {
	return application.TracerLot{
		ID:                   model.ID,
		Tracer:               model.Tracer,
		InitialActivityMBq:   model.InitialActivityMBq,
		RemainingActivityMBq: model.RemainingActivityMBq,
		CalibratedAt:         model.CalibratedAt,
		ExpiresAt:            model.ExpiresAt,
		CreatedAt:            model.CreatedAt,
		UpdatedAt:            model.UpdatedAt,
	}
}

func toPersistenceLot(lot application.TracerLot) persistence.TracerLot {
	return persistence.TracerLot{
		ID:                   lot.ID,
		Tracer:               lot.Tracer,
		InitialActivityMBq:   lot.InitialActivityMBq,
		RemainingActivityMBq: lot.RemainingActivityMBq,
		CalibratedAt:         lot.CalibratedAt,
		ExpiresAt:            lot.ExpiresAt,
		CreatedAt:            lot.CreatedAt,
		UpdatedAt:            lot.UpdatedAt,
	}
}

func toApplicationDose(model persistence.DoseRecord) application.DoseRecord {
	return application.DoseRecord{
		ID:             model.ID,
		LotID:          model.LotID,
		PatientID:      model.PatientID,
		ActivityMBq:    model.ActivityMBq,
		PreparedAt:     model.PreparedAt,
		AdministeredAt: cloneTime(model.AdministeredAt),
	}
}

func toPersistenceDose(dose application.DoseRecord) persistence.DoseRecord {
	return persistence.DoseRecord{
		ID:             dose.ID,
		LotID:          dose.LotID,
		PatientID:      dose.PatientID,
		ActivityMBq:    dose.ActivityMBq,
		PreparedAt:     dose.PreparedAt,
		AdministeredAt: cloneTime(dose.AdministeredAt),
	}
}

func toApplicationDoses(models []persistence.DoseRecord) []application.DoseRecord {
	if len(models) == 0 {
		return nil
	}
	doses := make([]application.DoseRecord, 0, len(models))
	for _, model := range models {
		doses = append(doses, toApplicationDose(model))
	}
	return doses
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
