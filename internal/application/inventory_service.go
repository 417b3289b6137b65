package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/nucmed-tracker/internal/persistence"
)

// AssetRepository captures the persistence operations for durable equipment.
type AssetRepository interface {
	CreateAsset(ctx context.Context, asset Asset) (Asset, error)
	UpdateAsset(ctx context.Context, asset Asset) (Asset, error)
	GetAsset(ctx context.Context, id string) (Asset, error)
	ListAssets(ctx context.Context) ([]Asset, error)
	AppendAssetMovement(ctx context.Context, assetID string, movement Movement) error
}

// StockRepository captures the persistence operations for consumables. The
// movement's signed delta is applied to the cached balance by the store
// itself, atomically with the ledger line; a delta that would overdraw the
// balance fails with persistence.ErrInsufficientBalance.
type StockRepository interface {
	CreateStockItem(ctx context.Context, item StockItem) (StockItem, error)
	GetStockItem(ctx context.Context, id string) (StockItem, error)
	ListStockItems(ctx context.Context) ([]StockItem, error)
	AppendStockMovement(ctx context.Context, itemID string, movement Movement, delta int) error
}

// InventoryService orchestrates the patrimony registers: durable assets with
// their life sheets and consumable stock with its ledger.
type InventoryService struct {
	assets      AssetRepository
	stock       StockRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewInventoryService wires dependencies for the inventory service.
func NewInventoryService(assets AssetRepository, stock StockRepository, idGenerator func() string, now func() time.Time) *InventoryService {
	return NewInventoryServiceWithLogger(assets, stock, idGenerator, now, nil)
}

// NewInventoryServiceWithLogger wires dependencies for the inventory service with a specified logger.
func NewInventoryServiceWithLogger(assets AssetRepository, stock StockRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *InventoryService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &InventoryService{
		assets:      assets,
		stock:       stock,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *InventoryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "InventoryService", operation, attrs...)
}

// CreateAsset validates input and registers a durable asset.
func (s *InventoryService) CreateAsset(ctx context.Context, params CreateAssetParams) (asset Asset, err error) {
	if s == nil {
		err = fmt.Errorf("InventoryService is nil")
		return
	}
	if s.assets == nil {
		err = fmt.Errorf("asset repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateAsset", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create asset", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("asset_id", asset.ID).InfoContext(ctx, "asset created")
	}()

	if !params.Principal.HasPermission(PermissionInventoryManage) {
		err = ErrUnauthorized
		return
	}

	normalized := normalizeAssetInput(params.Input)
	vErr := validateAssetInput(normalized)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	candidate := Asset{
		ID:           s.idGenerator(),
		Designation:  normalized.Designation,
		SerialNumber: normalized.SerialNumber,
		AcquiredAt:   normalized.AcquiredAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	asset, err = s.assets.CreateAsset(ctx, candidate)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}
	return
}

// UpdateAsset validates input and updates an asset's descriptive fields.
func (s *InventoryService) UpdateAsset(ctx context.Context, params UpdateAssetParams) (asset Asset, err error) {
	if s == nil {
		err = fmt.Errorf("InventoryService is nil")
		return
	}
	if s.assets == nil {
		err = fmt.Errorf("asset repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateAsset",
		"principal_id", params.Principal.UserID,
		"asset_id", params.AssetID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update asset", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "asset updated")
	}()

	if !params.Principal.HasPermission(PermissionInventoryManage) {
		err = ErrUnauthorized
		return
	}

	var existing Asset
	existing, err = s.assets.GetAsset(ctx, params.AssetID)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}

	normalized := normalizeAssetInput(params.Input)
	vErr := validateAssetInput(normalized)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Designation = normalized.Designation
	updated.SerialNumber = normalized.SerialNumber
	updated.AcquiredAt = normalized.AcquiredAt
	updated.UpdatedAt = s.now()

	asset, err = s.assets.UpdateAsset(ctx, updated)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}
	return
}

// GetAsset returns one asset with its ledger.
func (s *InventoryService) GetAsset(ctx context.Context, principal Principal, assetID string) (Asset, error) {
	if s == nil {
		return Asset{}, fmt.Errorf("InventoryService is nil")
	}
	if s.assets == nil {
		return Asset{}, fmt.Errorf("asset repository not configured")
	}
	if !principal.HasPermission(PermissionInventoryManage) && !principal.HasPermission(PermissionReportsView) {
		return Asset{}, ErrUnauthorized
	}

	asset, err := s.assets.GetAsset(ctx, assetID)
	if err != nil {
		return Asset{}, mapRepositoryError(err)
	}
	return asset, nil
}

// ListAssets returns all assets with their ledgers.
func (s *InventoryService) ListAssets(ctx context.Context, principal Principal) ([]Asset, error) {
	if s == nil {
		return nil, fmt.Errorf("InventoryService is nil")
	}
	if s.assets == nil {
		return nil, fmt.Errorf("asset repository not configured")
	}
	if !principal.HasPermission(PermissionInventoryManage) && !principal.HasPermission(PermissionReportsView) {
		return nil, ErrUnauthorized
	}

	assets, err := s.assets.ListAssets(ctx)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return assets, nil
}

// RecordAssetMovement appends a ledger line to an asset's life sheet.
func (s *InventoryService) RecordAssetMovement(ctx context.Context, params RecordAssetMovementParams) (asset Asset, err error) {
	if s == nil {
		err = fmt.Errorf("InventoryService is nil")
		return
	}
	if s.assets == nil {
		err = fmt.Errorf("asset repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "RecordAssetMovement",
		"principal_id", params.Principal.UserID,
		"asset_id", params.AssetID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to record asset movement", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "asset movement recorded")
	}()

	if !params.Principal.HasPermission(PermissionInventoryManage) {
		err = ErrUnauthorized
		return
	}

	normalized := normalizeMovementInput(params.Input)
	vErr := validateMovementInput(normalized)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, err = s.assets.GetAsset(ctx, params.AssetID); err != nil {
		err = mapRepositoryError(err)
		return
	}

	movement := Movement{
		ID:        s.idGenerator(),
		Kind:      normalized.Kind,
		Quantity:  normalized.Quantity,
		UnitPrice: normalized.UnitPrice,
		Label:     normalized.Label,
		Date:      s.now(),
	}

	if err = s.assets.AppendAssetMovement(ctx, params.AssetID, movement); err != nil {
		err = mapRepositoryError(err)
		return
	}

	asset, err = s.assets.GetAsset(ctx, params.AssetID)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}
	return
}

// CreateStockItem validates input and registers a consumable, recording the
// opening balance as an entry movement when positive.
func (s *InventoryService) CreateStockItem(ctx context.Context, params CreateStockItemParams) (item StockItem, err error) {
	if s == nil {
		err = fmt.Errorf("InventoryService is nil")
		return
	}
	if s.stock == nil {
		err = fmt.Errorf("stock repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateStockItem", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create stock item", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("item_id", item.ID).InfoContext(ctx, "stock item created")
	}()

	if !params.Principal.HasPermission(PermissionInventoryManage) {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	name := strings.TrimSpace(params.Input.Name)
	if name == "" {
		vErr.add("name", "la désignation est obligatoire")
	}
	if params.Input.InitialStock < 0 {
		vErr.add("initial_stock", "le stock initial ne peut pas être négatif")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	candidate := StockItem{
		ID:           s.idGenerator(),
		Name:         name,
		Unit:         strings.TrimSpace(params.Input.Unit),
		CurrentStock: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	item, err = s.stock.CreateStockItem(ctx, candidate)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}

	if params.Input.InitialStock > 0 {
		opening := Movement{
			ID:       s.idGenerator(),
			Kind:     MovementEntry,
			Quantity: params.Input.InitialStock,
			Label:    "Stock initial",
			Date:     now,
		}
		if err = s.stock.AppendStockMovement(ctx, item.ID, opening, params.Input.InitialStock); err != nil {
			err = mapRepositoryError(err)
			return
		}
		item, err = s.stock.GetStockItem(ctx, item.ID)
		if err != nil {
			err = mapRepositoryError(err)
			return
		}
	}
	return
}

// GetStockItem returns one consumable with its ledger.
func (s *InventoryService) GetStockItem(ctx context.Context, principal Principal, itemID string) (StockItem, error) {
	if s == nil {
		return StockItem{}, fmt.Errorf("InventoryService is nil")
	}
	if s.stock == nil {
		return StockItem{}, fmt.Errorf("stock repository not configured")
	}
	if !principal.HasPermission(PermissionInventoryManage) && !principal.HasPermission(PermissionReportsView) {
		return StockItem{}, ErrUnauthorized
	}

	item, err := s.stock.GetStockItem(ctx, itemID)
	if err != nil {
		return StockItem{}, mapRepositoryError(err)
	}
	return item, nil
}

// ListStockItems returns all consumables with their ledgers.
func (s *InventoryService) ListStockItems(ctx context.Context, principal Principal) ([]StockItem, error) {
	if s == nil {
		return nil, fmt.Errorf("InventoryService is nil")
	}
	if s.stock == nil {
		return nil, fmt.Errorf("stock repository not configured")
	}
	if !principal.HasPermission(PermissionInventoryManage) && !principal.HasPermission(PermissionReportsView) {
		return nil, ErrUnauthorized
	}

	items, err := s.stock.ListStockItems(ctx)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return items, nil
}

// RecordStockMovement appends a ledger line and updates the cached balance.
// The balance check runs inside the store's transaction, so two overlapping
// exits cannot both pass on the same snapshot; the losing one comes back as
// a validation error.
func (s *InventoryService) RecordStockMovement(ctx context.Context, params RecordStockMovementParams) (item StockItem, err error) {
	if s == nil {
		err = fmt.Errorf("InventoryService is nil")
		return
	}
	if s.stock == nil {
		err = fmt.Errorf("stock repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "RecordStockMovement",
		"principal_id", params.Principal.UserID,
		"item_id", params.ItemID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to record stock movement", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("current_stock", item.CurrentStock).InfoContext(ctx, "stock movement recorded")
	}()

	if !params.Principal.HasPermission(PermissionInventoryManage) {
		err = ErrUnauthorized
		return
	}

	normalized := normalizeMovementInput(params.Input)
	vErr := validateMovementInput(normalized)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	delta := normalized.Quantity
	if normalized.Kind == MovementExit {
		delta = -delta
	}

	movement := Movement{
		ID:        s.idGenerator(),
		Kind:      normalized.Kind,
		Quantity:  normalized.Quantity,
		UnitPrice: normalized.UnitPrice,
		Label:     normalized.Label,
		Date:      s.now(),
	}

	if err = s.stock.AppendStockMovement(ctx, params.ItemID, movement, delta); err != nil {
		if errors.Is(err, persistence.ErrInsufficientBalance) {
			vErr := &ValidationError{}
			vErr.add("quantity", "stock insuffisant pour cette sortie")
			err = vErr
			return
		}
		err = mapRepositoryError(err)
		return
	}

	item, err = s.stock.GetStockItem(ctx, params.ItemID)
	if err != nil {
		err = mapRepositoryError(err)
		return
	}
	return
}

func normalizeAssetInput(input AssetInput) AssetInput {
	return AssetInput{
		Designation:  strings.TrimSpace(input.Designation),
		SerialNumber: strings.TrimSpace(input.SerialNumber),
		AcquiredAt:   input.AcquiredAt,
	}
}

func validateAssetInput(input AssetInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Designation == "" {
		vErr.add("designation", "la désignation est obligatoire")
	}
	return vErr
}

func normalizeMovementInput(input MovementInput) MovementInput {
	return MovementInput{
		Kind:      strings.TrimSpace(input.Kind),
		Quantity:  input.Quantity,
		UnitPrice: input.UnitPrice,
		Label:     strings.TrimSpace(input.Label),
	}
}

func validateMovementInput(input MovementInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Kind != MovementEntry && input.Kind != MovementExit {
		vErr.add("kind", "le type de mouvement doit être entry ou exit")
	}
	if input.Quantity <= 0 {
		vErr.add("quantity", "la quantité doit être strictement positive")
	}
	if input.UnitPrice < 0 {
		vErr.add("unit_price", "le prix unitaire ne peut pas être négatif")
	}
	return vErr
}
