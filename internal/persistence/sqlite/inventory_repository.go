package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/nucmed-tracker/internal/persistence"
)

// AssetRepository implements persistence.AssetRepository over SQLite.
type AssetRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
}

// NewAssetRepository creates a new SQLite asset repository.
func NewAssetRepository(pool *ConnectionPool) *AssetRepository {
	return &AssetRepository{pool: pool, helper: NewQueryHelper(pool)}
}

// CreateAsset inserts a new asset.
func (r *AssetRepository) CreateAsset(ctx context.Context, asset persistence.Asset) error {
	if asset.ID == "" || asset.Designation == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO assets (id, designation, serial_number, acquired_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		asset.ID,
		asset.Designation,
		asset.SerialNumber,
		encodeTimePtr(asset.AcquiredAt),
		encodeTime(asset.CreatedAt),
		encodeTime(asset.UpdatedAt),
	)
	return mapError(err)
}

// UpdateAsset updates an existing asset's descriptive fields.
func (r *AssetRepository) UpdateAsset(ctx context.Context, asset persistence.Asset) error {
	if asset.ID == "" || asset.Designation == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE assets
		SET designation = ?, serial_number = ?, acquired_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		asset.Designation,
		asset.SerialNumber,
		encodeTimePtr(asset.AcquiredAt),
		encodeTime(asset.UpdatedAt),
		asset.ID,
	)
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

// GetAsset retrieves an asset with its movement ledger.
func (r *AssetRepository) GetAsset(ctx context.Context, id string) (persistence.Asset, error) {
	if id == "" {
		return persistence.Asset{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `
		SELECT id, designation, serial_number, acquired_at, created_at, updated_at
		FROM assets WHERE id = ?
	`, id)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Asset{}, persistence.ErrNotFound
		}
		return persistence.Asset{}, err
	}

	movements, err := r.loadMovements(ctx, `asset_movements`, `asset_id`, id)
	if err != nil {
		return persistence.Asset{}, err
	}
	asset.Movements = movements
	return asset, nil
}

// ListAssets returns all assets with their ledgers, ordered by designation.
func (r *AssetRepository) ListAssets(ctx context.Context) ([]persistence.Asset, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, designation, serial_number, acquired_at, created_at, updated_at
		FROM assets ORDER BY designation ASC, id ASC
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var assets []persistence.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	for i := range assets {
		movements, err := r.loadMovements(ctx, `asset_movements`, `asset_id`, assets[i].ID)
		if err != nil {
			return nil, err
		}
		assets[i].Movements = movements
	}
	return assets, nil
}

// AppendAssetMovement records one ledger line for an asset.
func (r *AssetRepository) AppendAssetMovement(ctx context.Context, assetID string, movement persistence.Movement) error {
	if assetID == "" || movement.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO asset_movements (id, asset_id, kind, quantity, unit_price, label, moved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		movement.ID,
		assetID,
		movement.Kind,
		movement.Quantity,
		movement.UnitPrice,
		movement.Label,
		encodeTime(movement.Date),
	)
	return mapError(err)
}

func (r *AssetRepository) loadMovements(ctx context.Context, table, ownerColumn, ownerID string) ([]persistence.Movement, error) {
	return loadMovements(ctx, r.helper, table, ownerColumn, ownerID)
}

// StockRepository implements persistence.StockRepository over SQLite.
type StockRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
}

// NewStockRepository creates a new SQLite stock repository.
func NewStockRepository(pool *ConnectionPool) *StockRepository {
	return &StockRepository{pool: pool, helper: NewQueryHelper(pool)}
}

// CreateStockItem inserts a new consumable.
func (r *StockRepository) CreateStockItem(ctx context.Context, item persistence.StockItem) error {
	if item.ID == "" || item.Name == "" {
		return persistence.ErrConstraintViolation
	}
	if item.CurrentStock < 0 {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO stock_items (id, name, unit, current_stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		item.ID,
		item.Name,
		item.Unit,
		item.CurrentStock,
		encodeTime(item.CreatedAt),
		encodeTime(item.UpdatedAt),
	)
	return mapError(err)
}

// GetStockItem retrieves a consumable with its movement ledger.
func (r *StockRepository) GetStockItem(ctx context.Context, id string) (persistence.StockItem, error) {
	if id == "" {
		return persistence.StockItem{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `
		SELECT id, name, unit, current_stock, created_at, updated_at
		FROM stock_items WHERE id = ?
	`, id)
	item, err := scanStockItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.StockItem{}, persistence.ErrNotFound
		}
		return persistence.StockItem{}, err
	}

	movements, err := loadMovements(ctx, r.helper, `stock_movements`, `item_id`, id)
	if err != nil {
		return persistence.StockItem{}, err
	}
	item.Movements = movements
	return item, nil
}

// ListStockItems returns all consumables with their ledgers, ordered by name.
func (r *StockRepository) ListStockItems(ctx context.Context) ([]persistence.StockItem, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, name, unit, current_stock, created_at, updated_at
		FROM stock_items ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var items []persistence.StockItem
	for rows.Next() {
		item, err := scanStockItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	for i := range items {
		movements, err := loadMovements(ctx, r.helper, `stock_movements`, `item_id`, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Movements = movements
	}
	return items, nil
}

// AppendStockMovement applies the signed delta and writes the ledger line in
// a single transaction. The balance guard lives in the UPDATE itself, so two
// overlapping exits race on the stored balance, not on stale reads: the
// second one fails with ErrInsufficientBalance instead of overdrawing.
func (r *StockRepository) AppendStockMovement(ctx context.Context, itemID string, movement persistence.Movement, delta int) error {
	if itemID == "" || movement.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE stock_items SET current_stock = current_stock + ?, updated_at = ?
			WHERE id = ? AND current_stock + ? >= 0
		`, delta, encodeTime(movement.Date), itemID, delta)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return mapError(err)
		}
		if affected == 0 {
			var known int
			if err := tx.QueryRow(`SELECT COUNT(1) FROM stock_items WHERE id = ?`, itemID).Scan(&known); err != nil {
				return mapError(err)
			}
			if known == 0 {
				return persistence.ErrNotFound
			}
			return persistence.ErrInsufficientBalance
		}

		if _, err := tx.Exec(`
			INSERT INTO stock_movements (id, item_id, kind, quantity, unit_price, label, moved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			movement.ID,
			itemID,
			movement.Kind,
			movement.Quantity,
			movement.UnitPrice,
			movement.Label,
			encodeTime(movement.Date),
		); err != nil {
			return mapError(err)
		}
		return nil
	})
}

func scanAsset(scanner rowScanner) (persistence.Asset, error) {
	var asset persistence.Asset
	var acquiredAt sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&asset.ID,
		&asset.Designation,
		&asset.SerialNumber,
		&acquiredAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Asset{}, err
		}
		return persistence.Asset{}, mapError(err)
	}

	var err error
	if asset.AcquiredAt, err = decodeTimePtr(acquiredAt); err != nil {
		return persistence.Asset{}, err
	}
	if asset.CreatedAt, err = decodeTime(createdAt); err != nil {
		return persistence.Asset{}, err
	}
	if asset.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return persistence.Asset{}, err
	}
	return asset, nil
}

func scanStockItem(scanner rowScanner) (persistence.StockItem, error) {
	var item persistence.StockItem
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&item.ID,
		&item.Name,
		&item.Unit,
		&item.CurrentStock,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.StockItem{}, err
		}
		return persistence.StockItem{}, mapError(err)
	}

	var err error
	if item.CreatedAt, err = decodeTime(createdAt); err != nil {
		return persistence.StockItem{}, err
	}
	if item.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return persistence.StockItem{}, err
	}
	return item, nil
}

// loadMovements reads one ledger ordered by date then ID. Both ledgers share
// the same column layout, only the table and owner column differ.
func loadMovements(ctx context.Context, helper *QueryHelper, table, ownerColumn, ownerID string) ([]persistence.Movement, error) {
	rows, err := helper.Query(ctx, `
		SELECT id, kind, quantity, unit_price, label, moved_at
		FROM `+table+`
		WHERE `+ownerColumn+` = ?
		ORDER BY moved_at ASC, id ASC
	`, ownerID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var movements []persistence.Movement
	for rows.Next() {
		var movement persistence.Movement
		var movedAt string
		if err := rows.Scan(
			&movement.ID,
			&movement.Kind,
			&movement.Quantity,
			&movement.UnitPrice,
			&movement.Label,
			&movedAt,
		); err != nil {
			return nil, mapError(err)
		}
		if movement.Date, err = decodeTime(movedAt); err != nil {
			return nil, err
		}
		movements = append(movements, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return movements, nil
}
