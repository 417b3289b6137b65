package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/nucmed-tracker/internal/persistence"
)

func inventoryPrincipal() Principal {
	return Principal{
		UserID:      "staff-1",
		RoleID:      "admin",
		Permissions: []string{PermissionInventoryManage, PermissionReportsView},
	}
}

func TestInventoryService_Assets(t *testing.T) {
	t.Parallel()

	t.Run("creates an asset and appends ledger lines", func(t *testing.T) {
		t.Parallel()

		assets := newAssetRepositoryStub()
		svc := NewInventoryService(assets, newStockRepositoryStub(), sequenceIDs("inv"), fixedNow)

		asset, err := svc.CreateAsset(context.Background(), CreateAssetParams{
			Principal: inventoryPrincipal(),
			Input:     AssetInput{Designation: "Gamma caméra", SerialNumber: "GC-2040"},
		})
		if err != nil {
			t.Fatalf("CreateAsset failed: %v", err)
		}

		updated, err := svc.RecordAssetMovement(context.Background(), RecordAssetMovementParams{
			Principal: inventoryPrincipal(),
			AssetID:   asset.ID,
			Input:     MovementInput{Kind: MovementEntry, Quantity: 1, UnitPrice: 250000, Label: "Acquisition"},
		})
		if err != nil {
			t.Fatalf("RecordAssetMovement failed: %v", err)
		}
		if len(updated.Movements) != 1 || updated.Movements[0].Label != "Acquisition" {
			t.Fatalf("unexpected ledger: %#v", updated.Movements)
		}
	})

	t.Run("rejects movements with a bad kind", func(t *testing.T) {
		t.Parallel()

		assets := newAssetRepositoryStub()
		svc := NewInventoryService(assets, newStockRepositoryStub(), sequenceIDs("inv"), fixedNow)

		asset, err := svc.CreateAsset(context.Background(), CreateAssetParams{
			Principal: inventoryPrincipal(),
			Input:     AssetInput{Designation: "Activimètre"},
		})
		if err != nil {
			t.Fatalf("CreateAsset failed: %v", err)
		}

		_, err = svc.RecordAssetMovement(context.Background(), RecordAssetMovementParams{
			Principal: inventoryPrincipal(),
			AssetID:   asset.ID,
			Input:     MovementInput{Kind: "transfer", Quantity: 1},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("requires the inventory permission", func(t *testing.T) {
		t.Parallel()

		svc := NewInventoryService(newAssetRepositoryStub(), newStockRepositoryStub(), sequenceIDs("inv"), fixedNow)
		_, err := svc.CreateAsset(context.Background(), CreateAssetParams{
			Principal: Principal{UserID: "staff-1"},
			Input:     AssetInput{Designation: "Gamma caméra"},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestInventoryService_Stock(t *testing.T) {
	t.Parallel()

	t.Run("records the opening balance as an entry", func(t *testing.T) {
		t.Parallel()

		stock := newStockRepositoryStub()
		svc := NewInventoryService(newAssetRepositoryStub(), stock, sequenceIDs("inv"), fixedNow)

		item, err := svc.CreateStockItem(context.Background(), CreateStockItemParams{
			Principal: inventoryPrincipal(),
			Input:     StockItemInput{Name: "Seringues 5 mL", Unit: "boîte", InitialStock: 40},
		})
		if err != nil {
			t.Fatalf("CreateStockItem failed: %v", err)
		}
		if item.CurrentStock != 40 {
			t.Fatalf("expected opening stock 40, got %d", item.CurrentStock)
		}
		if len(item.Movements) != 1 || item.Movements[0].Kind != MovementEntry {
			t.Fatalf("expected one opening entry, got %#v", item.Movements)
		}
	})

	t.Run("keeps the cached balance in step with the ledger", func(t *testing.T) {
		t.Parallel()

		stock := newStockRepositoryStub()
		svc := NewInventoryService(newAssetRepositoryStub(), stock, sequenceIDs("inv"), fixedNow)

		item, err := svc.CreateStockItem(context.Background(), CreateStockItemParams{
			Principal: inventoryPrincipal(),
			Input:     StockItemInput{Name: "Gants nitrile", InitialStock: 10},
		})
		if err != nil {
			t.Fatalf("CreateStockItem failed: %v", err)
		}

		item, err = svc.RecordStockMovement(context.Background(), RecordStockMovementParams{
			Principal: inventoryPrincipal(),
			ItemID:    item.ID,
			Input:     MovementInput{Kind: MovementExit, Quantity: 4, Label: "Salle d'injection"},
		})
		if err != nil {
			t.Fatalf("RecordStockMovement failed: %v", err)
		}
		if item.CurrentStock != 6 {
			t.Fatalf("expected balance 6, got %d", item.CurrentStock)
		}

		item, err = svc.RecordStockMovement(context.Background(), RecordStockMovementParams{
			Principal: inventoryPrincipal(),
			ItemID:    item.ID,
			Input:     MovementInput{Kind: MovementEntry, Quantity: 20, Label: "Livraison"},
		})
		if err != nil {
			t.Fatalf("RecordStockMovement failed: %v", err)
		}
		if item.CurrentStock != 26 {
			t.Fatalf("expected balance 26, got %d", item.CurrentStock)
		}
		if len(item.Movements) != 3 {
			t.Fatalf("expected three ledger lines, got %d", len(item.Movements))
		}
	})

	t.Run("enforces the balance at the store, not on the read", func(t *testing.T) {
		t.Parallel()

		stock := newStockRepositoryStub()
		svc := NewInventoryService(newAssetRepositoryStub(), stock, sequenceIDs("inv"), fixedNow)

		item, err := svc.CreateStockItem(context.Background(), CreateStockItemParams{
			Principal: inventoryPrincipal(),
			Input:     StockItemInput{Name: "Seringues 10 mL", InitialStock: 10},
		})
		if err != nil {
			t.Fatalf("CreateStockItem failed: %v", err)
		}

		exit := func() (StockItem, error) {
			return svc.RecordStockMovement(context.Background(), RecordStockMovementParams{
				Principal: inventoryPrincipal(),
				ItemID:    item.ID,
				Input:     MovementInput{Kind: MovementExit, Quantity: 8},
			})
		}

		if _, err := exit(); err != nil {
			t.Fatalf("first exit failed: %v", err)
		}

		// A second writer observing the pre-exit balance of 10 must still be
		// rejected: only 2 remain in the store.
		stock.onGet = func(item StockItem) StockItem {
			item.CurrentStock = 10
			return item
		}
		_, err = exit()
		stock.onGet = nil

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["quantity"]; !ok {
			t.Fatalf("expected quantity error, got %#v", vErr.FieldErrors)
		}

		current, err := svc.GetStockItem(context.Background(), inventoryPrincipal(), item.ID)
		if err != nil {
			t.Fatalf("GetStockItem failed: %v", err)
		}
		if current.CurrentStock != 2 {
			t.Fatalf("expected balance 2, got %d", current.CurrentStock)
		}
		if len(current.Movements) != 2 {
			t.Fatalf("expected the rejected exit to leave no ledger line, got %d", len(current.Movements))
		}
	})

	t.Run("rejects exits beyond the available stock", func(t *testing.T) {
		t.Parallel()

		stock := newStockRepositoryStub()
		svc := NewInventoryService(newAssetRepositoryStub(), stock, sequenceIDs("inv"), fixedNow)

		item, err := svc.CreateStockItem(context.Background(), CreateStockItemParams{
			Principal: inventoryPrincipal(),
			Input:     StockItemInput{Name: "Compresses", InitialStock: 3},
		})
		if err != nil {
			t.Fatalf("CreateStockItem failed: %v", err)
		}

		_, err = svc.RecordStockMovement(context.Background(), RecordStockMovementParams{
			Principal: inventoryPrincipal(),
			ItemID:    item.ID,
			Input:     MovementInput{Kind: MovementExit, Quantity: 5},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["quantity"]; !ok {
			t.Fatalf("expected quantity error, got %#v", vErr.FieldErrors)
		}

		current, err := svc.GetStockItem(context.Background(), inventoryPrincipal(), item.ID)
		if err != nil {
			t.Fatalf("GetStockItem failed: %v", err)
		}
		if current.CurrentStock != 3 {
			t.Fatalf("expected balance untouched at 3, got %d", current.CurrentStock)
		}
	})
}

// assetRepositoryStub provides an in-memory AssetRepository for tests.
type assetRepositoryStub struct {
	assets map[string]Asset
}

func newAssetRepositoryStub() *assetRepositoryStub {
	return &assetRepositoryStub{assets: make(map[string]Asset)}
}

func (r *assetRepositoryStub) CreateAsset(ctx context.Context, asset Asset) (Asset, error) {
	r.assets[asset.ID] = asset
	return asset, nil
}

func (r *assetRepositoryStub) UpdateAsset(ctx context.Context, asset Asset) (Asset, error) {
	existing, ok := r.assets[asset.ID]
	if !ok {
		return Asset{}, ErrNotFound
	}
	asset.Movements = existing.Movements
	r.assets[asset.ID] = asset
	return asset, nil
}

func (r *assetRepositoryStub) GetAsset(ctx context.Context, id string) (Asset, error) {
	asset, ok := r.assets[id]
	if !ok {
		return Asset{}, ErrNotFound
	}
	return asset, nil
}

func (r *assetRepositoryStub) ListAssets(ctx context.Context) ([]Asset, error) {
	out := make([]Asset, 0, len(r.assets))
	for _, asset := range r.assets {
		out = append(out, asset)
	}
	return out, nil
}

func (r *assetRepositoryStub) AppendAssetMovement(ctx context.Context, assetID string, movement Movement) error {
	asset, ok := r.assets[assetID]
	if !ok {
		return ErrNotFound
	}
	asset.Movements = append(asset.Movements, movement)
	r.assets[assetID] = asset
	return nil
}

// stockRepositoryStub provides an in-memory StockRepository for tests. The
// balance guard sits in AppendStockMovement like the real stores; onGet lets
// a test serve a doctored snapshot to simulate a writer racing the read.
type stockRepositoryStub struct {
	items map[string]StockItem
	onGet func(StockItem) StockItem
}

func newStockRepositoryStub() *stockRepositoryStub {
	return &stockRepositoryStub{items: make(map[string]StockItem)}
}

func (r *stockRepositoryStub) CreateStockItem(ctx context.Context, item StockItem) (StockItem, error) {
	r.items[item.ID] = item
	return item, nil
}

func (r *stockRepositoryStub) GetStockItem(ctx context.Context, id string) (StockItem, error) {
	item, ok := r.items[id]
	if !ok {
		return StockItem{}, ErrNotFound
	}
	if r.onGet != nil {
		return r.onGet(item), nil
	}
	return item, nil
}

func (r *stockRepositoryStub) ListStockItems(ctx context.Context) ([]StockItem, error) {
	out := make([]StockItem, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out, nil
}

func (r *stockRepositoryStub) AppendStockMovement(ctx context.Context, itemID string, movement Movement, delta int) error {
	item, ok := r.items[itemID]
	if !ok {
		return ErrNotFound
	}
	newBalance := item.CurrentStock + delta
	if newBalance < 0 {
		return persistence.ErrInsufficientBalance
	}
	item.Movements = append(item.Movements, movement)
	item.CurrentStock = newBalance
	r.items[itemID] = item
	return nil
}
