package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/nucmed-tracker/internal/application"
)

type inventoryService interface {
	CreateAsset(ctx context.Context, params application.CreateAssetParams) (application.Asset, error)
	UpdateAsset(ctx context.Context, params application.UpdateAssetParams) (application.Asset, error)
	GetAsset(ctx context.Context, principal application.Principal, assetID string) (application.Asset, error)
	ListAssets(ctx context.Context, principal application.Principal) ([]application.Asset, error)
	RecordAssetMovement(ctx context.Context, params application.RecordAssetMovementParams) (application.Asset, error)
	CreateStockItem(ctx context.Context, params application.CreateStockItemParams) (application.StockItem, error)
	GetStockItem(ctx context.Context, principal application.Principal, itemID string) (application.StockItem, error)
	ListStockItems(ctx context.Context, principal application.Principal) ([]application.StockItem, error)
	RecordStockMovement(ctx context.Context, params application.RecordStockMovementParams) (application.StockItem, error)
}

// lifeSheetExporter renders an asset's movement ledger as a spreadsheet.
type lifeSheetExporter interface {
	LifeSheet(asset application.Asset) ([]byte, error)
}

type InventoryHandler struct {
	service   inventoryService
	exporter  lifeSheetExporter
	responder responder
	logger    *slog.Logger
}

func NewInventoryHandler(service inventoryService, exporter lifeSheetExporter, logger *slog.Logger) *InventoryHandler {
	base := defaultLogger(logger)
	return &InventoryHandler{service: service, exporter: exporter, responder: newResponder(base), logger: base}
}

func (h *InventoryHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "InventoryHandler", operation, attrs...)
}

func (h *InventoryHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req assetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateAsset", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode asset request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateAsset", "principal_id", principal.UserID)

	asset, err := h.service.CreateAsset(r.Context(), application.CreateAssetParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "asset creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("asset_id", asset.ID).InfoContext(r.Context(), "asset created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, assetResponse{Asset: toAssetDTO(asset)})
}

func (h *InventoryHandler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	assetID, ok := AssetIDFromContext(r.Context())
	if !ok || strings.TrimSpace(assetID) == "" {
		h.log(r.Context(), "UpdateAsset", "error_kind", "bad_request").ErrorContext(r.Context(), "missing asset id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAssetID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req assetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateAsset", "principal_id", principal.UserID, "asset_id", assetID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode asset update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateAsset", "principal_id", principal.UserID, "asset_id", assetID)

	asset, err := h.service.UpdateAsset(r.Context(), application.UpdateAssetParams{
		Principal: principal,
		AssetID:   assetID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "asset update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "asset updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, assetResponse{Asset: toAssetDTO(asset)})
}

func (h *InventoryHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	assetID, ok := AssetIDFromContext(r.Context())
	if !ok || strings.TrimSpace(assetID) == "" {
		h.log(r.Context(), "GetAsset", "error_kind", "bad_request").ErrorContext(r.Context(), "missing asset id for fetch")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAssetID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "GetAsset", "principal_id", principal.UserID, "asset_id", assetID)

	asset, err := h.service.GetAsset(r.Context(), principal, assetID)
	if err != nil {
		logger.ErrorContext(r.Context(), "asset fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, assetResponse{Asset: toAssetDTO(asset)})
}

func (h *InventoryHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ListAssets", "principal_id", principal.UserID)

	assets, err := h.service.ListAssets(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "asset list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(assets)).InfoContext(r.Context(), "assets listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAssetsResponse{Assets: toAssetDTOs(assets)})
}

func (h *InventoryHandler) RecordAssetMovement(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	assetID, ok := AssetIDFromContext(r.Context())
	if !ok || strings.TrimSpace(assetID) == "" {
		h.log(r.Context(), "RecordAssetMovement", "error_kind", "bad_request").ErrorContext(r.Context(), "missing asset id for movement")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAssetID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "RecordAssetMovement", "principal_id", principal.UserID, "asset_id", assetID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode movement request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "RecordAssetMovement", "principal_id", principal.UserID, "asset_id", assetID)

	asset, err := h.service.RecordAssetMovement(r.Context(), application.RecordAssetMovementParams{
		Principal: principal,
		AssetID:   assetID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "asset movement failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "asset movement recorded")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, assetResponse{Asset: toAssetDTO(asset)})
}

// DownloadLifeSheet streams the asset ledger as an xlsx workbook.
func (h *InventoryHandler) DownloadLifeSheet(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.exporter == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	assetID, ok := AssetIDFromContext(r.Context())
	if !ok || strings.TrimSpace(assetID) == "" {
		h.log(r.Context(), "DownloadLifeSheet", "error_kind", "bad_request").ErrorContext(r.Context(), "missing asset id for life sheet")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAssetID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "DownloadLifeSheet", "principal_id", principal.UserID, "asset_id", assetID)

	asset, err := h.service.GetAsset(r.Context(), principal, assetID)
	if err != nil {
		logger.ErrorContext(r.Context(), "asset fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload, err := h.exporter.LifeSheet(asset)
	if err != nil {
		logger.ErrorContext(r.Context(), "life sheet export failed", "error", err)
		h.responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "la génération de la fiche de vie a échoué."})
		return
	}

	logger.With("size_bytes", len(payload)).InfoContext(r.Context(), "life sheet exported")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "fiche-de-vie-"+asset.ID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		logger.ErrorContext(r.Context(), "failed to write life sheet response", "error", err)
	}
}

func (h *InventoryHandler) CreateStockItem(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req stockItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateStockItem", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode stock item request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateStockItem", "principal_id", principal.UserID)

	item, err := h.service.CreateStockItem(r.Context(), application.CreateStockItemParams{
		Principal: principal,
		Input: application.StockItemInput{
			Name:         strings.TrimSpace(req.Name),
			Unit:         strings.TrimSpace(req.Unit),
			InitialStock: req.InitialStock,
		},
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "stock item creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("item_id", item.ID).InfoContext(r.Context(), "stock item created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, stockItemResponse{Item: toStockItemDTO(item)})
}

func (h *InventoryHandler) GetStockItem(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	itemID, ok := ItemIDFromContext(r.Context())
	if !ok || strings.TrimSpace(itemID) == "" {
		h.log(r.Context(), "GetStockItem", "error_kind", "bad_request").ErrorContext(r.Context(), "missing item id for fetch")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidItemID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "GetStockItem", "principal_id", principal.UserID, "item_id", itemID)

	item, err := h.service.GetStockItem(r.Context(), principal, itemID)
	if err != nil {
		logger.ErrorContext(r.Context(), "stock item fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, stockItemResponse{Item: toStockItemDTO(item)})
}

func (h *InventoryHandler) ListStockItems(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ListStockItems", "principal_id", principal.UserID)

	items, err := h.service.ListStockItems(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "stock list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(items)).InfoContext(r.Context(), "stock items listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listStockItemsResponse{Items: toStockItemDTOs(items)})
}

func (h *InventoryHandler) RecordStockMovement(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	itemID, ok := ItemIDFromContext(r.Context())
	if !ok || strings.TrimSpace(itemID) == "" {
		h.log(r.Context(), "RecordStockMovement", "error_kind", "bad_request").ErrorContext(r.Context(), "missing item id for movement")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidItemID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "RecordStockMovement", "principal_id", principal.UserID, "item_id", itemID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode movement request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "RecordStockMovement", "principal_id", principal.UserID, "item_id", itemID)

	item, err := h.service.RecordStockMovement(r.Context(), application.RecordStockMovementParams{
		Principal: principal,
		ItemID:    itemID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "stock movement failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("current_stock", item.CurrentStock).InfoContext(r.Context(), "stock movement recorded")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, stockItemResponse{Item: toStockItemDTO(item)})
}

type assetRequest struct {
	Designation  string `json:"designation"`
	SerialNumber string `json:"serial_number"`
	AcquiredAt   string `json:"acquired_at"`
}

func (r assetRequest) toInput() application.AssetInput {
	input := application.AssetInput{
		Designation:  strings.TrimSpace(r.Designation),
		SerialNumber: strings.TrimSpace(r.SerialNumber),
	}
	if trimmed := strings.TrimSpace(r.AcquiredAt); trimmed != "" {
		if acquired, err := parseDate(trimmed); err == nil {
			input.AcquiredAt = &acquired
		}
	}
	return input
}

type movementRequest struct {
	Kind      string  `json:"kind"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Label     string  `json:"label"`
}

func (r movementRequest) toInput() application.MovementInput {
	return application.MovementInput{
		Kind:      strings.TrimSpace(r.Kind),
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		Label:     strings.TrimSpace(r.Label),
	}
}

type stockItemRequest struct {
	Name         string `json:"name"`
	Unit         string `json:"unit"`
	InitialStock int    `json:"initial_stock"`
}

type assetResponse struct {
	Asset assetDTO `json:"asset"`
}

type listAssetsResponse struct {
	Assets []assetDTO `json:"assets"`
}

type stockItemResponse struct {
	Item stockItemDTO `json:"item"`
}

type listStockItemsResponse struct {
	Items []stockItemDTO `json:"items"`
}

type movementDTO struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Label     string  `json:"label,omitempty"`
	Date      string  `json:"date"`
}

type assetDTO struct {
	ID           string        `json:"id"`
	Designation  string        `json:"designation"`
	SerialNumber string        `json:"serial_number,omitempty"`
	AcquiredAt   string        `json:"acquired_at,omitempty"`
	Movements    []movementDTO `json:"movements"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
}

type stockItemDTO struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Unit         string        `json:"unit,omitempty"`
	CurrentStock int           `json:"current_stock"`
	Movements    []movementDTO `json:"movements"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
}

func toMovementDTOs(movements []application.Movement) []movementDTO {
	if len(movements) == 0 {
		return nil
	}
	out := make([]movementDTO, 0, len(movements))
	for _, movement := range movements {
		out = append(out, movementDTO{
			ID:        movement.ID,
			Kind:      movement.Kind,
			Quantity:  movement.Quantity,
			UnitPrice: movement.UnitPrice,
			Label:     movement.Label,
			Date:      movement.Date.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

func toAssetDTO(asset application.Asset) assetDTO {
	dto := assetDTO{
		ID:           asset.ID,
		Designation:  asset.Designation,
		SerialNumber: asset.SerialNumber,
		Movements:    toMovementDTOs(asset.Movements),
		CreatedAt:    asset.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    asset.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if asset.AcquiredAt != nil {
		dto.AcquiredAt = asset.AcquiredAt.UTC().Format("2006-01-02")
	}
	return dto
}

func toAssetDTOs(assets []application.Asset) []assetDTO {
	if len(assets) == 0 {
		return nil
	}
	out := make([]assetDTO, 0, len(assets))
	for _, asset := range assets {
		out = append(out, toAssetDTO(asset))
	}
	return out
}

func toStockItemDTO(item application.StockItem) stockItemDTO {
	return stockItemDTO{
		ID:           item.ID,
		Name:         item.Name,
		Unit:         item.Unit,
		CurrentStock: item.CurrentStock,
		Movements:    toMovementDTOs(item.Movements),
		CreatedAt:    item.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    item.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toStockItemDTOs(items []application.StockItem) []stockItemDTO {
	if len(items) == 0 {
		return nil
	}
	out := make([]stockItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, toStockItemDTO(item))
	}
	return out
}
