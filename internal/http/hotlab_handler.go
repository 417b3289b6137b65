package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/nucmed-tracker/internal/application"
)

type hotLabService interface {
	CreateLot(ctx context.Context, params application.CreateLotParams) (application.TracerLot, error)
	GetLot(ctx context.Context, principal application.Principal, lotID string) (application.TracerLot, error)
	ListLots(ctx context.Context, principal application.Principal) ([]application.TracerLot, error)
	PrepareDose(ctx context.Context, params application.PrepareDoseParams) (application.DoseRecord, error)
	AdministerDose(ctx context.Context, principal application.Principal, doseID string) error
	ListDosesForLot(ctx context.Context, principal application.Principal, lotID string) ([]application.DoseRecord, error)
}

type HotLabHandler struct {
	service   hotLabService
	responder responder
	logger    *slog.Logger
}

func NewHotLabHandler(service hotLabService, logger *slog.Logger) *HotLabHandler {
	base := defaultLogger(logger)
	return &HotLabHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *HotLabHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "HotLabHandler", operation, attrs...)
}

func (h *HotLabHandler) CreateLot(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req lotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateLot", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode lot request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.log(r.Context(), "CreateLot", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid lot payload", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "CreateLot", "principal_id", principal.UserID, "tracer", input.Tracer)

	lot, err := h.service.CreateLot(r.Context(), application.CreateLotParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "lot creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("lot_id", lot.ID).InfoContext(r.Context(), "tracer lot created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, lotResponse{Lot: toLotDTO(lot)})
}

func (h *HotLabHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	lotID, ok := LotIDFromContext(r.Context())
	if !ok || strings.TrimSpace(lotID) == "" {
		h.log(r.Context(), "GetLot", "error_kind", "bad_request").ErrorContext(r.Context(), "missing lot id for fetch")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLotID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "GetLot", "principal_id", principal.UserID, "lot_id", lotID)

	lot, err := h.service.GetLot(r.Context(), principal, lotID)
	if err != nil {
		logger.ErrorContext(r.Context(), "lot fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, lotResponse{Lot: toLotDTO(lot)})
}

func (h *HotLabHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ListLots", "principal_id", principal.UserID)

	lots, err := h.service.ListLots(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "lot list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(lots)).InfoContext(r.Context(), "tracer lots listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listLotsResponse{Lots: toLotDTOs(lots)})
}

func (h *HotLabHandler) PrepareDose(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	lotID, ok := LotIDFromContext(r.Context())
	if !ok || strings.TrimSpace(lotID) == "" {
		h.log(r.Context(), "PrepareDose", "error_kind", "bad_request").ErrorContext(r.Context(), "missing lot id for dose preparation")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLotID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req doseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "PrepareDose", "principal_id", principal.UserID, "lot_id", lotID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode dose request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "PrepareDose",
		"principal_id", principal.UserID,
		"lot_id", lotID,
		"patient_id", req.PatientID,
	)

	dose, err := h.service.PrepareDose(r.Context(), application.PrepareDoseParams{
		Principal:   principal,
		LotID:       lotID,
		PatientID:   strings.TrimSpace(req.PatientID),
		ActivityMBq: req.ActivityMBq,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "dose preparation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("dose_id", dose.ID).InfoContext(r.Context(), "dose prepared")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, doseResponse{Dose: toDoseDTO(dose)})
}

func (h *HotLabHandler) ListDoses(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	lotID, ok := LotIDFromContext(r.Context())
	if !ok || strings.TrimSpace(lotID) == "" {
		h.log(r.Context(), "ListDoses", "error_kind", "bad_request").ErrorContext(r.Context(), "missing lot id for dose listing")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLotID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ListDoses", "principal_id", principal.UserID, "lot_id", lotID)

	doses, err := h.service.ListDosesForLot(r.Context(), principal, lotID)
	if err != nil {
		logger.ErrorContext(r.Context(), "dose list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(doses)).InfoContext(r.Context(), "doses listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listDosesResponse{Doses: toDoseDTOs(doses)})
}

// AdministerDose marks the dose as injected. The dose identifier arrives as a
// path segment resolved by the router.
func (h *HotLabHandler) AdministerDose(w http.ResponseWriter, r *http.Request, doseID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	trimmed := strings.TrimSpace(doseID)
	if trimmed == "" {
		h.log(r.Context(), "AdministerDose", "error_kind", "bad_request").ErrorContext(r.Context(), "missing dose id for administration")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDoseID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "AdministerDose", "principal_id", principal.UserID, "dose_id", trimmed)

	if err := h.service.AdministerDose(r.Context(), principal, trimmed); err != nil {
		logger.ErrorContext(r.Context(), "dose administration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "dose administered")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type lotRequest struct {
	Tracer             string  `json:"tracer"`
	InitialActivityMBq float64 `json:"initial_activity_mbq"`
	CalibratedAt       string  `json:"calibrated_at"`
	ExpiresAt          string  `json:"expires_at"`
}

func (r lotRequest) toInput() (application.LotInput, error) {
	input := application.LotInput{
		Tracer:             strings.TrimSpace(r.Tracer),
		InitialActivityMBq: r.InitialActivityMBq,
	}
	if trimmed := strings.TrimSpace(r.CalibratedAt); trimmed != "" {
		calibrated, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return application.LotInput{}, errInvalidTimestamp
		}
		input.CalibratedAt = calibrated
	}
	if trimmed := strings.TrimSpace(r.ExpiresAt); trimmed != "" {
		expires, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return application.LotInput{}, errInvalidTimestamp
		}
		input.ExpiresAt = expires
	}
	return input, nil
}

type doseRequest struct {
	PatientID   string  `json:"patient_id"`
	ActivityMBq float64 `json:"activity_mbq"`
}

type lotResponse struct {
	Lot lotDTO `json:"lot"`
}

type listLotsResponse struct {
	Lots []lotDTO `json:"lots"`
}

type doseResponse struct {
	Dose doseDTO `json:"dose"`
}

type listDosesResponse struct {
	Doses []doseDTO `json:"doses"`
}

type lotDTO struct {
	ID                   string  `json:"id"`
	Tracer               string  `json:"tracer"`
	InitialActivityMBq   float64 `json:"initial_activity_mbq"`
	RemainingActivityMBq float64 `json:"remaining_activity_mbq"`
	CalibratedAt         string  `json:"calibrated_at"`
	ExpiresAt            string  `json:"expires_at"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

type doseDTO struct {
	ID             string  `json:"id"`
	LotID          string  `json:"lot_id"`
	PatientID      string  `json:"patient_id"`
	ActivityMBq    float64 `json:"activity_mbq"`
	PreparedAt     string  `json:"prepared_at"`
	AdministeredAt *string `json:"administered_at,omitempty"`
}

func toLotDTO(lot application.TracerLot) lotDTO {
	return lotDTO{
		ID:                   lot.ID,
		Tracer:               lot.Tracer,
		InitialActivityMBq:   lot.InitialActivityMBq,
		RemainingActivityMBq: lot.RemainingActivityMBq,
		CalibratedAt:         lot.CalibratedAt.UTC().Format(time.RFC3339Nano),
		ExpiresAt:            lot.ExpiresAt.UTC().Format(time.RFC3339Nano),
		CreatedAt:            lot.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:            lot.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toLotDTOs(lots []application.TracerLot) []lotDTO {
	if len(lots) == 0 {
		return nil
	}
	out := make([]lotDTO, 0, len(lots))
	for _, lot := range lots {
		out = append(out, toLotDTO(lot))
	}
	return out
}

func toDoseDTO(dose application.DoseRecord) doseDTO {
	dto := doseDTO{
		ID:          dose.ID,
		LotID:       dose.LotID,
		PatientID:   dose.PatientID,
		ActivityMBq: dose.ActivityMBq,
		PreparedAt:  dose.PreparedAt.UTC().Format(time.RFC3339Nano),
	}
	if dose.AdministeredAt != nil {
		administered := dose.AdministeredAt.UTC().Format(time.RFC3339Nano)
		dto.AdministeredAt = &administered
	}
	return dto
}

func toDoseDTOs(doses []application.DoseRecord) []doseDTO {
	if len(doses) == 0 {
		return nil
	}
	out := make([]doseDTO, 0, len(doses))
	for _, dose := range doses {
		out = append(out, toDoseDTO(dose))
	}
	return out
}
