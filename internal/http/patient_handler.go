package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/nucmed-tracker/internal/application"
	"github.com/example/nucmed-tracker/internal/workflow"
)

type patientService interface {
	RegisterPatient(ctx context.Context, params application.RegisterPatientParams) (*workflow.Patient, error)
	GetPatient(ctx context.Context, principal application.Principal, patientID string) (*workflow.Patient, error)
	ListPatients(ctx context.Context, params application.ListPatientsParams) ([]*workflow.Patient, error)
	CompleteRoom(ctx context.Context, params application.CompleteRoomParams) (*workflow.Patient, error)
	MovePatient(ctx context.Context, params application.MovePatientParams) (*workflow.Patient, error)
	Rooms() []workflow.Room
}

type PatientHandler struct {
	service   patientService
	responder responder
	logger    *slog.Logger
}

func NewPatientHandler(service patientService, logger *slog.Logger) *PatientHandler {
	base := defaultLogger(logger)
	return &PatientHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PatientHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PatientHandler", operation, attrs...)
}

func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode patient request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid patient payload", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	patient, err := h.service.RegisterPatient(r.Context(), application.RegisterPatientParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "patient registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("patient_id", patient.ID).InfoContext(r.Context(), "patient registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, patientResponse{Patient: toPatientDTO(patient)})
}

func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	patientID, ok := PatientIDFromContext(r.Context())
	if !ok || strings.TrimSpace(patientID) == "" {
		h.log(r.Context(), "Get", "error_kind", "bad_request").ErrorContext(r.Context(), "missing patient id for fetch")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPatientID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Get", "principal_id", principal.UserID, "patient_id", patientID)

	patient, err := h.service.GetPatient(r.Context(), principal, patientID)
	if err != nil {
		logger.ErrorContext(r.Context(), "patient fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, patientResponse{Patient: toPatientDTO(patient)})
}

func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	params := application.ListPatientsParams{
		Principal: principal,
		RoomID:    workflow.RoomID(strings.TrimSpace(query.Get("room"))),
		Status:    workflow.Status(strings.TrimSpace(query.Get("status"))),
		Period:    workflow.Period(strings.TrimSpace(query.Get("period"))),
	}

	logger := h.log(r.Context(), "List",
		"principal_id", principal.UserID,
		"room_id", string(params.RoomID),
		"period", string(params.Period),
	)

	patients, err := h.service.ListPatients(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "patient list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(patients)).InfoContext(r.Context(), "patients listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listPatientsResponse{Patients: toPatientDTOs(patients)})
}

func (h *PatientHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	patientID, ok := PatientIDFromContext(r.Context())
	if !ok || strings.TrimSpace(patientID) == "" {
		h.log(r.Context(), "Complete", "error_kind", "bad_request").ErrorContext(r.Context(), "missing patient id for completion")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPatientID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req completeRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Complete", "principal_id", principal.UserID, "patient_id", patientID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode completion request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Complete",
		"principal_id", principal.UserID,
		"patient_id", patientID,
		"room_id", req.RoomID,
	)

	patient, err := h.service.CompleteRoom(r.Context(), application.CompleteRoomParams{
		Principal: principal,
		PatientID: patientID,
		RoomID:    workflow.RoomID(strings.TrimSpace(req.RoomID)),
		Data:      req.Data,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "room completion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("next_room_id", string(patient.CurrentRoomID)).InfoContext(r.Context(), "room completed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, patientResponse{Patient: toPatientDTO(patient)})
}

func (h *PatientHandler) Move(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	patientID, ok := PatientIDFromContext(r.Context())
	if !ok || strings.TrimSpace(patientID) == "" {
		h.log(r.Context(), "Move", "error_kind", "bad_request").ErrorContext(r.Context(), "missing patient id for move")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPatientID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req movePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Move", "principal_id", principal.UserID, "patient_id", patientID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode move request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Move",
		"principal_id", principal.UserID,
		"patient_id", patientID,
		"room_id", req.RoomID,
	)

	patient, err := h.service.MovePatient(r.Context(), application.MovePatientParams{
		Principal: principal,
		PatientID: patientID,
		RoomID:    workflow.RoomID(strings.TrimSpace(req.RoomID)),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "patient move failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "patient moved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, patientResponse{Patient: toPatientDTO(patient)})
}

func (h *PatientHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rooms := h.service.Rooms()
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomDTO{
			ID:             string(room.ID),
			Name:           room.Name,
			NextRoomID:     string(room.NextRoomID),
			AllowedRoleIDs: room.AllowedRoleIDs,
		})
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: out})
}

type patientRequest struct {
	FullName           string `json:"full_name"`
	BirthDate          string `json:"birth_date"`
	Phone              string `json:"phone"`
	RequestedExam      string `json:"requested_exam"`
	ReferringPhysician string `json:"referring_physician"`
}

func (r patientRequest) toInput() (application.PatientInput, error) {
	input := application.PatientInput{
		FullName:           strings.TrimSpace(r.FullName),
		Phone:              strings.TrimSpace(r.Phone),
		RequestedExam:      strings.TrimSpace(r.RequestedExam),
		ReferringPhysician: strings.TrimSpace(r.ReferringPhysician),
	}
	if trimmed := strings.TrimSpace(r.BirthDate); trimmed != "" {
		birthDate, err := parseDate(trimmed)
		if err != nil {
			return application.PatientInput{}, errInvalidBirthDate
		}
		input.BirthDate = birthDate
	}
	return input, nil
}

// parseDate accepts either a bare calendar date or a full RFC 3339 timestamp.
func parseDate(value string) (time.Time, error) {
	if parsed, err := time.Parse("2006-01-02", value); err == nil {
		return parsed, nil
	}
	return time.Parse(time.RFC3339, value)
}

type completeRoomRequest struct {
	RoomID string            `json:"room_id"`
	Data   workflow.RoomData `json:"data"`
}

type movePatientRequest struct {
	RoomID string `json:"room_id"`
}

type patientResponse struct {
	Patient patientDTO `json:"patient"`
}

type listPatientsResponse struct {
	Patients []patientDTO `json:"patients"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	NextRoomID     string   `json:"next_room_id,omitempty"`
	AllowedRoleIDs []string `json:"allowed_role_ids,omitempty"`
}

type historyEntryDTO struct {
	RoomID        string  `json:"room_id"`
	EntryDate     string  `json:"entry_date"`
	ExitDate      *string `json:"exit_date,omitempty"`
	StatusMessage string  `json:"status_message"`
}

type patientDTO struct {
	ID            string            `json:"id"`
	FullName      string            `json:"full_name"`
	BirthDate     string            `json:"birth_date,omitempty"`
	Phone         string            `json:"phone,omitempty"`
	CurrentRoomID string            `json:"current_room_id"`
	Status        string            `json:"status"`
	History       []historyEntryDTO `json:"history"`
	RoomData      workflow.RoomData `json:"room_data"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
}

func toPatientDTO(patient *workflow.Patient) patientDTO {
	if patient == nil {
		return patientDTO{}
	}

	history := make([]historyEntryDTO, 0, len(patient.History))
	for _, entry := range patient.History {
		dto := historyEntryDTO{
			RoomID:        string(entry.RoomID),
			EntryDate:     entry.EntryDate.UTC().Format(time.RFC3339Nano),
			StatusMessage: entry.StatusMessage,
		}
		if entry.ExitDate != nil {
			exit := entry.ExitDate.UTC().Format(time.RFC3339Nano)
			dto.ExitDate = &exit
		}
		history = append(history, dto)
	}

	dto := patientDTO{
		ID:            patient.ID,
		FullName:      patient.FullName,
		Phone:         patient.Phone,
		CurrentRoomID: string(patient.CurrentRoomID),
		Status:        string(patient.StatusInRoom),
		History:       history,
		RoomData:      patient.RoomData,
		CreatedAt:     patient.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:     patient.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !patient.BirthDate.IsZero() {
		dto.BirthDate = patient.BirthDate.UTC().Format("2006-01-02")
	}
	return dto
}

func toPatientDTOs(patients []*workflow.Patient) []patientDTO {
	if len(patients) == 0 {
		return nil
	}
	out := make([]patientDTO, 0, len(patients))
	for _, patient := range patients {
		out = append(out, toPatientDTO(patient))
	}
	return out
}
