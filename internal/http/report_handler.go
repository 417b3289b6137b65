package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/nucmed-tracker/internal/application"
	"github.com/example/nucmed-tracker/internal/workflow"
)

type reportingService interface {
	ActivityReport(ctx context.Context, principal application.Principal, period workflow.Period, reference time.Time) (application.ActivityReport, error)
	ReferenceStats(ctx context.Context, principal application.Principal, day time.Time) (application.ReferenceStats, error)
}

type ReportHandler struct {
	service   reportingService
	responder responder
	logger    *slog.Logger
	now       func() time.Time
}

func NewReportHandler(service reportingService, now func() time.Time, logger *slog.Logger) *ReportHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &ReportHandler{service: service, responder: newResponder(base), logger: base, now: now}
}

func (h *ReportHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReportHandler", operation, attrs...)
}

// Activity serves the per-period activity report: room occupancy, the stay
// feed, and exam counts. The period defaults to today.
func (h *ReportHandler) Activity(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	period := workflow.Period(strings.TrimSpace(r.URL.Query().Get("period")))
	if period == "" {
		period = workflow.PeriodToday
	}

	logger := h.log(r.Context(), "Activity", "principal_id", principal.UserID, "period", string(period))

	report, err := h.service.ActivityReport(r.Context(), principal, period, h.now())
	if err != nil {
		logger.ErrorContext(r.Context(), "activity report failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("entry_count", len(report.Entries)).InfoContext(r.Context(), "activity report served")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toActivityReportDTO(report))
}

// Occupancy serves only the per-room occupancy lines of the activity report.
func (h *ReportHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Occupancy", "principal_id", principal.UserID)

	report, err := h.service.ActivityReport(r.Context(), principal, workflow.PeriodToday, h.now())
	if err != nil {
		logger.ErrorContext(r.Context(), "occupancy report failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, occupancyResponse{Occupancy: toOccupancyDTOs(report.Occupancy)})
}

// Statistics proxies the national reference statistics for the requested day.
func (h *ReportHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	day := h.now()
	if raw := strings.TrimSpace(r.URL.Query().Get("day")); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			h.log(r.Context(), "Statistics", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid day parameter", "error", err)
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimestamp)
			return
		}
		day = parsed
	}

	logger := h.log(r.Context(), "Statistics", "principal_id", principal.UserID)

	stats, err := h.service.ReferenceStats(r.Context(), principal, day)
	if err != nil {
		logger.ErrorContext(r.Context(), "reference statistics failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("available", stats.Available).InfoContext(r.Context(), "reference statistics served")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, referenceStatsResponse{
		Available: stats.Available,
		Day:       stats.Day.UTC().Format("2006-01-02"),
		ExamCount: stats.ExamCount,
		DoseCount: stats.DoseCount,
	})
}

type occupancyDTO struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	Waiting  int    `json:"waiting"`
	Seen     int    `json:"seen"`
}

type activityEntryDTO struct {
	PatientID     string  `json:"patient_id"`
	PatientName   string  `json:"patient_name"`
	RoomID        string  `json:"room_id"`
	EntryDate     string  `json:"entry_date"`
	ExitDate      *string `json:"exit_date,omitempty"`
	StatusMessage string  `json:"status_message"`
}

type examStatDTO struct {
	Exam  string `json:"exam"`
	Count int    `json:"count"`
}

type activityReportResponse struct {
	Period    string             `json:"period"`
	Occupancy []occupancyDTO     `json:"occupancy"`
	Entries   []activityEntryDTO `json:"entries"`
	ExamStats []examStatDTO      `json:"exam_stats"`
}

type occupancyResponse struct {
	Occupancy []occupancyDTO `json:"occupancy"`
}

type referenceStatsResponse struct {
	Available bool   `json:"available"`
	Day       string `json:"day"`
	ExamCount int    `json:"exam_count"`
	DoseCount int    `json:"dose_count"`
}

func toOccupancyDTOs(occupancy []application.RoomOccupancy) []occupancyDTO {
	if len(occupancy) == 0 {
		return nil
	}
	out := make([]occupancyDTO, 0, len(occupancy))
	for _, line := range occupancy {
		out = append(out, occupancyDTO{
			RoomID:   string(line.RoomID),
			RoomName: line.RoomName,
			Waiting:  line.Waiting,
			Seen:     line.Seen,
		})
	}
	return out
}

func toActivityReportDTO(report application.ActivityReport) activityReportResponse {
	entries := make([]activityEntryDTO, 0, len(report.Entries))
	for _, entry := range report.Entries {
		dto := activityEntryDTO{
			PatientID:     entry.PatientID,
			PatientName:   entry.PatientName,
			RoomID:        string(entry.RoomID),
			EntryDate:     entry.EntryDate.UTC().Format(time.RFC3339Nano),
			StatusMessage: entry.StatusMessage,
		}
		if entry.ExitDate != nil {
			exit := entry.ExitDate.UTC().Format(time.RFC3339Nano)
			dto.ExitDate = &exit
		}
		entries = append(entries, dto)
	}

	stats := make([]examStatDTO, 0, len(report.ExamStats))
	for _, stat := range report.ExamStats {
		stats = append(stats, examStatDTO{Exam: stat.Exam, Count: stat.Count})
	}

	return activityReportResponse{
		Period:    string(report.Period),
		Occupancy: toOccupancyDTOs(report.Occupancy),
		Entries:   entries,
		ExamStats: stats,
	}
}
