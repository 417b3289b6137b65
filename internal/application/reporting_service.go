package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/nucmed-tracker/internal/workflow"
)

// ReferenceStatsClient fetches regional exam counts from the national
// statistics service.
type ReferenceStatsClient interface {
	FetchDailyStats(ctx context.Context, day time.Time) (ReferenceStats, error)
}

// ReportingService aggregates patient records into dashboards: room
// occupancy, the activity feed for a period and exam statistics.
type ReportingService struct {
	patients PatientRepository
	catalog  *workflow.Catalog
	stats    ReferenceStatsClient
	cache    *reportCache
	now      func() time.Time
	logger   *slog.Logger
}

// NewReportingService wires dependencies for the reporting service.
func NewReportingService(patients PatientRepository, catalog *workflow.Catalog, stats ReferenceStatsClient, now func() time.Time) *ReportingService {
	return NewReportingServiceWithLogger(patients, catalog, stats, now, nil)
}

// NewReportingServiceWithLogger wires dependencies for the reporting service with a specified logger.
func NewReportingServiceWithLogger(patients PatientRepository, catalog *workflow.Catalog, stats ReferenceStatsClient, now func() time.Time, logger *slog.Logger) *ReportingService {
	if catalog == nil {
		catalog = workflow.DefaultCatalog()
	}
	if now == nil {
		now = time.Now
	}
	return &ReportingService{
		patients: patients,
		catalog:  catalog,
		stats:    stats,
		cache:    newReportCache(30*time.Second, 64, now),
		now:      now,
		logger:   defaultLogger(logger),
	}
}

func (s *ReportingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReportingService", operation, attrs...)
}

// ActivityReport builds the dashboard for one period: occupancy counts per
// room, the room stays that started inside the window, and the requested
// exams of patients registered inside the window.
func (s *ReportingService) ActivityReport(ctx context.Context, principal Principal, period workflow.Period, reference time.Time) (report ActivityReport, err error) {
	if s == nil {
		err = fmt.Errorf("ReportingService is nil")
		return
	}
	if s.patients == nil {
		err = fmt.Errorf("patient repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ActivityReport",
		"principal_id", principal.UserID,
		"period", string(period),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build activity report", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("entry_count", len(report.Entries)).InfoContext(ctx, "activity report built")
	}()

	if !principal.HasPermission(PermissionReportsView) {
		err = ErrUnauthorized
		return
	}
	if !workflow.ValidPeriod(period) {
		vErr := &ValidationError{}
		vErr.add("period", "période inconnue")
		err = vErr
		return
	}

	if reference.IsZero() {
		reference = s.now()
	}

	key := buildReportCacheKey(period, reference)
	if cached, ok := s.cache.Get(key); ok {
		report = cached
		return
	}

	var patients []*workflow.Patient
	patients, err = s.patients.ListPatients(ctx, PatientListFilter{})
	if err != nil {
		err = mapRepositoryError(err)
		return
	}

	report = ActivityReport{
		Period:    period,
		Occupancy: s.buildOccupancy(patients),
		Entries:   buildActivityEntries(patients, period, reference),
		ExamStats: buildExamStats(patients, period, reference),
	}

	s.cache.Store(key, report)
	return
}

// ReferenceStats fetches the regional counts for one day. A failing upstream
// yields an unavailable result rather than zeroes passed off as data.
func (s *ReportingService) ReferenceStats(ctx context.Context, principal Principal, day time.Time) (ReferenceStats, error) {
	if s == nil {
		return ReferenceStats{}, fmt.Errorf("ReportingService is nil")
	}
	if !principal.HasPermission(PermissionReportsView) {
		return ReferenceStats{}, ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "ReferenceStats", "principal_id", principal.UserID)

	if s.stats == nil {
		return ReferenceStats{Available: false, Day: day}, nil
	}
	if day.IsZero() {
		day = s.now()
	}

	stats, err := s.stats.FetchDailyStats(ctx, day)
	if err != nil {
		logger.WarnContext(ctx, "reference statistics unavailable", "error", err)
		return ReferenceStats{Available: false, Day: day}, nil
	}
	stats.Available = true
	stats.Day = day
	return stats, nil
}

func (s *ReportingService) buildOccupancy(patients []*workflow.Patient) []RoomOccupancy {
	rooms := s.catalog.Rooms()
	occupancy := make([]RoomOccupancy, len(rooms))
	index := make(map[workflow.RoomID]int, len(rooms))
	for i, room := range rooms {
		occupancy[i] = RoomOccupancy{RoomID: room.ID, RoomName: room.Name}
		index[room.ID] = i
	}

	for _, patient := range patients {
		i, ok := index[patient.CurrentRoomID]
		if !ok {
			continue
		}
		if patient.StatusInRoom == workflow.StatusSeen {
			occupancy[i].Seen++
		} else {
			occupancy[i].Waiting++
		}
	}
	return occupancy
}

func buildActivityEntries(patients []*workflow.Patient, period workflow.Period, reference time.Time) []ActivityEntry {
	var entries []ActivityEntry
	for _, patient := range patients {
		for _, stay := range patient.History {
			if !workflow.InPeriod(stay.EntryDate, period, reference) {
				continue
			}
			entries = append(entries, ActivityEntry{
				PatientID:     patient.ID,
				PatientName:   patient.FullName,
				RoomID:        stay.RoomID,
				EntryDate:     stay.EntryDate,
				ExitDate:      stay.ExitDate,
				StatusMessage: stay.StatusMessage,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EntryDate.Equal(entries[j].EntryDate) {
			return entries[i].PatientID < entries[j].PatientID
		}
		return entries[i].EntryDate.Before(entries[j].EntryDate)
	})
	return entries
}

func buildExamStats(patients []*workflow.Patient, period workflow.Period, reference time.Time) []ExamStat {
	counts := make(map[string]int)
	for _, patient := range patients {
		if patient.RoomData.Request == nil || patient.RoomData.Request.RequestedExam == "" {
			continue
		}
		if !workflow.InPeriod(patient.CreatedAt, period, reference) {
			continue
		}
		counts[patient.RoomData.Request.RequestedExam]++
	}

	stats := make([]ExamStat, 0, len(counts))
	for exam, count := range counts {
		stats = append(stats, ExamStat{Exam: exam, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Exam < stats[j].Exam
		}
		return stats[i].Count > stats[j].Count
	})
	return stats
}
