// Package integration talks to the national nuclear-medicine statistics
// service. The department uses the daily exam and dose counts as a reference
// baseline next to its own activity report.
package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/example/nucmed-tracker/internal/application"
)

// statsResponse is the upstream wire format.
type statsResponse struct {
	Day       string `json:"day"`
	ExamCount int    `json:"exam_count"`
	DoseCount int    `json:"dose_count"`
}

// StatsClient fetches reference statistics over HTTP. It implements
// application.ReferenceStatsClient.
type StatsClient struct {
	httpClient *resty.Client
	logger     *slog.Logger
}

// NewStatsClient builds a client for the given base URL.
func NewStatsClient(baseURL string, logger *slog.Logger) *StatsClient {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &StatsClient{httpClient: client, logger: logger}
}

// FetchDailyStats retrieves the national counts for the given calendar day.
func (c *StatsClient) FetchDailyStats(ctx context.Context, day time.Time) (application.ReferenceStats, error) {
	if c == nil || c.httpClient == nil {
		return application.ReferenceStats{}, fmt.Errorf("stats client is not configured")
	}

	dayParam := day.Format("2006-01-02")

	var payload statsResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("day", dayParam).
		SetResult(&payload).
		Get("/v1/stats/daily")
	if err != nil {
		c.logger.ErrorContext(ctx, "reference statistics call failed", "day", dayParam, "error", err)
		return application.ReferenceStats{}, fmt.Errorf("failed to call statistics service: %w", err)
	}
	if resp.IsError() {
		c.logger.ErrorContext(ctx, "reference statistics call rejected", "day", dayParam, "status_code", resp.StatusCode())
		return application.ReferenceStats{}, fmt.Errorf("statistics service returned status %d", resp.StatusCode())
	}

	stats := application.ReferenceStats{
		Available: true,
		Day:       day,
		ExamCount: payload.ExamCount,
		DoseCount: payload.DoseCount,
	}
	if parsed, err := time.Parse("2006-01-02", payload.Day); err == nil {
		stats.Day = parsed
	}

	c.logger.InfoContext(ctx, "reference statistics retrieved",
		"day", dayParam,
		"exam_count", stats.ExamCount,
		"dose_count", stats.DoseCount,
	)
	return stats, nil
}
