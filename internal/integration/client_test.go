package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStatsClient_FetchDailyStats(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, time.June, 11, 0, 0, 0, 0, time.UTC)

	t.Run("parses the upstream payload", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/stats/daily" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("day"); got != "2025-06-11" {
				t.Errorf("unexpected day parameter: %s", got)
			}
			w.Header().Set("Content-Type", "application/json")
			if _, err := w.Write([]byte(`{"day":"2025-06-11","exam_count":128,"dose_count":96}`)); err != nil {
				t.Errorf("failed to write response: %v", err)
			}
		}))
		defer server.Close()

		client := NewStatsClient(server.URL, nil)
		stats, err := client.FetchDailyStats(context.Background(), day)
		if err != nil {
			t.Fatalf("FetchDailyStats failed: %v", err)
		}
		if !stats.Available || stats.ExamCount != 128 || stats.DoseCount != 96 {
			t.Fatalf("unexpected stats: %#v", stats)
		}
		if !stats.Day.Equal(day) {
			t.Fatalf("unexpected day: %v", stats.Day)
		}
	})

	t.Run("fails on upstream errors", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewStatsClient(server.URL, nil)
		if _, err := client.FetchDailyStats(context.Background(), day); err == nil {
			t.Fatal("expected an error for a 503 response")
		}
	})
}
