package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unset := []string{
			"NUCMED_HTTP_PORT",
			"NUCMED_SQLITE_DSN",
			"NUCMED_SESSION_TTL",
			"NUCMED_STATS_BASE_URL",
			"NUCMED_SEED_DEMO",
		}
		for _, key := range unset {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:nucmed.db?_foreign_keys=on" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.SessionTTL != 12*time.Hour {
			t.Fatalf("expected default session TTL 12h, got %s", cfg.SessionTTL)
		}
		if cfg.StatsBaseURL != "" {
			t.Fatalf("expected statistics integration off by default, got %q", cfg.StatsBaseURL)
		}
		if cfg.SeedDemo {
			t.Fatal("expected demo seeding off by default")
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		t.Setenv("NUCMED_HTTP_PORT", "9090")
		t.Setenv("NUCMED_SQLITE_DSN", "file:/tmp/nucmed.db")
		t.Setenv("NUCMED_SESSION_TTL", "8h")
		t.Setenv("NUCMED_STATS_BASE_URL", "https://stats.example.org")
		t.Setenv("NUCMED_SEED_DEMO", "true")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:/tmp/nucmed.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.SessionTTL != 8*time.Hour {
			t.Fatalf("expected session TTL 8h, got %s", cfg.SessionTTL)
		}
		if cfg.StatsBaseURL != "https://stats.example.org" {
			t.Fatalf("unexpected statistics base URL: %q", cfg.StatsBaseURL)
		}
		if !cfg.SeedDemo {
			t.Fatal("expected demo seeding on")
		}
	})

	t.Run("reports invalid values with their variable names", func(t *testing.T) {
		t.Setenv("NUCMED_HTTP_PORT", "not-a-port")
		t.Setenv("NUCMED_SESSION_TTL", "-3h")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for invalid values")
		}
		if !strings.Contains(err.Error(), "NUCMED_HTTP_PORT") || !strings.Contains(err.Error(), "NUCMED_SESSION_TTL") {
			t.Fatalf("expected both variable names in error, got %q", err.Error())
		}
	})
}
