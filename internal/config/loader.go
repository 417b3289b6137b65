package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the tracker service.
type Config struct {
	HTTPPort     int
	SQLiteDSN    string
	SessionTTL   time.Duration
	StatsBaseURL string
	SeedDemo     bool
}

// Load parses configuration values from the current process environment.
//
// The loader applies sensible defaults for optional fields while validating
// provided values and reporting localized error messages for invalid entries.
// StatsBaseURL stays empty when the national statistics integration is off.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:   8080,
		SQLiteDSN:  "file:nucmed.db?_foreign_keys=on",
		SessionTTL: 12 * time.Hour,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("NUCMED_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "NUCMED_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("NUCMED_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("NUCMED_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "NUCMED_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if baseURL := strings.TrimSpace(os.Getenv("NUCMED_STATS_BASE_URL")); baseURL != "" {
		cfg.StatsBaseURL = baseURL
	}

	if seedValue := strings.TrimSpace(os.Getenv("NUCMED_SEED_DEMO")); seedValue != "" {
		seed, err := strconv.ParseBool(seedValue)
		if err != nil {
			invalid = append(invalid, "NUCMED_SEED_DEMO")
		} else {
			cfg.SeedDemo = seed
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("la valeur de certaines variables d'environnement est invalide : %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
