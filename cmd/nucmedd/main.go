package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/nucmed-tracker/internal/application"
	"github.com/example/nucmed-tracker/internal/config"
	"github.com/example/nucmed-tracker/internal/export"
	httptransport "github.com/example/nucmed-tracker/internal/http"
	"github.com/example/nucmed-tracker/internal/integration"
	"github.com/example/nucmed-tracker/internal/persistence/sqlite"
	"github.com/example/nucmed-tracker/internal/testfixtures"
	"github.com/example/nucmed-tracker/internal/workflow"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	userRepo := sqlite.NewUserRepository(pool)
	roleRepo := sqlite.NewRoleRepository(pool)
	patientRepo := sqlite.NewPatientRepository(pool)
	assetRepo := sqlite.NewAssetRepository(pool)
	stockRepo := sqlite.NewStockRepository(pool)
	hotLabRepo := sqlite.NewHotLabRepository(pool)
	sessionRepo := sqlite.NewSessionRepository(pool)

	hashPassword := func(password string) (string, error) {
		return application.CreatePasswordHash(password, application.DefaultArgon2idParams)
	}

	if cfg.SeedDemo {
		stores := testfixtures.SeedStores{
			Roles:    roleRepo,
			Users:    userRepo,
			Patients: patientRepo,
			Assets:   assetRepo,
			Stock:    stockRepo,
			HotLab:   hotLabRepo,
		}
		if err := testfixtures.SeedDemo(context.Background(), stores, hashPassword, time.Now); err != nil {
			logger.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
		logger.Info("demo data seeded")
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now
	catalog := workflow.DefaultCatalog()

	patients := newPatientRepositoryAdapter(patientRepo)
	users := newUserRepositoryAdapter(userRepo)
	roles := newRoleRepositoryAdapter(roleRepo)
	sessions := newSessionRepositoryAdapter(sessionRepo)
	credentials := newCredentialStoreAdapter(userRepo)
	assets := newAssetRepositoryAdapter(assetRepo)
	stock := newStockRepositoryAdapter(stockRepo)
	hotLab := newHotLabRepositoryAdapter(hotLabRepo)

	var statsClient application.ReferenceStatsClient
	if cfg.StatsBaseURL != "" {
		statsClient = integration.NewStatsClient(cfg.StatsBaseURL, logger)
	}

	patientService := application.NewPatientServiceWithLogger(patients, catalog, idGenerator, now, logger)
	userService := application.NewUserServiceWithLogger(users, roles, idGenerator, now, logger)
	roleService := application.NewRoleServiceWithLogger(roles, idGenerator, now, logger)
	inventoryService := application.NewInventoryServiceWithLogger(assets, stock, idGenerator, now, logger)
	hotLabService := application.NewHotLabServiceWithLogger(hotLab, patients, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(credentials, sessions, roles, application.VerifyPassword, tokenGenerator, now, cfg.SessionTTL, logger)
	reportingService := application.NewReportingServiceWithLogger(patients, catalog, statsClient, now, logger)

	authHandler := httptransport.NewAuthHandler(authService, logger)
	patientHandler := httptransport.NewPatientHandler(patientService, logger)
	userHandler := httptransport.NewUserHandler(userService, logger)
	roleHandler := httptransport.NewRoleHandler(roleService, logger)
	inventoryHandler := httptransport.NewInventoryHandler(inventoryService, export.NewExporter(), logger)
	hotLabHandler := httptransport.NewHotLabHandler(hotLabService, logger)
	reportHandler := httptransport.NewReportHandler(reportingService, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:      authHandler,
		Patients:  patientHandler,
		Users:     userHandler,
		Roles:     roleHandler,
		Inventory: inventoryHandler,
		HotLab:    hotLabHandler,
		Reports:   reportHandler,
	})

	// Login is the only unauthenticated route; everything else goes through
	// session validation.
	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.EqualFold(r.URL.Path, "/sessions") {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("patient tracker API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
