package main

import (
	"StandMatch/internal/adapters/eventbus"
	"StandMatch/internal/adapters/memory"
	"StandMatch/internal/adapters/notify"
	"StandMatch/internal/adapters/postgres"
	"StandMatch/internal/adapters/security"
	"StandMatch/internal/adapters/telegram"
	"StandMatch/internal/claims"
	"StandMatch/internal/core/ports"
	"StandMatch/internal/httpapi"
	"StandMatch/internal/leads"
	"StandMatch/internal/matching"
	"StandMatch/internal/obs"
	"StandMatch/internal/shared/config"
	"StandMatch/internal/shared/logger"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	isDevMode := cfg.AppEnv == "dev"
	baseLogger := logger.New(isDevMode)
	baseLogger.Info().
		Str("app_env", cfg.AppEnv).
		Str("store_driver", cfg.StoreDriver).
		Str("http_addr", cfg.HTTPAddr).
		Msg("Configuration loaded")

	// 3. Initialize the Security Service
	keyBytes, err := hex.DecodeString(cfg.EncryptionKey)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to decode ENCRYPTION_KEY. It must be hex-encoded.")
	}
	secSvc, err := security.NewAESService(keyBytes, &baseLogger)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to initialize security service")
	}

	// 4. Initialize Stores
	ctx := context.Background()
	var (
		profileRepo   ports.ProfileRepository
		leadRepo      ports.LeadRepository
		challengeRepo ports.ChallengeRepository
		auditLog      ports.ClaimAuditLog
		creditLedger  ports.CreditLedger
	)
	switch cfg.StoreDriver {
	case "postgres":
		if err := postgres.Migrate(cfg.DatabaseURL, &baseLogger); err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		db, err := postgres.NewDB(ctx, cfg.DatabaseURL, &baseLogger)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()
		profileRepo = postgres.NewProfileRepository(db, secSvc, &baseLogger)
		leadRepo = postgres.NewLeadRepository(db, secSvc, &baseLogger)
		challengeRepo = postgres.NewChallengeRepository(db, secSvc, &baseLogger)
		auditLog = postgres.NewClaimAuditLog(db, &baseLogger)
		creditLedger = postgres.NewCreditLedger(db, &baseLogger)
	default:
		profileRepo = memory.NewProfileRepository(&baseLogger)
		leadRepo = memory.NewLeadRepository(&baseLogger)
		challengeRepo = memory.NewChallengeRepository(&baseLogger)
		auditLog = memory.NewClaimAuditLog(&baseLogger)
		creditLedger = memory.NewCreditLedger(&baseLogger)
	}

	// 5. Initialize Event Bus and observers
	obs.Init()
	bus := eventbus.NewInMemoryBus(&baseLogger)
	defer bus.Close()
	defer obs.ObserveEvents(bus)()

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize Telegram API")
		}
		alerter := telegram.NewAlerter(api, cfg.TelegramChatID, &baseLogger)
		defer alerter.Attach(bus)()
		baseLogger.Info().Msg("Telegram ops alerts enabled")
	}

	// 6. Initialize Core Services
	notifier := notify.NewLogNotifier(&baseLogger)
	resolver := matching.NewResolver(profileRepo, bus, &baseLogger)
	claimWorkflow := claims.NewWorkflow(profileRepo, challengeRepo, auditLog, bus, notifier, &baseLogger)
	leadRouter := leads.NewRouter(profileRepo, leadRepo, creditLedger, bus, notifier, &baseLogger)

	// 7. HTTP Server
	apiServer := httpapi.NewServer(resolver, claimWorkflow, leadRouter, profileRepo, leadRepo, cfg.LeadRatePerMin, &baseLogger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		baseLogger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// 8. Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	baseLogger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error().Err(err).Msg("HTTP shutdown failed")
	}
}
