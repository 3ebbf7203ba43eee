package main

import (
	"StandMatch/internal/adapters/postgres"
	"StandMatch/internal/shared/config"
	"StandMatch/internal/shared/logger"
	"fmt"
	"os"
)

// Applies pending schema migrations and exits. The server runs them on
// startup too; this entrypoint exists for deploy pipelines that migrate
// before rolling instances.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	baseLogger := logger.New(cfg.AppEnv == "dev")

	if cfg.StoreDriver != "postgres" {
		baseLogger.Fatal().Str("store_driver", cfg.StoreDriver).Msg("Migrations only apply to the postgres store")
	}
	if err := postgres.Migrate(cfg.DatabaseURL, &baseLogger); err != nil {
		baseLogger.Fatal().Err(err).Msg("Migration failed")
	}
	baseLogger.Info().Msg("Migrations applied")
}
