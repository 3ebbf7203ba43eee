package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv         string
	HTTPAddr       string
	StoreDriver    string // "memory" or "postgres"
	DatabaseURL    string
	EncryptionKey  string // 64-char hex, 32 bytes decoded
	LeadRatePerMin int

	// Optional ops alerting over Telegram. Both must be set to enable it.
	TelegramToken  string
	TelegramChatID int64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {

	// 1. Load .env file into the process environment. A missing file is
	// fine in prod; any other error should surface.
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	// 2. Explicitly bind viper keys to env var names
	bindings := map[string]string{
		"app.env":          "APP_ENV",
		"http.addr":        "HTTP_ADDR",
		"store.driver":     "STORE_DRIVER",
		"database.url":     "DATABASE_URL",
		"encryption.key":   "ENCRYPTION_KEY",
		"lead.rate":        "LEAD_RATE_PER_MIN",
		"telegram.token":   "TELEGRAM_BOT_TOKEN",
		"telegram.chat_id": "TELEGRAM_ALERT_CHAT_ID",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", key, err)
		}
	}

	// 3. Set defaults
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("lead.rate", 30)

	// 4. Get values directly from viper
	cfg := Config{
		AppEnv:         viper.GetString("app.env"),
		HTTPAddr:       viper.GetString("http.addr"),
		StoreDriver:    viper.GetString("store.driver"),
		DatabaseURL:    viper.GetString("database.url"),
		EncryptionKey:  viper.GetString("encryption.key"),
		LeadRatePerMin: viper.GetInt("lead.rate"),
		TelegramToken:  viper.GetString("telegram.token"),
		TelegramChatID: viper.GetInt64("telegram.chat_id"),
	}

	// 5. Validation
	if cfg.StoreDriver != "memory" && cfg.StoreDriver != "postgres" {
		return nil, fmt.Errorf("STORE_DRIVER must be 'memory' or 'postgres', got %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == "postgres" && cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
	}
	if cfg.EncryptionKey == "" {
		return nil, errors.New("ENCRYPTION_KEY is not set in environment or .env file")
	}
	if len(cfg.EncryptionKey) != 64 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be a 64-character hex string (32 bytes), but got %d chars", len(cfg.EncryptionKey))
	}
	if cfg.LeadRatePerMin <= 0 {
		return nil, fmt.Errorf("LEAD_RATE_PER_MIN must be positive, got %d", cfg.LeadRatePerMin)
	}

	return &cfg, nil
}
