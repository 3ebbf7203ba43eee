package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4"

func loadWithEnv(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for k, v := range env {
		t.Setenv(k, v)
	}
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadWithEnv(t, map[string]string{
		"ENCRYPTION_KEY": testKey,
	})
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 30, cfg.LeadRatePerMin)
	assert.Empty(t, cfg.TelegramToken)
}

func TestLoad_FullEnvironment(t *testing.T) {
	cfg, err := loadWithEnv(t, map[string]string{
		"APP_ENV":                "production",
		"HTTP_ADDR":              ":9090",
		"STORE_DRIVER":           "postgres",
		"DATABASE_URL":           "postgres://app@localhost:5432/standmatch",
		"ENCRYPTION_KEY":         testKey,
		"LEAD_RATE_PER_MIN":      "120",
		"TELEGRAM_BOT_TOKEN":     "123:abc",
		"TELEGRAM_ALERT_CHAT_ID": "-100200300",
	})
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "postgres://app@localhost:5432/standmatch", cfg.DatabaseURL)
	assert.Equal(t, 120, cfg.LeadRatePerMin)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, int64(-100200300), cfg.TelegramChatID)
}

func TestLoad_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing encryption key",
			env:     map[string]string{},
			wantErr: "ENCRYPTION_KEY",
		},
		{
			name: "encryption key wrong length",
			env: map[string]string{
				"ENCRYPTION_KEY": "deadbeef",
			},
			wantErr: "64-character hex",
		},
		{
			name: "unknown store driver",
			env: map[string]string{
				"ENCRYPTION_KEY": testKey,
				"STORE_DRIVER":   "cassandra",
			},
			wantErr: "STORE_DRIVER",
		},
		{
			name: "postgres without database url",
			env: map[string]string{
				"ENCRYPTION_KEY": testKey,
				"STORE_DRIVER":   "postgres",
			},
			wantErr: "DATABASE_URL",
		},
		{
			name: "non-positive lead rate",
			env: map[string]string{
				"ENCRYPTION_KEY":    testKey,
				"LEAD_RATE_PER_MIN": "0",
			},
			wantErr: "LEAD_RATE_PER_MIN",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadWithEnv(t, tc.env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
