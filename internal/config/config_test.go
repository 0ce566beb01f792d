package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "pizzeria", cfg.PizzeriaFlow)
	assert.Equal(t, "customer_address", cfg.AddressFlow)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, 4096, cfg.MaxInputSize)
	assert.Equal(t, int64(10000), cfg.Fees().Tier1.Amount)
	assert.Equal(t, "RUB", cfg.Fees().Tier2.Currency)
}

func TestLoad_DotEnvAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"TG_TOKEN=from-file\nDELIVERY_FEE_TIER2=50000\nCALL_TIMEOUT=3s\n"), 0o600))

	// godotenv never overrides variables already present in the environment.
	t.Setenv("TG_TOKEN", "from-env")
	t.Setenv("YANDEX_API_KEY", "ya")
	t.Cleanup(func() {
		os.Unsetenv("DELIVERY_FEE_TIER2")
		os.Unsetenv("CALL_TIMEOUT")
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.TelegramToken)
	assert.Equal(t, "ya", cfg.YandexAPIKey)
	assert.Equal(t, int64(50000), cfg.FeeTier2)
	assert.Equal(t, 3*time.Second, cfg.CallTimeout)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("WORKERS", "many")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{LogLevel: "info", Workers: 1, MaxInputSize: 4096}

	tests := []struct {
		name    string
		mode    Mode
		mutate  func(*Config)
		missing []string
	}{
		{"telegram needs token", ModeTelegram, func(c *Config) {}, []string{"TG_TOKEN", "YANDEX_API_KEY", "MOLTIN_CLIENT_ID"}},
		{"telegram complete", ModeTelegram, func(c *Config) {
			c.TelegramToken, c.YandexAPIKey, c.MoltinClientID = "t", "y", "m"
		}, nil},
		{"messenger needs page secrets", ModeMessenger, func(c *Config) {
			c.YandexAPIKey, c.MoltinClientID = "y", "m"
		}, []string{"PAGE_ACCESS_TOKEN", "VERIFY_TOKEN"}},
		{"console needs nothing", ModeConsole, func(c *Config) {}, nil},
		{"ops needs moltin", ModeOps, func(c *Config) {}, []string{"MOLTIN_CLIENT_ID"}},
		{"bad workers", ModeConsole, func(c *Config) { c.Workers = 0 }, []string{"WORKERS"}},
		{"bad input size", ModeConsole, func(c *Config) { c.MaxInputSize = 0 }, []string{"MAX_INPUT_SIZE"}},
		{"bad level", ModeConsole, func(c *Config) { c.LogLevel = "loud" }, []string{"loud"}},
		{"negative fee", ModeConsole, func(c *Config) { c.FeeTier1 = -1 }, []string{"fees"}},
		{"unknown mode", Mode("fax"), func(c *Config) {}, []string{"fax"}},
		{"bad session key", ModeConsole, func(c *Config) { c.SessionKey = "abc" }, []string{"SESSION_KEY"}},
		{"fallback without key", ModeConsole, func(c *Config) {
			c.SessionFallbackKeys = []string{strings.Repeat("01", 32)}
		}, []string{"SESSION_FALLBACK_KEYS"}},
		{"valid session keys", ModeConsole, func(c *Config) {
			c.SessionKey = strings.Repeat("ab", 32)
			c.SessionFallbackKeys = []string{strings.Repeat("01", 32)}
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate(tt.mode)
			if len(tt.missing) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, m := range tt.missing {
				assert.Contains(t, err.Error(), m)
			}
		})
	}
}

func TestEncryption(t *testing.T) {
	cfg := Config{}
	enc, err := cfg.Encryption()
	require.NoError(t, err)
	assert.Nil(t, enc)

	cfg.SessionKey = strings.Repeat("ab", 32)
	cfg.SessionFallbackKeys = []string{strings.Repeat("01", 32)}
	cfg.SessionAllowPlaintext = true
	enc, err = cfg.Encryption()
	require.NoError(t, err)
	require.NotNil(t, enc)
	assert.Len(t, enc.ActiveKey, 32)
	assert.Len(t, enc.FallbackKeys, 1)
	assert.True(t, enc.AllowPlaintext)
}
