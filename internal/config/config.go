// Package config loads the bot configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/pkg/delivery"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/persistence/middleware"
)

// Mode names the process being configured. Each mode requires its own secrets.
type Mode string

const (
	ModeTelegram  Mode = "telegram"
	ModeMessenger Mode = "messenger"
	ModeConsole   Mode = "console"
	ModeOps       Mode = "ops"
)

// Config is the full process configuration. Variable names follow the .env
// files of the deployed bots.
type Config struct {
	TelegramToken string `envconfig:"TG_TOKEN"`
	ProviderToken string `envconfig:"TG_PROVIDER_TOKEN"`

	PageAccessToken string `envconfig:"PAGE_ACCESS_TOKEN"`
	VerifyToken     string `envconfig:"VERIFY_TOKEN"`

	MoltinClientID     string `envconfig:"MOLTIN_CLIENT_ID"`
	MoltinClientSecret string `envconfig:"MOLTIN_CLIENT_SECRET"`
	MoltinBaseURL      string `envconfig:"MOLTIN_BASE_URL" default:"https://api.moltin.com"`
	PizzeriaFlow       string `envconfig:"FLOW_SLUG" default:"pizzeria"`
	AddressFlow        string `envconfig:"ADDRESS_FLOW_SLUG" default:"customer_address"`
	FrontCategory      string `envconfig:"FRONT_CATEGORY"`

	YandexAPIKey string `envconfig:"YANDEX_API_KEY"`

	RedisURL    string        `envconfig:"REDIS_URL"`
	RedisPrefix string        `envconfig:"REDIS_PREFIX" default:"pizzabot:"`
	SessionTTL  time.Duration `envconfig:"SESSION_TTL"`
	CatalogTTL  time.Duration `envconfig:"CATALOG_TTL" default:"10m"`
	SessionDir  string        `envconfig:"SESSION_DIR" default:".pizzabot/sessions"`

	// SessionKey turns on encryption at rest: hex of a 32-byte AES key.
	SessionKey            string   `envconfig:"SESSION_KEY"`
	SessionFallbackKeys   []string `envconfig:"SESSION_FALLBACK_KEYS"`
	SessionAllowPlaintext bool     `envconfig:"SESSION_ALLOW_PLAINTEXT"`

	Currency    string        `envconfig:"CURRENCY" default:"RUB"`
	FeeTier1    int64         `envconfig:"DELIVERY_FEE_TIER1" default:"10000"`
	FeeTier2    int64         `envconfig:"DELIVERY_FEE_TIER2" default:"30000"`
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"10s"`

	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"text"`
	Workers    int    `envconfig:"WORKERS" default:"16"`

	// MaxInputSize caps inbound message text, in characters, on every channel.
	MaxInputSize int `envconfig:"MAX_INPUT_SIZE" default:"4096"`
}

// Load reads the given .env files (".env" when none are named) into the
// process environment and decodes it. Missing files are not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}

// Validate reports every setting the mode needs but does not have.
func (c *Config) Validate(mode Mode) error {
	var errs []error
	require := func(value, name string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required in %s mode", name, mode))
		}
	}

	switch mode {
	case ModeTelegram:
		require(c.TelegramToken, "TG_TOKEN")
		require(c.YandexAPIKey, "YANDEX_API_KEY")
		require(c.MoltinClientID, "MOLTIN_CLIENT_ID")
	case ModeMessenger:
		require(c.PageAccessToken, "PAGE_ACCESS_TOKEN")
		require(c.VerifyToken, "VERIFY_TOKEN")
		require(c.YandexAPIKey, "YANDEX_API_KEY")
		require(c.MoltinClientID, "MOLTIN_CLIENT_ID")
	case ModeConsole:
		// The console runs against the in-memory catalog when Moltin is not set.
	case ModeOps:
		require(c.MoltinClientID, "MOLTIN_CLIENT_ID")
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", mode))
	}

	if c.FeeTier1 < 0 || c.FeeTier2 < 0 {
		errs = append(errs, errors.New("delivery fees must not be negative"))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("WORKERS must be at least 1"))
	}
	if c.MaxInputSize < 1 {
		errs = append(errs, errors.New("MAX_INPUT_SIZE must be at least 1"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Encryption(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Encryption returns the session encryption settings, or nil when
// SESSION_KEY is not set.
func (c *Config) Encryption() (*middleware.EncryptionConfig, error) {
	if c.SessionKey == "" {
		if len(c.SessionFallbackKeys) > 0 {
			return nil, errors.New("SESSION_FALLBACK_KEYS needs SESSION_KEY")
		}
		return nil, nil
	}
	active, err := middleware.ParseKey(c.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("SESSION_KEY: %w", err)
	}
	enc := &middleware.EncryptionConfig{ActiveKey: active, AllowPlaintext: c.SessionAllowPlaintext}
	for i, k := range c.SessionFallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("SESSION_FALLBACK_KEYS[%d]: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	return enc, nil
}

// Fees returns the delivery fee table.
func (c *Config) Fees() delivery.Fees {
	return delivery.Fees{
		Tier1: domain.NewMoney(c.FeeTier1, c.Currency),
		Tier2: domain.NewMoney(c.FeeTier2, c.Currency),
	}
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() *slog.Logger {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.NewWithFormat(os.Stderr, level, logging.Format(c.LogFormat))
}
