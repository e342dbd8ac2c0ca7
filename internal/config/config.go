package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	TelegramToken       string `env:"TELEGRAM_BOT_TOKEN,required"`
	TelegramAPIEndpoint string `env:"TELEGRAM_API_ENDPOINT"`
	APIKey              string `env:"OPENROUTER_API_KEY,required"`
	BaseURL             string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	AppReferer          string `env:"APP_REFERER" envDefault:"https://github.com/Purpose-arch/Telegram_Neurobot"`
	AppTitle            string `env:"APP_TITLE" envDefault:"Telegram_Neurobot"`

	DefaultModel        string        `env:"DEFAULT_MODEL" envDefault:"qwen/qwen2.5-vl-72b-instruct:free"`
	AssistantPrompt     string        `env:"ASSISTANT_PROMPT"`
	MaxCompletionTokens int           `env:"MAX_TOKENS" envDefault:"0"`
	HistoryLimit        int           `env:"HISTORY_LIMIT" envDefault:"10"`
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT" envDefault:"3m"`

	StreamResponses    bool          `env:"STREAM_RESPONSES" envDefault:"true"`
	StreamEditInterval time.Duration `env:"STREAM_EDIT_INTERVAL" envDefault:"1s"`
	StreamSmallChunk   int           `env:"STREAM_SMALL_CHUNK" envDefault:"4"`
	StreamMinGap       time.Duration `env:"STREAM_MIN_GAP" envDefault:"250ms"`
	StreamRetryWait    time.Duration `env:"STREAM_RETRY_WAIT" envDefault:"3s"`
	StreamMaxRetryWait time.Duration `env:"STREAM_MAX_RETRY_WAIT" envDefault:"30s"`

	AdminUserIDs   []int64 `env:"ADMIN_USER_IDS" envSeparator:","`
	AllowedUserIDs []int64 `env:"ALLOWED_TELEGRAM_USER_IDS" envSeparator:","`
	UserRateLimit  float64 `env:"USER_RATE_LIMIT" envDefault:"1"`
	UserRateBurst  int     `env:"USER_RATE_BURST" envDefault:"5"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"neurobot.db"`

	ModelsFile            string        `env:"MODELS_FILE"`
	ModelsFilter          string        `env:"MODELS_FILTER" envDefault:":free"`
	ModelsLimit           int           `env:"MODELS_LIMIT" envDefault:"24"`
	ModelsRefreshInterval time.Duration `env:"MODELS_REFRESH_INTERVAL" envDefault:"1h"`

	WebhookURL    string `env:"WEBHOOK_URL"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	ListenAddr    string `env:"LISTEN_ADDR" envDefault:":8443"`
}

// Load reads path as a dotenv file (variables already set in the process
// win) and then parses the environment.
func Load(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Info("no .env file, using process environment", "path", path)
			} else {
				slog.Warn("could not read .env", "path", path, "error", err)
			}
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.DatabaseDriver) {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.HistoryLimit <= 0 {
		return errors.New("HISTORY_LIMIT must be positive")
	}
	if c.UserRateBurst < 1 {
		return errors.New("USER_RATE_BURST must be at least 1")
	}
	if c.WebhookURL != "" && c.WebhookSecret == "" {
		return errors.New("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
	}
	return nil
}

// IsAdmin reports whether userID is listed in ADMIN_USER_IDS.
func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAllowed lets admins through, and everyone when no allow-list is set.
func (c Config) IsAllowed(userID int64) bool {
	if c.IsAdmin(userID) {
		return true
	}
	if len(c.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
