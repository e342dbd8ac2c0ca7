package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "tg-token")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.BaseURL)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, time.Second, cfg.StreamEditInterval)
	assert.Equal(t, 3*time.Second, cfg.StreamRetryWait)
	assert.True(t, cfg.StreamResponses)
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, ":free", cfg.ModelsFilter)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	os.Unsetenv("TELEGRAM_BOT_TOKEN")
	os.Unsetenv("OPENROUTER_API_KEY")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadDotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("DEFAULT_MODEL", "from/process")

	path := filepath.Join(t.TempDir(), ".env")
	content := "DEFAULT_MODEL=from/file\nHISTORY_LIMIT=6\nADMIN_USER_IDS=1,2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("HISTORY_LIMIT")
		os.Unsetenv("ADMIN_USER_IDS")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from/process", cfg.DefaultModel)
	assert.Equal(t, 6, cfg.HistoryLimit)
	assert.Equal(t, []int64{1, 2}, cfg.AdminUserIDs)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_DRIVER", "mongo")

	_, err := Load("")
	require.ErrorContains(t, err, "DATABASE_DRIVER")
}

func TestLoadWebhookNeedsSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("WEBHOOK_URL", "https://example.com/hook")

	_, err := Load("")
	require.ErrorContains(t, err, "WEBHOOK_SECRET")
}

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		userID  int64
		allowed bool
	}{
		{name: "no lists allows all", cfg: Config{}, userID: 7, allowed: true},
		{name: "listed user", cfg: Config{AllowedUserIDs: []int64{7}}, userID: 7, allowed: true},
		{name: "unlisted user", cfg: Config{AllowedUserIDs: []int64{8}}, userID: 7, allowed: false},
		{name: "admin bypasses list", cfg: Config{AdminUserIDs: []int64{7}, AllowedUserIDs: []int64{8}}, userID: 7, allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.cfg.IsAllowed(tt.userID))
		})
	}
}

func TestLoadModels(t *testing.T) {
	models, err := LoadModels("")
	require.NoError(t, err)
	assert.Equal(t, DefaultModels, models)

	path := filepath.Join(t.TempDir(), "models.yaml")
	yml := "models:\n  - id: meta/llama:free\n    label: Llama\n  - id: mistral/small:free\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	models, err = LoadModels(path)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "Llama", models[0].Label)
	assert.Equal(t, "mistral/small:free", models[1].Label)
}

func TestLoadRejectsZeroBurst(t *testing.T) {
	setRequired(t)
	t.Setenv("USER_RATE_BURST", "0")

	_, err := Load("")
	require.ErrorContains(t, err, "USER_RATE_BURST")
}

func TestLoadModelsRejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  - label: Nameless\n"), 0o600))

	_, err := LoadModels(path)
	require.ErrorContains(t, err, "no id")
}

func TestNewLogger(t *testing.T) {
	_, err := NewLogger(os.Stderr, LoggerConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)

	_, err = NewLogger(os.Stderr, LoggerConfig{Level: "loud", Format: "text"})
	require.Error(t, err)

	_, err = NewLogger(os.Stderr, LoggerConfig{Level: "info", Format: "xml"})
	require.Error(t, err)
}

func TestNewLoggerAddSource(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, LoggerConfig{Format: "json", AddSource: true})
	require.NoError(t, err)
	logger.Info("hello")
	assert.Contains(t, buf.String(), `"source"`)
	assert.Contains(t, buf.String(), "config_test.go")

	buf.Reset()
	logger, err = NewLogger(&buf, LoggerConfig{Format: "json"})
	require.NoError(t, err)
	logger.Info("hello")
	assert.NotContains(t, buf.String(), `"source"`)
}
