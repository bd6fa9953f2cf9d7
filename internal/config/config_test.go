package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "WS_PORT", "ML_TYPE", "GOOGLE_PROJECT_ID", "GOOGLE_LOCATION",
		"GEMINI_MODEL", "GOOGLE_CREDENTIALS_FILE", "STORE_BACKEND", "GOOGLE_SHEET_ID",
		"SQLITE_PATH", "LOG_LEVEL", "LOG_FILE", "REQUEST_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "google", cfg.ML.Type)
	assert.Equal(t, "gemini-1.5-flash", cfg.ML.Model)
	assert.Empty(t, cfg.ML.CredentialsFile)
	assert.Equal(t, "sheets", cfg.Store.Backend)
	assert.Equal(t, "credentials.json", cfg.Store.CredentialsFile)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GOOGLE_PROJECT_ID", "my-project")
	t.Setenv("GOOGLE_SHEET_ID", "sheet-id")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "15")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "my-project", cfg.ML.ProjectID)
	assert.Equal(t, "sheet-id", cfg.Store.SheetID)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	assert.NoError(t, cfg.Validate())
}

func TestFileTakesPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_PROJECT_ID", "env-project")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"ml": {"project_id": "file-project"},
		"store": {"backend": "sqlite", "sqlite_path": "/tmp/food.db"},
		"server": {"port": "8080"}
	}`), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file-project", cfg.ML.ProjectID)
	assert.Equal(t, "/tmp/food.db", cfg.Store.SQLitePath)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadRejectsBadInput(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0600))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	t.Setenv("REQUEST_TIMEOUT_SECONDS", "soon")
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transport configured")
	assert.Contains(t, err.Error(), "GOOGLE_PROJECT_ID")
	assert.Contains(t, err.Error(), "GOOGLE_SHEET_ID")
	assert.Contains(t, err.Error(), "credentials file")

	creds := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{}`), 0600))
	cfg.Telegram.Token = "123:abc"
	cfg.ML.ProjectID = "p"
	cfg.Store.SheetID = "s"
	cfg.Store.CredentialsFile = creds
	assert.NoError(t, cfg.Validate())

	cfg.Store.Backend = "postgres"
	assert.Error(t, cfg.Validate())
}

func TestValidateModelCredentials(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	cfg.Telegram.Token = "123:abc"
	cfg.ML.ProjectID = "p"
	cfg.Store.Backend = "sqlite"
	require.NoError(t, cfg.Validate())

	cfg.ML.CredentialsFile = filepath.Join(t.TempDir(), "vertex.json")
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model credentials file")

	require.NoError(t, os.WriteFile(cfg.ML.CredentialsFile, []byte(`{}`), 0600))
	assert.NoError(t, cfg.Validate())
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CALORIE_CONFIG", "/etc/calorie.json")
	assert.Equal(t, "/etc/calorie.json", GetConfigPath())
}
