package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`

	// Server is the optional websocket transport; it is disabled when Port is empty.
	Server struct {
		Port string `json:"port"`
	} `json:"server"`

	ML struct {
		Type            string `json:"type"` // "google"
		ProjectID       string `json:"project_id"`
		Location        string `json:"location"`
		Model           string `json:"model"`
		CredentialsFile string `json:"credentials_file"`
	} `json:"ml"`

	Store struct {
		Backend         string `json:"backend"` // "sheets" or "sqlite"
		SheetID         string `json:"sheet_id"`
		CredentialsFile string `json:"credentials_file"`
		SQLitePath      string `json:"sqlite_path"`
	} `json:"store"`

	Log struct {
		Level string `json:"level"`
		File  string `json:"file"`
	} `json:"log"`

	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
}

// LoadConfig loads configuration from a JSON file, falling back to environment
// variables (and a .env file) for anything the file leaves empty. A missing
// config file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var config Config
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Fall back to environment variables if not set
	setFromEnv(&config.Telegram.Token, "TELEGRAM_BOT_TOKEN", "")
	setFromEnv(&config.Server.Port, "WS_PORT", "")
	setFromEnv(&config.ML.Type, "ML_TYPE", "google")
	setFromEnv(&config.ML.ProjectID, "GOOGLE_PROJECT_ID", "")
	setFromEnv(&config.ML.Location, "GOOGLE_LOCATION", "us-central1")
	setFromEnv(&config.ML.Model, "GEMINI_MODEL", "gemini-1.5-flash")
	// Empty means Application Default Credentials.
	setFromEnv(&config.ML.CredentialsFile, "GOOGLE_CREDENTIALS_FILE", "")
	setFromEnv(&config.Store.Backend, "STORE_BACKEND", "sheets")
	setFromEnv(&config.Store.SheetID, "GOOGLE_SHEET_ID", "")
	setFromEnv(&config.Store.CredentialsFile, "GOOGLE_CREDENTIALS_FILE", "credentials.json")
	setFromEnv(&config.Store.SQLitePath, "SQLITE_PATH", "foodlog.db")
	setFromEnv(&config.Log.Level, "LOG_LEVEL", "info")
	setFromEnv(&config.Log.File, "LOG_FILE", "")

	if config.RequestTimeoutSeconds == 0 {
		config.RequestTimeoutSeconds = 60
		if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid REQUEST_TIMEOUT_SECONDS %q: %w", v, err)
			}
			config.RequestTimeoutSeconds = n
		}
	}

	return &config, nil
}

func setFromEnv(field *string, key, defaultVal string) {
	if *field != "" {
		return
	}
	if val, exists := os.LookupEnv(key); exists && val != "" {
		*field = val
		return
	}
	*field = defaultVal
}

// Validate is the pre-flight check run before anything connects.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" && c.Server.Port == "" {
		errs = append(errs, errors.New("no transport configured: set TELEGRAM_BOT_TOKEN or WS_PORT"))
	}
	if c.ML.ProjectID == "" {
		errs = append(errs, errors.New("GOOGLE_PROJECT_ID is required"))
	}
	if c.ML.CredentialsFile != "" {
		if _, err := os.Stat(c.ML.CredentialsFile); err != nil {
			errs = append(errs, fmt.Errorf("model credentials file %q not found: %w", c.ML.CredentialsFile, err))
		}
	}
	if c.RequestTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %d", c.RequestTimeoutSeconds))
	}

	switch c.Store.Backend {
	case "sheets":
		if c.Store.SheetID == "" {
			errs = append(errs, errors.New("GOOGLE_SHEET_ID is required for the sheets backend"))
		}
		if _, err := os.Stat(c.Store.CredentialsFile); err != nil {
			errs = append(errs, fmt.Errorf("google credentials file %q not found: %w", c.Store.CredentialsFile, err))
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store backend: %s", c.Store.Backend))
	}

	return errors.Join(errs...)
}

// RequestTimeout bounds every external call made for one request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("CALORIE_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
