// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.civicdesk/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: Gemini model for classification, embedder model for vectors
//   - Storage: PostgreSQL/pgvector connection
//   - Intake: department enumeration, upload directory, oracle timeouts
//
// Security: sensitive data (passwords) is masked in MarshalJSON/String.
// Validation: fail-fast range checks in validation.go with sentinel errors.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidDepartments indicates the department enumeration is unusable.
	ErrInvalidDepartments = errors.New("invalid departments")

	// ErrInvalidOracleTimeout indicates the oracle timeout is out of range.
	ErrInvalidOracleTimeout = errors.New("invalid oracle timeout")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")
)

const (
	// DefaultGeminiModel is the default model for complaint classification
	// and relevance assessment.
	DefaultGeminiModel = "gemini-2.0-flash"

	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default but supports
	// truncation to 768 via OutputDimensionality; our pgvector schema uses
	// 768 dimensions (see vecstore.VectorDimension).
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultDepartment is where complaints land when the oracle cannot
	// determine a better match.
	DefaultDepartment = "Municipality"
)

// DefaultDepartments is the civic department enumeration used when the
// config file does not override it.
var DefaultDepartments = []string{
	"Transport Department",
	DefaultDepartment,
	"Sanitation Department",
	"Health Department",
	"Water Department",
	"Electricity Department",
	"Public Works Department",
	"Environment Department",
	"Education Department",
	"Police Department",
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI model configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Classification oracle behavior
	OracleTimeoutSeconds int     `mapstructure:"oracle_timeout_seconds" json:"oracle_timeout_seconds"`
	OracleRatePerSecond  float64 `mapstructure:"oracle_rate_per_second" json:"oracle_rate_per_second"`

	// Complaint intake configuration
	Departments []string `mapstructure:"departments" json:"departments"`
	UploadDir   string   `mapstructure:"upload_dir" json:"upload_dir"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration (serve mode)
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".civicdesk")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when present
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("model_name", DefaultGeminiModel)
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)

	viper.SetDefault("oracle_timeout_seconds", 30)
	viper.SetDefault("oracle_rate_per_second", 2.0)

	viper.SetDefault("departments", DefaultDepartments)
	viper.SetDefault("upload_dir", "./uploads")

	// PostgreSQL defaults for local development
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "civicdesk")
	viper.SetDefault("postgres_password", "civicdesk_dev_password")
	viper.SetDefault("postgres_db_name", "civicdesk")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("listen_addr", "127.0.0.1:8800")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit (not via Viper); its presence is
// checked in Validate().
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "CIVICDESK_MODEL_NAME")
	mustBind("embedder_model", "CIVICDESK_EMBEDDER_MODEL")
	mustBind("upload_dir", "CIVICDESK_UPLOAD_DIR")
	mustBind("listen_addr", "CIVICDESK_LISTEN_ADDR")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid substring matches against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 characters
// or fewer are fully masked; longer secrets keep the first and last two
// characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
