// Package config loads process configuration from the environment, with an
// optional .env file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultDatabaseURL is used when neither DATABASE_URL nor the DB_* parts are set.
const DefaultDatabaseURL = "sqlite://./nudger.db"

// Config holds all configuration for the nudger service.
type Config struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// FCM push gateway. An empty service account file disables push.
	FCMServiceAccountFile string
	FCMProjectID          string
	FCMEndpoint           string
	FCMTimeout            time.Duration
	// PushRatePerSec caps gateway calls; zero means unlimited.
	PushRatePerSec int

	// DispatchWorkers bounds concurrent fires; DispatchTimeout bounds one fire.
	DispatchWorkers int
	DispatchTimeout time.Duration

	ShutdownTimeout time.Duration

	SeedCatalog    bool
	MetricsEnabled bool
	MetricsPath    string
	// AllowedOrigins feeds the CORS middleware.
	AllowedOrigins []string
}

// LoadDotEnv loads variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseURL:           databaseURL(),
		HTTPAddr:              getEnv("HTTP_ADDR", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DBMaxOpenConns:        getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:        getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime:     getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		FCMServiceAccountFile: os.Getenv("FCM_SERVICE_ACCOUNT_FILE"),
		FCMProjectID:          os.Getenv("FCM_PROJECT_ID"),
		FCMEndpoint:           getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com"),
		FCMTimeout:            getEnvDuration("FCM_TIMEOUT", 10*time.Second),
		PushRatePerSec:        getEnvInt("PUSH_RATE_PER_SEC", 50),
		DispatchWorkers:       getEnvInt("DISPATCH_WORKERS", 8),
		DispatchTimeout:       getEnvDuration("DISPATCH_TIMEOUT", 30*time.Second),
		ShutdownTimeout:       getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		SeedCatalog:           getEnvBool("SEED_CATALOG", true),
		MetricsEnabled:        getEnvBool("METRICS_ENABLED", true),
		MetricsPath:           getEnv("METRICS_PATH", "/metrics"),
		AllowedOrigins:        splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
	}

	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8000"
		}
	}
	return cfg
}

// databaseURL prefers DATABASE_URL, then a PostgreSQL URL assembled from
// DB_USER, DB_PASSWORD, DB_HOST, DB_PORT and DB_NAME when all are present.
func databaseURL() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	user, pass := os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD")
	host, port, name := os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_NAME")
	if user == "" || pass == "" || host == "" || port == "" || name == "" {
		return DefaultDatabaseURL
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, pass),
		Host:   host + ":" + port,
		Path:   "/" + name,
	}
	return u.String()
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var problems []string

	switch {
	case strings.HasPrefix(c.DatabaseURL, "sqlite://"),
		strings.HasPrefix(c.DatabaseURL, "postgres://"),
		strings.HasPrefix(c.DatabaseURL, "postgresql://"):
	default:
		problems = append(problems, fmt.Sprintf("DATABASE_URL: unsupported scheme in %q", MaskSecret(c.DatabaseURL)))
	}
	if c.DispatchWorkers <= 0 {
		problems = append(problems, "DISPATCH_WORKERS: must be positive")
	}
	if c.PushRatePerSec < 0 {
		problems = append(problems, "PUSH_RATE_PER_SEC: must not be negative")
	}
	if c.DispatchTimeout <= 0 {
		problems = append(problems, "DISPATCH_TIMEOUT: must be positive")
	}
	if c.FCMServiceAccountFile != "" {
		if _, err := os.Stat(c.FCMServiceAccountFile); err != nil {
			problems = append(problems, fmt.Sprintf("FCM_SERVICE_ACCOUNT_FILE: %v", err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL           string   `json:"database_url"`
		HTTPAddr              string   `json:"http_addr"`
		LogLevel              string   `json:"log_level"`
		DBMaxOpenConns        int      `json:"db_max_open_conns"`
		DBMaxIdleConns        int      `json:"db_max_idle_conns"`
		DBConnMaxLifetime     string   `json:"db_conn_max_lifetime"`
		FCMServiceAccountFile string   `json:"fcm_service_account_file,omitempty"`
		FCMProjectID          string   `json:"fcm_project_id,omitempty"`
		FCMEndpoint           string   `json:"fcm_endpoint"`
		FCMTimeout            string   `json:"fcm_timeout"`
		PushRatePerSec        int      `json:"push_rate_per_sec"`
		DispatchWorkers       int      `json:"dispatch_workers"`
		DispatchTimeout       string   `json:"dispatch_timeout"`
		ShutdownTimeout       string   `json:"shutdown_timeout"`
		SeedCatalog           bool     `json:"seed_catalog"`
		MetricsEnabled        bool     `json:"metrics_enabled"`
		MetricsPath           string   `json:"metrics_path"`
		AllowedOrigins        []string `json:"allowed_origins"`
	}{
		DatabaseURL:           MaskSecret(c.DatabaseURL),
		HTTPAddr:              c.HTTPAddr,
		LogLevel:              c.LogLevel,
		DBMaxOpenConns:        c.DBMaxOpenConns,
		DBMaxIdleConns:        c.DBMaxIdleConns,
		DBConnMaxLifetime:     c.DBConnMaxLifetime.String(),
		FCMServiceAccountFile: c.FCMServiceAccountFile,
		FCMProjectID:          c.FCMProjectID,
		FCMEndpoint:           c.FCMEndpoint,
		FCMTimeout:            c.FCMTimeout.String(),
		PushRatePerSec:        c.PushRatePerSec,
		DispatchWorkers:       c.DispatchWorkers,
		DispatchTimeout:       c.DispatchTimeout.String(),
		ShutdownTimeout:       c.ShutdownTimeout.String(),
		SeedCatalog:           c.SeedCatalog,
		MetricsEnabled:        c.MetricsEnabled,
		MetricsPath:           c.MetricsPath,
		AllowedOrigins:        c.AllowedOrigins,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// MaskSecret hides credentials, keeping only the URI scheme if present.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		if strings.HasPrefix(s, "sqlite://") {
			return s
		}
		return s[:i+3] + "***"
	}
	return "***"
}

func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvInt retrieves an integer from environment variable with default fallback
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration from environment variable with default fallback
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
