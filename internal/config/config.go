// Package config holds runtime configuration for statsports.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Auth modes supported by the STATSports third-party API.
const (
	AuthModeBody    = "body"
	AuthModeHeaders = "headers"
)

// DefaultBaseURL is the production third-party API root.
const DefaultBaseURL = "https://statsportsproseries.com/thirdpartyapi/api"

var (
	// ErrMissingAPIKey is returned by Validate when no API key is configured.
	ErrMissingAPIKey = errors.New("STATSPORTS_API_KEY is required")

	// ErrInvalidAuthMode is returned by Validate for an unknown auth mode.
	ErrInvalidAuthMode = errors.New(`auth mode must be "body" or "headers"`)

	// ErrInvalidTimeout is returned by Validate for a non-positive timeout.
	ErrInvalidTimeout = errors.New("timeouts must be positive")
)

// Config holds all configuration values.
type Config struct {
	// STATSports API
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	APIVersion string `yaml:"api_version"`
	BaseURL    string `yaml:"base_url"`
	AuthMode   string `yaml:"auth_mode"`

	// Request behaviour
	RequestTimeout time.Duration `yaml:"-"`
	ProbeTimeout   time.Duration `yaml:"-"`
	MaxRetries     int           `yaml:"max_retries"`
	Backoff        float64       `yaml:"backoff"`
	HourPause      time.Duration `yaml:"-"`
	DayPause       time.Duration `yaml:"-"`

	// Run output
	RunsDir     string `yaml:"runs_dir"`
	Compression string `yaml:"compression"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`

	// SurrealDB publishing
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Azure Blob upload
	AzureAccount   string `yaml:"azure_account"`
	AzureKey       string `yaml:"azure_key"`
	AzureContainer string `yaml:"azure_container"`
}

// Load reads configuration from environment variables.
// Defaults match the original extraction scripts.
func Load() Config {
	return Config{
		APIKey:     strings.TrimSpace(getEnv("STATSPORTS_API_KEY", "")),
		APISecret:  strings.TrimSpace(getEnv("STATSPORTS_API_SECRET", "")),
		APIVersion: strings.TrimSpace(getEnv("STATSPORTS_API_VERSION", "7")),
		BaseURL:    strings.TrimRight(getEnv("STATSPORTS_BASE_URL", DefaultBaseURL), "/"),
		AuthMode:   strings.ToLower(strings.TrimSpace(getEnv("STATSPORTS_AUTH_MODE", AuthModeBody))),

		RequestTimeout: getSeconds("STATSPORTS_TIMEOUT_SECS", 60*time.Second),
		ProbeTimeout:   getSeconds("STATSPORTS_DISCOVERY_TIMEOUT_SECS", 10*time.Second),
		MaxRetries:     getInt("STATSPORTS_MAX_RETRIES", 2),
		Backoff:        getFloat("STATSPORTS_BACKOFF", 1.5),
		HourPause:      getDuration("STATSPORTS_HOUR_PAUSE", 200*time.Millisecond),
		DayPause:       getDuration("STATSPORTS_DAY_PAUSE", 500*time.Millisecond),

		RunsDir:     getEnv("STATSPORTS_RUNS_DIR", "runs"),
		Compression: getEnv("STATSPORTS_COMPRESSION", ""),

		LogFile:  getEnv("STATSPORTS_LOG_FILE", "statsports.log"),
		LogLevel: ParseLogLevel(getEnv("STATSPORTS_LOG_LEVEL", "INFO")),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "statsports"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "sessions"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		AzureAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		AzureKey:       getEnv("AZURE_STORAGE_KEY", ""),
		AzureContainer: getEnv("AZURE_STORAGE_CONTAINER", "statsports"),
	}
}

// fileConfig mirrors Config for YAML overlays. Durations are strings so
// "90s" and "250ms" both work.
type fileConfig struct {
	Config         `yaml:",inline"`
	RequestTimeout string `yaml:"request_timeout"`
	ProbeTimeout   string `yaml:"probe_timeout"`
	HourPause      string `yaml:"hour_pause"`
	DayPause       string `yaml:"day_pause"`
	LogLevel       string `yaml:"log_level"`
}

// LoadFile overlays the YAML file at path onto cfg. Only keys present in the
// file replace values already in cfg.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	overlay := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	overlay(&cfg.APIKey, fc.APIKey)
	overlay(&cfg.APISecret, fc.APISecret)
	overlay(&cfg.APIVersion, fc.APIVersion)
	overlay(&cfg.BaseURL, strings.TrimRight(fc.BaseURL, "/"))
	overlay(&cfg.AuthMode, strings.ToLower(fc.AuthMode))
	overlay(&cfg.RunsDir, fc.RunsDir)
	overlay(&cfg.Compression, fc.Compression)
	overlay(&cfg.LogFile, fc.LogFile)
	overlay(&cfg.SurrealDBURL, fc.SurrealDBURL)
	overlay(&cfg.SurrealDBNamespace, fc.SurrealDBNamespace)
	overlay(&cfg.SurrealDBDatabase, fc.SurrealDBDatabase)
	overlay(&cfg.SurrealDBUser, fc.SurrealDBUser)
	overlay(&cfg.SurrealDBPass, fc.SurrealDBPass)
	overlay(&cfg.SurrealDBAuthLevel, fc.SurrealDBAuthLevel)
	overlay(&cfg.AzureAccount, fc.AzureAccount)
	overlay(&cfg.AzureKey, fc.AzureKey)
	overlay(&cfg.AzureContainer, fc.AzureContainer)

	if fc.MaxRetries > 0 {
		cfg.MaxRetries = fc.MaxRetries
	}
	if fc.Backoff > 0 {
		cfg.Backoff = fc.Backoff
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = ParseLogLevel(fc.LogLevel)
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"request_timeout", fc.RequestTimeout, &cfg.RequestTimeout},
		{"probe_timeout", fc.ProbeTimeout, &cfg.ProbeTimeout},
		{"hour_pause", fc.HourPause, &cfg.HourPause},
		{"day_pause", fc.DayPause, &cfg.DayPause},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

// Validate reports configuration errors that must stop a run before it
// starts.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.AuthMode != AuthModeBody && c.AuthMode != AuthModeHeaders {
		return fmt.Errorf("%w: %q", ErrInvalidAuthMode, c.AuthMode)
	}
	if c.RequestTimeout <= 0 || c.ProbeTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultVal
}

// getSeconds reads a whole or fractional number of seconds.
func getSeconds(key string, defaultVal time.Duration) time.Duration {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		return time.Duration(f * float64(time.Second))
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultVal
}

// ParseLogLevel maps a level name to a slog level, defaulting to INFO.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
