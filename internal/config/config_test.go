package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STATSPORTS_API_KEY", "  key-123 ")
	t.Setenv("STATSPORTS_BASE_URL", "https://example.test/api/")

	cfg := Load()
	assert.Equal(t, "key-123", cfg.APIKey)
	assert.Equal(t, "https://example.test/api", cfg.BaseURL)
	assert.Equal(t, "7", cfg.APIVersion)
	assert.Equal(t, AuthModeBody, cfg.AuthMode)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.HourPause)
	assert.Equal(t, 500*time.Millisecond, cfg.DayPause)
	assert.Equal(t, "runs", cfg.RunsDir)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STATSPORTS_API_KEY", "k")
	t.Setenv("STATSPORTS_AUTH_MODE", "HEADERS")
	t.Setenv("STATSPORTS_TIMEOUT_SECS", "90")
	t.Setenv("STATSPORTS_DISCOVERY_TIMEOUT_SECS", "2.5")
	t.Setenv("STATSPORTS_MAX_RETRIES", "0")
	t.Setenv("STATSPORTS_LOG_LEVEL", "warning")

	cfg := Load()
	assert.Equal(t, AuthModeHeaders, cfg.AuthMode)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2500*time.Millisecond, cfg.ProbeTimeout)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.APIKey = "" }, wantErr: ErrMissingAPIKey},
		{name: "bad auth mode", mutate: func(c *Config) { c.AuthMode = "oauth" }, wantErr: ErrInvalidAuthMode},
		{name: "zero request timeout", mutate: func(c *Config) { c.RequestTimeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative probe timeout", mutate: func(c *Config) { c.ProbeTimeout = -time.Second }, wantErr: ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{APIKey: "k", AuthMode: AuthModeBody, RequestTimeout: time.Second, ProbeTimeout: time.Second}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statsports.yaml")
	content := `
api_key: from-file
auth_mode: headers
runs_dir: /data/runs
probe_timeout: 3s
hour_pause: 50ms
log_level: debug
max_retries: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	base := Config{APIKey: "from-env", APIVersion: "7", RequestTimeout: time.Minute, ProbeTimeout: 10 * time.Second}
	cfg, err := LoadFile(base, path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, "7", cfg.APIVersion, "keys absent from the file keep their value")
	assert.Equal(t, AuthModeHeaders, cfg.AuthMode)
	assert.Equal(t, "/data/runs", cfg.RunsDir)
	assert.Equal(t, 3*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, time.Minute, cfg.RequestTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.HourPause)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 4, cfg.MaxRetries)
}

func TestLoadFileBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("probe_timeout: soon\n"), 0o644))

	_, err := LoadFile(Config{}, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe_timeout")
}

func TestNewLoggerFansOut(t *testing.T) {
	var console, sink bytes.Buffer
	logger := NewLogger(&console, &sink, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("day processed", "date", "2024-03-01", "sessions", 5)

	assert.Contains(t, console.String(), "day processed")
	assert.NotContains(t, console.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(sink.String())), &entry))
	assert.Equal(t, "2024-03-01", entry["date"])
	assert.EqualValues(t, 5, entry["sessions"])
}

func TestSetupLoggerCreatesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "run.log")
	logger, cleanup := SetupLogger(logFile, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
