package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateConfigEnv saves and unsets all DEPLOYBAR_ env vars so tests don't
// inherit values from the host environment (e.g. a running daemon).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range append([]string{"CONFIG_FILE"}, keys...) {
		name := EnvPrefix + key
		if orig, ok := os.LookupEnv(name); ok {
			t.Cleanup(func() { os.Setenv(name, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(name) })
		}
		os.Unsetenv(name)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deploybar.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7878", cfg.ListenAddr)
	assert.Equal(t, StoreKeyring, cfg.Store)
	assert.Equal(t, "deploybar.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.IdleInterval)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 10, cfg.PerAccountLimit)
	assert.Equal(t, 5, cfg.ReconcilePageSize)
	assert.Equal(t, 8, cfg.DefaultLimit)
	assert.InDelta(t, 10, cfg.RateLimit, 0)
	assert.Equal(t, 5, cfg.RateBurst)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.Empty(t, cfg.VercelAPIURL)
	assert.Empty(t, cfg.RailwayAPIURL)
}

func TestLoad_FromEnv(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("DEPLOYBAR_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("DEPLOYBAR_STORE", "SQLite")
	t.Setenv("DEPLOYBAR_SECRET_KEY", "s3cret")
	t.Setenv("DEPLOYBAR_POLL_INTERVAL", "30s")
	t.Setenv("DEPLOYBAR_PER_ACCOUNT_LIMIT", "20")
	t.Setenv("DEPLOYBAR_RATE_LIMIT", "2.5")
	t.Setenv("DEPLOYBAR_LOG_LEVEL", "debug")
	t.Setenv("DEPLOYBAR_LOG_FORMAT", "json")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "s3cret", cfg.SecretKey)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 20, cfg.PerAccountLimit)
	assert.InDelta(t, 2.5, cfg.RateLimit, 0)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	isolateConfigEnv(t)
	path := writeConfigFile(t, `
listen_addr = "127.0.0.1:9999"
poll_interval = "1m"
default_limit = 12
rate_limit = 4
`)
	t.Setenv("DEPLOYBAR_CONFIG_FILE", path)
	t.Setenv("DEPLOYBAR_POLL_INTERVAL", "20s")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	assert.Equal(t, 20*time.Second, cfg.PollInterval, "env wins over file")
	assert.Equal(t, 12, cfg.DefaultLimit)
	assert.InDelta(t, 4, cfg.RateLimit, 0)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
		want string
	}{
		{name: "bad duration", env: map[string]string{"DEPLOYBAR_IDLE_INTERVAL": "soon"}, want: "DEPLOYBAR_IDLE_INTERVAL"},
		{name: "negative duration", env: map[string]string{"DEPLOYBAR_FETCH_TIMEOUT": "-1s"}, want: "must be positive"},
		{name: "bad int", env: map[string]string{"DEPLOYBAR_DEFAULT_LIMIT": "many"}, want: "DEPLOYBAR_DEFAULT_LIMIT"},
		{name: "zero int", env: map[string]string{"DEPLOYBAR_RECONCILE_PAGE_SIZE": "0"}, want: "must be positive"},
		{name: "unknown store", env: map[string]string{"DEPLOYBAR_STORE": "s3"}, want: "DEPLOYBAR_STORE"},
		{name: "sqlite without key", env: map[string]string{"DEPLOYBAR_STORE": "sqlite"}, want: "SECRET_KEY"},
		{name: "bad log level", env: map[string]string{"DEPLOYBAR_LOG_LEVEL": "loud"}, want: "DEPLOYBAR_LOG_LEVEL"},
		{name: "bad log format", env: map[string]string{"DEPLOYBAR_LOG_FORMAT": "xml"}, want: "LOG_FORMAT"},
		{name: "unknown file key", file: "pol_interval = \"1s\"\n", want: "unknown keys pol_interval"},
		{name: "malformed file", file: "listen_addr = \n", want: "parse config file"},
		{name: "table in file", file: "[log_level]\nx = 1\n", want: "must be a scalar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.file != "" {
				t.Setenv(FileEnv, writeConfigFile(t, tt.file))
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "absent.toml"))

	_, err := Load()
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: slog.LevelWarn, LogFormat: LogFormatJSON}

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}
