// Package config loads application configuration from environment variables,
// optionally layered over a TOML file.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is prepended to every configuration key in the environment.
const EnvPrefix = "DEPLOYBAR_"

// FileEnv names the optional TOML file. Keys in the file are the lower-case
// configuration keys without the prefix, e.g. poll_interval = "10s".
const FileEnv = EnvPrefix + "CONFIG_FILE"

// Secure store backends.
const (
	StoreKeyring = "keyring"
	StoreSQLite  = "sqlite"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// keys lists every configuration key Load reads.
var keys = []string{
	"LISTEN_ADDR",
	"STORE",
	"DB_PATH",
	"SECRET_KEY",
	"IDLE_INTERVAL",
	"POLL_INTERVAL",
	"FETCH_TIMEOUT",
	"PER_ACCOUNT_LIMIT",
	"RECONCILE_PAGE_SIZE",
	"DEFAULT_LIMIT",
	"VERCEL_API_URL",
	"RAILWAY_API_URL",
	"RATE_LIMIT",
	"RATE_BURST",
	"LOG_LEVEL",
	"LOG_FORMAT",
}

// Config holds the application configuration.
type Config struct {
	ListenAddr string
	Store      string
	DBPath     string
	SecretKey  string

	IdleInterval      time.Duration
	PollInterval      time.Duration
	FetchTimeout      time.Duration
	PerAccountLimit   int
	ReconcilePageSize int
	DefaultLimit      int

	VercelAPIURL  string
	RailwayAPIURL string
	RateLimit     float64
	RateBurst     int

	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from DEPLOYBAR_* environment variables and
// returns a validated Config. When DEPLOYBAR_CONFIG_FILE names a TOML file
// its values are used wherever the environment is silent.
//
// Defaults: LISTEN_ADDR 127.0.0.1:7878, STORE keyring, DB_PATH deploybar.db,
// IDLE_INTERVAL 5s, POLL_INTERVAL 10s, FETCH_TIMEOUT 15s, PER_ACCOUNT_LIMIT 10,
// RECONCILE_PAGE_SIZE 5, DEFAULT_LIMIT 8, RATE_LIMIT 10, RATE_BURST 5,
// LOG_LEVEL info, LOG_FORMAT text. Empty API URLs select the production
// endpoints.
func Load() (*Config, error) {
	file, err := readFile(os.Getenv(FileEnv))
	if err != nil {
		return nil, err
	}
	src := source{file: file}

	cfg := &Config{
		ListenAddr:    src.string("LISTEN_ADDR", "127.0.0.1:7878"),
		Store:         strings.ToLower(src.string("STORE", StoreKeyring)),
		DBPath:        src.string("DB_PATH", "deploybar.db"),
		SecretKey:     src.string("SECRET_KEY", ""),
		VercelAPIURL:  src.string("VERCEL_API_URL", ""),
		RailwayAPIURL: src.string("RAILWAY_API_URL", ""),
		LogFormat:     strings.ToLower(src.string("LOG_FORMAT", LogFormatText)),
	}

	if cfg.IdleInterval, err = src.duration("IDLE_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = src.duration("POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = src.duration("FETCH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.PerAccountLimit, err = src.positiveInt("PER_ACCOUNT_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.ReconcilePageSize, err = src.positiveInt("RECONCILE_PAGE_SIZE", 5); err != nil {
		return nil, err
	}
	if cfg.DefaultLimit, err = src.positiveInt("DEFAULT_LIMIT", 8); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = src.positiveInt("RATE_BURST", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = src.positiveFloat("RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = src.level("LOG_LEVEL", slog.LevelInfo); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreKeyring:
	case StoreSQLite:
		if c.SecretKey == "" {
			return fmt.Errorf("%sSECRET_KEY is required when %sSTORE is %s", EnvPrefix, EnvPrefix, StoreSQLite)
		}
	default:
		return fmt.Errorf("%sSTORE must be %s or %s, got %q", EnvPrefix, StoreKeyring, StoreSQLite, c.Store)
	}

	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("%sLOG_FORMAT must be %s or %s, got %q", EnvPrefix, LogFormatText, LogFormatJSON, c.LogFormat)
	}
	return nil
}

// NewLogger builds the process logger described by the configuration.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// readFile decodes the optional TOML file into lower-case keys. Unknown keys
// are rejected so typos fail fast.
func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	known := make(map[string]bool, len(keys))
	for _, k := range keys {
		known[strings.ToLower(k)] = true
	}

	out := make(map[string]string, len(raw))
	var unknown []string
	for k, v := range raw {
		k = strings.ToLower(k)
		if !known[k] {
			unknown = append(unknown, k)
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("config file %s: %s must be a scalar", path, k)
		}
		out[k] = fmt.Sprint(v)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(unknown, ", "))
	}
	return out, nil
}

// source resolves a key from the environment first, then the file.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) (string, string, bool) {
	name := EnvPrefix + key
	if v, ok := os.LookupEnv(name); ok {
		return v, name, true
	}
	if v, ok := s.file[strings.ToLower(key)]; ok {
		return v, strings.ToLower(key), true
	}
	return "", name, false
}

func (s source) string(key, def string) string {
	if v, _, ok := s.lookup(key); ok {
		return v
	}
	return def
}

func (s source) duration(key string, def time.Duration) (time.Duration, error) {
	v, name, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", name, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, v)
	}
	return parsed, nil
}

func (s source) positiveInt(key string, def int) (int, error) {
	v, name, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", name, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", name, parsed)
	}
	return parsed, nil
}

func (s source) positiveFloat(key string, def float64) (float64, error) {
	v, name, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid number %q: %w", name, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, v)
	}
	return parsed, nil
}

func (s source) level(key string, def slog.Level) (slog.Level, error) {
	v, name, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("%s has invalid level %q: %w", name, v, err)
	}
	return lvl, nil
}
