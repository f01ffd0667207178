// Package config loads server configuration from command-line flags,
// environment variables and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/stickynotes/stickynotes-server/internal/domain"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendDocstore = "docstore"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// StorageConfig selects and locates the storage backend.
type StorageConfig struct {
	Backend  string // sqlite or docstore
	DataPath string // base directory for everything on disk
	// CountMode overrides the backend's note count default when set.
	CountMode domain.CountMode
}

// SQLitePath is the relational database file.
func (s StorageConfig) SQLitePath() string {
	return filepath.Join(s.DataPath, "stickynotes.db")
}

// DocstorePath is the document store directory.
func (s StorageConfig) DocstorePath() string {
	return filepath.Join(s.DataPath, "docstore")
}

// CacheConfig locates the persistent local cache.
type CacheConfig struct {
	Path     string // defaults to {data}/cache
	InMemory bool
	Disabled bool
}

// AuthConfig holds access token configuration.
type AuthConfig struct {
	KeyPath       string // directory holding the token key, defaults to {data}
	TokenDuration time.Duration
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Interval time.Duration
	Burst    int
}

// LoadConfig loads configuration from the process arguments and environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("stickynotes", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed origins (default: *)")
	backend := fs.String("storage-backend", "", "Storage backend: sqlite or docstore (default: sqlite)")
	dataPath := fs.String("data-path", "", "Base directory for stored data")
	countMode := fs.String("notes-count-mode", "", "Bucket note count: primary or membership (default: per backend)")
	cachePath := fs.String("cache-path", "", "Directory for the local cache")
	cacheInMemory := fs.String("cache-in-memory", "", "Keep the local cache in memory (default: false)")
	cacheDisabled := fs.String("cache-disabled", "", "Disable the local cache (default: false)")
	keyPath := fs.String("key-path", "", "Directory holding the token key")
	tokenDuration := fs.String("token-duration", "", "Access token lifetime (default: 24h)")
	rateEnabled := fs.String("rate-limit", "", "Enable per-client rate limiting (default: true)")
	rateRequests := fs.String("rate-limit-requests", "", "Requests allowed per interval (default: 300)")
	rateInterval := fs.String("rate-limit-interval", "", "Rate limit interval (default: 1m)")
	rateBurst := fs.String("rate-limit-burst", "", "Rate limit burst (default: 50)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is fine; variables already set take precedence.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(getConfigValue(*backend, "STORAGE_BACKEND", BackendSQLite)),
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Cache: CacheConfig{
			Path:     getConfigValue(*cachePath, "CACHE_PATH", ""),
			InMemory: getBoolConfigValue(*cacheInMemory, "CACHE_IN_MEMORY", false),
			Disabled: getBoolConfigValue(*cacheDisabled, "CACHE_DISABLED", false),
		},
		Auth: AuthConfig{
			KeyPath: getConfigValue(*keyPath, "TOKEN_KEY_PATH", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolConfigValue(*rateEnabled, "RATE_LIMIT_ENABLED", true),
		},
	}

	var err error
	if cfg.Storage.CountMode, err = domain.ParseCountMode(getConfigValue(*countMode, "NOTES_COUNT_MODE", "")); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Requests, err = getIntConfigValue(*rateRequests, "RATE_LIMIT_REQUESTS", 300); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Burst, err = getIntConfigValue(*rateBurst, "RATE_LIMIT_BURST", 50); err != nil {
		return nil, err
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Auth.TokenDuration, *tokenDuration, "TOKEN_DURATION", "24h"},
		{&cfg.RateLimit.Interval, *rateInterval, "RATE_LIMIT_INTERVAL", "1m"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = v
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Storage.Backend {
	case BackendSQLite, BackendDocstore:
	default:
		return fmt.Errorf("invalid storage backend: %q (must be %s or %s)", c.Storage.Backend, BackendSQLite, BackendDocstore)
	}
	if _, err := domain.ParseCountMode(string(c.Storage.CountMode)); err != nil {
		return err
	}
	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Auth.TokenDuration <= 0 {
		return errors.New("token duration must be positive")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 || c.RateLimit.Interval <= 0 {
			return errors.New("rate limit requests and interval must be positive")
		}
		if c.RateLimit.Burst < 1 {
			return errors.New("rate limit burst must be at least 1")
		}
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// expandPaths resolves the data path and the paths defaulting under it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Storage.DataPath, err = expandPath(c.Storage.DataPath, filepath.Join(homeDir, ".stickynotes")); err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	if c.Cache.Path, err = expandPath(c.Cache.Path, filepath.Join(c.Storage.DataPath, "cache")); err != nil {
		return fmt.Errorf("invalid cache path: %w", err)
	}
	if c.Auth.KeyPath, err = expandPath(c.Auth.KeyPath, c.Storage.DataPath); err != nil {
		return fmt.Errorf("invalid key path: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned as is.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) (int, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
