package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stickynotes/stickynotes-server/internal/domain"
)

var envKeys = []string{
	"ENV", "LOG_LEVEL", "SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
	"SERVER_IDLE_TIMEOUT", "CORS_ORIGINS", "STORAGE_BACKEND", "DATA_PATH", "NOTES_COUNT_MODE",
	"CACHE_PATH", "CACHE_IN_MEMORY", "CACHE_DISABLED", "TOKEN_KEY_PATH", "TOKEN_DURATION",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_INTERVAL", "RATE_LIMIT_BURST",
}

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	envFile := filepath.Join(t.TempDir(), "missing.env")
	return Load(append([]string{"-env-file", envFile}, args...))
}

func validConfig() *Config {
	return &Config{
		App:       AppConfig{Environment: "development"},
		Logger:    LoggerConfig{Level: "info"},
		Storage:   StorageConfig{Backend: BackendSQLite, DataPath: "/data"},
		Auth:      AuthConfig{TokenDuration: time.Hour},
		RateLimit: RateLimitConfig{Enabled: true, Requests: 10, Interval: time.Minute, Burst: 5},
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dataPath := t.TempDir()

	cfg, err := load(t, "-data-path", dataPath)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, domain.CountMode(""), cfg.Storage.CountMode, "empty means backend default")
	assert.Equal(t, filepath.Join(dataPath, "stickynotes.db"), cfg.Storage.SQLitePath())
	assert.Equal(t, filepath.Join(dataPath, "docstore"), cfg.Storage.DocstorePath())
	assert.Equal(t, filepath.Join(dataPath, "cache"), cfg.Cache.Path)
	assert.Equal(t, dataPath, cfg.Auth.KeyPath)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenDuration)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 300, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Interval)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"STORAGE_BACKEND=docstore\nNOTES_COUNT_MODE=primary\nLOG_LEVEL=warn\nSERVER_PORT=9000\n",
	), 0o600))

	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load([]string{"-env-file", envFile, "-data-path", dir, "-port", "7000"})
	require.NoError(t, err)

	assert.Equal(t, BackendDocstore, cfg.Storage.Backend, ".env fills unset variables")
	assert.Equal(t, domain.CountPrimary, cfg.Storage.CountMode)
	assert.Equal(t, "debug", cfg.Logger.Level, "environment beats .env")
	assert.Equal(t, "7000", cfg.Server.Port, "flags beat everything")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "mongo"}},
		{"unknown count mode", map[string]string{"NOTES_COUNT_MODE": "everything"}},
		{"bad duration", map[string]string{"TOKEN_DURATION": "soon"}},
		{"bad int", map[string]string{"RATE_LIMIT_REQUESTS": "lots"}},
		{"bad environment", map[string]string{"ENV": "test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(t, "-data-path", t.TempDir())
			assert.Error(t, err)
		})
	}
}

func TestLoad_UnknownFlag(t *testing.T) {
	clearEnv(t)
	_, err := load(t, "-no-such-flag")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"valid", func(*Config) {}, true},
		{"staging", func(c *Config) { c.App.Environment = "staging" }, true},
		{"case sensitive environment", func(c *Config) { c.App.Environment = "DEVELOPMENT" }, false},
		{"missing environment", func(c *Config) { c.App.Environment = "" }, false},
		{"upper case level", func(c *Config) { c.Logger.Level = "WARN" }, true},
		{"unknown level", func(c *Config) { c.Logger.Level = "trace" }, false},
		{"docstore", func(c *Config) { c.Storage.Backend = BackendDocstore }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }, false},
		{"membership count", func(c *Config) { c.Storage.CountMode = domain.CountMembership }, true},
		{"unknown count", func(c *Config) { c.Storage.CountMode = "all" }, false},
		{"empty data path", func(c *Config) { c.Storage.DataPath = "" }, false},
		{"zero token duration", func(c *Config) { c.Auth.TokenDuration = 0 }, false},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }, false},
		{"disabled limiter ignores limits", func(c *Config) { c.RateLimit = RateLimitConfig{} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("~/notes", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "notes"), got)

	got, err = expandPath("/a/../b/", "")
	require.NoError(t, err)
	assert.Equal(t, "/b", got)

	got, err = expandPath("relative", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitList(" https://a.example, ,https://b.example "))
	assert.Nil(t, splitList(""))
}
