package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "signals.db", cfg.Store.SQLitePath)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "https://api.tomtom.com", cfg.TomTom.BaseURL)
	assert.Equal(t, 10, cfg.TomTom.Zoom)
	assert.InDelta(t, 5, cfg.TomTom.RateLimit, 0.001)
	assert.Equal(t, "https://www.inegi.org.mx/app/api/denue/v1/consulta", cfg.DENUE.BaseURL)
	assert.Equal(t, 7, cfg.Signals.StalenessDays)
	assert.Equal(t, 7*24*time.Hour, cfg.Signals.StaleAfter())
	assert.Equal(t, 10, cfg.Fetcher.TimeoutSecs)
	assert.Equal(t, 3, cfg.Resilience.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Resilience.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.Resilience.ResetTimeout)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/signals
signals:
  staleness_days: 3
resilience:
  max_backoff: 2s
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/signals", cfg.Store.DatabaseURL)
	assert.Equal(t, 3, cfg.Signals.StalenessDays)
	assert.Equal(t, 2*time.Second, cfg.Resilience.MaxBackoff)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("SIGNALS_STORE_DRIVER", "redis")
	t.Setenv("SIGNALS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvSecrets(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SIGNALS_TOMTOM_KEY", "tt-key")
	t.Setenv("SIGNALS_DENUE_TOKEN", "denue-token")
	t.Setenv("SIGNALS_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tt-key", cfg.TomTom.Key)
	assert.Equal(t, "denue-token", cfg.DENUE.Token)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "signals.db"
	cfg.Signals.StalenessDays = 7
	cfg.Batch.Concurrency = 4
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Modes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"migrate", "signal", "batch", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}

	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_StoreDrivers(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		wantErr string
	}{
		{"postgres ok", StoreConfig{Driver: "postgres", DatabaseURL: "postgres://x"}, ""},
		{"postgres missing url", StoreConfig{Driver: "postgres"}, "store.database_url is required"},
		{"sqlite missing path", StoreConfig{Driver: "sqlite"}, "store.sqlite_path is required"},
		{"redis ok", StoreConfig{Driver: "redis", RedisURL: "redis://localhost:6379"}, ""},
		{"redis missing url", StoreConfig{Driver: "redis"}, "store.redis_url is required"},
		{"unknown driver", StoreConfig{Driver: "mysql"}, "store.driver must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			cfg.Store = tt.store
			err := cfg.Validate("signal")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Staleness(t *testing.T) {
	cfg := validDefaults()
	cfg.Signals.StalenessDays = 0

	err := cfg.Validate("signal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signals.staleness_days must be > 0")

	// migrate never reads signals
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidate_BatchConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	for _, n := range []int{0, 51} {
		cfg.Batch.Concurrency = n
		err := cfg.Validate("batch")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 50")
	}

	cfg.Batch.Concurrency = 50
	assert.NoError(t, cfg.Validate("batch"))
	cfg.Batch.Concurrency = 0
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Server.Port = -1
	cfg.Signals.StalenessDays = -2

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")
	assert.Contains(t, err.Error(), "staleness_days")
	assert.Contains(t, err.Error(), "server.port")
}
