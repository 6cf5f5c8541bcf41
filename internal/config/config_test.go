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
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.SQLitePath)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 0.0001)
	assert.Equal(t, 4000, cfg.LLM.MaxOutputTokens)
	assert.Equal(t, 5, cfg.LLM.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.LLM.BreakerReset)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 6000, cfg.Extract.MaxChunkTokens)
	assert.Equal(t, 1, cfg.Extract.SyncWaveSize)
	assert.Equal(t, 3, cfg.Extract.BackgroundWaveSize)
	assert.False(t, cfg.Extract.RequirePhoneNumber)
	assert.Equal(t, "phone", cfg.Extract.Dedupe)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, 64, cfg.Queue.Capacity)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Minute, cfg.Server.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.Server.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Monitoring.CheckInterval)
	assert.Equal(t, 24*time.Hour, cfg.Monitoring.Lookback)
	assert.Equal(t, 30*time.Minute, cfg.Monitoring.StaleAfter)
	assert.True(t, cfg.Monitoring.Sweep)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Anthropic.Key)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  sqlite_path: /tmp/leads.db
llm:
  provider: gemini
extract:
  background_wave_size: 5
  require_phone_number: true
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/leads.db", cfg.Store.SQLitePath)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Extract.BackgroundWaveSize)
	assert.True(t, cfg.Extract.RequirePhoneNumber)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 1, cfg.Extract.SyncWaveSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADS_STORE_DRIVER", "redis")
	t.Setenv("LEADS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LEADS_SERVER_PORT", "3000")
	t.Setenv("LEADS_ANTHROPIC_KEY", "sk-ant-test")
	t.Setenv("LEADS_REDIS_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestProviderKey(t *testing.T) {
	cfg := &Config{}
	cfg.Anthropic.Key = "sk-ant"
	cfg.Gemini.Key = "gm-key"

	cfg.LLM.Provider = "anthropic"
	assert.Equal(t, "sk-ant", cfg.ProviderKey())

	cfg.LLM.Provider = "gemini"
	assert.Equal(t, "gm-key", cfg.ProviderKey())

	cfg.LLM.Provider = ""
	assert.Equal(t, "sk-ant", cfg.ProviderKey())
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "leads.db"
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.Temperature = 0.1
	cfg.LLM.MaxOutputTokens = 4000
	cfg.Extract.MaxChunkTokens = 6000
	cfg.Extract.SyncWaveSize = 1
	cfg.Extract.BackgroundWaveSize = 3
	cfg.Extract.Dedupe = "phone"
	cfg.Queue.Workers = 2
	cfg.Queue.Capacity = 64
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidate_MissingCredentialsIsNotAnError(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = ""
	assert.NoError(t, cfg.Validate("extract"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateStoreDrivers(t *testing.T) {
	cfg := validDefaults()

	cfg.Store.Driver = "postgres"
	err := cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/leads"
	assert.NoError(t, cfg.Validate("migrate"))

	cfg.Store.Driver = "redis"
	err = cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr is required")

	cfg.Store.Driver = "mongo"
	err = cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mongo"`)
}

func TestValidateExtractSkipsStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	assert.NoError(t, cfg.Validate("extract"))

	err := cfg.Validate("background")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateWaveSizeBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Extract.BackgroundWaveSize = 0
	err := cfg.Validate("extract")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "background_wave_size must be between 1 and 20")

	cfg.Extract.BackgroundWaveSize = 3
	cfg.Extract.SyncWaveSize = 21
	err = cfg.Validate("extract")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sync_wave_size must be between 1 and 20")

	cfg.Extract.SyncWaveSize = 20
	assert.NoError(t, cfg.Validate("extract"))
}

func TestValidateExtractSettings(t *testing.T) {
	cfg := validDefaults()
	cfg.LLM.Provider = "openai"
	cfg.Extract.Dedupe = "email"
	cfg.LLM.Temperature = 3
	cfg.Queue.Workers = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `llm.provider "openai"`)
	assert.Contains(t, err.Error(), `extract.dedupe "email"`)
	assert.Contains(t, err.Error(), "llm.temperature")
	assert.Contains(t, err.Error(), "queue.workers must be >= 1")
}

func TestValidateServe_StaleWindow(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.RequestTimeout = 10 * time.Minute
	cfg.Monitoring.Sweep = true
	cfg.Monitoring.StaleAfter = 5 * time.Minute

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.stale_after")

	cfg.Monitoring.StaleAfter = 30 * time.Minute
	assert.NoError(t, cfg.Validate("serve"))
}
