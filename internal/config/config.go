package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Queue      QueueConfig      `yaml:"queue" mapstructure:"queue"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the batch progress store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// RedisConfig configures the redis store driver.
type RedisConfig struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LLMConfig selects the extraction provider and shared generation settings.
type LLMConfig struct {
	Provider        string  `yaml:"provider" mapstructure:"provider"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	Temperature     float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`

	// BreakerThreshold consecutive provider failures open the circuit for
	// the rest of a run; 0 disables the breaker.
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset" mapstructure:"breaker_reset"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	Model    string `yaml:"model" mapstructure:"model"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	CacheTTL string `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ExtractConfig configures chunking, waves, validity and deduplication.
type ExtractConfig struct {
	MaxChunkTokens     int    `yaml:"max_chunk_tokens" mapstructure:"max_chunk_tokens"`
	SyncWaveSize       int    `yaml:"sync_wave_size" mapstructure:"sync_wave_size"`
	BackgroundWaveSize int    `yaml:"background_wave_size" mapstructure:"background_wave_size"`
	RequirePhoneNumber bool   `yaml:"require_phone_number" mapstructure:"require_phone_number"`
	Dedupe             string `yaml:"dedupe" mapstructure:"dedupe"`
}

// QueueConfig configures the background worker pool.
type QueueConfig struct {
	Workers  int `yaml:"workers" mapstructure:"workers"`
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// MonitoringConfig configures the periodic batch checker.
type MonitoringConfig struct {
	CheckInterval time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	Lookback      time.Duration `yaml:"lookback" mapstructure:"lookback"`
	StaleAfter    time.Duration `yaml:"stale_after" mapstructure:"stale_after"`
	Sweep         bool          `yaml:"sweep" mapstructure:"sweep"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ProviderKey returns the API key of the configured LLM provider. An empty
// result means extraction requests must fail with a configuration error.
func (c *Config) ProviderKey() string {
	switch c.LLM.Provider {
	case "gemini":
		return c.Gemini.Key
	default:
		return c.Anthropic.Key
	}
}

// Validate checks the settings a command needs before it starts. Provider
// credentials are not checked; they are resolved per request. The extract mode
// runs without a store; background adds the store checks to it.
func (c *Config) Validate(mode string) error {
	var errs []string

	if mode != "extract" {
		errs = append(errs, c.validateStore()...)
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Queue.Workers < 1 {
			errs = append(errs, "queue.workers must be >= 1")
		}
		if c.Queue.Capacity < 1 {
			errs = append(errs, "queue.capacity must be >= 1")
		}
		if c.Monitoring.Sweep && c.Monitoring.StaleAfter > 0 && c.Monitoring.StaleAfter <= c.Server.RequestTimeout {
			errs = append(errs, "monitoring.stale_after must exceed server.request_timeout")
		}
		errs = append(errs, c.validateExtract()...)
	case "extract", "background":
		errs = append(errs, c.validateExtract()...)
	case "migrate", "batches":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateStore checks the settings of the selected store driver.
func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of postgres, sqlite, redis", c.Store.Driver))
	}
	return errs
}

func (c *Config) validateExtract() []string {
	var errs []string
	switch c.LLM.Provider {
	case "anthropic", "gemini":
	default:
		errs = append(errs, fmt.Sprintf("llm.provider %q is not one of anthropic, gemini", c.LLM.Provider))
	}
	if c.Extract.SyncWaveSize < 1 || c.Extract.SyncWaveSize > 20 {
		errs = append(errs, "extract.sync_wave_size must be between 1 and 20")
	}
	if c.Extract.BackgroundWaveSize < 1 || c.Extract.BackgroundWaveSize > 20 {
		errs = append(errs, "extract.background_wave_size must be between 1 and 20")
	}
	if c.Extract.MaxChunkTokens < 100 {
		errs = append(errs, "extract.max_chunk_tokens must be >= 100")
	}
	switch c.Extract.Dedupe {
	case "phone", "name_phone", "skip_sentinel":
	default:
		errs = append(errs, fmt.Sprintf("extract.dedupe %q is not one of phone, name_phone, skip_sentinel", c.Extract.Dedupe))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxOutputTokens < 1 {
		errs = append(errs, "llm.max_output_tokens must be >= 1")
	}
	return errs
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key gets one so AutomaticEnv can override it on Unmarshal.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "leads.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.rate_limit_rps", 0)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_output_tokens", 4000)
	v.SetDefault("llm.breaker_threshold", 5)
	v.SetDefault("llm.breaker_reset", "30s")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.cache_ttl", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("extract.max_chunk_tokens", 6000)
	v.SetDefault("extract.sync_wave_size", 1)
	v.SetDefault("extract.background_wave_size", 3)
	v.SetDefault("extract.require_phone_number", false)
	v.SetDefault("extract.dedupe", "phone")
	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.capacity", 64)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout", "10m")
	v.SetDefault("server.poll_interval", "2s")
	v.SetDefault("monitoring.check_interval", "5m")
	v.SetDefault("monitoring.lookback", "24h")
	v.SetDefault("monitoring.stale_after", "30m")
	v.SetDefault("monitoring.sweep", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
