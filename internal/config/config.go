package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/billboard-signals/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig         `yaml:"store" mapstructure:"store"`
	TomTom     TomTomConfig        `yaml:"tomtom" mapstructure:"tomtom"`
	DENUE      DENUEConfig         `yaml:"denue" mapstructure:"denue"`
	Signals    SignalsConfig       `yaml:"signals" mapstructure:"signals"`
	Fetcher    FetcherConfig       `yaml:"fetcher" mapstructure:"fetcher"`
	Resilience resilience.Settings `yaml:"resilience" mapstructure:"resilience"`
	Batch      BatchConfig         `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig        `yaml:"server" mapstructure:"server"`
	Log        LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the signal store backend. Driver is one of
// postgres, sqlite or redis.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	RedisURL    string `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// TomTomConfig holds TomTom Traffic API settings.
type TomTomConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Zoom      int     `yaml:"zoom" mapstructure:"zoom"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// DENUEConfig holds INEGI DENUE API settings.
type DENUEConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SignalsConfig configures the get-or-compute cache policy.
type SignalsConfig struct {
	StalenessDays int `yaml:"staleness_days" mapstructure:"staleness_days"`
}

// StaleAfter returns the staleness window as a duration.
func (c SignalsConfig) StaleAfter() time.Duration {
	return time.Duration(c.StalenessDays) * 24 * time.Hour
}

// FetcherConfig configures the shared upstream HTTP client.
type FetcherConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SIGNALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key gets a default so AutomaticEnv can override it.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "signals.db")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("tomtom.key", "")
	v.SetDefault("tomtom.base_url", "https://api.tomtom.com")
	v.SetDefault("tomtom.zoom", 10)
	v.SetDefault("tomtom.rate_limit", 5)
	v.SetDefault("denue.token", "")
	v.SetDefault("denue.base_url", "https://www.inegi.org.mx/app/api/denue/v1/consulta")
	v.SetDefault("denue.rate_limit", 2)
	v.SetDefault("signals.staleness_days", 7)
	v.SetDefault("fetcher.timeout_secs", 10)
	v.SetDefault("fetcher.user_agent", "billboard-signals/1.0")
	v.SetDefault("fetcher.max_body_bytes", 8<<20)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff", "250ms")
	v.SetDefault("resilience.max_backoff", "5s")
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout", "30s")
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command mode needs. Modes: migrate,
// signal, batch, serve.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "migrate", "signal", "batch", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			problems = append(problems, "store.sqlite_path is required for the sqlite driver")
		}
	case "redis":
		if c.Store.RedisURL == "" {
			problems = append(problems, "store.redis_url is required for the redis driver")
		}
	default:
		problems = append(problems, "store.driver must be one of postgres, sqlite, redis")
	}

	if mode != "migrate" && c.Signals.StalenessDays <= 0 {
		problems = append(problems, "signals.staleness_days must be > 0")
	}
	if mode == "batch" && (c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50) {
		problems = append(problems, "batch.concurrency must be between 1 and 50")
	}
	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
