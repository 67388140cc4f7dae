package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/civica-research/arenactl/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Coverage  CoverageConfig  `yaml:"coverage" mapstructure:"coverage"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// CoverageConfig configures the admission controller.
type CoverageConfig struct {
	// MaxAttemptAgeDays bounds how old attempt metadata may be before the
	// fast path stops trusting it.
	MaxAttemptAgeDays int `yaml:"max_attempt_age_days" mapstructure:"max_attempt_age_days"`
}

// PricingConfig configures credit cost estimation.
type PricingConfig struct {
	// RatesFile points at a YAML rates file; empty uses built-in defaults.
	RatesFile string `yaml:"rates_file" mapstructure:"rates_file"`
}

// ReconcileConfig configures the leaked-reservation sweep.
type ReconcileConfig struct {
	// MinAgeHours is how long a reservation must sit unsettled before the
	// sweep refunds it.
	MinAgeHours int `yaml:"min_age_hours" mapstructure:"min_age_hours"`
	// RatePerSecond throttles refund writes during a sweep.
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// ServerConfig configures the admin API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ARENACTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("coverage.max_attempt_age_days", 30)
	v.SetDefault("reconcile.min_age_hours", 24)
	v.SetDefault("reconcile.rate_per_second", 10)

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
