package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Forecast    ForecastConfig  `mapstructure:"forecast"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxConns        int32  `mapstructure:"max_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`

	// Consecutive store failures before requests are short-circuited.
	BreakerFailureThreshold uint32 `mapstructure:"breaker_failure_threshold"`
	BreakerCooldown         string `mapstructure:"breaker_cooldown"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ForecastConfig holds defaults applied when a request leaves a parameter unset.
type ForecastConfig struct {
	DefaultHorizonMonths   int     `mapstructure:"default_horizon_months"`
	MaxHorizonMonths       int     `mapstructure:"max_horizon_months"`
	DefaultConfidenceLevel float64 `mapstructure:"default_confidence_level"`
	SeasonalPeriod         int     `mapstructure:"seasonal_period"`
	LookbackMonths         int     `mapstructure:"lookback_months"`
	AnomalyThreshold       float64 `mapstructure:"anomaly_threshold"`
	BurnProjectionMonths   int     `mapstructure:"burn_projection_months"`
	CacheTTL               string  `mapstructure:"cache_ttl"`
	BatchConcurrency       int     `mapstructure:"batch_concurrency"`

	// WarmMetrics are forecast for every company at startup. Empty disables warming.
	WarmMetrics []string `mapstructure:"warm_metrics"`
}

// CacheTTLDuration returns the parsed cache TTL. Load has already validated it.
func (c ForecastConfig) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}

type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	SampleRate     float64 `mapstructure:"sample_rate"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("database.database_url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that would otherwise surface as confusing runtime errors.
func (c *Config) Validate() error {
	f := c.Forecast
	if f.DefaultHorizonMonths < 1 {
		return errors.New("forecast.default_horizon_months must be at least 1")
	}
	if f.MaxHorizonMonths < f.DefaultHorizonMonths {
		return fmt.Errorf("forecast.max_horizon_months (%d) must not be below default_horizon_months (%d)",
			f.MaxHorizonMonths, f.DefaultHorizonMonths)
	}
	if f.SeasonalPeriod < 1 {
		return errors.New("forecast.seasonal_period must be positive")
	}
	if f.AnomalyThreshold <= 0 {
		return errors.New("forecast.anomaly_threshold must be positive")
	}
	if f.CacheTTL != "" {
		if _, err := time.ParseDuration(f.CacheTTL); err != nil {
			return fmt.Errorf("invalid forecast cache ttl: %w", err)
		}
	}
	for name, value := range map[string]string{
		"server.read_timeout":       c.Server.ReadTimeout,
		"server.write_timeout":      c.Server.WriteTimeout,
		"database.breaker_cooldown": c.Database.BreakerCooldown,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1], got %v", c.Telemetry.SampleRate)
	}
	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")

	// Database
	viper.SetDefault("database.enabled", true)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "seedvalidator")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.breaker_failure_threshold", 5)
	viper.SetDefault("database.breaker_cooldown", "30s")

	// Redis
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Forecast
	viper.SetDefault("forecast.default_horizon_months", 6)
	viper.SetDefault("forecast.max_horizon_months", 36)
	viper.SetDefault("forecast.default_confidence_level", 0.95)
	viper.SetDefault("forecast.seasonal_period", 12)
	viper.SetDefault("forecast.lookback_months", 36)
	viper.SetDefault("forecast.anomaly_threshold", 2.0)
	viper.SetDefault("forecast.burn_projection_months", 6)
	viper.SetDefault("forecast.cache_ttl", "15m")
	viper.SetDefault("forecast.batch_concurrency", 4)
	viper.SetDefault("forecast.warm_metrics", []string{"mrr", "revenue"})

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "")
	viper.SetDefault("telemetry.service_name", "seedvalidator-finance")
	viper.SetDefault("telemetry.service_version", "1.0.0")
	viper.SetDefault("telemetry.sample_rate", 0.2)
}
