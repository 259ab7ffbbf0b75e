package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// DefaultAdminAPIKey is accepted only outside production.
const DefaultAdminAPIKey = "admin-dev-key-change-in-production"

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Forecast    ForecastConfig  `mapstructure:"forecast"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    string   `mapstructure:"read_timeout"`
	WriteTimeout   string   `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// DSN prefers DatabaseURL and falls back to a key/value connection string.
func (d DatabaseConfig) DSN() string {
	if d.DatabaseURL != "" {
		return d.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Exporter       string  `mapstructure:"exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	SampleRate     float64 `mapstructure:"sample_rate"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry string `mapstructure:"jwt_expiry"`
	// AdminAPIKey is compared as-is. AdminAPIKeyHash, when set, takes
	// precedence and holds a bcrypt hash of the key instead.
	AdminAPIKey     string `mapstructure:"admin_api_key" json:"-" yaml:"-"`
	AdminAPIKeyHash string `mapstructure:"admin_api_key_hash" json:"-" yaml:"-"`
}

type ForecastConfig struct {
	DefaultHorizon int    `mapstructure:"default_horizon"`
	MaxHorizon     int    `mapstructure:"max_horizon"`
	LookbackDays   int    `mapstructure:"lookback_days"`
	CacheEnabled   bool   `mapstructure:"cache_enabled"`
	CacheTTL       string `mapstructure:"cache_ttl"`
	// Seed fixes the noise generator when non-zero.
	Seed uint64 `mapstructure:"seed"`
	// Consecutive cache failures before Redis is bypassed, and for how long.
	CacheBreakerThreshold int    `mapstructure:"cache_breaker_threshold"`
	CacheBreakerTimeout   string `mapstructure:"cache_breaker_timeout"`
}

// CacheTTLDuration returns the parsed cache TTL, or 0 when unset or invalid.
func (f ForecastConfig) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(f.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}

// CacheBreakerTimeoutDuration returns the parsed breaker timeout, or 0 when
// unset or invalid.
func (f ForecastConfig) CacheBreakerTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(f.CacheBreakerTimeout)
	if err != nil {
		return 0
	}
	return d
}

func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"database.database_url":   "DATABASE_URL",
		"auth.jwt_secret":         "JWT_SECRET",
		"auth.admin_api_key":      "ADMIN_API_KEY",
		"auth.admin_api_key_hash": "ADMIN_API_KEY_HASH",
		"telemetry.otlp_endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func validateConfig(config *Config) error {
	production := config.Environment == "production" || config.Environment == "staging"

	if production && len(config.Auth.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters in production")
	}
	if config.Auth.JWTExpiry != "" {
		if _, err := time.ParseDuration(config.Auth.JWTExpiry); err != nil {
			return fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}
	if config.Auth.AdminAPIKeyHash != "" {
		if _, err := bcrypt.Cost([]byte(config.Auth.AdminAPIKeyHash)); err != nil {
			return fmt.Errorf("invalid admin API key hash: %w", err)
		}
	} else if production && (config.Auth.AdminAPIKey == "" || config.Auth.AdminAPIKey == DefaultAdminAPIKey) {
		return errors.New("ADMIN_API_KEY must be set to a non-default value in production")
	}

	f := config.Forecast
	if f.MaxHorizon < 1 {
		return fmt.Errorf("forecast max_horizon must be positive, got %d", f.MaxHorizon)
	}
	if f.DefaultHorizon < 1 || f.DefaultHorizon > f.MaxHorizon {
		return fmt.Errorf("forecast default_horizon must be between 1 and %d, got %d", f.MaxHorizon, f.DefaultHorizon)
	}
	if f.LookbackDays < 0 {
		return fmt.Errorf("forecast lookback_days must not be negative, got %d", f.LookbackDays)
	}
	if f.CacheTTL != "" {
		if _, err := time.ParseDuration(f.CacheTTL); err != nil {
			return fmt.Errorf("invalid forecast cache_ttl: %w", err)
		}
	}
	if f.CacheBreakerTimeout != "" {
		if _, err := time.ParseDuration(f.CacheBreakerTimeout); err != nil {
			return fmt.Errorf("invalid forecast cache_breaker_timeout: %w", err)
		}
	}

	switch config.Telemetry.Exporter {
	case "otlp", "stdout":
	default:
		return fmt.Errorf("unknown telemetry exporter %q", config.Telemetry.Exporter)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "tradeway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "300s")
	v.SetDefault("database.conn_max_idle_time", "60s")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "otlp")
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "forecast-service")
	v.SetDefault("telemetry.service_version", "1.0.0")
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_expiry", "24h")
	v.SetDefault("auth.admin_api_key", DefaultAdminAPIKey)
	v.SetDefault("auth.admin_api_key_hash", "")

	v.SetDefault("forecast.default_horizon", 3)
	v.SetDefault("forecast.max_horizon", 90)
	v.SetDefault("forecast.lookback_days", 0)
	v.SetDefault("forecast.cache_enabled", true)
	v.SetDefault("forecast.cache_ttl", "2m")
	v.SetDefault("forecast.seed", 0)
	v.SetDefault("forecast.cache_breaker_threshold", 5)
	v.SetDefault("forecast.cache_breaker_timeout", "30s")
}
