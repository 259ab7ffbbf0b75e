package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// isolate runs Load from an empty directory so no stray config.yaml or .env
// leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "otlp", cfg.Telemetry.Exporter)
	assert.Equal(t, DefaultAdminAPIKey, cfg.Auth.AdminAPIKey)
	assert.Equal(t, 3, cfg.Forecast.DefaultHorizon)
	assert.Equal(t, 90, cfg.Forecast.MaxHorizon)
	assert.True(t, cfg.Forecast.CacheEnabled)
	assert.Equal(t, 2*time.Minute, cfg.Forecast.CacheTTLDuration())
	assert.Equal(t, uint64(0), cfg.Forecast.Seed)
	assert.Equal(t, 5, cfg.Forecast.CacheBreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Forecast.CacheBreakerTimeoutDuration())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ENVIRONMENT", "Development")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("FORECAST_MAX_HORIZON", "30")
	t.Setenv("FORECAST_DEFAULT_HORIZON", "7")
	t.Setenv("FORECAST_SEED", "42")
	t.Setenv("ADMIN_API_KEY", "local-key")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/tradeway")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Forecast.MaxHorizon)
	assert.Equal(t, 7, cfg.Forecast.DefaultHorizon)
	assert.Equal(t, uint64(42), cfg.Forecast.Seed)
	assert.Equal(t, "local-key", cfg.Auth.AdminAPIKey)
	assert.Equal(t, "postgres://u:p@db:5432/tradeway", cfg.Database.DSN())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	yaml := []byte("log_level: debug\nforecast:\n  max_horizon: 14\n  cache_ttl: 30s\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 14, cfg.Forecast.MaxHorizon)
	assert.Equal(t, 30*time.Second, cfg.Forecast.CacheTTLDuration())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REDIS_PORT=6380\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("REDIS_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6380, cfg.Redis.Port)
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	isolate(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_API_KEY")

	t.Setenv("ADMIN_API_KEY", "a-real-production-key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		DBName:   "tradeway",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=tradeway sslmode=disable", cfg.DSN())

	cfg.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.DSN())
}

func TestForecastConfig_CacheTTLDuration(t *testing.T) {
	assert.Equal(t, time.Duration(0), ForecastConfig{}.CacheTTLDuration())
	assert.Equal(t, time.Duration(0), ForecastConfig{CacheTTL: "soon"}.CacheTTLDuration())
	assert.Equal(t, 5*time.Minute, ForecastConfig{CacheTTL: "5m"}.CacheTTLDuration())
}

func TestForecastConfig_CacheBreakerTimeoutDuration(t *testing.T) {
	assert.Equal(t, time.Duration(0), ForecastConfig{}.CacheBreakerTimeoutDuration())
	assert.Equal(t, 10*time.Second, ForecastConfig{CacheBreakerTimeout: "10s"}.CacheBreakerTimeoutDuration())
}

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Telemetry:   TelemetryConfig{Exporter: "stdout"},
		Auth:        AuthConfig{AdminAPIKey: DefaultAdminAPIKey},
		Forecast:    ForecastConfig{DefaultHorizon: 3, MaxHorizon: 90, CacheTTL: "2m"},
	}
}

func TestValidateConfig(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-key"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero max horizon", mutate: func(c *Config) { c.Forecast.MaxHorizon = 0 }, wantErr: "max_horizon"},
		{name: "default above max", mutate: func(c *Config) { c.Forecast.DefaultHorizon = 91 }, wantErr: "default_horizon"},
		{name: "default zero", mutate: func(c *Config) { c.Forecast.DefaultHorizon = 0 }, wantErr: "default_horizon"},
		{name: "negative lookback", mutate: func(c *Config) { c.Forecast.LookbackDays = -1 }, wantErr: "lookback_days"},
		{name: "bad cache ttl", mutate: func(c *Config) { c.Forecast.CacheTTL = "two minutes" }, wantErr: "cache_ttl"},
		{name: "bad breaker timeout", mutate: func(c *Config) { c.Forecast.CacheBreakerTimeout = "1 hour" }, wantErr: "cache_breaker_timeout"},
		{name: "bad jwt expiry", mutate: func(c *Config) { c.Auth.JWTExpiry = "tomorrow" }, wantErr: "JWT expiry"},
		{name: "bad exporter", mutate: func(c *Config) { c.Telemetry.Exporter = "zipkin" }, wantErr: "exporter"},
		{name: "bad key hash", mutate: func(c *Config) { c.Auth.AdminAPIKeyHash = "plain" }, wantErr: "hash"},
		{
			name: "production with key hash",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
				c.Auth.AdminAPIKeyHash = string(hash)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
