package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tradeway/forecast-service/internal/api"
	"github.com/tradeway/forecast-service/internal/api/handlers"
	"github.com/tradeway/forecast-service/internal/config"
	"github.com/tradeway/forecast-service/internal/database"
	"github.com/tradeway/forecast-service/internal/logging"
	"github.com/tradeway/forecast-service/internal/middleware"
	"github.com/tradeway/forecast-service/internal/services"
	"github.com/tradeway/forecast-service/internal/telemetry"
)

const (
	shutdownTimeout          = 30 * time.Second
	analyticsReportInterval  = 5 * time.Minute
	defaultHTTPTimeout       = 10 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize telemetry first so every later component gets a real tracer.
	if err := telemetry.InitTelemetry(telemetryConfig(cfg)); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown telemetry: %v\n", err)
		}
	}()

	logger := logging.NewStandardOTLPLogger(otlpLogConfig(cfg))
	defer func() { _ = logger.Shutdown(context.Background()) }()
	logger.WithService(cfg.Telemetry.ServiceName).Info("Telemetry initialized",
		"exporter", cfg.Telemetry.Exporter, "enabled", cfg.Telemetry.Enabled)

	// Services that predate slog log through logrus.
	logrusLogger := logging.NewLogrusLogger(cfg.LogLevel, cfg.Environment)
	logrus.SetLevel(logrusLogger.GetLevel())
	logrus.SetFormatter(logrusLogger.Formatter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	tracedDB := database.NewTracedDB(db.Pool, logrusLogger).WithEventLogger(logger)
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, tracedDB); err != nil {
			return err
		}
		logger.WithOperation("migrate").Info("Database migrations applied")
	}

	// Redis is optional; forecasts are computed directly when it is absent.
	var (
		redisClient   *database.RedisClient
		forecastCache services.ForecastCache
		redisHealth   handlers.HealthChecker
	)
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisConnection(cfg.Redis)
		if err != nil {
			logrusLogger.WithError(err).Warn("Redis unavailable, forecast caching disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
			forecastCache = redisClient
			redisHealth = redisClient
			logger.WithComponent("cache").Info("Redis forecast cache enabled",
				"breaker_threshold", cfg.Forecast.CacheBreakerThreshold)
		}
	}

	var analytics *services.CacheAnalyticsService
	if redisClient != nil {
		analytics = services.NewCacheAnalyticsService(redisClient.Client)
	} else {
		analytics = services.NewCacheAnalyticsService(nil)
	}
	analytics.StartPeriodicReporting(ctx, analyticsReportInterval)

	repo := database.NewOrderAggregateRepository(tracedDB)
	forecastService := services.NewForecastService(repo, forecastCache, analytics, cfg.Forecast, logrusLogger).
		WithEventLogger(logger)

	var auth *middleware.AuthMiddleware
	if cfg.Auth.JWTSecret != "" {
		auth = middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
	}

	router := newRouter(cfg, logger, api.Handlers{
		Health:   handlers.NewHealthHandler(db, redisHealth, cfg.Telemetry.ServiceVersion),
		Forecast: handlers.NewForecastHandler(forecastService, logrusLogger),
		Cache:    handlers.NewCacheHandler(analytics),
	}, middleware.NewAdminMiddleware(cfg.Auth, auth))

	srv := newHTTPServer(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.LogStartup(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.LogShutdown(cfg.Telemetry.ServiceName, "signal received")

		// Give outstanding requests a deadline for completion
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logrusLogger.Info("Server exited gracefully")
	return nil
}

func newRouter(cfg *config.Config, logger *logging.StandardLogger, h api.Handlers, admin *middleware.AdminMiddleware) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Tracing(cfg.Telemetry.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.SpanEnricher())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	api.SetupRoutes(router, h, admin)
	return router
}

func newHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       parseTimeout(cfg.ReadTimeout),
		WriteTimeout:      parseTimeout(cfg.WriteTimeout),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       15 * time.Second,
	}
}

func parseTimeout(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultHTTPTimeout
	}
	return d
}

// telemetryConfig overlays the loaded settings on the telemetry defaults.
func telemetryConfig(cfg *config.Config) telemetry.TelemetryConfig {
	tc := *telemetry.DefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.Exporter != "" {
		tc.Exporter = cfg.Telemetry.Exporter
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	if cfg.Telemetry.ServiceName != "" {
		tc.ServiceName = cfg.Telemetry.ServiceName
	}
	if cfg.Telemetry.ServiceVersion != "" {
		tc.ServiceVersion = cfg.Telemetry.ServiceVersion
	}
	if cfg.Environment != "" {
		tc.Environment = cfg.Environment
	}
	tc.SampleRate = cfg.Telemetry.SampleRate
	return tc
}

// otlpLogConfig disables OTLP log export when the endpoint cannot be parsed,
// leaving the stdout logger in place.
func otlpLogConfig(cfg *config.Config) logging.OTLPConfig {
	lc := logging.OTLPConfig{
		Enabled:        cfg.Telemetry.Enabled && cfg.Telemetry.Exporter == "otlp",
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
	}
	if !lc.Enabled {
		return lc
	}
	hostport, urlPath, insecure, err := telemetry.ParseOTLPEndpoint(cfg.Telemetry.OTLPEndpoint, "/v1/logs")
	if err != nil {
		lc.Enabled = false
		return lc
	}
	lc.Endpoint = hostport
	lc.URLPath = urlPath
	lc.Insecure = insecure
	return lc
}
