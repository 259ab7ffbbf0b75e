package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/cases"

	"github.com/tradeway/forecast-service/internal/config"
	"github.com/tradeway/forecast-service/internal/database"
	"github.com/tradeway/forecast-service/internal/forecast"
	"github.com/tradeway/forecast-service/internal/logging"
	"github.com/tradeway/forecast-service/internal/models"
	"github.com/tradeway/forecast-service/internal/telemetry"
	"github.com/tradeway/forecast-service/internal/utils"
)

const (
	forecastCachePrefix = "forecast:"
	// allCategories labels analytics for forecasts without a category filter.
	allCategories = "all"
)

// AggregateSource supplies the daily order series. It is satisfied by
// *database.OrderAggregateRepository.
type AggregateSource interface {
	DailyAggregates(ctx context.Context, filter database.AggregateFilter) ([]models.DailyAggregate, error)
	Categories(ctx context.Context) ([]string, error)
}

// ForecastCache stores serialized forecast responses. It is satisfied by
// *database.RedisClient; Get must return redis.Nil on a miss.
type ForecastCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}

// ForecastService turns order history into price and demand forecasts.
type ForecastService struct {
	source    AggregateSource
	cache     ForecastCache
	analytics *CacheAnalyticsService
	breaker   *CircuitBreaker
	config    config.ForecastConfig
	logger    *logrus.Logger
	events    *logging.StandardLogger
	now       func() time.Time
	noise     func() forecast.NoiseSource
}

// NewForecastService creates a forecast service. cache and analytics may be
// nil, in which case every request is computed from the database.
func NewForecastService(source AggregateSource, cache ForecastCache, analytics *CacheAnalyticsService, cfg config.ForecastConfig, logger *logrus.Logger) *ForecastService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &ForecastService{
		source:    source,
		cache:     cache,
		analytics: analytics,
		config:    cfg,
		logger:    logger,
		events:    logging.NewStandardLoggerWithWriter(io.Discard, "error"),
		now:       time.Now,
	}
	s.breaker = NewCircuitBreaker("forecast-cache", CircuitBreakerConfig{
		FailureThreshold: cfg.CacheBreakerThreshold,
		Timeout:          cfg.CacheBreakerTimeoutDuration(),
	}, logger)
	s.noise = s.defaultNoise
	return s
}

// WithEventLogger sends cache operations and generated-forecast events to
// events. Without it they are discarded.
func (s *ForecastService) WithEventLogger(events *logging.StandardLogger) *ForecastService {
	if events != nil {
		s.events = events
	}
	return s
}

func (s *ForecastService) defaultNoise() forecast.NoiseSource {
	if s.config.Seed != 0 {
		return forecast.NewSeededBoxMuller(s.config.Seed)
	}
	return forecast.NewBoxMuller()
}

// Forecast builds the forecast response for one target and optional
// category. Too little history yields an empty response, not an error.
// Validation failures are returned as *utils.ValidationError.
func (s *ForecastService) Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResponse, error) {
	target := req.Target
	if target == "" {
		target = models.TargetPrice
	}
	if !target.Valid() {
		return nil, utils.NewFieldError("target", "must be %q or %q, got %q", models.TargetPrice, models.TargetDemand, req.Target)
	}
	category := NormalizeCategory(req.Category)
	horizon := s.ResolveHorizon(req.Horizon)

	ctx, span := telemetry.StartSpan(ctx, telemetry.GetForecastTracer(), "forecast.generate",
		telemetry.StringAttribute("forecast.target", string(target)),
		telemetry.StringAttribute("forecast.category", category),
		telemetry.Int64Attribute("forecast.horizon", int64(horizon)),
	)
	defer span.End()

	key := cacheKey(target, category, horizon)
	if cached, ok := s.fromCache(ctx, key, analyticsCategory(category)); ok {
		telemetry.SetSpanAttributes(span, telemetry.BoolAttribute("forecast.cached", true))
		telemetry.SetSpanStatus(span, codes.Ok, "")
		return cached, nil
	}

	filter := database.AggregateFilter{Category: category}
	if s.config.LookbackDays > 0 {
		since := s.now().UTC().AddDate(0, 0, -s.config.LookbackDays)
		filter.Since = &since
	}

	rows, err := s.source.DailyAggregates(ctx, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}

	resp := s.build(target, category, horizon, rows)
	telemetry.SetSpanAttributes(span,
		telemetry.Int64Attribute("forecast.observations", int64(len(resp.HistoricalData))),
		telemetry.Float64Attribute("forecast.confidence", resp.Confidence),
	)

	s.toCache(ctx, key, resp)
	s.events.LogBusinessEvent("forecast_generated", map[string]interface{}{
		"target":       string(target),
		"category":     category,
		"horizon":      horizon,
		"observations": len(resp.HistoricalData),
		"confidence":   resp.Confidence,
	})
	telemetry.SetSpanStatus(span, codes.Ok, "")
	return resp, nil
}

func (s *ForecastService) build(target models.ForecastTarget, category string, horizon int, rows []models.DailyAggregate) *models.ForecastResponse {
	now := s.now().UTC()
	if len(rows) < forecast.MinObservations {
		return models.NewEmptyForecastResponse(target, category, horizon, now)
	}

	values := make([]float64, len(rows))
	for i, row := range rows {
		values[i] = row.Value(target)
	}

	d, err := forecast.Analyze(values)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"target":   target,
			"category": category,
		}).WithError(err).Warn("Order history cannot be analyzed")
		return models.NewEmptyForecastResponse(target, category, horizon, now)
	}

	historical := make([]models.HistoricalPoint, len(rows))
	for i, row := range rows {
		historical[i] = models.HistoricalPoint{Date: row.Day, Value: values[i], MA: d.Trend[i]}
	}

	predicted := forecast.Predict(d, horizon, s.noise())
	lastDay := rows[len(rows)-1].Day
	predictions := make([]models.PredictionPoint, len(predicted))
	for i, v := range predicted {
		predictions[i] = models.PredictionPoint{
			Date:  lastDay.AddDate(0, 0, i+1),
			Value: roundCents(v),
		}
	}

	seasonality := d.Seasonality
	return &models.ForecastResponse{
		OK:             true,
		Target:         target,
		Category:       category,
		Horizon:        horizon,
		HistoricalData: historical,
		Predictions:    predictions,
		Confidence:     forecast.Confidence(d.Volatility),
		Volatility:     d.Volatility,
		Seasonality:    &seasonality,
		GeneratedAt:    now,
	}
}

// AnalyzeSeries runs the forecaster over caller-supplied values. A nil seed
// uses the service's configured noise source.
func (s *ForecastService) AnalyzeSeries(ctx context.Context, values []float64, horizon *int, seed *uint64) (*models.AnalyzeResponse, error) {
	h := s.ResolveHorizon(horizon)

	_, span := telemetry.StartSpan(ctx, telemetry.GetForecastTracer(), "forecast.analyze",
		telemetry.Int64Attribute("forecast.observations", int64(len(values))),
		telemetry.Int64Attribute("forecast.horizon", int64(h)),
	)
	defer span.End()

	noise := s.noise()
	if seed != nil {
		noise = forecast.NewSeededBoxMuller(*seed)
	}

	result, err := forecast.Forecast(values, h, noise)
	switch {
	case errors.Is(err, forecast.ErrInsufficientData):
		return nil, utils.NewFieldError("values", "at least %d observations are required", forecast.MinObservations)
	case errors.Is(err, forecast.ErrDegenerateInput):
		return nil, utils.NewFieldError("values", "observations must be finite and non-negative")
	case err != nil:
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetSpanStatus(span, codes.Ok, "")
	return &models.AnalyzeResponse{
		Decomposition: result.Decomposition,
		Predictions:   result.Predictions,
		Confidence:    result.Confidence,
		Horizon:       h,
	}, nil
}

// Categories lists the product categories that can be forecast.
func (s *ForecastService) Categories(ctx context.Context) ([]string, error) {
	return s.source.Categories(ctx)
}

// InvalidateCache drops every cached forecast and returns how many were removed.
func (s *ForecastService) InvalidateCache(ctx context.Context) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	deleted, err := s.cache.DeleteByPattern(ctx, forecastCachePrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("failed to invalidate forecast cache: %w", err)
	}
	// A successful round trip proves Redis is back.
	s.breaker.Reset()
	s.logger.WithField("deleted", deleted).Info("Forecast cache invalidated")
	return deleted, nil
}

// ResolveHorizon applies the default for a missing horizon, raises values
// below one to one and caps at the configured maximum.
func (s *ForecastService) ResolveHorizon(h *int) int {
	if h == nil {
		return s.config.DefaultHorizon
	}
	n := *h
	if n < 1 {
		n = 1
	}
	if s.config.MaxHorizon > 0 && n > s.config.MaxHorizon {
		n = s.config.MaxHorizon
	}
	return n
}

func (s *ForecastService) cachingEnabled() bool {
	return s.cache != nil && s.config.CacheEnabled && s.config.CacheTTLDuration() > 0
}

func (s *ForecastService) fromCache(ctx context.Context, key, category string) (*models.ForecastResponse, bool) {
	if !s.cachingEnabled() {
		return nil, false
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.GetCacheTracer(), "cache.get",
		telemetry.StringAttribute("cache.key", key))
	defer span.End()

	start := time.Now()
	var raw string
	found := false
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		v, err := s.cache.Get(ctx, key)
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, found = v, true
		return nil
	})
	if err != nil && !errors.Is(err, ErrCircuitOpen) {
		telemetry.RecordError(span, err)
		s.logger.WithError(err).WithField("key", key).Warn("Forecast cache read failed")
	}
	telemetry.SetSpanAttributes(span, telemetry.BoolAttribute("cache.hit", found))
	s.events.LogCacheOperation("get", key, found, time.Since(start).Milliseconds())
	if !found {
		s.recordMiss(category)
		return nil, false
	}

	var resp models.ForecastResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Discarding malformed cached forecast")
		s.recordMiss(category)
		return nil, false
	}

	if s.analytics != nil {
		s.analytics.RecordHit(category)
	}
	resp.Cached = true
	return &resp, true
}

// CacheBreakerStats reports the state of the breaker guarding Redis.
func (s *ForecastService) CacheBreakerStats() CircuitBreakerStats {
	return s.breaker.GetStats()
}

func (s *ForecastService) recordMiss(category string) {
	if s.analytics != nil {
		s.analytics.RecordMiss(category)
	}
}

func (s *ForecastService) toCache(ctx context.Context, key string, resp *models.ForecastResponse) {
	if !s.cachingEnabled() {
		return
	}
	body, err := json.Marshal(resp)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode forecast for cache")
		return
	}
	ctx, span := telemetry.StartSpan(ctx, telemetry.GetCacheTracer(), "cache.set",
		telemetry.StringAttribute("cache.key", key))
	defer span.End()

	start := time.Now()
	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, key, body, s.config.CacheTTLDuration())
	})
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		s.events.LogCacheOperation("set", key, false, time.Since(start).Milliseconds())
	}
	if err != nil && !errors.Is(err, ErrCircuitOpen) {
		s.logger.WithError(err).WithField("key", key).Warn("Forecast cache write failed")
	}
}

// cacheKey case-folds the category; the aggregate query matches categories
// case-insensitively, so "onyx" and "Onyx" share an entry.
func cacheKey(target models.ForecastTarget, category string, horizon int) string {
	return fmt.Sprintf("%s%s:%s:%d", forecastCachePrefix, target, foldCategory(category), horizon)
}

func analyticsCategory(category string) string {
	if category == "" {
		return allCategories
	}
	return foldCategory(category)
}

// foldCategory applies Unicode case folding. Casers carry state and must not
// be shared across goroutines.
func foldCategory(category string) string {
	return cases.Fold().String(category)
}

// NormalizeCategory trims surrounding whitespace. Case is preserved and
// matched case-insensitively by the repository.
func NormalizeCategory(category string) string {
	return strings.TrimSpace(category)
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
