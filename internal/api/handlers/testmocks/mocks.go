// Package testmocks holds testify mocks shared by the handler and route tests.
package testmocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tradeway/forecast-service/internal/models"
	"github.com/tradeway/forecast-service/internal/services"
)

// MockForecastProvider mocks the forecast service.
type MockForecastProvider struct {
	mock.Mock
}

func (m *MockForecastProvider) Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ForecastResponse), args.Error(1)
}

func (m *MockForecastProvider) AnalyzeSeries(ctx context.Context, values []float64, horizon *int, seed *uint64) (*models.AnalyzeResponse, error) {
	args := m.Called(ctx, values, horizon, seed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalyzeResponse), args.Error(1)
}

func (m *MockForecastProvider) Categories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockForecastProvider) InvalidateCache(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockForecastProvider) CacheBreakerStats() services.CircuitBreakerStats {
	args := m.Called()
	return args.Get(0).(services.CircuitBreakerStats)
}

// MockHealthChecker mocks a database or Redis health check.
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockCacheAnalytics mocks the cache analytics service.
type MockCacheAnalytics struct {
	mock.Mock
}

func (m *MockCacheAnalytics) GetStats(category string) services.CacheStats {
	args := m.Called(category)
	return args.Get(0).(services.CacheStats)
}

func (m *MockCacheAnalytics) GetAllStats() map[string]services.CacheStats {
	args := m.Called()
	return args.Get(0).(map[string]services.CacheStats)
}

func (m *MockCacheAnalytics) GetMetrics(ctx context.Context) (*services.CacheMetrics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CacheMetrics), args.Error(1)
}

func (m *MockCacheAnalytics) ResetStats() {
	m.Called()
}
