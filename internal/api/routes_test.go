package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tradeway/forecast-service/internal/api/handlers"
	"github.com/tradeway/forecast-service/internal/api/handlers/testmocks"
	"github.com/tradeway/forecast-service/internal/config"
	"github.com/tradeway/forecast-service/internal/middleware"
	"github.com/tradeway/forecast-service/internal/models"
	"github.com/tradeway/forecast-service/internal/services"
)

const testAdminKey = "route-test-key"

func newTestRouter(t *testing.T) (*gin.Engine, *testmocks.MockForecastProvider) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := new(testmocks.MockHealthChecker)
	db.On("HealthCheck", mock.Anything).Return(nil)
	provider := new(testmocks.MockForecastProvider)

	router := gin.New()
	SetupRoutes(router, Handlers{
		Health:   handlers.NewHealthHandler(db, nil, "test"),
		Forecast: handlers.NewForecastHandler(provider, nil),
		Cache:    handlers.NewCacheHandler(services.NewCacheAnalyticsService(nil)),
	}, middleware.NewAdminMiddleware(config.AuthConfig{AdminAPIKey: testAdminKey}, nil))
	return router, provider
}

func TestSetupRoutes_RegistersEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	registered := make(map[string]bool)
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"GET /health",
		"HEAD /health",
		"GET /ready",
		"GET /live",
		"GET /api/admin/forecast",
		"GET /api/admin/forecast/categories",
		"DELETE /api/admin/forecast/cache",
		"GET /api/admin/cache/stats",
		"GET /api/admin/cache/stats/:category",
		"GET /api/admin/cache/metrics",
		"POST /api/admin/cache/stats/reset",
		"GET /api/admin/cache/breaker",
		"POST /api/v1/forecast/analyze",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestSetupRoutes_AdminRequiresKey(t *testing.T) {
	router, provider := newTestRouter(t)
	provider.On("Forecast", mock.Anything, mock.Anything).
		Return(&models.ForecastResponse{OK: true, Target: models.TargetPrice, HistoricalData: []models.HistoricalPoint{}, Predictions: []models.PredictionPoint{}}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/forecast", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	provider.AssertNotCalled(t, "Forecast", mock.Anything, mock.Anything)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/forecast?target=price", nil)
	req.Header.Set("X-API-Key", testAdminKey)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestSetupRoutes_PublicEndpoints(t *testing.T) {
	router, provider := newTestRouter(t)
	provider.On("AnalyzeSeries", mock.Anything, []float64{3, 4}, (*int)(nil), (*uint64)(nil)).
		Return(&models.AnalyzeResponse{Predictions: []float64{4.5, 5}, Horizon: 2}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/forecast/analyze", bytes.NewBufferString(`{"values":[3,4]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"predictions":[4.5,5]`)
}
