package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tradeway/forecast-service/internal/middleware"
	"github.com/tradeway/forecast-service/internal/models"
	"github.com/tradeway/forecast-service/internal/services"
	"github.com/tradeway/forecast-service/internal/utils"
)

// ForecastProvider is implemented by *services.ForecastService.
type ForecastProvider interface {
	Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResponse, error)
	AnalyzeSeries(ctx context.Context, values []float64, horizon *int, seed *uint64) (*models.AnalyzeResponse, error)
	Categories(ctx context.Context) ([]string, error)
	InvalidateCache(ctx context.Context) (int64, error)
	CacheBreakerStats() services.CircuitBreakerStats
}

// ForecastHandler serves price and demand forecasts.
type ForecastHandler struct {
	forecasts ForecastProvider
	logger    *logrus.Logger
}

func NewForecastHandler(forecasts ForecastProvider, logger *logrus.Logger) *ForecastHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ForecastHandler{forecasts: forecasts, logger: logger}
}

// GetForecast handles GET /api/admin/forecast?target=price|demand&category=&h=3.
func (h *ForecastHandler) GetForecast(c *gin.Context) {
	req := models.ForecastRequest{
		Target:   models.ForecastTarget(strings.ToLower(strings.TrimSpace(c.Query("target")))),
		Category: c.Query("category"),
	}

	if raw, ok := c.GetQuery("h"); ok && strings.TrimSpace(raw) != "" {
		horizon, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			h.badRequest(c, utils.NewFieldError("h", "must be an integer, got %q", raw))
			return
		}
		req.Horizon = &horizon
	}

	middleware.AddSpanAttribute(c, "forecast.target", string(req.Target))

	resp, err := h.forecasts.Forecast(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "Failed to generate forecast")
		return
	}

	middleware.AddSpanAttribute(c, "forecast.cached", resp.Cached)
	c.JSON(http.StatusOK, resp)
}

// AnalyzeSeries handles POST /api/v1/forecast/analyze.
func (h *ForecastHandler) AnalyzeSeries(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, utils.NewValidationErrorf("invalid request body: %v", err))
		return
	}

	var horizon *int
	if req.Horizon != 0 {
		horizon = &req.Horizon
	}

	resp, err := h.forecasts.AnalyzeSeries(c.Request.Context(), req.Values, horizon, req.Seed)
	if err != nil {
		h.fail(c, err, "Failed to analyze series")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetCategories lists the product categories available for filtering.
func (h *ForecastHandler) GetCategories(c *gin.Context) {
	categories, err := h.forecasts.Categories(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "categories": categories})
}

// InvalidateCache drops all cached forecasts.
func (h *ForecastHandler) InvalidateCache(c *gin.Context) {
	deleted, err := h.forecasts.InvalidateCache(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to invalidate forecast cache")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": deleted})
}

// GetCacheBreaker reports whether forecast caching is currently bypassed.
func (h *ForecastHandler) GetCacheBreaker(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "breaker": h.forecasts.CacheBreakerStats()})
}

func (h *ForecastHandler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
}

func (h *ForecastHandler) fail(c *gin.Context, err error, message string) {
	if utils.IsValidationError(err) {
		h.badRequest(c, err)
		return
	}
	middleware.RecordError(c, err, message)
	h.logger.WithError(err).WithField("request_id", c.GetString(middleware.RequestIDKey)).Error(message)
	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": message})
}
