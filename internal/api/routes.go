package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tradeway/forecast-service/internal/api/handlers"
	"github.com/tradeway/forecast-service/internal/middleware"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Health   *handlers.HealthHandler
	Forecast *handlers.ForecastHandler
	Cache    *handlers.CacheHandler
}

func SetupRoutes(router *gin.Engine, h Handlers, admin *middleware.AdminMiddleware) {
	router.GET("/health", h.Health.HealthCheck)
	router.HEAD("/health", h.Health.HealthCheck)
	router.GET("/ready", h.Health.ReadinessCheck)
	router.GET("/live", h.Health.LivenessCheck)

	// Admin dashboard routes
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(admin.RequireAdminAuth())
	{
		adminGroup.GET("/forecast", h.Forecast.GetForecast)
		adminGroup.GET("/forecast/categories", h.Forecast.GetCategories)
		adminGroup.DELETE("/forecast/cache", h.Forecast.InvalidateCache)

		cache := adminGroup.Group("/cache")
		{
			cache.GET("/stats", h.Cache.GetCacheStats)
			cache.GET("/stats/:category", h.Cache.GetCacheStatsByCategory)
			cache.GET("/metrics", h.Cache.GetCacheMetrics)
			cache.POST("/stats/reset", h.Cache.ResetCacheStats)
			cache.GET("/breaker", h.Forecast.GetCacheBreaker)
		}
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/forecast/analyze", h.Forecast.AnalyzeSeries)
	}
}
