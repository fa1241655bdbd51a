package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/popanda44/seedvalidator-finance/internal/api/handlers"
	"github.com/popanda44/seedvalidator-finance/internal/services"
)

// SetupRoutes registers the health, metrics and forecasting endpoints.
func SetupRoutes(router *gin.Engine, forecastService *services.ForecastService, db handlers.HealthChecker, redis handlers.HealthChecker, version string) {
	healthHandler := handlers.NewHealthHandler(db, redis, version)
	forecastHandler := handlers.NewForecastHandler(forecastService)

	router.GET("/health", healthHandler.HealthCheck)
	router.HEAD("/health", healthHandler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Stateless engine calls over caller-supplied series
		v1.POST("/forecast", forecastHandler.Forecast)
		v1.POST("/trend", forecastHandler.Trend)
		v1.POST("/seasonality", forecastHandler.Seasonality)
		v1.POST("/anomalies", forecastHandler.Anomalies)
		v1.POST("/burn-rate", forecastHandler.BurnRate)
		v1.POST("/runway", forecastHandler.Runway)

		companies := v1.Group("/companies/:company_id")
		{
			companies.GET("/metrics/:metric/forecast", forecastHandler.MetricForecast)
			companies.GET("/metrics/:metric/anomalies", forecastHandler.MetricAnomalies)
			companies.PUT("/metrics/:metric/observations", forecastHandler.IngestObservations)
			companies.GET("/burn-rate", forecastHandler.CompanyBurnRate)
			companies.GET("/runway", forecastHandler.CompanyRunway)
		}

		v1.POST("/metrics/:metric/forecast/batch", forecastHandler.BatchForecast)
	}
}
