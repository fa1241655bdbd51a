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
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/popanda44/seedvalidator-finance/internal/api"
	"github.com/popanda44/seedvalidator-finance/internal/api/handlers"
	"github.com/popanda44/seedvalidator-finance/internal/cache"
	"github.com/popanda44/seedvalidator-finance/internal/config"
	"github.com/popanda44/seedvalidator-finance/internal/database"
	"github.com/popanda44/seedvalidator-finance/internal/logging"
	"github.com/popanda44/seedvalidator-finance/internal/metrics"
	"github.com/popanda44/seedvalidator-finance/internal/middleware"
	"github.com/popanda44/seedvalidator-finance/internal/services"
	"github.com/popanda44/seedvalidator-finance/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTelemetry, err := telemetry.InitTelemetry(telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.WithError(err).Warn("Failed to shutdown telemetry")
		}
	}()

	ctx := context.Background()
	reg := metrics.Default()

	var (
		store        services.ObservationStore
		fcache       services.ForecastCache
		dbChecker    handlers.HealthChecker
		redisChecker handlers.HealthChecker
	)

	if cfg.Database.Enabled {
		db, err := database.NewPostgresConnection(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		pool := database.NewTracedPool(db.Pool)
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		store = services.NewBreakerStore(database.NewObservationRepository(pool), services.CircuitBreakerConfig{
			FailureThreshold: cfg.Database.BreakerFailureThreshold,
			Cooldown:         durationOr(cfg.Database.BreakerCooldown, 30*time.Second),
		}, logging.WithComponent(logger, "observation_store"))
		dbChecker = db
	} else {
		logger.Warn("Database disabled; company endpoints will return 503")
	}

	if cfg.Redis.Enabled {
		redisClient, err := database.NewRedisConnection(cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable; forecasts will not be cached")
		} else {
			defer redisClient.Close()
			fcache = cache.NewRedisForecastCache(redisClient.Client, cfg.Forecast.CacheTTLDuration(),
				logging.WithComponent(logger, "forecast_cache"), reg)
			redisChecker = redisClient
		}
	}

	forecastService := services.NewForecastService(store, fcache, cfg.Forecast, logger, reg)

	warmer, err := services.NewCacheWarmingService(forecastService, cfg.Forecast.WarmMetrics, logger)
	if err != nil {
		return err
	}
	warmCtx, cancelWarm := context.WithCancel(ctx)
	defer cancelWarm()
	go func() {
		if _, err := warmer.WarmCache(warmCtx); err != nil {
			logger.WithError(err).Warn("Cache warming failed")
		}
	}()

	router := newRouter(cfg, logger, reg, forecastService, dbChecker, redisChecker)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       durationOr(cfg.Server.ReadTimeout, 10*time.Second),
		WriteTimeout:      durationOr(cfg.Server.WriteTimeout, 10*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"service": cfg.Telemetry.ServiceName,
			"version": cfg.Telemetry.ServiceVersion,
			"port":    cfg.Server.Port,
			"event":   "startup",
		}).Info("Application startup")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Application shutdown")
	}

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

func newRouter(cfg *config.Config, logger logrus.FieldLogger, reg *metrics.Registry, svc *services.ForecastService, db, redis handlers.HealthChecker) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logging.WithComponent(logger, "http")))
	router.Use(middleware.Metrics(reg))
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(middleware.SpanAttributes())

	api.SetupRoutes(router, svc, db, redis, cfg.Telemetry.ServiceVersion)
	return router
}

func durationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
