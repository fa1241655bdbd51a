package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/popanda44/seedvalidator-finance/internal/models"
	"github.com/popanda44/seedvalidator-finance/pkg/forecast"
)

// CacheWarmingService precomputes default forecasts so the first dashboard
// load after a deploy is served from cache.
type CacheWarmingService struct {
	forecasts *ForecastService
	metrics   []models.MetricKind
	logger    logrus.FieldLogger
}

// WarmResult summarizes warming of one metric.
type WarmResult struct {
	Metric    models.MetricKind `json:"metric"`
	Companies int               `json:"companies"`
	Warmed    int               `json:"warmed"`
	Failed    int               `json:"failed"`
}

// NewCacheWarmingService creates a warmer for the named metrics.
func NewCacheWarmingService(forecasts *ForecastService, metricNames []string, logger logrus.FieldLogger) (*CacheWarmingService, error) {
	kinds := make([]models.MetricKind, 0, len(metricNames))
	for _, name := range metricNames {
		kind, err := models.ParseMetricKind(name)
		if err != nil {
			return nil, fmt.Errorf("invalid warm metric: %w", err)
		}
		kinds = append(kinds, kind)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CacheWarmingService{
		forecasts: forecasts,
		metrics:   kinds,
		logger:    logger.WithField("component", "cache_warming"),
	}, nil
}

// WarmCache forecasts every stored company for each configured metric using
// the default options. It is a no-op without both a store and a cache.
func (c *CacheWarmingService) WarmCache(ctx context.Context) ([]WarmResult, error) {
	if c.forecasts.store == nil || c.forecasts.cache == nil || len(c.metrics) == 0 {
		c.logger.Debug("Skipping cache warming")
		return nil, nil
	}

	c.logger.Info("Starting cache warming")
	start := time.Now()

	results := make([]WarmResult, 0, len(c.metrics))
	for _, metric := range c.metrics {
		items, err := c.forecasts.ForecastBatch(ctx, nil, metric, forecast.Options{})
		if err != nil {
			return results, fmt.Errorf("failed to warm %s forecasts: %w", metric, err)
		}

		result := WarmResult{Metric: metric, Companies: len(items)}
		for _, item := range items {
			if item.Error != "" {
				result.Failed++
				continue
			}
			result.Warmed++
		}
		results = append(results, result)
	}

	c.logger.WithFields(logrus.Fields{
		"metrics":     len(results),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Cache warming completed")
	return results, nil
}
