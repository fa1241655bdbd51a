package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/popanda44/seedvalidator-finance/internal/metrics"
	"github.com/popanda44/seedvalidator-finance/internal/models"
	"github.com/popanda44/seedvalidator-finance/internal/observability"
)

const defaultPrefix = "forecast:"

// ForecastKey identifies one cached forecast run.
type ForecastKey struct {
	CompanyID       string
	Metric          models.MetricKind
	HorizonMonths   int
	ConfidenceLevel float64
	SeasonalPeriod  int
}

// ForecastCacheStats tracks cache performance metrics
type ForecastCacheStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Sets          int64 `json:"sets"`
	Invalidations int64 `json:"invalidations"`
}

// RedisForecastCache stores forecast reports in Redis as JSON.
type RedisForecastCache struct {
	redis   *redis.Client
	ttl     time.Duration
	prefix  string
	logger  logrus.FieldLogger
	metrics *metrics.Registry

	mu    sync.RWMutex
	stats ForecastCacheStats
}

// NewRedisForecastCache creates a new Redis-based forecast cache.
func NewRedisForecastCache(redisClient *redis.Client, ttl time.Duration, logger logrus.FieldLogger, reg *metrics.Registry) *RedisForecastCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisForecastCache{
		redis:   redisClient,
		ttl:     ttl,
		prefix:  defaultPrefix,
		logger:  logger,
		metrics: reg,
	}
}

// Key renders k as forecast:{company}:{metric}:{horizon}:{confidence}:{period}.
func (c *RedisForecastCache) Key(k ForecastKey) string {
	return fmt.Sprintf("%s%s:%s:%d:%s:%d", c.prefix, k.CompanyID, k.Metric, k.HorizonMonths,
		strconv.FormatFloat(k.ConfidenceLevel, 'f', -1, 64), k.SeasonalPeriod)
}

func (c *RedisForecastCache) metricPattern(companyID string, metric models.MetricKind) string {
	return fmt.Sprintf("%s%s:%s:*", escapeGlob(c.prefix), escapeGlob(companyID), escapeGlob(string(metric)))
}

// escapeGlob quotes the characters SCAN MATCH treats as wildcards.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get returns the cached report for k. Redis errors are logged and treated
// as misses.
func (c *RedisForecastCache) Get(ctx context.Context, k ForecastKey) (*models.ForecastReport, bool) {
	ctx, span := observability.StartSpan(ctx, observability.SpanOpCacheGet, "ForecastCache.Get")
	defer observability.FinishSpan(span, nil)

	data, err := c.redis.Get(ctx, c.Key(k)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("company_id", k.CompanyID).Warn("Redis error reading cached forecast")
		}
		c.recordMiss()
		return nil, false
	}

	var report models.ForecastReport
	if err := json.Unmarshal(data, &report); err != nil {
		c.logger.WithError(err).WithField("company_id", k.CompanyID).Warn("Error deserializing cached forecast")
		c.recordMiss()
		return nil, false
	}

	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	c.metrics.CacheResult(true)

	report.Cached = true
	return &report, true
}

// Set stores report under k with the configured TTL.
func (c *RedisForecastCache) Set(ctx context.Context, k ForecastKey, report *models.ForecastReport) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanOpCacheSet, "ForecastCache.Set")

	data, err := json.Marshal(report)
	if err != nil {
		err = fmt.Errorf("failed to serialize forecast: %w", err)
		observability.FinishSpan(span, err)
		return err
	}

	if err := c.redis.Set(ctx, c.Key(k), data, c.ttl).Err(); err != nil {
		err = fmt.Errorf("failed to cache forecast: %w", err)
		observability.FinishSpan(span, err)
		return err
	}
	observability.FinishSpan(span, nil)

	c.mu.Lock()
	c.stats.Sets++
	c.mu.Unlock()
	return nil
}

// InvalidateMetric drops every cached forecast of a company metric.
func (c *RedisForecastCache) InvalidateMetric(ctx context.Context, companyID string, metric models.MetricKind) (int, error) {
	keys, err := c.scan(ctx, c.metricPattern(companyID, metric))
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("error invalidating forecasts: %w", err)
	}

	c.mu.Lock()
	c.stats.Invalidations += int64(len(keys))
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"company_id": companyID,
		"metric":     metric,
		"keys":       len(keys),
	}).Debug("Invalidated cached forecasts")
	return len(keys), nil
}

// Clear removes all cached forecasts.
func (c *RedisForecastCache) Clear(ctx context.Context) error {
	keys, err := c.scan(ctx, c.prefix+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing cache: %w", err)
	}
	return nil
}

func (c *RedisForecastCache) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning cache keys: %w", err)
	}
	return keys, nil
}

func (c *RedisForecastCache) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	c.metrics.CacheResult(false)
}

// GetStats returns current cache statistics
func (c *RedisForecastCache) GetStats() ForecastCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// HitRate returns hits over lookups as a percentage.
func (s ForecastCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
