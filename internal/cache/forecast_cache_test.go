package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popanda44/seedvalidator-finance/internal/logging"
	"github.com/popanda44/seedvalidator-finance/internal/metrics"
	"github.com/popanda44/seedvalidator-finance/internal/models"
	itest "github.com/popanda44/seedvalidator-finance/internal/testutil"
	"github.com/popanda44/seedvalidator-finance/pkg/forecast"
)

func setupCache(t *testing.T) (*RedisForecastCache, *miniredis.Miniredis, *metrics.Registry) {
	t.Helper()
	client, s := itest.NewMiniRedis(t)
	reg := metrics.NewRegistry()
	return NewRedisForecastCache(client, 15*time.Minute, logging.Discard(), reg), s, reg
}

func sampleReport() *models.ForecastReport {
	return &models.ForecastReport{
		RunID:           "run-1",
		CompanyID:       "acme",
		Metric:          models.MetricMRR,
		HorizonMonths:   6,
		ConfidenceLevel: 0.95,
		Result: &forecast.ForecastResult{
			Forecasts:  []forecast.ForecastPoint{{Label: "Jan 2024", Projected: 100, UpperBound: 110, LowerBound: 90}},
			FitMetrics: forecast.FitMetrics{MAPE: 4.2, TrendDirection: forecast.TrendUp},
		},
	}
}

func TestRedisForecastCache_Key(t *testing.T) {
	c, _, _ := setupCache(t)

	key := c.Key(ForecastKey{CompanyID: "acme", Metric: models.MetricMRR, HorizonMonths: 6, ConfidenceLevel: 0.95, SeasonalPeriod: 12})
	assert.Equal(t, "forecast:acme:mrr:6:0.95:12", key)
}

func TestRedisForecastCache_SetGet(t *testing.T) {
	c, s, reg := setupCache(t)
	ctx := context.Background()
	key := ForecastKey{CompanyID: "acme", Metric: models.MetricMRR, HorizonMonths: 6, ConfidenceLevel: 0.95, SeasonalPeriod: 12}

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, sampleReport()))
	assert.True(t, s.Exists("forecast:acme:mrr:6:0.95:12"))
	assert.Equal(t, 15*time.Minute, s.TTL("forecast:acme:mrr:6:0.95:12"))

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.True(t, got.Cached)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 4.2, got.Result.FitMetrics.MAPE)
	require.Len(t, got.Result.Forecasts, 1)
	assert.Equal(t, 110.0, got.Result.Forecasts[0].UpperBound)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.InDelta(t, 50.0, stats.HitRate(), 1e-9)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheRequests.WithLabelValues("miss")))
}

func TestRedisForecastCache_CorruptEntry(t *testing.T) {
	c, s, _ := setupCache(t)
	require.NoError(t, s.Set("forecast:acme:mrr:6:0.95:12", "{not json"))

	_, ok := c.Get(context.Background(), ForecastKey{CompanyID: "acme", Metric: models.MetricMRR, HorizonMonths: 6, ConfidenceLevel: 0.95, SeasonalPeriod: 12})
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.GetStats().Misses)
}

func TestRedisForecastCache_InvalidateMetric(t *testing.T) {
	c, s, _ := setupCache(t)
	ctx := context.Background()

	for _, h := range []int{3, 6, 12} {
		require.NoError(t, c.Set(ctx, ForecastKey{CompanyID: "acme", Metric: models.MetricMRR, HorizonMonths: h, ConfidenceLevel: 0.95, SeasonalPeriod: 12}, sampleReport()))
	}
	require.NoError(t, c.Set(ctx, ForecastKey{CompanyID: "acme", Metric: models.MetricRevenue, HorizonMonths: 6, ConfidenceLevel: 0.95, SeasonalPeriod: 12}, sampleReport()))
	require.NoError(t, c.Set(ctx, ForecastKey{CompanyID: "globex", Metric: models.MetricMRR, HorizonMonths: 6, ConfidenceLevel: 0.95, SeasonalPeriod: 12}, sampleReport()))

	n, err := c.InvalidateMetric(ctx, "acme", models.MetricMRR)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.False(t, s.Exists("forecast:acme:mrr:6:0.95:12"))
	assert.True(t, s.Exists("forecast:acme:revenue:6:0.95:12"))
	assert.True(t, s.Exists("forecast:globex:mrr:6:0.95:12"))
	assert.Equal(t, int64(3), c.GetStats().Invalidations)

	n, err = c.InvalidateMetric(ctx, "acme", models.MetricMRR)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisForecastCache_InvalidateMetricWildcardIDs(t *testing.T) {
	c, s, _ := setupCache(t)
	ctx := context.Background()

	for _, id := range []string{"acme", "a[1", "a1", "a?c", "abc"} {
		require.NoError(t, c.Set(ctx, ForecastKey{CompanyID: id, Metric: models.MetricMRR, HorizonMonths: 6, ConfidenceLevel: 0.95, SeasonalPeriod: 12}, sampleReport()))
	}

	n, err := c.InvalidateMetric(ctx, "a[1", models.MetricMRR)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, s.Exists("forecast:a[1:mrr:6:0.95:12"))
	assert.True(t, s.Exists("forecast:a1:mrr:6:0.95:12"))

	n, err = c.InvalidateMetric(ctx, "a?c", models.MetricMRR)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, s.Exists("forecast:abc:mrr:6:0.95:12"))

	n, err = c.InvalidateMetric(ctx, "*", models.MetricMRR)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, s.Exists("forecast:acme:mrr:6:0.95:12"))
	assert.True(t, s.Exists("forecast:abc:mrr:6:0.95:12"))
}

func TestRedisForecastCache_InvalidateRoundTrip(t *testing.T) {
	client := itest.NewTestRedis(t)
	c := NewRedisForecastCache(client, time.Minute, logging.Discard(), metrics.NewRegistry())
	ctx := context.Background()

	bracket := ForecastKey{CompanyID: "co[7]", Metric: models.MetricMRR, HorizonMonths: 6, ConfidenceLevel: 0.95, SeasonalPeriod: 12}
	plain := ForecastKey{CompanyID: "co7", Metric: models.MetricMRR, HorizonMonths: 6, ConfidenceLevel: 0.95, SeasonalPeriod: 12}
	require.NoError(t, c.Set(ctx, bracket, sampleReport()))
	require.NoError(t, c.Set(ctx, plain, sampleReport()))

	n, err := c.InvalidateMetric(ctx, "co[7]", models.MetricMRR)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := c.Get(ctx, bracket)
	assert.False(t, ok)
	_, ok = c.Get(ctx, plain)
	assert.True(t, ok)
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "acme", want: "acme"},
		{in: "a[1]", want: `a\[1\]`},
		{in: "*", want: `\*`},
		{in: "a?b", want: `a\?b`},
		{in: `back\slash`, want: `back\\slash`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, escapeGlob(tc.in), tc.in)
	}
}

func TestRedisForecastCache_Clear(t *testing.T) {
	c, s, _ := setupCache(t)
	ctx := context.Background()
	require.NoError(t, s.Set("unrelated", "keep"))
	require.NoError(t, c.Set(ctx, ForecastKey{CompanyID: "acme", Metric: models.MetricMRR, HorizonMonths: 6, ConfidenceLevel: 0.9, SeasonalPeriod: 12}, sampleReport()))

	require.NoError(t, c.Clear(ctx))

	assert.Equal(t, []string{"unrelated"}, s.Keys())
}

func TestRedisForecastCache_RedisDown(t *testing.T) {
	c, s, _ := setupCache(t)
	s.Close()

	key := ForecastKey{CompanyID: "acme", Metric: models.MetricMRR, HorizonMonths: 6, ConfidenceLevel: 0.95, SeasonalPeriod: 12}
	_, ok := c.Get(context.Background(), key)
	assert.False(t, ok)
	assert.Error(t, c.Set(context.Background(), key, sampleReport()))
}
