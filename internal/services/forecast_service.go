package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/popanda44/seedvalidator-finance/internal/cache"
	"github.com/popanda44/seedvalidator-finance/internal/config"
	"github.com/popanda44/seedvalidator-finance/internal/database"
	"github.com/popanda44/seedvalidator-finance/internal/metrics"
	"github.com/popanda44/seedvalidator-finance/internal/models"
	"github.com/popanda44/seedvalidator-finance/internal/observability"
	"github.com/popanda44/seedvalidator-finance/internal/utils"
	"github.com/popanda44/seedvalidator-finance/pkg/forecast"
)

// ErrStoreUnavailable is returned by store-backed operations when no
// observation store is configured or its circuit breaker is open.
var ErrStoreUnavailable = errors.New("observation store is unavailable")

// ObservationStore defines the persistence operations the service needs.
type ObservationStore interface {
	ListObservations(ctx context.Context, companyID string, metric models.MetricKind, limit int) ([]models.MetricObservation, error)
	UpsertObservations(ctx context.Context, observations []models.MetricObservation) (int, error)
	LatestValue(ctx context.Context, companyID string, metric models.MetricKind) (float64, error)
	ListCompanies(ctx context.Context, metric models.MetricKind) ([]string, error)
}

// ForecastCache stores forecast reports between runs.
type ForecastCache interface {
	Get(ctx context.Context, key cache.ForecastKey) (*models.ForecastReport, bool)
	Set(ctx context.Context, key cache.ForecastKey, report *models.ForecastReport) error
	InvalidateMetric(ctx context.Context, companyID string, metric models.MetricKind) (int, error)
}

// RunwayInput holds the figures a runway estimate is computed from.
type RunwayInput struct {
	CashBalance       float64
	MonthlyBurn       float64
	MonthlyRevenue    float64
	GrowthRatePercent float64
}

// ForecastService runs the forecasting engine over caller-supplied series or
// series loaded from the observation store.
type ForecastService struct {
	store   ObservationStore
	cache   ForecastCache
	config  config.ForecastConfig
	logger  logrus.FieldLogger
	metrics *metrics.Registry
	now     func() time.Time
}

// NewForecastService creates a new forecast service. store and fcache may be
// nil; store-backed operations then return ErrStoreUnavailable and results
// are not cached.
func NewForecastService(store ObservationStore, fcache ForecastCache, cfg config.ForecastConfig, logger logrus.FieldLogger, reg *metrics.Registry) *ForecastService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ForecastService{
		store:   store,
		cache:   fcache,
		config:  cfg,
		logger:  logger.WithField("component", "forecast_service"),
		metrics: reg,
		now:     time.Now,
	}
}

// HasStore reports whether store-backed operations are available.
func (s *ForecastService) HasStore() bool {
	return s.store != nil
}

// Config returns the forecast settings the service runs with.
func (s *ForecastService) Config() config.ForecastConfig {
	return s.config
}

// ForecastSeries forecasts a caller-supplied series.
func (s *ForecastService) ForecastSeries(ctx context.Context, observations []forecast.Observation, opts forecast.Options) (*models.ForecastReport, error) {
	_, span := observability.StartSpan(ctx, observability.SpanOpForecast, "ForecastService.ForecastSeries",
		attribute.Int("observations", len(observations)))

	report, err := s.runForecast(observations, opts)
	observability.FinishSpan(span, err)
	return report, err
}

// ForecastMetric forecasts a stored company metric, serving from the cache
// when the same run was computed recently.
func (s *ForecastService) ForecastMetric(ctx context.Context, companyID string, metric models.MetricKind, opts forecast.Options) (*models.ForecastReport, error) {
	spanCtx, span := observability.StartSpan(ctx, observability.SpanOpForecast, "ForecastService.ForecastMetric",
		attribute.String("company_id", companyID), attribute.String("metric", string(metric)))

	report, err := s.forecastMetric(spanCtx, companyID, metric, opts)
	observability.FinishSpan(span, err)
	return report, err
}

func (s *ForecastService) forecastMetric(ctx context.Context, companyID string, metric models.MetricKind, opts forecast.Options) (*models.ForecastReport, error) {
	if err := validateCompanyMetric(companyID, metric); err != nil {
		return nil, err
	}
	opts, err := s.applyDefaults(opts)
	if err != nil {
		return nil, err
	}

	key := cache.ForecastKey{
		CompanyID:       companyID,
		Metric:          metric,
		HorizonMonths:   opts.HorizonMonths,
		ConfidenceLevel: opts.ConfidenceLevel,
		SeasonalPeriod:  opts.SeasonalPeriod,
	}
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	observations, err := s.loadSeries(ctx, companyID, metric)
	if err != nil {
		return nil, err
	}

	report, err := s.runForecast(observations, opts)
	if err != nil {
		return nil, err
	}
	report.CompanyID = companyID
	report.Metric = metric
	if s.metrics != nil {
		s.metrics.ForecastFitMAPE.WithLabelValues(string(metric)).Set(report.Result.FitMetrics.MAPE)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report); err != nil {
			s.logger.WithError(err).WithField("company_id", companyID).Warn("Failed to cache forecast")
		}
	}
	return report, nil
}

// ForecastBatch forecasts one metric for many companies in parallel. An
// empty companyIDs forecasts every company with stored values. Per-company
// failures are reported in the item; only cancellation fails the batch.
func (s *ForecastService) ForecastBatch(ctx context.Context, companyIDs []string, metric models.MetricKind, opts forecast.Options) ([]models.BatchItem, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	if !metric.Valid() {
		return nil, utils.NewFieldError("metric", "%q is not supported", metric)
	}
	if len(companyIDs) == 0 {
		ids, err := s.store.ListCompanies(ctx, metric)
		if err != nil {
			return nil, fmt.Errorf("failed to list companies: %w", err)
		}
		companyIDs = ids
	}

	items := make([]models.BatchItem, len(companyIDs))
	g, gctx := errgroup.WithContext(ctx)
	limit := s.config.BatchConcurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, companyID := range companyIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i].CompanyID = companyID
			report, err := s.ForecastMetric(gctx, companyID, metric, opts)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Report = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"metric":    metric,
		"companies": len(companyIDs),
	}).Info("Batch forecast completed")
	return items, nil
}

// CalculateTrend fits a linear trend to a caller-supplied series.
func (s *ForecastService) CalculateTrend(ctx context.Context, observations []forecast.Observation) (forecast.TrendResult, error) {
	_, span := observability.StartSpan(ctx, observability.SpanOpTrend, "ForecastService.CalculateTrend")
	if err := validateObservations(observations); err != nil {
		observability.FinishSpan(span, err)
		return forecast.TrendResult{}, err
	}
	start := time.Now()
	result := forecast.CalculateTrend(observations)
	s.metrics.ObserveForecast("trend", time.Since(start).Seconds(), nil)
	observability.FinishSpan(span, nil)
	return result, nil
}

// DetectSeasonality measures periodicity in a value series.
func (s *ForecastService) DetectSeasonality(ctx context.Context, values []float64, period int) (forecast.SeasonalityResult, error) {
	_, span := observability.StartSpan(ctx, observability.SpanOpSeasonality, "ForecastService.DetectSeasonality")
	if err := validateValues(values); err != nil {
		observability.FinishSpan(span, err)
		return forecast.SeasonalityResult{}, err
	}
	if period < 0 {
		err := utils.NewFieldError("seasonal_period", "must be positive")
		observability.FinishSpan(span, err)
		return forecast.SeasonalityResult{}, err
	}
	if period == 0 {
		period = s.seasonalPeriod()
	}
	start := time.Now()
	result := forecast.DetectSeasonality(values, period)
	s.metrics.ObserveForecast("seasonality", time.Since(start).Seconds(), nil)
	observability.FinishSpan(span, nil)
	return result, nil
}

// DetectAnomalies flags observations more than threshold standard deviations
// from the mean. A threshold of zero uses the configured default.
func (s *ForecastService) DetectAnomalies(ctx context.Context, observations []forecast.Observation, threshold float64) (*models.AnomalyReport, error) {
	_, span := observability.StartSpan(ctx, observability.SpanOpAnomaly, "ForecastService.DetectAnomalies")
	report, err := s.detectAnomalies(observations, threshold)
	observability.FinishSpan(span, err)
	return report, err
}

// DetectMetricAnomalies runs anomaly detection over a stored company metric.
func (s *ForecastService) DetectMetricAnomalies(ctx context.Context, companyID string, metric models.MetricKind, threshold float64) (*models.AnomalyReport, error) {
	spanCtx, span := observability.StartSpan(ctx, observability.SpanOpAnomaly, "ForecastService.DetectMetricAnomalies",
		attribute.String("company_id", companyID), attribute.String("metric", string(metric)))

	report, err := func() (*models.AnomalyReport, error) {
		if err := validateCompanyMetric(companyID, metric); err != nil {
			return nil, err
		}
		observations, err := s.loadSeries(spanCtx, companyID, metric)
		if err != nil {
			return nil, err
		}
		report, err := s.detectAnomalies(observations, threshold)
		if err != nil {
			return nil, err
		}
		report.CompanyID = companyID
		report.Metric = metric
		return report, nil
	}()
	observability.FinishSpan(span, err)
	return report, err
}

func (s *ForecastService) detectAnomalies(observations []forecast.Observation, threshold float64) (*models.AnomalyReport, error) {
	if err := validateObservations(observations); err != nil {
		return nil, err
	}
	if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, utils.NewFieldError("threshold", "must be a positive number of standard deviations")
	}
	if threshold == 0 {
		threshold = s.config.AnomalyThreshold
	}
	if threshold == 0 {
		threshold = forecast.DefaultAnomalyThreshold
	}

	start := time.Now()
	anomalies := forecast.DetectAnomalies(observations, threshold)
	s.metrics.ObserveForecast("anomalies", time.Since(start).Seconds(), nil)
	if s.metrics != nil {
		for _, a := range anomalies {
			s.metrics.AnomaliesDetected.WithLabelValues(a.Direction).Inc()
		}
	}

	return &models.AnomalyReport{
		RunID:        uuid.NewString(),
		Threshold:    threshold,
		Observations: len(observations),
		Anomalies:    anomalies,
		GeneratedAt:  s.now().UTC(),
	}, nil
}

// PredictBurnRate projects a caller-supplied burn series months ahead.
func (s *ForecastService) PredictBurnRate(ctx context.Context, observations []forecast.Observation, months int) (*models.BurnReport, error) {
	_, span := observability.StartSpan(ctx, observability.SpanOpBurnRate, "ForecastService.PredictBurnRate")
	report, err := s.predictBurn(observations, months)
	observability.FinishSpan(span, err)
	return report, err
}

// PredictCompanyBurn projects a company's stored burn series. The expense
// series is used unless metric names cash_burn.
func (s *ForecastService) PredictCompanyBurn(ctx context.Context, companyID string, metric models.MetricKind, months int) (*models.BurnReport, error) {
	if metric == "" {
		metric = models.MetricExpense
	}
	spanCtx, span := observability.StartSpan(ctx, observability.SpanOpBurnRate, "ForecastService.PredictCompanyBurn",
		attribute.String("company_id", companyID), attribute.String("metric", string(metric)))

	report, err := func() (*models.BurnReport, error) {
		if err := validateCompanyMetric(companyID, metric); err != nil {
			return nil, err
		}
		if metric != models.MetricExpense && metric != models.MetricCashBurn {
			return nil, utils.NewFieldError("metric", "must be expense or cash_burn for burn rate, got %q", metric)
		}
		observations, err := s.loadSeries(spanCtx, companyID, metric)
		if err != nil {
			return nil, err
		}
		report, err := s.predictBurn(observations, months)
		if err != nil {
			return nil, err
		}
		report.CompanyID = companyID
		report.Metric = metric
		return report, nil
	}()
	observability.FinishSpan(span, err)
	return report, err
}

func (s *ForecastService) predictBurn(observations []forecast.Observation, months int) (*models.BurnReport, error) {
	if err := validateObservations(observations); err != nil {
		return nil, err
	}
	if months < 0 {
		return nil, utils.NewFieldError("months", "must not be negative")
	}
	if months == 0 {
		months = s.config.BurnProjectionMonths
	}
	if s.config.MaxHorizonMonths > 0 && months > s.config.MaxHorizonMonths {
		return nil, utils.NewFieldError("months", "must not exceed %d", s.config.MaxHorizonMonths)
	}

	start := time.Now()
	prediction := forecast.PredictBurnRate(observations, months)
	s.metrics.ObserveForecast("burn_rate", time.Since(start).Seconds(), nil)

	return &models.BurnReport{
		RunID:       uuid.NewString(),
		Months:      months,
		Prediction:  prediction,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// CalculateRunway estimates runway scenarios from explicit figures.
func (s *ForecastService) CalculateRunway(ctx context.Context, in RunwayInput) (*models.RunwayReport, error) {
	_, span := observability.StartSpan(ctx, observability.SpanOpRunway, "ForecastService.CalculateRunway")
	report, err := s.runway(in)
	observability.FinishSpan(span, err)
	return report, err
}

// CompanyRunway estimates runway from the latest stored cash balance,
// expense and revenue. A nil growth rate uses the revenue trend growth rate.
func (s *ForecastService) CompanyRunway(ctx context.Context, companyID string, growthRatePercent *float64) (*models.RunwayReport, error) {
	spanCtx, span := observability.StartSpan(ctx, observability.SpanOpRunway, "ForecastService.CompanyRunway",
		attribute.String("company_id", companyID))

	report, err := s.companyRunway(spanCtx, companyID, growthRatePercent)
	observability.FinishSpan(span, err)
	return report, err
}

func (s *ForecastService) companyRunway(ctx context.Context, companyID string, growthRatePercent *float64) (*models.RunwayReport, error) {
	if err := validateCompanyMetric(companyID, models.MetricCashBalance); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}

	cash, err := s.store.LatestValue(ctx, companyID, models.MetricCashBalance)
	if err != nil {
		return nil, err
	}
	burn, err := s.store.LatestValue(ctx, companyID, models.MetricExpense)
	if err != nil {
		return nil, err
	}

	in := RunwayInput{CashBalance: cash, MonthlyBurn: burn}

	revenue, err := s.store.ListObservations(ctx, companyID, models.MetricRevenue, s.lookback())
	switch {
	case errors.Is(err, database.ErrNoObservations):
		// Pre-revenue company
	case err != nil:
		return nil, err
	default:
		series := models.ToObservations(revenue)
		in.MonthlyRevenue = series[len(series)-1].Value
		in.GrowthRatePercent = forecast.CalculateTrend(series).GrowthRate
	}
	if growthRatePercent != nil {
		in.GrowthRatePercent = *growthRatePercent
	}

	report, err := s.runway(in)
	if err != nil {
		return nil, err
	}
	report.CompanyID = companyID
	return report, nil
}

func (s *ForecastService) runway(in RunwayInput) (*models.RunwayReport, error) {
	for name, v := range map[string]float64{
		"cash_balance":        in.CashBalance,
		"monthly_burn":        in.MonthlyBurn,
		"monthly_revenue":     in.MonthlyRevenue,
		"growth_rate_percent": in.GrowthRatePercent,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, utils.NewValidationErrorf("%s must be a finite number", name)
		}
	}

	start := time.Now()
	scenarios := forecast.CalculateRunwayScenarios(in.CashBalance, in.MonthlyBurn, in.MonthlyRevenue, in.GrowthRatePercent)
	s.metrics.ObserveForecast("runway", time.Since(start).Seconds(), nil)

	netBurn := in.MonthlyBurn - in.MonthlyRevenue
	return &models.RunwayReport{
		RunID:             uuid.NewString(),
		CashBalance:       in.CashBalance,
		MonthlyBurn:       in.MonthlyBurn,
		MonthlyRevenue:    in.MonthlyRevenue,
		GrowthRatePercent: in.GrowthRatePercent,
		NetBurn:           netBurn,
		Profitable:        netBurn <= 0,
		Scenarios:         scenarios,
		SentinelMonths:    forecast.RunwaySentinelMonths,
		GeneratedAt:       s.now().UTC(),
	}, nil
}

// IngestObservations stores monthly values for a company metric and drops
// cached forecasts that depended on the old series.
func (s *ForecastService) IngestObservations(ctx context.Context, companyID string, metric models.MetricKind, observations []forecast.Observation, source string) (int, error) {
	spanCtx, span := observability.StartSpan(ctx, observability.SpanOpDBQuery, "ForecastService.IngestObservations",
		attribute.String("company_id", companyID), attribute.String("metric", string(metric)))

	n, err := s.ingest(spanCtx, companyID, metric, observations, source)
	observability.FinishSpan(span, err)
	return n, err
}

func (s *ForecastService) ingest(ctx context.Context, companyID string, metric models.MetricKind, observations []forecast.Observation, source string) (int, error) {
	if err := validateCompanyMetric(companyID, metric); err != nil {
		return 0, err
	}
	if len(observations) == 0 {
		return 0, utils.NewValidationError("at least one observation is required")
	}
	if err := validateObservations(observations); err != nil {
		return 0, err
	}
	if s.store == nil {
		return 0, ErrStoreUnavailable
	}

	rows := make([]models.MetricObservation, len(observations))
	for i, o := range observations {
		if o.Timestamp.IsZero() {
			return 0, utils.NewValidationErrorf("observation %d has no timestamp", i)
		}
		rows[i] = models.MetricObservation{
			CompanyID:   companyID,
			Metric:      metric,
			PeriodStart: models.PeriodStartOf(o.Timestamp),
			Value:       o.Value,
			Source:      source,
		}
	}

	n, err := s.store.UpsertObservations(ctx, rows)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.ObservationsIngest.WithLabelValues(string(metric)).Add(float64(n))
	}

	if s.cache != nil {
		if _, err := s.cache.InvalidateMetric(ctx, companyID, metric); err != nil {
			s.logger.WithError(err).WithField("company_id", companyID).Warn("Failed to invalidate cached forecasts")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"company_id":   companyID,
		"metric":       metric,
		"observations": n,
	}).Info("Observations ingested")
	return n, nil
}

func (s *ForecastService) runForecast(observations []forecast.Observation, opts forecast.Options) (*models.ForecastReport, error) {
	if err := validateObservations(observations); err != nil {
		return nil, err
	}
	opts, err := s.applyDefaults(opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := forecast.Forecast(observations, opts)
	elapsed := time.Since(start)
	s.metrics.ObserveForecast("forecast", elapsed.Seconds(), err)
	if err != nil {
		if errors.Is(err, forecast.ErrInvalidHorizon) || errors.Is(err, forecast.ErrInvalidSeasonalPeriod) {
			return nil, utils.NewValidationError(err.Error())
		}
		return nil, fmt.Errorf("forecast failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"observations": len(observations),
		"horizon":      opts.HorizonMonths,
		"mape":         result.FitMetrics.MAPE,
		"fallback":     result.Fallback,
		"duration_ms":  elapsed.Milliseconds(),
	}).Debug("Forecast computed")

	return &models.ForecastReport{
		RunID:           uuid.NewString(),
		HorizonMonths:   opts.HorizonMonths,
		ConfidenceLevel: opts.ConfidenceLevel,
		Observations:    len(observations),
		Result:          result,
		GeneratedAt:     s.now().UTC(),
	}, nil
}

func (s *ForecastService) applyDefaults(opts forecast.Options) (forecast.Options, error) {
	if opts.HorizonMonths < 0 {
		return opts, utils.NewFieldError("horizon_months", "must be positive")
	}
	if opts.HorizonMonths == 0 {
		opts.HorizonMonths = s.config.DefaultHorizonMonths
	}
	if opts.HorizonMonths == 0 {
		opts.HorizonMonths = 1
	}
	if s.config.MaxHorizonMonths > 0 && opts.HorizonMonths > s.config.MaxHorizonMonths {
		return opts, utils.NewFieldError("horizon_months", "must not exceed %d", s.config.MaxHorizonMonths)
	}
	// Unlisted levels are accepted; the engine scores them at 95%.
	if math.IsNaN(opts.ConfidenceLevel) || opts.ConfidenceLevel < 0 {
		return opts, utils.NewFieldError("confidence_level", "must be positive")
	}
	if opts.ConfidenceLevel == 0 {
		opts.ConfidenceLevel = s.config.DefaultConfidenceLevel
	}
	if opts.SeasonalPeriod < 0 {
		return opts, utils.NewFieldError("seasonal_period", "must be positive")
	}
	if opts.SeasonalPeriod == 0 {
		opts.SeasonalPeriod = s.seasonalPeriod()
	}
	if opts.Reference.IsZero() {
		opts.Reference = s.now()
	}
	return opts, nil
}

func (s *ForecastService) loadSeries(ctx context.Context, companyID string, metric models.MetricKind) ([]forecast.Observation, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.store.ListObservations(ctx, companyID, metric, s.lookback())
	if err != nil {
		return nil, err
	}
	return models.ToObservations(rows), nil
}

func (s *ForecastService) seasonalPeriod() int {
	if s.config.SeasonalPeriod > 0 {
		return s.config.SeasonalPeriod
	}
	return forecast.DefaultSeasonalPeriod
}

func (s *ForecastService) lookback() int {
	if s.config.LookbackMonths > 0 {
		return s.config.LookbackMonths
	}
	return 36
}

func validateCompanyMetric(companyID string, metric models.MetricKind) error {
	if strings.TrimSpace(companyID) == "" {
		return utils.NewFieldError("company_id", "is required")
	}
	if !metric.Valid() {
		return utils.NewFieldError("metric", "%q is not supported", metric)
	}
	return nil
}

func validateObservations(observations []forecast.Observation) error {
	for i, o := range observations {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return utils.NewValidationErrorf("observation %d has a non-finite value", i)
		}
	}
	return nil
}

func validateValues(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return utils.NewValidationErrorf("value %d is not finite", i)
		}
	}
	return nil
}
