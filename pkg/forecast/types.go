// Package forecast implements the forecasting engine for recurring financial metrics:
// linear trend, seasonality detection, Holt-Winters forecasting with grid-searched
// parameters, anomaly detection, burn-rate projection and runway scenarios.
//
// Every function is pure. Inputs are never mutated and no state is kept between calls,
// so all operations are safe for concurrent use.
package forecast

import "time"

// TrendDirection classifies the fitted trend of a forecast.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// BurnTrend classifies the direction of an expense series.
type BurnTrend string

const (
	BurnIncreasing BurnTrend = "increasing"
	BurnDecreasing BurnTrend = "decreasing"
	BurnStable     BurnTrend = "stable"
)

// Observation is one historical measurement of the tracked metric.
type Observation struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Value     float64   `json:"value" yaml:"value"`
}

// TrendResult is an ordinary least-squares line over the chronological index.
type TrendResult struct {
	Slope     float64 `json:"slope" yaml:"slope"`
	Intercept float64 `json:"intercept" yaml:"intercept"`
	// GrowthRate is slope as a percentage of the mean level.
	GrowthRate float64 `json:"growth_rate" yaml:"growth_rate"`
}

// SeasonalityResult holds per-phase multiplicative factors and the lag-period autocorrelation.
type SeasonalityResult struct {
	Factors  []float64 `json:"factors" yaml:"factors"`
	Strength float64   `json:"strength" yaml:"strength"`
}

// Detected reports whether the cycle is strong enough for the forecaster to engage seasonal terms.
func (s SeasonalityResult) Detected() bool {
	return s.Strength > SeasonalityThreshold
}

// ForecastPoint is one row of forecast output. Actual is set only on the
// last historical point, which is prepended to join actuals and projections.
type ForecastPoint struct {
	Date       time.Time `json:"date" yaml:"date"`
	Label      string    `json:"label" yaml:"label"`
	Actual     *float64  `json:"actual" yaml:"actual"`
	Projected  float64   `json:"projected" yaml:"projected"`
	UpperBound float64   `json:"upper_bound" yaml:"upper_bound"`
	LowerBound float64   `json:"lower_bound" yaml:"lower_bound"`
}

// IsHistorical reports whether the point carries an observed value.
func (p ForecastPoint) IsHistorical() bool {
	return p.Actual != nil
}

// FitMetrics describes how well the selected model reproduced the history.
type FitMetrics struct {
	MAPE                float64        `json:"mape" yaml:"mape"`
	MAE                 float64        `json:"mae" yaml:"mae"`
	RMSE                float64        `json:"rmse" yaml:"rmse"`
	TrendDirection      TrendDirection `json:"trend_direction" yaml:"trend_direction"`
	SeasonalityDetected bool           `json:"seasonality_detected" yaml:"seasonality_detected"`
	SeasonalityStrength float64        `json:"seasonality_strength" yaml:"seasonality_strength"`
}

// ModelParams are the smoothing coefficients chosen by the grid search.
type ModelParams struct {
	Alpha          float64 `json:"alpha" yaml:"alpha"`
	Beta           float64 `json:"beta" yaml:"beta"`
	Gamma          float64 `json:"gamma" yaml:"gamma"`
	SeasonalPeriod int     `json:"seasonal_period" yaml:"seasonal_period"`
}

// ForecastResult is built fresh by every Forecast call.
type ForecastResult struct {
	Forecasts   []ForecastPoint `json:"forecasts" yaml:"forecasts"`
	FitMetrics  FitMetrics      `json:"fit_metrics" yaml:"fit_metrics"`
	ModelParams ModelParams     `json:"model_params" yaml:"model_params"`
	// Fallback is true when there was too little history to fit a model.
	Fallback bool `json:"fallback" yaml:"fallback"`
}

// Anomaly is an observation lying further than the threshold from the series mean.
type Anomaly struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Value     float64   `json:"value" yaml:"value"`
	// Deviation is the absolute distance from the mean in standard deviations.
	Deviation float64 `json:"deviation" yaml:"deviation"`
	Direction string  `json:"direction" yaml:"direction"` // above, below
}

// BurnPrediction projects an expense series forward.
type BurnPrediction struct {
	Predictions   []float64 `json:"predictions" yaml:"predictions"`
	AverageBurn   float64   `json:"average_burn" yaml:"average_burn"`
	Trend         BurnTrend `json:"trend" yaml:"trend"`
	MovingAverage float64   `json:"moving_average" yaml:"moving_average"`
}

// RunwayScenarios holds runway estimates in months. A value of RunwaySentinelMonths
// means the runway is effectively unbounded (revenue covers burn); it is not a
// literal month count.
type RunwayScenarios struct {
	Optimistic  float64 `json:"optimistic" yaml:"optimistic"`
	Base        float64 `json:"base" yaml:"base"`
	Pessimistic float64 `json:"pessimistic" yaml:"pessimistic"`
}

// IsUnbounded reports whether months is the unbounded-runway sentinel.
func IsUnbounded(months float64) bool {
	return months >= RunwaySentinelMonths
}
