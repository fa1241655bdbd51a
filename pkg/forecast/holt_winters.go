package forecast

import (
	"errors"
	"math"
	"time"
)

const (
	DefaultConfidenceLevel = 0.95

	// fallbackGrowthRate is the per-period compounding growth assumed without history.
	fallbackGrowthRate = 0.05
	// fallbackBaseValue seeds the fallback forecast when no observation exists.
	fallbackBaseValue = 10000.0
	// fallbackUncertainty is the relative interval half-width per unit z on the fallback path.
	fallbackUncertainty = 0.15
	fallbackMAPE        = 15.0

	// trendThresholdPercent separates up/down from stable.
	trendThresholdPercent = 1.0

	labelLayout = "Jan 2006"
)

var (
	ErrInvalidHorizon        = errors.New("forecast: horizon must be at least one month")
	ErrInvalidSeasonalPeriod = errors.New("forecast: seasonal period must be positive")
)

var (
	alphaGrid = []float64{0.1, 0.3, 0.5}
	betaGrid  = []float64{0.05, 0.1, 0.2}
	gammaGrid = []float64{0.1, 0.3, 0.5}
)

// Options configures a forecast run.
type Options struct {
	HorizonMonths int `json:"horizon_months" yaml:"horizon_months"`
	// ConfidenceLevel is one of 0.90, 0.95 or 0.99; other values use the 0.95 z-score.
	ConfidenceLevel float64 `json:"confidence_level" yaml:"confidence_level"`
	SeasonalPeriod  int     `json:"seasonal_period" yaml:"seasonal_period"`
	// Reference dates the projection when there are no observations. Zero means now.
	Reference time.Time `json:"-" yaml:"-"`
}

func (o Options) normalize() (Options, error) {
	if o.HorizonMonths < 1 {
		return o, ErrInvalidHorizon
	}
	if o.SeasonalPeriod < 0 {
		return o, ErrInvalidSeasonalPeriod
	}
	if o.SeasonalPeriod == 0 {
		o.SeasonalPeriod = DefaultSeasonalPeriod
	}
	if o.ConfidenceLevel == 0 {
		o.ConfidenceLevel = DefaultConfidenceLevel
	}
	if o.Reference.IsZero() {
		o.Reference = time.Now().UTC()
	}
	return o, nil
}

// ZScore maps a confidence level to its two-sided normal quantile.
func ZScore(confidenceLevel float64) float64 {
	switch confidenceLevel {
	case 0.90:
		return 1.645
	case 0.95:
		return 1.96
	case 0.99:
		return 2.576
	default:
		return 1.96
	}
}

// smoothingParams is one candidate of the grid search.
type smoothingParams struct {
	alpha, beta, gamma float64
}

// fitState is the outcome of running the recurrence over the history once.
type fitState struct {
	level    float64
	trend    float64
	seasonal []float64
	mape     float64
	mae      float64
	rmse     float64
}

// Forecast projects observations HorizonMonths periods ahead using triple
// exponential smoothing. With fewer than two observations it returns a flagged
// low-confidence forecast instead of fitting a model.
func Forecast(observations []Observation, opts Options) (*ForecastResult, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	sorted := sortedCopy(observations)
	if len(sorted) < 2 {
		return fallbackForecast(sorted, opts), nil
	}

	values := valuesOf(sorted)
	period := opts.SeasonalPeriod
	seasonality := DetectSeasonality(values, period)
	useSeasonality := seasonality.Detected()
	initial := initialSeasonalFactors(values, period)

	best, bestParams := gridSearch(values, initial, period, useSeasonality)

	z := ZScore(opts.ConfidenceLevel)
	n := len(values)
	last := sorted[n-1]

	forecasts := make([]ForecastPoint, 0, opts.HorizonMonths+1)
	forecasts = append(forecasts, historicalPoint(last))
	for h := 1; h <= opts.HorizonMonths; h++ {
		factor := 1.0
		if useSeasonality {
			factor = best.seasonal[positiveMod(n-period+h, period)]
		}
		point := (best.level + best.trend*float64(h)) * factor
		halfWidth := z * best.rmse * math.Sqrt(1+0.1*float64(h))
		forecasts = append(forecasts, projectedPoint(last.Timestamp.AddDate(0, h, 0), point, halfWidth))
	}

	gamma := bestParams.gamma
	if !useSeasonality {
		gamma = 0
	}

	return &ForecastResult{
		Forecasts: forecasts,
		FitMetrics: FitMetrics{
			MAPE:                best.mape,
			MAE:                 best.mae,
			RMSE:                best.rmse,
			TrendDirection:      trendDirection(best.trend, best.level),
			SeasonalityDetected: useSeasonality,
			SeasonalityStrength: seasonality.Strength,
		},
		ModelParams: ModelParams{
			Alpha:          bestParams.alpha,
			Beta:           bestParams.beta,
			Gamma:          gamma,
			SeasonalPeriod: period,
		},
	}, nil
}

// gridSearch fits every (alpha, beta, gamma) candidate in-sample and keeps the
// one with the lowest MAPE. Ties keep the earliest candidate so results are reproducible.
func gridSearch(values, initialSeasonal []float64, period int, useSeasonality bool) (fitState, smoothingParams) {
	var (
		best       fitState
		bestParams smoothingParams
		found      bool
	)
	for _, alpha := range alphaGrid {
		for _, beta := range betaGrid {
			for _, gamma := range gammaGrid {
				params := smoothingParams{alpha: alpha, beta: beta, gamma: gamma}
				state := fitHoltWinters(values, initialSeasonal, period, params, useSeasonality)
				if !found || state.mape < best.mape {
					best, bestParams, found = state, params, true
				}
			}
		}
	}
	return best, bestParams
}

// fitHoltWinters runs the multiplicative Holt-Winters recurrence once over values
// and returns the final state together with in-sample error metrics.
func fitHoltWinters(values, initialSeasonal []float64, period int, p smoothingParams, useSeasonality bool) fitState {
	seasonal := make([]float64, period)
	copy(seasonal, initialSeasonal)
	if !useSeasonality {
		for i := range seasonal {
			seasonal[i] = 1
		}
	}

	level := values[0]
	trend := 0.0
	if len(values) >= 2 {
		trend = values[1] - values[0]
	}

	var (
		absPctSum float64
		pctCount  int
		absSum    float64
		sqSum     float64
	)
	for t, x := range values {
		idx := t % period
		factor := seasonal[idx]
		fitted := (level + trend) * factor

		residual := x - fitted
		absSum += math.Abs(residual)
		sqSum += residual * residual
		if x != 0 {
			absPctSum += math.Abs(residual / x)
			pctCount++
		}

		prevLevel := level
		level = p.alpha*safeRatio(x, factor, x) + (1-p.alpha)*(prevLevel+trend)
		trend = p.beta*(level-prevLevel) + (1-p.beta)*trend
		if useSeasonality {
			seasonal[idx] = p.gamma*safeRatio(x, level, 1) + (1-p.gamma)*seasonal[idx]
		}
	}

	n := float64(len(values))
	state := fitState{
		level:    level,
		trend:    trend,
		seasonal: seasonal,
		mae:      absSum / n,
		rmse:     math.Sqrt(sqSum / n),
	}
	if pctCount > 0 {
		state.mape = absPctSum / float64(pctCount) * 100
	}
	return state
}

// fallbackForecast compounds the last known value (or a fixed seed) by 5% a period.
// Its fit metrics are placeholders marking the result as low confidence.
func fallbackForecast(sorted []Observation, opts Options) *ForecastResult {
	base := fallbackBaseValue
	start := opts.Reference
	forecasts := make([]ForecastPoint, 0, opts.HorizonMonths+1)
	if len(sorted) == 1 {
		last := sorted[0]
		base = last.Value
		start = last.Timestamp
		forecasts = append(forecasts, historicalPoint(last))
	}

	z := ZScore(opts.ConfidenceLevel)
	for h := 1; h <= opts.HorizonMonths; h++ {
		projected := base * math.Pow(1+fallbackGrowthRate, float64(h))
		halfWidth := fallbackUncertainty * math.Abs(projected) * z * math.Sqrt(float64(h))
		forecasts = append(forecasts, projectedPoint(start.AddDate(0, h, 0), projected, halfWidth))
	}

	return &ForecastResult{
		Forecasts: forecasts,
		FitMetrics: FitMetrics{
			MAPE:                fallbackMAPE,
			TrendDirection:      TrendUp,
			SeasonalityDetected: false,
		},
		ModelParams: ModelParams{SeasonalPeriod: opts.SeasonalPeriod},
		Fallback:    true,
	}
}

func historicalPoint(o Observation) ForecastPoint {
	actual := o.Value
	v := floorZero(o.Value)
	return ForecastPoint{
		Date:       o.Timestamp,
		Label:      o.Timestamp.Format(labelLayout),
		Actual:     &actual,
		Projected:  v,
		UpperBound: v,
		LowerBound: v,
	}
}

// projectedPoint floors the point and the lower bound at zero. A floored
// interval is shifted up rather than clipped, so its width stays 2*halfWidth
// and never shrinks as the horizon grows.
func projectedPoint(date time.Time, point, halfWidth float64) ForecastPoint {
	projected := floorZero(point)
	lower := floorZero(projected - halfWidth)
	return ForecastPoint{
		Date:       date,
		Label:      date.Format(labelLayout),
		Projected:  projected,
		UpperBound: lower + 2*halfWidth,
		LowerBound: lower,
	}
}

func trendDirection(trend, level float64) TrendDirection {
	trendPercent := safeRatio(trend, level, 0) * 100
	switch {
	case trendPercent > trendThresholdPercent:
		return TrendUp
	case trendPercent < -trendThresholdPercent:
		return TrendDown
	default:
		return TrendStable
	}
}
