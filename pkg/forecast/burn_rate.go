package forecast

import (
	"github.com/cinar/indicator/v2/helper"
	indicatortrend "github.com/cinar/indicator/v2/trend"
)

// burnMovingAveragePeriod is the trailing window reported as BurnPrediction.MovingAverage.
const burnMovingAveragePeriod = 3

// PredictBurnRate extrapolates the linear trend of an expense series months
// periods ahead. Projections are floored at zero. The trend is classified with
// the same ±1% band the forecaster uses, applied to slope over mean burn.
func PredictBurnRate(observations []Observation, months int) BurnPrediction {
	values := valuesOf(sortedCopy(observations))
	trend := trendOf(values)

	if months < 0 {
		months = 0
	}
	predictions := make([]float64, months)
	n := len(values)
	for i := range predictions {
		predictions[i] = floorZero(trend.Slope*float64(n+i) + trend.Intercept)
	}

	average := calculateMean(values)
	return BurnPrediction{
		Predictions:   predictions,
		AverageBurn:   average,
		Trend:         classifyBurn(trend.Slope, average),
		MovingAverage: trailingAverage(values, burnMovingAveragePeriod, average),
	}
}

func classifyBurn(slope, average float64) BurnTrend {
	ratio := safeRatio(slope, average, 0) * 100
	switch {
	case ratio > trendThresholdPercent:
		return BurnIncreasing
	case ratio < -trendThresholdPercent:
		return BurnDecreasing
	default:
		return BurnStable
	}
}

// trailingAverage returns the last simple moving average of values, or fallback
// when the series is shorter than the window.
func trailingAverage(values []float64, period int, fallback float64) float64 {
	if len(values) < period {
		return fallback
	}
	sma := indicatortrend.NewSmaWithPeriod[float64](period)
	result := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
	if len(result) == 0 {
		return fallback
	}
	return result[len(result)-1]
}
