package forecast

// CalculateTrend fits value ≈ slope·t + intercept where t is the chronological
// index of each observation. Raw timestamps are ignored so the slope is in
// "per period" units regardless of the sampling interval.
func CalculateTrend(observations []Observation) TrendResult {
	values := valuesOf(sortedCopy(observations))
	return trendOf(values)
}

func trendOf(values []float64) TrendResult {
	slope, intercept := linearRegression(values)
	if len(values) < 2 {
		return TrendResult{Slope: 0, Intercept: intercept, GrowthRate: 0}
	}
	return TrendResult{
		Slope:      slope,
		Intercept:  intercept,
		GrowthRate: safeRatio(slope, calculateMean(values), 0) * 100,
	}
}
