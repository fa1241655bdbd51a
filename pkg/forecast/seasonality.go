package forecast

const (
	// DefaultSeasonalPeriod is one year of monthly observations.
	DefaultSeasonalPeriod = 12
	// SeasonalityThreshold is the autocorrelation above which seasonality is considered present.
	SeasonalityThreshold = 0.5
)

// DetectSeasonality measures the autocorrelation of values at lag = period and
// returns per-phase factors (the mean of each phase over the overall mean).
// With fewer than two full cycles it returns the neutral result.
func DetectSeasonality(values []float64, period int) SeasonalityResult {
	if period <= 0 {
		period = DefaultSeasonalPeriod
	}
	if len(values) < 2*period {
		return neutralSeasonality(period)
	}

	overall := calculateMean(values)
	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range values {
		sums[i%period] += v
		counts[i%period]++
	}

	factors := make([]float64, period)
	for i := range factors {
		factors[i] = safeRatio(sums[i]/float64(counts[i]), overall, 1)
	}

	return SeasonalityResult{
		Factors:  factors,
		Strength: autocorrelation(values, period),
	}
}

func neutralSeasonality(period int) SeasonalityResult {
	factors := make([]float64, period)
	for i := range factors {
		factors[i] = 1
	}
	return SeasonalityResult{Factors: factors, Strength: 0}
}

// initialSeasonalFactors seeds the forecaster from the first cycle:
// factor[i] = x[i] / mean(first period values).
func initialSeasonalFactors(values []float64, period int) []float64 {
	factors := make([]float64, period)
	if len(values) < period {
		for i := range factors {
			factors[i] = 1
		}
		return factors
	}

	avg := calculateMean(values[:period])
	for i := range factors {
		f := safeRatio(values[i], avg, 1)
		if f == 0 {
			f = 1
		}
		factors[i] = f
	}
	return factors
}
