package forecast

import (
	"math"
	"sort"
)

// epsilon below which a variance or level is treated as zero.
const epsilon = 1e-9

func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdDev divides by n, not n-1.
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := calculateMean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

// linearRegression fits values[t] = slope*t + intercept by ordinary least squares
// over the zero-based index t.
func linearRegression(values []float64) (slope float64, intercept float64) {
	n := len(values)
	switch n {
	case 0:
		return 0, 0
	case 1:
		return 0, values[0]
	}

	var sumX, sumY, sumXX, sumXY float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / fn
	}
	slope = (fn*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / fn
	return slope, intercept
}

// autocorrelation returns the mean-centred autocorrelation coefficient at lag,
// clamped to [-1, 1]. A flat series has no correlation.
func autocorrelation(values []float64, lag int) float64 {
	n := len(values)
	if lag <= 0 || n <= lag {
		return 0
	}
	mean := calculateMean(values)

	var numerator, denominator float64
	for i := 0; i < n; i++ {
		d := values[i] - mean
		denominator += d * d
		if i+lag < n {
			numerator += d * (values[i+lag] - mean)
		}
	}
	if denominator < epsilon {
		return 0
	}

	corr := numerator / denominator
	if corr > 1 {
		return 1
	}
	if corr < -1 {
		return -1
	}
	return corr
}

// safeRatio returns num/den, or fallback when den is zero.
func safeRatio(num, den, fallback float64) float64 {
	if den == 0 {
		return fallback
	}
	return num / den
}

func floorZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func positiveMod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// sortedCopy returns the observations in chronological order without touching the input.
func sortedCopy(observations []Observation) []Observation {
	out := make([]Observation, len(observations))
	copy(out, observations)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func valuesOf(observations []Observation) []float64 {
	values := make([]float64, len(observations))
	for i, o := range observations {
		values[i] = o.Value
	}
	return values
}
