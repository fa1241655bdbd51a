package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateMean(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "empty slice", values: []float64{}, expected: 0},
		{name: "single value", values: []float64{5}, expected: 5},
		{name: "mixed positive and negative", values: []float64{-10, 0, 10}, expected: 0},
		{name: "decimal values", values: []float64{1.5, 2.5, 3.5}, expected: 2.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, calculateMean(tc.values), 1e-10)
		})
	}
}

func TestPopulationStdDev(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "empty slice", values: []float64{}, expected: 0},
		{name: "single value", values: []float64{5}, expected: 0},
		{name: "textbook example", values: []float64{2, 4, 4, 4, 5, 5, 7, 9}, expected: 2},
		{name: "two points", values: []float64{0, 100}, expected: 50},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, populationStdDev(tc.values), 1e-10)
		})
	}
}

func TestLinearRegression(t *testing.T) {
	tests := []struct {
		name              string
		values            []float64
		expectedSlope     float64
		expectedIntercept float64
	}{
		{name: "empty", values: nil, expectedSlope: 0, expectedIntercept: 0},
		{name: "single point", values: []float64{42}, expectedSlope: 0, expectedIntercept: 42},
		{name: "perfect line", values: []float64{1, 3, 5, 7}, expectedSlope: 2, expectedIntercept: 1},
		{name: "flat", values: []float64{4, 4, 4}, expectedSlope: 0, expectedIntercept: 4},
		{name: "noisy decline", values: []float64{10, 8, 9, 5}, expectedSlope: -1.4, expectedIntercept: 10.1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			slope, intercept := linearRegression(tc.values)
			assert.InDelta(t, tc.expectedSlope, slope, 1e-10)
			assert.InDelta(t, tc.expectedIntercept, intercept, 1e-10)
		})
	}
}

func TestAutocorrelation(t *testing.T) {
	t.Run("lag out of range", func(t *testing.T) {
		assert.Equal(t, 0.0, autocorrelation([]float64{1, 2, 3}, 3))
		assert.Equal(t, 0.0, autocorrelation([]float64{1, 2, 3}, 0))
	})

	t.Run("flat series", func(t *testing.T) {
		assert.Equal(t, 0.0, autocorrelation([]float64{7, 7, 7, 7}, 2))
	})

	t.Run("alternating series is anti-correlated at lag one", func(t *testing.T) {
		corr := autocorrelation([]float64{1, -1, 1, -1, 1, -1}, 1)
		assert.Less(t, corr, 0.0)
		assert.GreaterOrEqual(t, corr, -1.0)
	})
}

func TestPositiveMod(t *testing.T) {
	assert.Equal(t, 1, positiveMod(13, 12))
	assert.Equal(t, 11, positiveMod(-1, 12))
	assert.Equal(t, 0, positiveMod(-12, 12))
}

func TestSortedCopy_DoesNotMutateInput(t *testing.T) {
	obs := monthly(1, 2, 3)
	obs[0], obs[2] = obs[2], obs[0]
	original := append([]Observation(nil), obs...)

	sorted := sortedCopy(obs)

	assert.Equal(t, original, obs)
	assert.True(t, sorted[0].Timestamp.Before(sorted[1].Timestamp))
	assert.True(t, sorted[1].Timestamp.Before(sorted[2].Timestamp))
}
