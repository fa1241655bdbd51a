package forecast

import "math"

// DefaultAnomalyThreshold is the number of standard deviations used when the caller passes none.
const DefaultAnomalyThreshold = 2.0

// DetectAnomalies flags observations whose distance from the series mean exceeds
// thresholdStdDevs population standard deviations. A series with (near) zero
// variance has no anomalies. Results keep the input order.
func DetectAnomalies(observations []Observation, thresholdStdDevs float64) []Anomaly {
	anomalies := make([]Anomaly, 0)
	if len(observations) == 0 {
		return anomalies
	}
	if thresholdStdDevs <= 0 {
		thresholdStdDevs = DefaultAnomalyThreshold
	}

	values := valuesOf(observations)
	mean := calculateMean(values)
	stdDev := populationStdDev(values)
	if stdDev < epsilon {
		return anomalies
	}

	for _, o := range observations {
		diff := o.Value - mean
		if math.Abs(diff) <= thresholdStdDevs*stdDev {
			continue
		}
		direction := "above"
		if diff < 0 {
			direction = "below"
		}
		anomalies = append(anomalies, Anomaly{
			Timestamp: o.Timestamp,
			Value:     o.Value,
			Deviation: math.Abs(diff) / stdDev,
			Direction: direction,
		})
	}
	return anomalies
}
