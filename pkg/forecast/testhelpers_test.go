package forecast

import "time"

var seriesStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// monthly builds observations one month apart starting at seriesStart.
func monthly(values ...float64) []Observation {
	out := make([]Observation, len(values))
	for i, v := range values {
		out[i] = Observation{Timestamp: seriesStart.AddDate(0, i, 0), Value: v}
	}
	return out
}
