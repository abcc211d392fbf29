package metrics

import (
	"github.com/montanaflynn/stats"
)

// #region variance
// PopulationVariance computes the population variance of values.
// Returns ok=false for an empty slice instead of an error; callers turn
// that into a "not enough data" verdict.
func PopulationVariance(values []float64) (float64, bool) {
	v, err := stats.PopulationVariance(values)
	if err != nil {
		return 0, false
	}
	return v, true
}

// #endregion variance

// #region mean-std
// Mean computes the arithmetic mean of values. ok=false when empty.
func Mean(values []float64) (float64, bool) {
	m, err := stats.Mean(values)
	if err != nil {
		return 0, false
	}
	return m, true
}

// StdDev computes the population standard deviation of values.
// ok=false when empty.
func StdDev(values []float64) (float64, bool) {
	s, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return 0, false
	}
	return s, true
}

// #endregion mean-std

// #region percent-changes
// PercentChanges computes consecutive relative changes
// (v[i]-v[i-1])/v[i-1]*100, skipping pairs whose denominator is <= 0.
// The result may therefore be shorter than len(values)-1, or empty.
func PercentChanges(values []float64) []float64 {
	changes := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 {
			changes = append(changes, (values[i]-values[i-1])/values[i-1]*100)
		}
	}
	return changes
}

// #endregion percent-changes
