package analysis

import "math"

// SettlingTime returns the first time after which every sample stays within
// tol (relative) of the final value. It returns -1 for an empty series.
func SettlingTime(times, values []float64, tol float64) float64 {
	if len(values) == 0 || len(times) != len(values) {
		return -1
	}
	final := values[len(values)-1]
	band := tol * math.Abs(final)
	settled := len(values) - 1
	for i := len(values) - 1; i >= 0; i-- {
		if math.Abs(values[i]-final) > band {
			break
		}
		settled = i
	}
	return times[settled]
}
