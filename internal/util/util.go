// Package util provides small numeric helpers shared by the aim-correction packages.
package util

import "math"

// Finite returns v, or 0 when v is NaN or infinite.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Clamp limits v to [-limit, limit]. NaN clamps to 0; a negative limit is
// treated as its magnitude.
func Clamp(v, limit float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	limit = math.Abs(limit)
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// Sign returns -1 for negative values and 1 otherwise.
func Sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
