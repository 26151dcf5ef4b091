package model

import "math"

// Sign returns -1, 0 or +1 according to the sign of v. NaN maps to 0.
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// Clamp limits v to [lo, hi]. NaN maps to 0.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
