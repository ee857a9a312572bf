package kdtree

import "math"

// euclidean returns the L2 distance between a and b, which must have the same length.
func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// closer orders neighbours by distance, then by insertion order.
func closer(d1 float64, s1 uint64, d2 float64, s2 uint64) bool {
	if d1 != d2 {
		return d1 < d2
	}
	return s1 < s2
}
