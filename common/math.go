package common

import "math"

// KPHPerMPS converts m/s to km/h (and back, dividing).
const KPHPerMPS = 3.6

// https://stackoverflow.com/questions/18390266/how-can-we-truncate-float64-type-to-a-particular-precision
func Round(num float64) int {
	return int(num + math.Copysign(0.5, num))
}

func DecimalToFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return float64(Round(num*output)) / output
}

// VectorDistance returns the Euclidean distance between two 3-vectors.
// The movement classifier uses it to measure how far a raw accelerometer
// reading sits from the at-rest baseline.
func VectorDistance(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// VectorMean returns the component-wise mean of a set of 3-vectors.
// Returns the zero vector for an empty set.
func VectorMean(vs [][3]float64) [3]float64 {
	if len(vs) == 0 {
		return [3]float64{}
	}
	var sum [3]float64
	for _, v := range vs {
		sum[0] += v[0]
		sum[1] += v[1]
		sum[2] += v[2]
	}
	n := float64(len(vs))
	return [3]float64{sum[0] / n, sum[1] / n, sum[2] / n}
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
