// Package stats provides the descriptive statistics shared by the browser
// benchmark and the network benchmark. All functions work on milliseconds
// expressed as float64 and report absence explicitly instead of returning
// zero, since zero is a legal measurement.
package stats

import (
	"math"
	"sort"
)

// Median returns the median of values. For even-length input it averages the
// two middle elements. The second return value is false on empty input.
func Median(values []float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if n%2 == 1 {
		return sorted[n/2], true
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2, true
}

// Percentile returns the nearest-rank percentile of values: the element at
// index ceil(p*n)-1 of the ascending sort, clamped to [0, n-1]. No linear
// interpolation is performed, so small samples step between observed values.
func Percentile(values []float64, p float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	index := int(math.Ceil(p*float64(n))) - 1
	if index < 0 {
		index = 0
	}

	if index > n-1 {
		index = n - 1
	}

	return sorted[index], true
}

// Mean returns the arithmetic mean of values, false on empty input.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values)), true
}

// StdDev returns the sample standard deviation (divisor n-1). It requires at
// least two values and reports false otherwise.
func StdDev(values []float64) (float64, bool) {
	n := len(values)
	if n < 2 {
		return 0, false
	}

	mean, _ := Mean(values)

	var sum float64

	for _, v := range values {
		d := v - mean
		sum += d * d
	}

	return math.Sqrt(sum / float64(n-1)), true
}

// Improvement returns how much faster cdn is than origin, in percent.
// Positive means the CDN is faster. It reports false when origin is zero.
func Improvement(origin, cdn float64) (float64, bool) {
	if origin == 0 {
		return 0, false
	}

	return (origin - cdn) / origin * 100, true
}
