package peak

import (
	"math"

	"gonum.org/v1/gonum/integrate"
)

// SentinelCounts replaces an area that rounds to zero or below, so that
// downstream conversions never see a zero count.
const SentinelCounts int64 = 1

// Integrate returns the trapezoidal area of signal over the inclusive range
// [p.Left, p.Right], with timeMinutes converted to seconds, rounded half to
// even. Areas that round to zero or below, or are not finite, come back as
// SentinelCounts.
func Integrate(timeMinutes, signal []float64, p Peak) int64 {
	n := len(signal)
	if len(timeMinutes) < n {
		n = len(timeMinutes)
	}

	left, right := clamp(p.Left, 0, n-1), clamp(p.Right, 0, n-1)
	if n < 2 || left >= right {
		return SentinelCounts
	}

	seconds := make([]float64, 0, right-left+1)
	for _, t := range timeMinutes[left : right+1] {
		seconds = append(seconds, 60*t)
	}

	area := math.RoundToEven(integrate.Trapezoidal(seconds, signal[left:right+1]))
	if math.IsNaN(area) || math.IsInf(area, 0) || area <= 0 {
		return SentinelCounts
	}

	return int64(area)
}

// IntegrateAll integrates every peak, preserving order.
func IntegrateAll(timeMinutes, signal []float64, peaks []Peak) []int64 {
	out := make([]int64, len(peaks))
	for i, p := range peaks {
		out[i] = Integrate(timeMinutes, signal, p)
	}

	return out
}
