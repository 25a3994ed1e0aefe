package peak

import "math"

// Bounds returns the integration limits around apex. The left limit comes
// from searching the signal reversed from the apex towards index 0, and the
// right limit from searching forward from the apex. A search that runs into
// non-finite values stops at the corresponding edge of the signal.
func Bounds(signal []float64, apex int, tolPercent float64, window int) (left, right int) {
	n := len(signal)
	if n == 0 {
		return 0, 0
	}
	apex = clamp(apex, 0, n-1)

	reversed := make([]float64, apex+1)
	for i := range reversed {
		reversed[i] = signal[apex-i]
	}

	left = 0
	if offset, ok := SearchOffset(reversed, tolPercent, window); ok && offset >= 0 {
		left = clamp(apex-offset, 0, apex)
	}

	right = n - 1
	if offset, ok := SearchOffset(signal[apex:], tolPercent, window); ok && offset >= 0 {
		right = clamp(apex+offset, apex, n-1)
	}

	return left, right
}

// SearchOffset walks outward along d, which starts at an apex, and returns
// how many steps it took for the signal to settle. The walk stops when the
// current point differs from the mean of the window of points ahead of it by
// no more than tolPercent/200 of its own value, when that windowed mean stops
// falling (a co-eluting neighbour), or when d runs out.
//
// The windowed mean always divides by window, so means taken near the end of
// d, where fewer points remain, are pulled toward zero.
//
// ok is false if d is empty or a windowed mean was not finite.
func SearchOffset(d []float64, tolPercent float64, window int) (offset int, ok bool) {
	if len(d) == 0 {
		return 0, false
	}
	if window < 1 {
		window = 1
	}

	tol := tolPercent / 200.0

	sig := d[0]
	edge := windowMean(d, 0, window)
	delta := sig - edge
	oldEdge := 2 * edge

	i := 1
	for math.Abs(delta) > sig*tol && edge < oldEdge && i < len(d) {
		oldEdge = edge
		sig = d[i]
		edge = windowMean(d, i, window)
		delta = sig - edge
		i++
	}

	if math.IsNaN(edge) || math.IsInf(edge, 0) {
		return i - 1, false
	}

	return i - 1, true
}

func windowMean(d []float64, start, window int) float64 {
	end := start + window
	if end > len(d) {
		end = len(d)
	}

	var sum float64
	for _, v := range d[start:end] {
		sum += v
	}

	return sum / float64(window)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
