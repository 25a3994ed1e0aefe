// Package baseline removes slowly varying background from chromatogram
// signals.
package baseline

import (
	"math"
)

// DefaultStructFraction is the structuring element width as a fraction of the
// signal length. Peaks narrower than this survive the top-hat untouched.
const DefaultStructFraction = 0.1

// StructWidth returns round(fraction * n), rounding half to even, and never
// less than 1.
func StructWidth(n int, fraction float64) int {
	w := int(math.RoundToEven(float64(n) * fraction))
	if w < 1 {
		return 1
	}

	return w
}

// TopHat returns signal minus its morphological opening with a flat
// structuring element of StructWidth(len(signal), fraction) points. The
// input is not modified.
func TopHat(signal []float64, fraction float64) []float64 {
	out := make([]float64, len(signal))
	if len(signal) == 0 {
		return out
	}

	opened := Opening(signal, StructWidth(len(signal), fraction))
	for i, v := range signal {
		out[i] = v - opened[i]
	}

	return out
}

// Opening is a grey erosion followed by a grey dilation, both with a flat
// window of width points. Samples beyond either end are mirrored
// (d c b a | a b c d | d c b a). For even widths the erosion window reaches
// one point further left than right, and the dilation window the reverse, so
// that the pair is centred.
func Opening(signal []float64, width int) []float64 {
	if width <= 1 {
		out := make([]float64, len(signal))
		copy(out, signal)
		return out
	}

	half := width / 2
	lo, hi := -half, width-1-half

	eroded := slide(signal, lo, hi, func(kept, incoming float64) bool { return kept < incoming })

	return slide(eroded, -hi, -lo, func(kept, incoming float64) bool { return kept > incoming })
}

// slide computes, for every i, the extreme of signal over [i+lo, i+hi] with
// mirrored boundaries. keep reports whether an earlier value still dominates
// a later one (strict less-than for a minimum, greater-than for a maximum).
func slide(signal []float64, lo, hi int, keep func(kept, incoming float64) bool) []float64 {
	n := len(signal)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	type entry struct {
		pos int
		val float64
	}
	queue := make([]entry, 0, hi-lo+1)
	head := 0

	for j := lo; j < n+hi; j++ {
		v := signal[reflect(j, n)]
		for len(queue) > head && !keep(queue[len(queue)-1].val, v) {
			queue = queue[:len(queue)-1]
		}
		queue = append(queue, entry{pos: j, val: v})

		i := j - hi
		if i < 0 {
			continue
		}
		for queue[head].pos < i+lo {
			head++
		}
		out[i] = queue[head].val

		if head > 1024 && head > len(queue)/2 {
			queue = append(queue[:0], queue[head:]...)
			head = 0
		}
	}

	return out
}

// reflect maps a position outside [0, n) back into it by half-sample
// symmetric mirroring, repeating as often as needed.
func reflect(i, n int) int {
	period := 2 * n
	m := i % period
	if m < 0 {
		m += period
	}
	if m < n {
		return m
	}

	return period - 1 - m
}
