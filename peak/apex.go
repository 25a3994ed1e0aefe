package peak

// Apexes returns the indices of local maxima whose prominence is at least
// minProminence, in ascending order. A flat-topped maximum is reported at the
// middle of its plateau (rounding down). The first and last samples are never
// apexes.
func Apexes(signal []float64, minProminence float64) []int {
	var out []int
	for _, candidate := range localMaxima(signal) {
		if Prominence(signal, candidate) >= minProminence {
			out = append(out, candidate)
		}
	}

	return out
}

func localMaxima(x []float64) []int {
	var out []int

	last := len(x) - 1
	for i := 1; i < last; i++ {
		if !(x[i-1] < x[i]) {
			continue
		}

		ahead := i + 1
		for ahead < last && x[ahead] == x[i] {
			ahead++
		}

		if x[ahead] < x[i] {
			out = append(out, (i+ahead-1)/2)
			i = ahead
		}
	}

	return out
}

// Prominence is the height of x[apex] above the higher of the two lowest
// points reachable on either side without climbing above x[apex].
func Prominence(x []float64, apex int) float64 {
	height := x[apex]

	leftMin := height
	for i := apex; i >= 0 && x[i] <= height; i-- {
		if x[i] < leftMin {
			leftMin = x[i]
		}
	}

	rightMin := height
	for i := apex; i < len(x) && x[i] <= height; i++ {
		if x[i] < rightMin {
			rightMin = x[i]
		}
	}

	if leftMin > rightMin {
		return height - leftMin
	}

	return height - rightMin
}
