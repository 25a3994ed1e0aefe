// Package peak locates chromatogram peaks, bounds them and integrates their
// area.
package peak

import "fmt"

const (
	// DefaultProminence is the minimum topographic prominence, in volts, for a
	// local maximum to count as a peak.
	DefaultProminence = 4.0

	// DefaultTolerancePercent is the relative change, in percent, below which
	// the boundary search treats the signal as having returned to baseline.
	// It is halved internally (see SearchOffset).
	DefaultTolerancePercent = 0.5

	// DefaultWindow is the number of points averaged ahead of the search
	// position during the boundary search.
	DefaultWindow = 10
)

// Peak holds indices into the trace it was detected in.
// 0 <= Left <= Apex <= Right < len(trace) always holds.
type Peak struct {
	Apex  int
	Left  int
	Right int
}

func (p Peak) String() string {
	return fmt.Sprintf("%d [%d, %d]", p.Apex, p.Left, p.Right)
}

type Options struct {
	Prominence       float64
	TolerancePercent float64
	Window           int
}

func DefaultOptions() Options {
	return Options{
		Prominence:       DefaultProminence,
		TolerancePercent: DefaultTolerancePercent,
		Window:           DefaultWindow,
	}
}

// Detect finds every apex in signal and bounds it. Peaks come back in
// ascending apex order. A signal without peaks yields an empty slice.
func Detect(signal []float64, opts Options) []Peak {
	apexes := Apexes(signal, opts.Prominence)

	out := make([]Peak, 0, len(apexes))
	for _, apex := range apexes {
		left, right := Bounds(signal, apex, opts.TolerancePercent, opts.Window)
		out = append(out, Peak{Apex: apex, Left: left, Right: right})
	}

	return out
}
