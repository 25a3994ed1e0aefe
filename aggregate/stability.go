package aggregate

import (
	"math"
	"sort"

	"github.com/carbocation/chromquant/experiment"
)

// DefaultSwitchToHours is the elapsed time, in hours, above which
// TimePassed reports hours instead of minutes.
const DefaultSwitchToHours = 2.0

// Summary returns the tables a result is archived with. Sweeps get one row
// per condition. A stability test has a single condition and is instead
// shown over time, see StabilityView. start is the experiment start in epoch
// seconds, or NaN to use the earliest trace.
func (r *Result) Summary(start float64) Summary {
	switch r.Kind {
	case experiment.StabilityTest:
		return r.StabilityView(start)
	default:
		return r.Summarize()
	}
}

// StabilityView lists every replicate of the first condition as its own row,
// indexed by minutes elapsed since start (NaN for the earliest trace) in
// chronological order. The standard deviation of a single trace is zero.
func (r *Result) StabilityView(start float64) Summary {
	mean := &Table{IndexName: experiment.StabilityTest.IndexName(), Columns: append([]string(nil), r.Compounds...)}
	std := &Table{IndexName: mean.IndexName, Columns: append([]string(nil), r.Compounds...)}
	if r.Tensor.Conditions == 0 {
		return Summary{Mean: mean, Std: std}
	}

	type point struct {
		minutes   float64
		replicate int
	}

	var points []point
	earliest := math.Inf(1)
	for k := 0; k < r.Tensor.Replicates; k++ {
		ts := r.Tensor.At(0, 0, k)
		if math.IsNaN(ts) {
			continue
		}
		earliest = math.Min(earliest, ts)
		points = append(points, point{minutes: ts, replicate: k})
	}
	if math.IsNaN(start) {
		start = earliest
	}
	for i := range points {
		points[i].minutes = (points[i].minutes - start) / 60
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].minutes < points[j].minutes })

	for _, p := range points {
		row := make([]float64, len(r.Compounds))
		for j := range row {
			row[j] = r.Tensor.At(0, j+1, p.replicate)
		}
		label := FormatFloat(p.minutes)
		mean.Index = append(mean.Index, label)
		mean.Rows = append(mean.Rows, row)
		std.Index = append(std.Index, label)
		std.Rows = append(std.Rows, make([]float64, len(r.Compounds)))
	}

	return Summary{Mean: mean, Std: std}
}

// TimePassed returns the time elapsed since start (NaN for the earliest
// timestamp) for every timestamp in the tensor, condition by condition. The
// result is in hours if the longest elapsed time exceeds switchToHours hours,
// otherwise in minutes; unit is "hr" or "min" accordingly.
func TimePassed(t *Tensor, start, switchToHours float64) (elapsed []float64, unit string) {
	stamps := t.Timestamps()
	if len(stamps) == 0 {
		return nil, "min"
	}

	if math.IsNaN(start) {
		start = stamps[0]
		for _, s := range stamps {
			start = math.Min(start, s)
		}
	}

	longest := 0.0
	elapsed = make([]float64, len(stamps))
	for i, s := range stamps {
		elapsed[i] = s - start
		longest = math.Max(longest, elapsed[i])
	}

	divisor, unit := 60.0, "min"
	if longest > switchToHours*3600 {
		divisor, unit = 3600, "hr"
	}
	for i := range elapsed {
		elapsed[i] /= divisor
	}

	return elapsed, unit
}
