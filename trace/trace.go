// Package trace decodes raw gas chromatograph exports (PeakSimple .ASC files)
// into time/intensity series.
package trace

import (
	"fmt"
	"time"
)

// Trace is one chromatogram. Time is in minutes, Intensity in volts (raw
// instrument millivolt counts divided by 1000). Corrected, when set, holds a
// baseline-corrected copy of Intensity of the same length.
type Trace struct {
	Path         string
	Acquired     time.Time
	SampleRateHz int
	DeclaredSize int

	Time      []float64
	Intensity []float64
	Corrected []float64

	Warnings []error
}

// Len is the number of samples.
func (t *Trace) Len() int {
	return len(t.Intensity)
}

// Timestamp is the acquisition time in seconds since the epoch.
func (t *Trace) Timestamp() float64 {
	return float64(t.Acquired.Unix())
}

// Signal returns the corrected intensity if present, otherwise the raw one.
func (t *Trace) Signal() []float64 {
	if t.Corrected != nil {
		return t.Corrected
	}

	return t.Intensity
}

// SetCorrected attaches a baseline-corrected signal.
func (t *Trace) SetCorrected(corrected []float64) error {
	if len(corrected) != len(t.Intensity) {
		return fmt.Errorf("%s: corrected signal has %d points but the trace has %d", t.Path, len(corrected), len(t.Intensity))
	}
	t.Corrected = corrected

	return nil
}

// TimeAxis builds t_i = i / rate / 60 minutes for i in [0, n).
func TimeAxis(n, sampleRateHz int) []float64 {
	out := make([]float64, n)
	if sampleRateHz <= 0 {
		return out
	}

	step := 1.0 / float64(sampleRateHz) / 60.0
	for i := range out {
		out[i] = float64(i) * step
	}

	return out
}

// PointCountWarning is attached when the number of data rows disagrees with
// the declared SIZE header. All parsed rows are kept.
type PointCountWarning struct {
	Path     string
	Declared int
	Parsed   int
}

func (w PointCountWarning) Error() string {
	return fmt.Sprintf("%s: header declares %d points but %d data rows were read", w.Path, w.Declared, w.Parsed)
}
