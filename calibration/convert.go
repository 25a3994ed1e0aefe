package calibration

import (
	"fmt"
	"strings"
)

// ExpectedUnmatchedPeaks is the number of peaks every run produces that no
// calibration window covers (the backflush peak). Only counts above this are
// reported.
const ExpectedUnmatchedPeaks = 1

// PeakCount is one integrated peak of a trace.
type PeakCount struct {
	ApexMinutes float64
	Counts      int64
}

// Record holds the concentrations derived from one trace, in table order.
// Compounds without a matching peak stay at zero.
type Record struct {
	Path           string
	Timestamp      float64
	Compounds      []string
	Concentrations []float64
	UnmatchedPeaks int
	Warnings       []error
}

// Concentration looks up one compound.
func (r *Record) Concentration(compound string) (float64, bool) {
	for i, c := range r.Compounds {
		if c == compound {
			return r.Concentrations[i], true
		}
	}

	return 0, false
}

// NoMatchWarning reports more peaks outside every calibration window than
// expected.
type NoMatchWarning struct {
	Path        string
	Unmatched   int
	ApexMinutes []float64
}

func (w NoMatchWarning) Error() string {
	times := make([]string, len(w.ApexMinutes))
	for i, t := range w.ApexMinutes {
		times[i] = fmt.Sprintf("%.3f", t)
	}

	return fmt.Sprintf("%s: %d unknown peaks detected (apex minutes: %s)", w.Path, w.Unmatched, strings.Join(times, ", "))
}

// ZeroSignalWarning reports a trace in which no compound was found.
type ZeroSignalWarning struct {
	Path string
}

func (w ZeroSignalWarning) Error() string {
	return fmt.Sprintf("%s: zero molecules detected", w.Path)
}

// Convert assigns each peak to the first calibration entry whose window
// contains its apex time and converts its counts. If more than one peak
// matches the same compound, the later peak wins.
func Convert(path string, timestamp float64, peaks []PeakCount, table *Table) *Record {
	out := &Record{
		Path:           path,
		Timestamp:      timestamp,
		Compounds:      table.Compounds(),
		Concentrations: make([]float64, table.Len()),
	}

	var unmatched []float64
	for _, p := range peaks {
		i, ok := table.Match(p.ApexMinutes)
		if !ok {
			unmatched = append(unmatched, p.ApexMinutes)
			continue
		}
		out.Concentrations[i] = table.entries[i].Concentration(float64(p.Counts))
	}
	out.UnmatchedPeaks = len(unmatched)

	if out.UnmatchedPeaks > ExpectedUnmatchedPeaks {
		out.Warnings = append(out.Warnings, NoMatchWarning{Path: path, Unmatched: out.UnmatchedPeaks, ApexMinutes: unmatched})
	}

	allZero := true
	for _, c := range out.Concentrations {
		if c != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		out.Warnings = append(out.Warnings, ZeroSignalWarning{Path: path})
	}

	return out
}
