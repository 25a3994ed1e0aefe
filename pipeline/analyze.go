package pipeline

import (
	"context"
	"fmt"
	"math"

	"cloud.google.com/go/storage"
	"github.com/carbocation/chromquant/baseline"
	"github.com/carbocation/chromquant/calibration"
	"github.com/carbocation/chromquant/peak"
	"github.com/carbocation/chromquant/trace"
	"github.com/carbocation/runningvariance"
)

// FileError is a failure confined to one trace file. The rest of the batch
// carries on without it.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Noise summarises the analyzed signal outside every peak's bounds.
type Noise struct {
	N    int
	Mean float64
	Std  float64
	Min  float64
	Max  float64
}

// FileResult is what one trace produced. Counts are parallel to Peaks.
type FileResult struct {
	Path     string
	Trace    *trace.Trace
	Peaks    []peak.Peak
	Counts   []int64
	Record   *calibration.Record
	Noise    Noise
	Warnings []error
}

// NoiseSummary computes running statistics over the samples of signal not
// covered by any peak.
func NoiseSummary(signal []float64, peaks []peak.Peak) Noise {
	covered := make([]bool, len(signal))
	for _, p := range peaks {
		for i := p.Left; i <= p.Right && i < len(signal); i++ {
			if i >= 0 {
				covered[i] = true
			}
		}
	}

	rv := runningvariance.NewRunningStat()
	out := Noise{Min: math.Inf(1), Max: math.Inf(-1)}
	for i, v := range signal {
		if covered[i] {
			continue
		}
		rv.Push(v)
		out.N++
		out.Min = math.Min(out.Min, v)
		out.Max = math.Max(out.Max, v)
	}
	if out.N == 0 {
		return Noise{}
	}
	out.Mean = rv.Mean()
	out.Std = rv.StandardDeviation()

	return out
}

// AnalyzeTrace runs the per-file chain on an already parsed trace: optional
// smoothing, optional baseline correction, peak detection, integration and
// conversion to concentrations. The trace's Corrected signal is replaced.
func AnalyzeTrace(t *trace.Trace, table *calibration.Table, cfg Config) (*FileResult, error) {
	signal := t.Intensity
	if cfg.LowPassHz > 0 {
		smoothed, err := baseline.LowPass(signal, cfg.LowPassHz, float64(t.SampleRateHz))
		if err != nil {
			return nil, err
		}
		signal = smoothed
	}
	if cfg.BaselineCorrect {
		signal = baseline.TopHat(signal, cfg.StructFraction)
	}
	if cfg.LowPassHz > 0 || cfg.BaselineCorrect {
		if err := t.SetCorrected(signal); err != nil {
			return nil, err
		}
	} else {
		t.Corrected = nil
	}

	peaks := peak.Detect(t.Signal(), cfg.PeakOptions())
	counts := peak.IntegrateAll(t.Time, t.Signal(), peaks)

	pc := make([]calibration.PeakCount, len(peaks))
	for i, p := range peaks {
		pc[i] = calibration.PeakCount{ApexMinutes: t.Time[p.Apex], Counts: counts[i]}
	}
	rec := calibration.Convert(t.Path, t.Timestamp(), pc, table)

	out := &FileResult{
		Path:   t.Path,
		Trace:  t,
		Peaks:  peaks,
		Counts: counts,
		Record: rec,
		Noise:  NoiseSummary(t.Signal(), peaks),
	}
	out.Warnings = append(out.Warnings, t.Warnings...)
	out.Warnings = append(out.Warnings, rec.Warnings...)

	return out, nil
}

// AnalyzeFile opens, parses and analyzes one trace. Every failure comes back
// as a *FileError.
func AnalyzeFile(ctx context.Context, path string, client *storage.Client, table *calibration.Table, cfg Config) (*FileResult, error) {
	opts, err := cfg.TraceOptions()
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	t, err := trace.Open(ctx, path, client, opts)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	res, err := AnalyzeTrace(t, table, cfg)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	return res, nil
}
