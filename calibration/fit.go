package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ForcedZeroError is the standard deviation given to the (0, 0) point added
// when a fit is forced through the origin. It is small enough that the
// intercept is pinned to zero.
const ForcedZeroError = 1e-19

// CalPoint is one calibration condition for one compound: the ppm the
// calibration gas should have produced and the mean and standard deviation of
// the raw counts measured for it.
type CalPoint struct {
	ExpectedPPM float64
	Counts      float64
	CountsErr   float64
}

// FitResult is a calibration line in the orientation Entry uses,
// ppm = Slope*counts + Intercept.
type FitResult struct {
	Slope        float64
	SlopeErr     float64
	Intercept    float64
	InterceptErr float64
	RSquared     float64
	Points       int
}

// FitError reports a compound whose calibration could not be fitted. Its
// previous entry is kept.
type FitError struct {
	Compound string
	Err      error
}

func (e FitError) Error() string {
	return fmt.Sprintf("fitting %s: %v", e.Compound, e.Err)
}

func (e FitError) Unwrap() error {
	return e.Err
}

var errTooFewPoints = errors.New("a weighted fit with error estimates needs more than two points")

// FitLine fits counts = m*ppm + b, weighting every point by 1/CountsErr^2,
// and returns the inverted line ppm = counts/m - b/m with first-order
// propagated errors. When forceZero is set an extra (0, 0) point with
// ForcedZeroError is included. The parameter covariance is scaled by the
// reduced chi-square of the residuals.
func FitLine(points []CalPoint, forceZero bool) (FitResult, error) {
	var x, y, w []float64
	if forceZero {
		x = append(x, 0)
		y = append(y, 0)
		w = append(w, 1/(ForcedZeroError*ForcedZeroError))
	}

	for _, p := range points {
		if math.IsNaN(p.ExpectedPPM) || math.IsNaN(p.Counts) {
			continue
		}
		if !(p.CountsErr > 0) || math.IsInf(p.CountsErr, 0) {
			return FitResult{}, fmt.Errorf("point at %v ppm has counts error %v; weights need a positive, finite error (two or more replicates per condition)", p.ExpectedPPM, p.CountsErr)
		}
		x = append(x, p.ExpectedPPM)
		y = append(y, p.Counts)
		w = append(w, 1/(p.CountsErr*p.CountsErr))
	}

	n := len(x)
	if n <= 2 {
		return FitResult{Points: n}, errTooFewPoints
	}

	b, m := stat.LinearRegression(x, y, w, false)
	if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return FitResult{Points: n}, fmt.Errorf("degenerate slope %v", m)
	}

	// Normal matrix X'WX for the design [x 1].
	var sxx, sx, s, chi2 float64
	for i := range x {
		sxx += w[i] * x[i] * x[i]
		sx += w[i] * x[i]
		s += w[i]
		r := y[i] - (m*x[i] + b)
		chi2 += w[i] * r * r
	}

	var cov mat.Dense
	if err := cov.Inverse(mat.NewDense(2, 2, []float64{sxx, sx, sx, s})); err != nil {
		return FitResult{Points: n}, fmt.Errorf("inverting normal matrix: %w", err)
	}
	cov.Scale(chi2/float64(n-2), &cov)

	errM := math.Sqrt(cov.At(0, 0))
	errB := math.Sqrt(cov.At(1, 1))

	out := FitResult{
		Slope:        1 / m,
		SlopeErr:     errM / (m * m),
		Intercept:    -b / m,
		InterceptErr: math.Sqrt(math.Pow(errB/m, 2) + math.Pow(b*errM/(m*m), 2)),
		RSquared:     stat.RSquared(x, y, w, b, m),
		Points:       n,
	}

	return out, nil
}

// Fit derives a new table from calibration runs collected with t.Unit().
// counts and countsErr are indexed [condition][compound], compounds in
// table order; fractions holds the calibration gas fraction of each
// condition, so that the expected concentration is PPM*fraction. Compounds
// that cannot be fitted keep their current entry and are reported in the
// returned errors.
func (t *Table) Fit(fractions []float64, counts, countsErr [][]float64, forceZero bool) (*Table, []error) {
	if len(counts) != len(fractions) || len(countsErr) != len(fractions) {
		return nil, []error{fmt.Errorf("got %d fractions, %d count rows and %d error rows", len(fractions), len(counts), len(countsErr))}
	}

	entries := t.Entries()
	var errs []error

	for j := range entries {
		points := make([]CalPoint, 0, len(fractions))
		for i, frac := range fractions {
			if len(counts[i]) != len(entries) || len(countsErr[i]) != len(entries) {
				return nil, []error{fmt.Errorf("condition %d has %d compounds, expected %d", i, len(counts[i]), len(entries))}
			}
			points = append(points, CalPoint{
				ExpectedPPM: entries[j].PPM * frac,
				Counts:      counts[i][j],
				CountsErr:   countsErr[i][j],
			})
		}

		res, err := FitLine(points, forceZero)
		if err != nil {
			errs = append(errs, FitError{Compound: entries[j].Compound, Err: err})
			continue
		}

		entries[j].Slope, entries[j].SlopeErr = res.Slope, res.SlopeErr
		entries[j].Intercept, entries[j].InterceptErr = res.Intercept, res.InterceptErr
	}

	out, err := NewTable(entries)
	if err != nil {
		return nil, append(errs, err)
	}

	return out, errs
}
