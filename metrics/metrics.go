// Package metrics derives conversion and selectivity, with propagated
// uncertainty, from aggregated concentrations.
package metrics

import (
	"fmt"
	"io"
	"math"

	"github.com/carbocation/chromquant/aggregate"
	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats"
)

const (
	TableFile   = "metrics.csv"
	BalanceFile = "mole_balance.csv"
)

// Derived is one condition's metrics, in percent.
type Derived struct {
	Condition   string  `csv:"condition"`
	Conversion  float64 `csv:"conversion"`
	Selectivity float64 `csv:"selectivity"`
	XError      float64 `csv:"x_error"`
	SError      float64 `csv:"s_error"`
}

// DegenerateMetricWarning records a metric that was not finite and was
// replaced with zero.
type DegenerateMetricWarning struct {
	Condition string
	Metric    string
	Value     float64
}

func (w DegenerateMetricWarning) Error() string {
	return fmt.Sprintf("condition %s: %s evaluated to %v and was set to 0", w.Condition, w.Metric, w.Value)
}

// ZeroIfDegenerate returns v unchanged if it is finite. Otherwise it returns
// 0 together with a warning naming the condition and metric. Every
// substitution of a non-finite metric goes through here.
func ZeroIfDegenerate(condition, metric string, v float64) (float64, *DegenerateMetricWarning) {
	if !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v, nil
	}

	return 0, &DegenerateMetricWarning{Condition: condition, Metric: metric, Value: v}
}

// Calculate derives metrics for one condition from its per-compound means
// and standard deviations. reactant and target index into both slices.
//
//	C   = sum(mean)
//	X   = 1 - mean[reactant]/C
//	S   = mean[target] / (C*X), zeroed and reported when X is 0
//	sC  = sqrt(sum(std^2))
//	sX  = sqrt((std[reactant]/C)^2 + (sC*mean[reactant]/C^2)^2)
//	sS  = sqrt((std[target]/(C*X))^2 + (sC*mean[target]/(C^2*X))^2 + (sX*mean[target]/(C*X^2))^2)
//
// Values are returned in percent. Non-finite results are set to zero and
// reported.
func Calculate(condition string, mean, std []float64, reactant, target int) (Derived, []DegenerateMetricWarning) {
	var warnings []DegenerateMetricWarning
	zero := func(metric string, v float64) float64 {
		v, w := ZeroIfDegenerate(condition, metric, v)
		if w != nil {
			warnings = append(warnings, *w)
		}
		return v
	}

	total := floats.Sum(mean)
	sTotal := floats.Norm(std, 2)
	cr, ct := mean[reactant], mean[target]
	sr, st := std[reactant], std[target]

	x := zero("conversion", 1-cr/total)

	// No conversion leaves S undefined; it is zeroed and reported.
	s := zero("selectivity", ct/(total*x))

	sx := zero("conversion error", math.Sqrt(
		math.Pow(sr/total, 2)+
			math.Pow(sTotal*cr/(total*total), 2)))

	ss := zero("selectivity error", math.Sqrt(
		math.Pow(st/(total*x), 2)+
			math.Pow(sTotal*ct/(total*total*x), 2)+
			math.Pow(sx*ct/(total*x*x), 2)))

	return Derived{
		Condition:   condition,
		Conversion:  100 * x,
		Selectivity: 100 * s,
		XError:      100 * sx,
		SError:      100 * ss,
	}, warnings
}

// CalculateSummary derives metrics for every row of an archived summary.
// reactant and target must be columns of the summary.
func CalculateSummary(s aggregate.Summary, reactant, target string) ([]Derived, []DegenerateMetricWarning, error) {
	ri, err := columnIndex(s.Mean, reactant)
	if err != nil {
		return nil, nil, err
	}
	ti, err := columnIndex(s.Mean, target)
	if err != nil {
		return nil, nil, err
	}
	if len(s.Std.Rows) != len(s.Mean.Rows) {
		return nil, nil, fmt.Errorf("mean table has %d rows but std table has %d", len(s.Mean.Rows), len(s.Std.Rows))
	}

	out := make([]Derived, len(s.Mean.Rows))
	var warnings []DegenerateMetricWarning
	for i := range s.Mean.Rows {
		d, w := Calculate(s.Mean.Index[i], s.Mean.Rows[i], s.Std.Rows[i], ri, ti)
		out[i] = d
		warnings = append(warnings, w...)
	}

	return out, warnings, nil
}

func columnIndex(t *aggregate.Table, compound string) (int, error) {
	for j, c := range t.Columns {
		if c == compound {
			return j, nil
		}
	}

	// Reuse the table's own error for a missing compound.
	_, err := t.Column(compound)
	return -1, err
}

// WriteTable writes derived metrics as CSV with a header.
func WriteTable(w io.Writer, rows []Derived) error {
	return gocsv.Marshal(&rows, w)
}
