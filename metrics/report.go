package metrics

import (
	"bytes"
	"fmt"

	"github.com/carbocation/chromquant/aggregate"
	"github.com/carbocation/pfx"
)

// Report is everything derived from one archive summary.
type Report struct {
	Derived  []Derived
	Balance  []Balance
	Warnings []DegenerateMetricWarning
}

// NewReport computes the mole balance of element and, when both reactant and
// target are named, conversion and selectivity.
func NewReport(s aggregate.Summary, reactant, target, element string) (*Report, error) {
	if element == "" {
		element = DefaultElement
	}

	out := &Report{Balance: MoleBalance(s, element)}
	if reactant == "" && target == "" {
		return out, nil
	}
	if reactant == "" || target == "" {
		return nil, fmt.Errorf("conversion and selectivity need both a reactant and a target (got %q and %q)", reactant, target)
	}

	derived, warnings, err := CalculateSummary(s, reactant, target)
	if err != nil {
		return nil, err
	}
	out.Derived = derived
	out.Warnings = warnings

	return out, nil
}

// Files renders the report as archive files. The metrics table is only
// included if metrics were computed.
func (r *Report) Files() ([]aggregate.File, error) {
	var out []aggregate.File
	if r.Derived != nil {
		var buf bytes.Buffer
		if err := WriteTable(&buf, r.Derived); err != nil {
			return nil, pfx.Err(err)
		}
		out = append(out, aggregate.File{Name: TableFile, Data: buf.Bytes()})
	}

	var buf bytes.Buffer
	if err := WriteBalance(&buf, r.Balance); err != nil {
		return nil, pfx.Err(err)
	}

	return append(out, aggregate.File{Name: BalanceFile, Data: buf.Bytes()}), nil
}

// WriteFiles stores the report in the archive directory dir.
func (r *Report) WriteFiles(dir string) error {
	files, err := r.Files()
	if err != nil {
		return err
	}

	return aggregate.WriteFiles(dir, files...)
}
