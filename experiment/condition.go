package experiment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Condition is one step of a sweep, e.g. "300K" of a temperature sweep or
// "0.5CalGas_0.5Ar" of a calibration.
type Condition struct {
	Kind  Kind
	Step  int
	Label string
}

var (
	leadingNumber = regexp.MustCompile(`[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)
	calGasFrac    = regexp.MustCompile(`(?i)([\d.]*\d+)CalGas`)
)

// Value is the numeric setpoint of the condition: the first number in its
// label for numeric kinds. ok is false for composition kinds and for labels
// without a number.
func (c Condition) Value() (float64, bool) {
	if !c.Kind.Numeric() {
		return 0, false
	}

	m := leadingNumber.FindString(c.Label)
	if m == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// Display is the label used as the row index of summary tables. Numeric
// kinds print their value. Composition sweeps stack one gas per line and drop
// the unit.
func (c Condition) Display() string {
	switch c.Kind {
	case CompSweep:
		s := strings.ReplaceAll(c.Label, "_", "\n")
		return strings.ReplaceAll(s, c.Kind.Unit(), "")
	case Calibration:
		return c.Label
	}

	if v, ok := c.Value(); ok {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	return c.Label
}

// CalGasFraction is the fraction of calibration gas in the condition's
// mixture, read from a label such as "0.25CalGas_0.75Ar".
func (c Condition) CalGasFraction() (float64, error) {
	m := calGasFrac.FindStringSubmatch(c.Label)
	if m == nil {
		return 0, fmt.Errorf("condition %q does not name a CalGas fraction", c.Label)
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("condition %q: %w", c.Label, err)
	}

	return v, nil
}

func (c Condition) String() string {
	return fmt.Sprintf("%d %s", c.Step+1, c.Label)
}
