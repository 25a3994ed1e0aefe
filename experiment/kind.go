// Package experiment describes how a batch of chromatograms was collected:
// which variable was swept, the conditions of the sweep, and which trace file
// belongs to which replicate of which condition.
package experiment

import (
	"fmt"
	"strings"
)

// Kind is the type of sweep an experiment performed.
type Kind int

const (
	TempSweep Kind = iota
	PowerSweep
	CompSweep
	FlowSweep
	Calibration
	StabilityTest
)

type kindInfo struct {
	name        string
	independent string
	unit        string
}

var kinds = [...]kindInfo{
	TempSweep:     {"temp_sweep", "temp", "K"},
	PowerSweep:    {"power_sweep", "power", "mW"},
	CompSweep:     {"comp_sweep", "gas_comp", "frac"},
	FlowSweep:     {"flow_sweep", "tot_flow", "sccm"},
	Calibration:   {"calibration", "gas_comp", "ppm"},
	StabilityTest: {"stability_test", "temp", "min"},
}

// ParseKind accepts the snake_case experiment names, case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, info := range kinds {
		if info.name == s {
			return Kind(k), nil
		}
	}

	names := make([]string, len(kinds))
	for k, info := range kinds {
		names[k] = info.name
	}

	return 0, fmt.Errorf("unknown experiment type %q, expected one of %s", s, strings.Join(names, ", "))
}

func (k Kind) valid() bool {
	return k >= 0 && int(k) < len(kinds)
}

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kinds[k].name
}

// IndependentVariable is the quantity the experiment swept.
func (k Kind) IndependentVariable() string {
	if !k.valid() {
		return ""
	}
	return kinds[k].independent
}

// Unit of the swept quantity as it appears in condition labels.
func (k Kind) Unit() string {
	if !k.valid() {
		return ""
	}
	return kinds[k].unit
}

// IndexName labels the condition column of summary tables, e.g. "temp [K]".
// Stability tests are indexed by elapsed time.
func (k Kind) IndexName() string {
	if k == StabilityTest {
		return "time [min]"
	}

	return fmt.Sprintf("%s [%s]", k.IndependentVariable(), k.Unit())
}

// Numeric reports whether condition labels of this kind carry a single
// number. Composition labels name several gases and are kept as text.
func (k Kind) Numeric() bool {
	switch k {
	case CompSweep, Calibration:
		return false
	default:
		return true
	}
}
