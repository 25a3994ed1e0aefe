package metrics

import (
	"io"
	"regexp"
	"strconv"

	"github.com/carbocation/chromquant/aggregate"
	"github.com/gocarina/gocsv"
)

// DefaultElement is balanced when none is given: carbon.
const DefaultElement = "c"

// Balance is the total amount of one element across all compounds of a
// condition, in ppm of atoms.
type Balance struct {
	Condition string  `csv:"condition"`
	Element   string  `csv:"element"`
	Total     float64 `csv:"total"`
	Error     float64 `csv:"error"`
}

// ElementCount reads how many atoms of element a compound ID names, matching
// case-insensitively: "C2H4" has 2 carbons, "CH4" has 1, "H2" has none.
func ElementCount(compound, element string) int {
	quoted := regexp.QuoteMeta(element)

	if m := regexp.MustCompile(`(?i)` + quoted + `(\d+)`).FindStringSubmatch(compound); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n
		}
	}

	if regexp.MustCompile(`(?i)` + quoted).MatchString(compound) {
		return 1
	}

	return 0
}

// MoleBalance sums count*mean for every condition. The error is the
// matching sum of count*std.
func MoleBalance(s aggregate.Summary, element string) []Balance {
	counts := make([]float64, len(s.Mean.Columns))
	for j, c := range s.Mean.Columns {
		counts[j] = float64(ElementCount(c, element))
	}

	out := make([]Balance, len(s.Mean.Rows))
	for i, row := range s.Mean.Rows {
		b := Balance{Condition: s.Mean.Index[i], Element: element}
		for j, v := range row {
			b.Total += counts[j] * v
			if i < len(s.Std.Rows) {
				b.Error += counts[j] * s.Std.Rows[i][j]
			}
		}
		out[i] = b
	}

	return out
}

// Undetected lists compounds whose mean concentration is zero in every
// condition.
func Undetected(s aggregate.Summary) []string {
	var out []string
	for j, c := range s.Mean.Columns {
		var sum float64
		for _, row := range s.Mean.Rows {
			sum += row[j]
		}
		if sum == 0 {
			out = append(out, c)
		}
	}

	return out
}

// WriteBalance writes mole balances as CSV with a header.
func WriteBalance(w io.Writer, rows []Balance) error {
	return gocsv.Marshal(&rows, w)
}
