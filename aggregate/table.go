package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/chromquant/calibration"
)

// Table is a condition-indexed summary with one column per compound.
type Table struct {
	IndexName string
	Index     []string
	Columns   []string
	Rows      [][]float64
}

// Summary holds the mean and standard deviation tables written to an
// archive.
type Summary struct {
	Mean *Table
	Std  *Table
}

// Column returns one compound's values in index order.
func (t *Table) Column(compound string) ([]float64, error) {
	for j, c := range t.Columns {
		if c != compound {
			continue
		}

		out := make([]float64, len(t.Rows))
		for i, row := range t.Rows {
			out[i] = row[j]
		}
		return out, nil
	}

	return nil, calibration.MissingCompoundError{Compound: compound}
}

// Equal reports whether two tables hold identical labels and values, with
// NaN equal to NaN.
func (t *Table) Equal(o *Table) bool {
	if t.IndexName != o.IndexName || len(t.Index) != len(o.Index) || len(t.Columns) != len(o.Columns) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Index {
		if t.Index[i] != o.Index[i] {
			return false
		}
	}
	for j := range t.Columns {
		if t.Columns[j] != o.Columns[j] {
			return false
		}
	}
	for i := range t.Rows {
		if len(t.Rows[i]) != len(o.Rows[i]) {
			return false
		}
		for j := range t.Rows[i] {
			a, b := t.Rows[i][j], o.Rows[i][j]
			if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
				return false
			}
		}
	}

	return true
}

// Summarize builds the mean and standard deviation tables of a result, one
// row per condition, indexed by the condition's display label.
func (r *Result) Summarize() Summary {
	mean := &Table{IndexName: r.Kind.IndexName(), Columns: append([]string(nil), r.Compounds...)}
	std := &Table{IndexName: r.Kind.IndexName(), Columns: append([]string(nil), r.Compounds...)}

	for _, c := range r.Conditions {
		label := c.Condition.Display()
		mean.Index = append(mean.Index, label)
		std.Index = append(std.Index, label)
		mean.Rows = append(mean.Rows, append([]float64(nil), c.Mean...))
		std.Rows = append(std.Rows, append([]float64(nil), c.Std...))
	}

	return Summary{Mean: mean, Std: std}
}

// FormatFloat writes the shortest representation that parses back to v.
// Missing values are written as empty fields.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}

	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}

	return strconv.ParseFloat(s, 64)
}

// WriteCSV writes the header "<index name>,<compound...>" and one row per
// condition.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(append([]string{t.IndexName}, t.Columns...)); err != nil {
		return err
	}

	record := make([]string, len(t.Columns)+1)
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(t.Columns))
		}
		record[0] = t.Index[i]
		for j, v := range row {
			record[j+1] = FormatFloat(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadTable parses a table written by WriteCSV.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading table header: %w", err)
	}
	if len(header) < 1 {
		return nil, fmt.Errorf("table header is empty")
	}

	out := &Table{IndexName: header[0], Columns: append([]string(nil), header[1:]...)}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		row := make([]float64, len(record)-1)
		for j, field := range record[1:] {
			if row[j], err = parseFloat(field); err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, out.Columns[j], err)
			}
		}
		out.Index = append(out.Index, record[0])
		out.Rows = append(out.Rows, row)
	}

	return out, nil
}
