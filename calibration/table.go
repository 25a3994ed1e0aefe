// Package calibration maps detected peaks to compounds by elution time and
// converts their integrated counts to concentrations.
package calibration

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/chromquant"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// Entry is one row of a calibration table. Concentration in ppm is
// Slope*counts + Intercept for a peak whose apex falls strictly inside
// (Start, End), in minutes. PPM is the compound's concentration in the
// calibration gas and is only used when fitting a new table.
type Entry struct {
	Compound     string  `csv:"Chem ID"`
	Slope        float64 `csv:"slope"`
	SlopeErr     float64 `csv:"err_slope"`
	Intercept    float64 `csv:"intercept"`
	InterceptErr float64 `csv:"err_intercept"`
	Start        float64 `csv:"start"`
	End          float64 `csv:"end"`
	PPM          float64 `csv:"ppm"`
}

// Contains reports whether an apex at minutes falls strictly inside the
// entry's elution window.
func (e Entry) Contains(minutes float64) bool {
	return e.Start < minutes && minutes < e.End
}

// Concentration converts integrated counts to ppm.
func (e Entry) Concentration(counts float64) float64 {
	return e.Slope*counts + e.Intercept
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

var requiredColumns = []string{"Chem ID", "slope", "intercept", "start", "end"}

// Table is an ordered set of entries with unique compound IDs. A Table is not
// modified after construction and may be shared between goroutines.
type Table struct {
	entries []Entry
	index   map[string]int
}

// MissingCompoundError reports a compound that a caller required but the
// table does not define.
type MissingCompoundError struct {
	Compound string
}

func (e MissingCompoundError) Error() string {
	return fmt.Sprintf("compound %q is not in the calibration table", e.Compound)
}

// NewTable copies entries into a Table. Compound IDs must be unique and
// non-empty.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}

	for _, e := range entries {
		e.Compound = strings.TrimSpace(e.Compound)
		if e.Compound == "" {
			return nil, fmt.Errorf("calibration entry %d has no compound ID", len(t.entries)+1)
		}
		if _, exists := t.index[e.Compound]; exists {
			return nil, fmt.Errorf("compound %q appears more than once in the calibration table", e.Compound)
		}
		t.index[e.Compound] = len(t.entries)
		t.entries = append(t.entries, e)
	}

	return t, nil
}

// Load parses a delimited calibration table. If delim is 0 it is detected
// from the header.
func Load(r io.Reader, delim rune) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return load(data, delim)
}

// LoadFromPath reads a calibration table from a local path or a gs:// URL.
func LoadFromPath(ctx context.Context, path string, client *storage.Client) (*Table, error) {
	data, err := chromquant.ReadAll(ctx, path, client)
	if err != nil {
		return nil, pfx.Err(err)
	}

	t, err := load(data, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

func load(data []byte, delim rune) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if delim == 0 {
		delim = chromquant.DetermineDelimiterBytes(data)
	}

	newReader := func() *csv.Reader {
		cr := csv.NewReader(bytes.NewReader(data))
		cr.Comma = delim
		cr.TrimLeadingSpace = true
		return cr
	}

	header, err := newReader().Read()
	if err != nil {
		return nil, fmt.Errorf("reading calibration header: %w", err)
	}
	present := make(map[string]struct{}, len(header))
	for _, col := range header {
		present[strings.TrimSpace(col)] = struct{}{}
	}
	for _, col := range requiredColumns {
		if _, ok := present[col]; !ok {
			return nil, fmt.Errorf("calibration table is missing the %q column", col)
		}
	}

	var entries []Entry
	if err := gocsv.UnmarshalCSV(newReader(), &entries); err != nil {
		return nil, fmt.Errorf("parsing calibration table: %w", err)
	}

	return NewTable(entries)
}

// Len is the number of compounds.
func (t *Table) Len() int {
	return len(t.entries)
}

// Compounds lists compound IDs in table order.
func (t *Table) Compounds() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Compound
	}

	return out
}

// Entries returns a copy of the table rows.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Entry looks up one compound.
func (t *Table) Entry(compound string) (Entry, error) {
	i, ok := t.index[compound]
	if !ok {
		return Entry{}, MissingCompoundError{Compound: compound}
	}

	return t.entries[i], nil
}

// Index is the compound's position in table order.
func (t *Table) Index(compound string) (int, error) {
	i, ok := t.index[compound]
	if !ok {
		return -1, MissingCompoundError{Compound: compound}
	}

	return i, nil
}

// Match returns the position of the first entry whose elution window
// strictly contains minutes. Windows are expected not to overlap; if they
// do, table order decides.
func (t *Table) Match(minutes float64) (int, bool) {
	for i, e := range t.entries {
		if e.Contains(minutes) {
			return i, true
		}
	}

	return -1, false
}

// Unit returns a copy of the table with every slope set to 1 and every
// intercept to 0, so that converted values are raw counts. Such tables are
// used to collect the data a new calibration is fitted to.
func (t *Table) Unit() *Table {
	entries := t.Entries()
	for i := range entries {
		entries[i].Slope, entries[i].SlopeErr = 1, 0
		entries[i].Intercept, entries[i].InterceptErr = 0, 0
	}

	out, _ := NewTable(entries)

	return out
}

// Write emits the table as comma-delimited text with a header.
func (t *Table) Write(w io.Writer) error {
	entries := t.Entries()
	return gocsv.Marshal(&entries, w)
}
