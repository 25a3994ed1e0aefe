package calibration

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

const calCSV = `Chem ID,slope,intercept,start,end,ppm
CO2,2,1,1.0,2.0,1000
C2H4, 0.5,0,2.5,3.5,500
CH4,1,0,3.5,4.0,250
`

func mustLoad(t *testing.T, src string) *Table {
	t.Helper()
	table, err := Load(strings.NewReader(src), 0)
	if err != nil {
		t.Fatal(err)
	}

	return table
}

func TestLoad(t *testing.T) {
	table := mustLoad(t, calCSV)

	compounds := table.Compounds()
	expected := []string{"CO2", "C2H4", "CH4"}
	if len(compounds) != len(expected) {
		t.Fatalf("got compounds %v, expected %v", compounds, expected)
	}
	for i := range expected {
		if compounds[i] != expected[i] {
			t.Errorf("compound %d is %q, expected %q", i, compounds[i], expected[i])
		}
	}

	e, err := table.Entry("C2H4")
	if err != nil {
		t.Fatal(err)
	}
	if e.Slope != 0.5 || e.Start != 2.5 || e.End != 3.5 || e.PPM != 500 {
		t.Errorf("unexpected entry %+v", e)
	}

	_, err = table.Entry("H2O")
	var missing MissingCompoundError
	if !errors.As(err, &missing) || missing.Compound != "H2O" {
		t.Errorf("expected a MissingCompoundError, got %v", err)
	}
}

func TestLoadTabDelimited(t *testing.T) {
	src := strings.ReplaceAll(strings.ReplaceAll(calCSV, ", ", ","), ",", "\t")
	table := mustLoad(t, src)
	if table.Len() != 3 {
		t.Errorf("got %d entries, expected 3", table.Len())
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"missing column": "Chem ID,slope,intercept,start\nCO2,1,0,1\n",
		"duplicate":      "Chem ID,slope,intercept,start,end\nCO2,1,0,1,2\nCO2,1,0,3,4\n",
		"empty id":       "Chem ID,slope,intercept,start,end\n,1,0,1,2\n",
		"bad number":     "Chem ID,slope,intercept,start,end\nCO2,one,0,1,2\n",
	}

	for name, src := range cases {
		if _, err := Load(strings.NewReader(src), ','); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	table := mustLoad(t, calCSV)

	var buf bytes.Buffer
	if err := table.Write(&buf); err != nil {
		t.Fatal(err)
	}

	reloaded := mustLoad(t, buf.String())
	orig, again := table.Entries(), reloaded.Entries()
	if len(orig) != len(again) {
		t.Fatalf("got %d entries back, expected %d", len(again), len(orig))
	}
	for i := range orig {
		if orig[i] != again[i] {
			t.Errorf("entry %d: got %+v, expected %+v", i, again[i], orig[i])
		}
	}
}

func TestMatch(t *testing.T) {
	table := mustLoad(t, calCSV)

	cases := []struct {
		minutes float64
		index   int
		ok      bool
	}{
		{1.5, 0, true},
		{1.0, -1, false}, // window edges are exclusive
		{2.0, -1, false},
		{3.0, 1, true},
		{3.5, -1, false},
		{3.75, 2, true},
		{9, -1, false},
	}

	for _, c := range cases {
		i, ok := table.Match(c.minutes)
		if i != c.index || ok != c.ok {
			t.Errorf("Match(%v): got (%d, %v), expected (%d, %v)", c.minutes, i, ok, c.index, c.ok)
		}
	}
}

func TestConvert(t *testing.T) {
	table := mustLoad(t, calCSV)

	peaks := []PeakCount{
		{ApexMinutes: 0.5, Counts: 40},  // backflush, expected
		{ApexMinutes: 1.5, Counts: 500}, // CO2
		{ApexMinutes: 3.0, Counts: 300}, // C2H4
	}
	rec := Convert("a.ASC", 1234, peaks, table)

	if c, _ := rec.Concentration("CO2"); c != 1001 {
		t.Errorf("CO2 concentration %v, expected 1001", c)
	}
	if c, _ := rec.Concentration("C2H4"); c != 150 {
		t.Errorf("C2H4 concentration %v, expected 150", c)
	}
	if c, ok := rec.Concentration("CH4"); c != 0 || !ok {
		t.Errorf("CH4 concentration %v, expected 0", c)
	}
	if rec.UnmatchedPeaks != 1 {
		t.Errorf("got %d unmatched peaks, expected 1", rec.UnmatchedPeaks)
	}
	if len(rec.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", rec.Warnings)
	}
	if rec.Timestamp != 1234 {
		t.Errorf("timestamp %v", rec.Timestamp)
	}
}

func TestConvertWarnings(t *testing.T) {
	table := mustLoad(t, calCSV)

	rec := Convert("b.ASC", 0, []PeakCount{{ApexMinutes: 0.2, Counts: 5}, {ApexMinutes: 8, Counts: 9}}, table)
	if rec.UnmatchedPeaks != 2 {
		t.Fatalf("got %d unmatched peaks, expected 2", rec.UnmatchedPeaks)
	}

	var noMatch NoMatchWarning
	var zero ZeroSignalWarning
	var sawNoMatch, sawZero bool
	for _, w := range rec.Warnings {
		if errors.As(w, &noMatch) {
			sawNoMatch = noMatch.Unmatched == 2 && noMatch.Path == "b.ASC"
		}
		if errors.As(w, &zero) {
			sawZero = true
		}
	}
	if !sawNoMatch || !sawZero {
		t.Errorf("expected unmatched and zero-signal warnings, got %v", rec.Warnings)
	}
}

func TestConvertLaterPeakWins(t *testing.T) {
	table := mustLoad(t, calCSV)

	rec := Convert("c.ASC", 0, []PeakCount{{ApexMinutes: 1.2, Counts: 10}, {ApexMinutes: 1.8, Counts: 20}}, table)
	if c, _ := rec.Concentration("CO2"); c != 41 {
		t.Errorf("CO2 concentration %v, expected 41 from the second peak", c)
	}
}

func TestUnit(t *testing.T) {
	unit := mustLoad(t, calCSV).Unit()
	for _, e := range unit.Entries() {
		if e.Slope != 1 || e.Intercept != 0 {
			t.Errorf("%s: unit entry has slope %v intercept %v", e.Compound, e.Slope, e.Intercept)
		}
	}

	rec := Convert("d.ASC", 0, []PeakCount{{ApexMinutes: 1.5, Counts: 777}}, unit)
	if c, _ := rec.Concentration("CO2"); c != 777 {
		t.Errorf("unit calibration gave %v, expected raw counts", c)
	}
}

func TestFitLine(t *testing.T) {
	points := []CalPoint{
		{ExpectedPPM: 0, Counts: 1, CountsErr: 1},
		{ExpectedPPM: 1, Counts: 3, CountsErr: 1},
		{ExpectedPPM: 2, Counts: 5, CountsErr: 1},
		{ExpectedPPM: 3, Counts: 8, CountsErr: 1},
	}

	res, err := FitLine(points, false)
	if err != nil {
		t.Fatal(err)
	}

	// counts = 2.3*ppm + 0.8, chi2 = 0.3 over 2 degrees of freedom.
	m, b := 2.3, 0.8
	errM, errB := math.Sqrt(0.2*0.15), math.Sqrt(0.7*0.15)

	expected := FitResult{
		Slope:        1 / m,
		SlopeErr:     errM / (m * m),
		Intercept:    -b / m,
		InterceptErr: math.Sqrt(math.Pow(errB/m, 2) + math.Pow(b*errM/(m*m), 2)),
	}

	check := func(name string, got, want float64) {
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s: got %v, expected %v", name, got, want)
		}
	}
	check("slope", res.Slope, expected.Slope)
	check("slope error", res.SlopeErr, expected.SlopeErr)
	check("intercept", res.Intercept, expected.Intercept)
	check("intercept error", res.InterceptErr, expected.InterceptErr)

	if res.Points != 4 {
		t.Errorf("got %d points, expected 4", res.Points)
	}
	if res.RSquared <= 0.95 || res.RSquared > 1 {
		t.Errorf("unexpected R^2 %v", res.RSquared)
	}
}

func TestFitLineForcedZero(t *testing.T) {
	points := []CalPoint{
		{ExpectedPPM: 100, Counts: 210, CountsErr: 5},
		{ExpectedPPM: 200, Counts: 390, CountsErr: 5},
		{ExpectedPPM: 400, Counts: 810, CountsErr: 5},
	}

	res, err := FitLine(points, true)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Intercept) > 1e-6 {
		t.Errorf("forced fit has intercept %v", res.Intercept)
	}
	if math.Abs(res.Slope-0.5) > 0.01 {
		t.Errorf("forced fit has slope %v, expected about 0.5", res.Slope)
	}

	if _, err := FitLine(points[:2], false); err == nil {
		t.Errorf("expected an error for two points")
	}
	if _, err := FitLine([]CalPoint{{1, 1, 0}, {2, 2, 1}, {3, 3, 1}}, false); err == nil {
		t.Errorf("expected an error for a zero counts error")
	}
}

func TestTableFit(t *testing.T) {
	table := mustLoad(t, calCSV)
	fractions := []float64{0.25, 0.5, 1}

	var counts, countsErr [][]float64
	noise := []float64{1, -1, 0.5}
	for i, frac := range fractions {
		row := make([]float64, table.Len())
		errRow := make([]float64, table.Len())
		for j, e := range table.Entries() {
			row[j] = 4*e.PPM*frac + noise[i]
			errRow[j] = 2
		}
		// CH4 was only measured once per condition.
		errRow[2] = 0
		counts = append(counts, row)
		countsErr = append(countsErr, errRow)
	}

	fitted, errs := table.Fit(fractions, counts, countsErr, true)
	if fitted == nil {
		t.Fatalf("fit failed: %v", errs)
	}
	if len(errs) != 1 {
		t.Fatalf("got errors %v, expected one for CH4", errs)
	}
	var fe FitError
	if !errors.As(errs[0], &fe) || fe.Compound != "CH4" {
		t.Errorf("unexpected error %v", errs[0])
	}

	co2, _ := fitted.Entry("CO2")
	if math.Abs(co2.Slope-0.25) > 1e-3 {
		t.Errorf("CO2 slope %v, expected about 0.25", co2.Slope)
	}
	if co2.SlopeErr <= 0 {
		t.Errorf("CO2 slope error %v, expected a positive value", co2.SlopeErr)
	}

	ch4, _ := fitted.Entry("CH4")
	if ch4.Slope != 1 || ch4.Intercept != 0 {
		t.Errorf("CH4 entry should be unchanged, got %+v", ch4)
	}
}
