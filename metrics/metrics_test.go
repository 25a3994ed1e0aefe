package metrics

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/carbocation/chromquant/aggregate"
)

func TestCalculate(t *testing.T) {
	// reactant, target, other
	mean := []float64{40, 30, 30}
	std := []float64{0, 0, 0}

	d, warnings := Calculate("300", mean, std, 0, 1)
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings %v", warnings)
	}
	if math.Abs(d.Conversion-60) > 1e-9 || math.Abs(d.Selectivity-50) > 1e-9 {
		t.Errorf("got X=%v S=%v, expected X=60 S=50", d.Conversion, d.Selectivity)
	}
	if d.XError != 0 || d.SError != 0 {
		t.Errorf("errors should be zero without spread, got %v %v", d.XError, d.SError)
	}
}

func TestCalculateErrorPropagation(t *testing.T) {
	mean := []float64{40, 30, 30}
	std := []float64{2, 3, 6}

	d, _ := Calculate("x", mean, std, 0, 1)

	total, sTotal := 100.0, math.Sqrt(4+9+36)
	x := 0.6
	sx := math.Sqrt(math.Pow(2/total, 2) + math.Pow(sTotal*40/(total*total), 2))
	ss := math.Sqrt(math.Pow(3/(total*x), 2) + math.Pow(sTotal*30/(total*total*x), 2) + math.Pow(sx*30/(total*x*x), 2))

	if math.Abs(d.XError-100*sx) > 1e-9 {
		t.Errorf("X error %v, expected %v", d.XError, 100*sx)
	}
	if math.Abs(d.SError-100*ss) > 1e-9 {
		t.Errorf("S error %v, expected %v", d.SError, 100*ss)
	}
}

func TestCalculateNoConversion(t *testing.T) {
	d, warnings := Calculate("350", []float64{100, 0, 0}, []float64{1, 1, 1}, 0, 1)
	if d.Conversion != 0 || d.Selectivity != 0 {
		t.Errorf("got X=%v S=%v, expected both zero", d.Conversion, d.Selectivity)
	}
	if math.IsNaN(d.SError) || math.IsInf(d.SError, 0) || d.SError != 0 {
		t.Errorf("selectivity error %v, expected 0", d.SError)
	}
	if math.IsNaN(d.XError) || d.XError <= 0 {
		t.Errorf("conversion error %v should stay finite and positive", d.XError)
	}

	for _, metric := range []string{"selectivity", "selectivity error"} {
		found := false
		for _, w := range warnings {
			if w.Metric == metric && w.Condition == "350" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a warning for the %s, got %v", metric, warnings)
		}
	}
}

func TestCalculateNothingDetected(t *testing.T) {
	d, warnings := Calculate("empty", []float64{0, 0}, []float64{0, 0}, 0, 1)
	if d != (Derived{Condition: "empty"}) {
		t.Errorf("got %+v, expected all zero", d)
	}
	if len(warnings) == 0 {
		t.Errorf("expected warnings for an empty condition")
	}
}

func TestZeroIfDegenerate(t *testing.T) {
	if v, w := ZeroIfDegenerate("c", "m", 1.5); v != 1.5 || w != nil {
		t.Errorf("finite value changed: %v %v", v, w)
	}
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		v, w := ZeroIfDegenerate("c", "m", bad)
		if v != 0 || w == nil || w.Condition != "c" || w.Metric != "m" {
			t.Errorf("%v: got %v %v", bad, v, w)
		}
	}
}

func summary() aggregate.Summary {
	mean := &aggregate.Table{
		IndexName: "temp [K]",
		Index:     []string{"300", "350"},
		Columns:   []string{"C2H2", "C2H4", "CH4", "H2"},
		Rows:      [][]float64{{40, 30, 30, 0}, {20, 50, 10, 0}},
	}
	std := &aggregate.Table{
		IndexName: mean.IndexName,
		Index:     mean.Index,
		Columns:   mean.Columns,
		Rows:      [][]float64{{1, 1, 1, 0}, {2, 2, 2, 0}},
	}

	return aggregate.Summary{Mean: mean, Std: std}
}

func TestCalculateSummary(t *testing.T) {
	rows, _, err := CalculateSummary(summary(), "C2H2", "C2H4")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Condition != "300" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if math.Abs(rows[1].Conversion-75) > 1e-9 {
		t.Errorf("conversion %v, expected 75", rows[1].Conversion)
	}

	if _, _, err := CalculateSummary(summary(), "C3H8", "C2H4"); err == nil {
		t.Errorf("expected an error for a missing reactant")
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, []Derived{{Condition: "300", Conversion: 60, Selectivity: 50}}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "condition,conversion,selectivity,x_error,s_error" {
		t.Errorf("header %q", lines[0])
	}
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "300,60,50,") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestElementCount(t *testing.T) {
	cases := []struct {
		compound, element string
		expected          int
	}{
		{"C2H4", "c", 2},
		{"CH4", "c", 1},
		{"c3h8", "C", 3},
		{"H2", "c", 0},
		{"C2H4", "h", 4},
		{"CO2", "o", 2},
	}

	for _, c := range cases {
		if got := ElementCount(c.compound, c.element); got != c.expected {
			t.Errorf("ElementCount(%q, %q): got %d, expected %d", c.compound, c.element, got, c.expected)
		}
	}
}

func TestMoleBalance(t *testing.T) {
	b := MoleBalance(summary(), DefaultElement)
	if len(b) != 2 {
		t.Fatalf("got %d rows", len(b))
	}
	// 2*40 + 2*30 + 1*30
	if b[0].Total != 170 || b[0].Error != 5 {
		t.Errorf("first condition: %+v", b[0])
	}
	if b[1].Total != 150 || b[1].Error != 10 {
		t.Errorf("second condition: %+v", b[1])
	}

	var buf bytes.Buffer
	if err := WriteBalance(&buf, b); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "condition,element,total,error\n") {
		t.Errorf("unexpected header in %q", buf.String())
	}
}

func TestUndetected(t *testing.T) {
	got := Undetected(summary())
	if len(got) != 1 || got[0] != "H2" {
		t.Errorf("got %v, expected [H2]", got)
	}
}

func TestReport(t *testing.T) {
	r, err := NewReport(summary(), "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if r.Derived != nil || len(r.Balance) != 2 || r.Balance[0].Element != DefaultElement {
		t.Errorf("expected only a carbon balance, got %+v", r)
	}

	if _, err := NewReport(summary(), "C2H2", "", "c"); err == nil {
		t.Errorf("expected an error for a reactant without a target")
	}

	r, err = NewReport(summary(), "C2H2", "C2H4", "h")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	if err := r.WriteFiles(dir); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{TableFile, BalanceFile} {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(b), "condition,") {
			t.Errorf("%s: unexpected contents %q", name, b)
		}
	}
}

func TestReportArchivedWithSummary(t *testing.T) {
	s := summary()
	r, err := NewReport(s, "C2H2", "C2H4", "c")
	if err != nil {
		t.Fatal(err)
	}
	files, err := r.Files()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Name != TableFile || files[1].Name != BalanceFile {
		t.Fatalf("unexpected report files %+v", files)
	}

	tensor := aggregate.NewTensor(len(s.Mean.Index), len(s.Mean.Columns)+1, 1)
	archive := &aggregate.Archive{Tensor: tensor, Summary: s}

	dir := t.TempDir()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := aggregate.WriteArchive(dir, archive, files...); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(dir, f.Name))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(b, f.Data) {
			t.Errorf("%s: contents differ from the report", f.Name)
		}
	}

	loaded, err := aggregate.LoadArchive(context.Background(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Summary.Mean.Equal(s.Mean) {
		t.Errorf("mean table changed")
	}
}
