package experiment

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	for _, name := range []string{"temp_sweep", "power_sweep", "comp_sweep", "flow_sweep", "calibration", "stability_test"} {
		k, err := ParseKind(name)
		if err != nil {
			t.Fatal(err)
		}
		if k.String() != name {
			t.Errorf("round trip of %q gave %q", name, k.String())
		}
	}

	if k, err := ParseKind(" Power_Sweep "); err != nil || k != PowerSweep {
		t.Errorf("got %v, %v", k, err)
	}
	if _, err := ParseKind("pressure_sweep"); err == nil {
		t.Errorf("expected an error for an unknown kind")
	}
}

func TestKindMetadata(t *testing.T) {
	cases := []struct {
		kind  Kind
		index string
		num   bool
	}{
		{TempSweep, "temp [K]", true},
		{PowerSweep, "power [mW]", true},
		{CompSweep, "gas_comp [frac]", false},
		{FlowSweep, "tot_flow [sccm]", true},
		{Calibration, "gas_comp [ppm]", false},
		{StabilityTest, "time [min]", true},
	}

	for _, c := range cases {
		if got := c.kind.IndexName(); got != c.index {
			t.Errorf("%v: index name %q, expected %q", c.kind, got, c.index)
		}
		if c.kind.Numeric() != c.num {
			t.Errorf("%v: numeric is %v", c.kind, c.kind.Numeric())
		}
	}
}

func TestConditionValue(t *testing.T) {
	cases := []struct {
		cond    Condition
		value   float64
		ok      bool
		display string
	}{
		{Condition{Kind: TempSweep, Label: "300K"}, 300, true, "300"},
		{Condition{Kind: PowerSweep, Label: "12.5mW"}, 12.5, true, "12.5"},
		{Condition{Kind: FlowSweep, Label: "50sccm"}, 50, true, "50"},
		{Condition{Kind: CompSweep, Label: "0.2C2H2_0.8Arfrac"}, 0, false, "0.2C2H2\n0.8Ar"},
		{Condition{Kind: TempSweep, Label: "unknown"}, 0, false, "unknown"},
	}

	for _, c := range cases {
		v, ok := c.cond.Value()
		if v != c.value || ok != c.ok {
			t.Errorf("%q: got (%v, %v), expected (%v, %v)", c.cond.Label, v, ok, c.value, c.ok)
		}
		if d := c.cond.Display(); d != c.display {
			t.Errorf("%q: display %q, expected %q", c.cond.Label, d, c.display)
		}
	}
}

func TestCalGasFraction(t *testing.T) {
	c := Condition{Kind: Calibration, Label: "0.25CalGas_0.75Arppm"}
	f, err := c.CalGasFraction()
	if err != nil || f != 0.25 {
		t.Errorf("got %v, %v", f, err)
	}

	c = Condition{Kind: Calibration, Label: "1calgas"}
	if f, err := c.CalGasFraction(); err != nil || f != 1 {
		t.Errorf("got %v, %v", f, err)
	}

	c = Condition{Kind: Calibration, Label: "0.5Ar"}
	if _, err := c.CalGasFraction(); err == nil {
		t.Errorf("expected an error without a CalGas fraction")
	}
}

func TestParseManifest(t *testing.T) {
	src := `condition,path,run
300K,300K/a_FID02.ASC,
300K,300K/a_FID01.ASC,
350K,350K/x.ASC,5
300K,300K/b_FID03.ASC,
350K,350K/y.ASC,
`
	m, err := ParseManifest(strings.NewReader(src), "/data", TempSweep)
	if err != nil {
		t.Fatal(err)
	}

	if len(m.Conditions) != 2 || m.Conditions[0].Label != "300K" || m.Conditions[1].Label != "350K" {
		t.Fatalf("unexpected conditions %v", m.Conditions)
	}
	if m.MaxReplicates() != 3 {
		t.Errorf("max replicates %d, expected 3", m.MaxReplicates())
	}

	expected := []Job{
		{Step: 0, Path: filepath.Join("/data", "300K/a_FID02.ASC"), Run: 2, Replicate: 1},
		{Step: 0, Path: filepath.Join("/data", "300K/a_FID01.ASC"), Run: 1, Replicate: 0},
		{Step: 1, Path: filepath.Join("/data", "350K/x.ASC"), Run: 5, Replicate: 1},
		{Step: 0, Path: filepath.Join("/data", "300K/b_FID03.ASC"), Run: 3, Replicate: 2},
		// No run column and no digits: second row of its condition.
		{Step: 1, Path: filepath.Join("/data", "350K/y.ASC"), Run: 2, Replicate: 0},
	}
	for i, j := range m.Jobs {
		if j != expected[i] {
			t.Errorf("job %d: got %+v, expected %+v", i, j, expected[i])
		}
	}
}

func TestParseManifestErrors(t *testing.T) {
	cases := map[string]struct {
		src  string
		kind Kind
	}{
		"duplicate run":       {"condition,path\n300K,a_FID01.ASC\n300K,b_FID01.ASC\n", TempSweep},
		"bad run":             {"condition,path,run\n300K,a.ASC,first\n", TempSweep},
		"missing path":        {"condition,path\n300K,\n", TempSweep},
		"empty":               {"condition,path\n", TempSweep},
		"two stability steps": {"condition,path\nA,a_FID01.ASC\nB,b_FID01.ASC\n", StabilityTest},
	}

	for name, c := range cases {
		if _, err := ParseManifest(strings.NewReader(c.src), "", c.kind); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestLoadManifestResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.tsv")
	src := "condition\tpath\n0.5CalGas_0.5Ar\tstep1/run_FID01.ASC\n"
	if err := os.WriteFile(manifest, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(context.Background(), manifest, nil, Calibration)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.Jobs[0].Path, filepath.Join(dir, "step1", "run_FID01.ASC"); got != want {
		t.Errorf("path %q, expected %q", got, want)
	}
	if m.Conditions[0].Kind != Calibration {
		t.Errorf("condition kind %v", m.Conditions[0].Kind)
	}
}

func TestResolveBucketPaths(t *testing.T) {
	if got := resolve("gs://bucket/exp", "300K/a.ASC"); got != "gs://bucket/exp/300K/a.ASC" {
		t.Errorf("got %q", got)
	}
	if got := resolve("/data", "gs://other/a.ASC"); got != "gs://other/a.ASC" {
		t.Errorf("got %q", got)
	}
}
