// Package pipeline chains trace parsing, baseline correction, peak detection,
// integration and calibration for single files, and runs that chain across
// every file of an experiment.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/araddon/dateparse"
	"github.com/carbocation/chromquant"
	"github.com/carbocation/chromquant/baseline"
	"github.com/carbocation/chromquant/calibration"
	"github.com/carbocation/chromquant/experiment"
	"github.com/carbocation/chromquant/metrics"
	"github.com/carbocation/chromquant/peak"
	"github.com/carbocation/chromquant/trace"
	"github.com/carbocation/pfx"
)

type Config struct {
	ConfigPath      string `json:"-"`
	Experiment      string `json:"experiment"`
	ManifestPath    string `json:"manifest"`
	CalibrationPath string `json:"calibration"`
	OutputPath      string `json:"output"`

	Reactant string `json:"reactant"`
	Target   string `json:"target"`
	Element  string `json:"element"`

	BaselineCorrect  bool    `json:"baseline_correct"`
	StructFraction   float64 `json:"struct_fraction"`
	Prominence       float64 `json:"prominence"`
	TolerancePercent float64 `json:"tolerance_percent"`
	Window           int     `json:"window"`
	LowPassHz        float64 `json:"low_pass_hz"`

	Concurrency int `json:"concurrency"`

	// Timezone of the instrument clock, as an IANA name. Empty means local.
	Timezone string `json:"timezone"`

	// StartTime is the experiment start used by stability tests. Empty means
	// the earliest acquisition timestamp.
	StartTime string `json:"start_time"`

	// UnitCalibration replaces slopes with 1 and intercepts with 0 so the
	// archive holds raw counts, as needed for calibration fitting.
	UnitCalibration bool `json:"unit_calibration"`
}

func DefaultConfig() Config {
	return Config{
		Experiment:       experiment.TempSweep.String(),
		Element:          metrics.DefaultElement,
		BaselineCorrect:  true,
		StructFraction:   baseline.DefaultStructFraction,
		Prominence:       peak.DefaultProminence,
		TolerancePercent: peak.DefaultTolerancePercent,
		Window:           peak.DefaultWindow,
		Concurrency:      runtime.NumCPU(),
	}
}

// ParseJSONConfigFromPath overlays the JSON file at path on DefaultConfig.
func ParseJSONConfigFromPath(path string) (Config, error) {
	out := DefaultConfig()
	out.ConfigPath = path

	f, err := os.Open(path)
	if err != nil {
		return out, pfx.Err(err)
	}
	defer f.Close()

	err = json.NewDecoder(f).Decode(&out)
	if err != nil {
		if e, ok := err.(*json.SyntaxError); ok {
			log.Printf("syntax error at byte offset %d", e.Offset)
		}

		return out, pfx.Err(err)
	}

	// Interpret ~ if present
	for _, p := range []*string{&out.ConfigPath, &out.ManifestPath, &out.CalibrationPath, &out.OutputPath} {
		if *p, err = chromquant.ExpandHome(*p); err != nil {
			return out, pfx.Err(err)
		}
	}

	return out, nil
}

// Validate checks the settings that would otherwise fail deep inside a batch.
func (c Config) Validate() error {
	if _, err := c.Kind(); err != nil {
		return err
	}
	if c.StructFraction <= 0 || c.StructFraction > 1 {
		return fmt.Errorf("struct_fraction must be in (0, 1], got %g", c.StructFraction)
	}
	if c.Prominence < 0 {
		return fmt.Errorf("prominence must not be negative, got %g", c.Prominence)
	}
	if c.TolerancePercent <= 0 {
		return fmt.Errorf("tolerance_percent must be positive, got %g", c.TolerancePercent)
	}
	if c.Window < 1 {
		return fmt.Errorf("window must be at least 1, got %d", c.Window)
	}
	if c.LowPassHz < 0 {
		return fmt.Errorf("low_pass_hz must not be negative, got %g", c.LowPassHz)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Start(); err != nil {
		return err
	}

	return nil
}

// CheckCompounds confirms that the reactant and target are both named, or
// both unset, and that named ones are compounds of table.
func (c Config) CheckCompounds(table *calibration.Table) error {
	if c.Reactant == "" && c.Target == "" {
		return nil
	}
	if c.Reactant == "" || c.Target == "" {
		return fmt.Errorf("conversion and selectivity need both a reactant and a target (got %q and %q)", c.Reactant, c.Target)
	}
	for _, compound := range []string{c.Reactant, c.Target} {
		if _, err := table.Index(compound); err != nil {
			return err
		}
	}

	return nil
}

func (c Config) Kind() (experiment.Kind, error) {
	return experiment.ParseKind(c.Experiment)
}

func (c Config) PeakOptions() peak.Options {
	return peak.Options{
		Prominence:       c.Prominence,
		TolerancePercent: c.TolerancePercent,
		Window:           c.Window,
	}
}

// Location resolves Timezone; an empty name is time.Local.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return loc, nil
}

func (c Config) TraceOptions() (trace.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return trace.Options{}, err
	}

	return trace.Options{Location: loc}, nil
}

// Start returns the configured experiment start in epoch seconds, or NaN if
// none was set.
func (c Config) Start() (float64, error) {
	if c.StartTime == "" {
		return math.NaN(), nil
	}

	loc, err := c.Location()
	if err != nil {
		return 0, err
	}

	t, err := dateparse.ParseIn(c.StartTime, loc)
	if err != nil {
		return 0, fmt.Errorf("start_time %q: %w", c.StartTime, err)
	}

	return float64(t.Unix()), nil
}
