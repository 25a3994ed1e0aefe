// gcquant analyzes every chromatogram listed in a run manifest, converts the
// peaks to concentrations with a calibration table, and writes the
// concentration archive, the mole balance and (if a reactant and target are
// given) conversion and selectivity into the output folder.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/carbocation/chromquant"
	"github.com/carbocation/chromquant/aggregate"
	"github.com/carbocation/chromquant/calibration"
	_ "github.com/carbocation/chromquant/compileinfoprint"
	"github.com/carbocation/chromquant/experiment"
	"github.com/carbocation/chromquant/metrics"
	"github.com/carbocation/chromquant/pipeline"
)

const BufferSize = 4096 * 8

var STDOUT = bufio.NewWriterSize(os.Stdout, BufferSize)

func init() {
	flag.Usage = func() {
		flag.PrintDefaults()

		log.Println("Example JSON config file layout:")
		bts, err := json.MarshalIndent(pipeline.DefaultConfig(), "", "  ")
		if err == nil {
			log.Println(string(bts))
		}
	}
}

func main() {
	defer STDOUT.Flush()

	start := time.Now()
	defer func() {
		log.Printf("Completed in %.2f seconds\n", time.Since(start).Seconds())
	}()

	defaults := pipeline.DefaultConfig()

	var configPath string
	var flags pipeline.Config
	var noBaseline, anonymous bool
	flag.BoolVar(&anonymous, "anonymous", false, "Read gs:// inputs without credentials (public buckets only).")
	flag.StringVar(&configPath, "config", "", "(Optional) JSON config file. Flags that are set override its values.")
	flag.StringVar(&flags.ManifestPath, "manifest", "", "Manifest with condition, path and (optional) run columns. Relative paths are resolved against the manifest's folder.")
	flag.StringVar(&flags.CalibrationPath, "calibration", "", "Calibration table with Chem ID, slope, intercept, start and end columns.")
	flag.StringVar(&flags.OutputPath, "output", "", "Local folder into which the archive and derived tables are written.")
	flag.StringVar(&flags.Experiment, "experiment", defaults.Experiment, "Experiment type: temp_sweep, power_sweep, comp_sweep, flow_sweep, calibration or stability_test.")
	flag.StringVar(&flags.Reactant, "reactant", "", "(Optional) Compound whose consumption defines conversion.")
	flag.StringVar(&flags.Target, "target", "", "(Optional) Compound whose formation defines selectivity.")
	flag.StringVar(&flags.Element, "element", defaults.Element, "Element for the mole balance.")
	flag.BoolVar(&noBaseline, "no-baseline", false, "Detect peaks on the raw signal instead of the top-hat corrected one.")
	flag.Float64Var(&flags.StructFraction, "struct-fraction", defaults.StructFraction, "Baseline structuring element width, as a fraction of the trace length.")
	flag.Float64Var(&flags.Prominence, "prominence", defaults.Prominence, "Minimum peak prominence, in volts.")
	flag.Float64Var(&flags.TolerancePercent, "tolerance", defaults.TolerancePercent, "Percent change below which a peak boundary is considered reached.")
	flag.IntVar(&flags.Window, "window", defaults.Window, "Number of points averaged during the peak boundary search.")
	flag.Float64Var(&flags.LowPassHz, "lowpass", 0, "(Optional) Low-pass cutoff in Hz applied before baseline correction. 0 disables it.")
	flag.IntVar(&flags.Concurrency, "concurrency", defaults.Concurrency, "Number of files analyzed at once.")
	flag.StringVar(&flags.Timezone, "timezone", "", "(Optional) IANA time zone of the instrument clock. Defaults to local time.")
	flag.StringVar(&flags.StartTime, "start", "", "(Optional) Experiment start time for stability tests. Defaults to the earliest trace.")
	flag.BoolVar(&flags.UnitCalibration, "unit-calibration", false, "Store raw counts (slope 1, intercept 0) instead of calibrated concentrations, for use with gccalibrate.")
	flag.Parse()

	cfg := defaults
	if configPath != "" {
		var err error
		cfg, err = pipeline.ParseJSONConfigFromPath(configPath)
		if err != nil {
			log.Fatalln(err)
		}
	}

	// Explicitly set flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "manifest":
			cfg.ManifestPath = flags.ManifestPath
		case "calibration":
			cfg.CalibrationPath = flags.CalibrationPath
		case "output":
			cfg.OutputPath = flags.OutputPath
		case "experiment":
			cfg.Experiment = flags.Experiment
		case "reactant":
			cfg.Reactant = flags.Reactant
		case "target":
			cfg.Target = flags.Target
		case "element":
			cfg.Element = flags.Element
		case "no-baseline":
			cfg.BaselineCorrect = !noBaseline
		case "struct-fraction":
			cfg.StructFraction = flags.StructFraction
		case "prominence":
			cfg.Prominence = flags.Prominence
		case "tolerance":
			cfg.TolerancePercent = flags.TolerancePercent
		case "window":
			cfg.Window = flags.Window
		case "lowpass":
			cfg.LowPassHz = flags.LowPassHz
		case "concurrency":
			cfg.Concurrency = flags.Concurrency
		case "timezone":
			cfg.Timezone = flags.Timezone
		case "start":
			cfg.StartTime = flags.StartTime
		case "unit-calibration":
			cfg.UnitCalibration = flags.UnitCalibration
		}
	})

	if cfg.ManifestPath == "" || cfg.CalibrationPath == "" || cfg.OutputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, anonymous); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, cfg pipeline.Config, anonymous bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if chromquant.IsGoogleStoragePath(cfg.OutputPath) {
		return fmt.Errorf("output must be a local folder, got %s", cfg.OutputPath)
	}

	var err error
	for _, p := range []*string{&cfg.ManifestPath, &cfg.CalibrationPath, &cfg.OutputPath} {
		if *p, err = chromquant.ExpandHome(*p); err != nil {
			return err
		}
	}

	client, err := chromquant.NewStorageClient(ctx, anonymous, cfg.ManifestPath, cfg.CalibrationPath)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	kind, err := cfg.Kind()
	if err != nil {
		return err
	}

	table, err := calibration.LoadFromPath(ctx, cfg.CalibrationPath, client)
	if err != nil {
		return err
	}
	if cfg.UnitCalibration {
		table = table.Unit()
	}
	if err := cfg.CheckCompounds(table); err != nil {
		return err
	}

	manifest, err := experiment.LoadManifest(ctx, cfg.ManifestPath, client, kind)
	if err != nil {
		return err
	}
	log.Printf("Analyzing %d files across %d %s conditions for %d compounds\n", len(manifest.Jobs), len(manifest.Conditions), kind, table.Len())

	batch, err := pipeline.Run(ctx, manifest, table, client, cfg)
	if err != nil {
		return err
	}
	if len(batch.Failed) > 0 {
		log.Printf("%d of %d files could not be analyzed\n", len(batch.Failed), len(manifest.Jobs))
	}
	if len(batch.Files) == 0 {
		return fmt.Errorf("no file in %s could be analyzed", cfg.ManifestPath)
	}

	startTime, err := cfg.Start()
	if err != nil {
		return err
	}

	archive := aggregate.NewArchive(batch.Result, startTime)
	report, err := metrics.NewReport(archive.Summary, cfg.Reactant, cfg.Target, cfg.Element)
	if err != nil {
		return err
	}
	for _, w := range report.Warnings {
		log.Println("Warning:", w)
	}
	derived, err := report.Files()
	if err != nil {
		return err
	}

	// The derived tables are written together with the archive.
	if err := aggregate.WriteArchive(cfg.OutputPath, archive, derived...); err != nil {
		return err
	}

	printSummary(archive.Summary)
	log.Println("Wrote", cfg.OutputPath)

	return nil
}

// printSummary writes the mean table, tab-delimited, with "mean±std" cells.
func printSummary(s aggregate.Summary) {
	fmt.Fprintln(STDOUT, strings.Join(append([]string{s.Mean.IndexName}, s.Mean.Columns...), "\t"))
	for i, row := range s.Mean.Rows {
		cells := []string{s.Mean.Index[i]}
		for j, v := range row {
			cells = append(cells, aggregate.FormatFloat(v)+"±"+aggregate.FormatFloat(s.Std.Rows[i][j]))
		}
		fmt.Fprintln(STDOUT, strings.Join(cells, "\t"))
	}
}
