// gcpeaks inspects one chromatogram: it prints every detected peak with its
// integration bounds and counts, and, if a calibration table is given, the
// compound each peak was assigned to and its concentration.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/chromquant"
	"github.com/carbocation/chromquant/calibration"
	_ "github.com/carbocation/chromquant/compileinfoprint"
	"github.com/carbocation/chromquant/pipeline"
)

const BufferSize = 4096 * 8

var STDOUT = bufio.NewWriterSize(os.Stdout, BufferSize)

var (
	anonymous bool
	histBins  int
)

func main() {
	defer STDOUT.Flush()

	cfg := pipeline.DefaultConfig()
	cfg.Concurrency = 1

	var file, calPath string
	var noBaseline bool
	flag.BoolVar(&anonymous, "anonymous", false, "Read gs:// inputs without credentials (public buckets only).")
	flag.StringVar(&file, "file", "", "Chromatogram (.ASC, optionally compressed; local or gs://).")
	flag.StringVar(&calPath, "calibration", "", "(Optional) Calibration table used to name peaks.")
	flag.BoolVar(&noBaseline, "no-baseline", false, "Detect peaks on the raw signal instead of the top-hat corrected one.")
	flag.Float64Var(&cfg.StructFraction, "struct-fraction", cfg.StructFraction, "Baseline structuring element width, as a fraction of the trace length.")
	flag.Float64Var(&cfg.Prominence, "prominence", cfg.Prominence, "Minimum peak prominence, in volts.")
	flag.Float64Var(&cfg.TolerancePercent, "tolerance", cfg.TolerancePercent, "Percent change below which a peak boundary is considered reached.")
	flag.IntVar(&cfg.Window, "window", cfg.Window, "Number of points averaged during the peak boundary search.")
	flag.Float64Var(&cfg.LowPassHz, "lowpass", 0, "(Optional) Low-pass cutoff in Hz applied before baseline correction.")
	flag.IntVar(&histBins, "histogram", 0, "(Optional) Print a histogram of the analyzed signal with this many bins to stderr.")
	flag.StringVar(&cfg.Timezone, "timezone", "", "(Optional) IANA time zone of the instrument clock.")
	flag.Parse()

	if file == "" {
		flag.Usage()
		os.Exit(1)
	}
	cfg.BaselineCorrect = !noBaseline

	if err := run(context.Background(), file, calPath, cfg); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, file, calPath string, cfg pipeline.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := chromquant.NewStorageClient(ctx, anonymous, file, calPath)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	// Without a table every peak is reported as unmatched.
	table, err := calibration.NewTable(nil)
	if err != nil {
		return err
	}
	if calPath != "" {
		if table, err = calibration.LoadFromPath(ctx, calPath, client); err != nil {
			return err
		}
	}

	res, err := pipeline.AnalyzeFile(ctx, file, client, table, cfg)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		log.Println("Warning:", w)
	}

	tr := res.Trace
	log.Printf("%s: %d points at %d Hz acquired %s, %d peaks\n", tr.Path, tr.Len(), tr.SampleRateHz, tr.Acquired.Format("2006-01-02 15:04:05 MST"), len(res.Peaks))
	log.Printf("Baseline outside peaks: n=%d mean=%g std=%g min=%g max=%g\n", res.Noise.N, res.Noise.Mean, res.Noise.Std, res.Noise.Min, res.Noise.Max)

	if histBins > 0 {
		if err := histogram.Fprint(os.Stderr, histogram.Hist(histBins, tr.Signal()), histogram.Linear(50)); err != nil {
			return err
		}
	}

	fmt.Fprintln(STDOUT, "apex\tapex_min\tleft\tright\theight\tcounts\tcompound\tppm")
	for i, p := range res.Peaks {
		compound, ppm := "", ""
		if j, ok := table.Match(tr.Time[p.Apex]); ok {
			e := table.Entries()[j]
			compound = e.Compound
			ppm = fmt.Sprintf("%g", e.Concentration(float64(res.Counts[i])))
		}
		fmt.Fprintf(STDOUT, "%d\t%.4f\t%d\t%d\t%g\t%d\t%s\t%s\n", p.Apex, tr.Time[p.Apex], p.Left, p.Right, tr.Signal()[p.Apex], res.Counts[i], compound, ppm)
	}

	return nil
}
