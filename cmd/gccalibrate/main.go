// gccalibrate fits a new calibration table from calibration runs. The input
// archive must have been written by gcquant with -unit-calibration, so that it
// holds raw counts, and its conditions must be labelled with their
// calibration gas fraction (e.g. 0.25CalGas_0.75Ar). The expected
// concentration of every compound is its ppm column times that fraction.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/carbocation/chromquant"
	"github.com/carbocation/chromquant/aggregate"
	"github.com/carbocation/chromquant/calibration"
	_ "github.com/carbocation/chromquant/compileinfoprint"
	"github.com/carbocation/chromquant/experiment"
)

const BufferSize = 4096 * 8

var STDOUT = bufio.NewWriterSize(os.Stdout, BufferSize)

var anonymous bool

func main() {
	defer STDOUT.Flush()

	var archiveDir, calPath, output string
	var forceZero bool
	flag.BoolVar(&anonymous, "anonymous", false, "Read gs:// inputs without credentials (public buckets only).")
	flag.StringVar(&archiveDir, "archive", "", "Folder (local or gs://) holding a raw-count gcquant archive.")
	flag.StringVar(&calPath, "calibration", "", "Current calibration table. Its ppm column gives each compound's concentration in the pure calibration gas.")
	flag.StringVar(&output, "output", "", "Local path of the new calibration table.")
	flag.BoolVar(&forceZero, "force-zero", false, "Force every fit through the origin.")
	flag.Parse()

	if archiveDir == "" || calPath == "" || output == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(context.Background(), archiveDir, calPath, output, forceZero); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, archiveDir, calPath, output string, forceZero bool) error {
	client, err := chromquant.NewStorageClient(ctx, anonymous, archiveDir, calPath)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	table, err := calibration.LoadFromPath(ctx, calPath, client)
	if err != nil {
		return err
	}

	archive, err := aggregate.LoadArchive(ctx, archiveDir, client)
	if err != nil {
		return err
	}
	mean, std := archive.Summary.Mean, archive.Summary.Std

	fractions := make([]float64, len(mean.Index))
	for i, label := range mean.Index {
		cond := experiment.Condition{Kind: experiment.Calibration, Step: i, Label: label}
		if fractions[i], err = cond.CalGasFraction(); err != nil {
			return err
		}
	}

	// Arrange the archive's columns in table order.
	counts := make([][]float64, len(fractions))
	countsErr := make([][]float64, len(fractions))
	for i := range fractions {
		counts[i] = make([]float64, table.Len())
		countsErr[i] = make([]float64, table.Len())
	}
	for j, compound := range table.Compounds() {
		m, err := mean.Column(compound)
		if err != nil {
			return err
		}
		s, err := std.Column(compound)
		if err != nil {
			return err
		}
		for i := range fractions {
			counts[i][j], countsErr[i][j] = m[i], s[i]
		}
	}

	fitted, errs := table.Fit(fractions, counts, countsErr, forceZero)
	if fitted == nil {
		return fmt.Errorf("calibration fit failed: %v", errs)
	}
	for _, e := range errs {
		log.Println("Warning:", e, "(keeping its previous calibration)")
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := fitted.Write(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintln(STDOUT, "compound\tslope\tslope_err\tintercept\tintercept_err")
	for _, e := range fitted.Entries() {
		fmt.Fprintf(STDOUT, "%s\t%g\t%g\t%g\t%g\n", e.Compound, e.Slope, e.SlopeErr, e.Intercept, e.InterceptErr)
	}
	log.Println("Wrote", output)

	return nil
}
