// gcmetrics re-derives conversion, selectivity and the mole balance from a
// concentration archive written by gcquant, without re-analyzing any
// chromatogram.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/carbocation/chromquant"
	"github.com/carbocation/chromquant/aggregate"
	_ "github.com/carbocation/chromquant/compileinfoprint"
	"github.com/carbocation/chromquant/metrics"
)

const BufferSize = 4096 * 8

var STDOUT = bufio.NewWriterSize(os.Stdout, BufferSize)

var anonymous bool

func main() {
	defer STDOUT.Flush()

	var archiveDir, output, reactant, target, element string
	flag.BoolVar(&anonymous, "anonymous", false, "Read gs:// inputs without credentials (public buckets only).")
	flag.StringVar(&archiveDir, "archive", "", "Folder (local or gs://) holding a gcquant archive.")
	flag.StringVar(&reactant, "reactant", "", "Compound whose consumption defines conversion.")
	flag.StringVar(&target, "target", "", "Compound whose formation defines selectivity.")
	flag.StringVar(&element, "element", metrics.DefaultElement, "Element for the mole balance.")
	flag.StringVar(&output, "output", "", "(Optional) Local folder for metrics.csv and mole_balance.csv. Defaults to the archive folder if it is local.")
	flag.Parse()

	if archiveDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if output == "" {
		if chromquant.IsGoogleStoragePath(archiveDir) {
			log.Fatalln("-output is required when the archive is in Google Storage")
		}
		output = archiveDir
	}

	if err := run(context.Background(), archiveDir, output, reactant, target, element); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, archiveDir, output, reactant, target, element string) error {
	client, err := chromquant.NewStorageClient(ctx, anonymous, archiveDir)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	archive, err := aggregate.LoadArchive(ctx, archiveDir, client)
	if err != nil {
		return err
	}

	if undetected := metrics.Undetected(archive.Summary); len(undetected) > 0 {
		log.Println("Never detected:", strings.Join(undetected, ", "))
	}

	report, err := metrics.NewReport(archive.Summary, reactant, target, element)
	if err != nil {
		return err
	}
	for _, w := range report.Warnings {
		log.Println("Warning:", w)
	}

	if err := report.WriteFiles(output); err != nil {
		return err
	}

	fmt.Fprintf(STDOUT, "%s\tconversion\tx_error\tselectivity\ts_error\t%s_total\t%s_error\n", archive.Summary.Mean.IndexName, element, element)
	for i, b := range report.Balance {
		x, xe, s, se := "", "", "", ""
		if report.Derived != nil {
			d := report.Derived[i]
			x, xe = aggregate.FormatFloat(d.Conversion), aggregate.FormatFloat(d.XError)
			s, se = aggregate.FormatFloat(d.Selectivity), aggregate.FormatFloat(d.SError)
		}
		fmt.Fprintf(STDOUT, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", b.Condition, x, xe, s, se, aggregate.FormatFloat(b.Total), aggregate.FormatFloat(b.Error))
	}

	return nil
}
