package pipeline

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/carbocation/chromquant/aggregate"
	"github.com/carbocation/chromquant/calibration"
	"github.com/carbocation/chromquant/experiment"
	"golang.org/x/sync/errgroup"
)

// Batch is the outcome of Run. Failed lists every file that could not be
// analyzed, in manifest order; the files that could are in Result.
type Batch struct {
	Result *aggregate.Result
	Files  []*FileResult
	Failed []*FileError
}

// Run analyzes every job of the manifest with at most cfg.Concurrency files
// in flight, then aggregates them. A failing file is recorded in
// Batch.Failed and does not stop the others. Only cancellation of ctx makes
// Run itself fail, in which case no further files are started.
func Run(ctx context.Context, m *experiment.Manifest, table *calibration.Table, client *storage.Client, cfg Config) (*Batch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.CheckCompounds(table); err != nil {
		return nil, err
	}

	agg := aggregate.NewAggregator(m.Kind, m.Conditions, table.Compounds(), m.MaxReplicates())

	var mu sync.Mutex
	files := make([]*FileResult, len(m.Jobs))
	failed := make([]*FileError, len(m.Jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for i, job := range m.Jobs {
		if gctx.Err() != nil {
			break
		}

		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := AnalyzeFile(gctx, job.Path, client, table, cfg)
			if err == nil {
				err = agg.Add(job.Step, job.Replicate, res.Record)
			}

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				fe := asFileError(job.Path, err)
				log.Println(fe)
				failed[i] = fe
				return nil
			}

			for _, w := range res.Warnings {
				log.Println("Warning:", w)
			}
			files[i] = res

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Batch{Result: agg.Finalize()}
	for i := range m.Jobs {
		if files[i] != nil {
			out.Files = append(out.Files, files[i])
		}
		if failed[i] != nil {
			out.Failed = append(out.Failed, failed[i])
		}
	}

	return out, nil
}

// Warnings gathers the warnings of every analyzed file, ordered by path.
func (b *Batch) Warnings() []error {
	files := append([]*FileResult(nil), b.Files...)
	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	var out []error
	for _, f := range files {
		out = append(out, f.Warnings...)
	}

	return out
}

// asFileError returns the FileError carried by err, or wraps err in one for
// path.
func asFileError(path string, err error) *FileError {
	var fe *FileError
	if errors.As(err, &fe) {
		return fe
	}

	return &FileError{Path: path, Err: err}
}
