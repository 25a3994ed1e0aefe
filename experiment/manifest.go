package experiment

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/chromquant"
	"github.com/carbocation/chromquant/trace"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"
)

// ManifestRow is one line of a run manifest. Run may be left blank, in which
// case it is taken from the trace filename, and failing that from the row's
// position among its condition's rows.
type ManifestRow struct {
	Condition string `csv:"condition"`
	Path      string `csv:"path"`
	Run       string `csv:"run"`
}

// Job is one trace file to analyze. Replicate is the file's 0-based slot
// within its condition, in run order.
type Job struct {
	Step      int
	Path      string
	Run       int
	Replicate int
}

// Manifest is the full description of an experiment's inputs.
type Manifest struct {
	Kind       Kind
	Conditions []Condition
	Jobs       []Job
}

// MaxReplicates is the largest number of runs collected for any condition.
func (m *Manifest) MaxReplicates() int {
	counts := make(map[int]int)
	max := 0
	for _, j := range m.Jobs {
		counts[j.Step]++
		if counts[j.Step] > max {
			max = counts[j.Step]
		}
	}

	return max
}

// LoadManifest reads a manifest from a local path or gs:// URL. Relative
// trace paths are resolved against the manifest's directory.
func LoadManifest(ctx context.Context, manifestPath string, client *storage.Client, kind Kind) (*Manifest, error) {
	data, err := chromquant.ReadAll(ctx, manifestPath, client)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var base string
	if chromquant.IsGoogleStoragePath(manifestPath) {
		base = path.Dir(manifestPath)
	} else {
		base = filepath.Dir(manifestPath)
	}

	m, err := ParseManifest(bytes.NewReader(data), base, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}

	return m, nil
}

// ParseManifest decodes a delimited manifest with condition, path and
// optional run columns. Conditions are numbered in order of first
// appearance. A stability test may have only one condition.
func ParseManifest(r io.Reader, base string, kind Kind) (*Manifest, error) {
	if !kind.valid() {
		return nil, fmt.Errorf("invalid experiment kind %v", kind)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = chromquant.DetermineDelimiterBytes(data)
	cr.TrimLeadingSpace = true

	var rows []ManifestRow
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("manifest lists no trace files")
	}

	out := &Manifest{Kind: kind}
	steps := make(map[string]int)
	positions := make(map[int]int)

	for i, row := range rows {
		label := strings.TrimSpace(row.Condition)
		file := strings.TrimSpace(row.Path)
		if label == "" || file == "" {
			return nil, fmt.Errorf("manifest row %d: condition and path are required", i+2)
		}

		step, seen := steps[label]
		if !seen {
			step = len(out.Conditions)
			steps[label] = step
			out.Conditions = append(out.Conditions, Condition{Kind: kind, Step: step, Label: label})
		}
		positions[step]++

		run, err := runIndex(row.Run, file, positions[step])
		if err != nil {
			return nil, fmt.Errorf("manifest row %d: %w", i+2, err)
		}

		out.Jobs = append(out.Jobs, Job{Step: step, Path: resolve(base, file), Run: run})
	}

	if kind == StabilityTest && len(out.Conditions) > 1 {
		return nil, fmt.Errorf("a stability test has a single condition, but the manifest names %d", len(out.Conditions))
	}

	if err := assignReplicates(out); err != nil {
		return nil, err
	}

	return out, nil
}

func runIndex(explicit, file string, position int) (int, error) {
	var run null.Int
	if err := run.UnmarshalText([]byte(strings.TrimSpace(explicit))); err != nil {
		return 0, fmt.Errorf("run %q is not an integer", explicit)
	}
	if run.Valid {
		return int(run.Int64), nil
	}

	if n, ok := trace.RunNumber(file); ok {
		return n, nil
	}

	return position, nil
}

func resolve(base, file string) string {
	if chromquant.IsGoogleStoragePath(file) || filepath.IsAbs(file) || strings.HasPrefix(file, "~") || base == "" {
		return file
	}
	if chromquant.IsGoogleStoragePath(base) {
		return base + "/" + path.Clean(filepath.ToSlash(file))
	}

	return filepath.Join(base, file)
}

// assignReplicates ranks each condition's jobs by run number. Two files may
// not share a run within a condition.
func assignReplicates(m *Manifest) error {
	byStep := make(map[int][]int)
	for i, j := range m.Jobs {
		byStep[j.Step] = append(byStep[j.Step], i)
	}

	for step, idx := range byStep {
		sort.SliceStable(idx, func(a, b int) bool {
			return m.Jobs[idx[a]].Run < m.Jobs[idx[b]].Run
		})

		for rank, i := range idx {
			if rank > 0 && m.Jobs[idx[rank-1]].Run == m.Jobs[i].Run {
				return fmt.Errorf("condition %s lists run %d twice (%s and %s)", m.Conditions[step].Label, m.Jobs[i].Run, m.Jobs[idx[rank-1]].Path, m.Jobs[i].Path)
			}
			m.Jobs[i].Replicate = rank
		}
	}

	return nil
}
