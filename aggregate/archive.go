package aggregate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/carbocation/chromquant"
	"github.com/carbocation/chromquant/compileinfo"
	"github.com/carbocation/pfx"
)

const (
	TensorFile     = "concentrations.npy"
	MeanFile       = "avg_conc.csv"
	StdFile        = "std_conc.csv"
	ProvenanceFile = "provenance.txt"
)

// Archive is the stored output of one batch.
type Archive struct {
	Tensor     *Tensor
	Summary    Summary
	Provenance string
}

// NewArchive packages a result. start is passed to Result.Summary.
func NewArchive(r *Result, start float64) *Archive {
	return &Archive{
		Tensor:     r.Tensor,
		Summary:    r.Summary(start),
		Provenance: compileinfo.Get().Provenance(),
	}
}

// Per-directory locks, so that concurrent writers into the same archive never
// interleave.
var archiveLocks sync.Map

func lockDir(dir string) func() {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	v, _ := archiveLocks.LoadOrStore(abs, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock
}

// File is a named payload stored in an archive directory.
type File struct {
	Name string
	Data []byte
}

// WriteArchive stores the archive in dir, creating it if needed, together
// with any extra files derived from it. All of them are written as one unit
// by WriteFiles.
func WriteArchive(dir string, a *Archive, extra ...File) error {
	var tensor, mean, std bytes.Buffer
	if err := WriteNPY(&tensor, a.Tensor.Shape(), a.Tensor.Data); err != nil {
		return pfx.Err(err)
	}
	if err := a.Summary.Mean.WriteCSV(&mean); err != nil {
		return pfx.Err(err)
	}
	if err := a.Summary.Std.WriteCSV(&std); err != nil {
		return pfx.Err(err)
	}

	files := []File{
		{TensorFile, tensor.Bytes()},
		{MeanFile, mean.Bytes()},
		{StdFile, std.Bytes()},
		{ProvenanceFile, []byte(a.Provenance)},
	}

	return WriteFiles(dir, append(files, extra...)...)
}

// WriteFiles stores files in dir while holding the directory's lock. Every
// file is first written in full to a temporary sibling; only once all of
// them are on disk are they renamed into place.
func WriteFiles(dir string, files ...File) error {
	dir, err := chromquant.ExpandHome(dir)
	if err != nil {
		return pfx.Err(err)
	}
	for _, f := range files {
		if f.Name == "" || f.Name != filepath.Base(f.Name) {
			return pfx.Err(fmt.Errorf("archive file name %q must be a bare file name", f.Name))
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pfx.Err(err)
	}

	unlock := lockDir(dir)
	defer unlock()

	staged := make([]string, 0, len(files))
	defer func() {
		// Renamed files are gone already; this only clears failed runs.
		for _, name := range staged {
			os.Remove(name)
		}
	}()

	for _, f := range files {
		name, err := stageFile(dir, f)
		if err != nil {
			return pfx.Err(err)
		}
		staged = append(staged, name)
	}

	for i, f := range files {
		if err := os.Rename(staged[i], filepath.Join(dir, f.Name)); err != nil {
			return pfx.Err(err)
		}
	}

	return nil
}

func stageFile(dir string, f File) (string, error) {
	tmp, err := os.CreateTemp(dir, "."+f.Name+".*")
	if err != nil {
		return "", err
	}

	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	return tmp.Name(), nil
}

// LoadArchive reads an archive from a local directory or a gs:// prefix. A
// missing provenance file is not an error.
func LoadArchive(ctx context.Context, dir string, client *storage.Client) (*Archive, error) {
	join := func(name string) string {
		if chromquant.IsGoogleStoragePath(dir) {
			return strings.TrimSuffix(dir, "/") + "/" + path.Clean(name)
		}
		return filepath.Join(dir, name)
	}

	raw, err := chromquant.ReadAll(ctx, join(TensorFile), client)
	if err != nil {
		return nil, pfx.Err(err)
	}
	shape, data, err := ReadNPY(bytes.NewReader(raw))
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", join(TensorFile), err))
	}
	tensor, err := tensorFromShape(shape, data)
	if err != nil {
		return nil, pfx.Err(err)
	}

	out := &Archive{Tensor: tensor}
	for _, t := range []struct {
		name string
		dst  **Table
	}{
		{MeanFile, &out.Summary.Mean},
		{StdFile, &out.Summary.Std},
	} {
		raw, err := chromquant.ReadAll(ctx, join(t.name), client)
		if err != nil {
			return nil, pfx.Err(err)
		}
		if *t.dst, err = ReadTable(bytes.NewReader(raw)); err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", join(t.name), err))
		}
	}

	if raw, err := chromquant.ReadAll(ctx, join(ProvenanceFile), client); err == nil {
		out.Provenance = string(raw)
	}

	return out, nil
}
