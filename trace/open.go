package trace

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/carbocation/chromquant"
	"github.com/carbocation/pfx"
)

// Open reads and parses a trace from a local path or a gs:// URL. Compressed
// exports (gzip, zip, xz, bzip2, zlib) are decompressed transparently. client
// may be nil for local paths.
func Open(ctx context.Context, path string, client *storage.Client, opts Options) (*Trace, error) {
	rc, err := chromquant.OpenReader(ctx, path, client)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer rc.Close()

	return Parse(rc, path, opts)
}
