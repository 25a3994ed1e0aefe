package chromquant

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/option"
)

// NewStorageClient initializes a Google Storage client, but only if one of
// paths is in a bucket; otherwise the client is nil. Anonymous clients can
// only read public buckets.
func NewStorageClient(ctx context.Context, anonymous bool, paths ...string) (*storage.Client, error) {
	needed := false
	for _, p := range paths {
		if IsGoogleStoragePath(p) {
			needed = true
			break
		}
	}
	if !needed {
		return nil, nil
	}

	var opts []option.ClientOption
	if anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return client, nil
}
