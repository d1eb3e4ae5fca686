package storageprovider

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/getsentry/opstractor/internal/storageutil"
)

type Provider interface {
	storageutil.ObjectHandler
	io.Closer
}

// IsBucketURL reports whether location names a bucket rather than a local
// file or stream.
func IsBucketURL(location string) bool {
	return strings.Contains(location, "://")
}

// Open returns a provider for a bucket URL. gs://bucket/prefix URLs go
// through the Cloud Storage client, other schemes through gocloud
// (file:///dir, mem://).
func Open(ctx context.Context, location string) (Provider, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("storageprovider: invalid bucket url %q: %w", location, err)
	}
	if u.Scheme == "gs" {
		return NewGcs(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	}
	return NewBlob(ctx, location)
}
