package storageprovider

import (
	"context"
	"errors"
	"io"
	"path"

	"cloud.google.com/go/storage"

	"github.com/getsentry/opstractor/internal/storageutil"
)

// Gcs implements storageutil.ObjectHandler interface to handle object read and writes.
type Gcs struct {
	BucketHandle *storage.BucketHandle
	// Prefix is prepended to every object name.
	Prefix string

	client *storage.Client
}

func NewGcs(ctx context.Context, bucket, prefix string) (*Gcs, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Gcs{
		BucketHandle: client.Bucket(bucket),
		Prefix:       prefix,
		client:       client,
	}, nil
}

// Put writes a file to the storage provider with name being the path.
func (g *Gcs) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	return g.BucketHandle.Object(path.Join(g.Prefix, name)).NewWriter(ctx), nil
}

// Get reads a file from the storage provider with name being the path.
// If a key was not found, it will return ErrObjectNotFound.
func (g *Gcs) Get(ctx context.Context, name string) (storageutil.ReadSizeCloser, error) {
	rc, err := g.BucketHandle.Object(path.Join(g.Prefix, name)).NewReader(ctx)
	if err != nil && errors.Is(err, storage.ErrObjectNotExist) {
		return nil, storageutil.ErrObjectNotFound
	}

	return rc, err
}

func (g *Gcs) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
