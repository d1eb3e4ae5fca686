package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/getsentry/opstractor/internal/errorutil"
	"github.com/getsentry/opstractor/internal/optree"
	"github.com/getsentry/opstractor/internal/opwriter"
	"github.com/getsentry/opstractor/internal/session"
	"github.com/getsentry/opstractor/internal/storageprovider"
	"github.com/getsentry/opstractor/internal/storageutil"
)

// splitObjectURL splits the url of an object into its bucket url and key.
func splitObjectURL(location string) (string, string, error) {
	scheme := strings.Index(location, "://")
	i := strings.LastIndex(location, "/")
	if scheme < 0 || i < scheme+3 || i == len(location)-1 {
		return "", "", fmt.Errorf("no object key in %q", location)
	}
	return location[:i], location[i+1:], nil
}

// readDump decodes the dump at location: "-" for stdin, a file path or the
// url of an object in a bucket. Compressed dumps are decompressed.
func readDump(ctx context.Context, location string) (*optree.Op, error) {
	var rc io.ReadCloser
	switch {
	case location == "-":
		rc = io.NopCloser(os.Stdin)
	case storageprovider.IsBucketURL(location):
		bucketURL, key, err := splitObjectURL(location)
		if err != nil {
			return nil, err
		}
		bucket, err := storageprovider.Open(ctx, bucketURL)
		if err != nil {
			return nil, err
		}
		defer bucket.Close()
		logStats(ctx, bucket, key)
		rc, err = bucket.Get(ctx, key)
		if err != nil {
			return nil, err
		}
	default:
		f, err := os.Open(location)
		if err != nil {
			return nil, err
		}
		rc = f
	}
	defer rc.Close()

	r, err := storageutil.NewReader(rc)
	if err != nil {
		return nil, err
	}
	root, err := opwriter.ReadBinary(r)
	if errors.Is(err, io.EOF) {
		return nil, errorutil.ErrNoResults
	}
	return root, err
}

// logStats logs the session stats stored next to a dump, if any.
func logStats(ctx context.Context, bucket storageutil.ObjectHandler, key string) {
	var stats session.Stats
	err := storageutil.UnmarshalCompressed(ctx, bucket, key+".stats", &stats)
	if err != nil {
		if !errors.Is(err, storageutil.ErrObjectNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("can't read dump stats")
		}
		return
	}
	log.Info().
		Str("key", key).
		Int("distinct_roots", stats.DistinctRoots).
		Int("total_roots", stats.TotalRoots).
		Float64("ratio", stats.Ratio).
		Msg("dump stats")
}
