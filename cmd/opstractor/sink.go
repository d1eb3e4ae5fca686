package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/getsentry/opstractor/internal/session"
	"github.com/getsentry/opstractor/internal/storageprovider"
	"github.com/getsentry/opstractor/internal/storageutil"
)

// sink is where the report goes. Reports written to a bucket are only
// stored once the sink is finished.
type sink struct {
	io.Writer

	location string
	key      string
	bucket   storageprovider.Provider
	closer   io.Closer

	once sync.Once
	err  error
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openSink(ctx context.Context, cfg ServiceConfig) (*sink, error) {
	var w io.WriteCloser
	s := &sink{location: cfg.Output}
	switch {
	case cfg.Output == "stderr":
		s.location = "stderr"
		s.Writer, s.closer = os.Stderr, nopCloser{}
		return s, nil
	case cfg.Output == "" || cfg.Output == "stdout" || cfg.Output == "-":
		s.location = "stdout"
		s.Writer, s.closer = os.Stdout, nopCloser{}
		return s, nil
	case storageprovider.IsBucketURL(cfg.Output):
		bucket, err := storageprovider.Open(ctx, cfg.Output)
		if err != nil {
			return nil, err
		}
		s.key = cfg.objectKey()
		w, err = bucket.Put(ctx, s.key)
		if err != nil {
			_ = bucket.Close()
			return nil, err
		}
		s.bucket = bucket
		s.location = strings.TrimSuffix(cfg.Output, "/") + "/" + s.key
	default:
		f, err := os.Create(cfg.Output)
		if err != nil {
			return nil, err
		}
		w = f
	}
	if cfg.Compress {
		w = storageutil.NewCompressedWriter(w)
	}
	s.Writer, s.closer = w, w
	return s, nil
}

// finish completes the report. For buckets, stats are stored next to it.
// Only the first call has an effect.
func (s *sink) finish(ctx context.Context, stats session.Stats) error {
	s.once.Do(func() {
		s.err = s.closer.Close()
		if s.bucket == nil {
			return
		}
		if s.err == nil {
			s.err = storageutil.CompressedWrite(ctx, s.bucket, statsKey(s.key), stats)
		}
		s.err = errors.Join(s.err, s.bucket.Close())
	})
	return s.err
}

func statsKey(key string) string {
	return key + ".stats"
}
