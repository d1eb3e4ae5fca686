package storageutil

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"
)

// ErrObjectNotFound indicates an object was not found.
var ErrObjectNotFound = errors.New("object not found")

// lz4 frame magic number, little-endian.
var lz4Magic = []byte{0x04, 0x22, 0x4d, 0x18}

type ReadSizeCloser interface {
	io.Reader
	io.Closer
	Size() int64
}

// ObjectHandler provides common interface for multiple storage providers.
type ObjectHandler interface {
	// Put writes a file to the storage provider with name being the path.
	// The object is only complete once the writer is closed.
	Put(ctx context.Context, name string) (io.WriteCloser, error)
	// Get reads a file from the storage provider with name being the path.
	// If a key was not found, it will return ErrObjectNotFound.
	Get(ctx context.Context, name string) (ReadSizeCloser, error)
}

type compressedWriter struct {
	*lz4.Writer
	w io.WriteCloser
}

// NewCompressedWriter compresses everything written to w. Closing it closes
// w.
func NewCompressedWriter(w io.WriteCloser) io.WriteCloser {
	zw := lz4.NewWriter(w)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	return &compressedWriter{Writer: zw, w: w}
}

func (cw *compressedWriter) Close() error {
	if err := cw.Writer.Close(); err != nil {
		_ = cw.w.Close()
		return err
	}
	return cw.w.Close()
}

// NewReader returns a reader over r, decompressing it when it starts with an
// lz4 frame.
func NewReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(lz4Magic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if bytes.Equal(magic, lz4Magic) {
		return lz4.NewReader(br), nil
	}
	return br, nil
}

// CompressedWrite compresses and writes d as JSON.
func CompressedWrite(ctx context.Context, b ObjectHandler, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ow, err := b.Put(ctx, objectName)
	if err != nil {
		return err
	}
	zw := NewCompressedWriter(ow)
	err = gojson.NewEncoder(zw).Encode(d)
	if err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// UnmarshalCompressed reads compressed JSON data and unmarshals it.
func UnmarshalCompressed(ctx context.Context, b ObjectHandler, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	or, err := b.Get(ctx, objectName)
	if err != nil {
		return err
	}
	defer or.Close()
	zr := lz4.NewReader(or)
	return gojson.NewDecoder(zr).Decode(d)
}
