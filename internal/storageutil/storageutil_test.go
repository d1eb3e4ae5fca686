package storageutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/pierrec/lz4/v4"

	"github.com/getsentry/opstractor/internal/testutil"
)

type object struct {
	*bytes.Reader
}

func (object) Close() error { return nil }

type objectWriter struct {
	bytes.Buffer
	name    string
	objects map[string][]byte
}

func (w *objectWriter) Close() error {
	w.objects[w.name] = w.Bytes()
	return nil
}

type memoryHandler map[string][]byte

func (h memoryHandler) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	return &objectWriter{name: name, objects: h}, nil
}

func (h memoryHandler) Get(ctx context.Context, name string) (ReadSizeCloser, error) {
	b, ok := h[name]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return object{bytes.NewReader(b)}, nil
}

type stats struct {
	DistinctRoots int     `json:"distinct_roots"`
	TotalRoots    int     `json:"total_roots"`
	Ratio         float64 `json:"ratio"`
}

func TestCompressedWriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := memoryHandler{}
	want := stats{DistinctRoots: 1, TotalRoots: 201, Ratio: 1.0 / 201}
	if err := CompressedWrite(ctx, h, "run.stats", want); err != nil {
		t.Fatalf("we should be able to write: %v", err)
	}
	if !bytes.HasPrefix(h["run.stats"], lz4Magic) {
		t.Fatal("object should be compressed")
	}
	var got stats
	if err := UnmarshalCompressed(ctx, h, "run.stats", &got); err != nil {
		t.Fatalf("we should be able to read the object: %v", err)
	}
	if diff := testutil.Diff(got, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestUnmarshalCompressedNotFound(t *testing.T) {
	var got stats
	err := UnmarshalCompressed(context.Background(), memoryHandler{}, "missing", &got)
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestNewReader(t *testing.T) {
	data := []byte(`{"name":"model","value":0}`)
	var compressed bytes.Buffer
	zw := lz4.NewWriter(&compressed)
	_, _ = zw.Write(data)
	if err := zw.Close(); err != nil {
		t.Fatalf("we should be able to close the writer: %v", err)
	}

	tests := []struct {
		name  string
		input []byte
		want  []byte
	}{
		{name: "plain", input: data, want: data},
		{name: "compressed", input: compressed.Bytes(), want: data},
		{name: "short", input: []byte{0x02}, want: []byte{0x02}},
		{name: "empty", input: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(bytes.NewReader(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCompressedWriterClosesUnderlying(t *testing.T) {
	h := memoryHandler{}
	ow, _ := h.Put(context.Background(), "dump")
	w := NewCompressedWriter(ow)
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := h["dump"]; ok {
		t.Fatal("object should only be stored on close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := NewReader(bytes.NewReader(h["dump"]))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := io.ReadAll(r)
	if string(got) != "payload" {
		t.Fatalf("expected payload, got %q", got)
	}
}
