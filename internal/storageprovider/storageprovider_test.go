package storageprovider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"testing"

	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/google/uuid"
	"github.com/phayes/freeport"
	"github.com/pierrec/lz4/v4"

	"github.com/getsentry/opstractor/internal/storageutil"
	"github.com/getsentry/opstractor/internal/testutil"
)

const bucketName = "dumps"

var gcsServer *fakestorage.Server

type stats struct {
	DistinctRoots int `json:"distinct_roots"`
	TotalRoots    int `json:"total_roots"`
}

func TestMain(m *testing.M) {
	port, err := freeport.GetFreePort()
	if err != nil {
		log.Fatalf("no free port found: %v", err)
	}
	publicHost := fmt.Sprintf("127.0.0.1:%d", port)
	gcsServer, err = fakestorage.NewServerWithOptions(fakestorage.Options{
		PublicHost: publicHost,
		Host:       "127.0.0.1",
		Port:       uint16(port),
		Scheme:     "http",
	})
	if err != nil {
		log.Fatalf("couldn't set up gcs server: %v", err)
	}
	os.Setenv("STORAGE_EMULATOR_HOST", publicHost)
	gcsServer.CreateBucketWithOpts(fakestorage.CreateBucketOpts{Name: bucketName})

	code := m.Run()
	gcsServer.Stop()
	os.Exit(code)
}

func openProviders(t *testing.T) map[string]Provider {
	t.Helper()
	ctx := context.Background()
	providers := make(map[string]Provider)
	for name, location := range map[string]string{
		"GCS":  "gs://" + bucketName + "/runs",
		"Blob": "mem://",
	} {
		p, err := Open(ctx, location)
		if err != nil {
			t.Fatalf("we should be able to open %s: %v", location, err)
		}
		t.Cleanup(func() { _ = p.Close() })
		providers[name] = p
	}
	return providers
}

func TestUploadDump(t *testing.T) {
	ctx := context.Background()
	want := stats{DistinctRoots: 1, TotalRoots: 201}

	for name, p := range openProviders(t) {
		t.Run(name, func(t *testing.T) {
			objectName := uuid.New().String()
			if err := storageutil.CompressedWrite(ctx, p, objectName, want); err != nil {
				t.Fatalf("we should be able to write: %v", err)
			}
			var got stats
			if err := storageutil.UnmarshalCompressed(ctx, p, objectName, &got); err != nil {
				t.Fatalf("we should be able to read the object: %v", err)
			}
			if diff := testutil.Diff(got, want); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
		})
	}
}

func TestGcsPrefix(t *testing.T) {
	ctx := context.Background()
	p, err := Open(ctx, "gs://"+bucketName+"/runs")
	if err != nil {
		t.Fatalf("we should be able to open the bucket: %v", err)
	}
	defer p.Close()

	objectName := uuid.New().String()
	w, err := p.Put(ctx, objectName)
	if err != nil {
		t.Fatalf("we should be able to write: %v", err)
	}
	zw := storageutil.NewCompressedWriter(w)
	_, _ = zw.Write([]byte(`"model"->{"A"}`))
	if err := zw.Close(); err != nil {
		t.Fatalf("we should be able to close the writer: %v", err)
	}

	object, err := gcsServer.GetObject(bucketName, "runs/"+objectName)
	if err != nil {
		t.Fatalf("we should be able to read the object: %v", err)
	}
	data, err := io.ReadAll(lz4.NewReader(bytes.NewReader(object.Content)))
	if err != nil {
		t.Fatalf("we should be able to uncompress the data: %v", err)
	}
	if string(data) != `"model"->{"A"}` {
		t.Fatalf("unexpected object content %q", data)
	}
}

func TestGetNotFound(t *testing.T) {
	for name, p := range openProviders(t) {
		t.Run(name, func(t *testing.T) {
			_, err := p.Get(context.Background(), uuid.New().String())
			if !errors.Is(err, storageutil.ErrObjectNotFound) {
				t.Fatalf("expected ErrObjectNotFound, got %v", err)
			}
		})
	}
}

func TestFileBucket(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p, err := Open(ctx, "file://"+dir)
	if err != nil {
		t.Fatalf("we should be able to open the bucket: %v", err)
	}
	defer p.Close()

	w, err := p.Put(ctx, "dump.bin")
	if err != nil {
		t.Fatalf("we should be able to write: %v", err)
	}
	_, _ = w.Write([]byte{0x02, 0x00})
	if err := w.Close(); err != nil {
		t.Fatalf("we should be able to close the writer: %v", err)
	}
	r, err := p.Get(ctx, "dump.bin")
	if err != nil {
		t.Fatalf("we should be able to read the object: %v", err)
	}
	defer r.Close()
	if r.Size() != 2 {
		t.Fatalf("expected 2 bytes, got %d", r.Size())
	}
}

func TestIsBucketURL(t *testing.T) {
	for location, want := range map[string]bool{
		"gs://dumps":       true,
		"mem://":           true,
		"file:///tmp/runs": true,
		"stderr":           false,
		"/tmp/model.json":  false,
		"-":                false,
	} {
		if got := IsBucketURL(location); got != want {
			t.Errorf("%q: expected %v, got %v", location, want, got)
		}
	}
}
