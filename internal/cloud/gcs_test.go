package cloud

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

type memWriteCloser struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (w *memWriteCloser) Close() error {
	w.closed = true
	return w.closeErr
}

type fakeIterator struct {
	attrs []*gstorage.ObjectAttrs
	idx   int
}

func (it *fakeIterator) Next() (*gstorage.ObjectAttrs, error) {
	if it.idx >= len(it.attrs) {
		return nil, iterator.Done
	}
	a := it.attrs[it.idx]
	it.idx++
	return a, nil
}

func TestGCSUpload(t *testing.T) {
	w := &memWriteCloser{}
	b := &gcsBackend{
		bucket: "bkt",
		newWriter: func(context.Context, string, string) io.WriteCloser {
			return w
		},
	}

	content := []byte("archived lines")
	if err := b.Upload(context.Background(), "k", bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !w.closed || !bytes.Equal(w.Bytes(), content) {
		t.Fatalf("closed=%v stored=%q", w.closed, w.Bytes())
	}
}

func TestGCSUploadFinalizeError(t *testing.T) {
	w := &memWriteCloser{closeErr: errors.New("quota")}
	b := &gcsBackend{
		bucket: "bkt",
		newWriter: func(context.Context, string, string) io.WriteCloser {
			return w
		},
	}

	if err := b.Upload(context.Background(), "k", bytes.NewReader([]byte("x")), 1); err == nil {
		t.Fatal("expected finalize error")
	}
}

func TestGCSList(t *testing.T) {
	var gotPrefix string
	b := &gcsBackend{
		bucket: "bkt",
		newIterator: func(_ context.Context, _, prefix string) gcsObjectIterator {
			gotPrefix = prefix
			return &fakeIterator{attrs: []*gstorage.ObjectAttrs{
				{Name: "logs/a.gz", Size: 10},
				{Name: "logs/b.gz", Size: 20},
			}}
		},
	}

	objects, err := b.List(context.Background(), "logs")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotPrefix != "logs/" {
		t.Fatalf("prefix = %q", gotPrefix)
	}
	if len(objects) != 2 || objects[1].Key != "logs/b.gz" {
		t.Fatalf("objects = %+v", objects)
	}
}
