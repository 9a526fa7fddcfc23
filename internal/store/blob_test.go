package store

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStore(t *testing.T) {
	b, err := NewBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new blob store: %v", err)
	}
	ctx := context.Background()

	t.Run("put and get round trip", func(t *testing.T) {
		data := []byte("png bytes")
		path, err := b.Put(ctx, "batches/b1/d1.png", data)
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if path != "batches/b1/d1.png" {
			t.Errorf("put returned %q", path)
		}
		got, err := b.Get(ctx, path)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("round trip mismatch")
		}
	})

	t.Run("missing blob", func(t *testing.T) {
		if _, err := b.Get(ctx, "nope.png"); err == nil {
			t.Error("expected error for missing blob")
		}
	})

	t.Run("delete prefix removes batch folder", func(t *testing.T) {
		b.Put(ctx, "batches/b2/d1.png", []byte("a"))
		b.Put(ctx, "batches/b2/d2.png", []byte("b"))
		n, err := b.DeletePrefix(ctx, "batches/b2")
		if err != nil {
			t.Fatalf("delete prefix: %v", err)
		}
		if n != 2 {
			t.Errorf("deleted %d files, want 2", n)
		}
		if _, err := b.Get(ctx, "batches/b2/d1.png"); err == nil {
			t.Error("blob should be gone")
		}
	})

	t.Run("delete missing prefix is a no-op", func(t *testing.T) {
		n, err := b.DeletePrefix(ctx, "batches/never")
		if err != nil || n != 0 {
			t.Errorf("got (%d, %v), want (0, nil)", n, err)
		}
	})

	t.Run("rejects escaping paths", func(t *testing.T) {
		if _, err := b.Put(ctx, "../outside.png", []byte("x")); err == nil {
			t.Error("expected error for path escaping the root")
		}
		if _, err := b.Get(ctx, "/etc/passwd"); err == nil {
			t.Error("expected error for absolute path")
		}
	})
}
