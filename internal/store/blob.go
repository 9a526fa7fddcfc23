package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// BlobStore keeps document images on the local filesystem under a root
// directory. Paths are slash-separated keys like "batches/<id>/<doc>.png".
type BlobStore struct {
	root string
}

// NewBlobStore creates a filesystem blob store rooted at dir.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &BlobStore{root: dir}, nil
}

// Get reads a blob by path.
func (b *BlobStore) Get(_ context.Context, path string) ([]byte, error) {
	full, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("blob not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}
	return data, nil
}

// Put writes a blob, creating parent directories, and returns the path it
// is retrievable under.
func (b *BlobStore) Put(_ context.Context, path string, data []byte) (string, error) {
	full, err := b.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", path, err)
	}
	return path, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (b *BlobStore) Delete(_ context.Context, path string) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", path, err)
	}
	return nil
}

// DeletePrefix removes every blob under a prefix (a batch's folder).
// It returns the number of files removed.
func (b *BlobStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	full, err := b.resolve(prefix)
	if err != nil {
		return 0, err
	}
	count := 0
	err = filepath.Walk(full, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("walk prefix %s: %w", prefix, err)
	}
	if err := os.RemoveAll(full); err != nil {
		return 0, fmt.Errorf("delete prefix %s: %w", prefix, err)
	}
	return count, nil
}

// resolve maps a blob key to an absolute path, rejecting keys that would
// escape the root.
func (b *BlobStore) resolve(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid blob path: %s", path)
	}
	return filepath.Join(b.root, cleaned), nil
}
