package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BlobStore keeps raw audio on the filesystem, one file per blob, named by
// the sha256 of its content. Identical uploads share a file.
type BlobStore struct {
	dir string
}

// NewBlobStore creates the blob directory if needed.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &BlobStore{dir: dir}, nil
}

// Put streams r into storage and returns the content hash as the ref. The
// data lands in a temp file first and is renamed into place, so a partial
// write never leaves a readable blob.
func (b *BlobStore) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(b.dir, "incoming-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("write blob: %w", err)
	}

	ref := hex.EncodeToString(h.Sum(nil))
	final := filepath.Join(b.dir, ref)
	if _, statErr := os.Stat(final); statErr == nil {
		// Content already stored; the temp copy is redundant.
		return ref, size, nil
	}
	if err := os.Rename(tmpName, final); err != nil {
		return "", 0, fmt.Errorf("finalize blob: %w", err)
	}
	return ref, size, nil
}

// Path returns the filesystem location of a blob. The file may not exist;
// callers that need the content should use Open.
func (b *BlobStore) Path(ref string) string {
	return filepath.Join(b.dir, filepath.Base(ref))
}

// Open returns a reader over the stored blob.
func (b *BlobStore) Open(ctx context.Context, ref string) (io.ReadSeekCloser, error) {
	f, err := os.Open(filepath.Join(b.dir, filepath.Base(ref)))
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", ref, err)
	}
	return f, nil
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (b *BlobStore) Delete(ctx context.Context, ref string) error {
	err := os.Remove(filepath.Join(b.dir, filepath.Base(ref)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", ref, err)
	}
	return nil
}
