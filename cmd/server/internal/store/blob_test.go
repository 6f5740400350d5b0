package store

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	blobs, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, size, err := blobs.Put(ctx, strings.NewReader("audio bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)
	assert.Len(t, ref, 64)

	f, err := blobs.Open(ctx, ref)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "audio bytes", string(data))
}

func TestBlobStoreContentAddressed(t *testing.T) {
	blobs, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first, _, err := blobs.Put(ctx, strings.NewReader("same content"))
	require.NoError(t, err)
	second, _, err := blobs.Put(ctx, strings.NewReader("same content"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, _, err := blobs.Put(ctx, strings.NewReader("different content"))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestBlobStoreDelete(t *testing.T) {
	blobs, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, _, err := blobs.Put(ctx, strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, blobs.Delete(ctx, ref))

	_, err = blobs.Open(ctx, ref)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Double delete is fine.
	assert.NoError(t, blobs.Delete(ctx, ref))
}

func TestBlobStoreNoPartialBlobs(t *testing.T) {
	dir := t.TempDir()
	blobs, err := NewBlobStore(dir)
	require.NoError(t, err)

	_, _, err = blobs.Put(context.Background(), failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed upload must not leave files behind")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
