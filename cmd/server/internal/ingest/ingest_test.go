package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

type memBlobs struct {
	blobs map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: make(map[string][]byte)}
}

func (m *memBlobs) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	sum := sha256.Sum256(data)
	ref := hex.EncodeToString(sum[:])
	m.blobs[ref] = data
	return ref, int64(len(data)), nil
}

type nopSeekCloser struct{ *bytes.Reader }

func (nopSeekCloser) Close() error { return nil }

func (m *memBlobs) Open(ctx context.Context, ref string) (io.ReadSeekCloser, error) {
	data, ok := m.blobs[ref]
	if !ok {
		return nil, os.ErrNotExist
	}
	return nopSeekCloser{bytes.NewReader(data)}, nil
}

func (m *memBlobs) Delete(ctx context.Context, ref string) error {
	delete(m.blobs, ref)
	return nil
}

// oneSecondWav writes a 1s 16kHz mono PCM file and returns its bytes.
func oneSecondWav(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, 16000),
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestAcceptWav(t *testing.T) {
	blobs := newMemBlobs()
	ing := New(blobs, nil, 0)

	data := oneSecondWav(t)
	acc, err := ing.Accept(context.Background(), Upload{Filename: "standup.wav", DeclaredSize: int64(len(data))}, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "wav", acc.Format)
	assert.Equal(t, int64(len(data)), acc.SizeBytes)
	assert.Equal(t, int64(1000), acc.DurationMs)
	assert.NotEmpty(t, acc.BlobRef)
	assert.Empty(t, acc.Language)
}

func TestAcceptContentAddressed(t *testing.T) {
	blobs := newMemBlobs()
	ing := New(blobs, nil, 0)

	data := oneSecondWav(t)
	first, err := ing.Accept(context.Background(), Upload{Filename: "a.wav"}, bytes.NewReader(data))
	require.NoError(t, err)
	second, err := ing.Accept(context.Background(), Upload{Filename: "b.wav"}, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, first.BlobRef, second.BlobRef)
}

func TestAcceptNonWavSkipsProbe(t *testing.T) {
	blobs := newMemBlobs()
	ing := New(blobs, nil, 0)

	acc, err := ing.Accept(context.Background(), Upload{Filename: "call.mp3"}, strings.NewReader("not really mpeg"))
	require.NoError(t, err)
	assert.Equal(t, "mp3", acc.Format)
	assert.Equal(t, int64(0), acc.DurationMs)
}

func TestAcceptRejectsUnsupportedFormat(t *testing.T) {
	blobs := newMemBlobs()
	ing := New(blobs, nil, 0)

	_, err := ing.Accept(context.Background(), Upload{Filename: "notes.txt"}, strings.NewReader("hello"))
	require.Error(t, err)
	assert.Equal(t, pipeline.KindUnsupportedFormat, pipeline.AsStageError(err).Kind)
	assert.Empty(t, blobs.blobs, "rejected upload must not be stored")
}

func TestAcceptRejectsDeclaredOversize(t *testing.T) {
	blobs := newMemBlobs()
	ing := New(blobs, nil, 64)

	_, err := ing.Accept(context.Background(), Upload{Filename: "big.wav", DeclaredSize: 65}, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, pipeline.KindPayloadTooLarge, pipeline.AsStageError(err).Kind)
	assert.Empty(t, blobs.blobs)
}

func TestAcceptRejectsOversizeStream(t *testing.T) {
	blobs := newMemBlobs()
	ing := New(blobs, nil, 16)

	// Declared size lies, stream does not.
	_, err := ing.Accept(context.Background(), Upload{Filename: "big.wav", DeclaredSize: 10}, strings.NewReader(strings.Repeat("x", 100)))
	require.Error(t, err)
	assert.Equal(t, pipeline.KindPayloadTooLarge, pipeline.AsStageError(err).Kind)
	assert.Empty(t, blobs.blobs, "oversize blob must be cleaned up")
}

func TestAcceptRejectsEmptyUpload(t *testing.T) {
	blobs := newMemBlobs()
	ing := New(blobs, nil, 0)

	_, err := ing.Accept(context.Background(), Upload{Filename: "empty.wav"}, strings.NewReader(""))
	require.Error(t, err)
	assert.Equal(t, pipeline.KindUnsupportedFormat, pipeline.AsStageError(err).Kind)
}

func TestNormalizeLanguageHint(t *testing.T) {
	lang, err := NormalizeLanguageHint("")
	require.NoError(t, err)
	assert.Empty(t, lang)

	lang, err = NormalizeLanguageHint("en-US")
	require.NoError(t, err)
	assert.Equal(t, "en-US", lang)

	lang, err = NormalizeLanguageHint("FR")
	require.NoError(t, err)
	assert.Equal(t, "fr", lang)

	_, err = NormalizeLanguageHint("not a language")
	require.Error(t, err)
	assert.Equal(t, pipeline.KindUnsupportedFormat, pipeline.AsStageError(err).Kind)
}

func TestAcceptLanguageHint(t *testing.T) {
	blobs := newMemBlobs()
	ing := New(blobs, nil, 0)

	acc, err := ing.Accept(context.Background(), Upload{Filename: "call.mp3", LanguageHint: "fr"}, strings.NewReader("audio"))
	require.NoError(t, err)
	assert.Equal(t, "fr", acc.Language)
}
