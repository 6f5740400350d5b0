// Package ingest validates uploaded recordings and hands them to blob
// storage. Validation failures carry the error kind the API layer reports,
// so a rejected upload never creates a job.
package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

// DefaultMaxUploadBytes caps recordings at 500MB.
const DefaultMaxUploadBytes = 500 * 1024 * 1024

// allowedFormats is the audio container allow-list, keyed by lowercase
// filename extension.
var allowedFormats = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
}

// BlobStore persists raw audio. Put is content-addressed: the returned ref
// identifies the stored bytes and is stable across identical uploads.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (ref string, size int64, err error)
	Open(ctx context.Context, ref string) (io.ReadSeekCloser, error)
	Delete(ctx context.Context, ref string) error
}

// DurationProber reports the playable length of a stored recording.
type DurationProber interface {
	ProbeMs(ctx context.Context, blobs BlobStore, ref, format string) (int64, error)
}

// Upload describes an incoming recording before validation.
type Upload struct {
	Filename     string
	DeclaredSize int64
	LanguageHint string
}

// Accepted is a validated, stored recording ready for a job row.
type Accepted struct {
	BlobRef    string
	Format     string
	SizeBytes  int64
	DurationMs int64
	Language   string
}

// Ingestor validates and stores uploads.
type Ingestor struct {
	blobs    BlobStore
	prober   DurationProber
	maxBytes int64
}

// New creates an Ingestor. maxBytes <= 0 selects DefaultMaxUploadBytes.
func New(blobs BlobStore, prober DurationProber, maxBytes int64) *Ingestor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if prober == nil {
		prober = WavProber{}
	}
	return &Ingestor{blobs: blobs, prober: prober, maxBytes: maxBytes}
}

// Accept validates the upload, stores the audio content-addressed, and
// probes its duration. The reader is consumed fully on success.
func (i *Ingestor) Accept(ctx context.Context, up Upload, r io.Reader) (*Accepted, error) {
	format, err := i.validate(up)
	if err != nil {
		return nil, err
	}
	lang, err := NormalizeLanguageHint(up.LanguageHint)
	if err != nil {
		return nil, err
	}

	// The declared size check above is advisory (clients can lie), so the
	// stream itself is capped too.
	limited := io.LimitReader(r, i.maxBytes+1)
	ref, size, err := i.blobs.Put(ctx, limited)
	if err != nil {
		return nil, pipeline.NewStageError(pipeline.KindInternal, "ingest", "failed to store audio", err)
	}
	if size > i.maxBytes {
		_ = i.blobs.Delete(ctx, ref)
		return nil, pipeline.NewStageError(pipeline.KindPayloadTooLarge, "ingest",
			fmt.Sprintf("upload exceeds %d byte limit", i.maxBytes), nil)
	}
	if size == 0 {
		_ = i.blobs.Delete(ctx, ref)
		return nil, pipeline.NewStageError(pipeline.KindUnsupportedFormat, "ingest", "empty upload", nil)
	}

	durationMs, err := i.prober.ProbeMs(ctx, i.blobs, ref, format)
	if err != nil {
		// Duration is best-effort metadata; the transcriber decodes for real.
		durationMs = 0
	}

	return &Accepted{
		BlobRef:    ref,
		Format:     format,
		SizeBytes:  size,
		DurationMs: durationMs,
		Language:   lang,
	}, nil
}

func (i *Ingestor) validate(up Upload) (string, error) {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !allowedFormats[ext] {
		return "", pipeline.NewStageError(pipeline.KindUnsupportedFormat, "ingest",
			fmt.Sprintf("unsupported audio format %q", ext), nil)
	}
	if up.DeclaredSize > i.maxBytes {
		return "", pipeline.NewStageError(pipeline.KindPayloadTooLarge, "ingest",
			fmt.Sprintf("upload exceeds %d byte limit", i.maxBytes), nil)
	}
	return strings.TrimPrefix(ext, "."), nil
}

// NormalizeLanguageHint validates an optional BCP 47 language hint and
// returns its canonical form. Empty means autodetect downstream.
func NormalizeLanguageHint(hint string) (string, error) {
	if hint == "" {
		return "", nil
	}
	tag, err := language.Parse(hint)
	if err != nil {
		return "", pipeline.NewStageError(pipeline.KindUnsupportedFormat, "ingest",
			fmt.Sprintf("invalid language hint %q", hint), err)
	}
	return tag.String(), nil
}
