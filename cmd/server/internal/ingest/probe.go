package ingest

import (
	"context"

	"github.com/go-audio/wav"
)

// WavProber reads the duration of stored WAV blobs. Other containers would
// need a real decoder, so they report zero and the pipeline measures duration
// from the transcript instead.
type WavProber struct{}

func (WavProber) ProbeMs(ctx context.Context, blobs BlobStore, ref, format string) (int64, error) {
	if format != "wav" {
		return 0, nil
	}
	f, err := blobs.Open(ctx, ref)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	d, err := dec.Duration()
	if err != nil {
		return 0, err
	}
	return d.Milliseconds(), nil
}
