// Package transcribe provides the speech-to-text abstraction for the
// analysis pipeline. It defines a standard interface and wire types so the
// orchestrator can run against a whisper HTTP service in production and a
// mock in tests or degraded deployments.
package transcribe

import (
	"context"
	"time"
)

// Segment is one continuous speech interval, timestamped in seconds from the
// start of the audio. The transcriber carries no speaker attribution.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the complete output of one transcription call. An empty Segments
// slice is a valid result for silent audio, not an error.
type Result struct {
	Segments []Segment `json:"segments"`
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
}

// Options are optional transcription parameters. All fields have sensible
// defaults in the implementations.
type Options struct {
	// Model selects the whisper model (e.g. "base", "large-v3").
	Model string

	// Language forces a transcription language (ISO 639-1 code). Empty means
	// auto-detect.
	Language string

	// Prompt provides context to improve accuracy on domain terminology.
	Prompt string

	// Timeout overrides the default per-call timeout.
	Timeout time.Duration
}

// Transcriber converts an audio file into timestamped text.
//
// Implementations must respect context cancellation, classify failures as
// transient (service unreachable) or fatal (audio unreadable), and treat
// silence as an empty Result rather than an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts *Options) (*Result, error)

	// HealthCheck verifies the backing service is operational. Kept
	// lightweight so it can run from a readiness probe.
	HealthCheck(ctx context.Context) (bool, error)

	// Name identifies the implementation in logs and metrics.
	Name() string
}
