// Package diarize provides the speaker-segmentation abstraction for the
// analysis pipeline. A diarizer partitions audio into time intervals
// attributed to distinct speaker labels without identifying who each speaker
// is; labels are only stable within one recording.
package diarize

import (
	"context"
	"time"
)

// Turn is one speaker interval, timestamped in seconds from the start of the
// audio. Turns from different speakers may overlap.
type Turn struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Result is the complete output of one diarization call. Single-speaker
// audio yields one turn spanning the whole duration; no speaker change is
// never an error.
type Result struct {
	Turns    []Turn  `json:"turns"`
	Speakers int     `json:"speakers"`
	Duration float64 `json:"duration"`
}

// Options are optional diarization parameters.
type Options struct {
	// MinSpeakers and MaxSpeakers bound the clustering when > 0.
	MinSpeakers int
	MaxSpeakers int

	// Timeout overrides the default per-call timeout.
	Timeout time.Duration
}

// Diarizer segments an audio file into speaker turns.
//
// Implementations must respect context cancellation and classify failures
// the same way transcribers do: unreachable service is transient, unreadable
// audio is fatal. Diarization failure is non-fatal to the job as a whole;
// that policy lives in the orchestrator, not here.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string, opts *Options) (*Result, error)

	// HealthCheck verifies the backing service is operational.
	HealthCheck(ctx context.Context) (bool, error)

	// Name identifies the implementation in logs and metrics.
	Name() string
}
