package store

import (
	"time"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

// Job is one analysis job row. Warnings accumulate non-fatal degradations
// (e.g. diarization fallback) and are surfaced on the status endpoint.
type Job struct {
	ID           string             `json:"id"`
	OwnerID      string             `json:"owner_id"`
	Title        string             `json:"title,omitempty"`
	Status       pipeline.JobStatus `json:"status"`
	Language     string             `json:"language,omitempty"`
	BlobRef      string             `json:"-"`
	Format       string             `json:"format"`
	SizeBytes    int64              `json:"size_bytes"`
	DurationMs   int64              `json:"duration_ms"`
	ErrorKind    pipeline.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}

// Stage artifact names. Each completed stage persists its output under one of
// these keys so an interrupted job resumes from the last finished stage.
const (
	ArtifactSegments   = "segments"
	ArtifactTurns      = "turns"
	ArtifactUtterances = "utterances"
	ArtifactResult     = "result"

	// ArtifactRawResponse holds the raw completion payload when the
	// summarizer response could not be parsed, kept for diagnosis.
	ArtifactRawResponse = "raw_response"
)
