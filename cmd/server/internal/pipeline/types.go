// Package pipeline defines the domain model for the meeting analysis
// pipeline: raw transcriber and diarizer outputs, the aligned speaker-labeled
// transcript, the structured analysis result, and the job state machine that
// the orchestrator drives through it.
package pipeline

// JobStatus tracks each stage of an analysis job.
type JobStatus string

const (
	StatusPending      JobStatus = "pending"
	StatusTranscribing JobStatus = "transcribing"
	StatusDiarizing    JobStatus = "diarizing"
	StatusAligning     JobStatus = "aligning"
	StatusSummarizing  JobStatus = "summarizing"
	StatusRendering    JobStatus = "rendering"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "failed"
	StatusCancelled    JobStatus = "cancelled"
)

// Terminal reports whether the status has no outgoing transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ValidTransition enforces the allowed job state machine edges. Failed and
// cancelled are reachable from every non-terminal state; everything else is
// strictly sequential.
func ValidTransition(from, to JobStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed || to == StatusCancelled {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusTranscribing
	case StatusTranscribing:
		return to == StatusDiarizing
	case StatusDiarizing:
		return to == StatusAligning
	case StatusAligning:
		return to == StatusSummarizing
	case StatusSummarizing:
		return to == StatusRendering
	case StatusRendering:
		return to == StatusCompleted
	default:
		return false
	}
}

// TranscriptSegment is raw transcriber output: a timestamped span of text
// with no speaker attribution.
type TranscriptSegment struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// SpeakerTurn is raw diarizer output: a time interval attributed to one
// speaker label. Labels are stable within a job but carry no identity.
type SpeakerTurn struct {
	Speaker string `json:"speaker"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

// Utterance is a contiguous, speaker-attributed span of text produced by
// merging transcript segments with speaker turns. An aligned transcript is an
// ordered sequence of utterances, non-decreasing in StartMs, with
// StartMs <= EndMs for every element.
type Utterance struct {
	Speaker string `json:"speaker"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// ActionItem is one task extracted from the meeting, with an optional owner.
type ActionItem struct {
	Owner string `json:"owner,omitempty"`
	Text  string `json:"text"`
}

// AnalysisResult is the structured output of the summarization stage.
// Ordering of topics, decisions, action items and follow-ups preserves the
// model's emission order; nothing downstream reorders or deduplicates.
// Immutable once produced for a job.
type AnalysisResult struct {
	Summary     string       `json:"summary"`
	Topics      []string     `json:"topics"`
	Decisions   []string     `json:"decisions"`
	ActionItems []ActionItem `json:"action_items"`
	FollowUps   []string     `json:"follow_ups,omitempty"`
}

// DefaultSpeakerLabel is the synthetic label substituted when diarization is
// unavailable and the whole recording is attributed to one speaker.
const DefaultSpeakerLabel = "Speaker 1"

// SyntheticTurns builds the single-speaker fallback covering the full
// recording, used when diarization failed or returned nothing.
func SyntheticTurns(durationMs int64) []SpeakerTurn {
	if durationMs < 0 {
		durationMs = 0
	}
	return []SpeakerTurn{{Speaker: DefaultSpeakerLabel, StartMs: 0, EndMs: durationMs}}
}
