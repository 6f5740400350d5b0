// Package orchestrator drives analysis jobs through the pipeline state
// machine: transcription and diarization run concurrently, their outputs are
// aligned into a speaker-labeled transcript, summarized, and rendered.
// Each completed stage persists its artifact so a restarted server resumes
// from the last finished stage instead of repeating work.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/diarize"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/metrics"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/report"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/store"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/summarize"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/transcribe"
	"github.com/yahyachammami/meetscribe/pkg/logger"
)

// Blobs is the slice of blob storage the orchestrator needs: locating audio
// for the model adapters.
type Blobs interface {
	Path(ref string) string
}

// Config tunes job execution.
type Config struct {
	MaxConcurrentJobs int
	MergeGapMs        int64
	RetryAttempts     int
	RetryBackoffMs    int64
	MinSpeakers       int
	MaxSpeakers       int
	WhisperModel      string
}

// ApplyDefaults fills zero fields with working values.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrentJobs < 1 {
		c.MaxConcurrentJobs = 4
	}
	if c.MergeGapMs <= 0 {
		c.MergeGapMs = pipeline.DefaultMergeGapMs
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoffMs <= 0 {
		c.RetryBackoffMs = 500
	}
}

// Orchestrator runs jobs against the configured model adapters.
type Orchestrator struct {
	cfg         Config
	store       *store.Store
	blobs       Blobs
	transcriber transcribe.Transcriber
	diarizer    diarize.Diarizer
	summarizer  summarize.Summarizer
	log         *slog.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// New creates an orchestrator. Call Shutdown to stop accepting work and wait
// for in-flight jobs.
func New(cfg Config, st *store.Store, blobs Blobs, tr transcribe.Transcriber,
	dia diarize.Diarizer, sum summarize.Summarizer, log *slog.Logger) *Orchestrator {
	cfg.ApplyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:         cfg,
		store:       st,
		blobs:       blobs,
		transcriber: tr,
		diarizer:    dia,
		summarizer:  sum,
		log:         log,
		sem:         semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
		cancels:     make(map[string]context.CancelFunc),
		baseCtx:     ctx,
		baseCancel:  cancel,
	}
}

// Enqueue schedules a job for execution. The call returns immediately; the
// job waits for a concurrency slot.
func (o *Orchestrator) Enqueue(jobID string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		if err := o.sem.Acquire(o.baseCtx, 1); err != nil {
			return // shutting down
		}
		defer o.sem.Release(1)

		jobCtx, cancel := context.WithCancel(o.baseCtx)
		defer cancel()
		o.mu.Lock()
		o.cancels[jobID] = cancel
		o.mu.Unlock()
		defer func() {
			o.mu.Lock()
			delete(o.cancels, jobID)
			o.mu.Unlock()
		}()

		o.runJob(jobCtx, jobID)
	}()
}

// Cancel moves a job to cancelled and interrupts it if running. Returns
// store.ErrConflict when the job is already terminal.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	if err := o.store.SetCancelled(ctx, jobID); err != nil {
		return err
	}
	o.CancelRunning(jobID)
	metrics.RecordJobFinished(string(pipeline.StatusCancelled))
	return nil
}

// CancelRunning signals the job's in-flight stage work to stop without
// recording a terminal state. Used when the job row itself is being deleted.
func (o *Orchestrator) CancelRunning(jobID string) {
	o.mu.Lock()
	if cancel, ok := o.cancels[jobID]; ok {
		cancel()
	}
	o.mu.Unlock()
}

// ResumeAll re-enqueues every non-terminal job. Called once at startup.
func (o *Orchestrator) ResumeAll(ctx context.Context) error {
	jobs, err := o.store.ListUnfinished(ctx)
	if err != nil {
		return fmt.Errorf("list unfinished jobs: %w", err)
	}
	for _, job := range jobs {
		o.log.Info("resuming job", "job_id", job.ID, "status", string(job.Status))
		o.Enqueue(job.ID)
	}
	return nil
}

// Shutdown stops accepting work, cancels running jobs, and waits for them.
func (o *Orchestrator) Shutdown() {
	o.baseCancel()
	o.wg.Wait()
}

// Wait blocks until all enqueued jobs finished. Test hook.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) runJob(ctx context.Context, jobID string) {
	job, err := o.store.GetJob(context.Background(), jobID)
	if err != nil {
		o.log.Error("job vanished before execution", "job_id", jobID, "error", err)
		return
	}
	if job.Status.Terminal() {
		return
	}

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	status := job.Status
	if status == pipeline.StatusPending {
		if err := o.advance(jobID, &status, pipeline.StatusTranscribing); err != nil {
			return
		}
	}

	segments, turns, err := o.forkStage(ctx, job, &status)
	if err != nil {
		o.fail(jobID, err)
		return
	}

	utterances, err := o.alignStage(ctx, job, &status, segments, turns)
	if err != nil {
		o.fail(jobID, err)
		return
	}

	result, err := o.summarizeStage(ctx, job, &status, utterances)
	if err != nil {
		o.fail(jobID, err)
		return
	}

	if err := o.renderStage(job, &status, result, utterances); err != nil {
		o.fail(jobID, err)
		return
	}

	if err := o.advance(jobID, &status, pipeline.StatusCompleted); err != nil {
		return
	}
	metrics.RecordJobFinished(string(pipeline.StatusCompleted))
	o.log.Info("job completed", "job_id", jobID)
}

// forkStage runs transcription and diarization concurrently. Transcription
// failure fails the job; diarization failure degrades to a single synthetic
// speaker with a recorded warning. The job status reads transcribing until
// the transcriber finishes, then diarizing until the diarizer joins.
func (o *Orchestrator) forkStage(ctx context.Context, job *store.Job, status *pipeline.JobStatus) ([]pipeline.TranscriptSegment, []pipeline.SpeakerTurn, error) {
	var segments []pipeline.TranscriptSegment
	var turns []pipeline.SpeakerTurn

	haveSegs, err := o.store.LoadArtifact(ctx, job.ID, store.ArtifactSegments, &segments)
	if err != nil {
		return nil, nil, err
	}
	haveTurns, err := o.store.LoadArtifact(ctx, job.ID, store.ArtifactTurns, &turns)
	if err != nil {
		return nil, nil, err
	}

	var diarErr error
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if !haveSegs {
			segs, err := o.transcribeStage(gctx, job)
			if err != nil {
				return err
			}
			segments = segs
		}
		// Transcription is done; the remaining wait is on the diarizer.
		if *status == pipeline.StatusTranscribing {
			return o.advance(job.ID, status, pipeline.StatusDiarizing)
		}
		return nil
	})

	g.Go(func() error {
		if haveTurns {
			return nil
		}
		result, err := o.diarizeStage(gctx, job)
		if err != nil {
			diarErr = err // non-fatal, resolved after the join
			return nil
		}
		turns = result
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if !haveTurns {
		if diarErr != nil || len(turns) == 0 {
			durationMs := job.DurationMs
			for _, s := range segments {
				if s.EndMs > durationMs {
					durationMs = s.EndMs
				}
			}
			turns = pipeline.SyntheticTurns(durationMs)
			warning := "diarization unavailable, attributing all speech to a single speaker"
			if err := o.store.AddWarning(context.Background(), job.ID, warning); err != nil {
				o.log.Error("failed to record warning", "job_id", job.ID, "error", err)
			}
			if diarErr != nil {
				se := pipeline.AsStageError(diarErr)
				metrics.RecordStageError("diarize", string(se.Kind))
				o.log.Warn("diarization degraded", "job_id", job.ID, "error_kind", string(se.Kind), "error", diarErr.Error())
			}
		}
		if err := o.store.SaveArtifact(context.Background(), job.ID, store.ArtifactTurns, turns); err != nil {
			return nil, nil, err
		}
	}

	if err := o.advance(job.ID, status, pipeline.StatusAligning); err != nil {
		return nil, nil, err
	}
	return segments, turns, nil
}

func (o *Orchestrator) transcribeStage(ctx context.Context, job *store.Job) ([]pipeline.TranscriptSegment, error) {
	var result *transcribe.Result
	err := o.withRetry(ctx, job.ID, "transcribe", retriableKind, func(ctx context.Context) error {
		var err error
		result, err = o.transcriber.Transcribe(ctx, o.blobs.Path(job.BlobRef), &transcribe.Options{
			Model:    o.cfg.WhisperModel,
			Language: job.Language,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	segments := make([]pipeline.TranscriptSegment, 0, len(result.Segments))
	for _, s := range result.Segments {
		segments = append(segments, pipeline.TranscriptSegment{
			StartMs: secondsToMs(s.Start),
			EndMs:   secondsToMs(s.End),
			Text:    s.Text,
		})
	}

	if err := o.store.SaveArtifact(context.Background(), job.ID, store.ArtifactSegments, segments); err != nil {
		return nil, err
	}
	if job.Language == "" && result.Language != "" && result.Language != "unknown" {
		if err := o.store.SetLanguage(context.Background(), job.ID, result.Language); err != nil {
			o.log.Error("failed to record language", "job_id", job.ID, "error", err)
		} else {
			job.Language = result.Language
		}
	}
	if job.DurationMs == 0 && result.Duration > 0 {
		durationMs := secondsToMs(result.Duration)
		if err := o.store.SetDuration(context.Background(), job.ID, durationMs); err != nil {
			o.log.Error("failed to record duration", "job_id", job.ID, "error", err)
		} else {
			job.DurationMs = durationMs
		}
	}
	return segments, nil
}

func (o *Orchestrator) diarizeStage(ctx context.Context, job *store.Job) ([]pipeline.SpeakerTurn, error) {
	var result *diarize.Result
	err := o.withRetry(ctx, job.ID, "diarize", retriableKind, func(ctx context.Context) error {
		var err error
		result, err = o.diarizer.Diarize(ctx, o.blobs.Path(job.BlobRef), &diarize.Options{
			MinSpeakers: o.cfg.MinSpeakers,
			MaxSpeakers: o.cfg.MaxSpeakers,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	turns := make([]pipeline.SpeakerTurn, 0, len(result.Turns))
	for _, t := range result.Turns {
		turns = append(turns, pipeline.SpeakerTurn{
			Speaker: t.Speaker,
			StartMs: secondsToMs(t.Start),
			EndMs:   secondsToMs(t.End),
		})
	}
	return turns, nil
}

func (o *Orchestrator) alignStage(ctx context.Context, job *store.Job, status *pipeline.JobStatus,
	segments []pipeline.TranscriptSegment, turns []pipeline.SpeakerTurn) ([]pipeline.Utterance, error) {

	var utterances []pipeline.Utterance
	have, err := o.store.LoadArtifact(ctx, job.ID, store.ArtifactUtterances, &utterances)
	if err != nil {
		return nil, err
	}
	if !have {
		start := time.Now()
		utterances = pipeline.AlignTranscript(segments, turns, o.cfg.MergeGapMs)
		metrics.RecordStage("align", true, time.Since(start).Seconds())
		logger.LogStage(o.log, job.ID, "align", "success", time.Since(start).Milliseconds(), "")
		if err := o.store.SaveArtifact(context.Background(), job.ID, store.ArtifactUtterances, utterances); err != nil {
			return nil, err
		}
	}
	if err := o.advance(job.ID, status, pipeline.StatusSummarizing); err != nil {
		return nil, err
	}
	return utterances, nil
}

func (o *Orchestrator) summarizeStage(ctx context.Context, job *store.Job, status *pipeline.JobStatus,
	utterances []pipeline.Utterance) (*pipeline.AnalysisResult, error) {

	var result pipeline.AnalysisResult
	have, err := o.store.LoadArtifact(ctx, job.ID, store.ArtifactResult, &result)
	if err != nil {
		return nil, err
	}
	if !have {
		transcript := summarize.TranscriptText(utterances)
		var out *pipeline.AnalysisResult
		err := o.withRetry(ctx, job.ID, "summarize", summarizeRetriable, func(ctx context.Context) error {
			var err error
			out, err = o.summarizer.Summarize(ctx, transcript, job.Language)
			return err
		})
		if err != nil {
			return nil, err
		}
		result = *out
		if err := o.store.SaveArtifact(context.Background(), job.ID, store.ArtifactResult, result); err != nil {
			return nil, err
		}
	}
	if err := o.advance(job.ID, status, pipeline.StatusRendering); err != nil {
		return nil, err
	}
	return &result, nil
}

// renderStage proves the report renders before the job is declared complete.
// The artifacts themselves are produced on demand by the download endpoints.
func (o *Orchestrator) renderStage(job *store.Job, status *pipeline.JobStatus,
	result *pipeline.AnalysisResult, utterances []pipeline.Utterance) error {

	start := time.Now()
	meta := report.Meta{
		JobID:      job.ID,
		Title:      job.Title,
		Language:   job.Language,
		CreatedAt:  job.CreatedAt,
		DurationMs: job.DurationMs,
	}
	_ = report.RenderMarkdown(meta, result, utterances)
	if _, err := report.RenderPDF(meta, result, utterances); err != nil {
		metrics.RecordStage("render", false, time.Since(start).Seconds())
		return err
	}
	metrics.RecordStage("render", true, time.Since(start).Seconds())
	logger.LogStage(o.log, job.ID, "render", "success", time.Since(start).Milliseconds(), "")
	return nil
}

// statusRank orders the sequential stages so resumed jobs can skip
// transitions they already made.
var statusRank = map[pipeline.JobStatus]int{
	pipeline.StatusPending:      0,
	pipeline.StatusTranscribing: 1,
	pipeline.StatusDiarizing:    2,
	pipeline.StatusAligning:     3,
	pipeline.StatusSummarizing:  4,
	pipeline.StatusRendering:    5,
	pipeline.StatusCompleted:    6,
}

// advance moves the persisted status along the state machine. A target the
// job already reached (resume) is a no-op; ErrConflict means another writer
// (cancellation) won and the job run stops quietly.
func (o *Orchestrator) advance(jobID string, status *pipeline.JobStatus, to pipeline.JobStatus) error {
	if statusRank[*status] >= statusRank[to] {
		return nil
	}
	if err := o.store.UpdateStatus(context.Background(), jobID, *status, to); err != nil {
		if errors.Is(err, store.ErrConflict) {
			o.log.Info("job status superseded", "job_id", jobID, "from", string(*status), "to", string(to))
		} else {
			o.log.Error("status update failed", "job_id", jobID, "error", err)
		}
		return err
	}
	*status = to
	return nil
}

// fail records the terminal state for a job error. Cancellation is recorded
// as cancelled, everything else as failed with its classified kind.
func (o *Orchestrator) fail(jobID string, err error) {
	if errors.Is(err, store.ErrConflict) {
		// Another writer (cancellation) already set the terminal state.
		return
	}
	se := pipeline.AsStageError(err)
	if errors.Is(err, context.Canceled) || se.Kind == pipeline.KindCancelled {
		if serr := o.store.SetCancelled(context.Background(), jobID); serr != nil && !errors.Is(serr, store.ErrConflict) {
			o.log.Error("failed to mark job cancelled", "job_id", jobID, "error", serr)
		}
		metrics.RecordJobFinished(string(pipeline.StatusCancelled))
		return
	}

	if se.Raw != "" {
		// Keep the unparseable upstream payload for diagnosis.
		if serr := o.store.SaveArtifact(context.Background(), jobID, store.ArtifactRawResponse, se.Raw); serr != nil {
			o.log.Error("failed to save raw response", "job_id", jobID, "error", serr)
		}
	}
	if serr := o.store.SetFailure(context.Background(), jobID, se.Kind, se.Message); serr != nil && !errors.Is(serr, store.ErrConflict) {
		o.log.Error("failed to mark job failed", "job_id", jobID, "error", serr)
	}
	metrics.RecordJobFinished(string(pipeline.StatusFailed))
	o.log.Error("job failed", "job_id", jobID, "stage", se.Stage, "error_kind", string(se.Kind), "error", err.Error())
}

func secondsToMs(s float64) int64 {
	return int64(s * 1000)
}
