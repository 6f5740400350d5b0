package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "jobs.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testJob(owner string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Status:    pipeline.StatusPending,
		BlobRef:   "deadbeef",
		Format:    "wav",
		SizeBytes: 1024,
	}
}

func TestCreateAndGetJob(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := testJob("user-1")
	job.Title = "Weekly sync"
	job.Language = "en"
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.Equal(t, "Weekly sync", got.Title)
	assert.Equal(t, pipeline.StatusPending, got.Status)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, "deadbeef", got.BlobRef)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Nil(t, got.CompletedAt)
}

func TestGetJobNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetJobForOwnerScoping(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))

	_, err := s.GetJobForOwner(ctx, job.ID, "user-2")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetJobForOwner(ctx, job.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestListJobsNewestFirstPerOwner(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := testJob("user-1")
	second := testJob("user-1")
	other := testJob("user-2")
	require.NoError(t, s.CreateJob(ctx, first))
	require.NoError(t, s.CreateJob(ctx, second))
	require.NoError(t, s.CreateJob(ctx, other))

	jobs, err := s.ListJobs(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestUpdateStatusSequence(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))

	require.NoError(t, s.UpdateStatus(ctx, job.ID, pipeline.StatusPending, pipeline.StatusTranscribing))
	require.NoError(t, s.UpdateStatus(ctx, job.ID, pipeline.StatusTranscribing, pipeline.StatusDiarizing))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusDiarizing, got.Status)
}

func TestUpdateStatusRejectsSkippedStage(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))

	err := s.UpdateStatus(ctx, job.ID, pipeline.StatusPending, pipeline.StatusSummarizing)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateStatusConflictOnStaleFrom(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateStatus(ctx, job.ID, pipeline.StatusPending, pipeline.StatusTranscribing))

	// Row is transcribing now; a second pending->transcribing loses the race.
	err := s.UpdateStatus(ctx, job.ID, pipeline.StatusPending, pipeline.StatusTranscribing)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateStatusStampsCompletedAt(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := testJob("user-1")
	job.Status = pipeline.StatusRendering
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateStatus(ctx, job.ID, pipeline.StatusRendering, pipeline.StatusCompleted))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestSetFailure(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.SetFailure(ctx, job.ID, pipeline.KindDecodeError, "corrupt header"))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, got.Status)
	assert.Equal(t, pipeline.KindDecodeError, got.ErrorKind)
	assert.Equal(t, "corrupt header", got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)

	// Terminal jobs stay put.
	assert.ErrorIs(t, s.SetFailure(ctx, job.ID, pipeline.KindInternal, "again"), ErrConflict)
	assert.ErrorIs(t, s.SetCancelled(ctx, job.ID), ErrConflict)
}

func TestSetCancelled(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.SetCancelled(ctx, job.ID))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCancelled, got.Status)
	assert.Equal(t, pipeline.KindCancelled, got.ErrorKind)
}

func TestAddWarning(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.AddWarning(ctx, job.ID, "diarization unavailable, single speaker assumed"))
	require.NoError(t, s.AddWarning(ctx, job.ID, "duration probe failed"))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"diarization unavailable, single speaker assumed",
		"duration probe failed",
	}, got.Warnings)
}

func TestArtifactRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))

	segments := []pipeline.TranscriptSegment{{StartMs: 0, EndMs: 1200, Text: "hello"}}
	require.NoError(t, s.SaveArtifact(ctx, job.ID, ArtifactSegments, segments))

	var loaded []pipeline.TranscriptSegment
	ok, err := s.LoadArtifact(ctx, job.ID, ArtifactSegments, &loaded)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, segments, loaded)

	// Replacing overwrites rather than duplicating.
	segments[0].Text = "hello again"
	require.NoError(t, s.SaveArtifact(ctx, job.ID, ArtifactSegments, segments))
	ok, err = s.LoadArtifact(ctx, job.ID, ArtifactSegments, &loaded)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello again", loaded[0].Text)
}

func TestLoadArtifactMissing(t *testing.T) {
	s := testStore(t)
	var dest []pipeline.SpeakerTurn
	ok, err := s.LoadArtifact(context.Background(), "nope", ArtifactTurns, &dest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteJobCascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.SaveArtifact(ctx, job.ID, ArtifactResult, pipeline.AnalysisResult{Summary: "x"}))

	_, err := s.DeleteJob(ctx, job.ID, "user-2")
	assert.ErrorIs(t, err, ErrNotFound)

	ref, err := s.DeleteJob(ctx, job.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", ref)

	_, err = s.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var dest pipeline.AnalysisResult
	ok, err := s.LoadArtifact(ctx, job.ID, ArtifactResult, &dest)
	require.NoError(t, err)
	assert.False(t, ok, "artifacts must be removed with the job")
}

func TestDeleteJobKeepsSharedBlob(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := testJob("user-1")
	second := testJob("user-1")
	require.NoError(t, s.CreateJob(ctx, first))
	require.NoError(t, s.CreateJob(ctx, second))

	ref, err := s.DeleteJob(ctx, first.ID, "user-1")
	require.NoError(t, err)
	assert.Empty(t, ref, "blob still referenced by another job")

	ref, err = s.DeleteJob(ctx, second.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", ref)
}

func TestListUnfinished(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	running := testJob("user-1")
	running.Status = pipeline.StatusSummarizing
	done := testJob("user-1")
	done.Status = pipeline.StatusCompleted
	require.NoError(t, s.CreateJob(ctx, running))
	require.NoError(t, s.CreateJob(ctx, done))

	jobs, err := s.ListUnfinished(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, running.ID, jobs[0].ID)
}
