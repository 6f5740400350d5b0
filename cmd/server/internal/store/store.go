// Package store persists jobs, per-stage artifacts, and raw audio blobs.
// Jobs and artifacts live in SQLite; audio lives on the filesystem keyed by
// content hash.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

var (
	// ErrNotFound is returned when a job does not exist or is not visible to
	// the requesting owner.
	ErrNotFound = errors.New("job not found")

	// ErrConflict is returned when a status update loses the race: the row's
	// current status no longer matches the expected transition source.
	ErrConflict = errors.New("job status conflict")
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	language     TEXT NOT NULL DEFAULT '',
	blob_ref     TEXT NOT NULL,
	format       TEXT NOT NULL,
	size_bytes   INTEGER NOT NULL,
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	error_kind   TEXT NOT NULL DEFAULT '',
	error_msg    TEXT NOT NULL DEFAULT '',
	warnings     TEXT NOT NULL DEFAULT '[]',
	created_at   REAL NOT NULL,
	updated_at   REAL NOT NULL,
	completed_at REAL
);

CREATE INDEX IF NOT EXISTS idx_jobs_owner ON jobs(owner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS artifacts (
	job_id     TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	stage      TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at REAL NOT NULL,
	PRIMARY KEY (job_id, stage)
);
`

// Store provides access to the job database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path with WAL and
// foreign keys enabled, and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateJob inserts a new job row. CreatedAt/UpdatedAt are stamped here.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = pipeline.StatusPending
	}
	warnings, err := json.Marshal(emptyIfNil(job.Warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, owner_id, title, status, language, blob_ref, format,
			size_bytes, duration_ms, error_kind, error_msg, warnings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.OwnerID, job.Title, string(job.Status), job.Language, job.BlobRef, job.Format,
		job.SizeBytes, job.DurationMs, string(job.ErrorKind), job.ErrorMessage, string(warnings),
		toUnix(job.CreatedAt), toUnix(job.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob returns a job by id regardless of owner. Used by the orchestrator.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectJob+` WHERE id = ?`, id)
	return scanJob(row)
}

// GetJobForOwner returns a job only if it belongs to ownerID. A job owned by
// someone else is indistinguishable from a missing one.
func (s *Store) GetJobForOwner(ctx context.Context, id, ownerID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectJob+` WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanJob(row)
}

// ListJobs returns the owner's jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, ownerID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, selectJob+` WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListUnfinished returns jobs in a non-terminal status, oldest first. Called
// once at startup to resume work interrupted by a restart.
func (s *Store) ListUnfinished(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, selectJob+`
		WHERE status NOT IN (?, ?, ?) ORDER BY created_at ASC`,
		string(pipeline.StatusCompleted), string(pipeline.StatusFailed), string(pipeline.StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("query unfinished jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateStatus moves a job from one status to another. The transition is
// validated against the state machine and applied atomically: if the row is
// no longer in `from`, ErrConflict is returned and nothing changes.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to pipeline.JobStatus) error {
	if !pipeline.ValidTransition(from, to) {
		return fmt.Errorf("invalid transition %s -> %s: %w", from, to, ErrConflict)
	}
	completed := sql.NullFloat64{}
	if to.Terminal() {
		completed = sql.NullFloat64{Float64: toUnix(time.Now()), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, string(to), toUnix(time.Now()), completed, id, string(from))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// SetFailure records the classified error on a job and moves it to failed.
// The current status must be non-terminal.
func (s *Store) SetFailure(ctx context.Context, id string, kind pipeline.ErrorKind, message string) error {
	return s.terminate(ctx, id, pipeline.StatusFailed, kind, message)
}

// SetCancelled moves a job to cancelled with the Cancelled error kind.
func (s *Store) SetCancelled(ctx context.Context, id string) error {
	return s.terminate(ctx, id, pipeline.StatusCancelled, pipeline.KindCancelled, "cancelled by user")
}

func (s *Store) terminate(ctx context.Context, id string, to pipeline.JobStatus, kind pipeline.ErrorKind, message string) error {
	now := toUnix(time.Now())
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error_kind = ?, error_msg = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND status NOT IN (?, ?, ?)
	`, string(to), string(kind), message, now, now, id,
		string(pipeline.StatusCompleted), string(pipeline.StatusFailed), string(pipeline.StatusCancelled))
	if err != nil {
		return fmt.Errorf("terminate job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// AddWarning appends a non-fatal warning to the job.
func (s *Store) AddWarning(ctx context.Context, id, warning string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT warnings FROM jobs WHERE id = ?`, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("read warnings: %w", err)
	}
	var warnings []string
	if err := json.Unmarshal([]byte(raw), &warnings); err != nil {
		warnings = nil
	}
	warnings = append(warnings, warning)
	updated, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET warnings = ?, updated_at = ? WHERE id = ?`,
		string(updated), toUnix(time.Now()), id); err != nil {
		return fmt.Errorf("write warnings: %w", err)
	}
	return tx.Commit()
}

// SetDuration records the recording length once a stage has measured it.
func (s *Store) SetDuration(ctx context.Context, id string, durationMs int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET duration_ms = ?, updated_at = ? WHERE id = ?`,
		durationMs, toUnix(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update duration: %w", err)
	}
	return nil
}

// SetLanguage records the detected language once transcription reports it.
func (s *Store) SetLanguage(ctx context.Context, id, lang string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET language = ?, updated_at = ? WHERE id = ?`,
		lang, toUnix(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update language: %w", err)
	}
	return nil
}

// DeleteJob removes the job and its artifacts (cascade) if owned by ownerID,
// returning the blob ref so the caller can remove the audio too. Blobs are
// content-addressed and may be shared between jobs; the ref comes back empty
// while another job still points at the same audio.
func (s *Store) DeleteJob(ctx context.Context, id, ownerID string) (blobRef string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `SELECT blob_ref FROM jobs WHERE id = ? AND owner_id = ?`,
		id, ownerID).Scan(&blobRef); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read job: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("delete job: %w", err)
	}

	var refs int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE blob_ref = ?`, blobRef).Scan(&refs); err != nil {
		return "", fmt.Errorf("count blob refs: %w", err)
	}
	if refs > 0 {
		blobRef = ""
	}
	return blobRef, tx.Commit()
}

// SaveArtifact persists a stage output as JSON, replacing any previous value
// for the same stage.
func (s *Store) SaveArtifact(ctx context.Context, jobID, stage string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s artifact: %w", stage, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (job_id, stage, payload, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (job_id, stage) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at
	`, jobID, stage, string(payload), toUnix(time.Now()))
	if err != nil {
		return fmt.Errorf("save %s artifact: %w", stage, err)
	}
	return nil
}

// LoadArtifact unmarshals a stage output into dest. Returns false when the
// stage has not produced one yet.
func (s *Store) LoadArtifact(ctx context.Context, jobID, stage string, dest any) (bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM artifacts WHERE job_id = ? AND stage = ?`,
		jobID, stage).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s artifact: %w", stage, err)
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return false, fmt.Errorf("unmarshal %s artifact: %w", stage, err)
	}
	return true, nil
}

const selectJob = `
	SELECT id, owner_id, title, status, language, blob_ref, format, size_bytes,
		duration_ms, error_kind, error_msg, warnings, created_at, updated_at, completed_at
	FROM jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var status, kind, warnings string
	var createdAt, updatedAt float64
	var completedAt sql.NullFloat64

	err := row.Scan(&job.ID, &job.OwnerID, &job.Title, &status, &job.Language, &job.BlobRef,
		&job.Format, &job.SizeBytes, &job.DurationMs, &kind, &job.ErrorMessage, &warnings,
		&createdAt, &updatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.Status = pipeline.JobStatus(status)
	job.ErrorKind = pipeline.ErrorKind(kind)
	if err := json.Unmarshal([]byte(warnings), &job.Warnings); err != nil {
		job.Warnings = nil
	}
	job.CreatedAt = timeFromUnix(createdAt)
	job.UpdatedAt = timeFromUnix(updatedAt)
	if completedAt.Valid {
		t := timeFromUnix(completedAt.Float64)
		job.CompletedAt = &t
	}
	return &job, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
