// Package queue implements the durable, priority-ordered generation queue:
// a SQLite-backed store, an in-process manager API over it, and the single
// background executor that drains it (spec §4.F, §4.G, §4.H).
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/visionforge/core/pkg/corerr"
	"github.com/visionforge/core/pkg/models"
)

const timeLayout = time.RFC3339Nano

// Store is the durable job table (spec §4.F). All methods serialize through
// the caller-held store lock (pkg/corestate.State.StoreLock); Store itself
// holds no lock, matching the "single state record passed by reference"
// design note.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Insert adds a new job row (spec §4.F Insert).
func (s *Store) Insert(ctx context.Context, job models.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_jobs
			(id, priority, status, positive, negative, settings_json, pipeline_log,
			 original_idea, linked_comparison_id, created_at, started_at, completed_at, result_image_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, int(job.Priority), string(job.Status), job.Positive, job.Negative,
		string(job.Settings), nullableString(string(job.PipelineLog)), nullableString(job.OriginalIdea),
		nullableString(job.LinkedComparisonID), job.CreatedAt.UTC().Format(timeLayout),
		nullableTime(job.StartedAt), nullableTime(job.CompletedAt), nullableString(job.ResultImageID))
	if err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to insert job", err)
	}
	return nil
}

const selectColumns = `id, priority, status, positive, negative, settings_json, pipeline_log,
	original_idea, linked_comparison_id, created_at, started_at, completed_at, result_image_id`

func scanJob(row interface{ Scan(...any) error }) (models.Job, error) {
	var (
		j                                        models.Job
		priority                                 int
		status                                   string
		pipelineLog, originalIdea, linkedCmp     sql.NullString
		createdAt                                string
		startedAt, completedAt, resultImageID    sql.NullString
	)
	if err := row.Scan(&j.ID, &priority, &status, &j.Positive, &j.Negative, &j.Settings,
		&pipelineLog, &originalIdea, &linkedCmp, &createdAt, &startedAt, &completedAt, &resultImageID); err != nil {
		return models.Job{}, err
	}

	j.Priority = models.Priority(priority)
	j.Status = models.Status(status)
	if pipelineLog.Valid {
		j.PipelineLog = json.RawMessage(pipelineLog.String)
	}
	j.OriginalIdea = originalIdea.String
	j.LinkedComparisonID = linkedCmp.String
	j.ResultImageID = resultImageID.String

	created, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return models.Job{}, err
	}
	j.CreatedAt = created

	if startedAt.Valid {
		t, err := time.Parse(timeLayout, startedAt.String)
		if err != nil {
			return models.Job{}, err
		}
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return models.Job{}, err
		}
		j.CompletedAt = &t
	}

	return j, nil
}

// ListAll returns every job ordered by (status bucket, priority, created_at)
// ascending (spec §4.F List all, invariant 4).
func (s *Store) ListAll(ctx context.Context) ([]models.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM queue_jobs
		ORDER BY
			CASE status
				WHEN 'generating' THEN 0
				WHEN 'pending'    THEN 1
				WHEN 'completed'  THEN 2
				WHEN 'failed'     THEN 3
				WHEN 'cancelled'  THEN 4
				ELSE 5
			END ASC,
			priority ASC,
			created_at ASC`)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindIO, "failed to list jobs", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListPending returns only Pending jobs ordered by (priority, created_at)
// ascending (spec §4.F List pending).
func (s *Store) ListPending(ctx context.Context) ([]models.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM queue_jobs
		WHERE status = 'pending'
		ORDER BY priority ASC, created_at ASC`)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindIO, "failed to list pending jobs", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]models.Job, error) {
	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, corerr.Wrap(corerr.KindIO, "failed to scan job row", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, corerr.Wrap(corerr.KindIO, "failed while iterating job rows", err)
	}
	return jobs, nil
}

// GetByID fetches a single job (spec §4.F Get by id). Returns
// corerr.KindNotFound if absent.
func (s *Store) GetByID(ctx context.Context, id string) (models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM queue_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return models.Job{}, corerr.Newf(corerr.KindNotFound, "job %q not found", id)
	}
	if err != nil {
		return models.Job{}, corerr.Wrap(corerr.KindIO, "failed to get job", err)
	}
	return job, nil
}

// TransitionToGenerating sets status=Generating, started_at=now (spec §4.F).
func (s *Store) TransitionToGenerating(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queue_jobs SET status = 'generating', started_at = ? WHERE id = ?`,
		now.UTC().Format(timeLayout), id)
	return requireRowsAffected(res, err, id)
}

// TransitionToTerminal sets status (Completed or Failed), completed_at=now
// (spec §4.F).
func (s *Store) TransitionToTerminal(ctx context.Context, id string, status models.Status, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queue_jobs SET status = ?, completed_at = ? WHERE id = ?`,
		string(status), now.UTC().Format(timeLayout), id)
	return requireRowsAffected(res, err, id)
}

// SetResultImage links a completed job to its produced image (spec §4.F).
func (s *Store) SetResultImage(ctx context.Context, id, imageID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE queue_jobs SET result_image_id = ? WHERE id = ?`, imageID, id)
	return requireRowsAffected(res, err, id)
}

// UpdatePriority changes a job's priority with no status side-effect (spec
// §4.F Update priority).
func (s *Store) UpdatePriority(ctx context.Context, id string, priority models.Priority) error {
	res, err := s.db.ExecContext(ctx, `UPDATE queue_jobs SET priority = ? WHERE id = ?`, int(priority), id)
	return requireRowsAffected(res, err, id)
}

// Cancel atomically transitions a job to Cancelled (spec §4.F Cancel,
// invariant 2). Zero rows affected yields KindNotFound if the job doesn't
// exist at all, or KindNotPending if it is already in a terminal status.
// Both Pending and Generating jobs
// are cancellable: a Pending job simply never runs; a Generating job is
// flagged here and the executor's cancel poll (is_cancelled) observes the
// flip and unwinds the in-flight attempt (spec §4.F, §4.H, scenario S5).
// Jobs already in a terminal state cannot be cancelled.
func (s *Store) Cancel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queue_jobs SET status = 'cancelled' WHERE id = ? AND status IN ('pending', 'generating')`, id)
	if err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to cancel job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to read cancel result", err)
	}
	if n > 0 {
		return nil
	}

	if _, getErr := s.GetByID(ctx, id); getErr != nil {
		return getErr
	}
	return corerr.Newf(corerr.KindNotPending, "job %q is not cancellable", id)
}

// RequeueInterrupted resets all Generating rows to Pending (spec §4.F,
// invariant 3), used once at startup for crash recovery.
func (s *Store) RequeueInterrupted(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE queue_jobs SET status = 'pending' WHERE status = 'generating'`)
	if err != nil {
		return 0, corerr.Wrap(corerr.KindIO, "failed to requeue interrupted jobs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, corerr.Wrap(corerr.KindIO, "failed to read requeue result", err)
	}
	return int(n), nil
}

// IsCancelled reports whether a job's current status is Cancelled; this is
// the executor's single-sourced in-flight cancellation signal (spec §4.F).
func (s *Store) IsCancelled(ctx context.Context, id string) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM queue_jobs WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return false, corerr.Newf(corerr.KindNotFound, "job %q not found", id)
	}
	if err != nil {
		return false, corerr.Wrap(corerr.KindIO, "failed to read job status", err)
	}
	return models.Status(status) == models.StatusCancelled, nil
}

func requireRowsAffected(res sql.Result, err error, id string) error {
	if err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to update job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to read update result", err)
	}
	if n == 0 {
		return corerr.Newf(corerr.KindNotFound, "job %q not found", id)
	}
	return nil
}
