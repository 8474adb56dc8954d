package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/visionforge/core/pkg/corerr"
	"github.com/visionforge/core/pkg/corestate"
	"github.com/visionforge/core/pkg/models"
)

// Manager is the thin, session-scoped API over the Store that the host and
// the executor call into (spec §4.G). It owns no state of its own beyond
// the store handle and a reference to the shared process state for the
// queue-paused flag.
type Manager struct {
	store *Store
	state *corestate.State
}

// NewManager builds a Manager bound to store and the shared process state.
func NewManager(store *Store, state *corestate.State) *Manager {
	return &Manager{store: store, state: state}
}

// AddJob assigns a fresh id if params.ID is empty, forces status=Pending,
// and inserts the row (spec §4.G add_job).
func (m *Manager) AddJob(ctx context.Context, params models.NewJobParams) (string, error) {
	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}

	job := models.Job{
		ID: id, Priority: params.Priority, Status: models.StatusPending,
		Positive: params.Positive, Negative: params.Negative, Settings: params.Settings,
		PipelineLog: params.PipelineLog, OriginalIdea: params.OriginalIdea,
		LinkedComparisonID: params.LinkedComparisonID, CreatedAt: time.Now(),
	}

	m.state.StoreLock.Lock()
	defer m.state.StoreLock.Unlock()
	if err := m.store.Insert(ctx, job); err != nil {
		return "", err
	}
	return id, nil
}

// ListJobs returns every job (spec §4.G list_jobs).
func (m *Manager) ListJobs(ctx context.Context) ([]models.Job, error) {
	m.state.StoreLock.Lock()
	defer m.state.StoreLock.Unlock()
	return m.store.ListAll(ctx)
}

// NextPending returns the highest-priority, oldest pending job, or
// (nil, nil) if the queue is empty (spec §4.G next_pending).
func (m *Manager) NextPending(ctx context.Context) (*models.Job, error) {
	m.state.StoreLock.Lock()
	defer m.state.StoreLock.Unlock()
	jobs, err := m.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// Cancel delegates to the store's atomic guarded cancel (spec §4.G cancel).
// It flips Pending or Generating jobs to Cancelled; the executor's own
// cancel-poll is what actually notices a Generating job's flip and unwinds
// the in-flight attempt (spec §4.H).
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.state.StoreLock.Lock()
	defer m.state.StoreLock.Unlock()
	return m.store.Cancel(ctx, id)
}

// Reorder changes a job's priority; requires the job to be Pending (spec
// §4.G reorder).
func (m *Manager) Reorder(ctx context.Context, id string, priority models.Priority) error {
	m.state.StoreLock.Lock()
	defer m.state.StoreLock.Unlock()

	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != models.StatusPending {
		return corerr.Newf(corerr.KindNotPending, "job %q is not pending", id)
	}
	return m.store.UpdatePriority(ctx, id, priority)
}

// Pause flips the process-wide queue-paused flag (spec §4.G pause).
func (m *Manager) Pause() { m.state.PauseQueue() }

// Resume flips the process-wide queue-paused flag back (spec §4.G resume).
func (m *Manager) Resume() { m.state.ResumeQueue() }

// IsPaused reports the current queue-paused flag (spec §4.G is_paused).
func (m *Manager) IsPaused() bool { return m.state.QueuePaused() }

// MarkGenerating transitions a job to Generating (executor helper, spec
// §4.G mark_generating).
func (m *Manager) MarkGenerating(ctx context.Context, id string) error {
	m.state.StoreLock.Lock()
	defer m.state.StoreLock.Unlock()
	return m.store.TransitionToGenerating(ctx, id, time.Now())
}

// MarkCompleted transitions a job to Completed and links the produced image
// (executor helper, spec §4.G mark_completed).
func (m *Manager) MarkCompleted(ctx context.Context, id, imageID string) error {
	m.state.StoreLock.Lock()
	defer m.state.StoreLock.Unlock()
	if err := m.store.TransitionToTerminal(ctx, id, models.StatusCompleted, time.Now()); err != nil {
		return err
	}
	return m.store.SetResultImage(ctx, id, imageID)
}

// MarkFailed transitions a job to Failed (executor helper, spec §4.G
// mark_failed).
func (m *Manager) MarkFailed(ctx context.Context, id string) error {
	m.state.StoreLock.Lock()
	defer m.state.StoreLock.Unlock()
	return m.store.TransitionToTerminal(ctx, id, models.StatusFailed, time.Now())
}

// RequeueInterrupted resets every Generating row to Pending; called once at
// startup for crash recovery (spec §4.G, §5 Crash recovery).
func (m *Manager) RequeueInterrupted(ctx context.Context) (int, error) {
	m.state.StoreLock.Lock()
	defer m.state.StoreLock.Unlock()
	return m.store.RequeueInterrupted(ctx)
}

// IsCancelled reads the job's status under the store lock; it is the
// single read used by the executor's cancel-poll (spec §4.F is_cancelled).
func (m *Manager) IsCancelled(ctx context.Context, id string) (bool, error) {
	m.state.StoreLock.Lock()
	defer m.state.StoreLock.Unlock()
	return m.store.IsCancelled(ctx, id)
}
