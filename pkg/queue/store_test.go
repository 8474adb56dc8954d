package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionforge/core/pkg/corerr"
	"github.com/visionforge/core/pkg/database"
	"github.com/visionforge/core/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	client, err := database.NewClient(context.Background(), database.DefaultConfig(filepath.Join(dir, "gallery.db")))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewStore(client.DB())
}

func newJob(id string, priority models.Priority, createdAt time.Time) models.Job {
	return models.Job{
		ID: id, Priority: priority, Status: models.StatusPending,
		Positive: "a cat", Negative: "blurry", Settings: []byte(`{}`), CreatedAt: createdAt,
	}
}

func TestStore_InsertAndGetByID(t *testing.T) {
	s := newTestStore(t)
	job := newJob("job-1", models.PriorityNormal, time.Now())
	require.NoError(t, s.Insert(context.Background(), job))

	got, err := s.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "a cat", got.Positive)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestStore_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindNotFound))
}

func TestStore_ListAll_OrderingByBucketThenPriorityThenCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	a := newJob("a", models.PriorityNormal, base)
	b := newJob("b", models.PriorityHigh, base.Add(time.Second))
	c := newJob("c", models.PriorityLow, base.Add(2*time.Second))
	require.NoError(t, s.Insert(ctx, a))
	require.NoError(t, s.Insert(ctx, b))
	require.NoError(t, s.Insert(ctx, c))

	d := newJob("d", models.PriorityNormal, base.Add(3*time.Second))
	d.Status = models.StatusGenerating
	require.NoError(t, s.Insert(ctx, d))

	jobs, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 4)
	ids := []string{jobs[0].ID, jobs[1].ID, jobs[2].ID, jobs[3].ID}
	assert.Equal(t, []string{"d", "b", "a", "c"}, ids)
}

func TestStore_ListPending_OrderingByPriorityThenCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.Insert(ctx, newJob("a", models.PriorityNormal, base)))
	require.NoError(t, s.Insert(ctx, newJob("b", models.PriorityHigh, base.Add(time.Second))))
	require.NoError(t, s.Insert(ctx, newJob("c", models.PriorityLow, base.Add(2*time.Second))))

	jobs, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{jobs[0].ID, jobs[1].ID, jobs[2].ID})
}

func TestStore_TransitionToGeneratingThenTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newJob("a", models.PriorityNormal, time.Now())))

	start := time.Now()
	require.NoError(t, s.TransitionToGenerating(ctx, "a", start))
	got, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusGenerating, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	end := start.Add(time.Minute)
	require.NoError(t, s.TransitionToTerminal(ctx, "a", models.StatusCompleted, end))
	got, err = s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.StartedAt.Before(*got.CompletedAt) || got.StartedAt.Equal(*got.CompletedAt))
}

func TestStore_UpdatePriority_NoStatusSideEffect(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newJob("a", models.PriorityNormal, time.Now())))

	require.NoError(t, s.UpdatePriority(ctx, "a", models.PriorityHigh))
	got, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, models.StatusPending, got.Status, "priority update has no status side-effect")
}

func TestStore_Cancel_PendingSucceeds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newJob("a", models.PriorityNormal, time.Now())))

	require.NoError(t, s.Cancel(ctx, "a"))
	got, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}

func TestStore_Cancel_NotPendingFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := newJob("a", models.PriorityNormal, time.Now())
	job.Status = models.StatusCompleted
	require.NoError(t, s.Insert(ctx, job))

	err := s.Cancel(ctx, "a")
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindNotPending))
}

func TestStore_Cancel_MissingJobFails(t *testing.T) {
	s := newTestStore(t)
	err := s.Cancel(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindNotFound))
}

func TestStore_RequeueInterrupted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newJob("a", models.PriorityNormal, time.Now())
	a.Status = models.StatusGenerating
	require.NoError(t, s.Insert(ctx, a))
	require.NoError(t, s.Insert(ctx, newJob("b", models.PriorityNormal, time.Now())))

	n, err := s.RequeueInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	jobs, err := s.ListAll(ctx)
	require.NoError(t, err)
	for _, j := range jobs {
		assert.NotEqual(t, models.StatusGenerating, j.Status)
	}
}

func TestStore_IsCancelled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newJob("a", models.PriorityNormal, time.Now())))

	cancelled, err := s.IsCancelled(ctx, "a")
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, s.Cancel(ctx, "a"))
	cancelled, err = s.IsCancelled(ctx, "a")
	require.NoError(t, err)
	assert.True(t, cancelled)
}
