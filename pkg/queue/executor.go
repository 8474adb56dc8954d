package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/visionforge/core/pkg/corerr"
	"github.com/visionforge/core/pkg/corestate"
	"github.com/visionforge/core/pkg/diffusion"
	"github.com/visionforge/core/pkg/events"
	"github.com/visionforge/core/pkg/models"
	"github.com/visionforge/core/pkg/storage"
)

// defaultPollInterval is how often the executor's main loop wakes to check
// for pending work (spec §4.H).
const defaultPollInterval = 3 * time.Second

// defaultCancelPollInterval is how often an in-flight generation is checked
// for a cancellation request (spec §4.H, §4.F is_cancelled).
const defaultCancelPollInterval = 2 * time.Second

// defaultGenerationTimeout bounds how long the executor waits for one
// prompt to finish before giving up (spec §4.E wait_for_completion_ws,
// COMFYUI_TIMEOUT = 600 s).
const defaultGenerationTimeout = 10 * time.Minute

// diffusionTransport is the subset of *diffusion.Client the executor calls,
// narrowed to an interface so tests can stub the remote service.
type diffusionTransport interface {
	QueuePrompt(ctx context.Context, workflowGraph json.RawMessage, clientID string) (string, error)
	WaitForCompletionWS(ctx context.Context, promptID, clientID string, timeout time.Duration, onProgress diffusion.OnProgress) (diffusion.GenerationStatus, error)
	GetImage(ctx context.Context, filename, subfolder, imgType string) ([]byte, error)
	Interrupt(ctx context.Context) error
}

// Executor is the single background worker that drains the pending queue
// one job at a time (spec §4.H). There is never more than one job
// generating at once; the diffusion service is assumed to be a single
// shared GPU resource.
type Executor struct {
	manager   *Manager
	images    *ImageStore
	diffusion diffusionTransport
	layout    *storage.Layout
	state     *corestate.State
	pub       *events.Publisher

	pollInterval       time.Duration
	cancelPollInterval time.Duration
	generationTimeout  time.Duration

	consecutive int
}

// NewExecutor wires the components the executor drives. diffusionClient
// satisfies diffusionTransport (a *diffusion.Client does).
func NewExecutor(manager *Manager, images *ImageStore, diffusionClient diffusionTransport, layout *storage.Layout, state *corestate.State, pub *events.Publisher) *Executor {
	return &Executor{
		manager:            manager,
		images:             images,
		diffusion:          diffusionClient,
		layout:             layout,
		state:              state,
		pub:                pub,
		pollInterval:       defaultPollInterval,
		cancelPollInterval: defaultCancelPollInterval,
		generationTimeout:  defaultGenerationTimeout,
	}
}

// Run drains the queue until ctx is cancelled. It is meant to be started
// once, in its own goroutine, for the lifetime of the process.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.pollInterval):
		}

		if e.state.QueuePaused() {
			continue
		}

		cfg := e.state.Config
		if cfg.MaxConsecutive > 0 && e.consecutive >= cfg.MaxConsecutive {
			slog.Info("queue cooling down after consecutive jobs", "consecutive", e.consecutive, "cooldown_seconds", cfg.CooldownSeconds)
			e.sleepCooldown(ctx, cfg.CooldownSeconds)
			e.consecutive = 0
			continue
		}

		job, err := e.manager.NextPending(ctx)
		if err != nil {
			slog.Error("failed to fetch next pending job", "error", err)
			continue
		}
		if job == nil {
			e.consecutive = 0
			continue
		}

		e.runJob(ctx, job)
		e.sleepCooldown(ctx, cfg.CooldownSeconds)
	}
}

func (e *Executor) sleepCooldown(ctx context.Context, seconds int) {
	if seconds <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(seconds) * time.Second):
	}
}

// runJob processes one job end to end, updating its status and emitting
// lifecycle events along the way (spec §4.H "Process job").
func (e *Executor) runJob(ctx context.Context, job *models.Job) {
	log := slog.With("job_id", job.ID)

	if err := e.manager.MarkGenerating(ctx, job.ID); err != nil {
		log.Error("failed to mark job generating", "error", err)
		return
	}
	e.pub.JobStarted(job.ID)

	imageID, resultErr := e.process(ctx, log, job)
	if resultErr == nil {
		if err := e.manager.MarkCompleted(ctx, job.ID, imageID); err != nil {
			log.Error("failed to mark job completed", "error", err)
			return
		}
		e.pub.JobCompleted(job.ID, imageID)
		e.consecutive++
		return
	}

	if corerr.Is(resultErr, corerr.KindCancelled) {
		// The store already holds the job as Cancelled: Manager.Cancel
		// flips Generating rows directly, which is exactly what the
		// cancel-poll above observed. Nothing left to persist here.
		e.pub.JobCancelled(job.ID)
		e.consecutive = 0
		return
	}

	log.Error("job failed", "error", resultErr)
	if err := e.manager.MarkFailed(ctx, job.ID); err != nil {
		log.Error("failed to mark job failed", "error", err)
	}
	e.pub.JobFailed(job.ID, resultErr.Error())
	e.consecutive = 0
}

// process runs the generation itself and returns the new image's id on
// success.
func (e *Executor) process(ctx context.Context, log *slog.Logger, job *models.Job) (string, error) {
	req, err := models.ParseGenerationRequest(job.Settings)
	if err != nil {
		return "", corerr.Wrap(corerr.KindParse, "failed to parse job settings", err)
	}

	graph, resolvedSeed, err := diffusion.BuildTxt2Img(req, job.Positive, job.Negative)
	if err != nil {
		return "", corerr.Wrap(corerr.KindWorkflow, "failed to build workflow graph", err)
	}
	req.Seed = resolvedSeed

	graphJSON, err := json.Marshal(graph)
	if err != nil {
		return "", corerr.Wrap(corerr.KindIO, "failed to encode workflow graph", err)
	}

	clientID := uuid.NewString()
	promptID, err := e.diffusion.QueuePrompt(ctx, graphJSON, clientID)
	if err != nil {
		return "", err
	}
	log = log.With("prompt_id", promptID)

	status, err := e.waitWithCancel(ctx, log, job.ID, promptID, clientID)
	if err != nil {
		return "", err
	}
	if status.State == diffusion.StateFailed {
		if status.Error == cancelledSentinel {
			return "", corerr.New(corerr.KindCancelled, "job was cancelled")
		}
		return "", corerr.Newf(corerr.KindGenerationFailed, "generation failed: %s", status.Error)
	}
	if len(status.Images) == 0 {
		return "", corerr.New(corerr.KindNoImages, "generation completed with no output images")
	}

	first := status.Images[0]
	data, err := e.diffusion.GetImage(ctx, first.Filename, first.Subfolder, first.ImgType)
	if err != nil {
		return "", err
	}

	filename := storage.NewFilename(time.Now())
	if err := storage.SaveImage(e.layout, filename, data); err != nil {
		return "", err
	}

	pipelineLog := job.PipelineLog
	if len(pipelineLog) == 0 {
		pipelineLog = nil
	}
	image := models.Image{
		ID:          uuid.NewString(),
		Filename:    filename,
		CreatedAt:   time.Now(),
		Settings:    req,
		PipelineLog: pipelineLog,
	}
	if err := e.images.Insert(ctx, image); err != nil {
		return "", err
	}

	return image.ID, nil
}

// cancelledSentinel is the synthetic GenerationStatus.Error value
// waitWithCancel uses to signal a user-requested cancellation through the
// same return path as a remote failure.
const cancelledSentinel = "__cancelled__"

// waitWithCancel races the diffusion completion wait against a cancel poll,
// interrupting the remote generation and returning a cancelled status the
// instant is_cancelled flips true (spec §4.F, §4.H, invariant 9, scenario
// S5).
func (e *Executor) waitWithCancel(ctx context.Context, log *slog.Logger, jobID, promptID, clientID string) (diffusion.GenerationStatus, error) {
	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()

	type waitResult struct {
		status diffusion.GenerationStatus
		err    error
	}
	resultCh := make(chan waitResult, 1)
	go func() {
		status, err := e.diffusion.WaitForCompletionWS(waitCtx, promptID, clientID, e.generationTimeout,
			func(currentStep, totalStep int) { e.pub.JobProgress(jobID, currentStep, totalStep) })
		resultCh <- waitResult{status, err}
	}()

	ticker := time.NewTicker(e.cancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case res := <-resultCh:
			return res.status, res.err

		case <-ticker.C:
			cancelled, err := e.manager.IsCancelled(ctx, jobID)
			if err != nil {
				log.Error("cancel poll failed", "error", err)
				continue
			}
			if cancelled {
				cancelWait()
				_ = e.diffusion.Interrupt(ctx)
				<-resultCh
				return diffusion.GenerationStatus{State: diffusion.StateFailed, Error: cancelledSentinel}, nil
			}
		}
	}
}
