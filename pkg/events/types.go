// Package events provides in-process publish/subscribe delivery of pipeline
// and queue lifecycle events (spec §6.4). There is no persistence layer:
// events are ephemeral and exist only to drive a live UI; a subscriber that
// is not listening when an event fires simply misses it.
package events

// Event type strings, namespaced the way the host's event stream expects
// them (spec §6.4). All payloads below are camelCase on the wire.
const (
	TypeStageStart    = "pipeline:stage_start"
	TypeStageToken    = "pipeline:stage_token"
	TypeStageComplete = "pipeline:stage_complete"

	TypeJobStarted   = "queue:job_started"
	TypeJobProgress  = "queue:job_progress"
	TypeJobCompleted = "queue:job_completed"
	TypeJobFailed    = "queue:job_failed"
	TypeJobCancelled = "queue:job_cancelled"
)

// Event is one published occurrence: a type tag plus its JSON-serializable
// payload.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StageStartPayload announces a pipeline stage beginning execution.
type StageStartPayload struct {
	Stage string `json:"stage"`
	Model string `json:"model"`
}

// StageTokenPayload carries one streamed token delta from a running stage.
type StageTokenPayload struct {
	Stage string `json:"stage"`
	Token string `json:"token"`
}

// StageCompletePayload announces a pipeline stage finishing.
type StageCompletePayload struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"durationMs"`
}

// JobStartedPayload announces the executor beginning a job.
type JobStartedPayload struct {
	JobID string `json:"jobId"`
}

// JobProgressPayload carries diffusion step progress for a running job.
type JobProgressPayload struct {
	JobID       string  `json:"jobId"`
	CurrentStep int     `json:"currentStep"`
	TotalSteps  int     `json:"totalSteps"`
	Progress    float64 `json:"progress"`
}

// JobCompletedPayload announces a job finishing with a result image.
type JobCompletedPayload struct {
	JobID   string `json:"jobId"`
	ImageID string `json:"imageId"`
}

// JobFailedPayload announces a job terminating in failure.
type JobFailedPayload struct {
	JobID string `json:"jobId"`
	Error string `json:"error"`
}

// JobCancelledPayload announces a job terminating via cancellation.
type JobCancelledPayload struct {
	JobID string `json:"jobId"`
}
