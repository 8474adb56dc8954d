package events

// Publisher offers typed convenience methods over a Bus (spec §6.4), one
// per event kind, so callers never hand-assemble the type string.
type Publisher struct {
	bus *Bus
}

// NewPublisher wraps bus with the typed publish methods.
func NewPublisher(bus *Bus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) StageStart(stage, model string) {
	p.bus.Publish(Event{Type: TypeStageStart, Payload: StageStartPayload{Stage: stage, Model: model}})
}

func (p *Publisher) StageToken(stage, token string) {
	p.bus.Publish(Event{Type: TypeStageToken, Payload: StageTokenPayload{Stage: stage, Token: token}})
}

func (p *Publisher) StageComplete(stage string, durationMS int64) {
	p.bus.Publish(Event{Type: TypeStageComplete, Payload: StageCompletePayload{Stage: stage, DurationMS: durationMS}})
}

func (p *Publisher) JobStarted(jobID string) {
	p.bus.Publish(Event{Type: TypeJobStarted, Payload: JobStartedPayload{JobID: jobID}})
}

func (p *Publisher) JobProgress(jobID string, currentStep, totalSteps int) {
	progress := 0.0
	if totalSteps > 0 {
		progress = float64(currentStep) / float64(totalSteps)
	}
	p.bus.Publish(Event{Type: TypeJobProgress, Payload: JobProgressPayload{
		JobID:       jobID,
		CurrentStep: currentStep,
		TotalSteps:  totalSteps,
		Progress:    progress,
	}})
}

func (p *Publisher) JobCompleted(jobID, imageID string) {
	p.bus.Publish(Event{Type: TypeJobCompleted, Payload: JobCompletedPayload{JobID: jobID, ImageID: imageID}})
}

func (p *Publisher) JobFailed(jobID, errMsg string) {
	p.bus.Publish(Event{Type: TypeJobFailed, Payload: JobFailedPayload{JobID: jobID, Error: errMsg}})
}

func (p *Publisher) JobCancelled(jobID string) {
	p.bus.Publish(Event{Type: TypeJobCancelled, Payload: JobCancelledPayload{JobID: jobID}})
}
