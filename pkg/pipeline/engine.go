// Package pipeline implements the five-stage LLM orchestration that turns
// a short idea into a diffusion-ready prompt pair (spec §4.C, §4.D).
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/visionforge/core/pkg/corerr"
	"github.com/visionforge/core/pkg/events"
	"github.com/visionforge/core/pkg/llm"
	"github.com/visionforge/core/pkg/models"
)

// Input is the caller-supplied request for one pipeline run (spec §4.D).
type Input struct {
	Idea              string
	NumConcepts       int
	AutoApprove       bool
	CheckpointContext *models.CheckpointContext
}

// StagesEnabled is the enable bitmap the engine reads from configuration
// before a run (spec §4.D step 1); model names are passed separately in
// ModelsUsed.
type StagesEnabled struct {
	Ideator        bool
	Composer       bool
	Judge          bool
	PromptEngineer bool
	Reviewer       bool
}

// ModelsUsed names the model assigned to each stage.
type ModelsUsed struct {
	Ideator        string
	Composer       string
	Judge          string
	PromptEngineer string
	Reviewer       string
}

// Engine runs the five-stage pipeline over a transport handle.
type Engine struct {
	transport transport
	pub       *events.Publisher
}

// NewEngine builds an Engine bound to the given transport and event
// publisher. pub may be nil, in which case events are simply not emitted.
func NewEngine(client *llm.Client, pub *events.Publisher) *Engine {
	return &Engine{transport: client, pub: pub}
}

func (e *Engine) emitStart(stage, model string) {
	if e.pub != nil {
		e.pub.StageStart(stage, model)
	}
}

func (e *Engine) emitToken(stage string) func(string) {
	if e.pub == nil {
		return nil
	}
	return func(token string) { e.pub.StageToken(stage, token) }
}

func (e *Engine) emitComplete(stage string, sr models.StageResult) {
	if e.pub != nil {
		e.pub.StageComplete(stage, sr.DurationMS)
	}
}

// clampNumConcepts restricts num_concepts to [1,10] per spec §4.D.
func clampNumConcepts(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// clampIndex clamps i to [0, length).
func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i >= length {
		return length - 1
	}
	return i
}

// Run executes the full pipeline (spec §4.D). cancel is polled before
// every stage; a set flag aborts the run with corerr.KindCancelled.
func (e *Engine) Run(ctx context.Context, input Input, enabled StagesEnabled, modelsUsed ModelsUsed, cancel func() bool) (models.PipelineResult, error) {
	result := models.PipelineResult{OriginalIdea: input.Idea, AutoApproved: input.AutoApprove}
	numConcepts := clampNumConcepts(input.NumConcepts)

	checkpoint := models.DefaultCheckpointContext()
	if input.CheckpointContext != nil {
		checkpoint = *input.CheckpointContext
	}

	if cancel != nil && cancel() {
		return models.PipelineResult{}, corerr.New(corerr.KindCancelled, "pipeline cancelled before ideator")
	}

	var concepts []string
	lastModel := ""
	if enabled.Ideator {
		e.emitStart(string(models.StageIdeator), modelsUsed.Ideator)
		sr, c, err := RunIdeator(ctx, e.transport, modelsUsed.Ideator, input.Idea, numConcepts, e.emitToken(string(models.StageIdeator)), cancel)
		if err != nil {
			return models.PipelineResult{}, err
		}
		e.emitComplete(string(models.StageIdeator), sr)
		result.Ideator = &sr
		concepts = c
		lastModel = modelsUsed.Ideator
	} else {
		concepts = []string{input.Idea}
	}
	if len(concepts) > numConcepts {
		concepts = concepts[:numConcepts]
	}

	if cancel != nil && cancel() {
		return models.PipelineResult{}, corerr.New(corerr.KindCancelled, "pipeline cancelled before composer")
	}

	var composed []string
	var composerResults []models.StageResult
	if enabled.Composer {
		for _, concept := range concepts {
			if cancel != nil && cancel() {
				return models.PipelineResult{}, corerr.New(corerr.KindCancelled, "pipeline cancelled during composer")
			}
			e.emitStart(string(models.StageComposer), modelsUsed.Composer)
			sr, description, err := RunComposer(ctx, e.transport, modelsUsed.Composer, concept, e.emitToken(string(models.StageComposer)), cancel)
			if err != nil {
				return models.PipelineResult{}, err
			}
			e.emitComplete(string(models.StageComposer), sr)
			composerResults = append(composerResults, sr)
			composed = append(composed, description)
		}
		lastModel = modelsUsed.Composer
	} else {
		composed = concepts
		for _, c := range concepts {
			composerResults = append(composerResults, models.StageResult{Stage: models.StageComposer, Ran: false, Input: c, Output: c})
		}
	}

	if cancel != nil && cancel() {
		return models.PipelineResult{}, corerr.New(corerr.KindCancelled, "pipeline cancelled before judge")
	}

	topIndex := 0
	if enabled.Judge && len(composed) >= 2 {
		e.emitStart(string(models.StageJudge), modelsUsed.Judge)
		sr, rankings, err := RunJudge(ctx, e.transport, modelsUsed.Judge, input.Idea, composed, e.emitToken(string(models.StageJudge)), cancel)
		if err != nil {
			return models.PipelineResult{}, err
		}
		e.emitComplete(string(models.StageJudge), sr)
		result.Judge = &sr
		topIndex = clampIndex(rankings[0].ConceptIndex, len(composed))
		lastModel = modelsUsed.Judge
	}

	// The composer slot in the result reflects the chosen concept,
	// keeping persisted composer metadata aligned with top_index (spec
	// §4.D step 7).
	if topIndex < len(composerResults) {
		result.Composer = &composerResults[topIndex]
	}
	topDescription := composed[topIndex]

	if cancel != nil && cancel() {
		return models.PipelineResult{}, corerr.New(corerr.KindCancelled, "pipeline cancelled before prompt engineer")
	}

	var pair models.PromptPair
	if enabled.PromptEngineer {
		e.emitStart(string(models.StagePromptEngineer), modelsUsed.PromptEngineer)
		sr, p, err := RunPromptEngineer(ctx, e.transport, modelsUsed.PromptEngineer, topDescription, checkpoint, e.emitToken(string(models.StagePromptEngineer)), cancel)
		if err != nil {
			return models.PipelineResult{}, err
		}
		e.emitComplete(string(models.StagePromptEngineer), sr)
		result.PromptEngineer = &sr
		pair = p
		lastModel = modelsUsed.PromptEngineer
	} else {
		pair = models.PromptPair{Positive: topDescription, Negative: models.DefaultNegative}
		result.PromptEngineer = &models.StageResult{Stage: models.StagePromptEngineer, Ran: false, Input: topDescription, Output: topDescription, PromptPair: &pair}
	}

	if cancel != nil && cancel() {
		return models.PipelineResult{}, corerr.New(corerr.KindCancelled, "pipeline cancelled before reviewer")
	}

	if enabled.Reviewer {
		e.emitStart(string(models.StageReviewer), modelsUsed.Reviewer)
		sr, verdict, err := RunReviewer(ctx, e.transport, modelsUsed.Reviewer, input.Idea, pair, e.emitToken(string(models.StageReviewer)), cancel)
		if err != nil {
			return models.PipelineResult{}, err
		}
		e.emitComplete(string(models.StageReviewer), sr)
		result.Reviewer = &sr
		lastModel = modelsUsed.Reviewer

		if !verdict.Approved {
			if verdict.SuggestedPositive != nil {
				pair.Positive = *verdict.SuggestedPositive
			}
			if verdict.SuggestedNegative != nil {
				pair.Negative = *verdict.SuggestedNegative
			}
			if result.PromptEngineer != nil {
				result.PromptEngineer.PromptPair = &pair
			}
		}
	}

	result.FinalPrompt = pair

	if lastModel != "" {
		if client, ok := e.transport.(*llm.Client); ok {
			client.UnloadModel(ctx, lastModel)
		}
	}

	return result, nil
}

// RunSingleStage reruns one stage in isolation and returns its JSON-encoded
// output (spec §4.D, the re-roll mechanism). For stages other than
// PromptEngineer, cc is accepted but ignored — the spec leaves this
// implementation-defined and only mandates that PromptEngineer honor it.
func (e *Engine) RunSingleStage(ctx context.Context, stage models.Stage, model string, inputBlob json.RawMessage, cc *models.CheckpointContext) (json.RawMessage, error) {
	checkpoint := models.DefaultCheckpointContext()
	if cc != nil {
		checkpoint = *cc
	}

	switch stage {
	case models.StageIdeator:
		var in struct {
			Idea        string `json:"idea"`
			NumConcepts int    `json:"numConcepts"`
		}
		if err := json.Unmarshal(inputBlob, &in); err != nil {
			return nil, corerr.Wrap(corerr.KindParse, "invalid ideator input", err)
		}
		_, concepts, err := RunIdeator(ctx, e.transport, model, in.Idea, clampNumConcepts(in.NumConcepts), nil, nil)
		if err != nil {
			return nil, err
		}
		return json.Marshal(concepts)

	case models.StageComposer:
		var in struct {
			Concept string `json:"concept"`
		}
		if err := json.Unmarshal(inputBlob, &in); err != nil {
			return nil, corerr.Wrap(corerr.KindParse, "invalid composer input", err)
		}
		_, description, err := RunComposer(ctx, e.transport, model, in.Concept, nil, nil)
		if err != nil {
			return nil, err
		}
		return json.Marshal(description)

	case models.StageJudge:
		var in struct {
			Idea     string   `json:"idea"`
			Composed []string `json:"composed"`
		}
		if err := json.Unmarshal(inputBlob, &in); err != nil {
			return nil, corerr.Wrap(corerr.KindParse, "invalid judge input", err)
		}
		_, rankings, err := RunJudge(ctx, e.transport, model, in.Idea, in.Composed, nil, nil)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rankings)

	case models.StagePromptEngineer:
		var in struct {
			Description string `json:"description"`
		}
		if err := json.Unmarshal(inputBlob, &in); err != nil {
			return nil, corerr.Wrap(corerr.KindParse, "invalid prompt engineer input", err)
		}
		_, pair, err := RunPromptEngineer(ctx, e.transport, model, in.Description, checkpoint, nil, nil)
		if err != nil {
			return nil, err
		}
		return json.Marshal(pair)

	case models.StageReviewer:
		var in struct {
			Idea     string `json:"idea"`
			Positive string `json:"positive"`
			Negative string `json:"negative"`
		}
		if err := json.Unmarshal(inputBlob, &in); err != nil {
			return nil, corerr.Wrap(corerr.KindParse, "invalid reviewer input", err)
		}
		_, verdict, err := RunReviewer(ctx, e.transport, model, in.Idea, models.PromptPair{Positive: in.Positive, Negative: in.Negative}, nil, nil)
		if err != nil {
			return nil, err
		}
		return json.Marshal(verdict)

	default:
		return nil, corerr.Newf(corerr.KindParse, "unknown stage %q", stage)
	}
}
