package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/visionforge/core/pkg/corerr"
	"github.com/visionforge/core/pkg/llm"
	"github.com/visionforge/core/pkg/models"
	"github.com/visionforge/core/pkg/parse"
)

// numPredict values per stage (spec §4.C).
const (
	numPredictIdeator        = 1024
	numPredictComposer       = 2048
	numPredictJudge          = 1024
	numPredictPromptEngineer = 1024
	numPredictReviewer       = 1024

	repeatPenalty = 1.2
	repeatLastN   = 128
)

func stageOptions(numPredict int) *llm.Options {
	return &llm.Options{NumPredict: numPredict, RepeatPenalty: repeatPenalty, RepeatLastN: repeatLastN}
}

// transport is the subset of *llm.Client the stage runners need; defined
// here so tests can supply a stub instead of an HTTP round trip.
type transport interface {
	Chat(ctx context.Context, model string, messages []llm.Message, jsonMode bool, opts *llm.Options) (llm.Result, error)
	ChatStreaming(ctx context.Context, model string, messages []llm.Message, jsonMode bool, opts *llm.Options, onToken func(string), cancel func() bool) (llm.Result, error)
}

func runStage(ctx context.Context, t transport, model, system, user string, numPredict int, jsonMode bool, onToken func(string), cancel func() bool) (llm.Result, int64, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}
	start := time.Now()
	var (
		result llm.Result
		err    error
	)
	if onToken != nil {
		result, err = t.ChatStreaming(ctx, model, messages, jsonMode, stageOptions(numPredict), onToken, cancel)
	} else {
		result, err = t.Chat(ctx, model, messages, jsonMode, stageOptions(numPredict))
	}
	duration := time.Since(start).Milliseconds()
	return result, duration, err
}

// RunIdeator produces N distinct visual concepts from a user idea (spec
// §4.C Ideator). Fails EmptyOutput if the numbered-list parser finds
// nothing.
func RunIdeator(ctx context.Context, t transport, model, idea string, numConcepts int, onToken func(string), cancel func() bool) (models.StageResult, []string, error) {
	system := ideatorSystemPrompt(numConcepts)
	result, duration, err := runStage(ctx, t, model, system, idea, numPredictIdeator, false, onToken, cancel)
	if err != nil {
		return models.StageResult{}, nil, err
	}

	concepts := parse.NumberedList(result.Content)
	if len(concepts) == 0 {
		return models.StageResult{}, nil, corerr.New(corerr.KindEmptyOutput, "ideator produced no concepts")
	}

	sr := models.StageResult{
		Stage: models.StageIdeator, Ran: true, Input: idea, Output: result.Content,
		DurationMS: duration, Model: model, PromptTokens: result.PromptTokens, EvalTokens: result.EvalTokens,
	}
	return sr, concepts, nil
}

// RunComposer enriches a single concept into a rich natural-language
// paragraph (spec §4.C Composer). Fails EmptyOutput on an empty result.
func RunComposer(ctx context.Context, t transport, model, concept string, onToken func(string), cancel func() bool) (models.StageResult, string, error) {
	result, duration, err := runStage(ctx, t, model, composerSystemPrompt, concept, numPredictComposer, false, onToken, cancel)
	if err != nil {
		return models.StageResult{}, "", err
	}

	description := strings.TrimSpace(result.Content)
	if description == "" {
		return models.StageResult{}, "", corerr.New(corerr.KindEmptyOutput, "composer produced no description")
	}

	sr := models.StageResult{
		Stage: models.StageComposer, Ran: true, Input: concept, Output: description,
		DurationMS: duration, Model: model, PromptTokens: result.PromptTokens, EvalTokens: result.EvalTokens,
	}
	return sr, description, nil
}

// RunJudge ranks composed descriptions against the original idea (spec
// §4.C Judge). Fails EmptyOutput on zero rankings.
func RunJudge(ctx context.Context, t transport, model, idea string, composed []string, onToken func(string), cancel func() bool) (models.StageResult, []models.JudgeRanking, error) {
	user := idea + "\n\n" + parse.RenderNumberedList(composed)
	result, duration, err := runStage(ctx, t, model, judgeSystemPrompt, user, numPredictJudge, true, onToken, cancel)
	if err != nil {
		return models.StageResult{}, nil, err
	}

	raw, err := parse.ExtractJSON(result.Content)
	if err != nil {
		return models.StageResult{}, nil, err
	}
	rankings, err := parse.JudgeRankings(raw)
	if err != nil {
		return models.StageResult{}, nil, err
	}
	if len(rankings) == 0 {
		return models.StageResult{}, nil, corerr.New(corerr.KindEmptyOutput, "judge produced no rankings")
	}

	sr := models.StageResult{
		Stage: models.StageJudge, Ran: true, Input: user, Output: result.Content,
		DurationMS: duration, Model: model, PromptTokens: result.PromptTokens, EvalTokens: result.EvalTokens,
		JudgeRankings: rankings,
	}
	return sr, rankings, nil
}

// RunPromptEngineer converts a description into a diffusion prompt pair,
// using the given checkpoint context in its prompt (spec §4.C
// PromptEngineer).
func RunPromptEngineer(ctx context.Context, t transport, model, description string, cc models.CheckpointContext, onToken func(string), cancel func() bool) (models.StageResult, models.PromptPair, error) {
	system := promptEngineerSystemPrompt(cc)
	result, duration, err := runStage(ctx, t, model, system, description, numPredictPromptEngineer, true, onToken, cancel)
	if err != nil {
		return models.StageResult{}, models.PromptPair{}, err
	}

	raw, err := parse.ExtractJSON(result.Content)
	if err != nil {
		return models.StageResult{}, models.PromptPair{}, err
	}
	pair, err := parse.PromptPair(raw)
	if err != nil {
		return models.StageResult{}, models.PromptPair{}, err
	}

	sr := models.StageResult{
		Stage: models.StagePromptEngineer, Ran: true, Input: description, Output: result.Content,
		DurationMS: duration, Model: model, PromptTokens: result.PromptTokens, EvalTokens: result.EvalTokens,
		PromptPair: &pair,
	}
	return sr, pair, nil
}

// RunReviewer judges a candidate prompt pair against the original idea
// (spec §4.C Reviewer).
func RunReviewer(ctx context.Context, t transport, model, idea string, pair models.PromptPair, onToken func(string), cancel func() bool) (models.StageResult, models.ReviewVerdict, error) {
	input, err := json.Marshal(struct {
		Idea     string `json:"idea"`
		Positive string `json:"positive"`
		Negative string `json:"negative"`
	}{idea, pair.Positive, pair.Negative})
	if err != nil {
		return models.StageResult{}, models.ReviewVerdict{}, corerr.Wrap(corerr.KindIO, "failed to encode reviewer input", err)
	}

	result, duration, err := runStage(ctx, t, model, reviewerSystemPrompt, string(input), numPredictReviewer, true, onToken, cancel)
	if err != nil {
		return models.StageResult{}, models.ReviewVerdict{}, err
	}

	raw, err := parse.ExtractJSON(result.Content)
	if err != nil {
		return models.StageResult{}, models.ReviewVerdict{}, err
	}
	verdict, err := parse.ReviewVerdict(raw)
	if err != nil {
		return models.StageResult{}, models.ReviewVerdict{}, err
	}

	sr := models.StageResult{
		Stage: models.StageReviewer, Ran: true, Input: string(input), Output: result.Content,
		DurationMS: duration, Model: model, PromptTokens: result.PromptTokens, EvalTokens: result.EvalTokens,
		Verdict: &verdict,
	}
	return sr, verdict, nil
}
