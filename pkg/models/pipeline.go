package models

// Stage identifies one of the five LLM invocation roles (spec §4.C, glossary).
type Stage string

const (
	StageIdeator        Stage = "ideator"
	StageComposer       Stage = "composer"
	StageJudge          Stage = "judge"
	StagePromptEngineer Stage = "promptEngineer"
	StageReviewer       Stage = "reviewer"
)

// AllStages lists the five stages in pipeline execution order.
var AllStages = [5]Stage{StageIdeator, StageComposer, StageJudge, StagePromptEngineer, StageReviewer}

// DefaultNegative is substituted when the PromptEngineer stage is disabled
// (spec §4.D.8).
const DefaultNegative = "lowres, bad anatomy, bad hands, text, watermark, blurry"

// TermStrength labels how reliably a checkpoint's known prompt term behaves.
type TermStrength string

const (
	TermStrengthStrong   TermStrength = "strong"
	TermStrengthModerate TermStrength = "moderate"
	TermStrengthWeak     TermStrength = "weak"
	TermStrengthBroken   TermStrength = "broken"
)

// PromptTerm is one known-effective prompt term for a checkpoint.
type PromptTerm struct {
	Term     string
	Effect   string
	Strength TermStrength
}

// CheckpointContext is the ephemeral, read-only bundle passed into the
// Prompt-Engineer stage (spec §3).
type CheckpointContext struct {
	CheckpointName   string
	BaseModel        string
	Strengths        string
	Weaknesses       string
	PreferredCFGLow  float64
	PreferredCFGHigh float64
	PreferredSampler string
	Notes            string
	KnownTerms       []PromptTerm
}

// DefaultCheckpointContext is used when no checkpoint context is supplied to
// the Prompt-Engineer stage (spec §4.C PromptEngineer).
func DefaultCheckpointContext() CheckpointContext {
	return CheckpointContext{
		CheckpointName:   "unknown",
		BaseModel:        "SD 1.5",
		PreferredCFGLow:  6,
		PreferredCFGHigh: 8,
		PreferredSampler: "euler_a",
	}
}

// PromptPair is a {positive, negative} pair suitable for the diffusion
// service (glossary).
type PromptPair struct {
	Positive string
	Negative string
}

// JudgeRanking is one entry of the Judge stage's ranking output (spec §4.B).
type JudgeRanking struct {
	Rank         uint32
	ConceptIndex int
	Score        uint32
	Reasoning    string
}

// ReviewVerdict is the Reviewer stage's parsed output (spec §4.B).
type ReviewVerdict struct {
	Approved          bool
	Issues            []string
	SuggestedPositive *string
	SuggestedNegative *string
}

// StageResult records one stage's input/output/timing for the pipeline
// result (spec §3). A stage that did not run has Ran=false and zero
// DurationMS, Model and token counts; the Composer and PromptEngineer
// passthrough entries still carry the passed-through text in Input and
// Output.
type StageResult struct {
	Stage        Stage
	Ran          bool
	Input        string
	Output       string
	DurationMS   int64
	Model        string
	PromptTokens int
	EvalTokens   int

	// Structured payloads populated only for the stages that produce them;
	// the caller type-asserts on Stage before reading these.
	JudgeRankings []JudgeRanking
	PromptPair    *PromptPair
	Verdict       *ReviewVerdict
}

// PipelineResult is the ephemeral value returned by a full pipeline run
// (spec §3).
type PipelineResult struct {
	OriginalIdea      string
	Ideator           *StageResult
	Composer          *StageResult
	Judge             *StageResult
	PromptEngineer    *StageResult
	Reviewer          *StageResult
	FinalPrompt       PromptPair
	AutoApproved      bool
	UserEdits         *PromptPair
	GenerationSettings *GenerationRequest
}
