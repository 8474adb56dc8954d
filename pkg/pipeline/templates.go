package pipeline

import (
	"fmt"

	"github.com/visionforge/core/pkg/models"
)

// ideatorSystemPrompt asks for N distinct visual concepts as a numbered
// list (spec §4.C Ideator).
func ideatorSystemPrompt(n int) string {
	return fmt.Sprintf(
		"You are a visual concept ideator. Given a short idea, propose %d distinctly "+
			"different visual concepts that explore the idea from different angles. "+
			"Each concept must be 2-3 sentences. Respond with a numbered list, one "+
			"concept per entry, and nothing else.", n)
}

// composerSystemPrompt asks for a single enriched natural-language
// paragraph, explicitly not tag syntax (spec §4.C Composer).
const composerSystemPrompt = "You are a visual prompt composer. Given a concept, write a single rich " +
	"natural-language paragraph that enriches it with specific materials, lighting, " +
	"color palette, camera framing, and atmosphere. Write flowing prose, not a " +
	"comma-separated tag list. Respond with only the paragraph."

// judgeSystemPrompt asks for a JSON ranking of composed descriptions
// (spec §4.C Judge).
const judgeSystemPrompt = "You are a judge comparing several composed visual descriptions against the " +
	"original idea they were derived from. Rank them from best to worst fit. " +
	"Respond with only a JSON array, each element " +
	"{\"rank\": <1-based int>, \"concept_index\": <0-based index into the input list>, " +
	"\"score\": <0-100 int>, \"reasoning\": <short string>}."

// promptEngineerSystemPrompt embeds the checkpoint profile and asks for a
// JSON {positive, negative} object (spec §4.C PromptEngineer).
func promptEngineerSystemPrompt(cc models.CheckpointContext) string {
	termsNote := ""
	if len(cc.KnownTerms) > 0 {
		termsNote = " Known effective terms for this checkpoint: "
		for i, t := range cc.KnownTerms {
			if i > 0 {
				termsNote += ", "
			}
			termsNote += fmt.Sprintf("%q (%s, %s)", t.Term, t.Effect, t.Strength)
		}
		termsNote += "."
	}
	return fmt.Sprintf(
		"You are a prompt engineer converting a visual description into diffusion "+
			"model prompt syntax for checkpoint %q (base model %s). Preferred CFG range "+
			"%.1f-%.1f, preferred sampler %s. Strengths: %s. Weaknesses: %s.%s "+
			"Respond with only a JSON object {\"positive\": <string>, \"negative\": <string>}.",
		cc.CheckpointName, cc.BaseModel, cc.PreferredCFGLow, cc.PreferredCFGHigh,
		cc.PreferredSampler, orNone(cc.Strengths), orNone(cc.Weaknesses), termsNote)
}

// reviewerSystemPrompt asks for an approval verdict (spec §4.C Reviewer).
const reviewerSystemPrompt = "You are reviewing a generated prompt pair against the original idea it was " +
	"derived from. If it faithfully captures the idea, respond with only " +
	"{\"approved\": true}. Otherwise respond with only " +
	"{\"approved\": false, \"issues\": [<string>, ...], " +
	"\"suggested_positive\": <string, optional>, \"suggested_negative\": <string, optional>}."

func orNone(s string) string {
	if s == "" {
		return "none specified"
	}
	return s
}
