package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/visionforge/core/pkg/models"
)

func TestIdeatorSystemPrompt_EmbedsConceptCount(t *testing.T) {
	assert.Contains(t, ideatorSystemPrompt(5), "5 distinctly")
}

func TestPromptEngineerSystemPrompt_EmbedsCheckpointFields(t *testing.T) {
	cc := models.DefaultCheckpointContext()
	cc.CheckpointName = "exampleCheckpoint"
	prompt := promptEngineerSystemPrompt(cc)
	assert.Contains(t, prompt, "exampleCheckpoint")
	assert.Contains(t, prompt, cc.BaseModel)
}

func TestPromptEngineerSystemPrompt_IncludesKnownTermsWhenPresent(t *testing.T) {
	cc := models.DefaultCheckpointContext()
	cc.KnownTerms = []models.PromptTerm{{Term: "cinematic", Effect: "lighting", Strength: models.TermStrengthStrong}}
	prompt := promptEngineerSystemPrompt(cc)
	assert.Contains(t, prompt, "cinematic")
}

func TestPromptEngineerSystemPrompt_OmitsKnownTermsNoteWhenAbsent(t *testing.T) {
	cc := models.DefaultCheckpointContext()
	cc.KnownTerms = nil
	prompt := promptEngineerSystemPrompt(cc)
	assert.NotContains(t, prompt, "Known effective terms")
}

func TestOrNone(t *testing.T) {
	assert.Equal(t, "none specified", orNone(""))
	assert.Equal(t, "vivid colors", orNone("vivid colors"))
}
