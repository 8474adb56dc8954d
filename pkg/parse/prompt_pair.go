package parse

import (
	"encoding/json"

	"github.com/visionforge/core/pkg/corerr"
	"github.com/visionforge/core/pkg/models"
)

type rawPromptPair struct {
	Positive *string `json:"positive"`
	Negative *string `json:"negative"`
}

// PromptPair parses the PromptEngineer stage's extracted JSON payload into
// a {positive, negative} pair. Both fields are required (spec §4.B); a
// missing one fails with corerr.KindParse rather than being defaulted.
func PromptPair(raw json.RawMessage) (models.PromptPair, error) {
	var r rawPromptPair
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.PromptPair{}, corerr.Wrap(corerr.KindParse, "prompt pair payload is not an object", err)
	}
	if r.Positive == nil {
		return models.PromptPair{}, corerr.New(corerr.KindParse, "prompt pair missing \"positive\" field")
	}
	if r.Negative == nil {
		return models.PromptPair{}, corerr.New(corerr.KindParse, "prompt pair missing \"negative\" field")
	}
	return models.PromptPair{Positive: *r.Positive, Negative: *r.Negative}, nil
}
