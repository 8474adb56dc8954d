package parse

import (
	"encoding/json"

	"github.com/visionforge/core/pkg/corerr"
	"github.com/visionforge/core/pkg/models"
)

type rawVerdict struct {
	Approved          *bool    `json:"approved"`
	Issues            []string `json:"issues"`
	SuggestedPositive *string  `json:"suggested_positive"`
	SuggestedNegative *string  `json:"suggested_negative"`
}

// ReviewVerdict parses the Reviewer stage's extracted JSON payload.
// "approved" defaults to true when absent, so a reviewer that emits only
// issues without an explicit verdict does not silently block the job (spec
// §4.B, §4.C Reviewer).
func ReviewVerdict(raw json.RawMessage) (models.ReviewVerdict, error) {
	var r rawVerdict
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.ReviewVerdict{}, corerr.Wrap(corerr.KindParse, "review verdict payload is not an object", err)
	}

	approved := true
	if r.Approved != nil {
		approved = *r.Approved
	}

	return models.ReviewVerdict{
		Approved:          approved,
		Issues:            r.Issues,
		SuggestedPositive: r.SuggestedPositive,
		SuggestedNegative: r.SuggestedNegative,
	}, nil
}
