package parse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewVerdict_Approved(t *testing.T) {
	raw := json.RawMessage(`{"approved": true}`)
	v, err := ReviewVerdict(raw)
	require.NoError(t, err)
	assert.True(t, v.Approved)
	assert.Empty(t, v.Issues)
}

func TestReviewVerdict_DefaultsApprovedWhenAbsent(t *testing.T) {
	raw := json.RawMessage(`{"issues": ["too busy"]}`)
	v, err := ReviewVerdict(raw)
	require.NoError(t, err)
	assert.True(t, v.Approved)
	assert.Equal(t, []string{"too busy"}, v.Issues)
}

func TestReviewVerdict_RejectedWithSuggestions(t *testing.T) {
	raw := json.RawMessage(`{
		"approved": false,
		"issues": ["composition unbalanced"],
		"suggested_positive": "a cat, centered composition",
		"suggested_negative": "off-center, cropped"
	}`)
	v, err := ReviewVerdict(raw)
	require.NoError(t, err)
	assert.False(t, v.Approved)
	require.NotNil(t, v.SuggestedPositive)
	assert.Equal(t, "a cat, centered composition", *v.SuggestedPositive)
	require.NotNil(t, v.SuggestedNegative)
}

func TestReviewVerdict_NotAnObject(t *testing.T) {
	_, err := ReviewVerdict(json.RawMessage(`[1, 2, 3]`))
	assert.Error(t, err)
}
