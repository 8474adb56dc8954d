package parse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJudgeRankings_Array(t *testing.T) {
	raw := json.RawMessage(`[
		{"rank": 2, "concept_index": 1, "score": 70, "reasoning": "decent"},
		{"rank": 1, "concept_index": 0, "score": 95, "reasoning": "best"}
	]`)
	out, err := JudgeRankings(raw)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint32(1), out[0].Rank)
	assert.Equal(t, 0, out[0].ConceptIndex)
	assert.Equal(t, uint32(2), out[1].Rank)
}

func TestJudgeRankings_KeyAlias(t *testing.T) {
	raw := json.RawMessage(`{"ranked_concepts": [{"index": 2, "score": 80}]}`)
	out, err := JudgeRankings(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].ConceptIndex)
}

func TestJudgeRankings_RankingsAlias(t *testing.T) {
	raw := json.RawMessage(`{"rankings": [{"concept_index": 0}]}`)
	out, err := JudgeRankings(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestJudgeRankings_SingleObjectBecomesOneElementList(t *testing.T) {
	raw := json.RawMessage(`{"concept_index": 3, "score": 50}`)
	out, err := JudgeRankings(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].ConceptIndex)
}

func TestJudgeRankings_MissingRankDefaultsToZero(t *testing.T) {
	raw := json.RawMessage(`[{"concept_index": 0}, {"concept_index": 1}]`)
	out, err := JudgeRankings(raw)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint32(0), out[0].Rank)
	assert.Equal(t, uint32(0), out[1].Rank)
}

func TestJudgeRankings_DefaultRankSortsBeforeExplicitRank(t *testing.T) {
	// Entry 0 has an explicit rank of 1; entry 1 omits rank, so it defaults
	// to 0 and must sort first, even though it appears second in the array.
	raw := json.RawMessage(`[{"rank": 1, "concept_index": 5}, {"concept_index": 0}]`)
	out, err := JudgeRankings(raw)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].ConceptIndex)
	assert.Equal(t, uint32(0), out[0].Rank)
	assert.Equal(t, 5, out[1].ConceptIndex)
	assert.Equal(t, uint32(1), out[1].Rank)
}

func TestJudgeRankings_BackfillsMissingConceptIndices(t *testing.T) {
	// Both entries omit concept_index: they must not collide on 0, and the
	// unclaimed index 1 must be assigned rather than left unused.
	raw := json.RawMessage(`[{"rank": 2}, {"rank": 1}]`)
	out, err := JudgeRankings(raw)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.ElementsMatch(t, []int{0, 1}, []int{out[0].ConceptIndex, out[1].ConceptIndex})
}

func TestJudgeRankings_BackfillSkipsIndicesClaimedByExplicitEntries(t *testing.T) {
	raw := json.RawMessage(`[{"rank": 3}, {"rank": 1, "concept_index": 2}, {"rank": 2}]`)
	out, err := JudgeRankings(raw)
	require.NoError(t, err)
	require.Len(t, out, 3)

	byRank := map[uint32]int{}
	for _, r := range out {
		byRank[r.Rank] = r.ConceptIndex
	}
	assert.Equal(t, 2, byRank[1])
	// The two entries missing concept_index claim the two indices (0, 1)
	// left unclaimed by the explicit concept_index 2, in array order: the
	// rank-3 entry comes first in the array, so it claims 0, leaving 1 for
	// the rank-2 entry.
	assert.Equal(t, 0, byRank[3])
	assert.Equal(t, 1, byRank[2])
}

func TestJudgeRankings_Empty(t *testing.T) {
	_, err := JudgeRankings(json.RawMessage(`[]`))
	assert.Error(t, err)
}
