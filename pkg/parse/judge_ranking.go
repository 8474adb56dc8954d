package parse

import (
	"encoding/json"
	"sort"

	"github.com/visionforge/core/pkg/corerr"
	"github.com/visionforge/core/pkg/models"
)

// rawRanking mirrors the variety of key spellings models emit for one
// ranking entry. Any subset may be present; absent fields default to zero.
type rawRanking struct {
	Rank         *uint32 `json:"rank"`
	ConceptIndex *int    `json:"concept_index"`
	Index        *int    `json:"index"`
	Score        *uint32 `json:"score"`
	Reasoning    *string `json:"reasoning"`
	Reason       *string `json:"reason"`
}

// explicitConceptIndex reports the entry's concept_index/index field and
// whether either was actually present, so a missing field can be told apart
// from an explicit 0 during the backfill pass.
func (r rawRanking) explicitConceptIndex() (int, bool) {
	if r.ConceptIndex != nil {
		return *r.ConceptIndex, true
	}
	if r.Index != nil {
		return *r.Index, true
	}
	return 0, false
}

func (r rawRanking) reasoning() string {
	if r.Reasoning != nil {
		return *r.Reasoning
	}
	if r.Reason != nil {
		return *r.Reason
	}
	return ""
}

// JudgeRankings parses the Judge stage's extracted JSON payload. It accepts
// a bare array, or an object carrying the array under one of several key
// aliases ("ranked_concepts", "rankings", "tags"); a single object is
// treated as a one-element list. A missing rank defaults to 0; a missing
// concept_index is backfilled from whatever indices in [0, n) the other
// entries left unclaimed, so every index appears at most once. The result
// is then sorted by rank (spec §4.B, §9). An empty list fails with
// corerr.KindEmptyOutput.
func JudgeRankings(raw json.RawMessage) ([]models.JudgeRanking, error) {
	var rawList []rawRanking

	if err := json.Unmarshal(raw, &rawList); err != nil {
		var obj map[string]json.RawMessage
		if err2 := json.Unmarshal(raw, &obj); err2 != nil {
			var single rawRanking
			if err3 := json.Unmarshal(raw, &single); err3 != nil {
				return nil, corerr.Wrap(corerr.KindParse, "judge ranking payload is neither array nor object", err)
			}
			rawList = []rawRanking{single}
		} else {
			found := false
			for _, key := range []string{"ranked_concepts", "rankings", "tags"} {
				if v, ok := obj[key]; ok {
					if err := json.Unmarshal(v, &rawList); err != nil {
						return nil, corerr.Wrap(corerr.KindParse, "judge ranking list field is not an array", err)
					}
					found = true
					break
				}
			}
			if !found {
				var single rawRanking
				if err := json.Unmarshal(raw, &single); err != nil {
					return nil, corerr.New(corerr.KindParse, "judge ranking object has no recognized list key")
				}
				rawList = []rawRanking{single}
			}
		}
	}

	if len(rawList) == 0 {
		return nil, corerr.New(corerr.KindEmptyOutput, "judge ranking list is empty")
	}

	n := len(rawList)
	conceptIndices := make([]int, n)
	hasExplicit := make([]bool, n)
	claimed := make(map[int]bool, n)
	for i, r := range rawList {
		idx, ok := r.explicitConceptIndex()
		if ok {
			conceptIndices[i] = idx
			hasExplicit[i] = true
			claimed[idx] = true
		}
	}
	// Backfill: every entry that omitted concept_index claims the next
	// unclaimed index in [0, n), in array order, so every index in [0, n)
	// appears at most once (spec §4.B, §9).
	next := 0
	for i := range rawList {
		if hasExplicit[i] {
			continue
		}
		for next < n && claimed[next] {
			next++
		}
		if next >= n {
			continue
		}
		conceptIndices[i] = next
		claimed[next] = true
		next++
	}

	out := make([]models.JudgeRanking, n)
	for i, r := range rawList {
		rank := uint32(0)
		if r.Rank != nil {
			rank = *r.Rank
		}
		score := uint32(0)
		if r.Score != nil {
			score = *r.Score
		}
		out[i] = models.JudgeRanking{
			Rank:         rank,
			ConceptIndex: conceptIndices[i],
			Score:        score,
			Reasoning:    r.reasoning(),
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })

	return out, nil
}
