package parse

import (
	"encoding/json"
	"strings"
)

// TagList extracts a normalized, deduplicated list of short tags from
// freeform or JSON LLM output (spec §4.B, invariant 6). It tries, in order:
// a JSON array, a JSON object carrying the array under a "tags" key, and
// finally a comma-split of the (fence-stripped) raw text. Every candidate
// tag is lowercased and trimmed; empty and over-length (>=50 chars) entries
// are dropped, and duplicates are removed while preserving first occurrence.
func TagList(text string) []string {
	cleaned := stripThinkAndFences(text)

	var tags []string
	var arr []string
	if err := json.Unmarshal([]byte(cleaned), &arr); err == nil {
		tags = arr
	} else {
		var obj struct {
			Tags []string `json:"tags"`
		}
		if err := json.Unmarshal([]byte(cleaned), &obj); err == nil && obj.Tags != nil {
			tags = obj.Tags
		} else {
			tags = strings.Split(cleaned, ",")
		}
	}

	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || len(t) >= 50 {
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}

	return out
}
