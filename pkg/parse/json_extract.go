package parse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/visionforge/core/pkg/corerr"
)

var thinkBlockRE = regexp.MustCompile(`(?s)<think>.*?</think>`)

// codeFenceRE matches ```json ... ``` or bare ``` ... ``` blocks, capturing
// the interior.
var codeFenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// stripThinkAndFences removes reasoning-model <think>...</think> preambles
// and unwraps a single markdown code fence, if present (spec §4.B).
func stripThinkAndFences(s string) string {
	s = thinkBlockRE.ReplaceAllString(s, "")
	if m := codeFenceRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// ExtractJSON tries a whole-string parse first, then falls back to
// scanning bracket pairs: for each of ('[',']') and ('{','}'), it takes the
// first opening and last closing delimiter and attempts to parse that
// substring. It tolerates <think> preambles and ```json fences (spec §4.B).
func ExtractJSON(text string) (json.RawMessage, error) {
	cleaned := stripThinkAndFences(text)

	if json.Valid([]byte(cleaned)) {
		return json.RawMessage(cleaned), nil
	}

	for _, pair := range []struct{ open, close byte }{{'[', ']'}, {'{', '}'}} {
		start := strings.IndexByte(cleaned, pair.open)
		end := strings.LastIndexByte(cleaned, pair.close)
		if start < 0 || end < 0 || end <= start {
			continue
		}
		candidate := cleaned[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, corerr.New(corerr.KindParse, "no valid JSON found in response")
}
