package summarize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// analysis is the validated shape of a model response. Only the
// summary string is mandatory.
type analysis struct {
	Summary    string `json:"summary"`
	FocusScore *int   `json:"focus_score"`
	State      string `json:"state"`
}

var summaryFieldRe = regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// parseResponse applies the strict-then-lenient two-stage parse.
// Stage one insists on a JSON object with a summary; stage two strips
// wrapper text around the outermost braces and retries; stage three
// recovers only a summary string. Anything beyond that is an error and
// the caller treats the model as unavailable - no silent best guess.
func parseResponse(raw string) (*analysis, error) {
	cleaned := strings.TrimSpace(raw)

	// Stage 1: strict.
	var a analysis
	if err := json.Unmarshal([]byte(cleaned), &a); err == nil && a.Summary != "" {
		return &a, nil
	}

	// Stage 2: the model wrapped the JSON in prose or code fences.
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		var b analysis
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &b); err == nil && b.Summary != "" {
			return &b, nil
		}
	}

	// Stage 3: permissive extraction of the summary string alone.
	if m := summaryFieldRe.FindStringSubmatch(cleaned); m != nil {
		var text string
		if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &text); err == nil && text != "" {
			return &analysis{Summary: text}, nil
		}
	}

	return nil, fmt.Errorf("response has no recoverable summary")
}
