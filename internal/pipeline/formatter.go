package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceRe         = regexp.MustCompile("(?i)^```(json)?|```$")
	jsonObjectRe    = regexp.MustCompile(`(?s)\{.*\}`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseAnswer extracts the JSON object from a model response. Models wrap
// answers in markdown fences, prepend chatter, or emit trailing commas; all
// of that is tolerated as long as one valid object is present.
func ParseAnswer(raw string) (*Answer, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty model response")
	}

	trimmed = strings.TrimSpace(fenceRe.ReplaceAllString(trimmed, ""))

	match := jsonObjectRe.FindString(trimmed)
	if match == "" {
		return nil, fmt.Errorf("no JSON object found in response: %.200s", trimmed)
	}

	match = trailingCommaRe.ReplaceAllString(match, "$1")

	var answer Answer
	if err := json.Unmarshal([]byte(match), &answer); err != nil {
		return nil, fmt.Errorf("invalid JSON in response: %w", err)
	}
	if answer.Answer == "" {
		return nil, fmt.Errorf("model response missing answer field")
	}
	return &answer, nil
}
