package server

import (
	"encoding/json"
	"strings"
)

// Insight is ephemeral advisory content for the dashboard; nothing is
// persisted. Field names match what the model is instructed to emit.
type Insight struct {
	PetName string `json:"petName"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Urgent  bool   `json:"urgent"`
}

// parseInsights parses the model's response into an insight list. The second
// return value reports whether the text was a well-formed array; callers map
// a malformed response to an empty list rather than an error, since insights
// are advisory content, not critical-path data.
func parseInsights(raw string) ([]Insight, bool) {
	text := stripCodeFence(raw)
	if text == "" {
		return nil, false
	}

	var insights []Insight
	if err := json.Unmarshal([]byte(text), &insights); err != nil {
		return nil, false
	}
	return insights, true
}

// stripCodeFence removes one leading/trailing markdown fence. The model is
// told not to emit one but sometimes does anyway.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if newline := strings.Index(text, "\n"); newline >= 0 {
		// Drop the language tag ("json") on the opening fence line.
		firstLine := strings.TrimSpace(text[:newline])
		if firstLine == "" || isFenceLanguageTag(firstLine) {
			text = text[newline+1:]
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func isFenceLanguageTag(value string) bool {
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
