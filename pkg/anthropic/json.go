package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// CleanJSON strips markdown code fences and any prose around the outermost
// JSON object or array in a model response.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	open, closing := "{", "}"
	if a, o := strings.Index(text, "["), strings.Index(text, "{"); a >= 0 && (o < 0 || a < o) {
		open, closing = "[", "]"
	}
	start := strings.Index(text, open)
	end := strings.LastIndex(text, closing)
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// DecodeJSON cleans text and unmarshals it into v.
func DecodeJSON(text string, v any) error {
	cleaned := CleanJSON(text)
	if cleaned == "" {
		return eris.New("anthropic: empty response")
	}
	return eris.Wrap(json.Unmarshal([]byte(cleaned), v), "anthropic: decode json")
}
