package llm

import "strings"

// CleanJSONBlock removes markdown code fences from model output.
// Models often wrap JSON in ```json ... ``` blocks even when told not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	// Drop a language tag on the fence line (json, JSON, javascript, ...)
	if idx := strings.Index(text, "\n"); idx >= 0 {
		tag := strings.TrimSpace(text[:idx])
		if len(tag) < 20 && !strings.ContainsAny(tag, " {[") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
