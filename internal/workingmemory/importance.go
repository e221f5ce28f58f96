// Package workingmemory implements the MemGPT-style working-memory
// manager (C8): a bounded per-session working set with two replaceable
// slots, a reflection trigger, and overflow archival into the memory
// index.
package workingmemory

import "strings"

var importanceKeywords = []string{
	"important", "critical", "remember", "must", "urgent", "always",
	"never", "deadline", "required", "essential",
}

// EstimateImportance is the deterministic heuristic used to accumulate
// a session's reflection trigger: a base score bumped by length,
// keyword hits, question marks, and the presence of code, capped at 5.
func EstimateImportance(text string) float64 {
	score := 0.5
	words := strings.Fields(text)
	score += min(float64(len(words))/100.0, 2.0)

	lower := strings.ToLower(text)
	for _, kw := range importanceKeywords {
		if strings.Contains(lower, kw) {
			score += 0.5
		}
	}

	if strings.Contains(text, "?") {
		score += 0.3
	}
	if strings.Contains(text, "```") || strings.Contains(lower, "function") || strings.Contains(lower, "class") {
		score += 0.5
	}

	if score > 5 {
		score = 5
	}
	return score
}

// EstimateTokens approximates token count as 1.3 tokens per word, the
// same ratio used across the codebase wherever a cheap estimate
// suffices in place of a real tokenizer call.
func EstimateTokens(text string) int {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t'
	})
	return int(float64(len(words)) * 1.3)
}
