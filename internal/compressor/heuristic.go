package compressor

import "strings"

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"for": {}, "and": {}, "or": {}, "but": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "it": {}, "its": {}, "this": {}, "that": {},
	"with": {}, "as": {}, "by": {}, "from": {}, "into": {}, "up": {}, "down": {},
	"so": {}, "than": {}, "too": {}, "very": {}, "just": {}, "about": {}, "also": {},
}

// compressHeuristic strips stop words (matched case-insensitively)
// unless they are required keywords, keeps punctuation only when
// PreserveSentenceStructure is set, and keeps every other token
// regardless of the ratio target.
func compressHeuristic(tokens []token, opts Options) string {
	if len(tokens) == 0 {
		return ""
	}

	required := make(map[string]struct{}, len(opts.RequiredKeywords))
	for _, k := range opts.RequiredKeywords {
		required[strings.ToLower(k)] = struct{}{}
	}

	var kept []token
	for _, tk := range tokens {
		if tk.isPunct {
			if opts.PreserveSentenceStructure {
				kept = append(kept, tk)
			}
			continue
		}
		lower := strings.ToLower(tk.text)
		if _, stop := stopWords[lower]; stop {
			if _, required := required[lower]; !required {
				continue
			}
		}
		kept = append(kept, tk)
	}
	return joinTokens(kept)
}
