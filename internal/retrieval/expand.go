// Package retrieval implements the hybrid retriever (C4): query
// expansion, dense+sparse fusion by reciprocal rank, and composite
// rescoring over recency/importance/relevance.
package retrieval

import (
	"strings"
)

// synonyms is the fixed lexicon used for query expansion. Entries are
// symmetric: if "a" maps to "b", "b" maps to "a" as well (see init).
var synonyms = map[string][]string{
	"feature":      {"functionality"},
	"team":         {"colleague"},
	"bug":          {"issue", "defect"},
	"fix":          {"resolve", "repair"},
	"fast":         {"quick", "rapid"},
	"slow":         {"sluggish"},
	"save":         {"conserve", "preserve"},
	"delete":       {"remove", "erase"},
	"update":       {"modify", "change"},
	"create":       {"add", "make"},
	"battery":      {"power"},
	"error":        {"mistake", "fault"},
	"problem":      {"issue"},
	"help":         {"assist", "support"},
}

func init() {
	// Ensure symmetry: every listed synonym also maps back.
	extra := make(map[string][]string)
	for term, syns := range synonyms {
		for _, s := range syns {
			if !containsStr(synonyms[s], term) {
				extra[s] = append(extra[s], term)
			}
		}
	}
	for k, v := range extra {
		synonyms[k] = append(synonyms[k], v...)
	}
}

func containsStr(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

// paraphrasePrefixes maps a leading phrase to an alternate phrasing,
// applied when the query starts with the given prefix (case-insensitive).
var paraphrasePrefixes = []struct {
	from, to string
}{
	{"what is", "show me"},
	{"what are", "show me"},
	{"how to", "ways to"},
	{"how do i", "what is the way to"},
	{"why does", "what causes"},
	{"can you", "please"},
}

// ExpandQuery lowercases and tokenizes query, appends fixed-lexicon
// synonyms for each token, and generates up to V paraphrase variants
// (original always included first).
func ExpandQuery(query string, v int) []string {
	lower := strings.ToLower(strings.TrimSpace(query))
	variants := []string{lower}

	expanded := expandWithSynonyms(lower)
	if expanded != lower {
		variants = append(variants, expanded)
	}

	for _, p := range paraphrasePrefixes {
		if len(variants) >= v+1 {
			break
		}
		if strings.HasPrefix(lower, p.from) {
			variants = append(variants, p.to+strings.TrimPrefix(lower, p.from))
		}
	}

	if len(variants) > v+1 {
		variants = variants[:v+1]
	}
	return dedupeStrings(variants)
}

func expandWithSynonyms(query string) string {
	tokens := strings.Fields(query)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok)
		if syns, ok := synonyms[tok]; ok && len(syns) > 0 {
			out = append(out, syns[0])
		}
	}
	return strings.Join(out, " ")
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
