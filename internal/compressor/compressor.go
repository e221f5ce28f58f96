// Package compressor implements the memory compressor (C7): token- and
// sentence-level pruning strategies that reduce text to a token budget
// while keeping the highest-importance spans.
package compressor

import (
	"regexp"
	"sort"
	"strings"
)

// Strategy selects how text is reduced to fit a token budget.
type Strategy string

const (
	TokenPruning    Strategy = "token_pruning"
	SentencePruning Strategy = "sentence_pruning"
	Hybrid          Strategy = "hybrid"
	Heuristic       Strategy = "heuristic"
)

// Options configures a Compress call.
type Options struct {
	Strategy                  Strategy
	TargetRatio               float64
	PreserveSentenceStructure bool
	RequiredKeywords          []string
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = Hybrid
	}
	if o.TargetRatio <= 0 || o.TargetRatio > 1 {
		o.TargetRatio = 0.5
	}
	return o
}

// Result reports the outcome of a compression pass.
type Result struct {
	Text            string
	OriginalTokens  int
	CompressedTokens int
	Strategy        Strategy
}

type token struct {
	text    string
	order   int
	isPunct bool
}

// Compress reduces text according to opts.Strategy and returns the
// reduced text alongside before/after token counts.
func Compress(text string, opts Options) Result {
	opts = opts.withDefaults()
	original := tokenize(text)

	var out string
	switch opts.Strategy {
	case SentencePruning:
		out = compressBySentence(text, opts)
	case TokenPruning:
		out = compressByToken(original, opts)
	case Heuristic:
		out = compressHeuristic(original, opts)
	default: // Hybrid
		afterSentences := compressBySentence(text, opts)
		out = compressByToken(tokenize(afterSentences), opts)
	}

	return Result{
		Text:             out,
		OriginalTokens:   len(original),
		CompressedTokens: len(tokenize(out)),
		Strategy:         opts.Strategy,
	}
}

var tokenRe = regexp.MustCompile(`[A-Za-z0-9']+|[.,!?;:]`)

func tokenize(text string) []token {
	matches := tokenRe.FindAllString(text, -1)
	tokens := make([]token, len(matches))
	punct := regexp.MustCompile(`^[.,!?;:]$`)
	for i, m := range matches {
		tokens[i] = token{text: m, order: i, isPunct: punct.MatchString(m)}
	}
	return tokens
}

// compressByToken scores every token and keeps the highest-scoring
// ones up to TargetRatio of the original count, restoring input order.
func compressByToken(tokens []token, opts Options) string {
	if len(tokens) == 0 {
		return ""
	}
	target := targetCount(len(tokens), opts.TargetRatio)
	if target >= len(tokens) {
		return joinTokens(tokens)
	}

	required := make(map[string]struct{}, len(opts.RequiredKeywords))
	for _, k := range opts.RequiredKeywords {
		required[strings.ToLower(k)] = struct{}{}
	}

	scored := make([]token, len(tokens))
	scores := make([]float64, len(tokens))
	copy(scored, tokens)
	for i, tk := range tokens {
		scores[i] = tokenImportance(tk, i, len(tokens), required, opts.PreserveSentenceStructure)
	}

	idx := make([]int, len(tokens))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	keep := make(map[int]struct{}, target)
	for _, i := range idx[:target] {
		keep[i] = struct{}{}
	}

	var kept []token
	for i, tk := range scored {
		if _, ok := keep[i]; ok {
			kept = append(kept, tk)
		}
	}
	return joinTokens(kept)
}

func targetCount(total int, ratio float64) int {
	n := int(float64(total) * ratio)
	if n < 1 {
		n = 1
	}
	return n
}

func joinTokens(tokens []token) string {
	var b strings.Builder
	for i, tk := range tokens {
		if i > 0 && !tk.isPunct {
			b.WriteByte(' ')
		}
		b.WriteString(tk.text)
	}
	return b.String()
}

var (
	numericRe    = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	capitalizedRe = regexp.MustCompile(`^[A-Z][a-z]*$`)
)

// tokenImportance weights positional location, token type, structural
// role, and a fixed semantic baseline, per the spec's four-term model.
func tokenImportance(tk token, pos, total int, required map[string]struct{}, preserveStructure bool) float64 {
	positional := positionalScore(pos, total)
	typeScore := typeImportance(tk, required)
	structural := structuralImportance(tk, preserveStructure)
	const semanticBaseline = 0.4

	return 0.2*positional + 0.1*typeScore + 0.3*structural + semanticBaseline
}

// positionalScore favors tokens near the start and end of the text,
// where topic sentences and conclusions tend to live.
func positionalScore(pos, total int) float64 {
	if total <= 1 {
		return 1
	}
	rel := float64(pos) / float64(total-1)
	edge := rel
	if 1-rel < edge {
		edge = 1 - rel
	}
	return 1 - edge
}

func typeImportance(tk token, required map[string]struct{}) float64 {
	if tk.isPunct {
		return 0
	}
	score := 0.3
	if numericRe.MatchString(tk.text) {
		score += 0.4
	}
	if capitalizedRe.MatchString(tk.text) {
		score += 0.3
	}
	if _, ok := required[strings.ToLower(tk.text)]; ok {
		score += 0.5
	}
	if score > 1 {
		score = 1
	}
	return score
}

func structuralImportance(tk token, preserveStructure bool) float64 {
	if tk.isPunct {
		if preserveStructure {
			return 1
		}
		return 0.2
	}
	return 0.5
}
