package compressor

import (
	"sort"
	"strings"
	"unicode"
)

// compressBySentence scores whole sentences (reusing tokenImportance
// averaged over each sentence's tokens) and keeps the highest-scoring
// ones up to TargetRatio of the original sentence count, restoring
// their original order.
func compressBySentence(text string, opts Options) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return text
	}
	target := targetCount(len(sentences), opts.TargetRatio)
	if target >= len(sentences) {
		return text
	}

	required := make(map[string]struct{}, len(opts.RequiredKeywords))
	for _, k := range opts.RequiredKeywords {
		required[strings.ToLower(k)] = struct{}{}
	}

	scores := make([]float64, len(sentences))
	for i, s := range sentences {
		tokens := tokenize(s)
		if len(tokens) == 0 {
			continue
		}
		var sum float64
		for j, tk := range tokens {
			sum += tokenImportance(tk, j, len(tokens), required, opts.PreserveSentenceStructure)
		}
		scores[i] = sum / float64(len(tokens))
	}

	idx := make([]int, len(sentences))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	keep := make(map[int]struct{}, target)
	for _, i := range idx[:target] {
		keep[i] = struct{}{}
	}

	var kept []string
	for i, s := range sentences {
		if _, ok := keep[i]; ok {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
				s := strings.TrimSpace(current.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
