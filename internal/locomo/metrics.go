package locomo

import (
	"math"
	"strings"
	"unicode"
)

// TokenizeAnswer tokenizes a string for F1/BLEU scoring: lowercase, strip
// punctuation, drop articles, split on whitespace. Standard SQuAD-style
// normalization.
func TokenizeAnswer(s string) []string {
	s = strings.ToLower(s)

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	articles := map[string]bool{"a": true, "an": true, "the": true}
	var tokens []string
	for _, w := range strings.Fields(b.String()) {
		if !articles[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// CalculateF1 computes token-level F1, precision, and recall between a
// retrieved answer and the ground truth, with multiplicity-aware overlap
// (a token repeated twice in both counts as two matches, not one).
func CalculateF1(retrieved, groundTruth string) (f1, precision, recall float64) {
	genTokens := TokenizeAnswer(retrieved)
	gtTokens := TokenizeAnswer(groundTruth)

	if len(genTokens) == 0 && len(gtTokens) == 0 {
		return 1.0, 1.0, 1.0
	}
	if len(genTokens) == 0 || len(gtTokens) == 0 {
		return 0, 0, 0
	}

	gtCounts := make(map[string]int)
	for _, t := range gtTokens {
		gtCounts[t]++
	}
	genCounts := make(map[string]int)
	for _, t := range genTokens {
		genCounts[t]++
	}

	common := 0
	for token, n := range genCounts {
		if gtN := gtCounts[token]; gtN > 0 {
			if n < gtN {
				common += n
			} else {
				common += gtN
			}
		}
	}

	precision = float64(common) / float64(len(genTokens))
	recall = float64(common) / float64(len(gtTokens))
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return f1, precision, recall
}

// CalculateBLEU1 computes unigram BLEU with a brevity penalty: clipped
// unigram precision against the ground truth, penalized when the
// retrieved text is shorter than the reference.
func CalculateBLEU1(retrieved, groundTruth string) float64 {
	genTokens := TokenizeAnswer(retrieved)
	gtTokens := TokenizeAnswer(groundTruth)
	if len(genTokens) == 0 || len(gtTokens) == 0 {
		return 0
	}

	gtCounts := make(map[string]int)
	for _, t := range gtTokens {
		gtCounts[t]++
	}

	clipped := 0
	remaining := make(map[string]int, len(gtCounts))
	for t, n := range gtCounts {
		remaining[t] = n
	}
	for _, t := range genTokens {
		if remaining[t] > 0 {
			clipped++
			remaining[t]--
		}
	}

	precision := float64(clipped) / float64(len(genTokens))

	brevity := 1.0
	if len(genTokens) < len(gtTokens) {
		brevity = math.Exp(1 - float64(len(gtTokens))/float64(len(genTokens)))
	}
	return precision * brevity
}

// CalculateExactMatch reports whether retrieved equals groundTruth after
// normalization.
func CalculateExactMatch(retrieved, groundTruth string) bool {
	return strings.Join(TokenizeAnswer(retrieved), " ") == strings.Join(TokenizeAnswer(groundTruth), " ")
}

// CalculateBatchMetrics aggregates a batch of scored questions into
// percentage-scale metrics.
func CalculateBatchMetrics(results []QuestionResult) Metrics {
	if len(results) == 0 {
		return Metrics{}
	}

	var sumF1, sumP, sumR, sumBLEU float64
	for _, r := range results {
		sumF1 += r.F1
		sumP += r.Precision
		sumR += r.Recall
		sumBLEU += r.BLEU1
	}

	n := float64(len(results))
	return Metrics{
		F1:        sumF1 / n * 100,
		Precision: sumP / n * 100,
		Recall:    sumR / n * 100,
		BLEU1:     sumBLEU / n * 100,
		Count:     len(results),
	}
}

// CalculateCategoryMetrics groups results by question category and
// aggregates each group independently.
func CalculateCategoryMetrics(results []QuestionResult) map[QuestionCategory]Metrics {
	byCategory := make(map[QuestionCategory][]QuestionResult)
	for _, r := range results {
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}

	out := make(map[QuestionCategory]Metrics, len(byCategory))
	for cat, rs := range byCategory {
		out[cat] = CalculateBatchMetrics(rs)
	}
	return out
}

// CompareWithBaseline compares a run's overall F1 against every published
// baseline.
func CompareWithBaseline(results *BenchmarkResults) []BaselineComparison {
	out := make([]BaselineComparison, len(PublishedBaselines))
	for i, b := range PublishedBaselines {
		out[i] = BaselineComparison{
			Baseline:   b,
			OurF1:      results.Overall.F1,
			Difference: results.Overall.F1 - b.F1,
		}
	}
	return out
}
