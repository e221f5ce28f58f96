package compressor

import (
	"strings"
	"testing"
)

const sample = "The quarterly report shows strong revenue growth across every region. " +
	"Engineering shipped three major features this quarter. " +
	"Jane Smith led the launch of version 4.2 on March 3rd. " +
	"Support tickets dropped significantly after the redesign. " +
	"The team celebrated with a small gathering in the office."

func TestCompress_TokenPruningReducesCount(t *testing.T) {
	result := Compress(sample, Options{Strategy: TokenPruning, TargetRatio: 0.5})
	if result.CompressedTokens >= result.OriginalTokens {
		t.Errorf("expected fewer tokens after compression, got %d >= %d", result.CompressedTokens, result.OriginalTokens)
	}
	if result.CompressedTokens == 0 {
		t.Error("expected non-empty compressed output")
	}
}

func TestCompress_SentencePruningKeepsWholeSentences(t *testing.T) {
	result := Compress(sample, Options{Strategy: SentencePruning, TargetRatio: 0.4})
	if !strings.Contains(result.Text, ".") {
		t.Error("expected sentence pruning to retain sentence-ending punctuation")
	}
}

func TestCompress_HybridAppliesBothPasses(t *testing.T) {
	sentenceOnly := Compress(sample, Options{Strategy: SentencePruning, TargetRatio: 0.6})
	hybrid := Compress(sample, Options{Strategy: Hybrid, TargetRatio: 0.6})
	if hybrid.CompressedTokens > sentenceOnly.CompressedTokens {
		t.Errorf("expected hybrid to prune at least as much as sentence pruning alone, got %d > %d",
			hybrid.CompressedTokens, sentenceOnly.CompressedTokens)
	}
}

func TestCompress_HeuristicRemovesStopWords(t *testing.T) {
	result := Compress("the quick fox jumps over the lazy dog", Options{Strategy: Heuristic})
	if strings.Contains(strings.ToLower(result.Text), " the ") {
		t.Errorf("expected stop words removed, got %q", result.Text)
	}
	if !strings.Contains(result.Text, "quick") || !strings.Contains(result.Text, "fox") {
		t.Errorf("expected content words preserved, got %q", result.Text)
	}
}

func TestCompress_HeuristicKeepsRequiredKeywords(t *testing.T) {
	result := Compress("the system is down and the team is on it", Options{
		Strategy:         Heuristic,
		RequiredKeywords: []string{"is"},
	})
	if !strings.Contains(result.Text, "is") {
		t.Errorf("expected required keyword 'is' preserved, got %q", result.Text)
	}
}

func TestCompress_PreservesOriginalTokenOrder(t *testing.T) {
	result := Compress(sample, Options{Strategy: TokenPruning, TargetRatio: 0.8})
	idxJane := strings.Index(result.Text, "Jane")
	idxTeam := strings.Index(result.Text, "team")
	if idxJane == -1 || idxTeam == -1 {
		t.Skip("both tokens not retained at this ratio")
	}
	if idxJane > idxTeam {
		t.Errorf("expected order preserved (Jane appears before team in source), got Jane@%d team@%d", idxJane, idxTeam)
	}
}

func TestTargetCount_NeverZero(t *testing.T) {
	if targetCount(1, 0.1) < 1 {
		t.Error("expected target count to be at least 1")
	}
}

func TestPositionalScore_FavorsEdges(t *testing.T) {
	if positionalScore(0, 10) <= positionalScore(5, 10) {
		t.Error("expected start-of-text token to score higher than a middle token")
	}
	if positionalScore(9, 10) <= positionalScore(5, 10) {
		t.Error("expected end-of-text token to score higher than a middle token")
	}
}
