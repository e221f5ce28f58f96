package locomo

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemotree/mnemocore/internal/types"
)

// QAEvaluator scores a dataset's QA annotations against a mnemo.Service's
// retrieval — no answer is generated, the retrieved context itself is
// scored against the ground-truth answer (F1/BLEU-1 on the single most
// relevant retrieved memory, the same fallback the teacher's AI-backed
// evaluator used whenever a language model was unavailable).
type QAEvaluator struct {
	ingester  *Ingester
	retriever Retriever
	config    *EvaluationConfig
}

// NewQAEvaluator builds a QAEvaluator using the retrieval strategy named
// in config.
func NewQAEvaluator(ingester *Ingester, retriever Retriever, config *EvaluationConfig) *QAEvaluator {
	if config.TopK <= 0 {
		config.TopK = 10
	}
	return &QAEvaluator{ingester: ingester, retriever: retriever, config: config}
}

// Evaluate scores every QA pair in dataset (optionally filtered by
// category or conversation ID) and returns the aggregated results.
func (e *QAEvaluator) Evaluate(ctx context.Context, dataset *Dataset) (*BenchmarkResults, error) {
	start := time.Now()

	results := &BenchmarkResults{
		Benchmark:  "locomo",
		Timestamp:  start,
		Strategy:   e.retriever.Strategy(),
		Config:     *e.config,
		Categories: make(map[QuestionCategory]Metrics),
	}

	conversations := dataset.Conversations
	if len(e.config.ConversationIDs) > 0 {
		conversations = filterConversations(conversations, e.config.ConversationIDs)
	}

	for _, conv := range conversations {
		convResults, err := e.evaluateConversation(ctx, &conv)
		if err != nil {
			return nil, fmt.Errorf("evaluate conversation %s: %w", conv.ID, err)
		}
		results.Questions = append(results.Questions, convResults...)
	}

	results.Overall = CalculateBatchMetrics(results.Questions)
	results.Categories = CalculateCategoryMetrics(results.Questions)
	results.Duration = time.Since(start)
	return results, nil
}

func (e *QAEvaluator) evaluateConversation(ctx context.Context, conv *Conversation) ([]QuestionResult, error) {
	var results []QuestionResult

	for _, qa := range conv.QA {
		if e.config.Category != "" && qa.Category != e.config.Category {
			continue
		}

		result, err := e.evaluateQuestion(ctx, conv.ID, &qa)
		if err != nil {
			if e.config.Verbose {
				log.Warn("failed to evaluate question", "conv_id", conv.ID, "error", err)
			}
			result = &QuestionResult{
				ConversationID:  conv.ID,
				Question:        qa.Question,
				Category:        qa.Category,
				GroundTruth:     qa.Answer,
				RetrievedAnswer: "",
			}
		}
		results = append(results, *result)
	}
	return results, nil
}

func (e *QAEvaluator) evaluateQuestion(ctx context.Context, convID string, qa *QAAnnotation) (*QuestionResult, error) {
	memories, err := e.retriever.Retrieve(ctx, qa.Question, convID, e.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	answer := "No relevant information found."
	if len(memories) > 0 {
		answer = memories[0].Content
	}

	f1, precision, recall := CalculateF1(answer, qa.Answer)
	bleu1 := CalculateBLEU1(answer, qa.Answer)
	evidenceFound := e.checkEvidenceFound(convID, qa.Evidence, memories)

	return &QuestionResult{
		ConversationID:    convID,
		Question:          qa.Question,
		Category:          qa.Category,
		GroundTruth:       qa.Answer,
		RetrievedAnswer:   answer,
		RetrievedMemories: len(memories),
		F1:                f1,
		Precision:         precision,
		Recall:            recall,
		BLEU1:             bleu1,
		EvidenceFound:     evidenceFound,
	}, nil
}

func (e *QAEvaluator) checkEvidenceFound(convID string, evidence []string, memories []*types.MemoryUnit) bool {
	if len(evidence) == 0 {
		return true
	}

	evidenceIDs := make(map[string]bool, len(evidence))
	for _, diaID := range evidence {
		if memID, ok := e.ingester.GetMemoryForDialogue(convID, diaID); ok {
			evidenceIDs[memID] = true
		}
	}

	for _, m := range memories {
		if evidenceIDs[m.ID] {
			return true
		}
	}
	return false
}

func filterConversations(conversations []Conversation, ids []string) []Conversation {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var out []Conversation
	for _, conv := range conversations {
		if want[conv.ID] {
			out = append(out, conv)
		}
	}
	return out
}

// GetQAStats reports how many questions a dataset carries per category.
func GetQAStats(dataset *Dataset) map[QuestionCategory]int {
	stats := make(map[QuestionCategory]int)
	for _, conv := range dataset.Conversations {
		for _, qa := range conv.QA {
			stats[qa.Category]++
		}
	}
	return stats
}
