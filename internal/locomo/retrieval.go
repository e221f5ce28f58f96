package locomo

import (
	"context"
	"fmt"
	"sort"

	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/mnemo"
	"github.com/mnemotree/mnemocore/internal/retrieval"
	"github.com/mnemotree/mnemocore/internal/types"
)

// Retriever fetches context memories for a question within one
// conversation.
type Retriever interface {
	Retrieve(ctx context.Context, question, convID string, topK int) ([]*types.MemoryUnit, error)
	Strategy() RetrievalStrategy
}

// NewRetriever builds a Retriever for the given strategy.
func NewRetriever(strategy RetrievalStrategy, svc *mnemo.Service, tenantID string, ingester *Ingester) (Retriever, error) {
	switch strategy {
	case StrategyDirect:
		return &directRetriever{tenantID: tenantID, ingester: ingester}, nil
	case StrategyRecall:
		return &recallRetriever{svc: svc, tenantID: tenantID, ingester: ingester}, nil
	default:
		return nil, fmt.Errorf("unknown retrieval strategy: %s", strategy)
	}
}

// directRetriever returns the whole conversation in chronological order,
// truncated to the most recent topK turns — simulates putting everything
// in context with no retrieval step at all.
type directRetriever struct {
	tenantID string
	ingester *Ingester
}

func (r *directRetriever) Strategy() RetrievalStrategy { return StrategyDirect }

func (r *directRetriever) Retrieve(ctx context.Context, _ string, convID string, topK int) ([]*types.MemoryUnit, error) {
	memories, err := r.ingester.GetConversationMemories(ctx, convID)
	if err != nil {
		return nil, err
	}

	sort.Slice(memories, func(i, j int) bool {
		return memories[i].CreatedAt.Before(memories[j].CreatedAt)
	})

	if topK > 0 && len(memories) > topK {
		memories = memories[len(memories)-topK:]
	}
	return memories, nil
}

// recallRetriever runs the hybrid retriever against the question,
// scoped to the conversation's session.
type recallRetriever struct {
	svc      *mnemo.Service
	tenantID string
	ingester *Ingester
}

func (r *recallRetriever) Strategy() RetrievalStrategy { return StrategyRecall }

func (r *recallRetriever) Retrieve(ctx context.Context, question, convID string, topK int) ([]*types.MemoryUnit, error) {
	if topK <= 0 {
		topK = 10
	}

	results, err := r.svc.Recall(ctx, r.tenantID, question, retrieval.Options{
		Limit:  topK,
		Filter: memindex.Filter{SessionID: r.ingester.SessionID(convID)},
	})
	if err != nil {
		return nil, err
	}

	memories := make([]*types.MemoryUnit, len(results))
	for i, res := range results {
		memories[i] = res.Memory
	}
	return memories, nil
}
