package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/mnemotree/mnemocore/internal/embedding"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/testutil"
	"github.com/mnemotree/mnemocore/internal/types"
)

func TestContentHash_NormalizesWhitespaceAndCase(t *testing.T) {
	h1 := ContentHash("Hello World\r\n")
	h2 := ContentHash("  hello world\n")
	if h1 != h2 {
		t.Errorf("expected equal hashes after normalization, got %s != %s", h1, h2)
	}
}

func TestContentHash_DistinctForDistinctContent(t *testing.T) {
	if ContentHash("a") == ContentHash("b") {
		t.Error("expected distinct hashes for distinct content")
	}
}

type fakeProvider struct{ dim int }

func (f fakeProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	return testutil.DeterministicEmbed(text, f.dim), nil
}
func (f fakeProvider) Dimensions() int { return f.dim }

func newEngine() (*Engine, memindex.Index) {
	idx := memindex.New()
	gw := embedding.WrapProvider(fakeProvider{dim: 32}, time.Minute, 1)
	return New(idx, gw, 0.85, 1000), idx
}

func TestEngine_ExactDuplicateSkips(t *testing.T) {
	e, idx := newEngine()
	ctx := context.Background()

	m := testutil.NewMemoryUnit("tenant-a", "remember to buy milk")
	idx.Store(ctx, m)
	e.Observe("tenant-a", m.ID, m.Content)

	decision, err := e.IngestDecision(ctx, "tenant-a", "Remember To Buy Milk")
	if err != nil {
		t.Fatalf("IngestDecision failed: %v", err)
	}
	if decision.Action != ActionSkip || decision.Kind != MatchExact {
		t.Errorf("expected exact skip, got %+v", decision)
	}
}

func TestEngine_NovelContentAdds(t *testing.T) {
	e, idx := newEngine()
	ctx := context.Background()

	m := testutil.NewMemoryUnit("tenant-a", "totally unrelated content about astronomy")
	idx.Store(ctx, m)
	e.Observe("tenant-a", m.ID, m.Content)

	decision, err := e.IngestDecision(ctx, "tenant-a", "a completely different sentence about cooking pasta dishes")
	if err != nil {
		t.Fatalf("IngestDecision failed: %v", err)
	}
	if decision.Action != ActionAdd {
		t.Errorf("expected add for novel content, got %+v", decision)
	}
}

func TestEngine_IdenticalContentTakesExactPath(t *testing.T) {
	e, idx := newEngine()
	ctx := context.Background()

	content := "the quarterly report shows strong growth"
	m := testutil.NewMemoryUnit("tenant-a", content)
	idx.Store(ctx, m)
	e.Observe("tenant-a", m.ID, m.Content)

	decision, err := e.IngestDecision(ctx, "tenant-a", content)
	if err != nil {
		t.Fatalf("IngestDecision failed: %v", err)
	}
	if decision.Kind != MatchExact {
		t.Fatalf("expected exact match path for identical content, got %+v", decision)
	}
}

func TestDiscoverGroups_SkipsSingletons(t *testing.T) {
	now := time.Now()
	a := &types.MemoryUnit{ID: "a", CreatedAt: now, Embedding: testutil.DeterministicEmbed("x", 16)}
	b := &types.MemoryUnit{ID: "b", CreatedAt: now.Add(time.Second), Embedding: testutil.DeterministicEmbed("y entirely different", 16)}

	groups := DiscoverGroups([]*types.MemoryUnit{a, b}, 0.99)
	if len(groups) != 0 {
		t.Errorf("expected no groups for dissimilar singletons, got %d", len(groups))
	}
}

func TestDiscoverGroups_GroupsSimilarRecords(t *testing.T) {
	now := time.Now()
	vec := testutil.DeterministicEmbed("shared content", 16)
	a := &types.MemoryUnit{ID: "a", CreatedAt: now, Importance: 0.5, Embedding: vec}
	b := &types.MemoryUnit{ID: "b", CreatedAt: now.Add(time.Second), Importance: 0.9, Embedding: vec}

	groups := DiscoverGroups([]*types.MemoryUnit{a, b}, 0.85)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Members[0].ID != "a" {
		t.Errorf("expected oldest record first, got %s", groups[0].Members[0].ID)
	}
}

func TestMerge_KeepHighestImportance(t *testing.T) {
	now := time.Now()
	a := &types.MemoryUnit{ID: "a", CreatedAt: now, Importance: 0.3, AccessCount: 2, Content: "Hello there."}
	b := &types.MemoryUnit{ID: "b", CreatedAt: now.Add(time.Second), Importance: 0.9, AccessCount: 5, Content: "World."}

	primary, absorbed := Merge(Group{Members: []*types.MemoryUnit{a, b}}, KeepHighestImportance)
	if primary.ID != "b" {
		t.Errorf("expected b as primary, got %s", primary.ID)
	}
	if primary.AccessCount != 7 {
		t.Errorf("expected combined access count 7, got %d", primary.AccessCount)
	}
	if len(absorbed) != 1 || absorbed[0] != "a" {
		t.Errorf("expected a absorbed, got %v", absorbed)
	}
}

func TestMerge_CombineContentDedupesSentences(t *testing.T) {
	now := time.Now()
	a := &types.MemoryUnit{ID: "a", CreatedAt: now, Content: "Hello there. Common sentence."}
	b := &types.MemoryUnit{ID: "b", CreatedAt: now.Add(time.Second), Content: "common SENTENCE. Goodbye now."}

	primary, _ := Merge(Group{Members: []*types.MemoryUnit{a, b}}, CombineContent)

	if !containsSubstr(primary.Content, "Hello there") || !containsSubstr(primary.Content, "Goodbye now") {
		t.Errorf("expected combined content to include unique sentences from both, got %q", primary.Content)
	}
	count := strCount(primary.Content, "ommon sentence")
	if count != 1 {
		t.Errorf("expected deduped repeated sentence to appear once, got %d times in %q", count, primary.Content)
	}
}

func containsSubstr(s, sub string) bool {
	return strCount(s, sub) > 0
}

func strCount(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}
