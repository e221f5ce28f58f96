package retrieval

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mnemotree/mnemocore/internal/bm25"
	"github.com/mnemotree/mnemocore/internal/embedding"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/testutil"
)

func newTestRetriever() (*Retriever, memindex.Index, *bm25.Index) {
	idx := memindex.New()
	sparse := bm25.New()
	gw := embedding.WrapProvider(fakeProvider{dim: 768}, time.Minute, 1)
	return New(idx, sparse, gw), idx, sparse
}

type fakeProvider struct{ dim int }

func (f fakeProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	return testutil.DeterministicEmbed(text, f.dim), nil
}
func (f fakeProvider) Dimensions() int { return f.dim }

func index(ctx context.Context, r *Retriever, idxStore memindex.Index, sparse *bm25.Index, tenant, content string) {
	m := testutil.NewMemoryUnit(tenant, content)
	idxStore.Store(ctx, m)
	sparse.Add(ctx, tenant, m.ID, content)
}

func TestRetriever_HybridFavorsRelevantBattery(t *testing.T) {
	r, idxStore, sparse := newTestRetriever()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		index(ctx, r, idxStore, sparse, "tenant-a", fmt.Sprintf("battery optimization tips for mobile devices, note %d", i))
	}
	for i := 0; i < 5; i++ {
		index(ctx, r, idxStore, sparse, "tenant-a", fmt.Sprintf("cooking pasta with garlic and olive oil, note %d", i))
	}

	results, err := r.Retrieve(ctx, "tenant-a", "how to save battery", Options{Limit: 10})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}

	batteryCount := 0
	for _, res := range results[:5] {
		if containsBattery(res.Memory.Content) {
			batteryCount++
		}
	}
	if batteryCount < 4 {
		t.Errorf("expected battery records to dominate top 5, got %d/5", batteryCount)
	}
}

func containsBattery(s string) bool {
	for i := 0; i+7 <= len(s); i++ {
		if s[i:i+7] == "battery" {
			return true
		}
	}
	return false
}

func TestExpandQuery_IncludesOriginal(t *testing.T) {
	variants := ExpandQuery("How to fix a bug", 3)
	if len(variants) == 0 || variants[0] != "how to fix a bug" {
		t.Errorf("expected original lowercased query first, got %v", variants)
	}
}

func TestExpandQuery_BoundedByV(t *testing.T) {
	variants := ExpandQuery("what is the team feature", 1)
	if len(variants) > 2 {
		t.Errorf("expected at most V+1=2 variants, got %d: %v", len(variants), variants)
	}
}

func TestFuse_StableUnderInputPermutation(t *testing.T) {
	dense := []rankedHit{{id: "a", score: 0.9}, {id: "b", score: 0.5}}
	sparse := []rankedHit{{id: "b", score: 3}, {id: "a", score: 1}}

	f1 := fuse(dense, sparse, 0.6, 0.4, 60)
	f2 := fuse(sparse, dense, 0.4, 0.6, 60) // swapped args AND swapped weights to match roles

	score1 := make(map[string]float64)
	for _, h := range f1 {
		score1[h.id] = h.rrfScore
	}
	score2 := make(map[string]float64)
	for _, h := range f2 {
		score2[h.id] = h.rrfScore
	}

	for id, s := range score1 {
		if got := score2[id]; got != s {
			t.Errorf("expected RRF score for %s to be order-independent, got %f vs %f", id, s, got)
		}
	}
}

func TestRetriever_TenantIsolation(t *testing.T) {
	r, idxStore, sparse := newTestRetriever()
	ctx := context.Background()
	index(ctx, r, idxStore, sparse, "tenant-a", "only visible to tenant a")

	results, err := r.Retrieve(ctx, "tenant-b", "only visible to tenant a", Options{Limit: 10})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no cross-tenant results, got %d", len(results))
	}
}
