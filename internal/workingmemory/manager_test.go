package workingmemory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mnemotree/mnemocore/internal/embedding"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/summarizer"
	"github.com/mnemotree/mnemocore/internal/testutil"
)

type fakeProvider struct{ dim int }

func (f fakeProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	return testutil.DeterministicEmbed(text, f.dim), nil
}
func (f fakeProvider) Dimensions() int { return f.dim }

func newManager(maxTokens int) (*Manager, memindex.Index) {
	idx := memindex.New()
	gw := embedding.WrapProvider(fakeProvider{dim: 16}, time.Minute, 1)
	summ := summarizer.New(gw)
	return New(idx, summ, maxTokens), idx
}

func TestEstimateImportance_KeywordsAndQuestionsRaiseScore(t *testing.T) {
	base := EstimateImportance("a short note")
	withKeyword := EstimateImportance("this is critical and must be remembered")
	if withKeyword <= base {
		t.Errorf("expected keyword-laden text to score higher: %v <= %v", withKeyword, base)
	}
}

func TestEstimateImportance_CapsAtFive(t *testing.T) {
	text := strings.Repeat("important critical urgent must remember ", 50) + "?"
	if score := EstimateImportance(text); score > 5 {
		t.Errorf("expected score capped at 5, got %v", score)
	}
}

func TestReplace_ReturnsPreviousValue(t *testing.T) {
	m, _ := newManager(1000)
	prev, err := m.Replace("t1", "s1", Core, "first")
	if err != nil || prev != "" {
		t.Fatalf("expected empty previous value, got %q err=%v", prev, err)
	}
	prev, err = m.Replace("t1", "s1", Core, "second")
	if err != nil || prev != "first" {
		t.Fatalf("expected previous value 'first', got %q err=%v", prev, err)
	}
}

func TestUpdate_AccumulatesImportance(t *testing.T) {
	m, _ := newManager(1000)
	ctx := context.Background()

	r1, err := m.Update(ctx, "t1", "s1", "a note")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	r2, err := m.Update(ctx, "t1", "s1", "this is critical and must be remembered")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if r2.AccumulatedImportance <= r1.AccumulatedImportance {
		t.Errorf("expected accumulated importance to grow, got %v then %v", r1.AccumulatedImportance, r2.AccumulatedImportance)
	}
}

func TestUpdate_TruncatesAndArchivesWhenOverBudget(t *testing.T) {
	m, idx := newManager(50)
	ctx := context.Background()

	var result UpdateResult
	var err error
	for i := 0; i < 20; i++ {
		result, err = m.Update(ctx, "t1", "s1", "This is a reasonably long sentence about the ongoing project status update.")
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}

	if !result.Truncated {
		t.Fatal("expected truncation once context exceeds 0.9x max tokens")
	}
	if result.ArchivedMemoryID == "" {
		t.Error("expected an archived memory id")
	}
	archived, err := idx.Get(ctx, "t1", result.ArchivedMemoryID)
	if err != nil {
		t.Fatalf("expected archived memory to be retrievable: %v", err)
	}
	if archived.Metadata["source"] != "truncation" {
		t.Errorf("expected source=truncation metadata, got %v", archived.Metadata)
	}
}

func TestShouldReflect_TriggersOnHighImportance(t *testing.T) {
	m, _ := newManager(100000)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		if _, err := m.Update(ctx, "t1", "s1", "important critical urgent must remember"); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}
	if !m.ShouldReflect("t1", "s1") {
		t.Error("expected reflection to be recommended after many high-importance updates")
	}
}

func TestReflect_ResetsContextAndAccumulator(t *testing.T) {
	m, idx := newManager(100000)
	ctx := context.Background()

	if _, err := m.Update(ctx, "t1", "s1", "The team shipped the release on schedule and customers were happy with it."); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	freed, err := m.Reflect(ctx, "t1", "s1")
	if err != nil {
		t.Fatalf("reflect failed: %v", err)
	}
	if freed < 0 {
		t.Errorf("expected non-negative tokens freed, got %d", freed)
	}

	s := m.session("t1", "s1")
	if s.AccumulatedImportance != 0 {
		t.Errorf("expected accumulator reset to 0, got %v", s.AccumulatedImportance)
	}
	if len(s.RecentSummaries) != 1 {
		t.Errorf("expected one recent summary pushed, got %d", len(s.RecentSummaries))
	}

	count, err := idx.Count(ctx, "t1")
	if err != nil || count == 0 {
		t.Errorf("expected the original context to be archived, count=%d err=%v", count, err)
	}
}

func TestManage_CascadesReflectThenTruncate(t *testing.T) {
	m, _ := newManager(100000)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := m.Update(ctx, "t1", "s1", "a note about the ongoing project status"); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}

	result, err := m.Manage(ctx, "t1", "s1", 10)
	if err != nil {
		t.Fatalf("manage failed: %v", err)
	}
	if !result.Reflected {
		t.Error("expected manage to trigger reflection when shrinking the cap drastically")
	}
}

func TestPushSummary_CapsAtFiveFIFO(t *testing.T) {
	s := newSessionState("t1", "s1", 1000)
	for i := 0; i < 8; i++ {
		s.pushSummary(strings.Repeat("x", i+1))
	}
	if len(s.RecentSummaries) != 5 {
		t.Fatalf("expected cap of 5 summaries, got %d", len(s.RecentSummaries))
	}
	if s.RecentSummaries[0] != strings.Repeat("x", 4) {
		t.Errorf("expected oldest-surviving summary to be the 4th pushed, got %q", s.RecentSummaries[0])
	}
}
