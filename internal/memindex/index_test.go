package memindex

import (
	"context"
	"testing"

	"github.com/mnemotree/mnemocore/internal/testutil"
	"github.com/mnemotree/mnemocore/internal/types"
)

func TestMemIndex_StoreAndGet(t *testing.T) {
	idx := New()
	ctx := context.Background()
	m := testutil.NewMemoryUnit("tenant-a", "hello world")

	if err := idx.Store(ctx, m); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := idx.Get(ctx, "tenant-a", m.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "hello world" {
		t.Errorf("expected content 'hello world', got %q", got.Content)
	}
}

func TestMemIndex_TenantIsolation(t *testing.T) {
	idx := New()
	ctx := context.Background()
	m := testutil.NewMemoryUnit("tenant-a", "secret")
	if err := idx.Store(ctx, m); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if _, err := idx.Get(ctx, "tenant-b", m.ID); err == nil {
		t.Fatal("expected cross-tenant Get to fail")
	}
}

func TestMemIndex_DeleteIsSoft(t *testing.T) {
	idx := New()
	ctx := context.Background()
	m := testutil.NewMemoryUnit("tenant-a", "to delete")
	idx.Store(ctx, m)

	if err := idx.Delete(ctx, "tenant-a", m.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := idx.Get(ctx, "tenant-a", m.ID); err == nil {
		t.Fatal("expected Get on deleted memory to fail")
	}

	all, _ := idx.GetAll(ctx, "tenant-a", Filter{IncludeDeleted: true})
	if len(all) != 1 || !all[0].IsDeleted {
		t.Fatal("expected soft-deleted memory visible with IncludeDeleted")
	}
}

func TestMemIndex_UpdateMutatesInPlace(t *testing.T) {
	idx := New()
	ctx := context.Background()
	m := testutil.NewMemoryUnit("tenant-a", "original")
	idx.Store(ctx, m)

	updated, err := idx.Update(ctx, "tenant-a", m.ID, func(mu *types.MemoryUnit) {
		mu.Content = "updated"
		mu.Importance = 0.9
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Content != "updated" || updated.Importance != 0.9 {
		t.Errorf("update did not apply: %+v", updated)
	}
}

func TestMemIndex_GetAllOrderingDeterministic(t *testing.T) {
	idx := New()
	ctx := context.Background()
	m1 := testutil.NewMemoryUnit("tenant-a", "first")
	m2 := testutil.NewMemoryUnit("tenant-a", "second")
	m1.CreatedAt = m2.CreatedAt // force a tie
	idx.Store(ctx, m1)
	idx.Store(ctx, m2)

	out1, _ := idx.GetAll(ctx, "tenant-a", Filter{})
	out2, _ := idx.GetAll(ctx, "tenant-a", Filter{})
	if len(out1) != 2 || len(out2) != 2 {
		t.Fatalf("expected 2 results, got %d and %d", len(out1), len(out2))
	}
	if out1[0].ID != out2[0].ID || out1[1].ID != out2[1].ID {
		t.Error("expected deterministic ordering across calls")
	}
}

func TestMemIndex_SearchRanksByCosineSimilarity(t *testing.T) {
	idx := New()
	ctx := context.Background()

	query := "cats are great pets"
	close := testutil.NewMemoryUnit("tenant-a", query)
	far := testutil.NewMemoryUnit("tenant-a", "something entirely different about finance")

	idx.Store(ctx, close)
	idx.Store(ctx, far)

	results, err := idx.Search(ctx, "tenant-a", close.Embedding, Filter{}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Memory.ID != close.ID {
		t.Errorf("expected exact-match memory to rank first, got %s", results[0].Memory.ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("expected descending score order")
	}
}

func TestMemIndex_SearchRespectsTenantBoundary(t *testing.T) {
	idx := New()
	ctx := context.Background()
	m := testutil.NewMemoryUnit("tenant-a", "only visible to tenant-a")
	idx.Store(ctx, m)

	results, err := idx.Search(ctx, "tenant-b", m.Embedding, Filter{}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no cross-tenant results, got %d", len(results))
	}
}

func TestMemIndex_Count(t *testing.T) {
	idx := New()
	ctx := context.Background()
	idx.Store(ctx, testutil.NewMemoryUnit("tenant-a", "one"))
	idx.Store(ctx, testutil.NewMemoryUnit("tenant-a", "two"))

	n, err := idx.Count(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}
}

func TestMemIndex_RejectsInvalidType(t *testing.T) {
	idx := New()
	ctx := context.Background()
	m := testutil.NewMemoryUnit("tenant-a", "bad type")
	m.Type = "not-a-real-type"

	if err := idx.Store(ctx, m); err == nil {
		t.Fatal("expected error for invalid memory type")
	}
}
