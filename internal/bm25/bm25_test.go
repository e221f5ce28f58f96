package bm25

import (
	"context"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("The quick-brown Fox jumps! over a dog.")
	want := []string{"the", "quick", "brown", "fox", "jumps", "over", "dog"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize mismatch.\n got: %v\nwant: %v", got, want)
	}
}

func TestTokenize_DropsShortTokens(t *testing.T) {
	got := Tokenize("a I am ok")
	for _, tok := range got {
		if len(tok) < 2 {
			t.Errorf("expected tokens of length >= 2, got %q", tok)
		}
	}
}

func TestIndex_SearchRanksByRelevance(t *testing.T) {
	idx := New()
	ctx := context.Background()

	idx.Add(ctx, "tenant-a", "doc1", "the cat sat on the mat")
	idx.Add(ctx, "tenant-a", "doc2", "cats and dogs are common pets")
	idx.Add(ctx, "tenant-a", "doc3", "completely unrelated financial report")

	results := idx.Search(ctx, "tenant-a", "cat pets", 10)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].ID == "doc3" {
		t.Error("expected unrelated doc to rank last")
	}
}

func TestIndex_TenantIsolation(t *testing.T) {
	idx := New()
	ctx := context.Background()
	idx.Add(ctx, "tenant-a", "doc1", "secret content about finance")

	results := idx.Search(ctx, "tenant-b", "finance", 10)
	if len(results) != 0 {
		t.Errorf("expected no cross-tenant results, got %d", len(results))
	}
}

func TestIndex_RemoveDeletesDocument(t *testing.T) {
	idx := New()
	ctx := context.Background()
	idx.Add(ctx, "tenant-a", "doc1", "hello world")
	idx.Remove(ctx, "tenant-a", "doc1")

	results := idx.Search(ctx, "tenant-a", "hello", 10)
	if len(results) != 0 {
		t.Errorf("expected no results after removal, got %d", len(results))
	}
}

func TestIndex_AddReplacesExistingDoc(t *testing.T) {
	idx := New()
	ctx := context.Background()
	idx.Add(ctx, "tenant-a", "doc1", "original content about cats")
	idx.Add(ctx, "tenant-a", "doc1", "replaced content about dogs")

	catResults := idx.Search(ctx, "tenant-a", "cats", 10)
	if len(catResults) != 0 {
		t.Errorf("expected replaced doc not to match old content, got %d", len(catResults))
	}

	dogResults := idx.Search(ctx, "tenant-a", "dogs", 10)
	if len(dogResults) != 1 {
		t.Errorf("expected replaced doc to match new content, got %d", len(dogResults))
	}
}

func TestIndex_SearchLimit(t *testing.T) {
	idx := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		idx.Add(ctx, "tenant-a", string(rune('a'+i)), "common shared term")
	}

	results := idx.Search(ctx, "tenant-a", "common", 2)
	if len(results) != 2 {
		t.Errorf("expected limit=2 to cap results, got %d", len(results))
	}
}

func TestIndex_EmptyIndexReturnsNil(t *testing.T) {
	idx := New()
	results := idx.Search(context.Background(), "tenant-a", "anything", 10)
	if results != nil {
		t.Errorf("expected nil results on empty index, got %v", results)
	}
}
