package graph

import (
	"testing"
	"time"

	"github.com/mnemotree/mnemocore/internal/types"
)

func memory(id, sessionID, content string, at time.Time) *types.MemoryUnit {
	return &types.MemoryUnit{ID: id, TenantID: "t1", SessionID: sessionID, Content: content, CreatedAt: at}
}

func TestExtractEntities_FindsNamesAndEmails(t *testing.T) {
	entities := ExtractEntities("Alice Johnson emailed bob@example.com about the Go Project launch.")
	if len(entities) == 0 {
		t.Fatal("expected at least one entity")
	}
	found := false
	for _, e := range entities {
		if e == "bob@example.com" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected email to be extracted, got %v", entities)
	}
}

func TestExtractRelations_SameSessionAdjacentIsSequential(t *testing.T) {
	base := time.Now()
	mems := []*types.MemoryUnit{
		memory("a", "s1", "Started the onboarding flow.", base),
		memory("b", "s1", "Continued onboarding with the next step.", base.Add(time.Minute)),
	}
	edges := ExtractRelations(mems)

	found := false
	for _, e := range edges {
		if e.From == "a" && e.To == "b" && e.Type == RelationSequential {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a sequential edge a->b, got %+v", edges)
	}
}

func TestExtractRelations_ContradictionMarkerYieldsContradicts(t *testing.T) {
	base := time.Now()
	mems := []*types.MemoryUnit{
		memory("a", "s1", "The deploy uses blue-green releases.", base),
		memory("b", "s1", "However, the deploy actually uses canary releases.", base.Add(time.Minute)),
	}
	edges := ExtractRelations(mems)

	found := false
	for _, e := range edges {
		if e.Type == RelationContradicts && e.From == "b" && e.To == "a" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a contradicts edge b->a, got %+v", edges)
	}
}

func TestExtractRelations_SharedEntityYieldsReferencesOrSimilar(t *testing.T) {
	base := time.Now()
	mems := []*types.MemoryUnit{
		memory("a", "", "Alice Johnson started the Quarterly Review.", base),
		memory("b", "", "Alice Johnson finished the Quarterly Review early.", base.Add(time.Hour)),
	}
	edges := ExtractRelations(mems)
	if len(edges) == 0 {
		t.Fatal("expected at least one edge from shared entities")
	}
	for _, e := range edges {
		if e.Type != RelationSimilar && e.Type != RelationReferences {
			t.Errorf("expected similar/references edge, got %v", e.Type)
		}
	}
}

func TestValidateRelationType(t *testing.T) {
	for _, rt := range []string{"references", "contradicts", "expands", "similar", "sequential", "causes", "enables"} {
		if err := ValidateRelationType(rt); err != nil {
			t.Errorf("expected %s to be valid: %v", rt, err)
		}
	}
	if err := ValidateRelationType("REFERENCES"); err != nil {
		t.Error("expected case-insensitive validation")
	}
	if err := ValidateRelationType("relates"); err == nil {
		t.Error("expected 'relates' to be invalid")
	}
}

func TestRelationTypes_CountAndDescriptions(t *testing.T) {
	relTypes := RelationTypes()
	if len(relTypes) != 7 {
		t.Fatalf("expected 7 relationship types, got %d", len(relTypes))
	}
	for _, rt := range relTypes {
		if rt.Description == "" {
			t.Errorf("relation type %s has empty description", rt.Name)
		}
	}
}

func buildChain(t *testing.T, s *Store) {
	t.Helper()
	base := time.Now()
	mems := []*types.MemoryUnit{
		memory("a", "s1", "step one of the migration.", base),
		memory("b", "s1", "step two of the migration.", base.Add(time.Minute)),
		memory("c", "s1", "step three of the migration.", base.Add(2 * time.Minute)),
		memory("d", "s1", "step four of the migration.", base.Add(3 * time.Minute)),
	}
	if _, err := s.BuildGraph("t1", mems); err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}
}

func TestBuildGraphAndQueryGraph_DepthLimitsTraversal(t *testing.T) {
	s := NewStore()
	buildChain(t, s)

	res, err := s.QueryGraph("t1", QueryOptions{RootID: "a", Depth: 1})
	if err != nil {
		t.Fatalf("QueryGraph failed: %v", err)
	}
	if res.TotalNodes != 2 {
		t.Errorf("expected 2 nodes at depth 1, got %d (%v)", res.TotalNodes, res.Nodes)
	}

	res2, err := s.QueryGraph("t1", QueryOptions{RootID: "a", Depth: 3})
	if err != nil {
		t.Fatalf("QueryGraph failed: %v", err)
	}
	if res2.TotalNodes != 4 {
		t.Errorf("expected 4 nodes at depth 3, got %d", res2.TotalNodes)
	}
}

func TestQueryGraph_DefaultAndCappedDepth(t *testing.T) {
	s := NewStore()
	buildChain(t, s)

	res, err := s.QueryGraph("t1", QueryOptions{RootID: "a"})
	if err != nil {
		t.Fatalf("QueryGraph failed: %v", err)
	}
	if res.MaxDepth != defaultQueryDepth {
		t.Errorf("expected default depth %d, got %d", defaultQueryDepth, res.MaxDepth)
	}

	res2, err := s.QueryGraph("t1", QueryOptions{RootID: "a", Depth: 10})
	if err != nil {
		t.Fatalf("QueryGraph failed: %v", err)
	}
	if res2.MaxDepth != maxQueryDepth {
		t.Errorf("expected capped depth %d, got %d", maxQueryDepth, res2.MaxDepth)
	}
}

func TestQueryGraph_UnknownRootErrors(t *testing.T) {
	s := NewStore()
	buildChain(t, s)
	if _, err := s.QueryGraph("t1", QueryOptions{RootID: "nonexistent"}); err == nil {
		t.Error("expected error for unknown root id")
	}
}

func TestQueryGraph_TypeAndStrengthFilters(t *testing.T) {
	s := NewStore()
	buildChain(t, s)

	res, err := s.QueryGraph("t1", QueryOptions{RootID: "a", Depth: 3, IncludeTypes: []RelationType{RelationSequential}})
	if err != nil {
		t.Fatalf("QueryGraph failed: %v", err)
	}
	for _, e := range res.Edges {
		if e.Type != RelationSequential {
			t.Errorf("expected only sequential edges, got %v", e.Type)
		}
	}

	res2, err := s.QueryGraph("t1", QueryOptions{RootID: "a", Depth: 3, MinStrength: 0.9})
	if err != nil {
		t.Fatalf("QueryGraph failed: %v", err)
	}
	for _, e := range res2.Edges {
		if e.Strength < 0.9 {
			t.Errorf("expected only edges with strength >= 0.9, got %f", e.Strength)
		}
	}
}

func TestStats_ReflectsBuiltGraph(t *testing.T) {
	s := NewStore()
	buildChain(t, s)
	stats := s.Stats("t1")
	if stats.NodeCount != 4 {
		t.Errorf("expected 4 nodes, got %d", stats.NodeCount)
	}
	if stats.EdgeCount == 0 {
		t.Error("expected at least one edge")
	}
}

func TestClear_RemovesTenantGraph(t *testing.T) {
	s := NewStore()
	buildChain(t, s)
	s.Clear("t1")
	stats := s.Stats("t1")
	if stats.NodeCount != 0 || stats.EdgeCount != 0 {
		t.Errorf("expected empty graph after clear, got %+v", stats)
	}
	if _, err := s.QueryGraph("t1", QueryOptions{RootID: "a"}); err == nil {
		t.Error("expected query against cleared graph to fail")
	}
}

func TestBuildGraph_IsIdempotentOnReRun(t *testing.T) {
	s := NewStore()
	buildChain(t, s)
	before := s.Stats("t1")
	buildChain(t, s)
	after := s.Stats("t1")
	if before.EdgeCount != after.EdgeCount {
		t.Errorf("expected edge count stable across re-builds, got %d then %d", before.EdgeCount, after.EdgeCount)
	}
}
