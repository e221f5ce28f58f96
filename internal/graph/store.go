package graph

import (
	"errors"
	"sync"

	"github.com/mnemotree/mnemocore/internal/types"
)

// QueryOptions bounds a BFS traversal from a root memory.
type QueryOptions struct {
	RootID       string
	Depth        int
	IncludeTypes []RelationType
	MinStrength  float64
}

const (
	defaultQueryDepth = 2
	maxQueryDepth     = 5
)

// QueryResult is the subgraph reachable from RootID within Depth hops.
type QueryResult struct {
	RootID     string
	MaxDepth   int
	TotalNodes int
	Nodes      []string
	Edges      []Edge
}

// Store is an in-process, tenant-scoped knowledge graph: nodes are
// memory IDs, edges are the typed relations ExtractRelations derives
// between them. It is the default backend for the knowledge-graph
// operations; Neo4jStore implements the same contract against a real
// graph database.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]map[string]*Node // tenantID -> memoryID -> node
	edges map[string][]Edge           // tenantID -> edges
}

func NewStore() *Store {
	return &Store{
		nodes: make(map[string]map[string]*Node),
		edges: make(map[string][]Edge),
	}
}

// BuildGraph extracts entities and relations from memories and merges
// them into the tenant's graph. An edge already recorded between the
// same pair with the same type is kept and the new one is skipped.
func (s *Store) BuildGraph(tenantID string, memories []*types.MemoryUnit) (Stats, error) {
	if tenantID == "" {
		return Stats{}, errors.New("tenant id is required")
	}

	newEdges := ExtractRelations(memories)

	s.mu.Lock()
	defer s.mu.Unlock()

	nodes, ok := s.nodes[tenantID]
	if !ok {
		nodes = make(map[string]*Node)
		s.nodes[tenantID] = nodes
	}
	for _, m := range memories {
		n, ok := nodes[m.ID]
		if !ok {
			n = &Node{MemoryID: m.ID}
			nodes[m.ID] = n
		}
		n.Entities = ExtractEntities(m.Content)
	}

	existing := s.edges[tenantID]
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[edgeKey(e)] = struct{}{}
	}
	for _, e := range newEdges {
		key := edgeKey(e)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		existing = append(existing, e)
	}
	s.edges[tenantID] = existing

	return s.statsLocked(tenantID), nil
}

func edgeKey(e Edge) string {
	return e.From + "|" + e.To + "|" + string(e.Type)
}

// QueryGraph runs a breadth-first traversal from opts.RootID, bounded
// by opts.Depth (default 2, capped at 5) and optionally filtered by
// relation type and minimum strength.
func (s *Store) QueryGraph(tenantID string, opts QueryOptions) (*QueryResult, error) {
	if opts.RootID == "" {
		return nil, errors.New("root_id is required")
	}

	depth := opts.Depth
	if depth <= 0 {
		depth = defaultQueryDepth
	}
	if depth > maxQueryDepth {
		depth = maxQueryDepth
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := s.nodes[tenantID]
	if nodes == nil {
		return nil, errors.New("memory not found")
	}
	if _, ok := nodes[opts.RootID]; !ok {
		return nil, errors.New("memory not found")
	}

	allowedType := func(t RelationType) bool {
		if len(opts.IncludeTypes) == 0 {
			return true
		}
		for _, want := range opts.IncludeTypes {
			if want == t {
				return true
			}
		}
		return false
	}

	adjacency := make(map[string][]Edge)
	for _, e := range s.edges[tenantID] {
		if !allowedType(e.Type) || e.Strength < opts.MinStrength {
			continue
		}
		adjacency[e.From] = append(adjacency[e.From], e)
		adjacency[e.To] = append(adjacency[e.To], Edge{From: e.To, To: e.From, Type: e.Type, Strength: e.Strength, Context: e.Context})
	}

	visited := map[string]int{opts.RootID: 0}
	order := []string{opts.RootID}
	queue := []string{opts.RootID}
	var resultEdges []Edge
	resultEdgeSeen := make(map[string]struct{})

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curDepth := visited[cur]
		if curDepth >= depth {
			continue
		}
		for _, e := range adjacency[cur] {
			if d, ok := visited[e.To]; !ok || d > curDepth+1 {
				if !ok {
					visited[e.To] = curDepth + 1
					order = append(order, e.To)
					queue = append(queue, e.To)
				}
			}
			key := e.From + "|" + e.To + "|" + string(e.Type)
			revKey := e.To + "|" + e.From + "|" + string(e.Type)
			if _, ok := resultEdgeSeen[key]; ok {
				continue
			}
			if _, ok := resultEdgeSeen[revKey]; ok {
				continue
			}
			resultEdgeSeen[key] = struct{}{}
			resultEdges = append(resultEdges, e)
		}
	}

	return &QueryResult{
		RootID:     opts.RootID,
		MaxDepth:   depth,
		TotalNodes: len(order),
		Nodes:      order,
		Edges:      resultEdges,
	}, nil
}

// Stats reports the tenant's current node/edge counts, broken down by
// relation type.
func (s *Store) Stats(tenantID string) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked(tenantID)
}

func (s *Store) statsLocked(tenantID string) Stats {
	counts := make(map[string]int)
	for _, e := range s.edges[tenantID] {
		counts[string(e.Type)]++
	}
	return Stats{
		NodeCount:  len(s.nodes[tenantID]),
		EdgeCount:  len(s.edges[tenantID]),
		TypeCounts: counts,
	}
}

// Clear removes a tenant's entire graph.
func (s *Store) Clear(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, tenantID)
	delete(s.edges, tenantID)
}
