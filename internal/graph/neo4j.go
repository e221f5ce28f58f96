package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/mnemotree/mnemocore/internal/types"
)

// neo4jDriver is the narrow slice of github.com/neo4j/neo4j-go-driver/v5
// this package depends on, so tests can supply a fake without pulling in
// a real database connection.
type neo4jDriver interface {
	ExecuteWrite(ctx context.Context, database, query string, params map[string]any) error
	ExecuteRead(ctx context.Context, database, query string, params map[string]any) ([]map[string]any, error)
}

// ErrNeo4jUnavailable is returned when graph operations are attempted
// without a configured driver.
var ErrNeo4jUnavailable = errors.New("neo4j driver not configured")

// Neo4jStore persists the knowledge graph in Neo4j instead of the
// in-process Store, for deployments where the graph must survive a
// restart or be queried with Cypher directly. It implements the same
// BuildGraph/QueryGraph/Stats/Clear contract as Store.
type Neo4jStore struct {
	driver   neo4jDriver
	database string
}

// NewNeo4jStore wires a configured driver. database is the Neo4j
// database name ("neo4j" for the default single-database deployment).
func NewNeo4jStore(driver neo4jDriver, database string) (*Neo4jStore, error) {
	if driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{driver: driver, database: database}, nil
}

// BuildGraph upserts every memory as a (:Memory) node and every
// extracted relation as a typed edge via MERGE, so re-running BuildGraph
// over overlapping memory sets is idempotent.
func (s *Neo4jStore) BuildGraph(ctx context.Context, tenantID string, memories []*types.MemoryUnit) error {
	if tenantID == "" {
		return errors.New("tenant id is required")
	}

	for _, m := range memories {
		err := s.driver.ExecuteWrite(ctx, s.database,
			`MERGE (n:Memory {tenant_id: $tenant_id, id: $id}) SET n.entities = $entities`,
			map[string]any{
				"tenant_id": tenantID,
				"id":        m.ID,
				"entities":  ExtractEntities(m.Content),
			})
		if err != nil {
			return fmt.Errorf("upsert memory node: %w", err)
		}
	}

	for _, e := range ExtractRelations(memories) {
		err := s.driver.ExecuteWrite(ctx, s.database,
			fmt.Sprintf(`MATCH (a:Memory {tenant_id: $tenant_id, id: $from}), (b:Memory {tenant_id: $tenant_id, id: $to})
MERGE (a)-[r:%s]->(b) SET r.strength = $strength, r.context = $context`, cypherRelLabel(e.Type)),
			map[string]any{
				"tenant_id": tenantID,
				"from":      e.From,
				"to":        e.To,
				"strength":  e.Strength,
				"context":   e.Context,
			})
		if err != nil {
			return fmt.Errorf("upsert relation edge: %w", err)
		}
	}
	return nil
}

// QueryGraph runs a variable-length Cypher path match bounded by depth
// and MinStrength and returns the IDs of the nodes it reaches. Unlike
// Store.QueryGraph it does not apply IncludeTypes and leaves Edges empty.
func (s *Neo4jStore) QueryGraph(ctx context.Context, tenantID string, opts QueryOptions) (*QueryResult, error) {
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

	query := fmt.Sprintf(`MATCH path = (root:Memory {tenant_id: $tenant_id, id: $root_id})-[r*1..%d]-(n:Memory)
WHERE ALL(rel IN relationships(path) WHERE rel.strength >= $min_strength)
RETURN DISTINCT n.id AS node_id`, depth)

	rows, err := s.driver.ExecuteRead(ctx, s.database, query, map[string]any{
		"tenant_id":    tenantID,
		"root_id":      opts.RootID,
		"min_strength": opts.MinStrength,
	})
	if err != nil {
		return nil, fmt.Errorf("query graph: %w", err)
	}

	nodeSet := map[string]struct{}{opts.RootID: {}}
	for _, row := range rows {
		if id, ok := row["node_id"].(string); ok {
			nodeSet[id] = struct{}{}
		}
	}
	nodes := make([]string, 0, len(nodeSet))
	for id := range nodeSet {
		nodes = append(nodes, id)
	}

	return &QueryResult{RootID: opts.RootID, MaxDepth: depth, TotalNodes: len(nodes), Nodes: nodes}, nil
}

// Stats counts nodes and edges for a tenant.
func (s *Neo4jStore) Stats(ctx context.Context, tenantID string) (Stats, error) {
	rows, err := s.driver.ExecuteRead(ctx, s.database,
		`MATCH (n:Memory {tenant_id: $tenant_id}) OPTIONAL MATCH (n)-[r]->() RETURN count(DISTINCT n) AS nodes, count(r) AS edges`,
		map[string]any{"tenant_id": tenantID})
	if err != nil {
		return Stats{}, fmt.Errorf("graph stats: %w", err)
	}
	if len(rows) == 0 {
		return Stats{}, nil
	}
	nodeCount, _ := rows[0]["nodes"].(int64)
	edgeCount, _ := rows[0]["edges"].(int64)
	return Stats{NodeCount: int(nodeCount), EdgeCount: int(edgeCount)}, nil
}

// Clear deletes every node and relationship belonging to a tenant.
func (s *Neo4jStore) Clear(ctx context.Context, tenantID string) error {
	return s.driver.ExecuteWrite(ctx, s.database,
		`MATCH (n:Memory {tenant_id: $tenant_id}) DETACH DELETE n`,
		map[string]any{"tenant_id": tenantID})
}

func cypherRelLabel(t RelationType) string {
	switch t {
	case RelationReferences:
		return "REFERENCES"
	case RelationContradicts:
		return "CONTRADICTS"
	case RelationExpands:
		return "EXPANDS"
	case RelationSimilar:
		return "SIMILAR"
	case RelationSequential:
		return "SEQUENTIAL"
	case RelationCauses:
		return "CAUSES"
	case RelationEnables:
		return "ENABLES"
	default:
		return "RELATED"
	}
}
