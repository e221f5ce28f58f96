package dedup

import (
	"context"
	"math"
	"sort"

	"github.com/mnemotree/mnemocore/internal/embedding"
	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/types"
)

var log = logging.GetLogger("dedup")

// MatchKind distinguishes an exact content-hash match from a
// semantic-similarity match.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchSemantic MatchKind = "semantic"
)

// Action is the caller-facing disposition for an ingest decision.
type Action string

const (
	ActionAdd             Action = "add"
	ActionSkip            Action = "skip"
	ActionUpdate          Action = "update"
	ActionMerge           Action = "merge"
	ActionAddWithRelation Action = "add_with_relation"
)

// Decision is the result of IngestDecision.
type Decision struct {
	Action   Action
	Kind     MatchKind
	Existing *types.MemoryUnit
	Score    float64
}

// Engine evaluates ingest-time duplicate decisions against a memory
// index and embedding gateway.
type Engine struct {
	index     memindex.Index
	gateway   embedding.Gateway
	threshold float64
	scanWindow int

	// hashIndex maps tenant -> content hash -> memory ID, maintained
	// by the caller via Observe/Forget as records are stored/deleted.
	hashIndex map[string]map[string]string

	// hashOrder is a per-tenant FIFO of hashes in hashIndex, used to
	// evict the oldest entries once scanWindow is exceeded so the
	// exact-hash scan only ever considers the scanWindow most recent
	// records.
	hashOrder map[string][]string
}

// New builds a dedup Engine. threshold is the semantic-similarity
// duplicate threshold (default 0.85); scanWindow bounds how many
// recent records the exact-hash scan considers (default 1000).
func New(index memindex.Index, gateway embedding.Gateway, threshold float64, scanWindow int) *Engine {
	if threshold <= 0 {
		threshold = 0.85
	}
	if scanWindow <= 0 {
		scanWindow = 1000
	}
	return &Engine{
		index:      index,
		gateway:    gateway,
		threshold:  threshold,
		scanWindow: scanWindow,
		hashIndex:  make(map[string]map[string]string),
		hashOrder:  make(map[string][]string),
	}
}

// Observe registers memoryID's content hash so future IngestDecision
// calls can find it as an exact match, evicting the oldest hash once
// the tenant's entry count exceeds scanWindow.
func (e *Engine) Observe(tenantID, memoryID, content string) {
	hash := ContentHash(content)
	tenant, ok := e.hashIndex[tenantID]
	if !ok {
		tenant = make(map[string]string)
		e.hashIndex[tenantID] = tenant
	}
	if _, exists := tenant[hash]; !exists {
		e.hashOrder[tenantID] = append(e.hashOrder[tenantID], hash)
	}
	tenant[hash] = memoryID

	order := e.hashOrder[tenantID]
	for len(order) > e.scanWindow {
		delete(tenant, order[0])
		order = order[1:]
	}
	e.hashOrder[tenantID] = order
}

// Forget removes content's hash from tenantID's table, e.g. on delete or merge.
func (e *Engine) Forget(tenantID, content string) {
	hash := ContentHash(content)
	if tenant, ok := e.hashIndex[tenantID]; ok {
		delete(tenant, hash)
	}
	order := e.hashOrder[tenantID]
	for i, h := range order {
		if h == hash {
			e.hashOrder[tenantID] = append(order[:i], order[i+1:]...)
			break
		}
	}
}

// IngestDecision evaluates whether newContent should be added, as
// per the spec §4.4 algorithm: exact-hash scan first, then
// semantic-similarity threshold bands.
func (e *Engine) IngestDecision(ctx context.Context, tenantID, newContent string) (Decision, error) {
	hash := ContentHash(newContent)
	if tenant, ok := e.hashIndex[tenantID]; ok {
		if id, ok := tenant[hash]; ok {
			existing, err := e.index.Get(ctx, tenantID, id)
			if err == nil {
				return Decision{Action: ActionSkip, Kind: MatchExact, Existing: existing, Score: 1.0}, nil
			}
		}
	}

	vec, err := e.gateway.Embed(ctx, newContent)
	if err != nil {
		return Decision{}, err
	}

	minScore := 0.9 * e.threshold
	hits, err := e.index.Search(ctx, tenantID, vec, memindex.Filter{}, 1)
	if err != nil {
		return Decision{}, err
	}
	if len(hits) == 0 || hits[0].Score < minScore {
		return Decision{Action: ActionAdd}, nil
	}

	top := hits[0]
	if top.Score < e.threshold {
		// Between the search floor (0.9·threshold) and threshold: not
		// similar enough to flag as a duplicate.
		return Decision{Action: ActionAdd}, nil
	}

	action := decideAction(top.Score, e.threshold, len(newContent), len(top.Memory.Content))
	return Decision{Action: action, Kind: MatchSemantic, Existing: top.Memory, Score: top.Score}, nil
}

// decideAction maps a semantic similarity score (known to be >=
// threshold) and the relative length of new vs. existing content onto
// the spec's action bands.
func decideAction(score, threshold float64, newLen, existingLen int) Action {
	switch {
	case score >= 0.95 && existingLen > 0 && float64(newLen)/float64(existingLen) > 1.2:
		return ActionUpdate
	case score >= 0.95:
		return ActionSkip
	case score >= 0.85:
		return ActionMerge
	default:
		// threshold <= score < 0.85, reachable only when threshold
		// itself is configured below 0.85.
		return ActionAddWithRelation
	}
}

// Group is a set of records discovered to be mutual duplicates, in
// created_at ascending / importance descending order with Members[0]
// as the primary.
type Group struct {
	Members []*types.MemoryUnit
}

// DiscoverGroups performs greedy transitive-closure grouping over
// records at similarity >= threshold: for each unprocessed record,
// collect every other unprocessed record above threshold into a
// group; singleton groups are dropped.
func DiscoverGroups(records []*types.MemoryUnit, threshold float64) []Group {
	processed := make([]bool, len(records))
	var groups []Group

	for i := range records {
		if processed[i] || len(records[i].Embedding) == 0 {
			continue
		}
		members := []*types.MemoryUnit{records[i]}
		processed[i] = true

		for j := i + 1; j < len(records); j++ {
			if processed[j] || len(records[j].Embedding) == 0 {
				continue
			}
			if cosineSimilarity(records[i].Embedding, records[j].Embedding) >= threshold {
				members = append(members, records[j])
				processed[j] = true
			}
		}

		if len(members) < 2 {
			continue
		}

		sort.Slice(members, func(a, b int) bool {
			if members[a].CreatedAt.Equal(members[b].CreatedAt) {
				return members[a].Importance > members[b].Importance
			}
			return members[a].CreatedAt.Before(members[b].CreatedAt)
		})

		groups = append(groups, Group{Members: members})
	}

	return groups
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
