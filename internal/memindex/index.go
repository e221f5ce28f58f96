// Package memindex implements the memory index (C2): the tenant-isolated
// store of record of MemoryUnits, with concurrent reads, per-tenant
// mutexes for writes, and dense cosine-similarity search.
package memindex

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/mnerr"
	"github.com/mnemotree/mnemocore/internal/types"
)

var log = logging.GetLogger("memindex")

// defaultMinScore is the floor Search applies to cosine similarity
// before a record is allowed to leave C2: a negative cosine means the
// query and memory point in substantially different directions and is
// never relevant enough to rank.
const defaultMinScore = 0

// Index is the capability every C2 backend (in-memory, sqlite-backed)
// satisfies.
type Index interface {
	Store(ctx context.Context, m *types.MemoryUnit) error
	Get(ctx context.Context, tenantID, id string) (*types.MemoryUnit, error)
	Update(ctx context.Context, tenantID, id string, mutate func(*types.MemoryUnit)) (*types.MemoryUnit, error)
	Delete(ctx context.Context, tenantID, id string) error
	GetAll(ctx context.Context, tenantID string, filter Filter) ([]*types.MemoryUnit, error)
	Search(ctx context.Context, tenantID string, queryVec []float32, filter Filter, limit int) ([]Scored, error)
	Count(ctx context.Context, tenantID string) (int, error)
}

// Filter restricts GetAll/Search to a structural subset of a tenant's
// memories. Zero values mean "no restriction" for that field.
type Filter struct {
	SessionID  string
	Type       types.MemoryType
	Topics     []string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	IncludeDeleted bool
}

func (f Filter) matches(m *types.MemoryUnit) bool {
	if !f.IncludeDeleted && m.IsDeleted {
		return false
	}
	if f.SessionID != "" && m.SessionID != f.SessionID {
		return false
	}
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	if !f.CreatedAfter.IsZero() && m.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && m.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	if len(f.Topics) > 0 && !hasAnyTopic(m.Topics, f.Topics) {
		return false
	}
	return true
}

func hasAnyTopic(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// Scored pairs a memory with its similarity score against a query
// vector.
type Scored struct {
	Memory *types.MemoryUnit
	Score  float64
}

// tenantShard holds one tenant's memories behind its own mutex, so
// writes to tenant A never block reads or writes for tenant B.
type tenantShard struct {
	mu       sync.RWMutex
	memories map[string]*types.MemoryUnit
}

// MemIndex is the in-process reference implementation of Index: a
// sharded concurrent map keyed first by tenant, then by memory ID.
type MemIndex struct {
	shardsMu sync.RWMutex
	shards   map[string]*tenantShard
}

// New creates an empty MemIndex.
func New() *MemIndex {
	return &MemIndex{shards: make(map[string]*tenantShard)}
}

func (idx *MemIndex) shardFor(tenantID string) *tenantShard {
	idx.shardsMu.RLock()
	s, ok := idx.shards[tenantID]
	idx.shardsMu.RUnlock()
	if ok {
		return s
	}

	idx.shardsMu.Lock()
	defer idx.shardsMu.Unlock()
	if s, ok := idx.shards[tenantID]; ok {
		return s
	}
	s = &tenantShard{memories: make(map[string]*types.MemoryUnit)}
	idx.shards[tenantID] = s
	return s
}

// Store inserts or overwrites m. If m.ID is empty a new UUID is
// assigned.
func (idx *MemIndex) Store(_ context.Context, m *types.MemoryUnit) error {
	if m.TenantID == "" {
		return mnerr.New(mnerr.BadRequest, "tenant_id is required")
	}
	if m.Content == "" {
		return mnerr.New(mnerr.BadRequest, "content is required")
	}
	if !m.Type.IsValid() {
		return mnerr.New(mnerr.BadRequest, "invalid memory type %q", m.Type)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	shard := idx.shardFor(m.TenantID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.memories[m.ID] = m.Clone()

	log.Debug("memory stored", "tenant_id", m.TenantID, "memory_id", m.ID)
	return nil
}

// Get returns the memory with id in tenantID's namespace. A mismatched
// tenant_id is treated identically to a missing ID — the caller
// learns nothing about records outside its own tenant.
func (idx *MemIndex) Get(_ context.Context, tenantID, id string) (*types.MemoryUnit, error) {
	shard := idx.shardFor(tenantID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	m, ok := shard.memories[id]
	if !ok || m.IsDeleted {
		return nil, mnerr.New(mnerr.NotFound, "memory %s not found", id)
	}
	return m.Clone(), nil
}

// Update applies mutate to the stored memory under the tenant's write
// lock and persists the result.
func (idx *MemIndex) Update(_ context.Context, tenantID, id string, mutate func(*types.MemoryUnit)) (*types.MemoryUnit, error) {
	shard := idx.shardFor(tenantID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	m, ok := shard.memories[id]
	if !ok || m.IsDeleted {
		return nil, mnerr.New(mnerr.NotFound, "memory %s not found", id)
	}

	mutate(m)
	m.UpdatedAt = time.Now()
	shard.memories[id] = m
	return m.Clone(), nil
}

// Delete soft-deletes the memory so lineage and dedup history survive.
func (idx *MemIndex) Delete(_ context.Context, tenantID, id string) error {
	shard := idx.shardFor(tenantID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	m, ok := shard.memories[id]
	if !ok || m.IsDeleted {
		return mnerr.New(mnerr.NotFound, "memory %s not found", id)
	}
	m.IsDeleted = true
	m.UpdatedAt = time.Now()
	return nil
}

// GetAll returns every memory in tenantID matching filter (deleted ones
// only when filter.IncludeDeleted is set),
// ordered by CreatedAt descending (most recent first) with ID as a
// deterministic tiebreak.
func (idx *MemIndex) GetAll(_ context.Context, tenantID string, filter Filter) ([]*types.MemoryUnit, error) {
	shard := idx.shardFor(tenantID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	out := make([]*types.MemoryUnit, 0, len(shard.memories))
	for _, m := range shard.memories {
		if filter.matches(m) {
			out = append(out, m.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Count returns the number of non-deleted memories for tenantID.
func (idx *MemIndex) Count(_ context.Context, tenantID string) (int, error) {
	shard := idx.shardFor(tenantID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	n := 0
	for _, m := range shard.memories {
		if !m.IsDeleted {
			n++
		}
	}
	return n, nil
}

// Search performs the tenant pre-filter mandated invariant: the
// cosine scan only ever runs over tenantID's own shard, never across
// tenants, then applies filter, then ranks by cosine similarity with
// a deterministic (score desc, then UpdatedAt desc, then ID asc) order.
func (idx *MemIndex) Search(_ context.Context, tenantID string, queryVec []float32, filter Filter, limit int) ([]Scored, error) {
	shard := idx.shardFor(tenantID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	candidates := make([]Scored, 0, len(shard.memories))
	for _, m := range shard.memories {
		if !filter.matches(m) {
			continue
		}
		if len(m.Embedding) == 0 || len(queryVec) == 0 {
			continue
		}
		score := cosineSimilarity(queryVec, m.Embedding)
		if score < defaultMinScore {
			continue
		}
		candidates = append(candidates, Scored{Memory: m.Clone(), Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if !candidates[i].Memory.UpdatedAt.Equal(candidates[j].Memory.UpdatedAt) {
			return candidates[i].Memory.UpdatedAt.After(candidates[j].Memory.UpdatedAt)
		}
		return candidates[i].Memory.ID < candidates[j].Memory.ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// cosineSimilarity computes the cosine similarity of two vectors of
// equal length, returning 0 if either is zero-length or mismatched.
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
