// Package mnemo wires every component (C1-C12 plus the knowledge-graph
// extension) into the operations exposed to callers: store, recall, get,
// get_all, update, delete, the security operations, and the
// knowledge-graph operations. It is the one place that knows about every
// other internal package; nothing outside this package should need to.
package mnemo

import (
	"context"
	"strconv"
	"time"

	"github.com/mnemotree/mnemocore/internal/bm25"
	"github.com/mnemotree/mnemocore/internal/chunking"
	"github.com/mnemotree/mnemocore/internal/dedup"
	"github.com/mnemotree/mnemocore/internal/embedding"
	"github.com/mnemotree/mnemocore/internal/graph"
	"github.com/mnemotree/mnemocore/internal/injection"
	"github.com/mnemotree/mnemocore/internal/lineage"
	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/mnerr"
	"github.com/mnemotree/mnemocore/internal/pii"
	"github.com/mnemotree/mnemocore/internal/ratelimit"
	"github.com/mnemotree/mnemocore/internal/retrieval"
	"github.com/mnemotree/mnemocore/internal/sqlitestore"
	"github.com/mnemotree/mnemocore/internal/summarizer"
	"github.com/mnemotree/mnemocore/internal/types"
	"github.com/mnemotree/mnemocore/internal/vectorstore"
	"github.com/mnemotree/mnemocore/internal/workingmemory"
	"github.com/mnemotree/mnemocore/pkg/config"
)

var log = logging.GetLogger("mnemo")

// Service is the orchestrator: every exported method corresponds to one
// operation from spec.md §6.
type Service struct {
	cfg *config.Config

	gateway    embedding.Gateway
	index      memindex.Index
	sparse     *bm25.Index
	retriever  *retrieval.Retriever
	dedup      *dedup.Engine
	summarizer *summarizer.Summarizer
	working    *workingmemory.Manager
	graph      *graph.Store
	lineage    *lineage.Tracker
	limiter    *ratelimit.Limiter
}

// New wires every component together from cfg and a configured
// embedding gateway. The caller supplies the gateway (rather than this
// constructor building one) since the gateway's provider (Ollama, a
// deterministic test double, ...) is an operational choice independent
// of the rest of the wiring.
//
// cfg.Storage.Backend selects the C2 implementation: "memory" (the
// default, an in-process index that does not survive a restart) or
// "sqlite" (durable, opened at cfg.Storage.SQLitePath).
func New(cfg *config.Config, gateway embedding.Gateway) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var index memindex.Index
	switch cfg.Storage.Backend {
	case "sqlite":
		store, err := sqlitestore.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, mnerr.Wrap(mnerr.Internal, err, "open sqlite store at %s", cfg.Storage.SQLitePath)
		}
		index = store
	default:
		index = memindex.New()
	}

	// Qdrant, when enabled, accelerates dense search only; it never
	// replaces the index above as the source of record.
	if cfg.Qdrant.Enabled {
		index = vectorstore.New(&cfg.Qdrant, index, cfg.Embedding.Dimensions)
	}

	sparse := bm25.New()
	retriever := retrieval.New(index, sparse, gateway)
	dedupEngine := dedup.New(index, gateway, cfg.Search.DuplicateThreshold, cfg.Dedup.ScanWindow)
	summ := summarizer.New(gateway)
	working := workingmemory.New(index, summ, cfg.WorkingMemory.MaxTokens)

	rlCfg := &ratelimit.Config{
		Enabled: cfg.RateLimit.Enabled,
		Window:  cfg.RateLimit.Window,
		Global:  cfg.RateLimit.Global,
		PerOp:   cfg.RateLimit.PerOp,
	}

	return &Service{
		cfg:        cfg,
		gateway:    gateway,
		index:      index,
		sparse:     sparse,
		retriever:  retriever,
		dedup:      dedupEngine,
		summarizer: summ,
		working:    working,
		graph:      graph.NewStore(),
		lineage:    lineage.New(),
		limiter:    ratelimit.NewLimiter(rlCfg),
	}, nil
}

func (s *Service) checkRateLimit(tenantID string, op ratelimit.Op) error {
	result := s.limiter.Allow(tenantID, op)
	if !result.Allowed {
		return mnerr.RateLimit(result.RetryAfter, "rate limit exceeded for %s (%s)", op, result.LimitType)
	}
	return nil
}

// StoreInput is the argument set for Store.
type StoreInput struct {
	TenantID   string
	Content    string
	Type       types.MemoryType
	Importance float64
	Tags       []string
	SessionID  string
}

// StoreResult is Store's return value.
type StoreResult struct {
	ID     string
	Action dedup.Action
}

// Store ingests new content: rate-limits, runs the dedup gate, embeds
// on a novel add, and commits to the dense index, the sparse index,
// and the lineage log together.
func (s *Service) Store(ctx context.Context, in StoreInput) (StoreResult, error) {
	if err := s.checkRateLimit(in.TenantID, ratelimit.OpStore); err != nil {
		return StoreResult{}, err
	}
	if in.TenantID == "" {
		return StoreResult{}, mnerr.New(mnerr.BadRequest, "tenant_id is required")
	}
	if in.Content == "" {
		return StoreResult{}, mnerr.New(mnerr.BadRequest, "content is required")
	}
	if in.Type == "" {
		in.Type = types.TypeEpisodic
	}
	if in.Importance == 0 {
		in.Importance = 0.5
	}

	decision, err := s.dedup.IngestDecision(ctx, in.TenantID, in.Content)
	if err != nil {
		return StoreResult{}, mnerr.Wrap(mnerr.Transient, err, "dedup check failed")
	}

	switch decision.Action {
	case dedup.ActionSkip:
		return StoreResult{ID: decision.Existing.ID, Action: decision.Action}, nil
	case dedup.ActionUpdate:
		updated, err := s.index.Update(ctx, in.TenantID, decision.Existing.ID, func(m *types.MemoryUnit) {
			m.Content = in.Content
		})
		if err != nil {
			return StoreResult{}, err
		}
		s.lineage.RecordUpdated(in.TenantID, updated.ID, dedup.ContentHash(decision.Existing.Content), dedup.ContentHash(in.Content))
		return StoreResult{ID: updated.ID, Action: decision.Action}, nil
	case dedup.ActionMerge:
		// The new content never gets its own stored record; it is
		// folded directly into the existing match rather than routed
		// through Merge/DiscoverGroups, which operate on pairs of
		// already-stored records.
		combined := decision.Existing.Content + "\n" + in.Content
		importance := decision.Existing.Importance
		if in.Importance > importance {
			importance = in.Importance
		}
		updated, err := s.index.Update(ctx, in.TenantID, decision.Existing.ID, func(m *types.MemoryUnit) {
			m.Content = combined
			m.Importance = importance
		})
		if err != nil {
			return StoreResult{}, err
		}
		s.lineage.RecordUpdated(in.TenantID, updated.ID, dedup.ContentHash(decision.Existing.Content), dedup.ContentHash(combined))
		return StoreResult{ID: updated.ID, Action: decision.Action}, nil
	}

	vec, err := s.gateway.Embed(ctx, in.Content)
	if err != nil {
		return StoreResult{}, mnerr.Wrap(mnerr.Transient, err, "embedding failed")
	}

	memory := &types.MemoryUnit{
		TenantID:   in.TenantID,
		SessionID:  in.SessionID,
		Content:    in.Content,
		Type:       in.Type,
		Embedding:  vec,
		Importance: in.Importance,
		Topics:     in.Tags,
	}
	if err := s.index.Store(ctx, memory); err != nil {
		return StoreResult{}, err
	}

	s.sparse.Add(ctx, in.TenantID, memory.ID, in.Content)
	s.dedup.Observe(in.TenantID, memory.ID, in.Content)
	s.lineage.RecordCreated(in.TenantID, memory.ID, dedup.ContentHash(in.Content))

	if s.cfg.Chunking.Enabled {
		s.storeChunks(ctx, memory)
	}

	if in.SessionID != "" {
		if reg, ok := s.index.(sessionRegistry); ok {
			if err := reg.TouchSession(ctx, in.TenantID, in.SessionID); err != nil {
				log.Warn("touch session failed", "tenant_id", in.TenantID, "session_id", in.SessionID, "error", err)
			}
		}
	}

	if decision.Action == dedup.ActionAddWithRelation && decision.Existing != nil {
		log.Debug("stored with relation", "memory_id", memory.ID, "related_to", decision.Existing.ID)
	}

	return StoreResult{ID: memory.ID, Action: dedup.ActionAdd}, nil
}

// storeChunks splits parent's content into overlapping passages above
// cfg.Chunking's threshold and indexes each as its own MemoryUnit
// linked back to parent via metadata["parent_memory_id"], so hybrid
// retrieval can surface the one passage that matched instead of only
// the whole document. parent keeps its full content either way; this
// is additive over the single-record store path.
func (s *Service) storeChunks(ctx context.Context, parent *types.MemoryUnit) {
	cfg := chunking.Config{
		MaxChunkSize: s.cfg.Chunking.MaxChunkSize,
		OverlapSize:  s.cfg.Chunking.OverlapSize,
		MinChunkSize: s.cfg.Chunking.MinChunkSize,
	}
	chunks := chunking.Split(cfg, parent.Content)
	if len(chunks) == 0 {
		return
	}

	for _, c := range chunks {
		vec, err := s.gateway.Embed(ctx, c.Content)
		if err != nil {
			log.Warn("chunk embedding failed", "memory_id", parent.ID, "chunk_index", c.Index, "error", err)
			continue
		}
		child := &types.MemoryUnit{
			TenantID:   parent.TenantID,
			SessionID:  parent.SessionID,
			Content:    c.Content,
			Type:       parent.Type,
			Embedding:  vec,
			Importance: parent.Importance,
			Topics:     parent.Topics,
			Metadata: map[string]string{
				"parent_memory_id": parent.ID,
				"chunk_index":      strconv.Itoa(c.Index),
			},
		}
		if err := s.index.Store(ctx, child); err != nil {
			log.Warn("chunk store failed", "memory_id", parent.ID, "chunk_index", c.Index, "error", err)
			continue
		}
		s.sparse.Add(ctx, parent.TenantID, child.ID, c.Content)
	}
}

// Recall runs the hybrid retrieval pipeline (C4) and records an
// accessed lineage event for every returned memory.
func (s *Service) Recall(ctx context.Context, tenantID, query string, opts retrieval.Options) ([]retrieval.Result, error) {
	if err := s.checkRateLimit(tenantID, ratelimit.OpRecall); err != nil {
		return nil, err
	}

	results, err := s.retriever.Retrieve(ctx, tenantID, query, opts)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		s.lineage.RecordAccessed(tenantID, r.Memory.ID)
		if _, err := s.index.Update(ctx, tenantID, r.Memory.ID, func(m *types.MemoryUnit) {
			m.AccessCount++
			m.LastAccessedAt = time.Now()
		}); err != nil {
			log.Warn("failed to bump access stats", "memory_id", r.Memory.ID, "err", err)
		}
	}
	return results, nil
}

// Get fetches one memory by ID within tenantID's namespace.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*types.MemoryUnit, error) {
	m, err := s.index.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	s.lineage.RecordAccessed(tenantID, id)
	return m, nil
}

// GetAllResult is GetAll's return value.
type GetAllResult struct {
	Total    int
	Returned int
	Items    []*types.MemoryUnit
}

// GetAll lists a tenant's memories, optionally filtered.
func (s *Service) GetAll(ctx context.Context, tenantID string, filter memindex.Filter, limit int) (GetAllResult, error) {
	items, err := s.index.GetAll(ctx, tenantID, filter)
	if err != nil {
		return GetAllResult{}, err
	}
	total := len(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return GetAllResult{Total: total, Returned: len(items), Items: items}, nil
}

// UpdateInput is Update's argument set; zero-value Content/Importance
// mean "leave unchanged".
type UpdateInput struct {
	TenantID   string
	ID         string
	Content    string
	Importance float64
}

// Update rate-limits, applies a content and/or importance change, and
// re-embeds plus re-indexes the content in the sparse index when
// Content is provided.
func (s *Service) Update(ctx context.Context, in UpdateInput) error {
	if err := s.checkRateLimit(in.TenantID, ratelimit.OpUpdate); err != nil {
		return err
	}

	existing, err := s.index.Get(ctx, in.TenantID, in.ID)
	if err != nil {
		return err
	}
	previousHash := dedup.ContentHash(existing.Content)

	var newVec []float32
	if in.Content != "" && in.Content != existing.Content {
		newVec, err = s.gateway.Embed(ctx, in.Content)
		if err != nil {
			return mnerr.Wrap(mnerr.Transient, err, "embedding failed")
		}
	}

	updated, err := s.index.Update(ctx, in.TenantID, in.ID, func(m *types.MemoryUnit) {
		if in.Content != "" {
			m.Content = in.Content
		}
		if in.Importance != 0 {
			m.Importance = in.Importance
		}
		if newVec != nil {
			m.Embedding = newVec
		}
	})
	if err != nil {
		return err
	}

	if newVec != nil {
		s.sparse.Add(ctx, in.TenantID, in.ID, updated.Content)
		s.dedup.Forget(in.TenantID, existing.Content)
		s.dedup.Observe(in.TenantID, in.ID, updated.Content)
		s.lineage.RecordUpdated(in.TenantID, in.ID, previousHash, dedup.ContentHash(updated.Content))
	}
	return nil
}

// Delete rate-limits and soft-deletes a memory, so Get no longer
// finds it. permanent additionally drops it from the sparse index and
// the dedup hash table; in both modes the record itself stays in the
// index, marked deleted.
func (s *Service) Delete(ctx context.Context, tenantID, id string, permanent bool) error {
	if err := s.checkRateLimit(tenantID, ratelimit.OpDelete); err != nil {
		return err
	}

	existing, err := s.index.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.index.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.lineage.RecordDeleted(tenantID, id)

	if permanent {
		s.sparse.Remove(ctx, tenantID, id)
		s.dedup.Forget(tenantID, existing.Content)
	}
	return nil
}

// WorkingMemory exposes the C8 manager so callers can drive
// replace/update/reflect/manage directly against a session.
func (s *Service) WorkingMemory() *workingmemory.Manager { return s.working }

// Lineage exposes the C12 tracker for query/relations lookups.
func (s *Service) Lineage() *lineage.Tracker { return s.lineage }

// --- Security operations (spec.md §6) ---

// DetectPII runs the C9 detector over text.
func (s *Service) DetectPII(text string) []pii.Match {
	return pii.Detect(text)
}

// RedactPII detects and redacts PII in text per opts.
func (s *Service) RedactPII(text string, opts pii.RedactionOptions) (string, []pii.LogEntry) {
	return pii.Redact(text, opts)
}

// DetectInjection runs the C10 detector over text.
func (s *Service) DetectInjection(text string) injection.Assessment {
	return injection.Detect(text)
}

// SanitizeInput detects and neutralizes injection attempts in text per
// opts.
func (s *Service) SanitizeInput(text string, opts injection.SanitizeOptions) injection.Result {
	return injection.Sanitize(text, opts)
}

// ValidationResult is ValidateContent's return value: a combined
// security sweep over one piece of content before it is stored.
type ValidationResult struct {
	PII       []pii.Match
	Injection injection.Assessment
	Safe      bool
}

// ValidateContent runs both security detectors over text without
// modifying it, for callers that want to inspect before deciding
// whether to store or reject.
func (s *Service) ValidateContent(text string) ValidationResult {
	piiMatches := pii.Detect(text)
	assessment := injection.Detect(text)
	return ValidationResult{
		PII:       piiMatches,
		Injection: assessment,
		Safe:      len(piiMatches) == 0 && assessment.Level == injection.LevelNone,
	}
}

// --- Knowledge-graph operations (spec.md §6, secondary) ---

// ExtractEntities runs the graph package's entity heuristic over text.
func (s *Service) ExtractEntities(text string) []string {
	return graph.ExtractEntities(text)
}

// ExtractRelations derives candidate edges over a set of memories
// without persisting them to the tenant's graph.
func (s *Service) ExtractRelations(memories []*types.MemoryUnit) []graph.Edge {
	return graph.ExtractRelations(memories)
}

// BuildGraph extracts relations over a tenant's current memories (or a
// caller-supplied subset) and merges them into the tenant's graph.
func (s *Service) BuildGraph(ctx context.Context, tenantID string, memories []*types.MemoryUnit) (graph.Stats, error) {
	if memories == nil {
		all, err := s.index.GetAll(ctx, tenantID, memindex.Filter{})
		if err != nil {
			return graph.Stats{}, err
		}
		memories = all
	}
	return s.graph.BuildGraph(tenantID, memories)
}

// QueryGraph runs a BFS traversal over the tenant's built graph.
func (s *Service) QueryGraph(tenantID string, opts graph.QueryOptions) (*graph.QueryResult, error) {
	return s.graph.QueryGraph(tenantID, opts)
}

// GraphStats reports the tenant's current graph shape.
func (s *Service) GraphStats(tenantID string) graph.Stats {
	return s.graph.Stats(tenantID)
}

// ClearGraph discards the tenant's entire graph.
func (s *Service) ClearGraph(tenantID string) {
	s.graph.Clear(tenantID)
}

// sessionRegistry is satisfied by sqlitestore.Store (directly or
// through vectorstore.Accelerator's passthrough) but not by
// memindex.MemIndex — session bookkeeping only persists when the
// selected backend is durable.
type sessionRegistry interface {
	TouchSession(ctx context.Context, tenantID, sessionID string) error
	GetSession(ctx context.Context, tenantID, sessionID string) (*types.Session, error)
	ListSessions(ctx context.Context, tenantID string) ([]*types.Session, error)
}

// GetSession returns tenantID's sessionID, or mnerr.NotFound if the
// backend doesn't support session bookkeeping or has never seen it.
func (s *Service) GetSession(ctx context.Context, tenantID, sessionID string) (*types.Session, error) {
	reg, ok := s.index.(sessionRegistry)
	if !ok {
		return nil, mnerr.New(mnerr.NotFound, "session bookkeeping is not available on the in-memory backend")
	}
	return reg.GetSession(ctx, tenantID, sessionID)
}

// ListSessions returns every session recorded for tenantID, or an
// empty slice if the backend doesn't support session bookkeeping.
func (s *Service) ListSessions(ctx context.Context, tenantID string) ([]*types.Session, error) {
	reg, ok := s.index.(sessionRegistry)
	if !ok {
		return nil, nil
	}
	return reg.ListSessions(ctx, tenantID)
}
