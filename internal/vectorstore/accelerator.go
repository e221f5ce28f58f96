// Package vectorstore is an optional Qdrant-backed ANN accelerator for
// the memory index's dense search (C2). It decorates a backing
// memindex.Index — the source of record for every field Qdrant doesn't
// need to know about — and, when Qdrant is enabled and reachable,
// answers Search from Qdrant's HNSW index instead of the backing
// index's own in-process cosine scan. Every other operation passes
// straight through to the backing index unchanged.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/mnerr"
	"github.com/mnemotree/mnemocore/internal/types"
	"github.com/mnemotree/mnemocore/pkg/config"
)

var log = logging.GetLogger("vectorstore")

const collectionName = "mnemocore-memories"

// Accelerator wraps a backing memindex.Index and mirrors every stored
// embedding into Qdrant so Search can run against Qdrant's ANN index
// instead of a linear scan. It satisfies memindex.Index itself, so
// callers can swap it in without changing anything else.
type Accelerator struct {
	backing   memindex.Index
	client    *http.Client
	baseURL   string
	enabled   bool
	dimension int
}

var _ memindex.Index = (*Accelerator)(nil)

// New builds an Accelerator over backing. If cfg is nil or disabled,
// the returned Accelerator still satisfies memindex.Index but every
// call passes straight through to backing — wiring it in is always
// safe even when Qdrant isn't configured.
func New(cfg *config.QdrantConfig, backing memindex.Index, dimension int) *Accelerator {
	a := &Accelerator{
		backing:   backing,
		client:    &http.Client{Timeout: 10 * time.Second},
		dimension: dimension,
	}
	if cfg != nil {
		a.enabled = cfg.Enabled
		a.baseURL = cfg.URL
	}
	if a.baseURL == "" {
		a.baseURL = "http://localhost:6333"
	}
	return a
}

// Available reports whether Qdrant is both enabled and currently
// reachable. Callers (doctor, Search) use this to decide whether to
// rely on the ANN path or fall back to the backing index.
func (a *Accelerator) Available(ctx context.Context) bool {
	if !a.enabled {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/collections", nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// EnsureCollection creates the mnemocore-memories collection if it
// does not already exist, configured for cosine distance over
// a.dimension-sized vectors with the same HNSW parameters the teacher
// verified against a real deployment (m=16, ef_construct=100).
func (a *Accelerator) EnsureCollection(ctx context.Context) error {
	if !a.enabled {
		return nil
	}
	exists, err := a.collectionExists(ctx)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}

	body, _ := json.Marshal(map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     a.dimension,
			"distance": "Cosine",
		},
		"hnsw_config": map[string]interface{}{
			"m":            16,
			"ef_construct": 100,
		},
	})
	return a.do(ctx, http.MethodPut, "/collections/"+collectionName, body, nil)
}

func (a *Accelerator) collectionExists(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/collections/"+collectionName, nil)
	if err != nil {
		return false, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (a *Accelerator) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, string(b))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// upsert mirrors m's embedding into Qdrant, tagged with its tenant_id
// so Search can filter to one tenant's own points. Failures are
// logged and swallowed — Qdrant is an accelerator, not the source of
// record, so a write that only reaches the backing index is not an
// error the caller should see.
func (a *Accelerator) upsert(m *types.MemoryUnit) {
	if !a.enabled || len(m.Embedding) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	vector := make([]float64, len(m.Embedding))
	for i, f := range m.Embedding {
		vector[i] = float64(f)
	}
	body, _ := json.Marshal(map[string]interface{}{
		"points": []map[string]interface{}{{
			"id":     m.ID,
			"vector": vector,
			"payload": map[string]interface{}{
				"tenant_id": m.TenantID,
			},
		}},
	})
	if err := a.do(ctx, http.MethodPut, "/collections/"+collectionName+"/points", body, nil); err != nil {
		log.Warn("qdrant upsert failed", "memory_id", m.ID, "error", err)
	}
}

func (a *Accelerator) remove(id string) {
	if !a.enabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	body, _ := json.Marshal(map[string]interface{}{"points": []string{id}})
	if err := a.do(ctx, http.MethodPost, "/collections/"+collectionName+"/points/delete", body, nil); err != nil {
		log.Warn("qdrant delete failed", "memory_id", id, "error", err)
	}
}

// Store persists m in the backing index, then mirrors its embedding
// into Qdrant.
func (a *Accelerator) Store(ctx context.Context, m *types.MemoryUnit) error {
	if err := a.backing.Store(ctx, m); err != nil {
		return err
	}
	a.upsert(m)
	return nil
}

// Get delegates to the backing index; Qdrant never holds a field
// Get needs that the backing index doesn't already have.
func (a *Accelerator) Get(ctx context.Context, tenantID, id string) (*types.MemoryUnit, error) {
	return a.backing.Get(ctx, tenantID, id)
}

// Update applies mutate via the backing index, then re-mirrors the
// result so a changed embedding or tenant stays in sync with Qdrant.
func (a *Accelerator) Update(ctx context.Context, tenantID, id string, mutate func(*types.MemoryUnit)) (*types.MemoryUnit, error) {
	m, err := a.backing.Update(ctx, tenantID, id, mutate)
	if err != nil {
		return nil, err
	}
	a.upsert(m)
	return m, nil
}

// Delete soft-deletes via the backing index and drops the mirrored
// point from Qdrant outright — Qdrant has no soft-delete concept to
// preserve, and a deleted memory must never surface in ANN search.
func (a *Accelerator) Delete(ctx context.Context, tenantID, id string) error {
	if err := a.backing.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	a.remove(id)
	return nil
}

// GetAll and Count have no ANN-accelerated form; they delegate
// straight through.
func (a *Accelerator) GetAll(ctx context.Context, tenantID string, filter memindex.Filter) ([]*types.MemoryUnit, error) {
	return a.backing.GetAll(ctx, tenantID, filter)
}

func (a *Accelerator) Count(ctx context.Context, tenantID string) (int, error) {
	return a.backing.Count(ctx, tenantID)
}

// Search runs the ANN path through Qdrant when it's enabled and
// reachable, filtered to tenantID's own points; otherwise it falls
// back transparently to the backing index's own Search.
//
// Filter's structural fields (SessionID, Type, Topics, time range)
// aren't expressible as Qdrant payload filters here since only
// tenant_id is mirrored into the payload, so a non-empty filter beyond
// IncludeDeleted always falls back to the backing index, which can
// apply it directly.
func (a *Accelerator) Search(ctx context.Context, tenantID string, queryVec []float32, filter memindex.Filter, limit int) ([]memindex.Scored, error) {
	if !a.hasOnlyTenantFilter(filter) || !a.Available(ctx) {
		return a.backing.Search(ctx, tenantID, queryVec, filter, limit)
	}

	vector := make([]float64, len(queryVec))
	for i, f := range queryVec {
		vector[i] = float64(f)
	}

	l := limit
	if l <= 0 {
		l = 10
	}
	body, _ := json.Marshal(map[string]interface{}{
		"vector": vector,
		"limit":  l,
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": "tenant_id", "match": map[string]interface{}{"value": tenantID}},
			},
		},
		"with_payload": false,
	})

	var resp struct {
		Result []struct {
			ID    interface{} `json:"id"`
			Score float64     `json:"score"`
		} `json:"result"`
	}
	if err := a.do(ctx, http.MethodPost, "/collections/"+collectionName+"/points/search", body, &resp); err != nil {
		log.Warn("qdrant search failed, falling back to backing index", "error", err)
		return a.backing.Search(ctx, tenantID, queryVec, filter, limit)
	}

	scored := make([]memindex.Scored, 0, len(resp.Result))
	for _, r := range resp.Result {
		id := fmt.Sprintf("%v", r.ID)
		m, err := a.backing.Get(ctx, tenantID, id)
		if err != nil {
			continue
		}
		scored = append(scored, memindex.Scored{Memory: m, Score: r.Score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}

func (a *Accelerator) hasOnlyTenantFilter(f memindex.Filter) bool {
	return f.SessionID == "" && f.Type == "" && len(f.Topics) == 0 && f.CreatedAfter.IsZero() && f.CreatedBefore.IsZero() && !f.IncludeDeleted
}

// sessionRegistry matches sqlitestore.SessionRegistry without importing
// sqlitestore, so this package doesn't need to know which concrete
// backend it's wrapping.
type sessionRegistry interface {
	TouchSession(ctx context.Context, tenantID, sessionID string) error
	GetSession(ctx context.Context, tenantID, sessionID string) (*types.Session, error)
	ListSessions(ctx context.Context, tenantID string) ([]*types.Session, error)
}

// TouchSession, GetSession, and ListSessions forward to the backing
// index when it implements sessionRegistry (sqlitestore.Store does;
// memindex.MemIndex does not), so wrapping a durable backend in this
// accelerator never hides its session bookkeeping.
func (a *Accelerator) TouchSession(ctx context.Context, tenantID, sessionID string) error {
	if reg, ok := a.backing.(sessionRegistry); ok {
		return reg.TouchSession(ctx, tenantID, sessionID)
	}
	return nil
}

func (a *Accelerator) GetSession(ctx context.Context, tenantID, sessionID string) (*types.Session, error) {
	if reg, ok := a.backing.(sessionRegistry); ok {
		return reg.GetSession(ctx, tenantID, sessionID)
	}
	return nil, mnerr.New(mnerr.NotFound, "session %s not found", sessionID)
}

func (a *Accelerator) ListSessions(ctx context.Context, tenantID string) ([]*types.Session, error) {
	if reg, ok := a.backing.(sessionRegistry); ok {
		return reg.ListSessions(ctx, tenantID)
	}
	return nil, nil
}
