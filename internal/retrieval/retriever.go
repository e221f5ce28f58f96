package retrieval

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/mnemotree/mnemocore/internal/bm25"
	"github.com/mnemotree/mnemocore/internal/embedding"
	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/types"
)

var log = logging.GetLogger("retrieval")

// Options configures one Retrieve call; zero values fall back to the
// package defaults (weights 0.6/0.4, rrf_k 60, limit 10, variants 3,
// scoring weights 1/1/1, decay 0.99).
type Options struct {
	Limit          int
	DenseWeight    float64
	SparseWeight   float64
	RRFK           int
	QueryVariants  int
	RecencyWeight  float64
	ImportanceWeight float64
	RelevanceWeight  float64
	Decay          float64
	Filter         memindex.Filter
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.DenseWeight == 0 && o.SparseWeight == 0 {
		o.DenseWeight, o.SparseWeight = 0.6, 0.4
	}
	if o.RRFK <= 0 {
		o.RRFK = 60
	}
	if o.QueryVariants <= 0 {
		o.QueryVariants = 3
	}
	if o.RecencyWeight == 0 && o.ImportanceWeight == 0 && o.RelevanceWeight == 0 {
		o.RecencyWeight, o.ImportanceWeight, o.RelevanceWeight = 1, 1, 1
	}
	if o.Decay == 0 {
		o.Decay = 0.99
	}
	return o
}

// Result is one ranked hit returned from Retrieve.
type Result struct {
	Memory   *types.MemoryUnit
	RRFScore float64
	Final    float64
}

// Retriever implements C4 over a memory index and a BM25 index.
type Retriever struct {
	index    memindex.Index
	sparse   *bm25.Index
	gateway  embedding.Gateway
}

// New builds a Retriever wired to the given memory index, BM25 index,
// and embedding gateway.
func New(index memindex.Index, sparse *bm25.Index, gateway embedding.Gateway) *Retriever {
	return &Retriever{index: index, sparse: sparse, gateway: gateway}
}

// Retrieve runs the full C4 pipeline: expand, dense+sparse search,
// reciprocal-rank fusion, and composite rescoring.
func (r *Retriever) Retrieve(ctx context.Context, tenantID, queryText string, opts Options) ([]Result, error) {
	opts = opts.withDefaults()

	variants := ExpandQuery(queryText, opts.QueryVariants)
	searchLimit := opts.Limit * 2

	denseRanks, err := r.denseSearch(ctx, tenantID, variants, opts, searchLimit)
	if err != nil {
		return nil, err
	}

	sparseRanks := r.sparseSearch(ctx, tenantID, variants, searchLimit)

	fused := fuse(denseRanks, sparseRanks, opts.DenseWeight, opts.SparseWeight, opts.RRFK)
	r.resolveMemories(ctx, tenantID, fused)

	results := r.rescore(fused, opts)

	sort.Slice(results, func(i, j int) bool {
		if results[i].Final != results[j].Final {
			return results[i].Final > results[j].Final
		}
		if !results[i].Memory.UpdatedAt.Equal(results[j].Memory.UpdatedAt) {
			return results[i].Memory.UpdatedAt.After(results[j].Memory.UpdatedAt)
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// denseSearch embeds each query variant, searches C2 with limit, and
// keeps the max score per memory ID across variants — then returns
// memories ordered by that max score (rank 0 = best).
func (r *Retriever) denseSearch(ctx context.Context, tenantID string, variants []string, opts Options, limit int) ([]rankedHit, error) {
	best := make(map[string]memindex.Scored)

	for _, v := range variants {
		vec, err := r.gateway.Embed(ctx, v)
		if err != nil {
			return nil, err
		}
		hits, err := r.index.Search(ctx, tenantID, vec, opts.Filter, limit)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if cur, ok := best[h.Memory.ID]; !ok || h.Score > cur.Score {
				best[h.Memory.ID] = h
			}
		}
	}

	out := make([]rankedHit, 0, len(best))
	for id, h := range best {
		out = append(out, rankedHit{id: id, memory: h.Memory, score: h.Score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score == out[j].score {
			return out[i].id < out[j].id
		}
		return out[i].score > out[j].score
	})
	return out, nil
}

// sparseSearch runs BM25 search with the expanded query joined into
// one string (all variants contribute terms) and returns ranked hits.
func (r *Retriever) sparseSearch(ctx context.Context, tenantID string, variants []string, limit int) []rankedHit {
	joined := ""
	for i, v := range variants {
		if i > 0 {
			joined += " "
		}
		joined += v
	}

	scored := r.sparse.Search(ctx, tenantID, joined, limit)
	out := make([]rankedHit, len(scored))
	for i, s := range scored {
		out[i] = rankedHit{id: s.ID, score: s.Score}
	}
	return out
}

type rankedHit struct {
	id     string
	memory *types.MemoryUnit
	score  float64
}

type fusedHit struct {
	id       string
	memory   *types.MemoryUnit
	rrfScore float64
}

// fuse computes reciprocal-rank fusion over dense and sparse ranked
// lists: rrf = w_d/(k+rank_d) + w_s/(k+rank_s), absent rank contributes 0.
// Stable regardless of input order — only the rank within each list
// matters, not the order fuse receives the two lists in.
func fuse(dense, sparse []rankedHit, wDense, wSparse float64, k int) []fusedHit {
	denseRank := make(map[string]int, len(dense))
	for i, h := range dense {
		denseRank[h.id] = i
	}
	sparseRank := make(map[string]int, len(sparse))
	for i, h := range sparse {
		sparseRank[h.id] = i
	}

	memories := make(map[string]*types.MemoryUnit)
	for _, h := range dense {
		if h.memory != nil {
			memories[h.id] = h.memory
		}
	}

	ids := make(map[string]struct{})
	for _, h := range dense {
		ids[h.id] = struct{}{}
	}
	for _, h := range sparse {
		ids[h.id] = struct{}{}
	}

	out := make([]fusedHit, 0, len(ids))
	for id := range ids {
		var score float64
		if rd, ok := denseRank[id]; ok {
			score += wDense / float64(k+rd+1)
		}
		if rs, ok := sparseRank[id]; ok {
			score += wSparse / float64(k+rs+1)
		}
		out = append(out, fusedHit{id: id, memory: memories[id], rrfScore: score})
	}
	return out
}

// resolveMemories fills in hits whose Memory was never attached
// during dense search — a BM25-only hit carries just an ID — by
// fetching the record from the index. Fetch failures (e.g. the record
// was deleted between search and fusion) leave Memory nil; rescore
// drops those.
func (r *Retriever) resolveMemories(ctx context.Context, tenantID string, hits []fusedHit) {
	for i := range hits {
		if hits[i].memory != nil {
			continue
		}
		m, err := r.index.Get(ctx, tenantID, hits[i].id)
		if err != nil {
			continue
		}
		hits[i].memory = m
	}
}

// rescore applies the composite scoring formula to each fused hit.
// Hits whose Memory could not be resolved (sparse-only hit with no
// memory object attached) are dropped — the caller needs the full
// record, not just a score.
func (r *Retriever) rescore(hits []fusedHit, opts Options) []Result {
	if len(hits) == 0 {
		return nil
	}

	maxRRF := 0.0
	for _, h := range hits {
		if h.rrfScore > maxRRF {
			maxRRF = h.rrfScore
		}
	}

	totalWeight := opts.RelevanceWeight + opts.RecencyWeight + opts.ImportanceWeight
	if totalWeight == 0 {
		totalWeight = 1
	}

	now := time.Now()
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.memory == nil {
			continue
		}

		rrfNorm := 0.0
		if maxRRF > 0 {
			rrfNorm = h.rrfScore / maxRRF
		}

		days := now.Sub(h.memory.CreatedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		recency := math.Exp(-days * math.Log(1/opts.Decay))
		if recency > 1 {
			recency = 1
		}

		importance := h.memory.Importance
		if importance > 1 {
			importance = 1
		}
		if importance < 0 {
			importance = 0
		}

		final := (opts.RelevanceWeight*rrfNorm + opts.RecencyWeight*recency + opts.ImportanceWeight*importance) / totalWeight

		out = append(out, Result{Memory: h.memory, RRFScore: h.rrfScore, Final: final})
	}
	return out
}
