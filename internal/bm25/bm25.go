// Package bm25 implements the sparse keyword index (C3): Okapi BM25
// scoring over a tenant-scoped inverted index, with concurrent reads
// and serialized writes.
package bm25

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/mnemotree/mnemocore/internal/logging"
)

var log = logging.GetLogger("bm25")

var tokenSplit = regexp.MustCompile(`\W+`)

// Tokenize lowercases text, splits on non-word characters, and drops
// tokens shorter than two characters.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	parts := tokenSplit.Split(lower, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// Scored pairs a document ID with its BM25 score.
type Scored struct {
	ID    string
	Score float64
}

type posting struct {
	docID string
	freq  int
}

// tenantIndex holds one tenant's inverted index and per-document
// length bookkeeping.
type tenantIndex struct {
	mu sync.RWMutex

	postings map[string][]posting // term -> postings
	docLen   map[string]int       // docID -> token count
	docTerms map[string]map[string]int // docID -> term -> freq, for removal
	totalLen int
	docCount int
}

func newTenantIndex() *tenantIndex {
	return &tenantIndex{
		postings: make(map[string][]posting),
		docLen:   make(map[string]int),
		docTerms: make(map[string]map[string]int),
	}
}

// Index is the tenant-sharded BM25 inverted index.
type Index struct {
	k1 float64
	b  float64

	mu      sync.RWMutex
	tenants map[string]*tenantIndex
}

// New creates a BM25 index with the standard Okapi parameters
// (k1=1.5, b=0.75).
func New() *Index {
	return NewWithParams(1.5, 0.75)
}

// NewWithParams creates a BM25 index with explicit k1/b.
func NewWithParams(k1, b float64) *Index {
	return &Index{k1: k1, b: b, tenants: make(map[string]*tenantIndex)}
}

func (idx *Index) tenantFor(tenantID string) *tenantIndex {
	idx.mu.RLock()
	t, ok := idx.tenants[tenantID]
	idx.mu.RUnlock()
	if ok {
		return t
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if t, ok := idx.tenants[tenantID]; ok {
		return t
	}
	t = newTenantIndex()
	idx.tenants[tenantID] = t
	return t
}

// Add indexes docID's content under tenantID, replacing any prior
// entry for the same docID.
func (idx *Index) Add(_ context.Context, tenantID, docID, content string) {
	t := idx.tenantFor(tenantID)
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeLocked(docID)

	tokens := Tokenize(content)
	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}

	for term, f := range freq {
		t.postings[term] = append(t.postings[term], posting{docID: docID, freq: f})
	}
	t.docTerms[docID] = freq
	t.docLen[docID] = len(tokens)
	t.totalLen += len(tokens)
	t.docCount++

	log.Debug("bm25 doc indexed", "tenant_id", tenantID, "doc_id", docID, "tokens", len(tokens))
}

// Remove deletes docID from tenantID's index, if present.
func (idx *Index) Remove(_ context.Context, tenantID, docID string) {
	t := idx.tenantFor(tenantID)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(docID)
}

func (t *tenantIndex) removeLocked(docID string) {
	freq, ok := t.docTerms[docID]
	if !ok {
		return
	}
	for term := range freq {
		postings := t.postings[term]
		for i, p := range postings {
			if p.docID == docID {
				t.postings[term] = append(postings[:i], postings[i+1:]...)
				break
			}
		}
		if len(t.postings[term]) == 0 {
			delete(t.postings, term)
		}
	}
	t.totalLen -= t.docLen[docID]
	delete(t.docLen, docID)
	delete(t.docTerms, docID)
	t.docCount--
}

// Search scores every document containing at least one query term and
// returns the top `limit` by BM25 score descending, ID ascending on
// ties.
func (idx *Index) Search(_ context.Context, tenantID, query string, limit int) []Scored {
	t := idx.tenantFor(tenantID)
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.docCount == 0 {
		return nil
	}

	avgDocLen := float64(t.totalLen) / float64(t.docCount)
	terms := Tokenize(query)

	scores := make(map[string]float64)
	for _, term := range dedupe(terms) {
		postings, ok := t.postings[term]
		if !ok {
			continue
		}
		idf := idfScore(t.docCount, len(postings))
		for _, p := range postings {
			docLen := float64(t.docLen[p.docID])
			tf := float64(p.freq)
			denom := tf + idx.k1*(1-idx.b+idx.b*docLen/avgDocLen)
			scores[p.docID] += idf * (tf * (idx.k1 + 1)) / denom
		}
	}

	out := make([]Scored, 0, len(scores))
	for docID, score := range scores {
		out = append(out, Scored{ID: docID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func idfScore(docCount, docFreq int) float64 {
	// Standard BM25 IDF with +1 smoothing to keep the value positive
	// even when a term appears in every document.
	n := float64(docCount)
	df := float64(docFreq)
	return logSafe((n-df+0.5)/(df+0.5) + 1)
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
