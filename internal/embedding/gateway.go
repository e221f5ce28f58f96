// Package embedding implements the embedding gateway (C1): it turns
// memory content into vectors, caches them by content hash, and
// retries transient provider failures with bounded backoff.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/mnerr"
	"github.com/mnemotree/mnemocore/pkg/config"
)

var log = logging.GetLogger("embedding")

// Gateway produces unit-normalized embedding vectors for memory content.
type Gateway interface {
	// Embed returns a single vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds every element of texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the vector width this gateway produces.
	Dimensions() int
}

// Provider is the narrow interface a concrete backend (Ollama, or any
// other embedding service) must implement; Gateway wraps a Provider
// with caching and retry.
type Provider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

type cacheEntry struct {
	vec       []float32
	expiresAt time.Time
}

// cachingGateway wraps a Provider with a content-hash cache and
// exponential-backoff retry around each provider call.
type cachingGateway struct {
	provider Provider
	ttl      time.Duration
	retry    retrySettings

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type retrySettings struct {
	maxRetries int
	baseDelay  time.Duration
	multiplier float64
	jitter     float64
}

// New builds the default Gateway from configuration: an Ollama-backed
// provider behind a content-hash cache with bounded retry.
func New(cfg *config.EmbeddingConfig) Gateway {
	var provider Provider
	switch cfg.Provider {
	case "deterministic":
		provider = newDeterministicProvider(cfg.Dimensions)
	default:
		provider = NewOllamaProvider(cfg)
	}

	return WrapProvider(provider, cfg.CacheTTL, cfg.MaxRetries)
}

// WrapProvider builds a Gateway around any Provider, useful for tests
// that supply a fake provider directly.
func WrapProvider(provider Provider, cacheTTL time.Duration, maxRetries int) Gateway {
	return &cachingGateway{
		provider: provider,
		ttl:      cacheTTL,
		cache:    make(map[string]cacheEntry),
		retry: retrySettings{
			maxRetries: maxRetries,
			baseDelay:  100 * time.Millisecond,
			multiplier: 2,
			jitter:     0.2,
		},
	}
}

func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (g *cachingGateway) Dimensions() int {
	return g.provider.Dimensions()
}

func (g *cachingGateway) lookupCache(key string) ([]float32, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.cache[key]
	if !ok {
		return nil, false
	}
	if g.ttl > 0 && time.Now().After(entry.expiresAt) {
		delete(g.cache, key)
		return nil, false
	}
	return entry.vec, true
}

func (g *cachingGateway) storeCache(key string, vec []float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[key] = cacheEntry{vec: vec, expiresAt: time.Now().Add(g.ttl)}
}

func (g *cachingGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	key := hashContent(text)
	if vec, ok := g.lookupCache(key); ok {
		return vec, nil
	}

	vec, err := embedWithRetry(ctx, g.provider, text, g.retry)
	if err != nil {
		return nil, err
	}

	vec = normalize(vec)
	g.storeCache(key, vec)
	return vec, nil
}

func (g *cachingGateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := g.Embed(ctx, text)
		if err != nil {
			return nil, mnerr.Wrap(mnerr.KindOf(err), err, "embed_batch: item %d failed", i)
		}
		out[i] = vec
	}
	return out, nil
}

// normalize returns vec scaled to unit length. A zero vector is
// returned unchanged — callers treat it as "no signal" rather than a
// division-by-zero bug.
func normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
