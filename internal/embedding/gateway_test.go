package embedding

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

type countingProvider struct {
	calls     int32
	failFirst int32
	dim       int
}

func (p *countingProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	n := atomic.AddInt32(&p.calls, 1)
	if n <= p.failFirst {
		return nil, errors.New("transient failure")
	}
	vec := make([]float32, p.dim)
	for i := range vec {
		vec[i] = float32(len(text) + i)
	}
	return vec, nil
}

func (p *countingProvider) Dimensions() int { return p.dim }

func TestGateway_EmbedCachesByContent(t *testing.T) {
	provider := &countingProvider{dim: 8}
	gw := WrapProvider(provider, time.Minute, 3)

	v1, err := gw.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := gw.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected cached vector to match, diverged at %d", i)
		}
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 provider call due to cache hit, got %d", provider.calls)
	}
}

func TestGateway_EmbedNormalizesOutput(t *testing.T) {
	provider := &countingProvider{dim: 16}
	gw := WrapProvider(provider, time.Minute, 3)

	vec, err := gw.Embed(context.Background(), "some content")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sumSq)-1.0) > 1e-6 {
		t.Errorf("expected unit-normalized vector, got norm %f", math.Sqrt(sumSq))
	}
}

func TestGateway_EmbedRetriesTransientFailures(t *testing.T) {
	provider := &countingProvider{dim: 4, failFirst: 2}
	gw := WrapProvider(provider, time.Minute, 3)

	vec, err := gw.Embed(context.Background(), "retry me")
	if err != nil {
		t.Fatalf("expected retry to succeed, got error: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("expected 4-dim vector, got %d", len(vec))
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 attempts (2 failures + 1 success), got %d", provider.calls)
	}
}

func TestGateway_EmbedExhaustsRetries(t *testing.T) {
	provider := &countingProvider{dim: 4, failFirst: 100}
	gw := WrapProvider(provider, time.Minute, 2)

	_, err := gw.Embed(context.Background(), "always fails")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestGateway_EmbedBatchPreservesOrder(t *testing.T) {
	provider := &countingProvider{dim: 4}
	gw := WrapProvider(provider, time.Minute, 1)

	texts := []string{"a", "bb", "ccc"}
	vecs, err := gw.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}
}

func TestGateway_Dimensions(t *testing.T) {
	provider := &countingProvider{dim: 32}
	gw := WrapProvider(provider, time.Minute, 1)
	if gw.Dimensions() != 32 {
		t.Errorf("expected dimensions 32, got %d", gw.Dimensions())
	}
}

func TestDeterministicProvider_Deterministic(t *testing.T) {
	p := newDeterministicProvider(16)
	v1, _ := p.GenerateEmbedding(context.Background(), "same text")
	v2, _ := p.GenerateEmbedding(context.Background(), "same text")
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected identical vectors for identical text")
		}
	}
}
