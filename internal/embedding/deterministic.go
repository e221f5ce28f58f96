package embedding

import (
	"context"
	"crypto/sha256"
)

// deterministicProvider derives a vector from content's hash instead
// of calling an external service. Selected via embedding.provider =
// "deterministic"; used by integration tests that need repeatable
// retrieval rankings without a live Ollama instance.
type deterministicProvider struct {
	dim int
}

func newDeterministicProvider(dim int) *deterministicProvider {
	if dim <= 0 {
		dim = 768
	}
	return &deterministicProvider{dim: dim}
}

func (p *deterministicProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, p.dim)
	for i := range vec {
		b := sum[i%len(sum)]
		shifted := sum[(i*7+3)%len(sum)]
		vec[i] = float32(int(b)-int(shifted)) / 255.0
	}
	return vec, nil
}

func (p *deterministicProvider) Dimensions() int {
	return p.dim
}
