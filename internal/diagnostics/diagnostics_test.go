package diagnostics

import (
	"testing"

	"github.com/mnemotree/mnemocore/pkg/config"
)

func TestCheck_DeterministicProviderSkipsReachability(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "deterministic"
	report := Check(cfg)

	if report.Embedding.Status != StatusDisabled {
		t.Errorf("expected deterministic provider to report disabled, got %s", report.Embedding.Status)
	}
	if !report.EmbeddingAvailable() {
		t.Error("expected EmbeddingAvailable to be true for a disabled check")
	}
}

func TestCheck_QdrantDisabledByDefault(t *testing.T) {
	cfg := config.DefaultConfig()
	report := Check(cfg)
	if report.Qdrant.Status != StatusDisabled {
		t.Errorf("expected qdrant disabled by default, got %s", report.Qdrant.Status)
	}
}

func TestCheck_Neo4jDisabledByDefault(t *testing.T) {
	cfg := config.DefaultConfig()
	report := Check(cfg)
	if report.Neo4j.Status != StatusDisabled {
		t.Errorf("expected neo4j disabled by default, got %s", report.Neo4j.Status)
	}
}

func TestCheck_OllamaProviderUnreachableReportsMissing(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.BaseURL = "http://127.0.0.1:1" // nothing listens here
	report := Check(cfg)
	if report.Embedding.Status != StatusMissing && report.Embedding.Status != StatusUnavailable {
		t.Errorf("expected missing/unavailable for unreachable ollama, got %s", report.Embedding.Status)
	}
}
