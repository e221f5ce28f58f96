// Package diagnostics checks the optional external dependencies a
// deployment may rely on: the embedding provider (Ollama), the
// Qdrant ANN accelerator, and the Neo4j graph backend. All three are
// optional — the service runs on the deterministic embedding provider
// and in-process index/graph store without any of them.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mnemotree/mnemocore/pkg/config"
)

// Status is the reachability state of one optional dependency.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
	StatusDisabled    Status = "disabled"
	StatusMissing     Status = "missing"
)

// Info reports one dependency's status.
type Info struct {
	Name    string
	Status  Status
	Version string
	URL     string
	Message string
	Models  []string // Ollama only
}

// Report is the result of checking every optional dependency.
type Report struct {
	Embedding Info
	Qdrant    Info
	Neo4j     Info
}

// Check probes every optional dependency configured in cfg.
func Check(cfg *config.Config) *Report {
	return &Report{
		Embedding: checkEmbedding(cfg),
		Qdrant:    checkQdrant(cfg),
		Neo4j:     checkNeo4j(cfg),
	}
}

func checkEmbedding(cfg *config.Config) Info {
	info := Info{Name: "Embedding provider", URL: cfg.Embedding.BaseURL}

	if cfg.Embedding.Provider != "ollama" {
		info.Status = StatusDisabled
		info.Message = fmt.Sprintf("provider %q does not require a reachability check", cfg.Embedding.Provider)
		return info
	}

	client := &http.Client{Timeout: 5 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Embedding.BaseURL+"/api/tags", nil)
	if err != nil {
		info.Status = StatusUnavailable
		info.Message = "failed to build request"
		return info
	}
	resp, err := client.Do(req)
	if err != nil {
		info.Status = StatusMissing
		info.Message = "ollama is not running or not installed"
		return info
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		info.Status = StatusUnavailable
		info.Message = fmt.Sprintf("ollama returned status %d", resp.StatusCode)
		return info
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if json.NewDecoder(resp.Body).Decode(&tags) == nil {
		for _, m := range tags.Models {
			info.Models = append(info.Models, m.Name)
		}
	}

	modelSet := make(map[string]bool, len(info.Models))
	for _, m := range info.Models {
		modelSet[m] = true
		modelSet[strings.Split(m, ":")[0]] = true
	}
	baseModel := strings.Split(cfg.Embedding.Model, ":")[0]
	if !modelSet[cfg.Embedding.Model] && !modelSet[baseModel] {
		info.Status = StatusAvailable
		info.Message = fmt.Sprintf("ollama is running but missing the configured embedding model %q", cfg.Embedding.Model)
		return info
	}

	info.Status = StatusAvailable
	info.Message = "ollama is running with the configured embedding model available"
	return info
}

func checkQdrant(cfg *config.Config) Info {
	info := Info{Name: "Qdrant", URL: cfg.Qdrant.URL}
	if !cfg.Qdrant.Enabled {
		info.Status = StatusDisabled
		info.Message = "qdrant acceleration is disabled in configuration"
		return info
	}
	return probeJSON(info, cfg.Qdrant.URL+"/collections")
}

func checkNeo4j(cfg *config.Config) Info {
	info := Info{Name: "Neo4j", URL: cfg.Neo4j.URI}
	if !cfg.Neo4j.Enabled {
		info.Status = StatusDisabled
		info.Message = "neo4j-backed graph storage is disabled in configuration"
		return info
	}
	// Neo4j speaks bolt, not HTTP; a doctor check can only confirm the
	// driver constructs and the URI parses, which happens at graph
	// store construction time, not here. Report configured-but-unverified.
	info.Status = StatusAvailable
	info.Message = "neo4j is enabled; connectivity is verified when the graph store opens"
	return info
}

func probeJSON(info Info, url string) Info {
	client := &http.Client{Timeout: 5 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		info.Status = StatusUnavailable
		info.Message = "failed to build request"
		return info
	}
	resp, err := client.Do(req)
	if err != nil {
		info.Status = StatusMissing
		info.Message = "not running or not reachable"
		return info
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		info.Status = StatusUnavailable
		info.Message = fmt.Sprintf("returned status %d", resp.StatusCode)
		return info
	}
	info.Status = StatusAvailable
	info.Message = "reachable"
	return info
}

// EmbeddingAvailable reports whether the configured embedding provider
// is confirmed reachable (deterministic providers always count).
func (r *Report) EmbeddingAvailable() bool {
	return r.Embedding.Status == StatusAvailable || r.Embedding.Status == StatusDisabled
}
