package locomo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ResultsStore persists benchmark runs to disk as timestamped JSON files,
// so a series of runs (e.g. while iterating on retrieval weights) can be
// compared later.
type ResultsStore struct {
	baseDir string
}

// NewResultsStore builds a ResultsStore rooted at baseDir.
func NewResultsStore(baseDir string) *ResultsStore {
	return &ResultsStore{baseDir: baseDir}
}

// Save writes results to baseDir and returns the file path.
func (s *ResultsStore) Save(results *BenchmarkResults) (string, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("create results directory: %w", err)
	}

	filename := fmt.Sprintf("locomo_%s_%s.json", results.Strategy, results.Timestamp.Format("2006-01-02_15-04-05"))
	path := filepath.Join(s.baseDir, filename)

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}

	log.Info("saved benchmark results", "path", path)
	return path, nil
}

// Load reads a previously saved result file.
func (s *ResultsStore) Load(path string) (*BenchmarkResults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var results BenchmarkResults
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return &results, nil
}

// ResultSummary is one row of List's output.
type ResultSummary struct {
	Path      string            `json:"path"`
	Timestamp time.Time         `json:"timestamp"`
	Strategy  RetrievalStrategy `json:"strategy"`
	F1        float64           `json:"f1"`
	Questions int               `json:"questions"`
}

// List returns every saved run, newest first.
func (s *ResultsStore) List() ([]*ResultSummary, error) {
	files, err := filepath.Glob(filepath.Join(s.baseDir, "locomo_*.json"))
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	var summaries []*ResultSummary
	for _, file := range files {
		results, err := s.Load(file)
		if err != nil {
			log.Warn("failed to load result file", "file", file, "error", err)
			continue
		}
		summaries = append(summaries, &ResultSummary{
			Path: file, Timestamp: results.Timestamp, Strategy: results.Strategy,
			F1: results.Overall.F1, Questions: results.Overall.Count,
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Timestamp.After(summaries[j].Timestamp) })
	return summaries, nil
}

// GetLatest returns the most recently saved run.
func (s *ResultsStore) GetLatest() (*BenchmarkResults, error) {
	summaries, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("no benchmark results found in %s", s.baseDir)
	}
	return s.Load(summaries[0].Path)
}
