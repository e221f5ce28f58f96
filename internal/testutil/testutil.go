// Package testutil provides testing utilities and helpers for mnemocore.
package testutil

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mnemotree/mnemocore/internal/types"
)

// TestDB represents a test database instance.
type TestDB struct {
	*sql.DB
	Path string
	t    *testing.T
}

// NewTestDB creates a new temporary SQLite database for testing.
// The database is automatically cleaned up after the test completes.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	testDB := &TestDB{
		DB:   db,
		Path: dbPath,
		t:    t,
	}

	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	return testDB
}

// ExecScript executes a SQL script file.
func (db *TestDB) ExecScript(path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	_, err = db.Exec(string(script))
	if err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}

	return nil
}

// MustExec executes a SQL statement and fails the test on error.
func (db *TestDB) MustExec(query string, args ...interface{}) sql.Result {
	db.t.Helper()

	result, err := db.Exec(query, args...)
	if err != nil {
		db.t.Fatalf("SQL exec failed: %v\nQuery: %s", err, query)
	}

	return result
}

// MustQuery executes a SQL query and fails the test on error.
func (db *TestDB) MustQuery(query string, args ...interface{}) *sql.Rows {
	db.t.Helper()

	rows, err := db.Query(query, args...)
	if err != nil {
		db.t.Fatalf("SQL query failed: %v\nQuery: %s", err, query)
	}

	return rows
}

// Count returns the number of rows in a table.
func (db *TestDB) Count(table string) int {
	db.t.Helper()

	var count int
	err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	if err != nil {
		db.t.Fatalf("Failed to count rows in %s: %v", table, err)
	}

	return count
}

// AssertRowCount asserts that a table has exactly n rows.
func (db *TestDB) AssertRowCount(table string, expected int) {
	db.t.Helper()

	actual := db.Count(table)
	if actual != expected {
		db.t.Errorf("Expected %d rows in %s, got %d", expected, table, actual)
	}
}

// TempDir creates a temporary directory for testing.
func TempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// TempFile creates a temporary file for testing.
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	return path
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()

	if got != want {
		t.Errorf("Got %v, want %v", got, want)
	}
}

// AssertStringContains fails the test if str doesn't contain substr.
func AssertStringContains(t *testing.T, str, substr string) {
	t.Helper()

	if !containsString(str, substr) {
		t.Errorf("String %q does not contain %q", str, substr)
	}
}

func containsString(str, substr string) bool {
	return len(str) >= len(substr) && (str == substr || findSubstring(str, substr))
}

func findSubstring(str, substr string) bool {
	for i := 0; i <= len(str)-len(substr); i++ {
		if str[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// NewMemoryUnit builds a deterministic MemoryUnit fixture for the given
// tenant and content, with an embedding produced by DeterministicEmbed.
func NewMemoryUnit(tenantID, content string) *types.MemoryUnit {
	now := time.Now()
	return &types.MemoryUnit{
		ID:             fmt.Sprintf("test-%x", sha256.Sum256([]byte(tenantID+"|"+content)))[:36],
		TenantID:       tenantID,
		Content:        content,
		Type:           types.TypeEpisodic,
		Embedding:      DeterministicEmbed(content, 768),
		Importance:     0.5,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
}

// DeterministicEmbed derives a unit-normalized vector of the given
// dimensionality from content's hash, so retrieval/dedup/summarizer
// tests never depend on a live embedding provider. Equal content always
// produces an equal vector; distinct content produces distinct vectors
// with high probability.
func DeterministicEmbed(content string, dim int) []float32 {
	sum := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)
	var sq float64
	for i := range vec {
		b := sum[i%len(sum)]
		shifted := sum[(i*7+3)%len(sum)]
		v := float64(int(b)-int(shifted)) / 255.0
		vec[i] = float32(v)
		sq += v * v
	}
	norm := math.Sqrt(sq)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// FakeEmbeddingGateway is a deterministic stand-in for the embedding
// gateway (C1) used across component tests.
type FakeEmbeddingGateway struct {
	Dim   int
	Calls int
}

// NewFakeEmbeddingGateway returns a FakeEmbeddingGateway producing
// vectors of dimensionality dim.
func NewFakeEmbeddingGateway(dim int) *FakeEmbeddingGateway {
	return &FakeEmbeddingGateway{Dim: dim}
}

// Embed returns a deterministic, unit-normalized embedding for text.
func (f *FakeEmbeddingGateway) Embed(text string) ([]float32, error) {
	f.Calls++
	return DeterministicEmbed(text, f.Dim), nil
}

// EmbedBatch embeds each text in texts independently.
func (f *FakeEmbeddingGateway) EmbedBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions reports the vector dimensionality this gateway produces.
func (f *FakeEmbeddingGateway) Dimensions() int {
	return f.Dim
}
