package testutil

import (
	"math"
	"os"
	"testing"
)

func TestNewTestDB(t *testing.T) {
	db := NewTestDB(t)

	if err := db.Ping(); err != nil {
		t.Fatalf("Database ping failed: %v", err)
	}

	var fkEnabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	if err != nil {
		t.Fatalf("Failed to check foreign keys: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("Foreign keys not enabled")
	}
}

func TestTestDB_MustExec(t *testing.T) {
	db := NewTestDB(t)
	db.MustExec(`CREATE TABLE t (id TEXT PRIMARY KEY, content TEXT NOT NULL)`)

	db.MustExec("INSERT INTO t (id, content) VALUES (?, ?)", "test-id", "test content")

	var count int
	db.QueryRow("SELECT COUNT(*) FROM t").Scan(&count)
	if count != 1 {
		t.Errorf("Expected 1 row, got %d", count)
	}
}

func TestTestDB_Count(t *testing.T) {
	db := NewTestDB(t)
	db.MustExec(`CREATE TABLE t (id TEXT PRIMARY KEY, content TEXT NOT NULL)`)

	if count := db.Count("t"); count != 0 {
		t.Errorf("Expected 0 rows, got %d", count)
	}

	db.MustExec("INSERT INTO t (id, content) VALUES (?, ?)", "id1", "content1")
	db.MustExec("INSERT INTO t (id, content) VALUES (?, ?)", "id2", "content2")

	if count := db.Count("t"); count != 2 {
		t.Errorf("Expected 2 rows, got %d", count)
	}
}

func TestTestDB_AssertRowCount(t *testing.T) {
	db := NewTestDB(t)
	db.MustExec(`CREATE TABLE t (id TEXT PRIMARY KEY, content TEXT NOT NULL)`)

	db.AssertRowCount("t", 0)

	db.MustExec("INSERT INTO t (id, content) VALUES (?, ?)", "id1", "content1")
	db.AssertRowCount("t", 1)
}

func TestTempDir(t *testing.T) {
	dir := TempDir(t)

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Temp directory doesn't exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("Path is not a directory")
	}
}

func TestTempFile(t *testing.T) {
	content := []byte("test content")
	path := TempFile(t, "test.txt", content)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read temp file: %v", err)
	}

	if string(data) != string(content) {
		t.Errorf("Expected content %q, got %q", string(content), string(data))
	}
}

func TestAssertNoError(t *testing.T) {
	AssertNoError(t, nil)
}

func TestAssertEqual(t *testing.T) {
	AssertEqual(t, 1, 1)
	AssertEqual(t, "test", "test")
	AssertEqual(t, true, true)
}

func TestAssertStringContains(t *testing.T) {
	AssertStringContains(t, "hello world", "world")
	AssertStringContains(t, "hello world", "hello")
	AssertStringContains(t, "hello world", "o w")
}

func TestNewMemoryUnit(t *testing.T) {
	m := NewMemoryUnit("tenant-a", "remember to buy milk")
	if m.TenantID != "tenant-a" {
		t.Errorf("expected tenant-a, got %s", m.TenantID)
	}
	if len(m.Embedding) != 768 {
		t.Errorf("expected 768-dim embedding, got %d", len(m.Embedding))
	}

	m2 := NewMemoryUnit("tenant-a", "remember to buy milk")
	if m.ID != m2.ID {
		t.Error("expected identical fixtures for identical tenant+content to share an ID")
	}
}

func TestDeterministicEmbed(t *testing.T) {
	v1 := DeterministicEmbed("hello", 16)
	v2 := DeterministicEmbed("hello", 16)
	v3 := DeterministicEmbed("goodbye", 16)

	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected identical embeddings for identical input, diverged at %d", i)
		}
	}

	var sq float64
	for _, x := range v1 {
		sq += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sq)-1.0) > 1e-6 {
		t.Errorf("expected unit-normalized vector, got norm %f", math.Sqrt(sq))
	}

	same := true
	for i := range v1 {
		if v1[i] != v3[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected distinct embeddings for distinct input")
	}
}

func TestFakeEmbeddingGateway(t *testing.T) {
	gw := NewFakeEmbeddingGateway(32)

	vec, err := gw.Embed("a memory")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 32 {
		t.Errorf("expected 32-dim vector, got %d", len(vec))
	}
	if gw.Dimensions() != 32 {
		t.Errorf("expected Dimensions()=32, got %d", gw.Dimensions())
	}

	batch, err := gw.EmbedBatch([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 3 {
		t.Errorf("expected 3 vectors, got %d", len(batch))
	}

	if gw.Calls != 4 {
		t.Errorf("expected 4 recorded calls, got %d", gw.Calls)
	}
}
