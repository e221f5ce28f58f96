// Package sqlitestore is a durable implementation of memindex.Index
// backed by SQLite, for deployments that need memories to survive a
// process restart. It satisfies exactly the same contract as
// memindex.MemIndex (tenant-scoped NotFound, soft delete, the same
// GetAll/Search ordering and tiebreaks) so callers can switch storage
// backends without observing any behavioral difference.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/mnerr"
	"github.com/mnemotree/mnemocore/internal/types"
)

var log = logging.GetLogger("sqlitestore")

// schemaVersion is bumped whenever coreSchema changes shape.
const schemaVersion = 1

const coreSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	session_id TEXT,
	content TEXT NOT NULL,
	type TEXT NOT NULL,
	embedding BLOB,
	importance REAL NOT NULL DEFAULT 0,
	topics TEXT,
	metadata TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	last_accessed_at DATETIME,
	access_count INTEGER NOT NULL DEFAULT 0,
	is_deleted BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_memories_tenant ON memories(tenant_id);
CREATE INDEX IF NOT EXISTS idx_memories_tenant_session ON memories(tenant_id, session_id);
CREATE INDEX IF NOT EXISTS idx_memories_tenant_created ON memories(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_memories_tenant_deleted ON memories(tenant_id, is_deleted);

-- Sessions group memories created within one conversation, the same
-- bookkeeping role as the teacher's agent_sessions table, scoped to
-- tenant_id rather than a single-operator CLI session.
CREATE TABLE IF NOT EXISTS sessions (
	tenant_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	name TEXT,
	created_at DATETIME NOT NULL,
	last_accessed_at DATETIME NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	PRIMARY KEY (tenant_id, session_id)
);
`

// Store is a SQLite-backed memindex.Index. SQLite only supports one
// writer at a time, so every method serializes through mu the same
// way the connection pool is capped to a single connection.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

var _ memindex.Index = (*Store)(nil)

// SessionRegistry is the optional session-bookkeeping capability Store
// provides beyond the memindex.Index contract. memindex.MemIndex does
// not implement it — session bookkeeping is a durable-backend-only
// concern, same as the Qdrant accelerator is a durable-backend-only
// optimization.
type SessionRegistry interface {
	TouchSession(ctx context.Context, tenantID, sessionID string) error
	GetSession(ctx context.Context, tenantID, sessionID string) (*types.Session, error)
	ListSessions(ctx context.Context, tenantID string) ([]*types.Session, error)
}

var _ SessionRegistry = (*Store)(nil)

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema is current.
func Open(path string) (*Store, error) {
	log.Info("opening sqlite store", "path", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='memories'`).Scan(&name)
	if err == nil && name != "" {
		log.Debug("schema already initialized")
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(coreSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	log.Info("sqlite schema initialized", "version", schemaVersion)
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func encodeTopics(topics []string) string {
	if len(topics) == 0 {
		return ""
	}
	b, _ := json.Marshal(topics)
	return string(b)
}

func decodeTopics(raw string) []string {
	if raw == "" {
		return nil
	}
	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		return nil
	}
	return topics
}

func encodeMetadata(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func decodeMetadata(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

// Store inserts or fully overwrites m, matching memindex.MemIndex's
// overwrite-on-restore semantics rather than a field-level merge.
func (s *Store) Store(_ context.Context, m *types.MemoryUnit) error {
	if m.TenantID == "" {
		return mnerr.New(mnerr.BadRequest, "tenant_id is required")
	}
	if m.Content == "" {
		return mnerr.New(mnerr.BadRequest, "content is required")
	}
	if !m.Type.IsValid() {
		return mnerr.New(mnerr.BadRequest, "invalid memory type %q", m.Type)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO memories (
			id, tenant_id, session_id, content, type, embedding, importance,
			topics, metadata, created_at, updated_at, last_accessed_at,
			access_count, is_deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.TenantID, nullString(m.SessionID), m.Content, string(m.Type),
		encodeEmbedding(m.Embedding), m.Importance, encodeTopics(m.Topics), encodeMetadata(m.Metadata),
		m.CreatedAt, m.UpdatedAt, nullTime(m.LastAccessedAt), m.AccessCount, m.IsDeleted,
	)
	if err != nil {
		return mnerr.Wrap(mnerr.Internal, err, "store memory %s", m.ID)
	}

	log.Debug("memory stored", "tenant_id", m.TenantID, "memory_id", m.ID)
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

const selectColumns = `id, tenant_id, session_id, content, type, embedding, importance,
	topics, metadata, created_at, updated_at, last_accessed_at, access_count, is_deleted`

func scanMemory(row interface{ Scan(...interface{}) error }) (*types.MemoryUnit, error) {
	var m types.MemoryUnit
	var sessionID sql.NullString
	var memType string
	var embedding []byte
	var topicsRaw, metadataRaw string
	var lastAccessed sql.NullTime

	err := row.Scan(
		&m.ID, &m.TenantID, &sessionID, &m.Content, &memType, &embedding, &m.Importance,
		&topicsRaw, &metadataRaw, &m.CreatedAt, &m.UpdatedAt, &lastAccessed, &m.AccessCount, &m.IsDeleted,
	)
	if err != nil {
		return nil, err
	}

	m.SessionID = sessionID.String
	m.Type = types.MemoryType(memType)
	m.Embedding = decodeEmbedding(embedding)
	m.Topics = decodeTopics(topicsRaw)
	m.Metadata = decodeMetadata(metadataRaw)
	if lastAccessed.Valid {
		m.LastAccessedAt = lastAccessed.Time
	}
	return &m, nil
}

// Get returns the memory with id in tenantID's namespace. Like
// memindex.MemIndex, a mismatched tenant_id is indistinguishable from a
// missing ID.
func (s *Store) Get(_ context.Context, tenantID, id string) (*types.MemoryUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM memories WHERE id = ? AND tenant_id = ? AND is_deleted = 0`, id, tenantID)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, mnerr.New(mnerr.NotFound, "memory %s not found", id)
	}
	if err != nil {
		return nil, mnerr.Wrap(mnerr.Internal, err, "get memory %s", id)
	}
	return m, nil
}

// Update loads the stored memory, applies mutate, and persists the
// result within the same write lock so no other writer observes a
// half-applied mutation.
func (s *Store) Update(_ context.Context, tenantID, id string, mutate func(*types.MemoryUnit)) (*types.MemoryUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM memories WHERE id = ? AND tenant_id = ? AND is_deleted = 0`, id, tenantID)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, mnerr.New(mnerr.NotFound, "memory %s not found", id)
	}
	if err != nil {
		return nil, mnerr.Wrap(mnerr.Internal, err, "get memory %s", id)
	}

	mutate(m)
	m.UpdatedAt = time.Now()

	_, err = s.db.Exec(`
		UPDATE memories SET session_id = ?, content = ?, type = ?, embedding = ?, importance = ?,
			topics = ?, metadata = ?, updated_at = ?, last_accessed_at = ?, access_count = ?, is_deleted = ?
		WHERE id = ? AND tenant_id = ?
	`,
		nullString(m.SessionID), m.Content, string(m.Type), encodeEmbedding(m.Embedding), m.Importance,
		encodeTopics(m.Topics), encodeMetadata(m.Metadata), m.UpdatedAt, nullTime(m.LastAccessedAt), m.AccessCount, m.IsDeleted,
		id, tenantID,
	)
	if err != nil {
		return nil, mnerr.Wrap(mnerr.Internal, err, "update memory %s", id)
	}
	return m, nil
}

// Delete soft-deletes the memory so lineage and dedup history survive.
func (s *Store) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE memories SET is_deleted = 1, updated_at = ? WHERE id = ? AND tenant_id = ? AND is_deleted = 0`,
		time.Now(), id, tenantID)
	if err != nil {
		return mnerr.Wrap(mnerr.Internal, err, "delete memory %s", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return mnerr.New(mnerr.NotFound, "memory %s not found", id)
	}
	return nil
}

// Count returns the number of non-deleted memories for tenantID.
func (s *Store) Count(_ context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memories WHERE tenant_id = ? AND is_deleted = 0`, tenantID).Scan(&n); err != nil {
		return 0, mnerr.Wrap(mnerr.Internal, err, "count memories")
	}
	return n, nil
}

// rowsMatchingFilter loads every row for tenantID that matches the
// structural filter fields SQL can express directly; Topics is applied
// in Go afterward since it's stored as a JSON array, mirroring
// memindex.Filter.matches's any-of semantics.
func (s *Store) rowsMatchingFilter(tenantID string, filter memindex.Filter) ([]*types.MemoryUnit, error) {
	query := `SELECT ` + selectColumns + ` FROM memories WHERE tenant_id = ?`
	args := []interface{}{tenantID}

	if !filter.IncludeDeleted {
		query += ` AND is_deleted = 0`
	}
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter)
	}
	if !filter.CreatedBefore.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, filter.CreatedBefore)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.MemoryUnit
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		if len(filter.Topics) > 0 && !hasAnyTopic(m.Topics, filter.Topics) {
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func hasAnyTopic(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// GetAll returns every memory in tenantID matching filter, ordered by
// CreatedAt descending with ID as a deterministic tiebreak — the same
// order memindex.MemIndex.GetAll guarantees.
func (s *Store) GetAll(_ context.Context, tenantID string, filter memindex.Filter) ([]*types.MemoryUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.rowsMatchingFilter(tenantID, filter)
	if err != nil {
		return nil, mnerr.Wrap(mnerr.Internal, err, "list memories")
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Search ranks tenantID's memories by cosine similarity against
// queryVec, skipping candidates with no embedding or a negative score,
// in (score desc, then UpdatedAt desc, then ID asc) order — matching
// memindex.MemIndex.Search exactly.
func (s *Store) Search(_ context.Context, tenantID string, queryVec []float32, filter memindex.Filter, limit int) ([]memindex.Scored, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.rowsMatchingFilter(tenantID, filter)
	if err != nil {
		return nil, mnerr.Wrap(mnerr.Internal, err, "search memories")
	}

	candidates := make([]memindex.Scored, 0, len(rows))
	for _, m := range rows {
		if len(m.Embedding) == 0 || len(queryVec) == 0 {
			continue
		}
		score := cosineSimilarity(queryVec, m.Embedding)
		if score < 0 {
			continue
		}
		candidates = append(candidates, memindex.Scored{Memory: m, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if !candidates[i].Memory.UpdatedAt.Equal(candidates[j].Memory.UpdatedAt) {
			return candidates[i].Memory.UpdatedAt.After(candidates[j].Memory.UpdatedAt)
		}
		return candidates[i].Memory.ID < candidates[j].Memory.ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TouchSession records that tenantID's sessionID is active right now,
// creating the row on first use and bumping last_accessed_at on every
// subsequent call — the same create-or-refresh behavior the teacher's
// agent_sessions table gets from its CLI session manager, minus the
// git-detected agent_type (dropped; see DESIGN.md).
func (s *Store) TouchSession(_ context.Context, tenantID, sessionID string) error {
	if tenantID == "" || sessionID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO sessions (tenant_id, session_id, created_at, last_accessed_at, is_active)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(tenant_id, session_id) DO UPDATE SET last_accessed_at = excluded.last_accessed_at, is_active = 1
	`, tenantID, sessionID, now, now)
	if err != nil {
		return mnerr.Wrap(mnerr.Internal, err, "touch session %s", sessionID)
	}
	return nil
}

// GetSession returns tenantID's sessionID, or mnerr.NotFound if it has
// never been touched.
func (s *Store) GetSession(_ context.Context, tenantID, sessionID string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sess types.Session
	var name sql.NullString
	err := s.db.QueryRow(`SELECT tenant_id, session_id, name, created_at, is_active FROM sessions WHERE tenant_id = ? AND session_id = ?`,
		tenantID, sessionID).Scan(&sess.TenantID, &sess.SessionID, &name, &sess.CreatedAt, &sess.IsActive)
	if err == sql.ErrNoRows {
		return nil, mnerr.New(mnerr.NotFound, "session %s not found", sessionID)
	}
	if err != nil {
		return nil, mnerr.Wrap(mnerr.Internal, err, "get session %s", sessionID)
	}
	sess.Name = name.String
	return &sess, nil
}

// ListSessions returns every session recorded for tenantID, most
// recently accessed first.
func (s *Store) ListSessions(_ context.Context, tenantID string) ([]*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT tenant_id, session_id, name, created_at, is_active FROM sessions WHERE tenant_id = ? ORDER BY last_accessed_at DESC`, tenantID)
	if err != nil {
		return nil, mnerr.Wrap(mnerr.Internal, err, "list sessions")
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		var sess types.Session
		var name sql.NullString
		if err := rows.Scan(&sess.TenantID, &sess.SessionID, &name, &sess.CreatedAt, &sess.IsActive); err != nil {
			return nil, mnerr.Wrap(mnerr.Internal, err, "scan session")
		}
		sess.Name = name.String
		out = append(out, &sess)
	}
	return out, rows.Err()
}
