// Package types holds the data model shared across mnemocore's components:
// the memory record, sessions, and the lineage event log. Storage,
// retrieval, and security components all operate on these types rather
// than owning their own copies.
package types

import "time"

// MemoryType classifies the kind of content a MemoryUnit holds.
type MemoryType string

const (
	TypeEpisodic   MemoryType = "episodic"
	TypeSemantic   MemoryType = "semantic"
	TypeProcedural MemoryType = "procedural"
	TypeFact       MemoryType = "fact"
)

// IsValid reports whether t is one of the four recognized memory types.
func (t MemoryType) IsValid() bool {
	switch t {
	case TypeEpisodic, TypeSemantic, TypeProcedural, TypeFact:
		return true
	}
	return false
}

// MemoryUnit is the central record of the memory index (C2).
//
// tenant_id and id together determine the record; id is globally unique
// but every lookup must pass tenant_id so cross-tenant reads are rejected
// rather than silently served.
type MemoryUnit struct {
	ID              string            `json:"id"`
	TenantID        string            `json:"tenant_id"`
	SessionID       string            `json:"session_id,omitempty"`
	Content         string            `json:"content"`
	Type            MemoryType        `json:"type"`
	Embedding       []float32         `json:"embedding,omitempty"`
	Importance      float64           `json:"importance"`
	Topics          []string          `json:"topics,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	LastAccessedAt  time.Time         `json:"last_accessed_at,omitempty"`
	AccessCount     uint64            `json:"access_count"`
	IsDeleted       bool              `json:"is_deleted"`
}

// Clone returns a deep-enough copy of m so callers can mutate the result
// without racing with the index's own copy (the embedding is shared by
// reference per the size note in spec.md §9 and never mutated in place;
// topics and the metadata map are copied).
func (m *MemoryUnit) Clone() *MemoryUnit {
	if m == nil {
		return nil
	}
	cp := *m
	if m.Embedding != nil {
		cp.Embedding = m.Embedding // shared by reference on read paths, never mutated in place
	}
	if m.Topics != nil {
		cp.Topics = append([]string(nil), m.Topics...)
	}
	if m.Metadata != nil {
		cp.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Session groups memories created within one conversation.
type Session struct {
	TenantID  string    `json:"tenant_id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// LineageEventType enumerates the audit events recorded per memory (C12).
type LineageEventType string

const (
	EventCreated LineageEventType = "created"
	EventUpdated LineageEventType = "updated"
	EventAccessed LineageEventType = "accessed"
	EventDeleted LineageEventType = "deleted"
	EventMerged  LineageEventType = "merged"
)

// LineageEvent is one entry in a memory's append-only audit trail.
type LineageEvent struct {
	MemoryID     string            `json:"memory_id"`
	EventType    LineageEventType  `json:"event_type"`
	TenantID     string            `json:"tenant_id"`
	Timestamp    time.Time         `json:"timestamp"`
	PreviousHash string            `json:"previous_hash,omitempty"`
	NewHash      string            `json:"new_hash,omitempty"`
	RelatedIDs   []string          `json:"related_ids,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
}
