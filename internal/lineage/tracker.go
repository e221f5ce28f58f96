// Package lineage implements the audit trail (C12): an append-only
// per-memory event list plus a separate relation store, both guarded
// by per-memory mutexes so concurrent writers never block each other
// across memories.
package lineage

import (
	"sort"
	"sync"
	"time"

	"github.com/mnemotree/mnemocore/internal/types"
)

// RelationType classifies a cross-memory relationship recorded
// alongside the event log.
type RelationType string

const (
	RelationMergedFrom RelationType = "merged_from"
	RelationDerivedFrom RelationType = "derived_from"
)

// Relation links one memory to another, e.g. the primary of a merge to
// the records it absorbed.
type Relation struct {
	Type      RelationType
	FromID    string
	ToID      string
	TenantID  string
	CreatedAt time.Time
}

type memoryLog struct {
	mu        sync.Mutex
	events    []types.LineageEvent
	relations []Relation
}

// Tracker owns every memory's event log and relation list.
type Tracker struct {
	mapMu sync.RWMutex
	logs  map[string]*memoryLog
}

func New() *Tracker {
	return &Tracker{logs: make(map[string]*memoryLog)}
}

func (t *Tracker) logFor(memoryID string) *memoryLog {
	t.mapMu.RLock()
	l, ok := t.logs[memoryID]
	t.mapMu.RUnlock()
	if ok {
		return l
	}

	t.mapMu.Lock()
	defer t.mapMu.Unlock()
	if l, ok = t.logs[memoryID]; ok {
		return l
	}
	l = &memoryLog{}
	t.logs[memoryID] = l
	return l
}

func (t *Tracker) record(event types.LineageEvent) {
	l := t.logFor(event.MemoryID)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// RecordCreated appends a created event.
func (t *Tracker) RecordCreated(tenantID, memoryID, contentHash string) {
	t.record(types.LineageEvent{
		MemoryID: memoryID, EventType: types.EventCreated, TenantID: tenantID,
		Timestamp: nowFunc(), NewHash: contentHash,
	})
}

// RecordUpdated appends an updated event carrying the before/after
// content hash.
func (t *Tracker) RecordUpdated(tenantID, memoryID, previousHash, newHash string) {
	t.record(types.LineageEvent{
		MemoryID: memoryID, EventType: types.EventUpdated, TenantID: tenantID,
		Timestamp: nowFunc(), PreviousHash: previousHash, NewHash: newHash,
	})
}

// RecordAccessed appends an accessed event, used to audit reads that
// bump recency scoring.
func (t *Tracker) RecordAccessed(tenantID, memoryID string) {
	t.record(types.LineageEvent{
		MemoryID: memoryID, EventType: types.EventAccessed, TenantID: tenantID, Timestamp: nowFunc(),
	})
}

// RecordDeleted appends a deleted event.
func (t *Tracker) RecordDeleted(tenantID, memoryID string) {
	t.record(types.LineageEvent{
		MemoryID: memoryID, EventType: types.EventDeleted, TenantID: tenantID, Timestamp: nowFunc(),
	})
}

// RecordMerged appends a merged event on primaryID naming the absorbed
// IDs, and records a MergedFrom relation for each absorbed record.
func (t *Tracker) RecordMerged(tenantID, primaryID string, absorbedIDs []string) {
	t.record(types.LineageEvent{
		MemoryID: primaryID, EventType: types.EventMerged, TenantID: tenantID,
		Timestamp: nowFunc(), RelatedIDs: absorbedIDs,
	})

	l := t.logFor(primaryID)
	l.mu.Lock()
	for _, absorbed := range absorbedIDs {
		l.relations = append(l.relations, Relation{
			Type: RelationMergedFrom, FromID: primaryID, ToID: absorbed, TenantID: tenantID, CreatedAt: nowFunc(),
		})
	}
	l.mu.Unlock()
}

// Query returns memoryID's events matching eventTypes (all types if
// empty) at or after since, newest-first, capped at limit (0 means
// unlimited).
func (t *Tracker) Query(memoryID string, eventTypes []types.LineageEventType, since time.Time, limit int) []types.LineageEvent {
	l := t.logFor(memoryID)
	l.mu.Lock()
	events := append([]types.LineageEvent(nil), l.events...)
	l.mu.Unlock()

	wanted := make(map[types.LineageEventType]struct{}, len(eventTypes))
	for _, et := range eventTypes {
		wanted[et] = struct{}{}
	}

	var matched []types.LineageEvent
	for _, e := range events {
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[e.EventType]; !ok {
				continue
			}
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// Relations returns every relation recorded against memoryID.
func (t *Tracker) Relations(memoryID string) []Relation {
	l := t.logFor(memoryID)
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Relation(nil), l.relations...)
}

// nowFunc is a seam for deterministic tests.
var nowFunc = time.Now
