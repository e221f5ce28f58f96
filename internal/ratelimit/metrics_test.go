package ratelimit

import "testing"

func TestMetrics_RecordAllowedAndRejected(t *testing.T) {
	m := NewMetrics()
	m.RecordAllowed("store")
	m.RecordAllowed("store")
	m.RecordRejection("global", "store")

	if m.TotalAllowed() != 2 {
		t.Errorf("expected 2 allowed, got %d", m.TotalAllowed())
	}
	if m.TotalRejected() != 1 {
		t.Errorf("expected 1 rejected, got %d", m.TotalRejected())
	}
}

func TestMetrics_RejectionRate(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 3; i++ {
		m.RecordAllowed("store")
	}
	m.RecordRejection("global", "store")

	rate := m.RejectionRate()
	if rate < 0.24 || rate > 0.26 {
		t.Errorf("expected rejection rate ~0.25, got %v", rate)
	}
}

func TestMetrics_SnapshotIncludesPerKeyBreakdown(t *testing.T) {
	m := NewMetrics()
	m.RecordAllowed("store")
	m.RecordRejection("per_op", "recall")

	snap := m.Snapshot()
	if snap.AllowedByTool["store"] != 1 {
		t.Errorf("expected 1 allowed for store, got %d", snap.AllowedByTool["store"])
	}
	if snap.RejectedByTool["recall"] != 1 {
		t.Errorf("expected 1 rejected for recall, got %d", snap.RejectedByTool["recall"])
	}
	if snap.RejectionsByType["per_op"] != 1 {
		t.Errorf("expected 1 rejection of type per_op, got %d", snap.RejectionsByType["per_op"])
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()
	m.RecordAllowed("store")
	m.Reset()
	if m.TotalAllowed() != 0 {
		t.Errorf("expected counters cleared after reset, got %d", m.TotalAllowed())
	}
}
