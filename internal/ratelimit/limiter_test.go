package ratelimit

import (
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		Enabled: true,
		Window:  time.Minute,
		Global:  5,
		PerOp:   map[string]int{string(OpStore): 2},
	}
}

func TestAllow_PerOpLimitRejectsAfterMax(t *testing.T) {
	l := NewLimiter(testConfig())

	r1 := l.Allow("t1", OpStore)
	r2 := l.Allow("t1", OpStore)
	r3 := l.Allow("t1", OpStore)

	if !r1.Allowed || !r2.Allowed {
		t.Fatalf("expected first two store requests allowed, got %+v %+v", r1, r2)
	}
	if r3.Allowed {
		t.Errorf("expected third store request to exceed the per-op limit of 2, got %+v", r3)
	}
	if r3.LimitType != "per_op" {
		t.Errorf("expected rejection limit type 'per_op', got %q", r3.LimitType)
	}
	if r3.RetryAfter < time.Second {
		t.Errorf("expected retry_after >= 1s, got %v", r3.RetryAfter)
	}
}

func TestAllow_GlobalLimitRejectsAcrossOps(t *testing.T) {
	cfg := &Config{Enabled: true, Window: time.Minute, Global: 2, PerOp: map[string]int{
		string(OpStore): 10, string(OpRecall): 10,
	}}
	l := NewLimiter(cfg)

	if !l.Allow("t1", OpStore).Allowed {
		t.Fatal("expected first request allowed")
	}
	if !l.Allow("t1", OpRecall).Allowed {
		t.Fatal("expected second request allowed")
	}
	r3 := l.Allow("t1", OpUpdate)
	if r3.Allowed {
		t.Errorf("expected third request to exceed the tenant's global cap of 2, got %+v", r3)
	}
	if r3.LimitType != "global" {
		t.Errorf("expected rejection limit type 'global', got %q", r3.LimitType)
	}
}

func TestAllow_GlobalRejectionRollsBackPerOpAcquisition(t *testing.T) {
	cfg := &Config{Enabled: true, Window: time.Minute, Global: 1, PerOp: map[string]int{string(OpStore): 10}}
	l := NewLimiter(cfg)

	if !l.Allow("t1", OpStore).Allowed {
		t.Fatal("expected first store allowed")
	}
	// Global cap (1) is now exhausted; this store should be rejected at
	// the global stage, and its per-op acquisition rolled back.
	if l.Allow("t1", OpStore).Allowed {
		t.Fatal("expected second store to be rejected by the global cap")
	}

	remaining, _ := l.Status("t1", OpStore)
	if remaining != 9 {
		t.Errorf("expected per-op window to show only 1 consumed (remaining 9 of 10) after rollback, got %d", remaining)
	}
}

func TestAllow_OpAnyBypassesGlobalCap(t *testing.T) {
	cfg := &Config{Enabled: true, Window: time.Minute, Global: 1, PerOp: map[string]int{string(OpAny): 5}}
	l := NewLimiter(cfg)

	if !l.Allow("t1", OpStore).Allowed {
		t.Fatal("expected store to consume the global cap")
	}
	for i := 0; i < 5; i++ {
		if !l.Allow("t1", OpAny).Allowed {
			t.Fatalf("expected OpAny request %d to bypass the exhausted global cap", i)
		}
	}
}

func TestAllow_TenantIsolation(t *testing.T) {
	cfg := &Config{Enabled: true, Window: time.Minute, Global: 1, PerOp: map[string]int{string(OpStore): 1}}
	l := NewLimiter(cfg)

	if !l.Allow("tenant-a", OpStore).Allowed {
		t.Fatal("expected tenant-a's first request allowed")
	}
	if !l.Allow("tenant-b", OpStore).Allowed {
		t.Error("expected tenant-b to have its own independent window")
	}
}

func TestDisabledLimiter_AlwaysAllows(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	l := NewLimiter(cfg)

	for i := 0; i < 20; i++ {
		if r := l.Allow("t1", OpStore); !r.Allowed || r.LimitType != "disabled" {
			t.Fatalf("expected disabled limiter to always allow, got %+v", r)
		}
	}
}

func TestReset_ClearsOnlyNamedTenant(t *testing.T) {
	cfg := &Config{Enabled: true, Window: time.Minute, Global: 1, PerOp: map[string]int{string(OpStore): 1}}
	l := NewLimiter(cfg)

	l.Allow("t1", OpStore)
	l.Allow("t2", OpStore)

	l.Reset("t1")

	if !l.Allow("t1", OpStore).Allowed {
		t.Error("expected t1's window cleared after reset")
	}
	if l.Allow("t2", OpStore).Allowed {
		t.Error("expected t2's window untouched by resetting t1")
	}
}

func TestStatus_ReportsRemainingWithoutConsuming(t *testing.T) {
	l := NewLimiter(testConfig())
	before, _ := l.Status("t1", OpStore)
	l.Allow("t1", OpStore)
	after, _ := l.Status("t1", OpStore)
	if after != before-1 {
		t.Errorf("expected remaining to drop by 1 after one Allow, got %d -> %d", before, after)
	}
	// Status itself must not consume a permit.
	afterAgain, _ := l.Status("t1", OpStore)
	if afterAgain != after {
		t.Errorf("expected Status to be idempotent, got %d then %d", after, afterAgain)
	}
}
