package ratelimit

import (
	"sync"
	"time"
)

// slidingWindow tracks permit timestamps within a rolling duration for
// one (tenant, op) key or one tenant's global key.
type slidingWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
	window     time.Duration
	max        int
}

func newSlidingWindow(window time.Duration, max int) *slidingWindow {
	return &slidingWindow{window: window, max: max}
}

// evict drops timestamps older than now-window. Must be called with
// the mutex held.
func (w *slidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.timestamps) && w.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = w.timestamps[i:]
	}
}

// tryAcquire evicts stale entries, and if the window has room appends
// now and reports success with the remaining capacity. Otherwise it
// reports failure and a retry-after duration (at least one second).
func (w *slidingWindow) tryAcquire(now time.Time) (ok bool, remaining int, retryAfter time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	if len(w.timestamps) >= w.max {
		retryAfter = w.timestamps[0].Add(w.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, 0, retryAfter
	}

	w.timestamps = append(w.timestamps, now)
	return true, w.max - len(w.timestamps), 0
}

// rollback removes the most recently acquired timestamp, e.g. after a
// downstream acquisition in the same admission fails.
func (w *slidingWindow) rollback() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.timestamps) > 0 {
		w.timestamps = w.timestamps[:len(w.timestamps)-1]
	}
}

// status reports remaining capacity and time until the oldest entry
// expires, without acquiring a new permit.
func (w *slidingWindow) status(now time.Time) (remaining int, resetIn time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	remaining = w.max - len(w.timestamps)
	if remaining < 0 {
		remaining = 0
	}
	if len(w.timestamps) == 0 {
		return remaining, 0
	}
	resetIn = w.timestamps[0].Add(w.window).Sub(now)
	if resetIn < 0 {
		resetIn = 0
	}
	return remaining, resetIn
}

func (w *slidingWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timestamps = nil
}
