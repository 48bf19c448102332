package tracker

import (
	"sync"
	"time"
)

// Entry is the in-process view of a pending payment. It exists purely for
// observability and sweep scheduling, the durable store remains the single
// source of truth at all times.
type Entry struct {
	CheckoutRequestID string
	TrackedAt         time.Time
	Attempts          int
}

// Tracker is a per process cache of payments awaiting their provider
// callback, keyed by checkout request id. It is rebuildable and never
// consulted for correctness decisions.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func New() *Tracker {
	return &Tracker{entries: make(map[string]*Entry)}
}

// Track registers a freshly accepted payment.
func (t *Tracker) Track(checkoutRequestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[checkoutRequestID]; ok {
		return
	}
	t.entries[checkoutRequestID] = &Entry{
		CheckoutRequestID: checkoutRequestID,
		TrackedAt:         time.Now(),
	}
}

// Resolve drops the entry once its payment reaches a terminal state.
func (t *Tracker) Resolve(checkoutRequestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, checkoutRequestID)
}

// Bump increments and returns the status poll counter for the entry, or
// zero when the payment is not tracked by this process.
func (t *Tracker) Bump(checkoutRequestID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[checkoutRequestID]
	if !ok {
		return 0
	}
	entry.Attempts++
	return entry.Attempts
}

// Tracked reports whether the payment is known to this process.
func (t *Tracker) Tracked(checkoutRequestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[checkoutRequestID]
	return ok
}

// ReapOlderThan removes and returns the ids of entries tracked before the
// cutoff. The durable records they mirror are the sweeper's business.
func (t *Tracker) ReapOlderThan(cutoff time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var reaped []string
	for id, entry := range t.entries {
		if entry.TrackedAt.Before(cutoff) {
			delete(t.entries, id)
			reaped = append(reaped, id)
		}
	}
	return reaped
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
