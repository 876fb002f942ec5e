// Package inflight coalesces concurrent transformations of the same
// fingerprint. The map is advisory: a waiter that is released re-checks
// the durable cache itself rather than receiving the owner's result, so
// the cache stays the single source of truth and an owner's failure just
// promotes the next caller to owner.
//
// The map is process-local. Two processes sharing a cache root may still
// duplicate work; entries are content-named whole-file writes, so the
// duplication is wasted effort, never corruption.
package inflight

import (
	"context"
	"sync"
)

// Map tracks at most one in-flight transformation per fingerprint. The
// zero value is not usable; call NewMap.
type Map struct {
	mu      sync.Mutex
	pending map[string]chan struct{}
}

// NewMap returns an empty coalescing map.
func NewMap() *Map {
	return &Map{pending: make(map[string]chan struct{})}
}

// Await blocks while another caller owns fingerprint, returning once that
// work completes (or ctx is done). After Await the caller must re-check
// the cache and, on a miss, call Begin to take ownership itself.
func (m *Map) Await(ctx context.Context, fingerprint string) error {
	for {
		m.mu.Lock()
		done, ok := m.pending[fingerprint]
		m.mu.Unlock()
		if !ok {
			return nil
		}
		select {
		case <-done:
			// Owner finished; loop in case a new owner registered
			// between its Complete and our next check.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Begin installs the caller as the owner of fingerprint, replacing any
// existing marker. Callers go through Await first, so replacement only
// happens in the benign race where two waiters both saw a cache miss.
// When that race occurs, the replaced owner's eventual Complete releases
// the replacement's marker early; the replacement then runs unmarked and
// a third caller may coalesce with neither. Await loops for exactly this
// reason: a released waiter always re-checks the cache before trusting
// the marker's absence.
func (m *Map) Begin(fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if done, ok := m.pending[fingerprint]; ok {
		close(done)
	}
	m.pending[fingerprint] = make(chan struct{})
}

// Complete releases fingerprint's marker and wakes every waiter. It must
// run on every exit path after Begin; callers defer it immediately.
// Completing a fingerprint that is not in flight is a no-op.
func (m *Map) Complete(fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if done, ok := m.pending[fingerprint]; ok {
		close(done)
		delete(m.pending, fingerprint)
	}
}

// Len reports the number of in-flight fingerprints.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
