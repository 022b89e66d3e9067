package token

import (
	"context"
	"sync"
	"time"
)

// Revocations tracks token IDs invalidated before their natural expiry.
// Implementations must be safe for concurrent use.
type Revocations interface {
	// Add marks tokenID revoked until notAfter and reports whether the
	// entry was newly added, so concurrent revocations of the same ID
	// resolve first-wins. A zero notAfter means the entry has no known
	// expiry and is retained until pruned manually.
	Add(ctx context.Context, tokenID string, notAfter time.Time) (bool, error)
	// Contains reports whether tokenID is currently revoked.
	Contains(ctx context.Context, tokenID string) (bool, error)
}

// pruneInterval is the mutation count between lazy prune sweeps. Pruning is
// amortized over Add calls so no background task is needed.
const pruneInterval = 128

// MemoryRevocations is the in-process revocation set: append-only with lazy
// pruning of entries past their natural expiry, which bounds memory to the
// number of live revoked tokens.
type MemoryRevocations struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	ops     int
	now     func() time.Time
}

// NewMemoryRevocations builds an empty in-memory revocation set.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Add records the revocation and occasionally sweeps expired entries. A
// prior entry past its expiry counts as absent, so re-revoking a recycled
// token ID reads as newly added.
func (m *MemoryRevocations) Add(_ context.Context, tokenID string, notAfter time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prior, exists := m.entries[tokenID]
	live := exists && (prior.IsZero() || !m.now().After(prior))
	m.entries[tokenID] = notAfter
	m.ops++
	if m.ops >= pruneInterval {
		m.ops = 0
		m.pruneLocked()
	}
	return !live, nil
}

// Contains reports revocation status. Entries past their expiry read as not
// revoked even before the next sweep removes them.
func (m *MemoryRevocations) Contains(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	notAfter, ok := m.entries[tokenID]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if !notAfter.IsZero() && m.now().After(notAfter) {
		return false, nil
	}
	return true, nil
}

// Len returns the number of tracked entries, expired ones included.
func (m *MemoryRevocations) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Prune removes entries past their natural expiry and returns how many
// were dropped.
func (m *MemoryRevocations) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked()
}

func (m *MemoryRevocations) pruneLocked() int {
	now := m.now()
	removed := 0
	for id, notAfter := range m.entries {
		if !notAfter.IsZero() && now.After(notAfter) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}
