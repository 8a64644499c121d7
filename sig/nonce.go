package sig

import (
	"context"
	"sync"
	"time"

	"github.com/paykitproto/paykit-core/types"
)

// MaxTrackedNonces bounds the NonceStore's memory: once this many
// entries are live, CheckAndMark refuses new (non-replay) nonces with a
// BackpressureError rather than growing unbounded (spec §4.3).
const MaxTrackedNonces = 1_000_000

type nonceKey struct {
	signer types.PublicKey
	nonce  types.Nonce
}

// NonceStore tracks (signer, nonce) pairs that have already been
// consumed by a successful Verify, so a captured envelope cannot be
// replayed. Entries are evicted once their envelope's ExpiresAt has
// passed, since an expired envelope can never verify again regardless
// of nonce state. NonceStore is safe for concurrent use.
type NonceStore struct {
	mu      sync.Mutex
	entries map[nonceKey]int64 // value is the envelope's expires_at
}

// NewNonceStore returns an empty NonceStore.
func NewNonceStore() *NonceStore {
	return &NonceStore{entries: make(map[nonceKey]int64)}
}

// CheckAndMark atomically checks whether (signer, nonce) has been seen
// before and, if not, records it with the given expiry. It returns
// false (without error) if the pair was already present — a replay.
// now is the caller's current time, used only to opportunistically
// evict expired entries when the store is at capacity: spec §4.4
// requires expired entries be evicted first, and only once none are
// expired does insertion fail with a *BackpressureError.
func (s *NonceStore) CheckAndMark(signer types.PublicKey, nonce types.Nonce, expiresAt int64, now int64) (bool, error) {
	key := nonceKey{signer: signer, nonce: nonce}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.entries[key]; seen {
		return false, nil
	}
	if len(s.entries) >= MaxTrackedNonces {
		s.evictExpiredLocked(now)
	}
	if len(s.entries) >= MaxTrackedNonces {
		return false, &BackpressureError{TrackedCount: len(s.entries), Limit: MaxTrackedNonces}
	}
	s.entries[key] = expiresAt
	return true, nil
}

// evictExpiredLocked removes every entry whose expiry is before now.
// Callers must hold s.mu.
func (s *NonceStore) evictExpiredLocked(now int64) {
	for k, expiresAt := range s.entries {
		if expiresAt < now {
			delete(s.entries, k)
		}
	}
}

// GC removes every entry whose expiry is before now, returning the
// number of entries removed.
func (s *NonceStore) GC(now int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.entries)
	s.evictExpiredLocked(now)
	return before - len(s.entries)
}

// Stats reports the store's current occupancy.
type Stats struct {
	Tracked  int
	Capacity int
}

// Stats returns the store's current occupancy and fixed capacity.
func (s *NonceStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Tracked: len(s.entries), Capacity: MaxTrackedNonces}
}

// RunGC runs GC every interval, using clock for "now", until ctx is
// canceled. It is meant to be launched with `go store.RunGC(...)` by a
// long-lived host process; NonceStore itself never starts a goroutine.
func (s *NonceStore) RunGC(ctx context.Context, clockNow func() int64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.GC(clockNow())
			if removed > 0 {
				log.Debugf("nonce store GC removed %d expired entries", removed)
			}
		}
	}
}
