// Package ledger implements PayKit's atomic spending-limit engine: a
// per-peer, per-period cap enforced through a reserve/commit/refund
// discipline so concurrent auto-pay attempts can never together exceed
// the configured limit (spec §4.5).
package ledger

import (
	"sync"

	"github.com/paykitproto/paykit-core/amount"
	"github.com/paykitproto/paykit-core/types"
)

// ReservationId is the opaque handle reserve returns. Callers must pass
// it unmodified to commit or refund; its fields have no meaning outside
// this package.
type ReservationId struct {
	key        peerMethodKey
	generation uint64
	amount     amount.Amount
}

type peerMethodKey struct {
	peer   types.PublicKey
	method types.MethodId // empty string means "all methods"
}

func keyFor(peer types.PublicKey, method *types.MethodId) peerMethodKey {
	if method == nil {
		return peerMethodKey{peer: peer}
	}
	return peerMethodKey{peer: peer, method: *method}
}

type peerState struct {
	mu         sync.Mutex
	limit      types.PeerSpendingLimit
	generation uint64
}

// Ledger is the process-wide SpendingLedger. It is safe for concurrent
// use by multiple InteractiveProtocol/SubscriptionController sessions.
type Ledger struct {
	mu     sync.Mutex
	states map[peerMethodKey]*peerState
}

// New returns an empty Ledger. No peer has spending permitted until
// Configure is called for it.
func New() *Ledger {
	return &Ledger{states: make(map[peerMethodKey]*peerState)}
}

// Configure installs or replaces the spending limit for a (peer,
// method) pair. method == nil configures the catch-all limit applied
// when no method-specific limit exists.
func (l *Ledger) Configure(limit types.PeerSpendingLimit) error {
	if err := limit.Period.Validate(); err != nil {
		return err
	}
	key := keyFor(limit.Peer, limit.Method)

	l.mu.Lock()
	st, ok := l.states[key]
	if !ok {
		st = &peerState{}
		l.states[key] = st
	}
	l.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	st.limit = limit
	return nil
}

func (l *Ledger) lookup(peer types.PublicKey, method *types.MethodId) *peerState {
	key := keyFor(peer, method)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[key]
}

// advanceWindow rolls the period window forward while the caller holds
// st.mu, per spec §3's PeerSpendingLimit lifecycle: the window only
// advances while reserved == 0, and committed resets to 0 on each
// advance. If reserved != 0 the advance is deferred until it drains.
func advanceWindow(st *peerState, now int64) {
	duration := int64(st.limit.Period.Duration().Seconds())
	if duration <= 0 {
		return
	}
	for now >= st.limit.PeriodStart+duration {
		if !st.limit.Reserved.IsZero() {
			return
		}
		st.limit.PeriodStart += duration
		st.limit.Committed = amount.Zero
		st.generation++
	}
}

// Reserve advances the period window if eligible, then attempts to
// reserve amt against the (peer, method) cap. On success it returns a
// ReservationId bound to the current window generation.
func (l *Ledger) Reserve(peer types.PublicKey, method *types.MethodId, amt amount.Amount, now int64) (ReservationId, error) {
	if !amt.IsPositive() {
		return ReservationId{}, &Error{Kind: ErrAmountNonPositive}
	}

	key := keyFor(peer, method)
	st := l.lookup(peer, method)
	if st == nil && method != nil {
		key = keyFor(peer, nil)
		st = l.lookup(peer, nil)
	}
	if st == nil {
		return ReservationId{}, &Error{Kind: ErrDisabled}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	advanceWindow(st, now)

	tentative, err := st.limit.Reserved.CheckedAdd(amt)
	if err != nil {
		return ReservationId{}, &Error{Kind: ErrOverCap, Reason: err.Error()}
	}
	total, err := st.limit.Committed.CheckedAdd(tentative)
	if err != nil {
		return ReservationId{}, &Error{Kind: ErrOverCap, Reason: err.Error()}
	}
	if total.Compare(st.limit.Cap) == amount.Greater {
		return ReservationId{}, &Error{Kind: ErrOverCap}
	}

	st.limit.Reserved = tentative
	return ReservationId{
		key:        key,
		generation: st.generation,
		amount:     amt,
	}, nil
}

// Commit moves a reservation's amount from reserved to committed. It
// fails with ErrStaleReservation if the period window advanced since
// Reserve was called.
func (l *Ledger) Commit(id ReservationId) error {
	l.mu.Lock()
	st, ok := l.states[id.key]
	l.mu.Unlock()
	if !ok {
		return &Error{Kind: ErrStaleReservation}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.generation != id.generation {
		return &Error{Kind: ErrStaleReservation}
	}

	reserved, err := st.limit.Reserved.CheckedSub(id.amount)
	if err != nil {
		return &Error{Kind: ErrOverflow, Reason: err.Error()}
	}
	committed, err := st.limit.Committed.CheckedAdd(id.amount)
	if err != nil {
		return &Error{Kind: ErrOverflow, Reason: err.Error()}
	}
	st.limit.Reserved = reserved
	st.limit.Committed = committed
	return nil
}

// Refund releases a reservation's amount back out of reserved without
// moving it to committed. It fails with ErrStaleReservation under the
// same condition as Commit.
func (l *Ledger) Refund(id ReservationId) error {
	l.mu.Lock()
	st, ok := l.states[id.key]
	l.mu.Unlock()
	if !ok {
		return &Error{Kind: ErrStaleReservation}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.generation != id.generation {
		return &Error{Kind: ErrStaleReservation}
	}

	reserved, err := st.limit.Reserved.CheckedSub(id.amount)
	if err != nil {
		return &Error{Kind: ErrOverflow, Reason: err.Error()}
	}
	st.limit.Reserved = reserved
	return nil
}

// Inspect returns a read-only snapshot of the (peer, method) limit for
// diagnostics. The second return value is false if no limit is
// configured.
func (l *Ledger) Inspect(peer types.PublicKey, method *types.MethodId) (types.Snapshot, bool) {
	st := l.lookup(peer, method)
	if st == nil {
		return types.Snapshot{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	duration := int64(st.limit.Period.Duration().Seconds())
	return types.Snapshot{
		Cap:         st.limit.Cap,
		Committed:   st.limit.Committed,
		Reserved:    st.limit.Reserved,
		PeriodStart: st.limit.PeriodStart,
		PeriodEnd:   st.limit.PeriodStart + duration,
	}, true
}
