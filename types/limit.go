package types

import (
	"github.com/paykitproto/paykit-core/amount"
)

// PeerSpendingLimit is a per-peer, per-period spending cap (spec §3).
// Method, when non-nil, scopes the cap to a single payment method;
// when nil the cap applies across all methods for that peer.
//
// Invariants (enforced by package ledger, not by this struct):
// Reserved >= 0, Committed >= 0, Reserved+Committed <= Cap at all times.
type PeerSpendingLimit struct {
	Peer        PublicKey
	Method      *MethodId
	Period      Period
	Cap         amount.Amount
	PeriodStart int64
	Reserved    amount.Amount
	Committed   amount.Amount
}

// Snapshot is the read-only view returned by SpendingLedger.Inspect.
type Snapshot struct {
	Cap         amount.Amount
	Committed   amount.Amount
	Reserved    amount.Amount
	PeriodStart int64
	PeriodEnd   int64
}
