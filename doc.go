// Package paykit is the root of PayKit Core: a peer-to-peer payment
// coordination protocol covering a two-party interactive flow for
// negotiating a single payment or a recurring subscription, with
// cryptographically signed artifacts, replay protection, and atomic
// spending-limit enforcement.
//
// The core is split into focused subpackages, one per component:
//
//	amount        exact fixed-precision decimal money values
//	codec         deterministic canonical byte encoding
//	sig           signature envelopes, domain separation, nonce store
//	ledger        per-peer spending limits with reserve/commit/refund
//	receipt       receipt lifecycle and persistence
//	protocol      the interactive message state machine
//	subscription  recurring agreements and auto-pay scheduling
//	external      interfaces the core consumes from its host, plus
//	              reference implementations of each
//
// None of these packages import the root package; it exists only to
// hold this overview.
package paykit
