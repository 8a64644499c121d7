// Package sig implements PayKit's deterministic signature system: a
// domain-separated Ed25519 scheme over BLAKE2b-512 digests, plus the
// bounded, concurrent-safe nonce store used to reject replays (spec
// §4.3).
package sig

import (
	"crypto/ed25519"

	"github.com/paykitproto/paykit-core/external"
	"github.com/paykitproto/paykit-core/types"
	"golang.org/x/crypto/blake2b"
)

// DomainTag is folded into every digest this package computes, binding
// signatures to this protocol version and preventing cross-protocol
// signature reuse.
const DomainTag = "PAYKIT-PROTOCOL-V2"

// RoleTag further separates signatures by the structure they cover, so
// a signature produced for one kind of structure is never mistakable
// for another even if their canonical bytes happened to collide.
type RoleTag string

const (
	RoleRequest               RoleTag = "REQUEST"
	RoleReceipt               RoleTag = "RECEIPT"
	RoleSubscription          RoleTag = "SUBSCRIPTION"
	RoleSubscriberCountersign RoleTag = "SUBSCRIBER-COUNTERSIGN"
)

// DefaultMaxSigTTL is the default ceiling on envelope.ExpiresAt -
// envelope.Timestamp (spec §4.2).
const DefaultMaxSigTTL = 300

// DefaultClockSkew is the default tolerance for envelope.Timestamp
// being slightly ahead of the verifier's clock (spec §4.3).
const DefaultClockSkew = 30

// Engine signs and verifies envelopes for a single process. It is safe
// for concurrent use; its only mutable state lives in the NonceStore
// passed to Verify, not in the Engine itself.
type Engine struct {
	rng       external.Rng
	clock     external.Clock
	maxTTL    int64
	clockSkew int64
}

// NewEngine returns an Engine using the default TTL ceiling and clock
// skew tolerance.
func NewEngine(rng external.Rng, clock external.Clock) *Engine {
	return &Engine{rng: rng, clock: clock, maxTTL: DefaultMaxSigTTL, clockSkew: DefaultClockSkew}
}

// NewEngineWithLimits returns an Engine with explicit TTL ceiling and
// clock skew tolerance, for deployments that need to tighten them.
func NewEngineWithLimits(rng external.Rng, clock external.Clock, maxTTL, clockSkew int64) *Engine {
	return &Engine{rng: rng, clock: clock, maxTTL: maxTTL, clockSkew: clockSkew}
}

// NewEnvelope draws a fresh nonce and stamps the current time, producing
// an envelope with every field but Sig populated. The caller assigns
// this onto the structure being signed, computes that structure's
// SigningBytes, and passes the result to Sign.
func (e *Engine) NewEnvelope(signer types.PublicKey, ttlSecs int64) (types.Envelope, error) {
	if ttlSecs <= 0 || ttlSecs > e.maxTTL {
		return types.Envelope{}, &Error{Kind: ErrUnsupported, Reason: "ttl_secs out of range"}
	}
	now := e.clock.NowSecs()
	var nonce types.Nonce
	e.rng.Fill(nonce[:])
	return types.Envelope{
		Nonce:     nonce,
		Timestamp: now,
		ExpiresAt: now + ttlSecs,
		Signer:    signer,
	}, nil
}

// Sign produces the 64-byte Ed25519 signature over
// BLAKE2b-512(DomainTag || role || content), where content is the
// structure's SigningBytes output (already covering the envelope's
// nonce, timestamp, expires_at and signer).
func (e *Engine) Sign(role RoleTag, content []byte, signerSK ed25519.PrivateKey) [types.SignatureSize]byte {
	digest := digestFor(role, content)
	raw := ed25519.Sign(signerSK, digest[:])
	var out [types.SignatureSize]byte
	copy(out[:], raw)
	return out
}

// Verify checks an envelope against content (the structure's
// SigningBytes output) in the order the spec fixes: time bounds, then
// the Ed25519 signature, then replay. On success the nonce is recorded
// in nonceStore so a second Verify with the same (signer, nonce) fails
// with ErrReplayed.
func (e *Engine) Verify(role RoleTag, content []byte, env types.Envelope, nonceStore *NonceStore) error {
	now := e.clock.NowSecs()
	if now > env.ExpiresAt {
		return &Error{Kind: ErrExpired}
	}
	if now < env.Timestamp-e.clockSkew {
		return &Error{Kind: ErrClockSkew}
	}

	digest := digestFor(role, content)
	if !ed25519.Verify(ed25519.PublicKey(env.Signer[:]), digest[:], env.Sig[:]) {
		return &Error{Kind: ErrBadSignature}
	}

	ok, err := nonceStore.CheckAndMark(env.Signer, env.Nonce, env.ExpiresAt, now)
	if err != nil {
		return err
	}
	if !ok {
		return &Error{Kind: ErrReplayed}
	}
	return nil
}

func digestFor(role RoleTag, content []byte) [blake2b.Size]byte {
	h, _ := blake2b.New512(nil)
	h.Write([]byte(DomainTag))
	h.Write([]byte(role))
	h.Write(content)
	var out [blake2b.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}
