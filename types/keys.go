// Package types holds the wire-level value types shared by every PayKit
// component: identity keys, nonces, signature envelopes, and the signed
// artifacts (payment requests, receipts, subscriptions) built from them.
// Each type owns its canonical encode/decode methods, built on the
// primitives in package codec, following the same per-message-type
// Encode/Decode split the teacher applies throughout lnwire (compare
// lnwire.FundingLocked.Encode/Decode in the retrieval pack).
package types

import (
	"encoding/hex"
	"io"

	"github.com/paykitproto/paykit-core/codec"
)

// PublicKeySize is the length in bytes of a PayKit identity key.
const PublicKeySize = 32

// SignatureSize is the length in bytes of an Ed25519 signature.
const SignatureSize = 64

// NonceSize is the length in bytes of a replay-protection nonce.
const NonceSize = 32

// PublicKey is a 32-byte identity key. It may be constructed from raw
// bytes or from a pre-validated textual encoding (hex); either way,
// equality and canonical encoding operate on the raw bytes (spec §3).
type PublicKey [PublicKeySize]byte

// PublicKeyFromBytes builds a PublicKey from exactly 32 raw bytes.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, &FormatError{Field: "PublicKey", Reason: "must be 32 bytes"}
	}
	copy(pk[:], b)
	return pk, nil
}

// PublicKeyFromHex parses a pre-validated textual (hex) encoding of a
// public key. It is a polymorphic alternative to PublicKeyFromBytes that
// carries the same 32 bytes (spec §3).
func PublicKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, &FormatError{Field: "PublicKey", Reason: err.Error()}
	}
	return PublicKeyFromBytes(b)
}

// Hex renders the key as a lowercase hex string.
func (k PublicKey) Hex() string { return hex.EncodeToString(k[:]) }

// Equal reports whether two keys carry the same raw bytes.
func (k PublicKey) Equal(other PublicKey) bool { return k == other }

// IsZero reports whether k is the all-zero key (never a valid identity).
func (k PublicKey) IsZero() bool { return k == PublicKey{} }

func (k PublicKey) encode(w io.Writer) error { return codec.WriteRaw(w, k[:]) }

func decodePublicKey(r io.Reader) (PublicKey, error) {
	var pk PublicKey
	if err := codec.ReadRaw(r, pk[:]); err != nil {
		return pk, err
	}
	return pk, nil
}

// Nonce is 32 random bytes drawn from a cryptographically secure Rng,
// one-shot per (signer, domain) per spec §3.
type Nonce [NonceSize]byte

func (n Nonce) encode(w io.Writer) error { return codec.WriteRaw(w, n[:]) }

func decodeNonce(r io.Reader) (Nonce, error) {
	var n Nonce
	if err := codec.ReadRaw(r, n[:]); err != nil {
		return n, err
	}
	return n, nil
}

// Hex renders the nonce as a lowercase hex string, useful for building
// Storage keys (spec §6, "nonces/<signer-hex>/<nonce-hex>").
func (n Nonce) Hex() string { return hex.EncodeToString(n[:]) }

// MethodId is an opaque, non-empty ASCII payment-method identifier
// compared bytewise (spec §3), e.g. "ln-btc" or "onchain-btc".
type MethodId string

// Valid reports whether m is non-empty and ASCII.
func (m MethodId) Valid() bool {
	if len(m) == 0 {
		return false
	}
	for i := 0; i < len(m); i++ {
		if m[i] > 127 {
			return false
		}
	}
	return true
}

func (m MethodId) Equal(other MethodId) bool { return m == other }

// FormatError reports a structurally invalid value supplied to one of
// this package's constructors (a malformed key, a zero-duration Period,
// and so on) — distinct from CodecError, which is reserved for malformed
// wire bytes.
type FormatError struct {
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	return "types: invalid " + e.Field + ": " + e.Reason
}
