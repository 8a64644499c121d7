package types

import (
	"io"

	"github.com/paykitproto/paykit-core/codec"
)

// Envelope is the {nonce, timestamp, expires_at, signer, sig} record
// attached to every signed structure (spec §3). Timestamp and ExpiresAt
// are seconds since the Unix epoch.
type Envelope struct {
	Nonce     Nonce
	Timestamp int64
	ExpiresAt int64
	Signer    PublicKey
	Sig       [SignatureSize]byte
}

// encodeSigningPart writes the fields that are folded into the signed
// hash input alongside the containing structure's own content (spec
// §4.3): nonce, timestamp, expires_at, and signer. The signature bytes
// themselves are deliberately excluded, since they cannot cover their
// own value.
func (e Envelope) encodeSigningPart(w io.Writer) error {
	if err := e.Nonce.encode(w); err != nil {
		return err
	}
	if err := codec.WriteInt64(w, e.Timestamp); err != nil {
		return err
	}
	if err := codec.WriteInt64(w, e.ExpiresAt); err != nil {
		return err
	}
	return e.Signer.encode(w)
}

// encode writes the full envelope, including the signature, as it
// appears inside a persisted or wire-encoded structure.
func (e Envelope) encode(w io.Writer) error {
	if err := e.encodeSigningPart(w); err != nil {
		return err
	}
	return codec.WriteRaw(w, e.Sig[:])
}

func decodeEnvelope(r io.Reader) (Envelope, error) {
	var e Envelope
	var err error
	if e.Nonce, err = decodeNonce(r); err != nil {
		return e, err
	}
	if e.Timestamp, err = codec.ReadInt64(r); err != nil {
		return e, err
	}
	if e.ExpiresAt, err = codec.ReadInt64(r); err != nil {
		return e, err
	}
	if e.Signer, err = decodePublicKey(r); err != nil {
		return e, err
	}
	if err := codec.ReadRaw(r, e.Sig[:]); err != nil {
		return e, err
	}
	return e, nil
}

// EncodeOptionalEnvelope writes the one-byte presence discriminant
// followed by the envelope when present is non-nil, per spec §4.2's
// optional-field rule. Used by RequestReceipt, whose provisional Receipt
// may or may not carry a signature.
func EncodeOptionalEnvelope(w io.Writer, e *Envelope) error {
	if e == nil {
		return codec.WriteOptionalPresence(w, false)
	}
	if err := codec.WriteOptionalPresence(w, true); err != nil {
		return err
	}
	return e.encode(w)
}

// DecodeOptionalEnvelope reads an envelope previously written by
// EncodeOptionalEnvelope.
func DecodeOptionalEnvelope(r io.Reader) (*Envelope, error) {
	present, err := codec.ReadOptionalPresence(r)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	e, err := decodeEnvelope(r)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
