package types

import (
	"bytes"
	"io"

	"github.com/google/uuid"
	"github.com/paykitproto/paykit-core/amount"
	"github.com/paykitproto/paykit-core/codec"
)

// Receipt represents either a provisional receipt (PaymentArtifact empty,
// Envelope possibly nil — the opening message from the payer) or a
// confirmed receipt (PaymentArtifact non-empty, Envelope present and
// signed by Payee). Spec §3 describes these as two shapes of the same
// record; PayKit Core keeps them as one struct to avoid duplicating the
// encode/decode logic, and exposes IsConfirmed to distinguish them.
type Receipt struct {
	ID              uuid.UUID
	Payer           PublicKey
	Payee           PublicKey
	Method          MethodId
	Amount          amount.Amount
	Currency        string
	CreatedAt       int64
	ConfirmedAt     int64
	PaymentArtifact []byte
	Metadata        map[string][]byte
	Envelope        *Envelope
}

// IsConfirmed reports whether r carries a non-empty payment artifact, the
// defining trait of a confirmed receipt (spec §3).
func (r Receipt) IsConfirmed() bool { return len(r.PaymentArtifact) > 0 }

func (r Receipt) writeContent(c *codec.Codec, w io.Writer) error {
	idBytes, err := r.ID.MarshalBinary()
	if err != nil {
		return err
	}
	if err := codec.WriteRaw(w, idBytes); err != nil {
		return err
	}
	if err := r.Payer.encode(w); err != nil {
		return err
	}
	if err := r.Payee.encode(w); err != nil {
		return err
	}
	if err := c.WriteString(w, string(r.Method)); err != nil {
		return err
	}
	if err := c.WriteAmount(w, r.Amount); err != nil {
		return err
	}
	if err := c.WriteString(w, r.Currency); err != nil {
		return err
	}
	if err := codec.WriteInt64(w, r.CreatedAt); err != nil {
		return err
	}
	if err := codec.WriteInt64(w, r.ConfirmedAt); err != nil {
		return err
	}
	if err := c.WriteBytes(w, r.PaymentArtifact); err != nil {
		return err
	}
	return c.WriteMap(w, r.Metadata)
}

// SigningBytes returns the canonical bytes covered by the payee's
// signature: the receipt's content plus the envelope's nonce, timestamp,
// expires_at and signer fields. r.Envelope must be non-nil and already
// populated (its Sig is ignored).
func (r Receipt) SigningBytes(c *codec.Codec) ([]byte, error) {
	if r.Envelope == nil {
		return nil, &FormatError{Field: "Receipt.Envelope", Reason: "required to compute signing bytes"}
	}
	var buf bytes.Buffer
	if err := r.writeContent(c, &buf); err != nil {
		return nil, err
	}
	if err := r.Envelope.encodeSigningPart(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the full canonical encoding of r, with an optional
// envelope (absent for an unsigned provisional receipt, per spec §4.7's
// RequestReceipt payload).
func (r Receipt) Encode(c *codec.Codec, w io.Writer) error {
	if err := r.writeContent(c, w); err != nil {
		return err
	}
	return EncodeOptionalEnvelope(w, r.Envelope)
}

// DecodeReceipt reads a Receipt previously written by Encode.
func DecodeReceipt(c *codec.Codec, r io.Reader) (Receipt, error) {
	var rec Receipt
	var idBytes [16]byte
	if err := codec.ReadRaw(r, idBytes[:]); err != nil {
		return rec, err
	}
	id, err := uuid.FromBytes(idBytes[:])
	if err != nil {
		return rec, &codec.CodecError{Op: "DecodeReceipt", Reason: err.Error()}
	}
	rec.ID = id

	if rec.Payer, err = decodePublicKey(r); err != nil {
		return rec, err
	}
	if rec.Payee, err = decodePublicKey(r); err != nil {
		return rec, err
	}
	method, err := c.ReadString(r)
	if err != nil {
		return rec, err
	}
	rec.Method = MethodId(method)
	if rec.Amount, err = c.ReadAmount(r); err != nil {
		return rec, err
	}
	if rec.Currency, err = c.ReadString(r); err != nil {
		return rec, err
	}
	if rec.CreatedAt, err = codec.ReadInt64(r); err != nil {
		return rec, err
	}
	if rec.ConfirmedAt, err = codec.ReadInt64(r); err != nil {
		return rec, err
	}
	if rec.PaymentArtifact, err = c.ReadBytes(r); err != nil {
		return rec, err
	}
	if rec.Metadata, err = c.ReadMap(r); err != nil {
		return rec, err
	}
	if rec.Envelope, err = DecodeOptionalEnvelope(r); err != nil {
		return rec, err
	}
	return rec, nil
}
