package types

import (
	"bytes"
	"io"

	"github.com/google/uuid"
	"github.com/paykitproto/paykit-core/amount"
	"github.com/paykitproto/paykit-core/codec"
)

// PaymentRequest is the opening artifact of a one-shot payment
// negotiation (spec §3). It may be created by either party; From
// identifies the requester.
type PaymentRequest struct {
	ID          uuid.UUID
	From        PublicKey
	To          PublicKey
	Method      MethodId
	Amount      amount.Amount
	Currency    string
	Description string
	CreatedAt   int64
	ExpiresAt   int64
	Status      RequestStatus
	Envelope    Envelope
}

// NewPayerRequest builds a PaymentRequest whose From is the payer,
// unsigned (the caller signs it via the sig package before sending it).
func NewPayerRequest(id uuid.UUID, payer, payee PublicKey, method MethodId,
	amt amount.Amount, currency, description string, createdAt, expiresAt int64) PaymentRequest {

	return PaymentRequest{
		ID:          id,
		From:        payer,
		To:          payee,
		Method:      method,
		Amount:      amt,
		Currency:    currency,
		Description: description,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
		Status:      RequestPending,
	}
}

// NewPayeeRequest builds a PaymentRequest whose From is the payee (a
// payee-initiated request for payment), otherwise identical in shape to
// NewPayerRequest.
func NewPayeeRequest(id uuid.UUID, payee, payer PublicKey, method MethodId,
	amt amount.Amount, currency, description string, createdAt, expiresAt int64) PaymentRequest {

	return PaymentRequest{
		ID:          id,
		From:        payee,
		To:          payer,
		Method:      method,
		Amount:      amt,
		Currency:    currency,
		Description: description,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
		Status:      RequestPending,
	}
}

// writeContent writes every field that participates in the signed
// payload, in fixed declaration order, excluding the mutable Status
// field and the envelope's own signature bytes (spec §4.2: field order
// fixed by declaration; spec §4.3: signed content excludes the
// signature itself).
func (p PaymentRequest) writeContent(c *codec.Codec, w io.Writer) error {
	idBytes, err := p.ID.MarshalBinary()
	if err != nil {
		return err
	}
	if err := codec.WriteRaw(w, idBytes); err != nil {
		return err
	}
	if err := p.From.encode(w); err != nil {
		return err
	}
	if err := p.To.encode(w); err != nil {
		return err
	}
	if err := c.WriteString(w, string(p.Method)); err != nil {
		return err
	}
	if err := c.WriteAmount(w, p.Amount); err != nil {
		return err
	}
	if err := c.WriteString(w, p.Currency); err != nil {
		return err
	}
	if err := c.WriteString(w, p.Description); err != nil {
		return err
	}
	if err := codec.WriteInt64(w, p.CreatedAt); err != nil {
		return err
	}
	return codec.WriteInt64(w, p.ExpiresAt)
}

// SigningBytes returns the canonical bytes covered by the envelope's
// signature: the request's content plus the envelope's nonce, timestamp,
// expires_at and signer fields (spec §4.3). p.Envelope must already
// carry those four fields; its Sig is ignored.
func (p PaymentRequest) SigningBytes(c *codec.Codec) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.writeContent(c, &buf); err != nil {
		return nil, err
	}
	if err := p.Envelope.encodeSigningPart(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the full canonical encoding of p, including its status
// and complete envelope (signature included).
func (p PaymentRequest) Encode(c *codec.Codec, w io.Writer) error {
	if err := p.writeContent(c, w); err != nil {
		return err
	}
	if err := codec.WriteUint32(w, uint32(p.Status)); err != nil {
		return err
	}
	return p.Envelope.encode(w)
}

// DecodePaymentRequest reads a PaymentRequest previously written by Encode.
func DecodePaymentRequest(c *codec.Codec, r io.Reader) (PaymentRequest, error) {
	var p PaymentRequest
	var idBytes [16]byte
	if err := codec.ReadRaw(r, idBytes[:]); err != nil {
		return p, err
	}
	id, err := uuid.FromBytes(idBytes[:])
	if err != nil {
		return p, &codec.CodecError{Op: "DecodePaymentRequest", Reason: err.Error()}
	}
	p.ID = id

	if p.From, err = decodePublicKey(r); err != nil {
		return p, err
	}
	if p.To, err = decodePublicKey(r); err != nil {
		return p, err
	}
	method, err := c.ReadString(r)
	if err != nil {
		return p, err
	}
	p.Method = MethodId(method)
	if p.Amount, err = c.ReadAmount(r); err != nil {
		return p, err
	}
	if p.Currency, err = c.ReadString(r); err != nil {
		return p, err
	}
	if p.Description, err = c.ReadString(r); err != nil {
		return p, err
	}
	if p.CreatedAt, err = codec.ReadInt64(r); err != nil {
		return p, err
	}
	if p.ExpiresAt, err = codec.ReadInt64(r); err != nil {
		return p, err
	}
	status, err := codec.ReadUint32(r)
	if err != nil {
		return p, err
	}
	p.Status = RequestStatus(status)
	if p.Envelope, err = decodeEnvelope(r); err != nil {
		return p, err
	}
	return p, nil
}
