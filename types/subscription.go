package types

import (
	"bytes"
	"io"

	"github.com/google/uuid"
	"github.com/paykitproto/paykit-core/amount"
	"github.com/paykitproto/paykit-core/codec"
)

// Subscription is a recurring-payment agreement (spec §3). It is valid
// only once both parties have signed: Envelope carries the provider's
// signature, and SubscriberSig carries the subscriber's countersignature
// over the same content, with the role tag "SUBSCRIBER-COUNTERSIGN" folded into its
// hash input (spec §4.3) so the two signatures are never interchangeable.
type Subscription struct {
	ID              uuid.UUID
	Subscriber      PublicKey
	Provider        PublicKey
	Method          MethodId
	AmountPerPeriod amount.Amount
	Currency        string
	Period          Period
	StartAt         int64
	EndAt           *int64
	Status          SubscriptionStatus
	Envelope        Envelope
	SubscriberSig   *Envelope
}

func (s Subscription) writeContent(c *codec.Codec, w io.Writer) error {
	idBytes, err := s.ID.MarshalBinary()
	if err != nil {
		return err
	}
	if err := codec.WriteRaw(w, idBytes); err != nil {
		return err
	}
	if err := s.Subscriber.encode(w); err != nil {
		return err
	}
	if err := s.Provider.encode(w); err != nil {
		return err
	}
	if err := c.WriteString(w, string(s.Method)); err != nil {
		return err
	}
	if err := c.WriteAmount(w, s.AmountPerPeriod); err != nil {
		return err
	}
	if err := c.WriteString(w, s.Currency); err != nil {
		return err
	}
	if err := s.Period.encode(w); err != nil {
		return err
	}
	if err := codec.WriteInt64(w, s.StartAt); err != nil {
		return err
	}
	if err := codec.WriteOptionalPresence(w, s.EndAt != nil); err != nil {
		return err
	}
	if s.EndAt != nil {
		if err := codec.WriteInt64(w, *s.EndAt); err != nil {
			return err
		}
	}
	return nil
}

// SigningBytes returns the canonical bytes covered by the provider's
// signature (Envelope): the subscription's content plus Envelope's
// nonce, timestamp, expires_at and signer.
func (s Subscription) SigningBytes(c *codec.Codec) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.writeContent(c, &buf); err != nil {
		return nil, err
	}
	if err := s.Envelope.encodeSigningPart(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SubscriberSigningBytes returns the canonical bytes covered by the
// subscriber's countersignature: the same content as SigningBytes, but
// folded with sub (the subscriber's own envelope fields) rather than the
// provider's. The role tag used to hash this payload must be
// "SUBSCRIBER-COUNTERSIGN" (spec §4.3), which distinguishes it from the
// provider's signature over identical content.
func (s Subscription) SubscriberSigningBytes(c *codec.Codec, sub Envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.writeContent(c, &buf); err != nil {
		return nil, err
	}
	if err := sub.encodeSigningPart(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the full canonical encoding of s, including status, the
// provider's envelope, and the subscriber's countersignature if present.
func (s Subscription) Encode(c *codec.Codec, w io.Writer) error {
	if err := s.writeContent(c, w); err != nil {
		return err
	}
	if err := codec.WriteUint32(w, uint32(s.Status)); err != nil {
		return err
	}
	if err := s.Envelope.encode(w); err != nil {
		return err
	}
	return EncodeOptionalEnvelope(w, s.SubscriberSig)
}

// DecodeSubscription reads a Subscription previously written by Encode.
func DecodeSubscription(c *codec.Codec, r io.Reader) (Subscription, error) {
	var s Subscription
	var idBytes [16]byte
	if err := codec.ReadRaw(r, idBytes[:]); err != nil {
		return s, err
	}
	id, err := uuid.FromBytes(idBytes[:])
	if err != nil {
		return s, &codec.CodecError{Op: "DecodeSubscription", Reason: err.Error()}
	}
	s.ID = id

	if s.Subscriber, err = decodePublicKey(r); err != nil {
		return s, err
	}
	if s.Provider, err = decodePublicKey(r); err != nil {
		return s, err
	}
	method, err := c.ReadString(r)
	if err != nil {
		return s, err
	}
	s.Method = MethodId(method)
	if s.AmountPerPeriod, err = c.ReadAmount(r); err != nil {
		return s, err
	}
	if s.Currency, err = c.ReadString(r); err != nil {
		return s, err
	}
	if s.Period, err = decodePeriod(r); err != nil {
		return s, err
	}
	if s.StartAt, err = codec.ReadInt64(r); err != nil {
		return s, err
	}
	hasEnd, err := codec.ReadOptionalPresence(r)
	if err != nil {
		return s, err
	}
	if hasEnd {
		end, err := codec.ReadInt64(r)
		if err != nil {
			return s, err
		}
		s.EndAt = &end
	}
	status, err := codec.ReadUint32(r)
	if err != nil {
		return s, err
	}
	s.Status = SubscriptionStatus(status)
	if s.Envelope, err = decodeEnvelope(r); err != nil {
		return s, err
	}
	if s.SubscriberSig, err = DecodeOptionalEnvelope(r); err != nil {
		return s, err
	}
	return s, nil
}
