package types

import (
	"io"

	"github.com/google/uuid"
	"github.com/paykitproto/paykit-core/amount"
	"github.com/paykitproto/paykit-core/codec"
)

// AutoPayRule enforces a ceiling on each auto-triggered payment under a
// subscription (spec §3).
type AutoPayRule struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	MaxPerPayment  amount.Amount
	Enabled        bool
}

// Encode writes the canonical encoding of r.
func (r AutoPayRule) Encode(c *codec.Codec, w io.Writer) error {
	idBytes, err := r.ID.MarshalBinary()
	if err != nil {
		return err
	}
	if err := codec.WriteRaw(w, idBytes); err != nil {
		return err
	}
	subBytes, err := r.SubscriptionID.MarshalBinary()
	if err != nil {
		return err
	}
	if err := codec.WriteRaw(w, subBytes); err != nil {
		return err
	}
	if err := c.WriteAmount(w, r.MaxPerPayment); err != nil {
		return err
	}
	return codec.WriteBool(w, r.Enabled)
}

// DecodeAutoPayRule reads an AutoPayRule previously written by Encode.
func DecodeAutoPayRule(c *codec.Codec, r io.Reader) (AutoPayRule, error) {
	var rule AutoPayRule
	var idBytes, subBytes [16]byte
	if err := codec.ReadRaw(r, idBytes[:]); err != nil {
		return rule, err
	}
	id, err := uuid.FromBytes(idBytes[:])
	if err != nil {
		return rule, &codec.CodecError{Op: "DecodeAutoPayRule", Reason: err.Error()}
	}
	rule.ID = id

	if err := codec.ReadRaw(r, subBytes[:]); err != nil {
		return rule, err
	}
	subID, err := uuid.FromBytes(subBytes[:])
	if err != nil {
		return rule, &codec.CodecError{Op: "DecodeAutoPayRule", Reason: err.Error()}
	}
	rule.SubscriptionID = subID

	if rule.MaxPerPayment, err = c.ReadAmount(r); err != nil {
		return rule, err
	}
	if rule.Enabled, err = codec.ReadBool(r); err != nil {
		return rule, err
	}
	return rule, nil
}

// Permits reports whether amt is within the rule's per-payment ceiling
// and the rule is enabled.
func (r AutoPayRule) Permits(amt amount.Amount) bool {
	if !r.Enabled {
		return false
	}
	return amt.Compare(r.MaxPerPayment) != amount.Greater
}
