// Package protocol implements InteractiveProtocol: the four-message wire
// exchange that negotiates a receipt between payer and payee over a
// FramedChannel (spec §4.7), plus the session state machine that drives
// it. Wire framing follows the teacher's own lnwire package: a
// one-byte (here; lnwire uses two) discriminant followed by a
// type-specific body, with no length prefix or checksum since the
// transport is already a framed, authenticated channel.
package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/paykitproto/paykit-core/codec"
	"github.com/paykitproto/paykit-core/types"
)

// Kind is the one-byte wire discriminant for a protocol message (spec
// §4.7).
type Kind uint8

const (
	KindOfferPrivateEndpoint Kind = 0x01
	KindRequestReceipt       Kind = 0x02
	KindConfirmReceipt       Kind = 0x03
	KindAbort                Kind = 0x7F
)

func (k Kind) String() string {
	switch k {
	case KindOfferPrivateEndpoint:
		return "OfferPrivateEndpoint"
	case KindRequestReceipt:
		return "RequestReceipt"
	case KindConfirmReceipt:
		return "ConfirmReceipt"
	case KindAbort:
		return "Abort"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(k))
	}
}

// UnknownKindError is returned by ReadMessage for a discriminant byte
// this version of the protocol does not recognize.
type UnknownKindError struct {
	Kind uint8
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("protocol: unknown message kind 0x%02x", e.Kind)
}

// Message is a single InteractiveProtocol wire message.
type Message interface {
	Kind() Kind
	encodeBody(c *codec.Codec, w io.Writer) error
}

// OfferPrivateEndpoint advertises an out-of-band endpoint for a payment
// method (spec §4.7). Either party may send it.
type OfferPrivateEndpoint struct {
	Method   types.MethodId
	Endpoint []byte
}

func (OfferPrivateEndpoint) Kind() Kind { return KindOfferPrivateEndpoint }

func (m OfferPrivateEndpoint) encodeBody(c *codec.Codec, w io.Writer) error {
	if err := c.WriteString(w, string(m.Method)); err != nil {
		return err
	}
	return c.WriteBytes(w, m.Endpoint)
}

func decodeOfferPrivateEndpoint(c *codec.Codec, r io.Reader) (OfferPrivateEndpoint, error) {
	var m OfferPrivateEndpoint
	method, err := c.ReadString(r)
	if err != nil {
		return m, err
	}
	m.Method = types.MethodId(method)
	if m.Endpoint, err = c.ReadBytes(r); err != nil {
		return m, err
	}
	return m, nil
}

// RequestReceiptMsg carries a provisional receipt from payer to payee
// (spec §4.7). Its envelope is optional.
type RequestReceiptMsg struct {
	Receipt types.Receipt
}

func (RequestReceiptMsg) Kind() Kind { return KindRequestReceipt }

func (m RequestReceiptMsg) encodeBody(c *codec.Codec, w io.Writer) error {
	return m.Receipt.Encode(c, w)
}

func decodeRequestReceipt(c *codec.Codec, r io.Reader) (RequestReceiptMsg, error) {
	rec, err := types.DecodeReceipt(c, r)
	return RequestReceiptMsg{Receipt: rec}, err
}

// ConfirmReceiptMsg carries a confirmed receipt from payee to payer
// (spec §4.7). Its envelope is required; callers must validate this
// before trusting a decoded ConfirmReceiptMsg (see validateConfirm).
type ConfirmReceiptMsg struct {
	Receipt types.Receipt
}

func (ConfirmReceiptMsg) Kind() Kind { return KindConfirmReceipt }

func (m ConfirmReceiptMsg) encodeBody(c *codec.Codec, w io.Writer) error {
	return m.Receipt.Encode(c, w)
}

func decodeConfirmReceipt(c *codec.Codec, r io.Reader) (ConfirmReceiptMsg, error) {
	rec, err := types.DecodeReceipt(c, r)
	return ConfirmReceiptMsg{Receipt: rec}, err
}

// AbortReason is the closed enumeration of reasons a session may abort
// (spec §4.7 leaves these implicit; fixed here as a wire enum, the way
// lnwire fixes its own MessageType constants).
type AbortReason uint16

const (
	AbortUnspecified       AbortReason = 0
	AbortTimeout           AbortReason = 1
	AbortCancelled         AbortReason = 2
	AbortProtocolViolation AbortReason = 3
	AbortGeneratorFailure  AbortReason = 4
	AbortPaymentDeclined   AbortReason = 5
	AbortValidationFailed  AbortReason = 6
)

func (r AbortReason) String() string {
	switch r {
	case AbortTimeout:
		return "Timeout"
	case AbortCancelled:
		return "Cancelled"
	case AbortProtocolViolation:
		return "ProtocolViolation"
	case AbortGeneratorFailure:
		return "GeneratorFailure"
	case AbortPaymentDeclined:
		return "PaymentDeclined"
	case AbortValidationFailed:
		return "ValidationFailed"
	default:
		return "Unspecified"
	}
}

// AbortMsg tells the peer the session is terminating and why (spec
// §4.7).
type AbortMsg struct {
	Reason AbortReason
}

func (AbortMsg) Kind() Kind { return KindAbort }

func (m AbortMsg) encodeBody(c *codec.Codec, w io.Writer) error {
	return codec.WriteUint16(w, uint16(m.Reason))
}

func decodeAbort(r io.Reader) (AbortMsg, error) {
	reason, err := codec.ReadUint16(r)
	return AbortMsg{Reason: AbortReason(reason)}, err
}

// WriteMessage encodes msg into a single frame suitable for
// FramedChannel.Send.
func WriteMessage(c *codec.Codec, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.WriteUint8(&buf, uint8(msg.Kind())); err != nil {
		return nil, err
	}
	if err := msg.encodeBody(c, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadMessage decodes a single frame previously produced by
// FramedChannel.Recv.
func ReadMessage(c *codec.Codec, frame []byte) (Message, error) {
	r := bytes.NewReader(frame)
	kindByte, err := codec.ReadUint8(r)
	if err != nil {
		return nil, err
	}
	switch Kind(kindByte) {
	case KindOfferPrivateEndpoint:
		return decodeOfferPrivateEndpoint(c, r)
	case KindRequestReceipt:
		return decodeRequestReceipt(c, r)
	case KindConfirmReceipt:
		return decodeConfirmReceipt(c, r)
	case KindAbort:
		return decodeAbort(r)
	default:
		return nil, &UnknownKindError{Kind: kindByte}
	}
}
