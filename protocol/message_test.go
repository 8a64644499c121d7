package protocol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/paykitproto/paykit-core/amount"
	"github.com/paykitproto/paykit-core/codec"
	"github.com/paykitproto/paykit-core/types"
	"github.com/stretchr/testify/require"
)

func TestOfferPrivateEndpointRoundTrip(t *testing.T) {
	c := codec.New()
	msg := OfferPrivateEndpoint{Method: types.MethodId("ln-btc"), Endpoint: []byte("node@host:9735")}
	frame, err := WriteMessage(c, msg)
	require.NoError(t, err)

	decoded, err := ReadMessage(c, frame)
	require.NoError(t, err)
	got, ok := decoded.(OfferPrivateEndpoint)
	require.True(t, ok)
	require.Equal(t, msg, got)
}

func TestRequestReceiptRoundTrip(t *testing.T) {
	c := codec.New()
	msg := RequestReceiptMsg{Receipt: types.Receipt{
		ID:       uuid.New(),
		Method:   types.MethodId("ln-btc"),
		Amount:   amount.MustParse("1000"),
		Currency: "SAT",
	}}
	frame, err := WriteMessage(c, msg)
	require.NoError(t, err)

	decoded, err := ReadMessage(c, frame)
	require.NoError(t, err)
	got, ok := decoded.(RequestReceiptMsg)
	require.True(t, ok)
	require.Equal(t, msg.Receipt.ID, got.Receipt.ID)
}

func TestAbortRoundTrip(t *testing.T) {
	c := codec.New()
	msg := AbortMsg{Reason: AbortTimeout}
	frame, err := WriteMessage(c, msg)
	require.NoError(t, err)

	decoded, err := ReadMessage(c, frame)
	require.NoError(t, err)
	got, ok := decoded.(AbortMsg)
	require.True(t, ok)
	require.Equal(t, AbortTimeout, got.Reason)
}

func TestReadMessageRejectsUnknownKind(t *testing.T) {
	_, err := ReadMessage(codec.New(), []byte{0xEE})
	require.Error(t, err)
	var unknown *UnknownKindError
	require.ErrorAs(t, err, &unknown)
}

func TestKindDiscriminantsMatchSpec(t *testing.T) {
	require.Equal(t, Kind(0x01), KindOfferPrivateEndpoint)
	require.Equal(t, Kind(0x02), KindRequestReceipt)
	require.Equal(t, Kind(0x03), KindConfirmReceipt)
	require.Equal(t, Kind(0x7F), KindAbort)
}
