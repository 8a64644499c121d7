package receipt

import (
	"crypto/ed25519"
	"testing"

	"github.com/google/uuid"
	"github.com/paykitproto/paykit-core/amount"
	"github.com/paykitproto/paykit-core/codec"
	"github.com/paykitproto/paykit-core/external"
	"github.com/paykitproto/paykit-core/sig"
	"github.com/paykitproto/paykit-core/types"
	"github.com/stretchr/testify/require"
)

func samplePK(b byte) types.PublicKey {
	var pk types.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func newConfirmedReceipt(t *testing.T, engine *sig.Engine, payeePub types.PublicKey, payeeSK ed25519.PrivateKey, payerPub types.PublicKey) types.Receipt {
	t.Helper()
	c := codec.New()
	r := types.Receipt{
		ID:       uuid.New(),
		Payer:    payerPub,
		Payee:    payeePub,
		Method:   types.MethodId("ln-btc"),
		Amount:   amount.MustParse("1000"),
		Currency: "SAT",
	}
	env, err := engine.NewEnvelope(payeePub, 300)
	require.NoError(t, err)
	r.Envelope = &env
	content, err := r.SigningBytes(c)
	require.NoError(t, err)
	r.Envelope.Sig = engine.Sign(sig.RoleReceipt, content, payeeSK)
	return r
}

func TestPutGetRoundTrip(t *testing.T) {
	payeePub, payeeSK, _ := ed25519.GenerateKey(nil)
	var payee types.PublicKey
	copy(payee[:], payeePub)
	payer := samplePK(1)

	engine := sig.NewEngine(external.NewDeterministicRng(1), external.NewFixedClock(1000))
	mgr := NewManager(external.NewMemStorage(), engine, sig.NewNonceStore())

	r := newConfirmedReceipt(t, engine, payee, payeeSK, payer)
	require.NoError(t, mgr.Put(r))

	got, err := mgr.Get(r.ID)
	require.NoError(t, err)
	require.Equal(t, r.ID, got.ID)
	require.True(t, got.Amount.Equal(r.Amount))
}

func TestPutRejectsUnsignedReceipt(t *testing.T) {
	engine := sig.NewEngine(external.NewDeterministicRng(1), external.NewFixedClock(1000))
	mgr := NewManager(external.NewMemStorage(), engine, sig.NewNonceStore())

	r := types.Receipt{ID: uuid.New(), Payer: samplePK(1), Payee: samplePK(2)}
	err := mgr.Put(r)
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, ErrUnsigned, rerr.Kind)
}

func TestPutRejectsWrongSigner(t *testing.T) {
	payeePub, _, _ := ed25519.GenerateKey(nil)
	wrongPub, wrongSK, _ := ed25519.GenerateKey(nil)
	var payee, wrong types.PublicKey
	copy(payee[:], payeePub)
	copy(wrong[:], wrongPub)

	engine := sig.NewEngine(external.NewDeterministicRng(1), external.NewFixedClock(1000))
	mgr := NewManager(external.NewMemStorage(), engine, sig.NewNonceStore())

	r := newConfirmedReceipt(t, engine, wrong, wrongSK, samplePK(1))
	r.Payee = payee // declared payee no longer matches the actual signer
	err := mgr.Put(r)
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, ErrWrongSigner, rerr.Kind)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	engine := sig.NewEngine(external.NewDeterministicRng(1), external.NewFixedClock(1000))
	mgr := NewManager(external.NewMemStorage(), engine, sig.NewNonceStore())

	_, err := mgr.Get(uuid.New())
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, ErrNotFound, rerr.Kind)
}

func TestListByPeerFindsBothRoles(t *testing.T) {
	payeePub, payeeSK, _ := ed25519.GenerateKey(nil)
	var payee types.PublicKey
	copy(payee[:], payeePub)
	payer := samplePK(9)

	engine := sig.NewEngine(external.NewDeterministicRng(1), external.NewFixedClock(1000))
	mgr := NewManager(external.NewMemStorage(), engine, sig.NewNonceStore())

	r1 := newConfirmedReceipt(t, engine, payee, payeeSK, payer)
	require.NoError(t, mgr.Put(r1))

	fromPayer, err := mgr.ListByPeer(payer)
	require.NoError(t, err)
	require.Len(t, fromPayer, 1)

	fromPayee, err := mgr.ListByPeer(payee)
	require.NoError(t, err)
	require.Len(t, fromPayee, 1)
}

func TestMarkPaidSetsArtifact(t *testing.T) {
	payeePub, payeeSK, _ := ed25519.GenerateKey(nil)
	var payee types.PublicKey
	copy(payee[:], payeePub)
	payer := samplePK(1)

	engine := sig.NewEngine(external.NewDeterministicRng(1), external.NewFixedClock(1000))
	mgr := NewManager(external.NewMemStorage(), engine, sig.NewNonceStore())

	r := newConfirmedReceipt(t, engine, payee, payeeSK, payer)
	require.NoError(t, mgr.Put(r))

	require.NoError(t, mgr.MarkPaid(r.ID, []byte("settled-ref")))
	got, err := mgr.Get(r.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("settled-ref"), got.PaymentArtifact)
}
