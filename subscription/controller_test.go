package subscription

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/google/uuid"
	"github.com/paykitproto/paykit-core/amount"
	"github.com/paykitproto/paykit-core/codec"
	"github.com/paykitproto/paykit-core/external"
	"github.com/paykitproto/paykit-core/ledger"
	"github.com/paykitproto/paykit-core/protocol"
	"github.com/paykitproto/paykit-core/receipt"
	"github.com/paykitproto/paykit-core/sig"
	"github.com/paykitproto/paykit-core/types"
	"github.com/stretchr/testify/require"
)

func pkFromSeed(t *testing.T, seed byte) (types.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	seedBytes := make([]byte, ed25519.SeedSize)
	for i := range seedBytes {
		seedBytes[i] = seed
	}
	sk := ed25519.NewKeyFromSeed(seedBytes)
	pub := sk.Public().(ed25519.PublicKey)
	var pk types.PublicKey
	copy(pk[:], pub)
	return pk, sk
}

// autoGenerator produces a deterministic confirmed-receipt artifact for
// every RequestReceipt, so the payee side of each auto-pay session
// always succeeds.
type autoGenerator struct{ n int }

func (g *autoGenerator) Generate(provisional types.Receipt) (types.Receipt, error) {
	g.n++
	confirmed := provisional
	confirmed.PaymentArtifact = []byte("artifact")
	return confirmed, nil
}

// pairDialer runs a payee session on the opposite end of an in-memory
// channel pair for every Dial call, so the controller's payer-side
// session always has a live counterparty.
type pairDialer struct {
	cfg      protocol.Config
	payeePK  types.PublicKey
	payeeSK  ed25519.PrivateKey
	gen      *autoGenerator
}

func (d *pairDialer) Dial(ctx context.Context, provider types.PublicKey) (external.FramedChannel, error) {
	payerChan, payeeChan := external.MemChannelPair(4)
	go func() {
		protocol.NewSession(payeeChan, d.cfg).RunAsPayee(ctx, d.gen, d.payeePK, d.payeeSK)
	}()
	return payerChan, nil
}

// declineExecutor always reports a permanent decline, to exercise the
// Pause path (spec §4.8 step 6, scenario 4).
type declineExecutor struct{ reason string }

func (e *declineExecutor) Execute(r types.Receipt) (external.ExecutionOutcome, error) {
	return external.ExecutionOutcome{Kind: external.ExecutionDeclined, Reason: e.reason}, nil
}

// succeedExecutor always reports success.
type succeedExecutor struct{}

func (succeedExecutor) Execute(r types.Receipt) (external.ExecutionOutcome, error) {
	return external.ExecutionOutcome{Kind: external.ExecutionSucceeded, ArtifactRef: []byte("ref")}, nil
}

func newHarness(t *testing.T, executor external.PaymentExecutor) (*Controller, types.PublicKey, types.PublicKey, ed25519.PrivateKey, *ledger.Ledger) {
	t.Helper()
	subscriberPK, _ := pkFromSeed(t, 0x01)
	providerPK, providerSK := pkFromSeed(t, 0x02)

	clock := external.NewFixedClock(1_700_000_000)
	engine := sig.NewEngine(external.NewDeterministicRng(7), clock)
	nonces := sig.NewNonceStore()
	mgr := receipt.NewManager(external.NewMemStorage(), engine, nonces)
	sessionCfg := protocol.NewConfig(engine, nonces, mgr, clock, []types.MethodId{"ln-btc"})

	l := ledger.New()
	method := types.MethodId("ln-btc")
	require.NoError(t, l.Configure(types.PeerSpendingLimit{
		Peer:        providerPK,
		Method:      &method,
		Period:      types.Period{Unit: types.PeriodDay, Count: 1},
		Cap:         amount.MustParse("100000"),
		PeriodStart: 1_700_000_000,
	}))

	dialer := &pairDialer{cfg: sessionCfg, payeePK: providerPK, payeeSK: providerSK, gen: &autoGenerator{}}
	c := NewController(l, dialer, executor, sessionCfg, clock, DefaultMinorUnits)

	return c, subscriberPK, providerPK, providerSK, l
}

func activeSubscription(subscriber, provider types.PublicKey) types.Subscription {
	return types.Subscription{
		ID:              uuid.New(),
		Subscriber:      subscriber,
		Provider:        provider,
		Method:          types.MethodId("ln-btc"),
		AmountPerPeriod: amount.MustParse("2500"),
		Currency:        "SAT",
		Period:          types.Period{Unit: types.PeriodMonth, Count: 1},
		StartAt:         1_700_000_000,
		Status:          types.SubscriptionActive,
	}
}

func TestTickPaysDueSubscriptionAndAdvancesSchedule(t *testing.T) {
	c, subscriberPK, providerPK, _, l := newHarness(t, succeedExecutor{})
	sub := activeSubscription(subscriberPK, providerPK)

	rule := types.AutoPayRule{ID: uuid.New(), SubscriptionID: sub.ID, MaxPerPayment: amount.MustParse("5000"), Enabled: true}
	require.NoError(t, c.Register(sub, rule, 1_700_000_000))

	results := c.Tick(context.Background(), 1_700_000_000)
	require.Len(t, results, 1)
	require.Equal(t, TickPaid, results[0].Kind)
	require.NoError(t, results[0].Err)

	managed, ok := c.Get(sub.ID)
	require.True(t, ok)
	require.Equal(t, int64(1_700_000_000)+int64(sub.Period.Duration().Seconds()), managed.NextDueAt)

	snap, ok := l.Inspect(providerPK, &sub.Method)
	require.True(t, ok)
	require.True(t, snap.Reserved.IsZero())
	require.True(t, snap.Committed.Equal(amount.MustParse("2500")))
}

func TestTickNotYetDueIsSkipped(t *testing.T) {
	c, subscriberPK, providerPK, _, _ := newHarness(t, succeedExecutor{})
	sub := activeSubscription(subscriberPK, providerPK)
	rule := types.AutoPayRule{ID: uuid.New(), SubscriptionID: sub.ID, MaxPerPayment: amount.MustParse("5000"), Enabled: true}
	require.NoError(t, c.Register(sub, rule, 1_700_000_000+3600))

	results := c.Tick(context.Background(), 1_700_000_000)
	require.Empty(t, results)
}

func TestTickRefundsAndPausesOnDecline(t *testing.T) {
	c, subscriberPK, providerPK, _, l := newHarness(t, &declineExecutor{reason: "insufficient channel liquidity"})
	sub := activeSubscription(subscriberPK, providerPK)
	rule := types.AutoPayRule{ID: uuid.New(), SubscriptionID: sub.ID, MaxPerPayment: amount.MustParse("5000"), Enabled: true}
	require.NoError(t, c.Register(sub, rule, 1_700_000_000))

	results := c.Tick(context.Background(), 1_700_000_000)
	require.Len(t, results, 1)
	require.Equal(t, TickPaused, results[0].Kind)

	managed, ok := c.Get(sub.ID)
	require.True(t, ok)
	require.Equal(t, types.SubscriptionPaused, managed.Subscription.Status)
	require.Equal(t, "insufficient channel liquidity", managed.PauseReason)

	snap, ok := l.Inspect(providerPK, &sub.Method)
	require.True(t, ok)
	require.True(t, snap.Reserved.IsZero())
	require.True(t, snap.Committed.IsZero())
}

func TestTickSkipsDisabledRule(t *testing.T) {
	c, subscriberPK, providerPK, _, _ := newHarness(t, succeedExecutor{})
	sub := activeSubscription(subscriberPK, providerPK)
	rule := types.AutoPayRule{ID: uuid.New(), SubscriptionID: sub.ID, MaxPerPayment: amount.MustParse("5000"), Enabled: false}
	require.NoError(t, c.Register(sub, rule, 1_700_000_000))

	results := c.Tick(context.Background(), 1_700_000_000)
	require.Len(t, results, 1)
	require.Equal(t, TickSkippedDisabled, results[0].Kind)
}

func TestTickDeniedWhenOverCap(t *testing.T) {
	c, subscriberPK, providerPK, _, _ := newHarness(t, succeedExecutor{})
	sub := activeSubscription(subscriberPK, providerPK)
	sub.AmountPerPeriod = amount.MustParse("999999")
	rule := types.AutoPayRule{ID: uuid.New(), SubscriptionID: sub.ID, MaxPerPayment: amount.MustParse("999999"), Enabled: true}
	require.NoError(t, c.Register(sub, rule, 1_700_000_000))

	results := c.Tick(context.Background(), 1_700_000_000)
	require.Len(t, results, 1)
	require.Equal(t, TickDenied, results[0].Kind)

	managed, ok := c.Get(sub.ID)
	require.True(t, ok)
	require.Equal(t, int64(1_700_000_000), managed.NextDueAt)
}

func TestSubscriptionCountersignRoundTrip(t *testing.T) {
	subscriberPK, subscriberSK := pkFromSeed(t, 0x01)
	providerPK, providerSK := pkFromSeed(t, 0x02)

	clock := external.NewFixedClock(1_700_000_000)
	engine := sig.NewEngine(external.NewDeterministicRng(9), clock)
	nonces := sig.NewNonceStore()
	c := codec.New()

	sub := types.Subscription{
		ID:              uuid.New(),
		Subscriber:      subscriberPK,
		Provider:        providerPK,
		Method:          types.MethodId("ln-btc"),
		AmountPerPeriod: amount.MustParse("2500"),
		Currency:        "SAT",
		Period:          types.Period{Unit: types.PeriodMonth, Count: 1},
		StartAt:         1_700_000_000,
		Status:          types.SubscriptionProposed,
	}

	signed, err := SignAsProvider(engine, c, sub, providerSK, 300)
	require.NoError(t, err)

	countersigned, err := CountersignAsSubscriber(engine, c, signed, subscriberSK, 300)
	require.NoError(t, err)

	require.NoError(t, Verify(engine, c, countersigned, nonces))

	// Flipping a byte of the signed amount must invalidate the provider
	// signature (spec §8 scenario 6).
	tampered := countersigned
	tampered.AmountPerPeriod = amount.MustParse("2501")
	err = Verify(engine, c, tampered, sig.NewNonceStore())
	require.Error(t, err)
	var sigErr *sig.Error
	require.ErrorAs(t, err, &sigErr)
	require.Equal(t, sig.ErrBadSignature, sigErr.Kind)
}

func TestVerifyRejectsMissingCountersignature(t *testing.T) {
	providerPK, providerSK := pkFromSeed(t, 0x02)
	subscriberPK, _ := pkFromSeed(t, 0x01)

	clock := external.NewFixedClock(1_700_000_000)
	engine := sig.NewEngine(external.NewDeterministicRng(13), clock)
	nonces := sig.NewNonceStore()
	c := codec.New()

	sub := types.Subscription{
		ID:              uuid.New(),
		Subscriber:      subscriberPK,
		Provider:        providerPK,
		Method:          types.MethodId("ln-btc"),
		AmountPerPeriod: amount.MustParse("2500"),
		Currency:        "SAT",
		Period:          types.Period{Unit: types.PeriodMonth, Count: 1},
		StartAt:         1_700_000_000,
	}
	signed, err := SignAsProvider(engine, c, sub, providerSK, 300)
	require.NoError(t, err)

	err = Verify(engine, c, signed, nonces)
	require.Error(t, err)
}

func TestProrateUpgradeMidPeriodChargesDifference(t *testing.T) {
	periodStart := int64(0)
	periodEnd := int64(30 * 24 * 3600)
	changeAt := periodEnd / 2

	p, err := Prorate(amount.MustParse("1000"), amount.MustParse("2000"), periodStart, periodEnd, changeAt, 2)
	require.NoError(t, err)
	require.True(t, p.IsCharge)
	require.True(t, p.Net.IsPositive())
	// Credit and charge are both over exactly half the period, so the
	// net charge is half the amount delta.
	require.True(t, p.Net.Equal(amount.MustParse("500")))
}

func TestProrateDowngradeMidPeriodRefundsDifference(t *testing.T) {
	periodStart := int64(0)
	periodEnd := int64(30 * 24 * 3600)
	changeAt := periodEnd / 2

	p, err := Prorate(amount.MustParse("2000"), amount.MustParse("1000"), periodStart, periodEnd, changeAt, 2)
	require.NoError(t, err)
	require.False(t, p.IsCharge)
	require.True(t, p.Net.IsNegative())
	require.True(t, p.Net.Equal(amount.MustParse("-500")))
}

func TestCancelRefundsHeldPendingReservation(t *testing.T) {
	c, subscriberPK, providerPK, _, l := newHarness(t, succeedExecutor{})
	sub := activeSubscription(subscriberPK, providerPK)
	rule := types.AutoPayRule{ID: uuid.New(), SubscriptionID: sub.ID, MaxPerPayment: amount.MustParse("5000"), Enabled: true}
	require.NoError(t, c.Register(sub, rule, 1_700_000_000))

	// Manually simulate a held reservation as if a Pending probe were
	// outstanding, then confirm Cancel releases it.
	method := sub.Method
	resID, err := l.Reserve(providerPK, &method, amount.MustParse("2500"), 1_700_000_000)
	require.NoError(t, err)

	managed := c.subs[sub.ID]
	managed.pendingReservation = &resID
	recv := types.Receipt{ID: uuid.New()}
	managed.pendingReceipt = &recv

	require.NoError(t, c.Cancel(sub.ID))

	snap, ok := l.Inspect(providerPK, &method)
	require.True(t, ok)
	require.True(t, snap.Reserved.IsZero())

	m, ok := c.Get(sub.ID)
	require.True(t, ok)
	require.Equal(t, types.SubscriptionCancelled, m.Subscription.Status)
}
