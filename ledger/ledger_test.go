package ledger

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/paykitproto/paykit-core/amount"
	"github.com/paykitproto/paykit-core/types"
	"github.com/stretchr/testify/require"
)

func samplePeer(b byte) types.PublicKey {
	var pk types.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func configureDaily(t *testing.T, l *Ledger, peer types.PublicKey, cap string) {
	t.Helper()
	err := l.Configure(types.PeerSpendingLimit{
		Peer:        peer,
		Period:      types.Period{Unit: types.PeriodDay, Count: 1},
		Cap:         amount.MustParse(cap),
		PeriodStart: 0,
	})
	require.NoError(t, err)
}

func TestReserveDeniedWithoutConfigure(t *testing.T) {
	l := New()
	_, err := l.Reserve(samplePeer(1), nil, amount.MustParse("10"), 0)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, ErrDisabled, lerr.Kind)
}

func TestReserveCommitRefundHappyPath(t *testing.T) {
	l := New()
	peer := samplePeer(1)
	configureDaily(t, l, peer, "10000")

	id, err := l.Reserve(peer, nil, amount.MustParse("4000"), 100)
	require.NoError(t, err)

	snap, ok := l.Inspect(peer, nil)
	require.True(t, ok)
	require.True(t, snap.Reserved.Equal(amount.MustParse("4000")))

	require.NoError(t, l.Commit(id))
	snap, _ = l.Inspect(peer, nil)
	require.True(t, snap.Reserved.IsZero())
	require.True(t, snap.Committed.Equal(amount.MustParse("4000")))
}

func TestRefundRestoresReserved(t *testing.T) {
	l := New()
	peer := samplePeer(2)
	require.NoError(t, l.Configure(types.PeerSpendingLimit{
		Peer:        peer,
		Period:      types.Period{Unit: types.PeriodDay, Count: 1},
		Cap:         amount.MustParse("5000"),
		PeriodStart: 0,
		Committed:   amount.MustParse("1000"),
	}))

	id, err := l.Reserve(peer, nil, amount.MustParse("3000"), 10)
	require.NoError(t, err)

	require.NoError(t, l.Refund(id))
	snap, _ := l.Inspect(peer, nil)
	require.True(t, snap.Reserved.IsZero())
	require.True(t, snap.Committed.Equal(amount.MustParse("1000")))
}

func TestReserveDeniedOverCap(t *testing.T) {
	l := New()
	peer := samplePeer(3)
	configureDaily(t, l, peer, "1000")

	_, err := l.Reserve(peer, nil, amount.MustParse("500"), 0)
	require.NoError(t, err)

	_, err = l.Reserve(peer, nil, amount.MustParse("600"), 0)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, ErrOverCap, lerr.Kind)
}

func TestReserveRejectsNonPositiveAmount(t *testing.T) {
	l := New()
	peer := samplePeer(4)
	configureDaily(t, l, peer, "1000")

	_, err := l.Reserve(peer, nil, amount.Zero, 0)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, ErrAmountNonPositive, lerr.Kind)
}

// TestConcurrentReserveRespectsCapacity mirrors the scenario of three
// concurrent 4000-unit reservations against a 10000 cap: exactly two
// may succeed.
func TestConcurrentReserveRespectsCapacity(t *testing.T) {
	l := New()
	peer := samplePeer(5)
	configureDaily(t, l, peer, "10000")

	var succeeded int64
	var ids [3]ReservationId
	var errs [3]error
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			defer wg.Done()
			id, err := l.Reserve(peer, nil, amount.MustParse("4000"), 100)
			ids[i], errs[i] = id, err
			if err == nil {
				atomic.AddInt64(&succeeded, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(2), succeeded)

	for i := 0; i < 3; i++ {
		if errs[i] == nil {
			require.NoError(t, l.Commit(ids[i]))
		}
	}

	snap, _ := l.Inspect(peer, nil)
	require.True(t, snap.Committed.Equal(amount.MustParse("8000")))
	require.True(t, snap.Reserved.IsZero())
}

func TestCommitFailsOnStaleGeneration(t *testing.T) {
	l := New()
	peer := samplePeer(6)
	require.NoError(t, l.Configure(types.PeerSpendingLimit{
		Peer:        peer,
		Period:      types.Period{Unit: types.PeriodDay, Count: 1},
		Cap:         amount.MustParse("1000"),
		PeriodStart: 0,
	}))

	id, err := l.Reserve(peer, nil, amount.MustParse("100"), 10)
	require.NoError(t, err)
	require.NoError(t, l.Refund(id))

	oneDaySecs := int64(types.Period{Unit: types.PeriodDay, Count: 1}.Duration().Seconds())
	_, err = l.Reserve(peer, nil, amount.MustParse("1"), oneDaySecs+1)
	require.NoError(t, err)

	err = l.Commit(id)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, ErrStaleReservation, lerr.Kind)
}

func TestWindowAdvanceDeferredWhileReserved(t *testing.T) {
	l := New()
	peer := samplePeer(7)
	configureDaily(t, l, peer, "1000")

	oneDaySecs := int64(types.Period{Unit: types.PeriodDay, Count: 1}.Duration().Seconds())
	id, err := l.Reserve(peer, nil, amount.MustParse("100"), 10)
	require.NoError(t, err)

	snapBefore, _ := l.Inspect(peer, nil)

	_, err = l.Reserve(peer, nil, amount.MustParse("50"), oneDaySecs+10)
	require.NoError(t, err)
	snapAfter, _ := l.Inspect(peer, nil)
	require.Equal(t, snapBefore.PeriodStart, snapAfter.PeriodStart, "window must not advance while reserved > 0")

	require.NoError(t, l.Commit(id))
}

func TestMethodScopedLimitsAreIndependent(t *testing.T) {
	l := New()
	peer := samplePeer(8)
	lnBTC := types.MethodId("ln-btc")
	onChain := types.MethodId("btc-onchain")

	require.NoError(t, l.Configure(types.PeerSpendingLimit{
		Peer: peer, Method: &lnBTC,
		Period: types.Period{Unit: types.PeriodDay, Count: 1},
		Cap:    amount.MustParse("100"),
	}))
	require.NoError(t, l.Configure(types.PeerSpendingLimit{
		Peer: peer, Method: &onChain,
		Period: types.Period{Unit: types.PeriodDay, Count: 1},
		Cap:    amount.MustParse("5000"),
	}))

	_, err := l.Reserve(peer, &lnBTC, amount.MustParse("100"), 0)
	require.NoError(t, err)
	_, err = l.Reserve(peer, &onChain, amount.MustParse("100"), 0)
	require.NoError(t, err)
}
