package sig

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

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

func TestCheckAndMarkRejectsDuplicate(t *testing.T) {
	s := NewNonceStore()
	signer := samplePK(1)
	var nonce types.Nonce
	nonce[0] = 9

	ok, err := s.CheckAndMark(signer, nonce, 1000, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.CheckAndMark(signer, nonce, 1000, 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckAndMarkDistinguishesSignerAndNonce(t *testing.T) {
	s := NewNonceStore()
	var n1, n2 types.Nonce
	n1[0] = 1
	n2[0] = 2

	ok, err := s.CheckAndMark(samplePK(1), n1, 1000, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.CheckAndMark(samplePK(1), n2, 1000, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.CheckAndMark(samplePK(2), n1, 1000, 0)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGCRemovesOnlyExpiredEntries(t *testing.T) {
	s := NewNonceStore()
	var n1, n2 types.Nonce
	n1[0], n2[0] = 1, 2

	_, err := s.CheckAndMark(samplePK(1), n1, 100, 0)
	require.NoError(t, err)
	_, err = s.CheckAndMark(samplePK(1), n2, 200, 0)
	require.NoError(t, err)

	removed := s.GC(150)
	require.Equal(t, 1, removed)
	require.Equal(t, 1, s.Stats().Tracked)

	removed = s.GC(201)
	require.Equal(t, 1, removed)
	require.Equal(t, 0, s.Stats().Tracked)
}

func TestRunGCEvictsOnInterval(t *testing.T) {
	s := NewNonceStore()
	var n types.Nonce
	n[0] = 5
	_, err := s.CheckAndMark(samplePK(1), n, 0, 0)
	require.NoError(t, err)

	var now int64 = 1
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunGC(ctx, func() int64 { return now }, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return s.Stats().Tracked == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestCheckAndMarkConcurrentExactlyOneWinner(t *testing.T) {
	s := NewNonceStore()
	signer := samplePK(3)
	var nonce types.Nonce
	nonce[0] = 0xAB

	const n = 50
	var wins int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			ok, err := s.CheckAndMark(signer, nonce, 1000, 0)
			require.NoError(t, err)
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(1), wins)
}

// fillEntries populates s with MaxTrackedNonces distinct entries, each
// expiring at expiresAt.
func fillEntries(s *NonceStore, expiresAt int64) {
	s.entries = make(map[nonceKey]int64, MaxTrackedNonces)
	for i := 0; i < MaxTrackedNonces; i++ {
		var nonce types.Nonce
		nonce[0] = byte(i)
		nonce[1] = byte(i >> 8)
		nonce[2] = byte(i >> 16)
		s.entries[nonceKey{signer: samplePK(1), nonce: nonce}] = expiresAt
	}
}

func TestCheckAndMarkBackpressure(t *testing.T) {
	s := &NonceStore{}
	fillEntries(s, 1000)

	var freshNonce types.Nonce
	freshNonce[31] = 0xFF
	// now (500) is before every entry's expires_at (1000): nothing is
	// eligible for eviction, so the new nonce is refused (spec §4.4).
	_, err := s.CheckAndMark(samplePK(1), freshNonce, 1000, 500)
	require.Error(t, err)
	var bp *BackpressureError
	require.ErrorAs(t, err, &bp)
}

func TestCheckAndMarkEvictsExpiredBeforeBackpressure(t *testing.T) {
	s := &NonceStore{}
	fillEntries(s, 1000)

	var freshNonce types.Nonce
	freshNonce[31] = 0xFF
	// now (1001) is past every entry's expires_at: spec §4.4
	// requires CheckAndMark evict them first rather than refuse outright.
	ok, err := s.CheckAndMark(samplePK(1), freshNonce, 2000, 1001)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, s.Stats().Tracked)
}
