package external

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CryptoRng is the reference Rng backed by crypto/rand, used to draw
// SignatureEngine's envelope nonces in production.
type CryptoRng struct{}

// Fill writes cryptographically secure random bytes into buf.
func (CryptoRng) Fill(buf []byte) {
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is
		// broken, which leaves nothing safe to do but stop.
		panic(fmt.Sprintf("external: crypto/rand failed: %v", err))
	}
}

// DeterministicRng is an Rng driven by a seeded, non-cryptographic
// generator; it exists solely so tests can pin down nonce values and
// exercise replay-detection paths deterministically. Never use this for
// real envelopes.
type DeterministicRng struct {
	state *big.Int
}

// NewDeterministicRng seeds a DeterministicRng from seed.
func NewDeterministicRng(seed int64) *DeterministicRng {
	return &DeterministicRng{state: big.NewInt(seed | 1)}
}

// Fill deterministically fills buf from the generator's internal state
// using a simple linear congruential step, sized for test nonces only.
func (g *DeterministicRng) Fill(buf []byte) {
	modulus := new(big.Int).Lsh(big.NewInt(1), 256)
	mul := big.NewInt(6364136223846793005)
	add := big.NewInt(1442695040888963407)
	for i := 0; i < len(buf); i++ {
		g.state.Mul(g.state, mul)
		g.state.Add(g.state, add)
		g.state.Mod(g.state, modulus)
		buf[i] = byte(g.state.Bit(0))<<7 | byte(g.state.Uint64()&0xFF)
	}
}
