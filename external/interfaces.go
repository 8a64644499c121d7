// Package external defines every interface PayKit Core consumes from its
// host (spec §6, component I) and ships a reference implementation of
// each, so the rest of the module can be exercised end-to-end without a
// real host application — the same role htlcswitch/mock.go plays for the
// teacher's own switch package in the retrieval pack.
package external

import (
	"time"

	"github.com/paykitproto/paykit-core/types"
)

// Clock abstracts wall-clock time so that SubscriptionController's
// tick-driven scheduling and SignatureEngine's timestamping are
// deterministic under test.
type Clock interface {
	NowSecs() int64
}

// Rng abstracts a cryptographically secure random source, used to draw
// the 32-byte nonces SignatureEngine folds into every envelope.
type Rng interface {
	Fill(buf []byte)
}

// ChannelError distinguishes the three failure shapes a FramedChannel
// operation can report, beyond a plain I/O error.
type ChannelError int

const (
	ChannelErrNone ChannelError = iota
	ChannelErrClosed
	ChannelErrTimeout
)

func (e ChannelError) Error() string {
	switch e {
	case ChannelErrClosed:
		return "external: channel closed"
	case ChannelErrTimeout:
		return "external: channel recv timeout"
	default:
		return "external: no error"
	}
}

// FrameSizeLimit is the maximum size of a single frame (spec §6).
const FrameSizeLimit = 16 * 1024 * 1024

// MinFrameSize is the minimum size of a single frame; shorter messages
// are rejected (spec §6).
const MinFrameSize = 4

// FramedChannel delivers complete plaintext message payloads in order,
// over a pre-established encrypted, authenticated transport the core
// never sees (spec §1, §6). A single FramedChannel is owned exclusively
// by one InteractiveProtocol session.
type FramedChannel interface {
	// Recv blocks for up to timeout waiting for the next frame. It
	// returns ChannelErrClosed or ChannelErrTimeout (wrapped as an
	// error) rather than a data payload when the channel cannot
	// deliver one.
	Recv(timeout time.Duration) ([]byte, error)

	// Send writes a single frame. It returns ChannelErrClosed if the
	// channel is no longer writable.
	Send(payload []byte) error

	// Close releases the channel. Close is idempotent.
	Close() error
}

// GeneratorErrorKind classifies why ReceiptGenerator.Generate failed.
type GeneratorErrorKind int

const (
	GeneratorNotSupported GeneratorErrorKind = iota
	GeneratorTemporaryFailure
	GeneratorPermanentFailure
)

// GeneratorError is returned by ReceiptGenerator.Generate on failure.
type GeneratorError struct {
	Kind   GeneratorErrorKind
	Reason string
}

func (e *GeneratorError) Error() string { return "external: generator: " + e.Reason }

// ReceiptGenerator produces the real, method-specific payment artifact
// (e.g. a Lightning invoice) for a provisional receipt (spec §6).
type ReceiptGenerator interface {
	Generate(provisional types.Receipt) (types.Receipt, error)
}

// ExecutionOutcomeKind classifies the result of PaymentExecutor.Execute.
type ExecutionOutcomeKind int

const (
	ExecutionSucceeded ExecutionOutcomeKind = iota
	ExecutionPending
	ExecutionDeclined
	ExecutionTransientError
)

// ExecutionOutcome is the result of attempting to execute a confirmed
// receipt on the wire (spec §6).
type ExecutionOutcome struct {
	Kind        ExecutionOutcomeKind
	ArtifactRef []byte        // set when Kind == ExecutionSucceeded
	ProbeAfter  time.Duration // set when Kind == ExecutionPending
	Reason      string        // set when Kind is Declined or TransientError
}

// PaymentExecutor performs the actual on-wire settlement of a confirmed
// receipt; this is the component SubscriptionController invokes for
// each auto-pay attempt (spec §6, §4.8).
type PaymentExecutor interface {
	Execute(receipt types.Receipt) (ExecutionOutcome, error)
}

// Storage is the synchronous (from the core's point of view) keyspace
// ReceiptManager persists into (spec §6); SpendingLedger keeps its
// state in memory and does not use it.
type Storage interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error) // returns ErrNotFound if absent
	List(prefix string) ([]string, error)
	Delete(key string) error
}

// ErrNotFound is returned by Storage.Get for an absent key.
var ErrNotFound = &notFoundError{}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "external: key not found" }

// RateLimiter gates session acceptance by an opaque peer descriptor
// (spec §4.7).
type RateLimiter interface {
	Allow(key string, now int64) bool
}
