package protocol

import goerrors "github.com/go-errors/errors"

// ErrorKind enumerates ProtocolError's failure modes (spec §7).
type ErrorKind int

const (
	ErrTimeout ErrorKind = iota
	ErrCancelled
	ErrProtocolViolation
	ErrGeneratorFailure
	ErrRateLimited
	ErrValidationFailed
	ErrChannelClosed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrTimeout:
		return "timeout"
	case ErrCancelled:
		return "cancelled"
	case ErrProtocolViolation:
		return "protocol_violation"
	case ErrGeneratorFailure:
		return "generator_failure"
	case ErrRateLimited:
		return "rate_limited"
	case ErrValidationFailed:
		return "validation_failed"
	case ErrChannelClosed:
		return "channel_closed"
	default:
		return "unknown"
	}
}

// Error is ProtocolError: it carries a stack trace via go-errors/errors
// so a host surfacing a malformed-wire-data or protocol-violation bug
// report gets a useful trace, the same reason peer.go wraps its own
// errors with this package.
type Error struct {
	Kind   ErrorKind
	Reason string
	trace  *goerrors.Error
}

func newError(kind ErrorKind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason, trace: goerrors.New(reason)}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return "protocol: " + e.Kind.String()
	}
	return "protocol: " + e.Kind.String() + ": " + e.Reason
}

// Is supports errors.Is(err, &Error{Kind: ErrTimeout}) style checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Stack returns the captured stack trace as a string, for diagnostics.
func (e *Error) Stack() string {
	if e.trace == nil {
		return ""
	}
	return string(e.trace.Stack())
}

// toAbortReason maps a protocol-internal error kind onto the wire
// AbortReason sent to the peer.
func (k ErrorKind) toAbortReason() AbortReason {
	switch k {
	case ErrTimeout:
		return AbortTimeout
	case ErrCancelled:
		return AbortCancelled
	case ErrGeneratorFailure:
		return AbortGeneratorFailure
	case ErrValidationFailed:
		return AbortValidationFailed
	default:
		return AbortProtocolViolation
	}
}
