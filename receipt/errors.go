package receipt

import goerrors "github.com/go-errors/errors"

// ErrorKind enumerates ReceiptManager's failure modes.
type ErrorKind int

const (
	// ErrUnsigned means Put was called with a receipt carrying no
	// envelope; only confirmed, signed receipts may be persisted.
	ErrUnsigned ErrorKind = iota
	// ErrVerificationFailed means the envelope's signature did not
	// verify against the declared payee.
	ErrVerificationFailed
	// ErrWrongSigner means the envelope names a signer other than the
	// receipt's declared payee; this is checked before the signature.
	ErrWrongSigner
	// ErrNotFound means no receipt exists for the requested id.
	ErrNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnsigned:
		return "unsigned"
	case ErrVerificationFailed:
		return "verification_failed"
	case ErrWrongSigner:
		return "wrong_signer"
	case ErrNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is returned by Manager methods on failure. It carries a stack
// trace via go-errors/errors, matching package protocol's Error: a
// caller surfacing a storage or verification bug report from either
// package gets the same diagnostic shape.
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
		return "receipt: " + e.Kind.String()
	}
	return "receipt: " + e.Kind.String() + ": " + e.Reason
}

// Is supports errors.Is(err, &Error{Kind: ErrNotFound}) style checks.
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
