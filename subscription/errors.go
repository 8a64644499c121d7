package subscription

// ErrorKind enumerates SubscriptionController's failure modes. Errors
// from the ledger and protocol layers are returned unwrapped in
// TickResult.Err; this package's own Error covers the controller-level
// failures below.
type ErrorKind int

const (
	// ErrAlreadyManaged means Register was called twice for the same
	// subscription ID.
	ErrAlreadyManaged ErrorKind = iota
	// ErrNotManaged means a subscription ID was referenced that the
	// controller has no record of.
	ErrNotManaged
	// ErrRuleDisabled means the subscription's AutoPayRule.Enabled is
	// false, so the due tick was skipped rather than attempted.
	ErrRuleDisabled
	// ErrExceedsMaxPerPayment means the due amount is greater than the
	// AutoPayRule's ceiling (spec §4.8 step 2).
	ErrExceedsMaxPerPayment
	// ErrDialFailed means the host's ChannelDialer could not open a
	// FramedChannel to the provider.
	ErrDialFailed
	// ErrNotActive means Tick considered a subscription whose Status
	// is not SubscriptionActive.
	ErrNotActive
	// ErrZeroPeriod means Prorate was given a period window whose end is
	// not after its start, or a change_at outside that window.
	ErrZeroPeriod
)

func (k ErrorKind) String() string {
	switch k {
	case ErrAlreadyManaged:
		return "already_managed"
	case ErrNotManaged:
		return "not_managed"
	case ErrRuleDisabled:
		return "rule_disabled"
	case ErrExceedsMaxPerPayment:
		return "exceeds_max_per_payment"
	case ErrDialFailed:
		return "dial_failed"
	case ErrNotActive:
		return "not_active"
	case ErrZeroPeriod:
		return "zero_period"
	default:
		return "unknown"
	}
}

// Error is returned by Controller methods on failure.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return "subscription: " + e.Kind.String()
	}
	return "subscription: " + e.Kind.String() + ": " + e.Reason
}

// Is supports errors.Is(err, &Error{Kind: ErrNotManaged}) style checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
