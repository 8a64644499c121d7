package types

import (
	"io"
	"time"

	"github.com/paykitproto/paykit-core/codec"
)

// PeriodUnit is the unit of a subscription billing Period.
type PeriodUnit uint32

const (
	PeriodDay PeriodUnit = iota
	PeriodWeek
	PeriodMonth
	PeriodYear
)

// approximate calendar durations used for period-window arithmetic. The
// spec leaves exact calendar semantics unspecified (§9 open questions
// list zero-duration periods, not calendar precision); PayKit Core fixes
// Month at 30 days and Year at 365 days, documented in DESIGN.md, so that
// "period.duration()" is a pure function of the Period value with no
// calendar-lookup dependency.
const (
	dayDuration   = 24 * time.Hour
	weekDuration  = 7 * dayDuration
	monthDuration = 30 * dayDuration
	yearDuration  = 365 * dayDuration
)

// Period is a billing period: a unit multiplied by a positive count
// (e.g. Month × 1), per spec §3.
type Period struct {
	Unit  PeriodUnit
	Count uint32
}

// Duration returns the fixed-length approximation of p. A zero-duration
// Period (Count == 0) must be rejected at construction (spec §9); callers
// should use Validate for that check rather than relying on Duration
// returning 0.
func (p Period) Duration() time.Duration {
	var unit time.Duration
	switch p.Unit {
	case PeriodDay:
		unit = dayDuration
	case PeriodWeek:
		unit = weekDuration
	case PeriodMonth:
		unit = monthDuration
	case PeriodYear:
		unit = yearDuration
	default:
		return 0
	}
	return unit * time.Duration(p.Count)
}

// Validate rejects a Period whose duration would be zero, per the open
// question in spec §9 ("the implementation should reject
// period.duration() == 0 at construction").
func (p Period) Validate() error {
	if p.Count == 0 || p.Duration() <= 0 {
		return &FormatError{Field: "Period", Reason: "duration must be positive"}
	}
	return nil
}

func (p Period) encode(w io.Writer) error {
	if err := codec.WriteUint32(w, uint32(p.Unit)); err != nil {
		return err
	}
	return codec.WriteUint32(w, p.Count)
}

func decodePeriod(r io.Reader) (Period, error) {
	unit, err := codec.ReadUint32(r)
	if err != nil {
		return Period{}, err
	}
	count, err := codec.ReadUint32(r)
	if err != nil {
		return Period{}, err
	}
	return Period{Unit: PeriodUnit(unit), Count: count}, nil
}

// RequestStatus is the lifecycle state of a PaymentRequest (spec §3).
type RequestStatus uint32

const (
	RequestPending RequestStatus = iota
	RequestAccepted
	RequestDeclined
	RequestExpired
	RequestPaid
)

// SubscriptionStatus is the lifecycle state of a Subscription (spec §3).
type SubscriptionStatus uint32

const (
	SubscriptionProposed SubscriptionStatus = iota
	SubscriptionActive
	SubscriptionPaused
	SubscriptionCancelled
	SubscriptionExpired
)
