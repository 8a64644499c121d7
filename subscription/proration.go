package subscription

import (
	"github.com/paykitproto/paykit-core/amount"
)

// DefaultMinorUnits is the default number of fractional digits a
// proration result is rounded to when the caller does not specify a
// currency-specific minor unit count (spec §4.8: "default 8 for
// cryptocurrency").
const DefaultMinorUnits = 8

// Proration is the result of Prorate: a signed net amount for an
// amount-per-period change mid-period (spec §4.8). IsCharge is true
// when Net represents an additional charge to the subscriber, false
// when it represents a refund owed to them.
type Proration struct {
	Credit   amount.Amount
	Charge   amount.Amount
	Net      amount.Amount
	IsCharge bool
}

// Prorate computes the credit/charge pair for an amount_per_period
// change taking effect at changeAt, within a period running from
// periodStart to periodEnd (spec §4.8):
//
//	credit = old_amount * (period_end - change_at) / (period_end - period_start)
//	charge = new_amount * (period_end - change_at) / (period_end - period_start)
//	net    = charge - credit
//
// Both intermediate values are rounded HalfEven to minorUnits
// fractional digits before the subtraction, so Net is itself already at
// the currency's minor-unit precision.
func Prorate(oldAmount, newAmount amount.Amount, periodStart, periodEnd, changeAt int64, minorUnits int32) (Proration, error) {
	if periodEnd <= periodStart {
		return Proration{}, &Error{Kind: ErrZeroPeriod, Reason: "period_end must be after period_start"}
	}
	if changeAt < periodStart || changeAt > periodEnd {
		return Proration{}, &Error{Kind: ErrZeroPeriod, Reason: "change_at outside [period_start, period_end]"}
	}

	remaining := periodEnd - changeAt
	total := periodEnd - periodStart

	rawCredit, err := oldAmount.MulRatio(remaining, total)
	if err != nil {
		return Proration{}, err
	}
	credit, err := amount.RoundToMinorUnits(rawCredit, minorUnits, amount.HalfEven)
	if err != nil {
		return Proration{}, err
	}

	rawCharge, err := newAmount.MulRatio(remaining, total)
	if err != nil {
		return Proration{}, err
	}
	charge, err := amount.RoundToMinorUnits(rawCharge, minorUnits, amount.HalfEven)
	if err != nil {
		return Proration{}, err
	}

	net, err := charge.CheckedSub(credit)
	if err != nil {
		return Proration{}, err
	}

	return Proration{
		Credit:   credit,
		Charge:   charge,
		Net:      net,
		IsCharge: !net.IsNegative(),
	}, nil
}
