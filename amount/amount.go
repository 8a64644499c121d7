// Package amount implements Amount, an exact fixed-precision decimal value
// used for every money field in a signed PayKit structure and for all
// spending-limit arithmetic. Internally it is backed by
// github.com/shopspring/decimal, the arbitrary-precision decimal library
// the pack's other payment SDK (shamank-snet-sdk-go) already depends on,
// but the representation is never exposed: callers only ever see the
// canonical string form or the checked-arithmetic results.
package amount

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxSignificantDigits bounds the total number of significant decimal
// digits an Amount may carry, per spec §4.1.
const MaxSignificantDigits = 28

// MaxFractionalDigits bounds the number of digits to the right of the
// decimal point any Amount may carry, including the result of a
// multiplication whose scale is the sum of its operands' scales.
const MaxFractionalDigits = 28

// Amount is an exact decimal value. The zero value is not a valid Amount;
// use Zero.
type Amount struct {
	d decimal.Decimal
	// set distinguishes the zero value (invalid) from a parsed/derived
	// zero amount (valid, equal to Zero).
	set bool
}

// Zero is the additive identity.
var Zero = Amount{d: decimal.Zero, set: true}

// Ordering mirrors a three-way comparison result.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// Parse decodes s, the textual form of a decimal number, into an Amount.
// The input does not need to already be in canonical form (e.g. "1.50" is
// accepted), but scientific notation, a leading '+', and locale group
// separators are rejected outright rather than silently tolerated, since
// the protocol never produces them and a lenient parser would let a peer
// smuggle a non-canonical encoding through.
func Parse(s string) (Amount, error) {
	if s == "" {
		return Amount{}, &ParseError{Input: s, Reason: "empty string"}
	}
	if strings.ContainsAny(s, "eE") {
		return Amount{}, &ParseError{Input: s, Reason: "scientific notation not allowed"}
	}
	if strings.HasPrefix(s, "+") {
		return Amount{}, &ParseError{Input: s, Reason: "explicit '+' sign not allowed"}
	}
	if strings.ContainsAny(s, ", ") {
		return Amount{}, &ParseError{Input: s, Reason: "locale separators not allowed"}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, &ParseError{Input: s, Reason: err.Error()}
	}

	a := Amount{d: d, set: true}
	if _, _, err := a.normalized(); err != nil {
		return Amount{}, err
	}
	return a, nil
}

// MustParse is Parse but panics on error; intended for fixtures and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// normalized strips trailing fractional zeros and returns the minimal
// coefficient/exponent pair together with a ParseError if the value
// exceeds the significant- or fractional-digit caps.
func (a Amount) normalized() (*big.Int, int32, error) {
	coeff := new(big.Int).Set(a.d.Coefficient())
	exp := a.d.Exponent()
	neg := coeff.Sign() < 0
	coeff.Abs(coeff)

	ten := big.NewInt(10)
	for exp < 0 && coeff.Sign() != 0 {
		q, r := new(big.Int).QuoRem(coeff, ten, new(big.Int))
		if r.Sign() != 0 {
			break
		}
		coeff = q
		exp++
	}
	if coeff.Sign() == 0 {
		exp = 0
	}

	if exp < -MaxFractionalDigits {
		return nil, 0, &ParseError{Reason: "exceeds maximum fractional digits"}
	}

	digits := digitCount(coeff)
	if digits > MaxSignificantDigits {
		return nil, 0, &ParseError{Reason: "exceeds maximum significant digits"}
	}

	if neg && coeff.Sign() != 0 {
		coeff = new(big.Int).Neg(coeff)
	}
	return coeff, exp, nil
}

func digitCount(coeff *big.Int) int {
	abs := new(big.Int).Abs(coeff)
	if abs.Sign() == 0 {
		return 1
	}
	return len(abs.String())
}

// ToCanonical renders a in its canonical textual form: no trailing zeros
// beyond the minimal representation, no scientific notation, an explicit
// leading '-' for negatives and no '+' for positives, and '.' as the
// decimal separator.
func (a Amount) ToCanonical() string {
	coeff, exp, err := a.normalized()
	if err != nil {
		// normalized() was already validated at construction time; this
		// branch is unreachable for any Amount obtained through this
		// package's own constructors.
		return ""
	}

	neg := coeff.Sign() < 0
	abs := new(big.Int).Abs(coeff)
	s := abs.String()

	var out string
	switch {
	case exp >= 0:
		if exp > 0 {
			s += strings.Repeat("0", int(exp))
		}
		out = s
	default:
		fracLen := int(-exp)
		for len(s) <= fracLen {
			s = "0" + s
		}
		intPart := s[:len(s)-fracLen]
		fracPart := s[len(s)-fracLen:]
		out = intPart + "." + fracPart
	}

	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

// String implements fmt.Stringer via the canonical form.
func (a Amount) String() string { return a.ToCanonical() }

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool { return a.set && a.d.Sign() > 0 }

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return !a.set || a.d.Sign() == 0 }

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool { return a.set && a.d.Sign() < 0 }

// Compare performs a three-way comparison between a and b.
func (a Amount) Compare(b Amount) Ordering {
	return Ordering(a.d.Cmp(b.d))
}

// Equal reports whether a and b denote the same numeric value.
func (a Amount) Equal(b Amount) bool { return a.Compare(b) == Equal }

// CheckedAdd returns a+b, or Overflow if the result would exceed the
// representable range.
func (a Amount) CheckedAdd(b Amount) (Amount, error) {
	return fromDecimal(a.d.Add(b.d))
}

// CheckedSub returns a-b, or Overflow if the result would exceed the
// representable range.
func (a Amount) CheckedSub(b Amount) (Amount, error) {
	return fromDecimal(a.d.Sub(b.d))
}

// CheckedMul returns a*b. The result's scale is the sum of the operands'
// scales, capped at MaxFractionalDigits; an operation that would need
// more fractional digits than that fails with Overflow before the
// multiplication is even attempted.
func (a Amount) CheckedMul(b Amount) (Amount, error) {
	if fracDigits(a)+fracDigits(b) > MaxFractionalDigits {
		return Amount{}, ErrOverflow
	}
	return fromDecimal(a.d.Mul(b.d))
}

// MulRatio returns a scaled by the rational factor numerator/denominator.
// The quotient is rounded to as many fractional digits (at most
// MaxFractionalDigits) as fit within MaxSignificantDigits; a result whose
// integer part alone exceeds that cap fails with Overflow. Proration (spec §4.8) is the only caller: it expresses a
// period-fraction as an explicit numerator/denominator pair rather than
// a pre-divided Amount, since Amount's checked arithmetic has no general
// division operation.
func (a Amount) MulRatio(numerator, denominator int64) (Amount, error) {
	if denominator == 0 {
		return Amount{}, ErrOverflow
	}
	num := decimal.NewFromInt(numerator)
	den := decimal.NewFromInt(denominator)
	prod := a.d.Mul(num)
	for places := int32(MaxFractionalDigits); places >= 0; places-- {
		if res, err := fromDecimal(prod.DivRound(den, places)); err == nil {
			return res, nil
		}
	}
	return Amount{}, ErrOverflow
}

func fracDigits(a Amount) int {
	_, exp, err := a.normalized()
	if err != nil || exp >= 0 {
		return 0
	}
	return int(-exp)
}

func fromDecimal(d decimal.Decimal) (Amount, error) {
	a := Amount{d: d, set: true}
	if _, _, err := a.normalized(); err != nil {
		return Amount{}, ErrOverflow
	}
	return a, nil
}

// RoundingMode names the single rounding step proration and other
// derived-amount computations may apply.
type RoundingMode int

const (
	// HalfEven is banker's rounding: ties round to the nearest even
	// digit. It is the default rounding mode for proration (spec §4.8).
	HalfEven RoundingMode = iota
)

// RoundToMinorUnits rounds a to minorUnits fractional digits using mode,
// returning the rounded Amount. Used by proration to express a credit or
// charge in the currency's minor unit count (default 8 for
// cryptocurrency amounts, per spec §4.8).
func RoundToMinorUnits(a Amount, minorUnits int32, mode RoundingMode) (Amount, error) {
	switch mode {
	case HalfEven:
		rounded := a.d.RoundBank(minorUnits)
		return fromDecimal(rounded)
	default:
		return Amount{}, &ParseError{Reason: "unsupported rounding mode"}
	}
}
