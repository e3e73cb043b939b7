package pankind

import "github.com/shopspring/decimal"

// MethodFee prices a payment method: a proportional rate applied to the
// gross amount, plus a fixed component. Flat-fee methods set Rate to zero.
type MethodFee struct {
	Rate  decimal.Decimal `json:"rate"`
	Fixed decimal.Decimal `json:"fixed"`
}

// FeeSchedule splits gross donation amounts into fees and net. It is
// immutable after construction and does no I/O, the same inputs always
// produce the same breakdown.
type FeeSchedule struct {
	PlatformRate decimal.Decimal
	Methods      map[PaymentMethod]MethodFee
}

type FeeBreakdown struct {
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	ProcessingFee decimal.Decimal `json:"processing_fee"`
	NetAmount     decimal.Decimal `json:"net_amount"`

	// Unpriced marks a payment method the schedule doesn't price. The
	// processing fee is zero and callers are expected to log it.
	Unpriced bool `json:"-"`
}

// Compute returns the fee breakdown for a gross amount. Each fee component
// is rounded half-to-even to 2 decimals before the net is derived by
// subtraction, so platform + processing + net always equals the gross.
func (s *FeeSchedule) Compute(gross decimal.Decimal, method PaymentMethod) (FeeBreakdown, error) {
	if !gross.IsPositive() {
		return FeeBreakdown{}, ErrInvalidAmount
	}

	breakdown := FeeBreakdown{
		PlatformFee:   gross.Mul(s.PlatformRate).RoundBank(2),
		ProcessingFee: decimal.Zero,
	}

	if fee, ok := s.Methods[method]; ok {
		breakdown.ProcessingFee = gross.Mul(fee.Rate).Add(fee.Fixed).RoundBank(2)
	} else {
		breakdown.Unpriced = true
	}

	breakdown.NetAmount = gross.Sub(breakdown.PlatformFee).Sub(breakdown.ProcessingFee)
	if breakdown.NetAmount.IsNegative() {
		return FeeBreakdown{}, ErrInvalidAmount
	}

	return breakdown, nil
}
