// Package rules implements the business rules consulted before every trade.
//
// The validator is a pure decision function: it reads a snapshot of cash and
// the coin's current holding and either approves the trade or rejects it with
// a machine-readable reason code. It never mutates state. A rejection is an
// expected, caller-visible outcome — not a fault.
package rules

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-wjp/hodlbot-engine/internal/model"
)

// Reason identifies why a trade was rejected.
type Reason string

const (
	// ReasonInvalidInput — quantity or price is not a positive number.
	ReasonInvalidInput Reason = "INVALID_INPUT"

	// ReasonBelowMinimumNotional — a buy's quantity×price is under the
	// configured minimum purchase value.
	ReasonBelowMinimumNotional Reason = "BELOW_MINIMUM_NOTIONAL"

	// ReasonInsufficientCash — a buy's notional exceeds available cash.
	ReasonInsufficientCash Reason = "INSUFFICIENT_CASH"

	// ReasonInsufficientHoldings — a sell exceeds the held quantity.
	ReasonInsufficientHoldings Reason = "INSUFFICIENT_HOLDINGS"

	// ReasonUnprofitableSale — a sell at or below average cost. The ledger
	// never realizes a loss.
	ReasonUnprofitableSale Reason = "UNPROFITABLE_SALE"
)

// Rejection is the error returned when a trade fails validation.
type Rejection struct {
	Reason Reason
	msg    string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("trade rejected (%s): %s", r.Reason, r.msg)
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, msg: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the rejection reason from an error chain.
// Returns ("", false) if err is not a validation rejection.
func ReasonOf(err error) (Reason, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}

// Validator encodes the trade acceptance policy.
type Validator struct {
	// MinNotional is the minimum quantity×price for a buy.
	MinNotional decimal.Decimal
}

// NewValidator creates a validator with the given minimum purchase notional.
func NewValidator(minNotional decimal.Decimal) *Validator {
	return &Validator{MinNotional: minNotional}
}

// Check validates a proposed trade against current cash and the coin's
// holding (zero-value Holding when the coin is not held). Rules apply in a
// fixed order; the first failing rule determines the rejection reason.
func (v *Validator) Check(typ model.TradeType, quantity, price, cash decimal.Decimal, holding model.Holding) error {
	// 1. Inputs must be positive.
	if quantity.LessThanOrEqual(decimal.Zero) {
		return reject(ReasonInvalidInput, "quantity must be positive, got %s", quantity)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return reject(ReasonInvalidInput, "price must be positive, got %s", price)
	}

	notional := quantity.Mul(price)

	switch typ {
	case model.Buy:
		// 2. Minimum purchase value.
		if notional.LessThan(v.MinNotional) {
			return reject(ReasonBelowMinimumNotional,
				"notional %s below minimum %s", notional, v.MinNotional)
		}
		// 3. Cash sufficiency.
		if notional.GreaterThan(cash) {
			return reject(ReasonInsufficientCash,
				"notional %s exceeds cash balance %s", notional, cash)
		}

	case model.Sell:
		// 4. Holdings sufficiency.
		if quantity.GreaterThan(holding.Quantity) {
			return reject(ReasonInsufficientHoldings,
				"sell quantity %s exceeds held %s", quantity, holding.Quantity)
		}
		// 5. Profitability gate: never sell at or below cost.
		if price.LessThanOrEqual(holding.AverageCost) {
			return reject(ReasonUnprofitableSale,
				"price %s is not above average cost %s", price, holding.AverageCost)
		}

	default:
		return reject(ReasonInvalidInput, "unknown trade type %q", typ)
	}

	return nil
}
