package revenue

import "github.com/shopspring/decimal"

// coopShareRate is the cooperative's additive markup on the customer price.
var coopShareRate = decimal.RequireFromString("0.10")

// Split is the frozen three-way breakdown of an order's financials. The
// supplying members keep the full pre-markup subtotal; the cooperative's
// share is charged on top of it.
type Split struct {
	Subtotal    decimal.Decimal
	CoopShare   decimal.Decimal
	MemberShare decimal.Decimal
	TotalAmount decimal.Decimal
}

// Calculate computes the split for a subtotal. Monetary rounding is
// half-up to two decimal places and applied only to the coop share; the
// subtotal passes through untouched so TotalAmount == Subtotal + CoopShare
// holds exactly.
func Calculate(subtotal decimal.Decimal) Split {
	coop := subtotal.Mul(coopShareRate).Round(2)
	return Split{
		Subtotal:    subtotal,
		CoopShare:   coop,
		MemberShare: subtotal,
		TotalAmount: subtotal.Add(coop),
	}
}
