package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountedUnitCents applies a percentage discount to a unit price,
// rounding half-up to whole cents.
func DiscountedUnitCents(unitCents, discountPercent int) int {
	if discountPercent <= 0 {
		return unitCents
	}
	if discountPercent >= 100 {
		return 0
	}
	unit := decimal.NewFromInt(int64(unitCents))
	factor := hundred.Sub(decimal.NewFromInt(int64(discountPercent))).Div(hundred)
	return int(unit.Mul(factor).Round(0).IntPart())
}

// PercentOfCents returns pct% of the amount, rounded half-up to cents.
func PercentOfCents(amountCents, pct int) int {
	if pct <= 0 || amountCents <= 0 {
		return 0
	}
	amount := decimal.NewFromInt(int64(amountCents))
	return int(amount.Mul(decimal.NewFromInt(int64(pct))).Div(hundred).Round(0).IntPart())
}
