package cart

import (
	"github.com/trendora/trendora-backend/internal/pricing"
	"github.com/trendora/trendora-backend/pkg/db/models"
)

// Totals breaks down the cart price. All amounts are integer cents.
// finalTotal = totalWithoutDiscount - itemDiscountTotal - couponDiscount.
type Totals struct {
	TotalWithoutDiscountCents int `json:"totalWithoutDiscountCents"`
	ItemDiscountCents         int `json:"itemDiscountCents"`
	SubtotalCents             int `json:"subtotalCents"`
	CouponDiscountCents       int `json:"couponDiscountCents"`
	FinalTotalCents           int `json:"finalTotalCents"`
}

// LineSubtotalCents prices a line after its item-level discount.
func LineSubtotalCents(unitCents, discountPercent, quantity int) int {
	return pricing.DiscountedUnitCents(unitCents, discountPercent) * quantity
}

// ComputeTotals folds the cart lines into a price breakdown, applying
// the coupon percentage to the item-discounted subtotal.
func ComputeTotals(items []models.CartItem, couponPercent int) Totals {
	var totals Totals
	for i := range items {
		item := &items[i]
		gross := item.UnitPriceCents * item.Quantity
		net := LineSubtotalCents(item.UnitPriceCents, item.DiscountPercent, item.Quantity)
		totals.TotalWithoutDiscountCents += gross
		totals.ItemDiscountCents += gross - net
		totals.SubtotalCents += net
	}
	totals.CouponDiscountCents = pricing.PercentOfCents(totals.SubtotalCents, couponPercent)
	totals.FinalTotalCents = totals.SubtotalCents - totals.CouponDiscountCents
	return totals
}
