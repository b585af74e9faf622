package pricing

import (
	"github.com/shopspring/decimal"

	"storefront-offers/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount returns the reduction an active offer grants on subtotal.
// Only discount offers reduce the price and discounts never stack.
func ComputeDiscount(offer *models.Offer, subtotal decimal.Decimal) decimal.Decimal {
	if offer == nil || offer.Kind != models.KindDiscount || offer.Discount == nil {
		return decimal.Zero
	}
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	if offer.MinOrderValue != nil && subtotal.LessThan(decimal.NewFromInt(*offer.MinOrderValue)) {
		return decimal.Zero
	}

	value := decimal.NewFromInt(offer.Discount.Value)
	switch offer.Discount.Type {
	case models.DiscountFlatCapped:
		return decimal.Min(value, subtotal)
	case models.DiscountPercentage:
		return subtotal.Mul(value).Div(hundred).Round(2)
	default:
		return decimal.Zero
	}
}
