package pricing

import (
	"github.com/shopspring/decimal"

	"storefront-offers/internal/models"
)

// DefaultFreeShippingThreshold is the subtotal above which shipping is free.
var DefaultFreeShippingThreshold = decimal.NewFromInt(1000)

// Pricer turns a priced cart snapshot into a breakdown.
type Pricer struct {
	Addons                AddonPrices
	FreeShippingThreshold decimal.Decimal
	GroupSize             int
}

// NewPricer creates a pricer with the standard addon prices and thresholds.
func NewPricer() *Pricer {
	return &Pricer{
		Addons:                DefaultAddonPrices(),
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		GroupSize:             DefaultGroupSize,
	}
}

// Price runs the pipeline: buy-X-get-Y, then the active discount, then shipping.
// A nil quote means the destination is unknown; the total then excludes shipping.
func (p *Pricer) Price(lines []models.PricedLine, active *models.Offer, quote *decimal.Decimal) models.PriceBreakdown {
	free, subtotal := p.applyBuyXGetY(lines)

	freeKeys := make([]string, 0, len(free))
	savings := decimal.Zero
	for _, u := range free {
		freeKeys = append(freeKeys, u.Key)
		savings = savings.Add(u.Price)
	}

	discount := ComputeDiscount(active, subtotal)

	b := models.PriceBreakdown{
		Subtotal:     subtotal,
		Discount:     discount,
		FreeUnitKeys: freeKeys,
		PromoSavings: savings,
	}
	if active != nil && discount.IsPositive() {
		b.AppliedOfferID = active.ID
	}

	total := subtotal.Sub(discount)
	switch {
	case subtotal.GreaterThan(p.FreeShippingThreshold):
		zero := decimal.Zero
		b.Shipping = &zero
		b.ShippingStatus = models.ShippingFree
	case quote != nil:
		charge := *quote
		b.Shipping = &charge
		b.ShippingStatus = models.ShippingQuoted
		total = total.Add(charge)
	default:
		b.ShippingStatus = models.ShippingPincodeRequired
	}
	b.Total = total
	return b
}

// NeedsQuote reports whether shipping for this cart depends on a quote.
func (p *Pricer) NeedsQuote(lines []models.PricedLine) bool {
	_, subtotal := p.applyBuyXGetY(lines)
	return !subtotal.GreaterThan(p.FreeShippingThreshold)
}

// applyBuyXGetY returns the freed units and the subtotal of the rest.
func (p *Pricer) applyBuyXGetY(lines []models.PricedLine) ([]Unit, decimal.Decimal) {
	units := ExpandUnits(lines, p.Addons)
	free := FreeUnits(units, p.GroupSize)

	isFree := make(map[string]bool, len(free))
	for _, u := range free {
		isFree[u.Key] = true
	}
	subtotal := decimal.Zero
	for _, u := range units {
		if !isFree[u.Key] {
			subtotal = subtotal.Add(u.Price)
		}
	}
	return free, subtotal
}

// ShippingWeight returns the total weight of every unit in the cart, freed units included.
func ShippingWeight(lines []models.PricedLine) int {
	grams := 0
	for _, line := range lines {
		grams += line.WeightGrams * line.Quantity
	}
	return grams
}
