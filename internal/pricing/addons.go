package pricing

import (
	"github.com/shopspring/decimal"

	"storefront-offers/internal/models"
)

// AddonPrices holds the per-unit surcharge of every paid addon.
// Personalised messages are free.
type AddonPrices struct {
	Keychain  decimal.Decimal
	GiftWrap  decimal.Decimal
	CarMirror decimal.Decimal
}

// DefaultAddonPrices returns the storefront's standard surcharges.
func DefaultAddonPrices() AddonPrices {
	return AddonPrices{
		Keychain:  decimal.NewFromInt(50),
		GiftWrap:  decimal.NewFromInt(30),
		CarMirror: decimal.NewFromInt(100),
	}
}

// UnitPrice returns the surcharge added to one unit carrying addons.
func (p AddonPrices) UnitPrice(addons models.Addons) decimal.Decimal {
	total := decimal.Zero
	if addons.Keychain {
		total = total.Add(p.Keychain)
	}
	if addons.GiftWrap {
		total = total.Add(p.GiftWrap)
	}
	if addons.CarMirror {
		total = total.Add(p.CarMirror)
	}
	return total
}

// LineTotal returns (base + addons) * quantity.
func (p AddonPrices) LineTotal(base decimal.Decimal, addons models.Addons, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return base.Add(p.UnitPrice(addons)).Mul(decimal.NewFromInt(int64(quantity)))
}
