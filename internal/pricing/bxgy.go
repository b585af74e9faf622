package pricing

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"storefront-offers/internal/models"
)

// DefaultGroupSize is the unit count that earns one free unit.
const DefaultGroupSize = 3

// Unit is a single item of a cart line after quantity expansion.
type Unit struct {
	Key     string
	LineKey string
	Price   decimal.Decimal // base price plus addons
	Special bool            // special-offer product, never part of buy-X-get-Y
}

// LineKey returns the cart identity of a line.
func LineKey(line models.CartLine) string {
	if line.Key != "" {
		return line.Key
	}
	return strconv.FormatInt(line.ProductID, 10)
}

// ExpandUnits flattens lines into one Unit per quantity, keyed "<lineKey>-<i>".
func ExpandUnits(lines []models.PricedLine, addons AddonPrices) []Unit {
	var units []Unit
	for _, line := range lines {
		lineKey := LineKey(line.CartLine)
		price := line.UnitPrice.Add(addons.UnitPrice(line.Addons))
		special := line.ProductID >= models.SpecialProductIDBase
		for i := 0; i < line.Quantity; i++ {
			units = append(units, Unit{
				Key:     fmt.Sprintf("%s-%d", lineKey, i),
				LineKey: lineKey,
				Price:   price,
				Special: special,
			})
		}
	}
	return units
}

// FreeUnits returns the units made free by buy-X-get-Y, cheapest first.
// One unit is freed per complete group of paid units; special-offer units
// neither count nor get freed. Ties keep cart order.
func FreeUnits(units []Unit, groupSize int) []Unit {
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}

	sorted := make([]Unit, 0, len(units))
	for _, u := range units {
		if !u.Special {
			sorted = append(sorted, u)
		}
	}
	freeCount := len(sorted) / groupSize
	if freeCount == 0 {
		return nil
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price.LessThan(sorted[j].Price)
	})
	return sorted[:freeCount]
}

// FreeItemKeys returns the keys of the freed units as a set.
func FreeItemKeys(units []Unit, groupSize int) map[string]struct{} {
	free := FreeUnits(units, groupSize)
	keys := make(map[string]struct{}, len(free))
	for _, u := range free {
		keys[u.Key] = struct{}{}
	}
	return keys
}
