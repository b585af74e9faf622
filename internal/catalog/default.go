package catalog

import "storefront-offers/internal/models"

func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }

// DefaultOffers is the built-in "catch the dragon" table.
func DefaultOffers() []models.Offer {
	return []models.Offer{
		{
			ID:          "discount_10",
			Kind:        models.KindDiscount,
			Title:       "10% off",
			Description: "Take 10% off your whole order.",
			Discount:    &models.DiscountRule{Type: models.DiscountPercentage, Value: 10},
			Code:        "DRAGON10",
			Weight:      25,
			Eligibility: models.EligibilityStandard,
		},
		{
			ID:            "discount_15",
			Kind:          models.KindDiscount,
			Title:         "15% off above Rs 799",
			Description:   "Take 15% off orders of Rs 799 or more.",
			Discount:      &models.DiscountRule{Type: models.DiscountPercentage, Value: 15},
			Code:          "DRAGON15",
			MinOrderValue: int64Ptr(799),
			Weight:        12,
			Eligibility:   models.EligibilityStandard,
		},
		{
			ID:            "discount_100",
			Kind:          models.KindDiscount,
			Title:         "Rs 100 off above Rs 550",
			Description:   "Flat Rs 100 off orders of Rs 550 or more.",
			Discount:      &models.DiscountRule{Type: models.DiscountFlatCapped, Value: 100},
			Code:          "DRAGON100",
			MinOrderValue: int64Ptr(550),
			Weight:        18,
			Eligibility:   models.EligibilityStandard,
		},
		{
			ID:          "free_keychain",
			Kind:        models.KindFreeProduct,
			Title:       "Free dragon keychain",
			Description: "A dragon keychain ships free with your order.",
			ProductID:   int64Ptr(999001),
			Weight:      8,
			Eligibility: models.EligibilityStandard,
		},
		{
			ID:          "free_sticker_pack",
			Kind:        models.KindFreeProduct,
			Title:       "Free sticker pack",
			Description: "A dragon sticker pack ships free with your order.",
			ProductID:   int64Ptr(999002),
			Weight:      12,
			Eligibility: models.EligibilityStandard,
		},
		{
			ID:            "try_again_first",
			Kind:          models.KindTryAgain,
			Title:         "So close!",
			Description:   "The dragon slipped away. Give it another go.",
			Weight:        10,
			Eligibility:   models.EligibilityStandard,
			FirstTimeOnly: boolPtr(true),
		},
		{
			ID:            "try_again",
			Kind:          models.KindTryAgain,
			Title:         "Better luck next time",
			Description:   "No reward this time.",
			Weight:        35,
			Eligibility:   models.EligibilityStandard,
			FirstTimeOnly: boolPtr(false),
		},
		{
			ID:          "golden_dragon",
			Kind:        models.KindDiscount,
			Title:       "Golden dragon: 50% off",
			Description: "The rarest catch. Half off your order.",
			Discount:    &models.DiscountRule{Type: models.DiscountPercentage, Value: 50},
			Code:        "GOLDENDRAGON",
			Weight:      0,
			Eligibility: models.EligibilitySpecialTrigger,
		},
	}
}

// Default returns the built-in catalog. It panics if the table is invalid.
func Default() *Catalog {
	c, err := New(DefaultOffers())
	if err != nil {
		panic("catalog: built-in catalog is invalid: " + err.Error())
	}
	return c
}
