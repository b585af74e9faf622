package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"storefront-offers/internal/models"
)

func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }

func validDiscount() models.Offer {
	return models.Offer{
		ID:            "discount_100",
		Kind:          models.KindDiscount,
		Title:         "Rs 100 off",
		Discount:      &models.DiscountRule{Type: models.DiscountFlatCapped, Value: 100},
		MinOrderValue: int64Ptr(550),
		Weight:        10,
		Eligibility:   models.EligibilityStandard,
	}
}

func TestValidateOffer_Valid(t *testing.T) {
	offers := []models.Offer{
		validDiscount(),
		{ID: "free_keychain", Kind: models.KindFreeProduct, ProductID: int64Ptr(999001), Weight: 5, Eligibility: models.EligibilityStandard},
		{ID: "try_again", Kind: models.KindTryAgain, FirstTimeOnly: boolPtr(false), Weight: 30, Eligibility: models.EligibilityStandard},
		{ID: "golden", Kind: models.KindDiscount, Discount: &models.DiscountRule{Type: models.DiscountPercentage, Value: 50}, Eligibility: models.EligibilitySpecialTrigger},
	}
	for _, o := range offers {
		if err := ValidateOffer(o); err != nil {
			t.Errorf("offer %s: unexpected error %v", o.ID, err)
		}
	}
}

func TestValidateOffer_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *models.Offer)
		field  string
	}{
		{"missing id", func(o *models.Offer) { o.ID = "" }, "id"},
		{"bad id", func(o *models.Offer) { o.ID = "Discount 100" }, "id"},
		{"negative weight", func(o *models.Offer) { o.Weight = -1 }, "weight"},
		{"unknown eligibility", func(o *models.Offer) { o.Eligibility = "vip" }, "eligibility"},
		{"missing rule", func(o *models.Offer) { o.Discount = nil }, "discount"},
		{"percentage over 100", func(o *models.Offer) {
			o.Discount = &models.DiscountRule{Type: models.DiscountPercentage, Value: 101}
		}, "discount.value"},
		{"zero flat", func(o *models.Offer) { o.Discount.Value = 0 }, "discount.value"},
		{"unknown type", func(o *models.Offer) { o.Discount.Type = "bogus" }, "discount.type"},
		{"negative min order", func(o *models.Offer) { o.MinOrderValue = int64Ptr(-5) }, "min_order_value"},
		{"first time flag on discount", func(o *models.Offer) { o.FirstTimeOnly = boolPtr(true) }, "first_time_only"},
		{"unknown kind", func(o *models.Offer) { o.Kind = "cashback" }, "kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validDiscount()
			o.Discount = &models.DiscountRule{Type: o.Discount.Type, Value: o.Discount.Value}
			tt.mutate(&o)

			err := ValidateOffer(o)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, vErr.Field)
			}
		})
	}
}

func TestValidateOffer_FreeProductNeedsReservedID(t *testing.T) {
	o := models.Offer{ID: "free_mug", Kind: models.KindFreeProduct, ProductID: int64Ptr(42), Eligibility: models.EligibilityStandard}
	if err := ValidateOffer(o); err == nil {
		t.Fatal("expected error for non-reserved product id")
	}

	o.ProductID = nil
	if err := ValidateOffer(o); err == nil {
		t.Fatal("expected error for missing product id")
	}
}

func TestValidateOffer_TryAgainNeedsTriState(t *testing.T) {
	o := models.Offer{ID: "try_again", Kind: models.KindTryAgain, Weight: 10, Eligibility: models.EligibilityStandard}
	if err := ValidateOffer(o); err == nil {
		t.Fatal("expected error when first_time_only is unset")
	}
}

func TestValidateCatalog(t *testing.T) {
	if err := ValidateCatalog(nil); err == nil {
		t.Error("expected error for empty catalog")
	}

	dup := []models.Offer{validDiscount(), validDiscount()}
	if err := ValidateCatalog(dup); err == nil || !strings.Contains(err.Error(), "duplicate offer id") {
		t.Errorf("expected duplicate id error, got %v", err)
	}

	zero := validDiscount()
	zero.Weight = 0
	if err := ValidateCatalog([]models.Offer{zero}); err == nil {
		t.Error("expected error for zero standard weight")
	}

	if err := ValidateCatalog([]models.Offer{validDiscount()}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateCartLines(t *testing.T) {
	valid := []models.CartLine{
		{ProductID: 1, Quantity: 2},
		{Key: "1-gift", ProductID: 1, Quantity: 1, Addons: models.Addons{GiftWrap: true, Message: "Happy birthday"}},
	}
	if err := ValidateCartLines(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string][]models.CartLine{
		"zero quantity": {{ProductID: 1, Quantity: 0}},
		"huge quantity": {{ProductID: 1, Quantity: 1000}},
		"bad product":   {{ProductID: 0, Quantity: 1}},
		"duplicate key": {{ProductID: 1, Quantity: 1}, {ProductID: 1, Quantity: 2}},
		"long message":  {{ProductID: 1, Quantity: 1, Addons: models.Addons{Message: strings.Repeat("x", 121)}}},
	}
	for name, lines := range cases {
		if err := ValidateCartLines(lines); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestValidatePincode(t *testing.T) {
	for _, ok := range []string{"560001", "110011"} {
		if err := ValidatePincode(ok); err != nil {
			t.Errorf("%s: unexpected error %v", ok, err)
		}
	}
	for _, bad := range []string{"", "012345", "56001", "56000a"} {
		if err := ValidatePincode(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestValidateUUID(t *testing.T) {
	if err := ValidateUUID(uuid.New().String(), "profile_id"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateUUID("not-a-uuid", "profile_id"); err == nil {
		t.Error("expected error for invalid uuid")
	}
	if err := ValidateUUID("", "profile_id"); err == nil {
		t.Error("expected error for empty uuid")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  56\x000001 \x07"); got != "560001" {
		t.Errorf("expected 560001, got %q", got)
	}
}
