package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"storefront-offers/internal/models"
)

var (
	uuidRegex    = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	pincodeRegex = regexp.MustCompile(`^[1-9]\d{5}$`)
	offerIDRegex = regexp.MustCompile(`^[a-z0-9_]+$`)
)

const (
	maxCartLines      = 100
	maxLineQuantity   = 99
	maxMessageLength  = 120
	maxPackageWeightG = 50_000
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateOffer checks a single catalog entry.
func ValidateOffer(offer models.Offer) error {
	if offer.ID == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}
	if !offerIDRegex.MatchString(offer.ID) {
		return &ValidationError{Field: "id", Message: "must contain only lowercase letters, digits and underscores"}
	}

	if offer.Weight < 0 {
		return &ValidationError{Field: "weight", Message: "must be non-negative"}
	}

	switch offer.Eligibility {
	case models.EligibilityStandard, models.EligibilitySpecialTrigger:
	default:
		return &ValidationError{Field: "eligibility", Message: fmt.Sprintf("unknown eligibility %q", offer.Eligibility)}
	}

	if offer.FirstTimeOnly != nil && offer.Kind != models.KindTryAgain {
		return &ValidationError{Field: "first_time_only", Message: "only allowed on try_again offers"}
	}

	switch offer.Kind {
	case models.KindDiscount:
		return validateDiscountOffer(offer)
	case models.KindFreeProduct:
		return validateFreeProductOffer(offer)
	case models.KindTryAgain:
		if offer.FirstTimeOnly == nil {
			return &ValidationError{Field: "first_time_only", Message: "is required for try_again offers"}
		}
		if offer.Discount != nil || offer.ProductID != nil || offer.Code != "" || offer.MinOrderValue != nil {
			return &ValidationError{Field: "kind", Message: "try_again offers carry no reward"}
		}
		return nil
	default:
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", offer.Kind)}
	}
}

func validateDiscountOffer(offer models.Offer) error {
	if offer.Discount == nil {
		return &ValidationError{Field: "discount", Message: "is required for discount offers"}
	}
	if offer.ProductID != nil {
		return &ValidationError{Field: "product_id", Message: "not allowed on discount offers"}
	}

	switch offer.Discount.Type {
	case models.DiscountPercentage:
		if offer.Discount.Value <= 0 || offer.Discount.Value > 100 {
			return &ValidationError{Field: "discount.value", Message: "percentage must be between 1 and 100"}
		}
	case models.DiscountFlatCapped:
		if offer.Discount.Value <= 0 {
			return &ValidationError{Field: "discount.value", Message: "flat amount must be positive"}
		}
	default:
		return &ValidationError{Field: "discount.type", Message: fmt.Sprintf("unknown discount type %q", offer.Discount.Type)}
	}

	if offer.MinOrderValue != nil && *offer.MinOrderValue < 0 {
		return &ValidationError{Field: "min_order_value", Message: "must be non-negative"}
	}
	return nil
}

func validateFreeProductOffer(offer models.Offer) error {
	if offer.ProductID == nil {
		return &ValidationError{Field: "product_id", Message: "is required for free_product offers"}
	}
	if *offer.ProductID < models.SpecialProductIDBase {
		return &ValidationError{
			Field:   "product_id",
			Message: fmt.Sprintf("must be a reserved special-offer id (>= %d)", models.SpecialProductIDBase),
		}
	}
	if offer.Discount != nil || offer.Code != "" || offer.MinOrderValue != nil {
		return &ValidationError{Field: "kind", Message: "discount fields not allowed on free_product offers"}
	}
	return nil
}

// ValidateCatalog checks every entry plus the catalog-wide constraints.
func ValidateCatalog(offers []models.Offer) error {
	if len(offers) == 0 {
		return &ValidationError{Field: "offers", Message: "catalog must contain at least one offer"}
	}

	seenIDs := make(map[string]bool)
	seenProducts := make(map[int64]string)
	standardWeight := 0
	for i, offer := range offers {
		if err := ValidateOffer(offer); err != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("offers[%d]", i),
				Message: err.Error(),
			}
		}
		if seenIDs[offer.ID] {
			return &ValidationError{Field: "offers", Message: fmt.Sprintf("duplicate offer id: %s", offer.ID)}
		}
		seenIDs[offer.ID] = true

		if offer.ProductID != nil {
			if other, ok := seenProducts[*offer.ProductID]; ok {
				return &ValidationError{
					Field:   "offers",
					Message: fmt.Sprintf("product %d used by both %s and %s", *offer.ProductID, other, offer.ID),
				}
			}
			seenProducts[*offer.ProductID] = offer.ID
		}

		if offer.Eligibility == models.EligibilityStandard {
			standardWeight += offer.Weight
		}
	}

	if standardWeight <= 0 {
		return &ValidationError{Field: "offers", Message: "total weight of standard offers must be positive"}
	}
	return nil
}

// ValidateCartLines checks the cart snapshot sent for pricing.
func ValidateCartLines(lines []models.CartLine) error {
	if len(lines) > maxCartLines {
		return &ValidationError{
			Field:   "lines",
			Message: fmt.Sprintf("cannot contain more than %d lines", maxCartLines),
		}
	}

	seen := make(map[string]bool)
	for i, line := range lines {
		if line.ProductID <= 0 {
			return &ValidationError{Field: fmt.Sprintf("lines[%d].product_id", i), Message: "must be positive"}
		}
		if line.Quantity <= 0 || line.Quantity > maxLineQuantity {
			return &ValidationError{
				Field:   fmt.Sprintf("lines[%d].quantity", i),
				Message: fmt.Sprintf("must be between 1 and %d", maxLineQuantity),
			}
		}
		if len([]rune(line.Addons.Message)) > maxMessageLength {
			return &ValidationError{
				Field:   fmt.Sprintf("lines[%d].addons.message", i),
				Message: fmt.Sprintf("cannot exceed %d characters", maxMessageLength),
			}
		}
		key := line.Key
		if key == "" {
			key = fmt.Sprintf("%d", line.ProductID)
		}
		if seen[key] {
			return &ValidationError{Field: fmt.Sprintf("lines[%d].key", i), Message: fmt.Sprintf("duplicate line key: %s", key)}
		}
		seen[key] = true
	}
	return nil
}

// ValidatePincode checks a six-digit Indian postal code.
func ValidatePincode(pincode string) error {
	if pincode == "" {
		return &ValidationError{Field: "pincode", Message: "is required"}
	}
	if !pincodeRegex.MatchString(SanitizeString(pincode)) {
		return &ValidationError{Field: "pincode", Message: "must be a 6-digit postal code"}
	}
	return nil
}

// ValidateWeight checks a package weight in grams.
func ValidateWeight(grams int) error {
	if grams < 0 {
		return &ValidationError{Field: "weight_grams", Message: "must be non-negative"}
	}
	if grams > maxPackageWeightG {
		return &ValidationError{Field: "weight_grams", Message: "exceeds maximum package weight"}
	}
	return nil
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

func ValidateUUID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	id = SanitizeString(id)

	if !uuidRegex.MatchString(strings.ToLower(id)) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a valid UUID v4",
		}
	}

	return nil
}
