package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferKind is the reward type of a catalog entry.
type OfferKind string

const (
	KindDiscount    OfferKind = "discount"
	KindFreeProduct OfferKind = "free_product"
	// KindTryAgain marks a filler entry that grants nothing.
	KindTryAgain OfferKind = "try_again"
)

// DiscountType distinguishes percentage discounts from capped flat amounts.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlatCapped DiscountType = "flat_capped"
)

// Eligibility controls whether an offer takes part in ordinary draws.
type Eligibility string

const (
	EligibilityStandard Eligibility = "standard"
	// EligibilitySpecialTrigger offers are only reachable through an explicit trigger.
	EligibilitySpecialTrigger Eligibility = "special_trigger"
)

// SpecialProductIDBase is the first id reserved for synthetic special-offer products.
const SpecialProductIDBase int64 = 999000

// DiscountRule is the tagged variant carried by discount offers.
type DiscountRule struct {
	Type  DiscountType `json:"type" yaml:"type"`
	Value int64        `json:"value" yaml:"value"` // percentage points or whole rupees
}

// Offer is an immutable catalog entry describing a potential reward.
type Offer struct {
	ID            string        `json:"id" yaml:"id"`
	Kind          OfferKind     `json:"kind" yaml:"kind"`
	Title         string        `json:"title" yaml:"title"`
	Description   string        `json:"description" yaml:"description"`
	Discount      *DiscountRule `json:"discount,omitempty" yaml:"discount,omitempty"`
	Code          string        `json:"code,omitempty" yaml:"code,omitempty"`
	MinOrderValue *int64        `json:"min_order_value,omitempty" yaml:"min_order_value,omitempty"` // whole rupees
	ProductID     *int64        `json:"product_id,omitempty" yaml:"product_id,omitempty"`
	Weight        int           `json:"weight" yaml:"weight"`
	Eligibility   Eligibility   `json:"eligibility" yaml:"eligibility"`
	FirstTimeOnly *bool         `json:"first_time_only,omitempty" yaml:"first_time_only,omitempty"`
}

// IsFiller reports whether the offer is a try-again entry.
func (o Offer) IsFiller() bool {
	return o.Kind == KindTryAgain
}

// Addons are the optional per-unit extras of a cart line.
type Addons struct {
	Keychain  bool   `json:"keychain"`
	GiftWrap  bool   `json:"gift_wrap"`
	CarMirror bool   `json:"car_mirror"`
	Message   string `json:"message,omitempty"`
}

// CartLine is one entry of the cart snapshot.
type CartLine struct {
	Key       string `json:"key,omitempty"` // cart identity; defaults to the product id
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Addons    Addons `json:"addons"`
}

// PricedLine is a cart line with its catalog price resolved.
type PricedLine struct {
	CartLine
	UnitPrice   decimal.Decimal `json:"unit_price"`
	WeightGrams int             `json:"weight_grams"`
}

// Product is a sellable item. Special-offer products are synthetic and never inventoried.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	WeightGrams  int             `json:"weight_grams"`
	Unlimited    bool            `json:"unlimited"`
	NonInventory bool            `json:"non_inventory"`
}

// ShippingStatus describes how the shipping component of a total was derived.
type ShippingStatus string

const (
	ShippingFree            ShippingStatus = "free"
	ShippingQuoted          ShippingStatus = "quoted"
	ShippingPincodeRequired ShippingStatus = "pincode_required"
)

// PriceBreakdown is the result of pricing a cart.
type PriceBreakdown struct {
	Subtotal       decimal.Decimal  `json:"subtotal"`
	Discount       decimal.Decimal  `json:"discount"`
	Shipping       *decimal.Decimal `json:"shipping"` // nil while the pincode is unknown
	ShippingStatus ShippingStatus   `json:"shipping_status"`
	Total          decimal.Decimal  `json:"total"`
	FreeUnitKeys   []string         `json:"free_unit_keys"`
	PromoSavings   decimal.Decimal  `json:"promo_savings"`
	AppliedOfferID string           `json:"applied_offer_id,omitempty"`
}

// DrawResponse is returned after a draw or a special trigger.
type DrawResponse struct {
	DrawID    string    `json:"draw_id"`
	Offer     Offer     `json:"offer"`
	Activated bool      `json:"activated"`
	Product   *Product  `json:"product,omitempty"` // set for free-product offers
	DrawnAt   time.Time `json:"drawn_at"`
}

// CatalogEntry is one row of the published draw table.
type CatalogEntry struct {
	Offer       Offer   `json:"offer"`
	Probability float64 `json:"probability"`
}

// CatalogResponse is the response payload of the draw table endpoint.
type CatalogResponse struct {
	FirstTime bool           `json:"first_time"`
	Entries   []CatalogEntry `json:"entries"`
}

// PriceCartRequest represents the request body for pricing a cart.
type PriceCartRequest struct {
	Lines   []CartLine `json:"lines"`
	Pincode string     `json:"pincode,omitempty"`
}

// ShippingQuoteResponse is the response payload of the quote endpoint.
type ShippingQuoteResponse struct {
	Pincode     string          `json:"pincode"`
	WeightGrams int             `json:"weight_grams"`
	Charge      decimal.Decimal `json:"charge"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
