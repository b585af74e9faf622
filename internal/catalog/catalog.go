package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"storefront-offers/internal/models"
	"storefront-offers/internal/validation"
)

var (
	ErrOfferNotFound  = errors.New("catalog: offer not found")
	ErrNotFreeProduct = errors.New("catalog: offer does not grant a product")
)

// Catalog is the ordered, immutable table of offers a draw can produce.
// Declaration order matters: it breaks ties during weighted selection.
type Catalog struct {
	offers []models.Offer
	byID   map[string]int
}

// file mirrors the YAML catalog layout.
type file struct {
	Version string         `yaml:"version"`
	Offers  []models.Offer `yaml:"offers"`
}

// New validates offers and builds a catalog. Empty eligibility defaults to standard.
func New(offers []models.Offer) (*Catalog, error) {
	normalized := make([]models.Offer, len(offers))
	for i, o := range offers {
		if o.Eligibility == "" {
			o.Eligibility = models.EligibilityStandard
		}
		normalized[i] = o
	}

	if err := validation.ValidateCatalog(normalized); err != nil {
		return nil, err
	}

	byID := make(map[string]int, len(normalized))
	for i, o := range normalized {
		byID[o.ID] = i
	}
	return &Catalog{offers: normalized, byID: byID}, nil
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	c, err := New(f.Offers)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return c, nil
}

// Offers returns a copy of the entries in declaration order.
func (c *Catalog) Offers() []models.Offer {
	out := make([]models.Offer, len(c.offers))
	copy(out, c.offers)
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.offers)
}

// First returns the first declared entry, the selector's fallback.
func (c *Catalog) First() (models.Offer, bool) {
	if len(c.offers) == 0 {
		return models.Offer{}, false
	}
	return c.offers[0], true
}

// Lookup finds an offer by id.
func (c *Catalog) Lookup(id string) (models.Offer, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.Offer{}, fmt.Errorf("%w: %s", ErrOfferNotFound, id)
	}
	return c.offers[i], nil
}

// ByProductID finds the free-product offer granting product id.
func (c *Catalog) ByProductID(id int64) (models.Offer, bool) {
	for _, o := range c.offers {
		if o.ProductID != nil && *o.ProductID == id {
			return o, true
		}
	}
	return models.Offer{}, false
}

// SpecialProduct synthesises the cart item granted by a free-product offer.
func SpecialProduct(offer models.Offer) (*models.Product, error) {
	if offer.Kind != models.KindFreeProduct || offer.ProductID == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFreeProduct, offer.ID)
	}
	return &models.Product{
		ID:           *offer.ProductID,
		Name:         offer.Title,
		Price:        decimal.Zero,
		Unlimited:    true,
		NonInventory: true,
	}, nil
}

// IsSpecialProductID reports whether id falls in the reserved synthetic range.
func IsSpecialProductID(id int64) bool {
	return id >= models.SpecialProductIDBase
}
