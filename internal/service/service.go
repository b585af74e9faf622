package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-offers/internal/catalog"
	"storefront-offers/internal/database"
	"storefront-offers/internal/events"
	"storefront-offers/internal/features"
	"storefront-offers/internal/lifecycle"
	"storefront-offers/internal/models"
	"storefront-offers/internal/pricing"
	"storefront-offers/internal/selector"
	"storefront-offers/internal/shipping"
	"storefront-offers/internal/tracing"
	"storefront-offers/internal/validation"
)

var (
	// ErrProfileRequired is returned by operations scoped to a browser profile.
	ErrProfileRequired = errors.New("profile id is required")
	// ErrFeatureDisabled is returned when the operation's feature flag is off.
	ErrFeatureDisabled = errors.New("feature is disabled")
)

// ProductStore resolves cart product ids to catalog products.
type ProductStore interface {
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error)
}

// Dependencies wires a Service.
type Dependencies struct {
	Catalog  *catalog.Catalog
	Selector *selector.Selector
	Offers   *lifecycle.Store
	Products ProductStore
	Pricer   *pricing.Pricer
	Quoter   shipping.Quoter
	Flags    *features.Manager
	Events   *events.Manager
	Logger   zerolog.Logger
}

// Service provides business logic for the storefront offers API.
type Service struct {
	catalog  *catalog.Catalog
	selector *selector.Selector
	offers   *lifecycle.Store
	products ProductStore
	pricer   *pricing.Pricer
	quoter   shipping.Quoter
	flags    *features.Manager
	events   *events.Manager
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a new service instance.
func NewService(deps Dependencies) *Service {
	pricer := deps.Pricer
	if pricer == nil {
		pricer = pricing.NewPricer()
	}
	return &Service{
		catalog:  deps.Catalog,
		selector: deps.Selector,
		offers:   deps.Offers,
		products: deps.Products,
		pricer:   pricer,
		quoter:   deps.Quoter,
		flags:    deps.Flags,
		events:   deps.Events,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// Catalog returns the draw table a visitor would face, with probabilities.
func (s *Service) Catalog(firstTime bool) models.CatalogResponse {
	return models.CatalogResponse{
		FirstTime: firstTime,
		Entries:   s.selector.Probabilities(firstTime),
	}
}

// FirstTime reports whether profile has never drawn.
func (s *Service) FirstTime(ctx context.Context, profile string) bool {
	return !s.selector.HasPlayed(ctx, profile)
}

// DrawOffer runs one draw for profile. Substantive offers replace the active
// offer; try-again results leave it untouched.
func (s *Service) DrawOffer(ctx context.Context, profile string) (*models.DrawResponse, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "service.DrawOffer")
	defer span.End()
	tracing.Profile(span, profile)

	if profile == "" {
		return nil, ErrProfileRequired
	}

	res := s.selector.Draw(ctx, profile)
	resp := &models.DrawResponse{
		DrawID:  uuid.NewString(),
		Offer:   res.Offer,
		DrawnAt: s.now().UTC(),
	}

	if s.events != nil {
		s.events.PublishOfferDrawn(ctx, events.OfferDrawnData{
			Profile:   profile,
			DrawID:    resp.DrawID,
			Offer:     res.Offer,
			FirstTime: res.FirstTime,
		})
	}

	s.logger.Info().
		Str("profile", profile).
		Str("draw_id", resp.DrawID).
		Str("offer_id", res.Offer.ID).
		Bool("first_time", res.FirstTime).
		Bool("fallback", res.Fallback).
		Msg("offer drawn")

	if res.Offer.IsFiller() {
		return resp, nil
	}

	if err := s.activate(ctx, profile, resp); err != nil {
		tracing.Fail(span, err)
		return nil, err
	}
	return resp, nil
}

// TriggerSpecial grants a special-trigger offer explicitly.
func (s *Service) TriggerSpecial(ctx context.Context, profile, offerID string) (*models.DrawResponse, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "service.TriggerSpecial")
	defer span.End()
	tracing.Profile(span, profile)

	if !s.flags.IsEnabled(features.FeatureSpecialTriggerDraws) {
		return nil, fmt.Errorf("%w: %s", ErrFeatureDisabled, features.FeatureSpecialTriggerDraws)
	}
	if profile == "" {
		return nil, ErrProfileRequired
	}

	offer, err := s.selector.Trigger(validation.SanitizeString(offerID))
	if err != nil {
		return nil, err
	}

	resp := &models.DrawResponse{
		DrawID:  uuid.NewString(),
		Offer:   offer,
		DrawnAt: s.now().UTC(),
	}
	if err := s.activate(ctx, profile, resp); err != nil {
		tracing.Fail(span, err)
		return nil, err
	}

	s.logger.Info().Str("profile", profile).Str("offer_id", offer.ID).Msg("special offer triggered")
	return resp, nil
}

func (s *Service) activate(ctx context.Context, profile string, resp *models.DrawResponse) error {
	if resp.Offer.Kind == models.KindFreeProduct {
		product, err := catalog.SpecialProduct(resp.Offer)
		if err != nil {
			return fmt.Errorf("failed to build special product: %w", err)
		}
		resp.Product = product
	}

	if err := s.offers.Activate(ctx, profile, resp.Offer); err != nil {
		return fmt.Errorf("failed to activate offer: %w", err)
	}
	resp.Activated = true
	return nil
}

// ActiveOffer returns the profile's active offer, or nil.
func (s *Service) ActiveOffer(ctx context.Context, profile string) (*models.Offer, error) {
	if profile == "" {
		return nil, ErrProfileRequired
	}
	return s.offers.Active(ctx, profile), nil
}

// ClearOffer drops the profile's active offer.
func (s *Service) ClearOffer(ctx context.Context, profile string) error {
	if profile == "" {
		return ErrProfileRequired
	}
	if err := s.offers.Clear(ctx, profile); err != nil {
		return fmt.Errorf("failed to clear offer: %w", err)
	}
	return nil
}

// PriceCart prices a cart snapshot. Without a profile no offer applies.
// Shipping is quoted only when a pincode is given and the subtotal does not
// already qualify for free shipping; a failed quote leaves shipping unknown.
func (s *Service) PriceCart(ctx context.Context, profile string, req models.PriceCartRequest) (*models.PriceBreakdown, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "service.PriceCart")
	defer span.End()
	tracing.Profile(span, profile)

	if err := validation.ValidateCartLines(req.Lines); err != nil {
		return nil, err
	}
	pincode := validation.SanitizeString(req.Pincode)
	if pincode != "" {
		if err := validation.ValidatePincode(pincode); err != nil {
			return nil, err
		}
	}

	lines, err := s.resolveLines(ctx, req.Lines)
	if err != nil {
		tracing.Fail(span, err)
		return nil, err
	}

	var active *models.Offer
	if profile != "" {
		active = s.offers.Active(ctx, profile)
	}

	var quote *decimal.Decimal
	if pincode != "" && s.quoter != nil && s.pricer.NeedsQuote(lines) {
		charge, err := s.quoter.Quote(ctx, pincode, pricing.ShippingWeight(lines))
		if err != nil {
			s.logger.Warn().Err(err).Str("pincode", pincode).Msg("shipping quote failed, leaving shipping unknown")
		} else {
			quote = &charge
		}
	}

	b := s.pricer.Price(lines, active, quote)
	return &b, nil
}

// resolveLines attaches catalog prices and weights. Special-offer products
// are synthetic and priced at zero.
func (s *Service) resolveLines(ctx context.Context, lines []models.CartLine) ([]models.PricedLine, error) {
	var ids []int64
	seen := make(map[int64]bool)
	for _, l := range lines {
		if catalog.IsSpecialProductID(l.ProductID) || seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true
		ids = append(ids, l.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products := map[int64]models.Product{}
	if len(ids) > 0 {
		var err error
		products, err = s.products.ProductsByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load products: %w", err)
		}
	}

	priced := make([]models.PricedLine, 0, len(lines))
	for _, l := range lines {
		var product *models.Product
		if catalog.IsSpecialProductID(l.ProductID) {
			offer, ok := s.catalog.ByProductID(l.ProductID)
			if !ok {
				return nil, fmt.Errorf("%w: %d", database.ErrProductNotFound, l.ProductID)
			}
			sp, err := catalog.SpecialProduct(offer)
			if err != nil {
				return nil, err
			}
			product = sp
		} else {
			p, ok := products[l.ProductID]
			if !ok {
				return nil, fmt.Errorf("%w: %d", database.ErrProductNotFound, l.ProductID)
			}
			product = &p
		}

		l.Addons.Message = validation.SanitizeString(l.Addons.Message)
		priced = append(priced, models.PricedLine{
			CartLine:    l,
			UnitPrice:   product.Price,
			WeightGrams: product.WeightGrams,
		})
	}
	return priced, nil
}

// Quote returns the shipping charge for a package.
func (s *Service) Quote(ctx context.Context, pincode string, weightGrams int) (*models.ShippingQuoteResponse, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "service.Quote")
	defer span.End()

	pincode = validation.SanitizeString(pincode)
	if err := validation.ValidatePincode(pincode); err != nil {
		return nil, err
	}
	if err := validation.ValidateWeight(weightGrams); err != nil {
		return nil, err
	}

	charge, err := s.quoter.Quote(ctx, pincode, weightGrams)
	if err != nil {
		tracing.Fail(span, err)
		return nil, fmt.Errorf("failed to quote shipping: %w", err)
	}

	return &models.ShippingQuoteResponse{
		Pincode:     pincode,
		WeightGrams: weightGrams,
		Charge:      charge,
	}, nil
}
