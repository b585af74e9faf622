package selector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"storefront-offers/internal/cache"
	"storefront-offers/internal/catalog"
	"storefront-offers/internal/models"
)

var ErrNotSpecial = errors.New("selector: offer is not a special-trigger offer")

const playedFlagValue = "1"

// PlayedKey is the persistence key of the "has drawn before" flag.
func PlayedKey(profile string) string {
	return "dragon:played:" + profile
}

// Result is the outcome of one draw.
type Result struct {
	Offer     models.Offer
	FirstTime bool
	Fallback  bool // the eligible table was unusable and the first catalog entry was returned
}

// Selector performs weighted draws over a catalog.
type Selector struct {
	catalog *catalog.Catalog
	store   cache.Cache
	logger  zerolog.Logger

	mu  sync.Mutex // guards rng; seeded sources are not safe for concurrent use
	rng RandomSource
}

// New creates a selector. A nil rng selects DefaultRNG.
func New(c *catalog.Catalog, store cache.Cache, rng RandomSource, logger zerolog.Logger) *Selector {
	if rng == nil {
		rng = DefaultRNG()
	}
	return &Selector{
		catalog: c,
		store:   store,
		rng:     rng,
		logger:  logger,
	}
}

// Draw selects one offer for profile and records that the profile has drawn.
// An empty profile draws as a first-time visitor and persists nothing.
func (s *Selector) Draw(ctx context.Context, profile string) Result {
	firstTime := s.isFirstTime(ctx, profile)

	offer, ok := pick(s.Eligible(firstTime), s.nextFloat())
	res := Result{Offer: offer, FirstTime: firstTime}
	if !ok {
		first, _ := s.catalog.First()
		s.logger.Warn().Bool("first_time", firstTime).Str("fallback", first.ID).Msg("no drawable offers, falling back to first catalog entry")
		res.Offer = first
		res.Fallback = true
	}

	s.markPlayed(ctx, profile)
	return res
}

// Eligible returns the offers taking part in an ordinary draw, in catalog order.
// Zero-weight offers never take part.
func (s *Selector) Eligible(firstTime bool) []models.Offer {
	var out []models.Offer
	for _, o := range s.catalog.Offers() {
		if o.Eligibility != models.EligibilityStandard || o.Weight <= 0 {
			continue
		}
		if o.FirstTimeOnly != nil && *o.FirstTimeOnly != firstTime {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Probabilities returns weight / totalWeight for every eligible offer.
func (s *Selector) Probabilities(firstTime bool) []models.CatalogEntry {
	eligible := s.Eligible(firstTime)
	total := totalWeight(eligible)

	entries := make([]models.CatalogEntry, 0, len(eligible))
	for _, o := range eligible {
		p := 0.0
		if total > 0 {
			p = float64(o.Weight) / float64(total)
		}
		entries = append(entries, models.CatalogEntry{Offer: o, Probability: p})
	}
	return entries
}

// Trigger returns a special-trigger offer by id. It does not touch the played flag.
func (s *Selector) Trigger(id string) (models.Offer, error) {
	o, err := s.catalog.Lookup(id)
	if err != nil {
		return models.Offer{}, err
	}
	if o.Eligibility != models.EligibilitySpecialTrigger {
		return models.Offer{}, fmt.Errorf("%w: %s", ErrNotSpecial, id)
	}
	return o, nil
}

// HasPlayed reports whether profile has drawn before.
func (s *Selector) HasPlayed(ctx context.Context, profile string) bool {
	return !s.isFirstTime(ctx, profile)
}

func (s *Selector) isFirstTime(ctx context.Context, profile string) bool {
	if profile == "" || s.store == nil {
		return true
	}
	v, err := s.store.Get(ctx, PlayedKey(profile))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.Warn().Err(err).Str("profile", profile).Msg("failed to read played flag, treating as first draw")
		}
		return true
	}
	return string(v) != playedFlagValue
}

func (s *Selector) markPlayed(ctx context.Context, profile string) {
	if profile == "" || s.store == nil {
		return
	}
	if err := s.store.Set(ctx, PlayedKey(profile), []byte(playedFlagValue), 0); err != nil {
		s.logger.Error().Err(err).Str("profile", profile).Msg("failed to persist played flag")
	}
}

func (s *Selector) nextFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func totalWeight(offers []models.Offer) int {
	total := 0
	for _, o := range offers {
		total += o.Weight
	}
	return total
}

// pick walks offers in order, subtracting weights from u*total until the
// remainder reaches zero. Ties go to the earlier declaration.
func pick(offers []models.Offer, u float64) (models.Offer, bool) {
	total := totalWeight(offers)
	if len(offers) == 0 || total <= 0 {
		return models.Offer{}, false
	}

	r := u * float64(total)
	for _, o := range offers {
		if o.Weight <= 0 {
			continue
		}
		r -= float64(o.Weight)
		if r <= 0 {
			return o, true
		}
	}
	return offers[len(offers)-1], true
}
