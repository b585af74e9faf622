package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"storefront-offers/internal/cache"
	"storefront-offers/internal/events"
	"storefront-offers/internal/models"
)

// ActiveKey is the persistence key of a profile's active offer.
func ActiveKey(profile string) string {
	return "dragon:active:" + profile
}

// Listener receives the new active offer, or nil after a clear.
type Listener func(ctx context.Context, profile string, offer *models.Offer)

// Store is the only writer of the active-offer record.
// Every operation on an empty profile is a no-op: there is no client
// context to scope the value to.
type Store struct {
	kv     cache.Cache
	events *events.Manager
	logger zerolog.Logger
}

// NewStore creates a lifecycle store persisting into kv and notifying through em.
func NewStore(kv cache.Cache, em *events.Manager, logger zerolog.Logger) *Store {
	return &Store{kv: kv, events: em, logger: logger}
}

// Activate replaces the active offer and notifies subscribers.
func (s *Store) Activate(ctx context.Context, profile string, offer models.Offer) error {
	if profile == "" || s.kv == nil {
		return nil
	}

	if err := cache.SetJSON(ctx, s.kv, ActiveKey(profile), offer, 0); err != nil {
		return fmt.Errorf("failed to persist active offer: %w", err)
	}

	s.logger.Debug().Str("profile", profile).Str("offer_id", offer.ID).Msg("offer activated")
	if s.events != nil {
		s.events.PublishOfferActivated(ctx, profile, offer)
	}
	return nil
}

// Active returns the profile's active offer. Missing and corrupt values read as nil.
func (s *Store) Active(ctx context.Context, profile string) *models.Offer {
	if profile == "" || s.kv == nil {
		return nil
	}

	var offer models.Offer
	err := cache.GetJSON(ctx, s.kv, ActiveKey(profile), &offer)
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return nil
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		s.logger.Warn().Err(err).Str("profile", profile).Msg("discarding corrupt active offer")
		return nil
	case err != nil:
		s.logger.Warn().Err(err).Str("profile", profile).Msg("failed to read active offer")
		return nil
	}
	if offer.ID == "" {
		s.logger.Warn().Str("profile", profile).Msg("discarding active offer without id")
		return nil
	}
	return &offer
}

// Clear removes the active offer and notifies subscribers with nil.
func (s *Store) Clear(ctx context.Context, profile string) error {
	if profile == "" || s.kv == nil {
		return nil
	}

	if err := s.kv.Delete(ctx, ActiveKey(profile)); err != nil {
		return fmt.Errorf("failed to clear active offer: %w", err)
	}

	s.logger.Debug().Str("profile", profile).Msg("offer cleared")
	if s.events != nil {
		s.events.PublishOfferCleared(ctx, profile)
	}
	return nil
}

// Subscribe registers l for activations and clears. The returned function
// unsubscribes from both.
func (s *Store) Subscribe(l Listener) func() {
	if s.events == nil {
		return func() {}
	}

	h := func(ctx context.Context, e events.Event) error {
		data, ok := e.Data.(events.OfferChangedData)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", e.Data, e.Type)
		}
		l(ctx, data.Profile, data.Offer)
		return nil
	}

	unsubActivated := s.events.Subscribe(events.EventOfferActivated, h)
	unsubCleared := s.events.Subscribe(events.EventOfferCleared, h)
	return func() {
		unsubActivated()
		unsubCleared()
	}
}
