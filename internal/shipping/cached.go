package shipping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-offers/internal/cache"
	"storefront-offers/internal/features"
)

// QuoteKey is the cache key of a quote.
func QuoteKey(pincode string, weightGrams int) string {
	return fmt.Sprintf("shipping:quote:%s:%d", pincode, weightGrams)
}

// CachedQuoter serves repeated quotes from a cache while cache_enabled is on.
type CachedQuoter struct {
	next   Quoter
	kv     cache.Cache
	flags  *features.Manager
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedQuoter wraps next with a cache of the given TTL.
func NewCachedQuoter(next Quoter, kv cache.Cache, flags *features.Manager, ttl time.Duration, logger zerolog.Logger) *CachedQuoter {
	return &CachedQuoter{next: next, kv: kv, flags: flags, ttl: ttl, logger: logger}
}

func (q *CachedQuoter) Quote(ctx context.Context, pincode string, weightGrams int) (decimal.Decimal, error) {
	if !q.flags.IsEnabled(features.FeatureCacheEnabled) {
		return q.next.Quote(ctx, pincode, weightGrams)
	}

	key := QuoteKey(pincode, weightGrams)
	if data, err := q.kv.Get(ctx, key); err == nil {
		if charge, err := decimal.NewFromString(string(data)); err == nil {
			return charge, nil
		}
		q.logger.Warn().Str("key", key).Msg("discarding unreadable cached quote")
	} else if !errors.Is(err, cache.ErrNotFound) {
		q.logger.Warn().Err(err).Str("key", key).Msg("quote cache read failed")
	}

	charge, err := q.next.Quote(ctx, pincode, weightGrams)
	if err != nil {
		return decimal.Zero, err
	}

	if err := q.kv.Set(ctx, key, []byte(charge.String()), q.ttl); err != nil {
		q.logger.Warn().Err(err).Str("key", key).Msg("quote cache write failed")
	}
	return charge, nil
}
