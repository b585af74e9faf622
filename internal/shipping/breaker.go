package shipping

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"storefront-offers/internal/validation"
)

// BreakerOptions configures BreakerQuoter.
type BreakerOptions struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before opening
	OpenTimeout      time.Duration // time spent open before a half-open probe
}

// BreakerQuoter stops calling a failing provider until it has had time to recover.
type BreakerQuoter struct {
	next Quoter
	cb   *gobreaker.CircuitBreaker[decimal.Decimal]
}

// NewBreakerQuoter wraps next in a circuit breaker.
func NewBreakerQuoter(next Quoter, opts BreakerOptions, logger zerolog.Logger) *BreakerQuoter {
	if opts.Name == "" {
		opts.Name = "shipping-quote"
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		// bad input is the caller's fault, not the provider's
		IsSuccessful: func(err error) bool {
			var verr *validation.ValidationError
			return err == nil || errors.As(err, &verr)
		},
	}

	return &BreakerQuoter{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[decimal.Decimal](settings),
	}
}

func (q *BreakerQuoter) Quote(ctx context.Context, pincode string, weightGrams int) (decimal.Decimal, error) {
	return q.cb.Execute(func() (decimal.Decimal, error) {
		return q.next.Quote(ctx, pincode, weightGrams)
	})
}

// State returns the breaker state, e.g. "closed" or "open".
func (q *BreakerQuoter) State() string {
	return q.cb.State().String()
}
